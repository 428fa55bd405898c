package jsontree

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ohler55/ojg/jp"
)

// Path is a parsed dotted path such as "data.items.0.id".
//
// Segments are applied left to right. A segment addresses a map key, or a
// sequence index when it parses as a non-negative integer. Literal dots in
// keys cannot be escaped.
type Path struct {
	segments []string
}

// ParsePath splits a dotted path on ".". The empty string yields a path
// with no segments, which resolves to the tree itself.
func ParsePath(s string) Path {
	if s == "" {
		return Path{}
	}
	return Path{segments: strings.Split(s, ".")}
}

// Segments returns a copy of the path segments.
func (p Path) Segments() []string {
	return append([]string(nil), p.segments...)
}

// Len returns the number of segments.
func (p Path) Len() int { return len(p.segments) }

// String joins the segments back with ".".
func (p Path) String() string { return strings.Join(p.segments, ".") }

// Resolve walks tree along path and returns the value found, or def when any
// segment cannot be applied.
//
// Resolution stops at the first miss: an absent map key, a sequence index
// that is not a non-negative integer or is out of range, or a scalar with
// segments remaining. A null reached along the way counts as absent, so
// callers cannot tell an explicit null from a missing key. Resolve never
// panics.
func Resolve(tree Value, path Path, def Value) (result Value) {
	defer func() {
		if r := recover(); r != nil {
			result = def
		}
	}()

	cursor := tree
	for _, seg := range path.segments {
		next, ok := step(cursor, seg)
		if !ok || next.IsNull() {
			return def
		}
		cursor = next
	}
	return cursor
}

// ResolveString is [Resolve] with a dotted path string.
func ResolveString(tree Value, path string, def Value) Value {
	return Resolve(tree, ParsePath(path), def)
}

// step applies one segment to cursor.
func step(cursor Value, seg string) (Value, bool) {
	switch cursor.Kind() {
	case KindMap:
		return cursor.Key(seg)
	case KindSequence:
		idx, ok := parseIndex(seg)
		if !ok {
			return Value{}, false
		}
		return cursor.Index(idx)
	default:
		return Value{}, false
	}
}

// parseIndex accepts plain base-10 digits only; signs and spaces are misses.
func parseIndex(seg string) (int, bool) {
	if seg == "" {
		return 0, false
	}
	for i := 0; i < len(seg); i++ {
		if seg[i] < '0' || seg[i] > '9' {
			return 0, false
		}
	}
	idx, err := strconv.Atoi(seg)
	if err != nil {
		return 0, false
	}
	return idx, true
}

// IsJSONPath reports whether expr uses JSONPath syntax ("$" rooted) rather
// than a dotted path.
func IsJSONPath(expr string) bool {
	return strings.HasPrefix(strings.TrimSpace(expr), "$")
}

// CompileJSONPath parses a "$"-rooted JSONPath expression.
func CompileJSONPath(expr string) (jp.Expr, error) {
	x, err := jp.ParseString(strings.TrimSpace(expr))
	if err != nil {
		return nil, fmt.Errorf("invalid jsonpath %q: %w", expr, err)
	}
	return x, nil
}

// Select evaluates a JSONPath expression against tree and returns every
// non-null match in document order.
func Select(tree Value, expr string) ([]Value, error) {
	x, err := CompileJSONPath(expr)
	if err != nil {
		return nil, err
	}
	return SelectCompiled(tree, x), nil
}

// SelectCompiled is [Select] with a pre-compiled expression. Matches that
// cannot be converted back into a Value are skipped.
func SelectCompiled(tree Value, x jp.Expr) []Value {
	raw := x.Get(tree.Interface())
	out := make([]Value, 0, len(raw))
	for _, r := range raw {
		v, err := FromInterface(r)
		if err != nil || v.IsNull() {
			continue
		}
		out = append(out, v)
	}
	return out
}

// Lookup resolves expr against tree, dispatching on syntax: "$"-rooted
// expressions use JSONPath and return the first match, anything else is a
// dotted path for [Resolve]. Misses and invalid expressions return def.
func Lookup(tree Value, expr string, def Value) Value {
	if !IsJSONPath(expr) {
		return ResolveString(tree, expr, def)
	}
	matches, err := Select(tree, expr)
	if err != nil || len(matches) == 0 {
		return def
	}
	return matches[0]
}
