package pollmatch

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jpalmerr/pollmatch/internal/poller"
	"github.com/jpalmerr/pollmatch/jsontree"
)

// MatchKind selects how a [MatchSpec] pattern is compared with a response
// body.
type MatchKind string

const (
	// MatchLiteral matches when the pattern is a substring of the body
	// (case-sensitive).
	MatchLiteral MatchKind = "literal"

	// MatchRegex matches when the pattern, a Go regular expression, finds a
	// match anywhere in the body.
	MatchRegex MatchKind = "regex"

	// MatchJSON matches when the pattern, a JSON document, is a subset of
	// the body parsed as JSON. See [jsontree.Subset].
	MatchJSON MatchKind = "json"

	// MatchJSONPath matches when the pattern, a "$"-rooted JSONPath
	// expression, selects at least one non-null value in the body.
	MatchJSONPath MatchKind = "jsonpath"
)

// String returns the kind name.
func (k MatchKind) String() string {
	return string(k)
}

// ErrMalformedPattern reports a regex, JSON or JSONPath pattern that cannot
// be compiled. Polls treat such patterns as never matching.
var ErrMalformedPattern = errors.New("malformed match pattern")

// ParseMatchKind converts a kind name into a [MatchKind].
//
// Accepted names (case-insensitive):
//   - literal, contains, text
//   - regex, regexp, re
//   - json, json_subset, subset
//   - jsonpath
func ParseMatchKind(s string) (MatchKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "literal", "contains", "text":
		return MatchLiteral, nil
	case "regex", "regexp", "re":
		return MatchRegex, nil
	case "json", "json_subset", "subset":
		return MatchJSON, nil
	case "jsonpath":
		return MatchJSONPath, nil
	default:
		return "", fmt.Errorf("unknown match kind %q (expected literal, regex, json, or jsonpath)", s)
	}
}

// MatchSpec is the predicate a poll waits for.
//
// MatchSpec is immutable. A poll stops when the predicate holds, or, with
// Invert set, on the first response where it does not hold.
type MatchSpec struct {
	kind    MatchKind
	pattern string
	invert  bool
}

// NewMatchSpec creates a [MatchSpec].
//
// Only the kind is validated here. A malformed pattern is accepted and
// simply never matches; use [MatchSpec.Validate] to reject it up front.
func NewMatchSpec(kind MatchKind, pattern string, invert bool) (MatchSpec, error) {
	switch kind {
	case MatchLiteral, MatchRegex, MatchJSON, MatchJSONPath:
	default:
		return MatchSpec{}, fmt.Errorf("unknown match kind %q", kind)
	}
	return MatchSpec{kind: kind, pattern: pattern, invert: invert}, nil
}

// Contains returns a literal [MatchSpec] for text.
func Contains(text string) MatchSpec {
	return MatchSpec{kind: MatchLiteral, pattern: text}
}

// Regex returns a regex [MatchSpec] for pattern.
func Regex(pattern string) MatchSpec {
	return MatchSpec{kind: MatchRegex, pattern: pattern}
}

// JSONSubset returns a JSON subset [MatchSpec] for pattern.
func JSONSubset(pattern string) MatchSpec {
	return MatchSpec{kind: MatchJSON, pattern: pattern}
}

// JSONPath returns a JSONPath [MatchSpec] for expr.
func JSONPath(expr string) MatchSpec {
	return MatchSpec{kind: MatchJSONPath, pattern: expr}
}

// Kind returns the match kind.
func (m MatchSpec) Kind() MatchKind { return m.kind }

// Pattern returns the raw pattern text.
func (m MatchSpec) Pattern() string { return m.pattern }

// Invert reports whether the stop condition is inverted.
func (m MatchSpec) Invert() bool { return m.invert }

// Not returns a copy of m with the stop condition flipped.
func (m MatchSpec) Not() MatchSpec {
	m.invert = !m.invert
	return m
}

// String renders the spec in config shorthand, e.g. "not-regex:^ok$".
func (m MatchSpec) String() string {
	prefix := ""
	if m.invert {
		prefix = "not-"
	}
	return prefix + string(m.kind) + ":" + m.pattern
}

// Validate compiles the pattern and reports an error wrapping
// [ErrMalformedPattern] if it cannot be used.
func (m MatchSpec) Validate() error {
	_, err := m.compile()
	return err
}

// Matches evaluates the raw predicate against body, ignoring Invert.
func (m MatchSpec) Matches(body string) bool {
	match, _ := m.compile()
	return match([]byte(body))
}

// Satisfied reports whether body meets the stop condition, applying Invert.
func (m MatchSpec) Satisfied(body string) bool {
	return m.Matches(body) != m.invert
}

// compile prepares the predicate once per poll. On error the returned
// function never matches, so callers may log the error and keep polling.
func (m MatchSpec) compile() (poller.MatchFunc, error) {
	never := func([]byte) bool { return false }

	switch m.kind {
	case MatchLiteral:
		needle := m.pattern
		return func(body []byte) bool {
			return strings.Contains(string(body), needle)
		}, nil

	case MatchRegex:
		re, err := regexp.Compile(m.pattern)
		if err != nil {
			return never, fmt.Errorf("%w: regex %q: %v", ErrMalformedPattern, m.pattern, err)
		}
		return re.Match, nil

	case MatchJSON:
		want, err := jsontree.ParseString(m.pattern)
		if err != nil {
			return never, fmt.Errorf("%w: json pattern: %v", ErrMalformedPattern, err)
		}
		return func(body []byte) bool {
			got, err := jsontree.Parse(body)
			if err != nil {
				return false
			}
			return jsontree.Subset(want, got)
		}, nil

	case MatchJSONPath:
		if !jsontree.IsJSONPath(m.pattern) {
			return never, fmt.Errorf("%w: jsonpath %q must start with $", ErrMalformedPattern, m.pattern)
		}
		expr, err := jsontree.CompileJSONPath(m.pattern)
		if err != nil {
			return never, fmt.Errorf("%w: %v", ErrMalformedPattern, err)
		}
		return func(body []byte) bool {
			got, err := jsontree.Parse(body)
			if err != nil {
				return false
			}
			return len(jsontree.SelectCompiled(got, expr)) > 0
		}, nil

	default:
		return never, fmt.Errorf("%w: unknown match kind %q", ErrMalformedPattern, m.kind)
	}
}

// LiteralMatch reports whether pattern is a substring of body.
func LiteralMatch(body, pattern string) bool {
	return strings.Contains(body, pattern)
}

// RegexMatch reports whether pattern matches anywhere in body.
// An invalid pattern never matches.
func RegexMatch(body, pattern string) bool {
	return Regex(pattern).Matches(body)
}

// JSONSubsetMatch reports whether the JSON document pattern is contained in
// the JSON document body. If either side fails to parse, it reports false.
//
// Example:
//
//	pollmatch.JSONSubsetMatch(`{"a":1,"b":2}`, `{"a":1}`)         // true
//	pollmatch.JSONSubsetMatch(`[{"x":1},{"x":2}]`, `[{"x":1}]`)   // true
func JSONSubsetMatch(body, pattern string) bool {
	return JSONSubset(pattern).Matches(body)
}

// JSONPathMatch reports whether expr selects a non-null value in the JSON
// document body. Invalid JSON or an invalid expression reports false.
func JSONPathMatch(body, expr string) bool {
	return JSONPath(expr).Matches(body)
}
