// Package jsontree provides an immutable JSON tree and the navigation
// helpers the poll matchers and extractors are built on.
//
// The main components are:
//
//   - [Value]: tagged variant over map, sequence, string, number, bool, null
//   - [Parse]: strict single-document JSON decoding
//   - [Resolve]: dotted path lookup with numeric sequence indices and a default
//   - [Subset]: recursive JSON containment used by the JSON match kind
//   - [Select]: "$"-rooted JSONPath queries backed by ojg
//
// Example:
//
//	tree, _ := jsontree.ParseString(`{"data": {"items": [{"id": 7}]}}`)
//	id := jsontree.ResolveString(tree, "data.items.0.id", jsontree.Null())
//	fmt.Println(id.Text()) // 7
package jsontree
