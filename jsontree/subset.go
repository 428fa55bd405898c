package jsontree

// Subset reports whether pattern is contained in response.
//
// The rule is recursive:
//   - a map pattern needs a map response holding every pattern key, each
//     value itself a subset
//   - a sequence pattern needs a sequence response in which every pattern
//     element is a subset of some response element; position and order are
//     ignored and one response element may satisfy several pattern elements
//   - any other pattern must equal the response exactly (see [Value.Equal])
func Subset(pattern, response Value) bool {
	switch pattern.Kind() {
	case KindMap:
		if response.Kind() != KindMap {
			return false
		}
		for k, pv := range pattern.m {
			rv, ok := response.m[k]
			if !ok || !Subset(pv, rv) {
				return false
			}
		}
		return true

	case KindSequence:
		if response.Kind() != KindSequence {
			return false
		}
		for _, pv := range pattern.seq {
			if !anySubset(pv, response.seq) {
				return false
			}
		}
		return true

	default:
		return pattern.Equal(response)
	}
}

func anySubset(pattern Value, candidates []Value) bool {
	for _, c := range candidates {
		if Subset(pattern, c) {
			return true
		}
	}
	return false
}
