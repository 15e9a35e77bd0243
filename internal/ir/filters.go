package ir

import "sort"

// SequenceFilters holds the generic metadata filters of a request:
// field name to values. A nil entry is an explicit null filter value, which
// is distinct from the field being absent.
type SequenceFilters map[string][]*string

// Keys returns the filter keys in sorted order so that IR construction is
// deterministic.
func (f SequenceFilters) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Str returns a pointer to s, for building filter values.
func Str(s string) *string {
	return &s
}
