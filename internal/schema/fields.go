package schema

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// FieldResolver maps arbitrary-case user input to canonical names.
//
// It is built once from a closed list of names and is read-only afterwards,
// so it is safe for concurrent use. Folding uses Unicode case folding rather
// than ToLower so that names compare equal exactly when they differ only in
// case.
type FieldResolver struct {
	canonical map[string]string // folded -> canonical
	names     []string          // declaration order
}

// NewFieldResolver builds a resolver. Two names that fold to the same key
// are ambiguous and rejected.
func NewFieldResolver(names []string) (*FieldResolver, error) {
	r := &FieldResolver{
		canonical: make(map[string]string, len(names)),
		names:     make([]string, 0, len(names)),
	}
	for _, n := range names {
		key := fold(n)
		if existing, dup := r.canonical[key]; dup {
			return nil, fmt.Errorf("names %q and %q differ only in case", existing, n)
		}
		r.canonical[key] = n
		r.names = append(r.names, n)
	}
	return r, nil
}

// fold returns the case-folded form of s.
// A cases.Caser is stateful and must not be shared, so one is made per call.
func fold(s string) string {
	return cases.Fold().String(s)
}

// Resolve returns the canonical spelling of name.
func (r *FieldResolver) Resolve(name string) (string, bool) {
	c, ok := r.canonical[fold(name)]
	return c, ok
}

// Names returns the canonical names in declaration order.
func (r *FieldResolver) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Len returns the number of known names.
func (r *FieldResolver) Len() int {
	return len(r.names)
}

// ResolveAll resolves every name of a closed-set selection such as
// fields=[...]. The first unknown name fails the whole selection with an
// UnknownFieldError listing the known names.
func (r *FieldResolver) ResolveAll(names []string) ([]string, error) {
	out := make([]string, 0, len(names))
	for _, n := range names {
		c, ok := r.Resolve(n)
		if !ok {
			return nil, &UnknownFieldError{Name: n, Known: r.Names()}
		}
		out = append(out, c)
	}
	return out, nil
}

// UnknownFieldError reports a name outside a closed set.
type UnknownFieldError struct {
	Name  string
	Known []string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field '%s', known values are [%s]", e.Name, strings.Join(e.Known, ", "))
}
