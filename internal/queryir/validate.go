package queryir

import (
	"fmt"
	"time"
)

// ValidationResult lists structural problems of a query.
type ValidationResult struct {
	// Valid is true when Problems is empty.
	Valid bool

	// Problems describes each violated rule, in traversal order.
	Problems []string
}

// Validate checks a query for structural problems the downstream engine
// would reject or silently misread:
//  1. Action and filter are present; combinators have no nil children
//  2. Columns are named and positions are 1-based
//  3. Range bounds are ordered and dates are YYYY-MM-DD
//  4. N-Of counts are not negative
//  5. Randomized actions carry no order-by fields
//  6. Mutation proportions lie in (0, 1]
//
// Validate is a pure function with no side effects.
func Validate(q Query) ValidationResult {
	v := &validator{
		problems: []string{},
	}
	v.validateAction(q.Action)
	v.validateFilter(q.FilterExpression)

	return ValidationResult{
		Valid:    len(v.problems) == 0,
		Problems: v.problems,
	}
}

// validator accumulates problems during traversal.
type validator struct {
	problems []string
}

func (v *validator) add(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateAction(a Action) {
	if a == nil {
		v.add("missing action")
		return
	}

	c := a.Options()
	if c.Randomize != nil && len(c.OrderByFields) > 0 {
		v.add("randomized action must not have orderByFields")
	}
	if c.Limit != nil && *c.Limit < 0 {
		v.add("limit must not be negative")
	}
	if c.Offset != nil && *c.Offset < 0 {
		v.add("offset must not be negative")
	}
	for _, o := range c.OrderByFields {
		if o.Field == "" {
			v.add("orderByFields: empty field name")
		}
	}

	switch act := a.(type) {
	case Aggregated:
		v.checkNames("groupByFields", act.GroupByFields)
	case Details:
		v.checkNames("fields", act.Fields)
	case Mutations:
		v.checkProportion(act.MinProportion)
	case AminoAcidMutations:
		v.checkProportion(act.MinProportion)
	case Insertions, AminoAcidInsertions:
	case Fasta:
		if len(act.SequenceNames) == 0 {
			v.add("Fasta: at least one sequence name is required")
		}
	case FastaAligned:
		if len(act.SequenceNames) == 0 {
			v.add("FastaAligned: at least one sequence name is required")
		}
	default:
		v.add("unknown action type: %T", a)
	}
}

func (v *validator) checkNames(what string, names []string) {
	for _, n := range names {
		if n == "" {
			v.add("%s: empty field name", what)
		}
	}
}

func (v *validator) checkProportion(p float64) {
	if p <= 0 || p > 1 {
		v.add("minProportion must be in (0, 1], got %v", p)
	}
}

func (v *validator) validateFilter(f Filter) {
	if f == nil {
		v.add("missing filter expression")
		return
	}

	switch node := f.(type) {
	case True:
	case And:
		v.validateChildren("And", node.Children)
	case Or:
		v.validateChildren("Or", node.Children)
	case Not:
		v.validateChild("Not", node.Child)
	case Maybe:
		v.validateChild("Maybe", node.Child)
	case NOf:
		if node.N < 0 {
			v.add("N-Of: numberOfMatchers must not be negative, got %d", node.N)
		}
		v.validateChildren("N-Of", node.Children)
	case StringEquals:
		v.checkColumn("StringEquals", node.Column)
	case StringSearch:
		v.checkColumn("StringSearch", node.Column)
	case Lineage:
		v.checkColumn("Lineage", node.Column)
	case DateBetween:
		v.checkColumn("DateBetween", node.Column)
		v.checkDate(node.Column, node.From)
		v.checkDate(node.Column, node.To)
		if node.From != nil && node.To != nil && *node.From > *node.To {
			v.add("DateBetween %s: from %s is after to %s", node.Column, *node.From, *node.To)
		}
	case IntEquals:
		v.checkColumn("IntEquals", node.Column)
	case IntBetween:
		v.checkColumn("IntBetween", node.Column)
		if node.From != nil && node.To != nil && *node.From > *node.To {
			v.add("IntBetween %s: from %d is greater than to %d", node.Column, *node.From, *node.To)
		}
	case FloatEquals:
		v.checkColumn("FloatEquals", node.Column)
	case FloatBetween:
		v.checkColumn("FloatBetween", node.Column)
		if node.From != nil && node.To != nil && *node.From > *node.To {
			v.add("FloatBetween %s: from %v is greater than to %v", node.Column, *node.From, *node.To)
		}
	case BooleanEquals:
		v.checkColumn("BooleanEquals", node.Column)
	case NucleotideEquals:
		v.checkPosition("NucleotideEquals", node.Position)
	case HasNucleotideMutation:
		v.checkPosition("HasNucleotideMutation", node.Position)
	case AminoAcidEquals:
		v.checkColumn("AminoAcidEquals", node.SequenceName)
		v.checkPosition("AminoAcidEquals", node.Position)
	case HasAminoAcidMutation:
		v.checkColumn("HasAminoAcidMutation", node.SequenceName)
		v.checkPosition("HasAminoAcidMutation", node.Position)
	case InsertionContains:
		v.checkPosition("InsertionContains", node.Position)
	case AminoAcidInsertionContains:
		v.checkColumn("AminoAcidInsertionContains", node.SequenceName)
		v.checkPosition("AminoAcidInsertionContains", node.Position)
	default:
		v.add("unknown filter type: %T", f)
	}
}

func (v *validator) validateChildren(kind string, children []Filter) {
	for i, c := range children {
		if c == nil {
			v.add("%s: child %d is nil", kind, i)
			continue
		}
		v.validateFilter(c)
	}
}

func (v *validator) validateChild(kind string, child Filter) {
	if child == nil {
		v.add("%s: missing child", kind)
		return
	}
	v.validateFilter(child)
}

func (v *validator) checkColumn(kind, column string) {
	if column == "" {
		v.add("%s: empty column", kind)
	}
}

func (v *validator) checkPosition(kind string, pos int) {
	if pos <= 0 {
		v.add("%s: position must be positive, got %d", kind, pos)
	}
}

func (v *validator) checkDate(column string, d *string) {
	if d == nil {
		return
	}
	if _, err := time.Parse(time.DateOnly, *d); err != nil {
		v.add("DateBetween %s: '%s' is not a YYYY-MM-DD date", column, *d)
	}
}
