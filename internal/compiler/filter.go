// Package compiler turns parsed requests into downstream queries.
//
// Metadata filters are typed through the schema: each filter key resolves
// to a metadata field and a kind (equals, range bound or regex), and the
// field type picks the filter node. Mutation and insertion lists become
// sequence predicates. The optional advanced query is parsed into its own
// subtree. Everything is AND-combined; a request without any filter
// compiles to True.
package compiler

import (
	"strconv"
	"strings"
	"time"

	"github.com/roach88/lapis/internal/ir"
	"github.com/roach88/lapis/internal/queryir"
	"github.com/roach88/lapis/internal/request"
	"github.com/roach88/lapis/internal/schema"
)

// Compiler compiles requests against one schema. It holds no mutable
// state and is safe for concurrent use.
type Compiler struct {
	schema *schema.Schema
}

// New returns a Compiler for s.
func New(s *schema.Schema) *Compiler {
	return &Compiler{schema: s}
}

// fieldFilters collects the values of all filter keys that target one
// metadata field, so that field, fieldFrom and fieldTo become one node.
type fieldFilters struct {
	field  schema.MetadataField
	equals [][]*string // one entry per key spelling
	from   []*string
	to     []*string
	regex  []*string
}

// CompileFilter builds the filter expression of a request.
func (c *Compiler) CompileFilter(r request.SequenceFiltersRequest) (queryir.Filter, error) {
	var children []queryir.Filter

	metadata, err := c.metadataFilters(r.Filters)
	if err != nil {
		return nil, err
	}
	children = append(children, metadata...)

	for _, m := range r.NucleotideMutations {
		children = append(children, nucleotideMutationFilter(m))
	}
	for _, m := range r.AminoAcidMutations {
		children = append(children, aminoAcidMutationFilter(m))
	}
	for _, ins := range r.NucleotideInsertions {
		children = append(children, queryir.InsertionContains{
			SequenceName: ins.SequenceName,
			Position:     ins.Position,
			Value:        ins.Symbols,
		})
	}
	for _, ins := range r.AminoAcidInsertions {
		children = append(children, queryir.AminoAcidInsertionContains{
			SequenceName: ins.Gene,
			Position:     ins.Position,
			Value:        ins.Symbols,
		})
	}

	if strings.TrimSpace(r.AdvancedQuery) != "" {
		f, err := c.ParseAdvancedQuery(r.AdvancedQuery)
		if err != nil {
			return nil, err
		}
		children = append(children, f)
	}

	if len(children) == 0 {
		return queryir.True{}, nil
	}
	return queryir.And{Children: children}, nil
}

func (c *Compiler) metadataFilters(filters ir.SequenceFilters) ([]queryir.Filter, error) {
	var out []queryir.Filter
	byField := map[string]*fieldFilters{}
	var order []string

	for _, key := range filters.Keys() {
		values := filters[key]
		fk, ok := c.schema.FilterKey(key)
		if !ok {
			// Unknown keys are forwarded; the engine reports the unknown column.
			out = append(out, anyOf(stringEquals(key, values)))
			continue
		}

		ff := byField[fk.Field.Name]
		if ff == nil {
			ff = &fieldFilters{field: fk.Field}
			byField[fk.Field.Name] = ff
			order = append(order, fk.Field.Name)
		}
		switch fk.Kind {
		case schema.KindEquals:
			ff.equals = append(ff.equals, values)
		case schema.KindFrom:
			ff.from = append(ff.from, values...)
		case schema.KindTo:
			ff.to = append(ff.to, values...)
		case schema.KindRegex:
			ff.regex = append(ff.regex, values...)
		}
	}

	for _, name := range order {
		nodes, err := byField[name].compile()
		if err != nil {
			return nil, err
		}
		out = append(out, nodes...)
	}
	return out, nil
}

func (ff *fieldFilters) compile() ([]queryir.Filter, error) {
	f := ff.field
	var out []queryir.Filter

	// An exact date may not be combined with a date range.
	if f.Type == schema.TypeDate && len(ff.equals) > 0 && (len(ff.from) > 0 || len(ff.to) > 0) {
		return nil, compileErr(f.Name, "cannot combine %s with %s or %s", f.Name, f.Name+schema.SuffixFrom, f.Name+schema.SuffixTo)
	}

	for _, values := range ff.equals {
		var nodes []queryir.Filter
		var err error
		switch f.Type {
		case schema.TypeString:
			nodes = stringEquals(f.Name, values)
		case schema.TypePangoLineage:
			nodes = lineageEquals(f.Name, values)
		case schema.TypeDate:
			nodes, err = dateEquals(f.Name, values)
		case schema.TypeInt:
			nodes, err = intEquals(f.Name, values)
		case schema.TypeFloat:
			nodes, err = floatEquals(f.Name, values)
		case schema.TypeBoolean:
			nodes, err = booleanEquals(f.Name, values)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, anyOf(nodes))
	}

	if len(ff.from) > 0 || len(ff.to) > 0 {
		from, err := single(f.Name+schema.SuffixFrom, ff.from)
		if err != nil {
			return nil, err
		}
		to, err := single(f.Name+schema.SuffixTo, ff.to)
		if err != nil {
			return nil, err
		}
		node, err := between(f, from, to)
		if err != nil {
			return nil, err
		}
		out = append(out, node)
	}

	if len(ff.regex) > 0 {
		var nodes []queryir.Filter
		for _, v := range ff.regex {
			if v == nil {
				return nil, compileErr(f.Name+schema.SuffixRegex, "null is not a regular expression")
			}
			nodes = append(nodes, queryir.StringSearch{Column: f.Name, SearchExpression: *v})
		}
		out = append(out, anyOf(nodes))
	}
	return out, nil
}

// anyOf is the node itself for one value and an Or otherwise. An empty
// value list yields an empty Or, which matches nothing.
func anyOf(nodes []queryir.Filter) queryir.Filter {
	if len(nodes) == 1 {
		return nodes[0]
	}
	return queryir.Or{Children: nodes}
}

// single returns the one non-null bound of a range key.
func single(key string, values []*string) (*string, error) {
	var out *string
	for _, v := range values {
		if v == nil {
			continue
		}
		if out != nil {
			return nil, compileErr(key, "expected a single value")
		}
		out = v
	}
	return out, nil
}

func stringEquals(column string, values []*string) []queryir.Filter {
	nodes := make([]queryir.Filter, 0, len(values))
	for _, v := range values {
		nodes = append(nodes, queryir.StringEquals{Column: column, Value: v})
	}
	return nodes
}

// lineageEquals maps lineage values; a trailing "*" or ".*" includes
// sublineages.
func lineageEquals(column string, values []*string) []queryir.Filter {
	nodes := make([]queryir.Filter, 0, len(values))
	for _, v := range values {
		node := queryir.Lineage{Column: column}
		if v != nil {
			s := *v
			switch {
			case strings.HasSuffix(s, ".*"):
				s, node.IncludeSublineages = strings.TrimSuffix(s, ".*"), true
			case strings.HasSuffix(s, "*"):
				s, node.IncludeSublineages = strings.TrimSuffix(s, "*"), true
			}
			node.Value = &s
		}
		nodes = append(nodes, node)
	}
	return nodes
}

func parseDate(key, s string) (string, error) {
	if _, err := time.Parse(time.DateOnly, s); err != nil {
		return "", compileErr(key, "'%s' is not a date in the format YYYY-MM-DD", s)
	}
	return s, nil
}

func dateEquals(column string, values []*string) ([]queryir.Filter, error) {
	nodes := make([]queryir.Filter, 0, len(values))
	for _, v := range values {
		if v == nil {
			return nil, compileErr(column, "null is not supported for date filters")
		}
		d, err := parseDate(column, *v)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, queryir.DateBetween{Column: column, From: &d, To: &d})
	}
	return nodes, nil
}

func intEquals(column string, values []*string) ([]queryir.Filter, error) {
	nodes := make([]queryir.Filter, 0, len(values))
	for _, v := range values {
		n, err := optionalInt(column, v)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, queryir.IntEquals{Column: column, Value: n})
	}
	return nodes, nil
}

func floatEquals(column string, values []*string) ([]queryir.Filter, error) {
	nodes := make([]queryir.Filter, 0, len(values))
	for _, v := range values {
		f, err := optionalFloat(column, v)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, queryir.FloatEquals{Column: column, Value: f})
	}
	return nodes, nil
}

func booleanEquals(column string, values []*string) ([]queryir.Filter, error) {
	nodes := make([]queryir.Filter, 0, len(values))
	for _, v := range values {
		node := queryir.BooleanEquals{Column: column}
		if v != nil {
			b, err := strconv.ParseBool(strings.ToLower(*v))
			if err != nil {
				return nil, compileErr(column, "'%s' is not a boolean", *v)
			}
			node.Value = &b
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func optionalInt(key string, v *string) (*int64, error) {
	if v == nil {
		return nil, nil
	}
	n, err := strconv.ParseInt(*v, 10, 64)
	if err != nil {
		return nil, compileErr(key, "'%s' is not an integer", *v)
	}
	return &n, nil
}

func optionalFloat(key string, v *string) (*float64, error) {
	if v == nil {
		return nil, nil
	}
	f, err := strconv.ParseFloat(*v, 64)
	if err != nil {
		return nil, compileErr(key, "'%s' is not a number", *v)
	}
	return &f, nil
}

func between(f schema.MetadataField, from, to *string) (queryir.Filter, error) {
	fromKey, toKey := f.Name+schema.SuffixFrom, f.Name+schema.SuffixTo
	switch f.Type {
	case schema.TypeDate:
		node := queryir.DateBetween{Column: f.Name}
		if from != nil {
			d, err := parseDate(fromKey, *from)
			if err != nil {
				return nil, err
			}
			node.From = &d
		}
		if to != nil {
			d, err := parseDate(toKey, *to)
			if err != nil {
				return nil, err
			}
			node.To = &d
		}
		return node, nil
	case schema.TypeInt:
		lo, err := optionalInt(fromKey, from)
		if err != nil {
			return nil, err
		}
		hi, err := optionalInt(toKey, to)
		if err != nil {
			return nil, err
		}
		return queryir.IntBetween{Column: f.Name, From: lo, To: hi}, nil
	case schema.TypeFloat:
		lo, err := optionalFloat(fromKey, from)
		if err != nil {
			return nil, err
		}
		hi, err := optionalFloat(toKey, to)
		if err != nil {
			return nil, err
		}
		return queryir.FloatBetween{Column: f.Name, From: lo, To: hi}, nil
	default:
		return nil, compileErr(fromKey, "field '%s' of type %s has no range filter", f.Name, f.Type)
	}
}

func nucleotideMutationFilter(m ir.NucleotideMutation) queryir.Filter {
	var node queryir.Filter
	if m.Symbol == "" {
		node = queryir.HasNucleotideMutation{SequenceName: m.SequenceName, Position: m.Position}
	} else {
		node = queryir.NucleotideEquals{SequenceName: m.SequenceName, Position: m.Position, Symbol: m.Symbol}
	}
	if m.Maybe {
		return queryir.Maybe{Child: node}
	}
	return node
}

func aminoAcidMutationFilter(m ir.AminoAcidMutation) queryir.Filter {
	var node queryir.Filter
	if m.Symbol == "" {
		node = queryir.HasAminoAcidMutation{SequenceName: m.Gene, Position: m.Position}
	} else {
		node = queryir.AminoAcidEquals{SequenceName: m.Gene, Position: m.Position, Symbol: m.Symbol}
	}
	if m.Maybe {
		return queryir.Maybe{Child: node}
	}
	return node
}
