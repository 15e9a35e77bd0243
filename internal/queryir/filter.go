package queryir

import "encoding/json"

// Filter is a node of the filter expression tree sent to the downstream
// engine.
//
// This is a sealed interface - only types in this package implement it.
// Consumers switch exhaustively over the variants; adding a variant breaks
// every switch that does not handle it yet.
//
// Combinators:
//   - True: matches every sequence
//   - And, Or: all / any children match
//   - Not: the child does not match
//   - Maybe: the child matches when ambiguous symbols are read as matching
//   - NOf: at least (or exactly) N children match
//
// Metadata predicates:
//   - StringEquals, StringSearch, Lineage, DateBetween
//   - IntEquals, IntBetween, FloatEquals, FloatBetween, BooleanEquals
//
// Sequence predicates:
//   - NucleotideEquals, HasNucleotideMutation
//   - AminoAcidEquals, HasAminoAcidMutation
//   - InsertionContains, AminoAcidInsertionContains
//
// Every node serializes to an object with a "type" discriminator. Nodes are
// values; a built tree is never modified.
type Filter interface {
	filterNode() // Marker method - seals interface to this package
}

// True matches every sequence. It is the filter of a request without
// filters.
type True struct{}

func (True) filterNode() {}

func (True) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
	}{"True"})
}

// And matches when all children match.
type And struct {
	Children []Filter
}

func (And) filterNode() {}

func (f And) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     string   `json:"type"`
		Children []Filter `json:"children"`
	}{"And", nonNil(f.Children)})
}

// Or matches when any child matches.
type Or struct {
	Children []Filter
}

func (Or) filterNode() {}

func (f Or) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     string   `json:"type"`
		Children []Filter `json:"children"`
	}{"Or", nonNil(f.Children)})
}

// Not inverts its child.
type Not struct {
	Child Filter
}

func (Not) filterNode() {}

func (f Not) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type  string `json:"type"`
		Child Filter `json:"child"`
	}{"Not", f.Child})
}

// Maybe evaluates its child treating ambiguous symbols as possible matches.
type Maybe struct {
	Child Filter
}

func (Maybe) filterNode() {}

func (f Maybe) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type  string `json:"type"`
		Child Filter `json:"child"`
	}{"Maybe", f.Child})
}

// NOf matches when at least N children match, or exactly N with
// MatchExactly.
type NOf struct {
	N            int
	MatchExactly bool
	Children     []Filter
}

func (NOf) filterNode() {}

func (f NOf) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type             string   `json:"type"`
		NumberOfMatchers int      `json:"numberOfMatchers"`
		MatchExactly     bool     `json:"matchExactly"`
		Children         []Filter `json:"children"`
	}{"N-Of", f.N, f.MatchExactly, nonNil(f.Children)})
}

// StringEquals compares a string column. A nil Value matches null.
type StringEquals struct {
	Column string
	Value  *string
}

func (StringEquals) filterNode() {}

func (f StringEquals) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type   string  `json:"type"`
		Column string  `json:"column"`
		Value  *string `json:"value"`
	}{"StringEquals", f.Column, f.Value})
}

// StringSearch matches a string column against a regular expression.
type StringSearch struct {
	Column           string
	SearchExpression string
}

func (StringSearch) filterNode() {}

func (f StringSearch) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type             string `json:"type"`
		Column           string `json:"column"`
		SearchExpression string `json:"searchExpression"`
	}{"StringSearch", f.Column, f.SearchExpression})
}

// Lineage matches a lineage column, optionally including all sublineages.
// A nil Value matches null.
type Lineage struct {
	Column             string
	Value              *string
	IncludeSublineages bool
}

func (Lineage) filterNode() {}

func (f Lineage) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type               string  `json:"type"`
		Column             string  `json:"column"`
		Value              *string `json:"value"`
		IncludeSublineages bool    `json:"includeSublineages"`
	}{"Lineage", f.Column, f.Value, f.IncludeSublineages})
}

// DateBetween matches dates in [From, To]. A nil bound is open.
// Dates are YYYY-MM-DD.
type DateBetween struct {
	Column string
	From   *string
	To     *string
}

func (DateBetween) filterNode() {}

func (f DateBetween) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type   string  `json:"type"`
		Column string  `json:"column"`
		From   *string `json:"from"`
		To     *string `json:"to"`
	}{"DateBetween", f.Column, f.From, f.To})
}

// IntEquals compares an int column. A nil Value matches null.
type IntEquals struct {
	Column string
	Value  *int64
}

func (IntEquals) filterNode() {}

func (f IntEquals) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type   string `json:"type"`
		Column string `json:"column"`
		Value  *int64 `json:"value"`
	}{"IntEquals", f.Column, f.Value})
}

// IntBetween matches ints in [From, To]. A nil bound is open.
type IntBetween struct {
	Column string
	From   *int64
	To     *int64
}

func (IntBetween) filterNode() {}

func (f IntBetween) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type   string `json:"type"`
		Column string `json:"column"`
		From   *int64 `json:"from"`
		To     *int64 `json:"to"`
	}{"IntBetween", f.Column, f.From, f.To})
}

// FloatEquals compares a float column. A nil Value matches null.
type FloatEquals struct {
	Column string
	Value  *float64
}

func (FloatEquals) filterNode() {}

func (f FloatEquals) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type   string   `json:"type"`
		Column string   `json:"column"`
		Value  *float64 `json:"value"`
	}{"FloatEquals", f.Column, f.Value})
}

// FloatBetween matches floats in [From, To]. A nil bound is open.
type FloatBetween struct {
	Column string
	From   *float64
	To     *float64
}

func (FloatBetween) filterNode() {}

func (f FloatBetween) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type   string   `json:"type"`
		Column string   `json:"column"`
		From   *float64 `json:"from"`
		To     *float64 `json:"to"`
	}{"FloatBetween", f.Column, f.From, f.To})
}

// BooleanEquals compares a boolean column. A nil Value matches null.
type BooleanEquals struct {
	Column string
	Value  *bool
}

func (BooleanEquals) filterNode() {}

func (f BooleanEquals) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type   string `json:"type"`
		Column string `json:"column"`
		Value  *bool  `json:"value"`
	}{"BooleanEquals", f.Column, f.Value})
}

// NucleotideEquals matches a nucleotide symbol at a position. Symbol "."
// is the reference symbol. An empty SequenceName is the default segment.
type NucleotideEquals struct {
	SequenceName string
	Position     int
	Symbol       string
}

func (NucleotideEquals) filterNode() {}

func (f NucleotideEquals) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type         string `json:"type"`
		SequenceName string `json:"sequenceName,omitempty"`
		Position     int    `json:"position"`
		Symbol       string `json:"symbol"`
	}{"NucleotideEquals", f.SequenceName, f.Position, f.Symbol})
}

// HasNucleotideMutation matches any symbol other than the reference.
type HasNucleotideMutation struct {
	SequenceName string
	Position     int
}

func (HasNucleotideMutation) filterNode() {}

func (f HasNucleotideMutation) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type         string `json:"type"`
		SequenceName string `json:"sequenceName,omitempty"`
		Position     int    `json:"position"`
	}{"HasNucleotideMutation", f.SequenceName, f.Position})
}

// AminoAcidEquals matches an amino acid symbol at a position of a gene.
type AminoAcidEquals struct {
	SequenceName string
	Position     int
	Symbol       string
}

func (AminoAcidEquals) filterNode() {}

func (f AminoAcidEquals) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type         string `json:"type"`
		SequenceName string `json:"sequenceName"`
		Position     int    `json:"position"`
		Symbol       string `json:"symbol"`
	}{"AminoAcidEquals", f.SequenceName, f.Position, f.Symbol})
}

// HasAminoAcidMutation matches any amino acid other than the reference.
type HasAminoAcidMutation struct {
	SequenceName string
	Position     int
}

func (HasAminoAcidMutation) filterNode() {}

func (f HasAminoAcidMutation) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type         string `json:"type"`
		SequenceName string `json:"sequenceName"`
		Position     int    `json:"position"`
	}{"HasAminoAcidMutation", f.SequenceName, f.Position})
}

// InsertionContains matches nucleotide insertions at Position whose symbols
// match the regular expression Value.
type InsertionContains struct {
	SequenceName string
	Position     int
	Value        string
}

func (InsertionContains) filterNode() {}

func (f InsertionContains) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type         string `json:"type"`
		SequenceName string `json:"sequenceName,omitempty"`
		Position     int    `json:"position"`
		Value        string `json:"value"`
	}{"InsertionContains", f.SequenceName, f.Position, f.Value})
}

// AminoAcidInsertionContains is InsertionContains for a gene.
type AminoAcidInsertionContains struct {
	SequenceName string
	Position     int
	Value        string
}

func (AminoAcidInsertionContains) filterNode() {}

func (f AminoAcidInsertionContains) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type         string `json:"type"`
		SequenceName string `json:"sequenceName"`
		Position     int    `json:"position"`
		Value        string `json:"value"`
	}{"AminoAcidInsertionContains", f.SequenceName, f.Position, f.Value})
}

func nonNil(children []Filter) []Filter {
	if children == nil {
		return []Filter{}
	}
	return children
}
