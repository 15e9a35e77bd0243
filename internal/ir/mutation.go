package ir

import (
	"strconv"
	"strings"
)

// NucleotideMutation is a parsed nucleotide mutation filter such as "S:501Y"
// or "MAYBE(123A)".
type NucleotideMutation struct {
	// SequenceName is the canonical segment name.
	// Empty means the default (only) segment.
	SequenceName string `json:"sequenceName,omitempty"`

	Position int `json:"position"`

	// Symbol is the upper-cased target symbol.
	// Empty means "any symbol other than the reference".
	Symbol string `json:"symbol,omitempty"`

	// Maybe tolerates ambiguous calls when matching.
	Maybe bool `json:"maybe,omitempty"`
}

// String renders the mutation in the DSL form it was parsed from, minus the
// optional from-symbol.
func (m NucleotideMutation) String() string {
	var b strings.Builder
	if m.SequenceName != "" {
		b.WriteString(m.SequenceName)
		b.WriteByte(':')
	}
	b.WriteString(strconv.Itoa(m.Position))
	b.WriteString(m.Symbol)
	return wrapMaybe(b.String(), m.Maybe)
}

// AminoAcidMutation is a parsed amino acid mutation filter such as "S:N501Y".
type AminoAcidMutation struct {
	Gene     string `json:"gene"`
	Position int    `json:"position"`
	Symbol   string `json:"symbol,omitempty"`
	Maybe    bool   `json:"maybe,omitempty"`
}

func (m AminoAcidMutation) String() string {
	return wrapMaybe(m.Gene+":"+strconv.Itoa(m.Position)+m.Symbol, m.Maybe)
}

// NucleotideInsertion is a parsed nucleotide insertion filter such as
// "ins_seg1:123:AT?".
//
// Symbols is already normalized: every "?" became the ".*" wildcard and the
// letters are upper-cased.
type NucleotideInsertion struct {
	Position     int    `json:"position"`
	Symbols      string `json:"insertedSymbols"`
	SequenceName string `json:"sequenceName,omitempty"`
}

func (i NucleotideInsertion) String() string {
	if i.SequenceName == "" {
		return "ins_" + strconv.Itoa(i.Position) + ":" + i.Symbols
	}
	return "ins_" + i.SequenceName + ":" + strconv.Itoa(i.Position) + ":" + i.Symbols
}

// AminoAcidInsertion is a parsed amino acid insertion filter such as
// "ins_S:214:EPE".
type AminoAcidInsertion struct {
	Position int    `json:"position"`
	Gene     string `json:"gene"`
	Symbols  string `json:"insertedSymbols"`
}

func (i AminoAcidInsertion) String() string {
	return "ins_" + i.Gene + ":" + strconv.Itoa(i.Position) + ":" + i.Symbols
}

func wrapMaybe(s string, maybe bool) string {
	if maybe {
		return "MAYBE(" + s + ")"
	}
	return s
}
