package queryir

import (
	"encoding/json"

	"github.com/roach88/lapis/internal/ir"
)

// Action is the query kind sent to the downstream engine, with its
// parameters.
//
// This is a sealed interface - only types in this package implement it.
//
// Action types:
//   - Aggregated: count sequences, grouped by fields
//   - Mutations, AminoAcidMutations: mutation proportions
//   - Details: metadata rows
//   - Insertions, AminoAcidInsertions: insertion counts
//   - Fasta, FastaAligned: raw sequences
//
// Each action knows whether its result may be cached and which response
// row type the engine answers with.
type Action interface {
	actionNode() // Marker method - seals interface to this package

	// Cacheable reports whether results of this action kind may be
	// memoized. A randomized action is never cached regardless.
	Cacheable() bool

	// Randomized reports whether the engine is asked to shuffle.
	Randomized() bool

	// Response is the row type of the engine's answer.
	Response() ResponseKind

	// Options returns the ordering and pagination shared by all actions.
	Options() Common
}

// ResponseKind names the row type of an action's response.
type ResponseKind int

const (
	// RecordResponse rows are free-form objects (aggregated counts,
	// details, sequences).
	RecordResponse ResponseKind = iota
	// MutationResponse rows are MutationData.
	MutationResponse
	// InsertionResponse rows are InsertionData.
	InsertionResponse
)

// Randomize asks the engine for a random order. A nil Seed is an
// unseeded shuffle.
type Randomize struct {
	Seed *int64
}

// MarshalJSON writes true for an unseeded shuffle and {"seed": n}
// otherwise.
func (r Randomize) MarshalJSON() ([]byte, error) {
	if r.Seed == nil {
		return []byte("true"), nil
	}
	return json.Marshal(struct {
		Seed int64 `json:"seed"`
	}{*r.Seed})
}

// Common holds the ordering and pagination fields of every action.
// Randomize is nil unless a random order was requested; OrderByFields is
// then empty.
type Common struct {
	OrderByFields []ir.OrderByField `json:"orderByFields,omitempty"`
	Limit         *int              `json:"limit,omitempty"`
	Offset        *int              `json:"offset,omitempty"`
	Randomize     *Randomize        `json:"randomize,omitempty"`
}

// NewCommon builds the shared action fields from a resolved ordering.
// A random ordering contributes no order-by fields and sets Randomize.
func NewCommon(order ir.OrderBySpec, limit, offset *int) Common {
	c := Common{Limit: limit, Offset: offset}
	switch o := order.(type) {
	case ir.OrderByFields:
		c.OrderByFields = o.Fields
	case ir.RandomOrder:
		c.Randomize = &Randomize{Seed: o.Seed}
	case nil:
	}
	return c
}

func (c Common) Randomized() bool { return c.Randomize != nil }

func (c Common) Options() Common { return c }

// Aggregated counts matching sequences, grouped by GroupByFields.
type Aggregated struct {
	GroupByFields []string
	Common
}

func (Aggregated) actionNode()            {}
func (Aggregated) Cacheable() bool        { return true }
func (Aggregated) Response() ResponseKind { return RecordResponse }

func (a Aggregated) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type          string   `json:"type"`
		GroupByFields []string `json:"groupByFields,omitempty"`
		Common
	}{"Aggregated", a.GroupByFields, a.Common})
}

// Mutations computes nucleotide mutation proportions. Empty SequenceNames
// means all segments.
type Mutations struct {
	MinProportion float64
	SequenceNames []string
	Common
}

func (Mutations) actionNode()            {}
func (Mutations) Cacheable() bool        { return true }
func (Mutations) Response() ResponseKind { return MutationResponse }

func (a Mutations) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type          string   `json:"type"`
		MinProportion float64  `json:"minProportion"`
		SequenceNames []string `json:"sequenceNames,omitempty"`
		Common
	}{"Mutations", a.MinProportion, a.SequenceNames, a.Common})
}

// AminoAcidMutations computes amino acid mutation proportions. Empty
// SequenceNames means all genes.
type AminoAcidMutations struct {
	MinProportion float64
	SequenceNames []string
	Common
}

func (AminoAcidMutations) actionNode()            {}
func (AminoAcidMutations) Cacheable() bool        { return true }
func (AminoAcidMutations) Response() ResponseKind { return MutationResponse }

func (a AminoAcidMutations) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type          string   `json:"type"`
		MinProportion float64  `json:"minProportion"`
		SequenceNames []string `json:"sequenceNames,omitempty"`
		Common
	}{"AminoAcidMutations", a.MinProportion, a.SequenceNames, a.Common})
}

// Details lists metadata of matching sequences. Empty Fields means all.
type Details struct {
	Fields []string
	Common
}

func (Details) actionNode()            {}
func (Details) Cacheable() bool        { return false }
func (Details) Response() ResponseKind { return RecordResponse }

func (a Details) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type   string   `json:"type"`
		Fields []string `json:"fields,omitempty"`
		Common
	}{"Details", a.Fields, a.Common})
}

// Insertions counts nucleotide insertions.
type Insertions struct {
	SequenceNames []string
	Common
}

func (Insertions) actionNode()            {}
func (Insertions) Cacheable() bool        { return true }
func (Insertions) Response() ResponseKind { return InsertionResponse }

func (a Insertions) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type          string   `json:"type"`
		SequenceNames []string `json:"sequenceNames,omitempty"`
		Common
	}{"Insertions", a.SequenceNames, a.Common})
}

// AminoAcidInsertions counts amino acid insertions.
type AminoAcidInsertions struct {
	SequenceNames []string
	Common
}

func (AminoAcidInsertions) actionNode()            {}
func (AminoAcidInsertions) Cacheable() bool        { return true }
func (AminoAcidInsertions) Response() ResponseKind { return InsertionResponse }

func (a AminoAcidInsertions) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type          string   `json:"type"`
		SequenceNames []string `json:"sequenceNames,omitempty"`
		Common
	}{"AminoAcidInsertions", a.SequenceNames, a.Common})
}

// Fasta returns unaligned nucleotide sequences. Each row holds the primary
// key and one field per requested sequence name.
type Fasta struct {
	SequenceNames []string
	Common
}

func (Fasta) actionNode()            {}
func (Fasta) Cacheable() bool        { return false }
func (Fasta) Response() ResponseKind { return RecordResponse }

func (a Fasta) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type          string   `json:"type"`
		SequenceNames []string `json:"sequenceNames"`
		Common
	}{"Fasta", a.SequenceNames, a.Common})
}

// FastaAligned returns aligned nucleotide or amino acid sequences.
type FastaAligned struct {
	SequenceNames []string
	Common
}

func (FastaAligned) actionNode()            {}
func (FastaAligned) Cacheable() bool        { return false }
func (FastaAligned) Response() ResponseKind { return RecordResponse }

func (a FastaAligned) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type          string   `json:"type"`
		SequenceNames []string `json:"sequenceNames"`
		Common
	}{"FastaAligned", a.SequenceNames, a.Common})
}

// Query is the unit sent to the downstream engine and the unit of caching.
type Query struct {
	Action           Action `json:"action"`
	FilterExpression Filter `json:"filterExpression"`
}

// CacheEligible reports whether the query result may be served from or
// stored in the cache: the action kind must be cacheable and the order
// must not be random.
func (q Query) CacheEligible() bool {
	return q.Action != nil && q.Action.Cacheable() && !q.Action.Randomized()
}
