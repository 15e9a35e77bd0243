package compiler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lapis/internal/ir"
	"github.com/roach88/lapis/internal/queryir"
	"github.com/roach88/lapis/internal/request"
)

func requestWith(filters ir.SequenceFilters, advanced string) request.SequenceFiltersRequest {
	return request.SequenceFiltersRequest{Filters: filters, AdvancedQuery: advanced}
}

func intPtr(n int) *int { return &n }

func TestAggregated(t *testing.T) {
	c := New(testSchema(t))

	q, err := c.Aggregated(request.AggregatedRequest{
		SequenceFiltersRequest: request.SequenceFiltersRequest{
			Filters: ir.SequenceFilters{"country": values("Switzerland")},
			OrderBy: ir.OrderByFields{Fields: []ir.OrderByField{{Field: "count", Order: ir.Descending}}},
			Limit:   intPtr(10),
		},
		Fields: []string{"date"},
	})
	require.NoError(t, err)

	assert.Equal(t, queryir.Aggregated{
		GroupByFields: []string{"date"},
		Common: queryir.Common{
			OrderByFields: []ir.OrderByField{{Field: "count", Order: ir.Descending}},
			Limit:         intPtr(10),
		},
	}, q.Action)
	assert.True(t, q.CacheEligible())
}

func TestRandomOrderBecomesRandomize(t *testing.T) {
	c := New(testSchema(t))
	seed := int64(42)

	q, err := c.Aggregated(request.AggregatedRequest{
		SequenceFiltersRequest: request.SequenceFiltersRequest{OrderBy: ir.RandomOrder{Seed: &seed}},
	})
	require.NoError(t, err)

	opts := q.Action.Options()
	assert.Empty(t, opts.OrderByFields)
	require.NotNil(t, opts.Randomize)
	assert.Equal(t, &seed, opts.Randomize.Seed)
	assert.False(t, q.CacheEligible(), "randomized queries are never cached")
}

func TestCacheEligibility(t *testing.T) {
	c := New(testSchema(t))
	r := request.SequenceFiltersRequest{}

	details, err := c.Details(request.DetailsRequest{SequenceFiltersRequest: r})
	require.NoError(t, err)
	assert.False(t, details.CacheEligible())

	muts, err := c.NucleotideMutations(request.MutationProportionsRequest{SequenceFiltersRequest: r, MinProportion: 0.05})
	require.NoError(t, err)
	assert.True(t, muts.CacheEligible())

	aaMuts, err := c.AminoAcidMutations(request.MutationProportionsRequest{SequenceFiltersRequest: r, MinProportion: 0.5})
	require.NoError(t, err)
	assert.True(t, aaMuts.CacheEligible())

	ins, err := c.NucleotideInsertions(r)
	require.NoError(t, err)
	assert.True(t, ins.CacheEligible())

	aaIns, err := c.AminoAcidInsertions(r)
	require.NoError(t, err)
	assert.True(t, aaIns.CacheEligible())

	seqs, _, err := c.NucleotideSequences(r, "", false)
	require.NoError(t, err)
	assert.False(t, seqs.CacheEligible())
}

func TestNucleotideSequences(t *testing.T) {
	c := New(testSchema(t, "L", "M", "S"))
	r := request.SequenceFiltersRequest{}

	q, names, err := c.NucleotideSequences(r, "", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"L", "M", "S"}, names)
	assert.Equal(t, queryir.Fasta{SequenceNames: []string{"L", "M", "S"}}, q.Action)

	q, names, err = c.NucleotideSequences(r, "m", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"M"}, names)
	assert.Equal(t, queryir.FastaAligned{SequenceNames: []string{"M"}}, q.Action)

	_, _, err = c.NucleotideSequences(r, "X", false)
	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "segment", ce.Field)
	assert.Equal(t, "unknown segment 'X', known values are [L, M, S]", ce.Message)
}

func TestAminoAcidSequences(t *testing.T) {
	c := New(testSchema(t))
	r := request.SequenceFiltersRequest{}

	q, gene, err := c.AminoAcidSequences(r, "orf1a")
	require.NoError(t, err)
	assert.Equal(t, "ORF1a", gene)
	assert.Equal(t, queryir.FastaAligned{SequenceNames: []string{"ORF1a"}}, q.Action)

	_, _, err = c.AminoAcidSequences(r, "N")
	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "gene", ce.Field)
}

func TestInvalidQueryIsCompileError(t *testing.T) {
	c := New(testSchema(t))

	_, err := c.NucleotideMutations(request.MutationProportionsRequest{MinProportion: 1.5})
	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "query", ce.Field)
	assert.Contains(t, ce.Message, "minProportion")
}

func TestAdvancedQueryErrorPropagates(t *testing.T) {
	c := New(testSchema(t))

	_, err := c.Details(request.DetailsRequest{SequenceFiltersRequest: requestWith(nil, "123A &")})
	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, request.PropAdvancedQuery, ce.Field)
	assert.Equal(t, 7, ce.Pos)
}
