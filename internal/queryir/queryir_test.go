package queryir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lapis/internal/ir"
)

func marshal(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func intPtr(i int) *int { return &i }

func TestFilterWireShapes(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   string
	}{
		{"true", True{}, `{"type":"True"}`},
		{"empty and", And{}, `{"type":"And","children":[]}`},
		{"string null", StringEquals{Column: "host"}, `{"type":"StringEquals","column":"host","value":null}`},
		{"lineage", Lineage{Column: "pangoLineage", Value: ir.Str("B.1.1.7"), IncludeSublineages: true},
			`{"type":"Lineage","column":"pangoLineage","value":"B.1.1.7","includeSublineages":true}`},
		{"open date range", DateBetween{Column: "date", From: ir.Str("2021-01-01")},
			`{"type":"DateBetween","column":"date","from":"2021-01-01","to":null}`},
		{"n-of", NOf{N: 2, MatchExactly: true, Children: []Filter{
			NucleotideEquals{Position: 1, Symbol: "A"},
			HasNucleotideMutation{SequenceName: "L", Position: 2},
		}}, `{"type":"N-Of","numberOfMatchers":2,"matchExactly":true,"children":[` +
			`{"type":"NucleotideEquals","position":1,"symbol":"A"},` +
			`{"type":"HasNucleotideMutation","sequenceName":"L","position":2}]}`},
		{"maybe", Maybe{Child: AminoAcidEquals{SequenceName: "S", Position: 501, Symbol: "Y"}},
			`{"type":"Maybe","child":{"type":"AminoAcidEquals","sequenceName":"S","position":501,"symbol":"Y"}}`},
		{"not insertion", Not{Child: InsertionContains{Position: 10, Value: "A.*"}},
			`{"type":"Not","child":{"type":"InsertionContains","position":10,"value":"A.*"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, marshal(t, tt.filter))
		})
	}
}

func TestActionWireShapes(t *testing.T) {
	seed := int64(7)

	tests := []struct {
		name   string
		action Action
		want   string
	}{
		{"aggregated", Aggregated{GroupByFields: []string{"country"}, Common: Common{Limit: intPtr(10)}},
			`{"type":"Aggregated","groupByFields":["country"],"limit":10}`},
		{"aggregated no grouping", Aggregated{}, `{"type":"Aggregated"}`},
		{"mutations ordered", Mutations{MinProportion: 0.05, Common: Common{
			OrderByFields: []ir.OrderByField{{Field: "proportion", Order: ir.Descending}},
		}}, `{"type":"Mutations","minProportion":0.05,"orderByFields":[{"field":"proportion","order":"descending"}]}`},
		{"details seeded", Details{Common: Common{Randomize: &Randomize{Seed: &seed}}},
			`{"type":"Details","randomize":{"seed":7}}`},
		{"fasta unseeded", Fasta{SequenceNames: []string{"main"}, Common: Common{Randomize: &Randomize{}, Offset: intPtr(5)}},
			`{"type":"Fasta","sequenceNames":["main"],"offset":5,"randomize":true}`},
		{"aa insertions", AminoAcidInsertions{SequenceNames: []string{"S"}},
			`{"type":"AminoAcidInsertions","sequenceNames":["S"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, marshal(t, tt.action))
		})
	}
}

func TestQueryWireShape(t *testing.T) {
	q := Query{
		Action:           Insertions{},
		FilterExpression: And{Children: []Filter{StringEquals{Column: "country", Value: ir.Str("Germany")}}},
	}
	assert.Equal(t,
		`{"action":{"type":"Insertions"},"filterExpression":{"type":"And","children":[{"type":"StringEquals","column":"country","value":"Germany"}]}}`,
		marshal(t, q))
}

func TestNewCommon(t *testing.T) {
	seed := int64(3)

	c := NewCommon(ir.OrderByFields{Fields: []ir.OrderByField{{Field: "date", Order: ir.Ascending}}}, intPtr(1), nil)
	assert.Nil(t, c.Randomize)
	assert.Len(t, c.OrderByFields, 1)
	assert.Equal(t, 1, *c.Limit)

	c = NewCommon(ir.RandomOrder{Seed: &seed}, nil, nil)
	require.NotNil(t, c.Randomize)
	assert.Equal(t, &seed, c.Randomize.Seed)
	assert.Empty(t, c.OrderByFields)
	assert.True(t, c.Randomized())
}

func TestCacheEligible(t *testing.T) {
	random := Common{Randomize: &Randomize{}}

	tests := []struct {
		action Action
		want   bool
	}{
		{Aggregated{}, true},
		{Mutations{MinProportion: 0.1}, true},
		{AminoAcidMutations{MinProportion: 0.1}, true},
		{Insertions{}, true},
		{AminoAcidInsertions{}, true},
		{Details{}, false},
		{Fasta{SequenceNames: []string{"main"}}, false},
		{FastaAligned{SequenceNames: []string{"main"}}, false},
		{Aggregated{Common: random}, false},
		{Mutations{MinProportion: 0.1, Common: random}, false},
	}
	for _, tt := range tests {
		q := Query{Action: tt.action, FilterExpression: True{}}
		assert.Equal(t, tt.want, q.CacheEligible(), "%T randomized=%v", tt.action, tt.action.Randomized())
	}

	assert.False(t, Query{}.CacheEligible())
}

func TestResponseKinds(t *testing.T) {
	assert.Equal(t, RecordResponse, Aggregated{}.Response())
	assert.Equal(t, RecordResponse, Details{}.Response())
	assert.Equal(t, MutationResponse, AminoAcidMutations{}.Response())
	assert.Equal(t, InsertionResponse, Insertions{}.Response())
}
