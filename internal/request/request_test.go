package request

import (
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lapis/internal/ir"
	"github.com/roach88/lapis/internal/schema"
)

func testParser(t *testing.T) *Parser {
	t.Helper()
	s, err := schema.New("test", "primaryKey", []schema.MetadataField{
		{Name: "primaryKey", Type: schema.TypeString},
		{Name: "date", Type: schema.TypeDate},
		{Name: "country", Type: schema.TypeString},
		{Name: "pangoLineage", Type: schema.TypePangoLineage},
		{Name: "age", Type: schema.TypeInt},
	}, []string{"main"}, []string{"S", "ORF1a"})
	require.NoError(t, err)

	p, err := NewParser(s)
	require.NoError(t, err)
	return p
}

func mustJSON(t *testing.T, body string) Properties {
	t.Helper()
	props, err := FromJSON([]byte(body))
	require.NoError(t, err)
	return props
}

func TestOnlyGenericFilters(t *testing.T) {
	p := testParser(t)

	r, err := p.ParseSequenceFilters(mustJSON(t, `{"country": ["Switzerland", "Germany"]}`), p.Schema().Fields())
	require.NoError(t, err)

	assert.Equal(t, ir.SequenceFilters{"country": {ir.Str("Switzerland"), ir.Str("Germany")}}, r.Filters)
	assert.Empty(t, r.NucleotideMutations)
	assert.Empty(t, r.AminoAcidMutations)
	assert.Empty(t, r.NucleotideInsertions)
	assert.Empty(t, r.AminoAcidInsertions)
	assert.Equal(t, ir.NoOrder(), r.OrderBy)
	assert.Nil(t, r.Limit)
	assert.Nil(t, r.Offset)
}

func TestGenericFilterCoercion(t *testing.T) {
	props := mustJSON(t, `{"country": "Germany", "age": 42, "isRevoked": true, "host": null, "list": ["a", null, 1.5]}`)

	filters, err := props.Generic()
	require.NoError(t, err)

	assert.Equal(t, ir.SequenceFilters{
		"country":   {ir.Str("Germany")},
		"age":       {ir.Str("42")},
		"isRevoked": {ir.Str("true")},
		"host":      {nil},
		"list":      {ir.Str("a"), nil, ir.Str("1.5")},
	}, filters)
}

func TestGenericFilterRejectsNesting(t *testing.T) {
	for _, body := range []string{
		`{"country": [["Germany"]]}`,
		`{"country": {"eq": "Germany"}}`,
		`{"country": [{"eq": "Germany"}]}`,
	} {
		_, err := mustJSON(t, body).Generic()
		require.Error(t, err, body)

		var bad *BadRequestError
		require.True(t, errors.As(err, &bad))
		assert.Equal(t, "country", bad.Property)
	}
}

func TestReservedPropertiesAreNotFilters(t *testing.T) {
	p := testParser(t)

	r, err := p.ParseSequenceFilters(mustJSON(t, `{
		"country": "Germany",
		"nucleotideMutations": ["123A", "MAYBE(C5T)"],
		"aminoAcidMutations": ["s:501y"],
		"nucleotideInsertions": ["ins_10:A?"],
		"aminoAcidInsertions": ["ins_S:214:EPE"],
		"orderBy": [{"field": "date", "type": "descending"}],
		"limit": 10,
		"offset": 5,
		"dataFormat": "csv",
		"downloadAsFile": true,
		"downloadFileBasename": "result",
		"compression": "GZIP",
		"accessKey": "secret",
		"advancedQuery": "123A & country=Germany"
	}`), p.Schema().Fields())
	require.NoError(t, err)

	assert.Equal(t, ir.SequenceFilters{"country": {ir.Str("Germany")}}, r.Filters)
	assert.Equal(t, []ir.NucleotideMutation{
		{Position: 123, Symbol: "A"},
		{Position: 5, Symbol: "T", Maybe: true},
	}, r.NucleotideMutations)
	assert.Equal(t, []ir.AminoAcidMutation{{Gene: "S", Position: 501, Symbol: "Y"}}, r.AminoAcidMutations)
	assert.Equal(t, []ir.NucleotideInsertion{{Position: 10, Symbols: "A.*"}}, r.NucleotideInsertions)
	assert.Equal(t, []ir.AminoAcidInsertion{{Position: 214, Gene: "S", Symbols: "EPE"}}, r.AminoAcidInsertions)
	assert.Equal(t, ir.OrderByFields{Fields: []ir.OrderByField{{Field: "date", Order: ir.Descending}}}, r.OrderBy)
	require.NotNil(t, r.Limit)
	assert.Equal(t, 10, *r.Limit)
	require.NotNil(t, r.Offset)
	assert.Equal(t, 5, *r.Offset)
	assert.Equal(t, Output{
		DataFormat:           "csv",
		DownloadAsFile:       true,
		DownloadFileBasename: "result",
		Compression:          CompressionGzip,
	}, r.Output)
	assert.Equal(t, "secret", r.AccessKey)
	assert.Equal(t, "123A & country=Germany", r.AdvancedQuery)
}

func TestReservedPropertyTypeErrors(t *testing.T) {
	p := testParser(t)

	tests := []struct {
		body     string
		property string
	}{
		{`{"limit": "ten"}`, PropLimit},
		{`{"limit": -1}`, PropLimit},
		{`{"offset": 1.5}`, PropOffset},
		{`{"nucleotideMutations": [123]}`, PropNucleotideMutations},
		{`{"nucleotideMutations": {"a": 1}}`, PropNucleotideMutations},
		{`{"aminoAcidMutations": ["501Y"]}`, PropAminoAcidMutations},
		{`{"downloadAsFile": "yes"}`, PropDownloadAsFile},
		{`{"compression": "brotli"}`, PropCompression},
		{`{"downloadFileBasename": "../etc"}`, PropDownloadFileBasename},
		{`{"orderBy": ["random", "country"]}`, PropOrderBy},
		{`{"advancedQuery": 1}`, PropAdvancedQuery},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			_, err := p.ParseSequenceFilters(mustJSON(t, tt.body), p.Schema().Fields())
			require.Error(t, err)

			var bad *BadRequestError
			require.True(t, errors.As(err, &bad))
			assert.Equal(t, tt.property, bad.Property)
		})
	}
}

func TestNullLimitIsAbsent(t *testing.T) {
	p := testParser(t)
	r, err := p.ParseSequenceFilters(mustJSON(t, `{"limit": null, "offset": null}`), p.Schema().Fields())
	require.NoError(t, err)
	assert.Nil(t, r.Limit)
	assert.Nil(t, r.Offset)
}

func TestFromJSONRejectsNonObject(t *testing.T) {
	_, err := FromJSON([]byte(`[1, 2]`))
	require.Error(t, err)

	_, err = FromJSON([]byte(`{"broken"`))
	require.Error(t, err)

	props, err := FromJSON(nil)
	require.NoError(t, err)
	assert.Empty(t, props)
}

func TestFromQuery(t *testing.T) {
	values := url.Values{
		"country":             {"Germany", "France"},
		"pangoLineage":        {"B.1.1.7*"},
		"nucleotideMutations": {"123A,C5T", "ins_1:A"},
		"orderBy":             {"date, country"},
		"fields":              {"country", "date"},
		"limit":               {"10"},
		"minProportion":       {"0.2"},
		"downloadAsFile":      {"true"},
	}
	props, err := FromQuery(values)
	require.NoError(t, err)

	assert.Equal(t, ir.IRArray{ir.IRString("Germany"), ir.IRString("France")}, props["country"])
	assert.Equal(t, ir.IRString("B.1.1.7*"), props["pangoLineage"])
	assert.Equal(t, ir.IRArray{ir.IRString("123A"), ir.IRString("C5T"), ir.IRString("ins_1:A")}, props["nucleotideMutations"])
	assert.Equal(t, ir.IRArray{ir.IRString("date"), ir.IRString("country")}, props["orderBy"])
	assert.Equal(t, ir.IRArray{ir.IRString("country"), ir.IRString("date")}, props["fields"])
	assert.Equal(t, ir.IRInt(10), props["limit"])
	assert.Equal(t, ir.IRFloat(0.2), props["minProportion"])
	assert.Equal(t, ir.IRBool(true), props["downloadAsFile"])
}

func TestFromQueryTypeErrors(t *testing.T) {
	for key, val := range map[string]string{
		PropLimit:          "ten",
		PropOffset:         "1.5",
		PropMinProportion:  "lots",
		PropDownloadAsFile: "maybe",
	} {
		_, err := FromQuery(url.Values{key: {val}})
		require.Error(t, err, key)
	}
}

func TestGetAndPostParseIdentically(t *testing.T) {
	p := testParser(t)

	get, err := FromQuery(url.Values{
		"country":       {"Germany"},
		"fields":        {"country,date"},
		"orderBy":       {"date"},
		"limit":         {"3"},
		"minProportion": {"0.1"},
	})
	require.NoError(t, err)
	post := mustJSON(t, `{"country": "Germany", "fields": ["country", "date"], "orderBy": ["date"], "limit": 3, "minProportion": 0.1}`)

	fromGet, err := p.ParseAggregated(get)
	require.NoError(t, err)
	fromPost, err := p.ParseAggregated(post)
	require.NoError(t, err)
	assert.Equal(t, fromPost, fromGet)
}

func TestParseAggregated(t *testing.T) {
	p := testParser(t)

	r, err := p.ParseAggregated(mustJSON(t, `{"fields": ["COUNTRY"], "orderBy": ["count"]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"country"}, r.Fields)
	assert.Equal(t, ir.OrderByFields{Fields: []ir.OrderByField{{Field: "count", Order: ir.Ascending}}}, r.OrderBy)

	_, err = p.ParseAggregated(mustJSON(t, `{"fields": ["nope"]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown field 'nope'")
}

func TestParseDetailsCannotOrderByCount(t *testing.T) {
	p := testParser(t)

	_, err := p.ParseDetails(mustJSON(t, `{"orderBy": ["count"]}`))
	require.Error(t, err)

	r, err := p.ParseDetails(mustJSON(t, `{"fields": ["date", "primaryKey"]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"date", "primaryKey"}, r.Fields)
}

func TestParseMutationProportions(t *testing.T) {
	p := testParser(t)

	r, err := p.ParseMutationProportions(mustJSON(t, `{}`))
	require.NoError(t, err)
	assert.Equal(t, DefaultMinProportion, r.MinProportion)

	r, err = p.ParseMutationProportions(mustJSON(t, `{"minProportion": 1, "orderBy": [{"field": "proportion", "type": "descending"}], "fields": ["mutation", "count"]}`))
	require.NoError(t, err)
	assert.Equal(t, 1.0, r.MinProportion)
	assert.Equal(t, []string{"mutation", "count"}, r.Fields)
	assert.Equal(t, ir.OrderByFields{Fields: []ir.OrderByField{{Field: "proportion", Order: ir.Descending}}}, r.OrderBy)

	for _, body := range []string{`{"minProportion": 0}`, `{"minProportion": 1.5}`, `{"minProportion": "high"}`} {
		_, err := p.ParseMutationProportions(mustJSON(t, body))
		assert.Error(t, err, body)
	}

	_, err = p.ParseMutationProportions(mustJSON(t, `{"orderBy": ["country"]}`))
	assert.Error(t, err)
}

func TestParseInsertions(t *testing.T) {
	p := testParser(t)

	r, err := p.ParseInsertions(mustJSON(t, `{"orderBy": ["insertion"], "country": "Germany"}`))
	require.NoError(t, err)
	assert.Equal(t, ir.OrderByFields{Fields: []ir.OrderByField{{Field: "insertion", Order: ir.Ascending}}}, r.OrderBy)
	assert.Empty(t, r.Fields)

	r, err = p.ParseInsertions(mustJSON(t, `{"fields": ["INSERTION", "count"]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"insertion", "count"}, r.Fields)
	_, hasFields := r.Filters["fields"]
	assert.False(t, hasFields, "fields is reserved, not a filter")

	_, err = p.ParseInsertions(mustJSON(t, `{"fields": ["proportion"]}`))
	var bad *BadRequestError
	require.ErrorAs(t, err, &bad)
	assert.Equal(t, PropFields, bad.Property)
}

func TestParseSequencesRandom(t *testing.T) {
	p := testParser(t)

	r, err := p.ParseSequences(mustJSON(t, `{"orderBy": {"random": 7}, "limit": 100}`))
	require.NoError(t, err)
	require.IsType(t, ir.RandomOrder{}, r.OrderBy)
	assert.Equal(t, int64(7), *r.OrderBy.(ir.RandomOrder).Seed)
}
