package request

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lapis/internal/ir"
)

func TestResolveOrderByFields(t *testing.T) {
	known := resolver(t, "country", "date", "count")

	spec, err := ResolveOrderBy([]OrderByEntry{
		{Field: "DATE", Order: ir.Descending},
		{Field: "country"},
	}, known)
	require.NoError(t, err)

	assert.Equal(t, ir.OrderByFields{Fields: []ir.OrderByField{
		{Field: "date", Order: ir.Descending},
		{Field: "country", Order: ir.Ascending},
	}}, spec)
}

func TestResolveOrderByEmpty(t *testing.T) {
	spec, err := ResolveOrderBy(nil, resolver(t, "country"))
	require.NoError(t, err)
	assert.Equal(t, ir.NoOrder(), spec)
}

func TestResolveOrderByRandom(t *testing.T) {
	known := resolver(t, "country")

	spec, err := ResolveOrderBy([]OrderByEntry{{Field: "random"}}, known)
	require.NoError(t, err)
	assert.Equal(t, ir.RandomOrder{}, spec)

	spec, err = ResolveOrderBy([]OrderByEntry{{Field: "random(7)"}}, known)
	require.NoError(t, err)
	require.IsType(t, ir.RandomOrder{}, spec)
	require.NotNil(t, spec.(ir.RandomOrder).Seed)
	assert.Equal(t, int64(7), *spec.(ir.RandomOrder).Seed)

	spec, err = ResolveOrderBy([]OrderByEntry{{Field: "RANDOM(-3)"}}, known)
	require.NoError(t, err)
	assert.Equal(t, int64(-3), *spec.(ir.RandomOrder).Seed)
}

func TestResolveOrderByRandomCannotMix(t *testing.T) {
	_, err := ResolveOrderBy([]OrderByEntry{{Field: "random"}, {Field: "country"}}, resolver(t, "country"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot mix 'random' with other orderBy fields")
}

func TestResolveOrderByUnknownField(t *testing.T) {
	_, err := ResolveOrderBy([]OrderByEntry{{Field: "nope"}}, resolver(t, "country", "date"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown field 'nope', known values are [country, date]")
}

func TestOrderByEntriesShapes(t *testing.T) {
	tests := []struct {
		name  string
		value ir.IRValue
		want  []OrderByEntry
	}{
		{"string", ir.IRString("country"), []OrderByEntry{{Field: "country", Order: ir.Ascending}}},
		{"mixed array", ir.IRArray{
			ir.IRString("country"),
			ir.IRObject{"field": ir.IRString("date"), "type": ir.IRString("DESCENDING")},
		}, []OrderByEntry{
			{Field: "country", Order: ir.Ascending},
			{Field: "date", Order: ir.Descending},
		}},
		{"random true", ir.IRObject{"random": ir.IRBool(true)}, []OrderByEntry{{Field: "random"}}},
		{"random seed", ir.IRArray{ir.IRObject{"random": ir.IRInt(42)}}, []OrderByEntry{{Field: "random(42)"}}},
		{"random false", ir.IRObject{"random": ir.IRBool(false)}, nil},
		{"null", ir.IRNull{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Properties{PropOrderBy: tt.value}.orderByEntries()
			require.NoError(t, err)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOrderByEntriesErrors(t *testing.T) {
	for name, v := range map[string]ir.IRValue{
		"number":       ir.IRInt(3),
		"no field":     ir.IRObject{"type": ir.IRString("ascending")},
		"bad type":     ir.IRObject{"field": ir.IRString("x"), "type": ir.IRString("sideways")},
		"bad random":   ir.IRObject{"random": ir.IRString("yes")},
		"nested array": ir.IRArray{ir.IRArray{}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Properties{PropOrderBy: v}.orderByEntries()
			require.Error(t, err)
		})
	}
}
