package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/lapis/internal/schema"
)

// Metadata is the metadata of the single-segment fixture database.
var Metadata = []schema.MetadataField{
	{Name: "primaryKey", Type: schema.TypeString},
	{Name: "date", Type: schema.TypeDate},
	{Name: "country", Type: schema.TypeString},
	{Name: "pangoLineage", Type: schema.TypePangoLineage},
	{Name: "age", Type: schema.TypeInt},
	{Name: "qc", Type: schema.TypeFloat},
	{Name: "isRevoked", Type: schema.TypeBoolean},
}

// Schema returns a single-segment database with genes S and ORF1a.
func Schema(t testing.TB) *schema.Schema {
	t.Helper()
	s, err := schema.New("test", "primaryKey", Metadata, []string{"main"}, []string{"S", "ORF1a"})
	require.NoError(t, err)
	return s
}

// MultiSegmentSchema returns a three-segment database (L, M, S) with genes
// RdRp and GPC.
func MultiSegmentSchema(t testing.TB) *schema.Schema {
	t.Helper()
	s, err := schema.New("test", "primaryKey", Metadata, []string{"L", "M", "S"}, []string{"RdRp", "GPC"})
	require.NoError(t, err)
	return s
}
