package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lapis/internal/schema"
)

func TestLoadYAML(t *testing.T) {
	cfg, err := Load("testdata/lapis.yaml", Overrides{})
	require.NoError(t, err)

	assert.Equal(t, "sars-cov-2", cfg.InstanceName)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 64, cfg.Server.MaxConnections)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout())
	assert.Equal(t, "http://silo:8081", cfg.Silo.URL)
	assert.Equal(t, 30*time.Second, cfg.SiloTimeout())
	assert.Equal(t, BackendMemory, cfg.Cache.Backend)
	assert.Equal(t, int64(1048576), cfg.Cache.MaxCostBytes)
	assert.Equal(t, time.Hour, cfg.CacheTTL())
	assert.Equal(t, []string{"sarsCoV2VariantQuery"}, cfg.Schema.Features)
	assert.Len(t, cfg.Schema.Metadata, 7)
	assert.Equal(t, schema.TypePangoLineage, cfg.Schema.Metadata[3].Type)
	assert.Equal(t, []string{"E", "M", "N", "ORF1a", "S"}, cfg.ReferenceGenome.Genes)
}

func TestLoadJSONDefaults(t *testing.T) {
	cfg, err := Load("testdata/minimal.json", Overrides{})
	require.NoError(t, err)

	assert.Equal(t, "lapis", cfg.InstanceName)
	assert.Equal(t, ":8090", cfg.Server.Addr)
	assert.Equal(t, 0, cfg.Server.MaxConnections)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout())
	assert.Equal(t, time.Duration(0), cfg.SiloTimeout())
	assert.Equal(t, BackendMemory, cfg.Cache.Backend)
	assert.Equal(t, int64(256<<20), cfg.Cache.MaxCostBytes)
	assert.Equal(t, time.Duration(0), cfg.CacheTTL())
	assert.Empty(t, cfg.ReferenceGenome.Genes)
	assert.Empty(t, cfg.Schema.Features)
}

func TestLoadCUE(t *testing.T) {
	cfg, err := Load("testdata/lapis.cue", Overrides{})
	require.NoError(t, err)

	assert.Equal(t, "flu", cfg.InstanceName)
	assert.Equal(t, BackendSQLite, cfg.Cache.Backend)
	assert.Equal(t, "/var/cache/lapis.db", cfg.Cache.Path)
	assert.Equal(t, []string{"HA", "NA"}, cfg.ReferenceGenome.NucleotideSequences)
}

func TestOverrides(t *testing.T) {
	cfg, err := Load("testdata/lapis.yaml", Overrides{Addr: "127.0.0.1:1234", SiloURL: "https://other:9"})
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:1234", cfg.Server.Addr)
	assert.Equal(t, "https://other:9", cfg.Silo.URL)
}

func TestSiloURLFromOverrideOnly(t *testing.T) {
	data := []byte(`
schema:
  primaryKey: id
  metadata: [{name: id, type: string}]
referenceGenome:
  nucleotideSequences: [main]
`)
	_, err := Parse("cfg.yaml", data, Overrides{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "silo.url is required")

	cfg, err := Parse("cfg.yaml", data, Overrides{SiloURL: "http://silo:8081"})
	require.NoError(t, err)
	assert.Equal(t, "http://silo:8081", cfg.Silo.URL)
}

func TestParseErrors(t *testing.T) {
	base := `
silo:
  url: http://silo
schema:
  primaryKey: id
  metadata: [{name: id, type: string}]
referenceGenome:
  nucleotideSequences: [main]
`
	tests := []struct {
		name   string
		data   string
		errMsg string
	}{
		{"unknown key", base + "bogus: 1\n", "invalid config"},
		{"bad metadata type", `
silo: {url: "http://silo"}
schema: {primaryKey: id, metadata: [{name: id, type: decimal}]}
referenceGenome: {nucleotideSequences: [main]}
`, "invalid config"},
		{"bad backend", base + "cache:\n  backend: redis\n", "invalid config"},
		{"sqlite without path", base + "cache:\n  backend: sqlite\n", "cache.path is required"},
		{"bad duration", base + "cache:\n  ttl: soon\n", "invalid config"},
		{"no segments", `
silo: {url: "http://silo"}
schema: {primaryKey: id, metadata: [{name: id, type: string}]}
referenceGenome: {nucleotideSequences: []}
`, "invalid config"},
		{"negative connections", base + "server:\n  maxConnections: -1\n", "invalid config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("cfg.yaml", []byte(tt.data), Overrides{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestBadOverrideURL(t *testing.T) {
	_, err := Load("testdata/lapis.yaml", Overrides{SiloURL: "ftp://nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not an http(s) URL")
}

func TestUnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lapis.toml")
	require.NoError(t, os.WriteFile(path, []byte("x = 1"), 0o644))

	_, err := Load(path, Overrides{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported config format")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), Overrides{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config")
}

func TestBuildSchema(t *testing.T) {
	cfg, err := Load("testdata/lapis.yaml", Overrides{})
	require.NoError(t, err)

	s, err := cfg.BuildSchema()
	require.NoError(t, err)

	assert.Equal(t, "sars-cov-2", s.InstanceName)
	assert.Equal(t, "primaryKey", s.PrimaryKey)
	assert.Equal(t, []string{"sarsCoV2VariantQuery"}, s.Features)
	assert.False(t, s.IsMultiSegmented())

	gene, ok := s.GeneNames().Resolve("orf1a")
	require.True(t, ok)
	assert.Equal(t, "ORF1a", gene)
}
