// Package config loads the gateway configuration.
//
// A configuration file may be YAML, JSON or CUE. Whatever the format, the
// file is unified with the embedded #Config definition, validated as a
// concrete value and decoded into Config. Unknown keys are rejected because
// #Config is a closed definition.
package config

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"

	"github.com/roach88/lapis/internal/schema"
)

//go:embed schema.cue
var schemaCUE string

// Cache backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendNone   = "none"
)

// Config is the decoded gateway configuration.
type Config struct {
	InstanceName    string          `json:"instanceName"`
	Server          ServerConfig    `json:"server"`
	Silo            SiloConfig      `json:"silo"`
	Cache           CacheConfig     `json:"cache"`
	Schema          SchemaConfig    `json:"schema"`
	ReferenceGenome ReferenceGenome `json:"referenceGenome"`
}

type ServerConfig struct {
	Addr            string `json:"addr"`
	MaxConnections  int    `json:"maxConnections"`
	ShutdownTimeout string `json:"shutdownTimeout"`
}

type SiloConfig struct {
	URL     string `json:"url"`
	Timeout string `json:"timeout"`
}

type CacheConfig struct {
	Backend      string `json:"backend"`
	MaxCostBytes int64  `json:"maxCostBytes"`
	TTL          string `json:"ttl"`
	Path         string `json:"path"`
}

type SchemaConfig struct {
	PrimaryKey string                 `json:"primaryKey"`
	Metadata   []schema.MetadataField `json:"metadata"`
	Features   []string               `json:"features"`
}

type ReferenceGenome struct {
	NucleotideSequences []string `json:"nucleotideSequences"`
	Genes               []string `json:"genes"`
}

// Overrides are command-line values that take precedence over the file.
// Empty fields leave the file value alone.
type Overrides struct {
	Addr    string
	SiloURL string
}

// Load reads, validates and decodes the configuration file at path.
func Load(path string, o Overrides) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(path, data, o)
}

// Parse is Load for an in-memory file. The extension of filename selects
// the decoder.
func Parse(filename string, data []byte, o Overrides) (*Config, error) {
	ctx := cuecontext.New()

	schemaVal := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schemaVal.Err(); err != nil {
		return nil, fmt.Errorf("compiling config schema: %w", err)
	}
	def := schemaVal.LookupPath(cue.ParsePath("#Config"))

	var fileVal cue.Value
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".yaml", ".yml":
		f, err := cueyaml.Extract(filename, data)
		if err != nil {
			return nil, formatCUEError(filename, err)
		}
		fileVal = ctx.BuildFile(f)
	case ".json", ".cue":
		fileVal = ctx.CompileBytes(data, cue.Filename(filename))
	default:
		return nil, fmt.Errorf("%s: unsupported config format %q (want .yaml, .yml, .json or .cue)", filename, ext)
	}
	if err := fileVal.Err(); err != nil {
		return nil, formatCUEError(filename, err)
	}

	v := def.Unify(fileVal)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(filename, err)
	}

	var cfg Config
	if err := v.Decode(&cfg); err != nil {
		return nil, formatCUEError(filename, err)
	}

	if o.Addr != "" {
		cfg.Server.Addr = o.Addr
	}
	if o.SiloURL != "" {
		cfg.Silo.URL = o.SiloURL
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return &cfg, nil
}

// validate checks what the CUE schema cannot express or what overrides may
// have changed after unification.
func (c *Config) validate() error {
	if c.Silo.URL == "" {
		return fmt.Errorf("silo.url is required")
	}
	u, err := url.Parse(c.Silo.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("silo.url %q is not an http(s) URL", c.Silo.URL)
	}
	if c.Cache.Backend == BackendSQLite && c.Cache.Path == "" {
		return fmt.Errorf("cache.path is required for the sqlite backend")
	}
	for _, d := range []struct{ key, val string }{
		{"server.shutdownTimeout", c.Server.ShutdownTimeout},
		{"silo.timeout", c.Silo.Timeout},
		{"cache.ttl", c.Cache.TTL},
	} {
		if _, err := parseDuration(d.val); err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
	}
	return nil
}

// ShutdownTimeout is the graceful shutdown deadline.
func (c *Config) ShutdownTimeout() time.Duration {
	d, _ := parseDuration(c.Server.ShutdownTimeout)
	return d
}

// SiloTimeout is the downstream request timeout; zero means no timeout.
func (c *Config) SiloTimeout() time.Duration {
	d, _ := parseDuration(c.Silo.Timeout)
	return d
}

// CacheTTL is the cache entry lifetime; zero means entries never expire.
func (c *Config) CacheTTL() time.Duration {
	d, _ := parseDuration(c.Cache.TTL)
	return d
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" || s == "0" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// BuildSchema builds the database schema described by the configuration.
func (c *Config) BuildSchema() (*schema.Schema, error) {
	s, err := schema.New(
		c.InstanceName,
		c.Schema.PrimaryKey,
		c.Schema.Metadata,
		c.ReferenceGenome.NucleotideSequences,
		c.ReferenceGenome.Genes,
	)
	if err != nil {
		return nil, err
	}
	s.Features = c.Schema.Features
	return s, nil
}

// formatCUEError flattens a CUE error list into one message with positions.
func formatCUEError(filename string, err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return fmt.Errorf("%s: %w", filename, err)
	}
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msg := e.Error()
		if positions := cueerrors.Positions(e); len(positions) > 0 && positions[0].IsValid() {
			msg = positions[0].String() + ": " + msg
		}
		msgs = append(msgs, msg)
	}
	return fmt.Errorf("%s: invalid config: %s", filename, strings.Join(msgs, "; "))
}
