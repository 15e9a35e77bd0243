package silo

import (
	"context"
	"io"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// LineageNode is one entry of a lineage definition.
type LineageNode struct {
	Parents []string `yaml:"parents,omitempty" json:"parents,omitempty"`
	Aliases []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
}

// LineageDefinition maps each lineage name of a column to its parents and
// aliases.
type LineageDefinition map[string]LineageNode

// LineageDefinition fetches the lineage tree of a lineage column. The
// engine serves it as YAML. It is not cached.
func (c *Client) LineageDefinition(ctx context.Context, column string) (LineageDefinition, string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/lineageDefinition/"+url.PathEscape(column), nil, "")
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", errors.Wrap(err, "reading lineage definition")
	}
	def := LineageDefinition{}
	if err := yaml.Unmarshal(raw, &def); err != nil {
		return nil, "", &ParseError{Line: firstLine(raw), Err: err}
	}
	return def, resp.Header.Get(DataVersionHeader), nil
}

func firstLine(b []byte) string {
	for i, c := range b {
		if c == '\n' {
			return string(b[:i])
		}
	}
	return string(b)
}
