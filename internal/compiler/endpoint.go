package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/lapis/internal/queryir"
	"github.com/roach88/lapis/internal/request"
)

// Endpoints are the query endpoint names accepted by Endpoint. The
// sequence endpoints take a segment or gene after a slash.
var Endpoints = []string{
	"aggregated",
	"details",
	"nucleotideMutations",
	"aminoAcidMutations",
	"nucleotideInsertions",
	"aminoAcidInsertions",
	"alignedNucleotideSequences[/segment]",
	"unalignedNucleotideSequences[/segment]",
	"alignedAminoAcidSequences/gene",
}

// Endpoint parses props as a request to endpoint and compiles it. It is
// the offline form of what the HTTP handlers do before they execute.
func (c *Compiler) Endpoint(p *request.Parser, endpoint string, props request.Properties) (queryir.Query, error) {
	name, arg, _ := strings.Cut(strings.TrimPrefix(endpoint, "/sample/"), "/")

	switch name {
	case "aggregated":
		r, err := p.ParseAggregated(props)
		if err != nil {
			return queryir.Query{}, err
		}
		return c.Aggregated(r)
	case "details":
		r, err := p.ParseDetails(props)
		if err != nil {
			return queryir.Query{}, err
		}
		return c.Details(r)
	case "nucleotideMutations", "aminoAcidMutations":
		r, err := p.ParseMutationProportions(props)
		if err != nil {
			return queryir.Query{}, err
		}
		if name == "aminoAcidMutations" {
			return c.AminoAcidMutations(r)
		}
		return c.NucleotideMutations(r)
	case "nucleotideInsertions", "aminoAcidInsertions":
		r, err := p.ParseInsertions(props)
		if err != nil {
			return queryir.Query{}, err
		}
		if name == "aminoAcidInsertions" {
			return c.AminoAcidInsertions(r.SequenceFiltersRequest)
		}
		return c.NucleotideInsertions(r.SequenceFiltersRequest)
	case "alignedNucleotideSequences", "unalignedNucleotideSequences":
		r, err := p.ParseSequences(props)
		if err != nil {
			return queryir.Query{}, err
		}
		q, _, err := c.NucleotideSequences(r, arg, name == "alignedNucleotideSequences")
		return q, err
	case "alignedAminoAcidSequences":
		r, err := p.ParseSequences(props)
		if err != nil {
			return queryir.Query{}, err
		}
		q, _, err := c.AminoAcidSequences(r, arg)
		return q, err
	default:
		return queryir.Query{}, &CompileError{
			Field:   "endpoint",
			Message: fmt.Sprintf("unknown endpoint '%s', known values are [%s]", endpoint, strings.Join(Endpoints, ", ")),
		}
	}
}
