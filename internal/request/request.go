// Package request turns raw request properties into typed requests.
//
// Parsing is split into a shared routine for the properties every endpoint
// accepts (metadata filters, mutation and insertion lists, advanced query,
// ordering, pagination and output options) and one thin function per
// endpoint shape for the extra properties. All failures are
// *BadRequestError values.
package request

import (
	"fmt"
	"strings"

	"github.com/roach88/lapis/internal/ir"
	"github.com/roach88/lapis/internal/schema"
)

// DefaultMinProportion is used when a mutations request names none.
const DefaultMinProportion = 0.05

// Output columns of the mutation and insertion endpoints. They are the
// closed sets for fields= and orderBy on those endpoints.
var (
	MutationFields = []string{
		"mutation", "proportion", "count", "coverage",
		"sequenceName", "mutationFrom", "mutationTo", "position",
	}
	InsertionFields = []string{
		"insertion", "count", "insertedSymbols", "position", "sequenceName",
	}
)

// CountField is the count column of aggregated results.
const CountField = "count"

// Compression formats accepted by the compression property.
const (
	CompressionGzip = "gzip"
	CompressionZstd = "zstd"
)

// Output holds the response options of a request.
type Output struct {
	DataFormat           string
	DownloadAsFile       bool
	DownloadFileBasename string
	Compression          string
}

// SequenceFiltersRequest holds the properties shared by all endpoints.
type SequenceFiltersRequest struct {
	Filters              ir.SequenceFilters
	NucleotideMutations  []ir.NucleotideMutation
	AminoAcidMutations   []ir.AminoAcidMutation
	NucleotideInsertions []ir.NucleotideInsertion
	AminoAcidInsertions  []ir.AminoAcidInsertion
	AdvancedQuery        string
	OrderBy              ir.OrderBySpec
	Limit                *int
	Offset               *int
	AccessKey            string
	Output               Output
}

// AggregatedRequest counts sequences grouped by Fields.
type AggregatedRequest struct {
	SequenceFiltersRequest
	Fields []string
}

// DetailsRequest lists metadata of matching sequences. Empty Fields means
// all fields.
type DetailsRequest struct {
	SequenceFiltersRequest
	Fields []string
}

// MutationProportionsRequest asks for mutations above MinProportion.
type MutationProportionsRequest struct {
	SequenceFiltersRequest
	MinProportion float64
	Fields        []string
}

// InsertionsRequest lists insertions. Empty Fields means all insertion
// columns.
type InsertionsRequest struct {
	SequenceFiltersRequest
	Fields []string
}

// Parser parses requests against one database schema. It is read-only
// after construction and safe for concurrent use.
type Parser struct {
	schema *schema.Schema

	aggregatedOrder *schema.FieldResolver
	mutationFields  *schema.FieldResolver
	insertionFields *schema.FieldResolver
}

// NewParser builds a Parser for s.
func NewParser(s *schema.Schema) (*Parser, error) {
	p := &Parser{schema: s}
	var err error
	if p.aggregatedOrder, err = schema.NewFieldResolver(append(s.FieldNames(), CountField)); err != nil {
		return nil, fmt.Errorf("aggregated order fields: %w", err)
	}
	if p.mutationFields, err = schema.NewFieldResolver(MutationFields); err != nil {
		return nil, err
	}
	if p.insertionFields, err = schema.NewFieldResolver(InsertionFields); err != nil {
		return nil, err
	}
	return p, nil
}

// Schema returns the schema the parser resolves names against.
func (p *Parser) Schema() *schema.Schema {
	return p.schema
}

// ParseSequenceFilters parses the shared properties. orderFields is the
// closed set of order-by fields of the target endpoint.
func (p *Parser) ParseSequenceFilters(props Properties, orderFields Resolver) (SequenceFiltersRequest, error) {
	var r SequenceFiltersRequest
	var err error

	if r.Filters, err = props.Generic(); err != nil {
		return r, err
	}

	if r.NucleotideMutations, err = parseList(props, PropNucleotideMutations, p.schema.Segments(), ParseNucleotideMutation); err != nil {
		return r, err
	}
	if r.AminoAcidMutations, err = parseList(props, PropAminoAcidMutations, p.schema.GeneNames(), ParseAminoAcidMutation); err != nil {
		return r, err
	}
	if r.NucleotideInsertions, err = parseList(props, PropNucleotideInsertions, p.schema.Segments(), ParseNucleotideInsertion); err != nil {
		return r, err
	}
	if r.AminoAcidInsertions, err = parseList(props, PropAminoAcidInsertions, p.schema.GeneNames(), ParseAminoAcidInsertion); err != nil {
		return r, err
	}

	if r.AdvancedQuery, err = props.optionalString(PropAdvancedQuery); err != nil {
		return r, err
	}
	if r.AccessKey, err = props.optionalString(PropAccessKey); err != nil {
		return r, err
	}

	entries, err := props.orderByEntries()
	if err != nil {
		return r, err
	}
	if r.OrderBy, err = ResolveOrderBy(entries, orderFields); err != nil {
		return r, err
	}

	if r.Limit, err = props.optionalInt(PropLimit); err != nil {
		return r, err
	}
	if r.Offset, err = props.optionalInt(PropOffset); err != nil {
		return r, err
	}

	if r.Output, err = parseOutput(props); err != nil {
		return r, err
	}
	return r, nil
}

func parseList[T any](props Properties, key string, known Resolver, parse func(string, Resolver) (T, error)) ([]T, error) {
	raw, err := props.stringList(key)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(raw))
	for _, s := range raw {
		v, err := parse(s, known)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func parseOutput(props Properties) (Output, error) {
	var o Output
	var err error
	if o.DataFormat, err = props.optionalString(PropDataFormat); err != nil {
		return o, err
	}
	if o.DownloadAsFile, err = props.optionalBool(PropDownloadAsFile); err != nil {
		return o, err
	}
	if o.DownloadFileBasename, err = props.optionalString(PropDownloadFileBasename); err != nil {
		return o, err
	}
	if strings.ContainsAny(o.DownloadFileBasename, `/\"`) {
		return o, badRequest(PropDownloadFileBasename, "must not contain '/', '\\' or '\"'")
	}
	c, err := props.optionalString(PropCompression)
	if err != nil {
		return o, err
	}
	switch c = strings.ToLower(c); c {
	case "", CompressionGzip, CompressionZstd:
		o.Compression = c
	default:
		return o, badRequest(PropCompression, "unknown compression '%s', known values are [gzip, zstd]", c)
	}
	return o, nil
}

func (p *Parser) fields(props Properties, known *schema.FieldResolver) ([]string, error) {
	raw, err := props.stringList(PropFields)
	if err != nil {
		return nil, err
	}
	fields, err := known.ResolveAll(raw)
	if err != nil {
		return nil, &BadRequestError{Property: PropFields, Message: err.Error()}
	}
	return fields, nil
}

// ParseAggregated parses an aggregated request. It may be ordered by any
// grouping field or by count.
func (p *Parser) ParseAggregated(props Properties) (AggregatedRequest, error) {
	common, err := p.ParseSequenceFilters(props, p.aggregatedOrder)
	if err != nil {
		return AggregatedRequest{}, err
	}
	fields, err := p.fields(props, p.schema.Fields())
	if err != nil {
		return AggregatedRequest{}, err
	}
	return AggregatedRequest{SequenceFiltersRequest: common, Fields: fields}, nil
}

// ParseDetails parses a details request.
func (p *Parser) ParseDetails(props Properties) (DetailsRequest, error) {
	common, err := p.ParseSequenceFilters(props, p.schema.Fields())
	if err != nil {
		return DetailsRequest{}, err
	}
	fields, err := p.fields(props, p.schema.Fields())
	if err != nil {
		return DetailsRequest{}, err
	}
	return DetailsRequest{SequenceFiltersRequest: common, Fields: fields}, nil
}

// ParseMutationProportions parses a nucleotide or amino acid mutations
// request. minProportion defaults to DefaultMinProportion and must lie in
// (0, 1].
func (p *Parser) ParseMutationProportions(props Properties) (MutationProportionsRequest, error) {
	common, err := p.ParseSequenceFilters(props, p.mutationFields)
	if err != nil {
		return MutationProportionsRequest{}, err
	}
	fields, err := p.fields(props, p.mutationFields)
	if err != nil {
		return MutationProportionsRequest{}, err
	}
	minProportion := DefaultMinProportion
	mp, err := props.optionalFloat(PropMinProportion)
	if err != nil {
		return MutationProportionsRequest{}, err
	}
	if mp != nil {
		if *mp <= 0 || *mp > 1 {
			return MutationProportionsRequest{}, badRequest(PropMinProportion, "must be in (0, 1], got %v", *mp)
		}
		minProportion = *mp
	}
	return MutationProportionsRequest{
		SequenceFiltersRequest: common,
		MinProportion:          minProportion,
		Fields:                 fields,
	}, nil
}

// ParseInsertions parses a nucleotide or amino acid insertions request.
func (p *Parser) ParseInsertions(props Properties) (InsertionsRequest, error) {
	common, err := p.ParseSequenceFilters(props, p.insertionFields)
	if err != nil {
		return InsertionsRequest{}, err
	}
	fields, err := p.fields(props, p.insertionFields)
	if err != nil {
		return InsertionsRequest{}, err
	}
	return InsertionsRequest{SequenceFiltersRequest: common, Fields: fields}, nil
}

// ParseSequences parses a sequences request. Sequences are ordered by
// metadata fields.
func (p *Parser) ParseSequences(props Properties) (SequenceFiltersRequest, error) {
	return p.ParseSequenceFilters(props, p.schema.Fields())
}
