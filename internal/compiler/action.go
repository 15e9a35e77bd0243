package compiler

import (
	"strings"

	"github.com/roach88/lapis/internal/queryir"
	"github.com/roach88/lapis/internal/request"
)

// Aggregated compiles an aggregated request.
func (c *Compiler) Aggregated(r request.AggregatedRequest) (queryir.Query, error) {
	return c.query(r.SequenceFiltersRequest, queryir.Aggregated{
		GroupByFields: r.Fields,
		Common:        common(r.SequenceFiltersRequest),
	})
}

// Details compiles a details request.
func (c *Compiler) Details(r request.DetailsRequest) (queryir.Query, error) {
	return c.query(r.SequenceFiltersRequest, queryir.Details{
		Fields: r.Fields,
		Common: common(r.SequenceFiltersRequest),
	})
}

// NucleotideMutations compiles a nucleotide mutations request over all
// segments.
func (c *Compiler) NucleotideMutations(r request.MutationProportionsRequest) (queryir.Query, error) {
	return c.query(r.SequenceFiltersRequest, queryir.Mutations{
		MinProportion: r.MinProportion,
		Common:        common(r.SequenceFiltersRequest),
	})
}

// AminoAcidMutations compiles an amino acid mutations request over all
// genes.
func (c *Compiler) AminoAcidMutations(r request.MutationProportionsRequest) (queryir.Query, error) {
	return c.query(r.SequenceFiltersRequest, queryir.AminoAcidMutations{
		MinProportion: r.MinProportion,
		Common:        common(r.SequenceFiltersRequest),
	})
}

// NucleotideInsertions compiles a nucleotide insertions request.
func (c *Compiler) NucleotideInsertions(r request.SequenceFiltersRequest) (queryir.Query, error) {
	return c.query(r, queryir.Insertions{Common: common(r)})
}

// AminoAcidInsertions compiles an amino acid insertions request.
func (c *Compiler) AminoAcidInsertions(r request.SequenceFiltersRequest) (queryir.Query, error) {
	return c.query(r, queryir.AminoAcidInsertions{Common: common(r)})
}

// NucleotideSequences compiles a nucleotide sequences request. An empty
// segment selects every segment; otherwise the segment is resolved
// case-insensitively.
func (c *Compiler) NucleotideSequences(r request.SequenceFiltersRequest, segment string, aligned bool) (queryir.Query, []string, error) {
	names := c.schema.Segments().Names()
	if segment != "" {
		name, ok := c.schema.Segments().Resolve(segment)
		if !ok {
			return queryir.Query{}, nil, compileErr("segment", "unknown segment '%s', known values are [%s]",
				segment, strings.Join(names, ", "))
		}
		names = []string{name}
	}

	var action queryir.Action
	if aligned {
		action = queryir.FastaAligned{SequenceNames: names, Common: common(r)}
	} else {
		action = queryir.Fasta{SequenceNames: names, Common: common(r)}
	}
	q, err := c.query(r, action)
	return q, names, err
}

// AminoAcidSequences compiles an aligned amino acid sequences request for
// one gene.
func (c *Compiler) AminoAcidSequences(r request.SequenceFiltersRequest, gene string) (queryir.Query, string, error) {
	name, ok := c.schema.GeneNames().Resolve(gene)
	if !ok {
		return queryir.Query{}, "", compileErr("gene", "unknown gene '%s', known values are [%s]",
			gene, strings.Join(c.schema.GeneNames().Names(), ", "))
	}
	q, err := c.query(r, queryir.FastaAligned{SequenceNames: []string{name}, Common: common(r)})
	return q, name, err
}

// common maps the ordering of a request. A random order becomes the
// randomize flag and never appears among the order-by fields.
func common(r request.SequenceFiltersRequest) queryir.Common {
	return queryir.NewCommon(r.OrderBy, r.Limit, r.Offset)
}

func (c *Compiler) query(r request.SequenceFiltersRequest, action queryir.Action) (queryir.Query, error) {
	filter, err := c.CompileFilter(r)
	if err != nil {
		return queryir.Query{}, err
	}
	q := queryir.Query{Action: action, FilterExpression: filter}

	if result := queryir.Validate(q); !result.Valid {
		return queryir.Query{}, &CompileError{Field: "query", Message: strings.Join(result.Problems, "; ")}
	}
	return q, nil
}
