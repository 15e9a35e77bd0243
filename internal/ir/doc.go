// Package ir provides the foundational value types of the LAPIS query gateway.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps the value layer free of
// circular dependencies.
//
// Contents:
//   - IRValue: sealed JSON value family (null, string, int, float, bool,
//     array, object) used for downstream records and filter values
//   - Record: an ordered list of named values, the unit streamed to clients
//   - NucleotideMutation, AminoAcidMutation, NucleotideInsertion,
//     AminoAcidInsertion: parsed mutation-DSL values
//   - OrderBySpec: sealed ordering mode (by fields or random sampling)
//   - SequenceFilters: generic metadata filters of a request
//   - MarshalCanonical / QueryKey: canonical JSON and content hashing used as
//     the query-result cache key
package ir
