// Package harness runs request conformance scenarios.
//
// A scenario names a gateway configuration and a list of requests. Each
// request is parsed and compiled exactly as the HTTP handlers would, and
// the resulting SILO queries are checked against the scenario's
// expectations and against a golden file.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: mutations_by_lineage
//	description: "GET and POST compile to the same query"
//	config: ../configs/sars-cov-2.yaml
//	steps:
//	  - endpoint: nucleotideMutations
//	    query: "pangoLineage=B.1.1.7*&minProportion=0.1"
//	    expect:
//	      cacheable: true
//	  - endpoint: nucleotideMutations
//	    body: { pangoLineage: "B.1.1.7*", minProportion: 0.1 }
//	  - endpoint: alignedAminoAcidSequences/XYZ
//	    expect:
//	      error: "unknown gene"
//	assertions:
//	  - type: same_query
//	    steps: [0, 1]
//	  - type: filter_contains
//	    step: 0
//	    node: Lineage
//
// The config path is relative to the scenario file. A step gives its
// request either as a URL query string or as a JSON body, never both.
//
// # Assertion Types
//
//   - same_query: the listed steps compile to the same cache key
//   - filter_contains: a filter node of the given type occurs in the step's filter
//   - action_type: the step compiles to the given action
//
// # Golden Files
//
// RunWithGolden compares the compiled queries of all steps against
// testdata/golden/{name}.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
