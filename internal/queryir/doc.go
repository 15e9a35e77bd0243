// Package queryir is the intermediate representation sent to the downstream
// sequence engine.
//
// A Query pairs an Action (what to compute) with a Filter (which sequences
// to compute it over). Both are sealed interfaces using the marker method
// pattern, so only this package defines variants and every consumer can
// switch over them exhaustively:
//
//	switch f := filter.(type) {
//	case queryir.And:
//	    // Handle children
//	case queryir.NucleotideEquals:
//	    // Handle leaf
//	...
//	}
//
// WIRE FORMAT:
//
// Every node marshals to the JSON shape the engine expects: an object with
// a "type" discriminator and the node's parameters. Optional sequence names
// are omitted when empty; null filter values and open range bounds are
// written as explicit nulls because they carry meaning.
//
//	{"action": {"type": "Aggregated", "groupByFields": ["country"]},
//	 "filterExpression": {"type": "And", "children": [
//	   {"type": "StringEquals", "column": "region", "value": "Europe"},
//	   {"type": "NucleotideEquals", "position": 123, "symbol": "A"}]}}
//
// CACHING:
//
// The serialized Query is also the cache key. Action.Cacheable and
// Action.Randomized decide together whether a result may be cached; see
// Query.CacheEligible.
package queryir
