// Package testutil provides testing utilities for relstash.
//
// This package is intended for use in tests and benchmarks only. It
// generates reproducible synthetic extracts and knows which of their
// relations can be assembled.
//
// # Datasets
//
//	rng := testutil.NewRNG(seed)
//	ds := rng.Dataset(testutil.DatasetConfig{Nodes: 100, Ways: 50, Relations: 20, MaxMembers: 4})
//	data, _ := ds.NDJSON()
//
// # Ground Truth
//
//	complete, incomplete := ds.Split(nil)
package testutil
