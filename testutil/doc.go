// Package testutil provides testing utilities for segbloom.
//
// This package is intended for use in tests and benchmarks only.
// It generates reproducible term sets and term source files.
//
// # Random Terms
//
//	rng := testutil.NewRNG(seed)
//	terms := rng.Terms(10_000, 12) // distinct printable terms
//
// # Term Sources
//
//	data := testutil.Lines(terms)  // newline-delimited source body
package testutil
