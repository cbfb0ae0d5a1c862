// Package testutil provides testing utilities for sentvec.
//
// This package is intended for use in tests only. It provides helpers for
// generating seeded random matrices, computing exact top-k results and
// verifying search recall.
//
// # Random Matrices
//
//	rng := testutil.NewRNG(seed)
//	m := rng.UnitMatrix(1000, 64) // gaussian rows scaled to unit length
//
// # Exact Search (Ground Truth)
//
//	results := testutil.ExactTopK(query, m, ids, k)
//
// # Recall Verification
//
//	recall := testutil.ComputeRecall(approx, exact)
package testutil
