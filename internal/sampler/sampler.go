// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package sampler implements the deterministic stake-weighted shuffle
// backing the cluster-nodes cache's broadcast-tree layout. It is
// adapted from the consensus engine's weighted-sampling-without-
// replacement primitive, generalized from "sample k of n" to "produce a
// full weighted permutation of n".
package sampler

// WeightedShuffle returns a permutation of [0, len(weights)) drawn by
// repeated weighted sampling without replacement: at each step, the
// probability an index is picked next is proportional to its remaining
// weight. Index 0-weight entries are placed, unordered, after every
// positive-weight entry has been placed.
func WeightedShuffle(weights []uint64, src Source) []int {
	n := len(weights)
	remaining := make([]int, n)
	w := make([]uint64, n)
	var total uint64
	for i, wt := range weights {
		remaining[i] = i
		w[i] = wt
		total += wt
	}

	order := make([]int, 0, n)
	for len(remaining) > 0 {
		if total == 0 {
			order = append(order, remaining...)
			break
		}
		pick := src.Uint64() % total
		var cum uint64
		idx := len(remaining) - 1
		for j, ri := range remaining {
			cum += w[ri]
			if pick < cum {
				idx = j
				break
			}
		}
		chosen := remaining[idx]
		order = append(order, chosen)
		total -= w[chosen]
		remaining = append(remaining[:idx], remaining[idx+1:]...)
	}
	return order
}
