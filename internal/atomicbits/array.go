// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package atomicbits implements a fixed-size, lock-free bit array with
// atomic test-and-set. It backs the dedup filters: many worker goroutines
// probe and set bits concurrently, and the only synchronization needed is
// a per-word compare-and-swap.
package atomicbits

import (
	"sync/atomic"

	"github.com/bits-and-blooms/bitset"
)

// Array is a lock-free array of nbits bits.
type Array struct {
	words []atomic.Uint64
	nbits uint64
}

// New allocates an Array of the given bit length.
func New(nbits uint64) *Array {
	if nbits == 0 {
		nbits = 1
	}
	n := (nbits + 63) / 64
	return &Array{words: make([]atomic.Uint64, n), nbits: nbits}
}

// NumBits returns the array's bit length.
func (a *Array) NumBits() uint64 { return a.nbits }

// TestAndSet atomically sets bit i mod NumBits() and reports whether it
// was already set.
func (a *Array) TestAndSet(i uint64) bool {
	i %= a.nbits
	w := i / 64
	mask := uint64(1) << (i % 64)
	for {
		old := a.words[w].Load()
		if old&mask != 0 {
			return true
		}
		if a.words[w].CompareAndSwap(old, old|mask) {
			return false
		}
	}
}

// PopCount returns the number of set bits. It snapshots the word array
// into a bits-and-blooms/bitset.BitSet and reuses its popcount rather
// than hand-rolling one; callers only use this between batches (the
// deduper's maybe_reset saturation check), never on the per-shred path.
func (a *Array) PopCount() uint64 {
	words := make([]uint64, len(a.words))
	for i := range a.words {
		words[i] = a.words[i].Load()
	}
	bs := bitset.From(words)
	return bs.Count()
}
