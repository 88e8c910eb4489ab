// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dedup

import (
	"encoding/binary"
	"math"
	"math/rand"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/luxfi/turbine/internal/atomicbits"
)

// numHashes is the number of independent bit probes per test-and-insert.
// Two probes trade a small amount of extra memory traffic for a much
// lower false-positive rate than a single probe at the same bit budget.
const numHashes = 2

// filter is one stage of the two-stage ShredDeduper: a seeded, atomic
// bit array tested with numHashes independent probes derived from a
// single xxhash computation (standard double-hashing: h1 + i*h2).
type filter struct {
	bits     *atomicbits.Array
	seed1    uint64
	seed2    uint64
	lastRebuild time.Time
}

func newFilter(rng *rand.Rand, numBits uint64) *filter {
	return &filter{
		bits:        atomicbits.New(numBits),
		seed1:       rng.Uint64(),
		seed2:       rng.Uint64() | 1, // must be odd so it's coprime with power-of-two spans
		lastRebuild: time.Now(),
	}
}

// testAndInsert hashes key, probes numHashes bit positions, sets any that
// were unset, and reports whether ALL were already set (i.e. the key was
// already present).
func (f *filter) testAndInsert(key []byte) bool {
	h1 := xxhash.Sum64(key) ^ f.seed1
	h2 := mix64(h1) ^ f.seed2
	alreadyPresent := true
	for i := uint64(0); i < numHashes; i++ {
		pos := h1 + i*h2
		if !f.bits.TestAndSet(pos) {
			alreadyPresent = false
		}
	}
	return alreadyPresent
}

// estimatedFPR returns the false-positive rate implied by the filter's
// current saturation, per the standard bloom-filter formula
// p ≈ (1 - e^(-k·n/m))^k.
func (f *filter) estimatedFPR() float64 {
	n := float64(f.bits.PopCount())
	m := float64(f.bits.NumBits())
	k := float64(numHashes)
	return math.Pow(1-math.Exp(-k*n/m), k)
}

// maybeReset rebuilds the filter with fresh seeds (clearing all bits) if
// both the estimated FPR exceeds target AND at least resetCycle has
// elapsed since the last rebuild.
func (f *filter) maybeReset(rng *rand.Rand, targetFPR float64, resetCycle time.Duration) {
	if time.Since(f.lastRebuild) < resetCycle {
		return
	}
	if f.estimatedFPR() <= targetFPR {
		return
	}
	f.bits = atomicbits.New(f.bits.NumBits())
	f.seed1 = rng.Uint64()
	f.seed2 = rng.Uint64() | 1
	f.lastRebuild = time.Now()
}

func mix64(x uint64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], x)
	return xxhash.Sum64(buf[:])
}
