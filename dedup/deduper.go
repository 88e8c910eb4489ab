// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package dedup implements a two-stage probabilistic shred deduper: an
// exact-replay filter over raw payload bytes, and an equivocation-budget
// filter over (shred id, duplicate slot).
package dedup

import (
	"encoding/binary"
	"math/rand"
	"time"

	"github.com/luxfi/turbine/shred"
)

// ShredDeduper admits at most maxDuplicateCount distinct payloads per
// logical shred position, and rejects exact payload replays cheaply.
// It is read-only from the perspective of callers: Dedup only performs
// atomic bit writes internally and may be called concurrently from any
// number of worker goroutines. MaybeReset must never be called while a
// Dedup call is in flight — the supervisor enforces this by only calling
// it between batches, after the worker pool has joined.
type ShredDeduper struct {
	payloadFilter *filter
	idFilter      *filter
	maxDuplicate  int
}

// New creates a deduper with numBits bits per filter stage.
func New(rng *rand.Rand, numBits uint64, maxDuplicateCount int) *ShredDeduper {
	return &ShredDeduper{
		payloadFilter: newFilter(rng, numBits),
		idFilter:      newFilter(rng, numBits),
		maxDuplicate:  maxDuplicateCount,
	}
}

// MaybeReset rebuilds either filter stage with fresh seeds if its
// saturation would exceed targetFPR and at least resetCycle has elapsed
// since its last rebuild.
func (d *ShredDeduper) MaybeReset(rng *rand.Rand, targetFPR float64, resetCycle time.Duration) {
	d.payloadFilter.maybeReset(rng, targetFPR, resetCycle)
	d.idFilter.maybeReset(rng, targetFPR, resetCycle)
}

// Dedup reports whether s should be dropped: true if its payload is an
// exact replay already seen, or if its logical position has already
// claimed maxDuplicateCount distinct encodings.
func (d *ShredDeduper) Dedup(s *shred.Shred) bool {
	if d.payloadFilter.testAndInsert(s.Payload()) {
		return true
	}
	id := s.ID()
	for k := 0; k < d.maxDuplicate; k++ {
		if !d.idFilter.testAndInsert(encodeIDSlot(id, k)) {
			// This encoding earns duplicate slot k.
			return false
		}
	}
	// All maxDuplicate slots for this id are already claimed.
	return true
}

func encodeIDSlot(id shred.ID, k int) []byte {
	var buf [8 + 4 + 1 + 8]byte
	binary.LittleEndian.PutUint64(buf[0:8], id.Slot)
	binary.LittleEndian.PutUint32(buf[8:12], id.Index)
	buf[12] = byte(id.Kind)
	binary.LittleEndian.PutUint64(buf[13:21], uint64(k))
	return buf[:]
}
