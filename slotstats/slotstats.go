// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package slotstats implements the per-slot retransmit counters and the
// LRU ring that evicts and emits them.
package slotstats

import (
	"github.com/luxfi/turbine/internal/lru"
)

// NumDistances is the number of turbine root distances tracked (0, 1, 2).
const NumDistances = 3

// Stats is the per-slot counter set. Outset is the earliest retransmit
// timestamp (ms) for the slot, 0 meaning unset; Asof is the latest
// update timestamp (ms).
type Stats struct {
	Outset            int64
	Asof              int64
	NumShredsReceived [NumDistances]int
	NumShredsSent     [NumDistances]int
}

// Record folds one shred's outcome (root distance, number of successful
// sends) into the stats at timestamp nowMillis.
func (s *Stats) Record(nowMillis int64, rootDistance int, numSent int) {
	if s.Outset == 0 || nowMillis < s.Outset {
		s.Outset = nowMillis
	}
	if nowMillis > s.Asof {
		s.Asof = nowMillis
	}
	s.NumShredsReceived[rootDistance]++
	s.NumShredsSent[rootDistance] += numSent
}

// Merge folds other into s: Outset takes the min of non-zero values,
// Asof takes the max, and counters add pointwise.
func (s *Stats) Merge(other *Stats) {
	if other == nil {
		return
	}
	switch {
	case s.Outset == 0:
		s.Outset = other.Outset
	case other.Outset != 0 && other.Outset < s.Outset:
		s.Outset = other.Outset
	}
	if other.Asof > s.Asof {
		s.Asof = other.Asof
	}
	for i := 0; i < NumDistances; i++ {
		s.NumShredsReceived[i] += other.NumShredsReceived[i]
		s.NumShredsSent[i] += other.NumShredsSent[i]
	}
}

// TotalReceived sums NumShredsReceived across all distances.
func (s *Stats) TotalReceived() int {
	n := 0
	for _, v := range s.NumShredsReceived {
		n += v
	}
	return n
}

// TotalSent sums NumShredsSent across all distances.
func (s *Stats) TotalSent() int {
	n := 0
	for _, v := range s.NumShredsSent {
		n += v
	}
	return n
}

// ElapsedMillis returns Asof - Outset, saturating at 0.
func (s *Stats) ElapsedMillis() int64 {
	if s.Asof <= s.Outset {
		return 0
	}
	return s.Asof - s.Outset
}

// EvictedRecord is what Sink.EmitSlotStats receives for an evicted slot.
type EvictedRecord struct {
	Slot          uint64
	OutsetMillis  int64
	ElapsedMillis int64
	TotalReceived int
	TotalSent     int
	Stats         Stats
}

// Sink is the per-slot half of the metrics sink; fire-and-forget.
type Sink interface {
	EmitSlotStats(rec EvictedRecord)
}

// Ring is an LRU of per-slot counters capped at capacity entries.
// Eviction is the sole path that emits per-slot metrics: a slot that
// keeps receiving late shreds keeps contributing to its counters for as
// long as it stays in the ring.
type Ring struct {
	cache    *lru.Cache[uint64, *Stats]
	capacity int
	sink     Sink
}

// NewRing creates a Ring bounded to capacity slots, emitting evictions to sink.
func NewRing(capacity int, sink Sink) *Ring {
	r := &Ring{cache: lru.New[uint64, *Stats](capacity), capacity: capacity, sink: sink}
	r.cache.OnEvict = r.onEvict
	return r
}

// Upsert adds stats to the ring: merging into the existing entry for
// slot if present, else inserting it fresh. May trigger one eviction if
// the ring was already at capacity.
func (r *Ring) Upsert(slot uint64, stats *Stats) {
	if existing, ok := r.cache.Get(slot); ok {
		existing.Merge(stats)
		r.cache.Put(slot, existing)
		return
	}
	r.cache.Put(slot, stats)
}

// UpsertAll upserts every entry of a folded per-slot stats map, in
// arbitrary order (no ordering guarantees across slots).
func (r *Ring) UpsertAll(folded map[uint64]*Stats) {
	for slot, stats := range folded {
		r.Upsert(slot, stats)
	}
}

// Len returns the number of slots currently held in the ring.
func (r *Ring) Len() int { return r.cache.Len() }

func (r *Ring) onEvict(slot uint64, stats *Stats) {
	if r.sink == nil {
		return
	}
	r.sink.EmitSlotStats(EvictedRecord{
		Slot:          slot,
		OutsetMillis:  stats.Outset,
		ElapsedMillis: stats.ElapsedMillis(),
		TotalReceived: stats.TotalReceived(),
		TotalSent:     stats.TotalSent(),
		Stats:         *stats,
	})
}
