// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package stats implements the periodic aggregate retransmit counters:
// total batches, shreds seen and skipped, per-phase timing, and
// addressing failures, emitted on a fixed cadence and then reset while
// the slot-stats ring survives the reset.
package stats

import (
	"sync/atomic"
	"time"
)

// Snapshot is an immutable view of Stats at submission time.
type Snapshot struct {
	Since                  time.Time
	TotalBatches           int64
	NumShreds              int64
	NumShredsSkipped       int64
	UnknownShredSlotLeader int64
	NumAddrsFailed         int64
	NumNodes               int64
	RetransmitTotalMicros  int64
	ComputeTurbineMicros   int64
	EpochFetchMicros       int64
	CacheRefreshMicros     int64
}

// Sink is the aggregate half of the metrics sink; fire-and-forget.
type Sink interface {
	EmitAggregate(Snapshot)
}

// Stats accumulates the counters of one submit window. All counter
// fields are atomic so worker goroutines can update them without
// synchronizing with each other or with the supervisor.
type Stats struct {
	since time.Time

	totalBatches           atomic.Int64
	numShreds              atomic.Int64
	numShredsSkipped       atomic.Int64
	unknownShredSlotLeader atomic.Int64
	numAddrsFailed         atomic.Int64
	numNodes               atomic.Int64
	retransmitTotalMicros  atomic.Int64
	computeTurbineMicros   atomic.Int64
	epochFetchMicros       atomic.Int64
	cacheRefreshMicros     atomic.Int64
}

// New creates a fresh Stats window starting now.
func New() *Stats {
	return &Stats{since: time.Now()}
}

func (s *Stats) AddBatch()                              { s.totalBatches.Add(1) }
func (s *Stats) AddShredsSeen(n int64)                   { s.numShreds.Add(n) }
func (s *Stats) AddShredSkipped()                        { s.numShredsSkipped.Add(1) }
func (s *Stats) AddUnknownLeader()                       { s.unknownShredSlotLeader.Add(1) }
func (s *Stats) AddAddrsFailed(n int64)                  { s.numAddrsFailed.Add(n) }
func (s *Stats) AddNodesSent(n int64)                    { s.numNodes.Add(n) }
func (s *Stats) AddRetransmitMicros(d time.Duration)     { s.retransmitTotalMicros.Add(d.Microseconds()) }
func (s *Stats) AddComputeTurbineMicros(d time.Duration) { s.computeTurbineMicros.Add(d.Microseconds()) }
func (s *Stats) AddEpochFetchMicros(d time.Duration)     { s.epochFetchMicros.Add(d.Microseconds()) }
func (s *Stats) AddCacheRefreshMicros(d time.Duration)   { s.cacheRefreshMicros.Add(d.Microseconds()) }

// Elapsed reports how long the current window has been open.
func (s *Stats) Elapsed() time.Duration { return time.Since(s.since) }

// Snapshot takes an immutable copy of the current counters.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Since:                  s.since,
		TotalBatches:           s.totalBatches.Load(),
		NumShreds:              s.numShreds.Load(),
		NumShredsSkipped:       s.numShredsSkipped.Load(),
		UnknownShredSlotLeader: s.unknownShredSlotLeader.Load(),
		NumAddrsFailed:         s.numAddrsFailed.Load(),
		NumNodes:               s.numNodes.Load(),
		RetransmitTotalMicros:  s.retransmitTotalMicros.Load(),
		ComputeTurbineMicros:   s.computeTurbineMicros.Load(),
		EpochFetchMicros:       s.epochFetchMicros.Load(),
		CacheRefreshMicros:     s.cacheRefreshMicros.Load(),
	}
}

// MaybeSubmit emits a snapshot to sink and resets the counters if at
// least cadence has elapsed since the window opened; returns whether it
// submitted. The slot-stats ring is owned separately by the engine and
// is deliberately untouched here — it follows its own LRU-pressure
// lifetime, not this aggregate window's cadence.
func (s *Stats) MaybeSubmit(sink Sink, cadence time.Duration) bool {
	if s.Elapsed() < cadence {
		return false
	}
	if sink != nil {
		sink.EmitAggregate(s.Snapshot())
	}
	s.reset()
	return true
}

func (s *Stats) reset() {
	s.since = time.Now()
	s.totalBatches.Store(0)
	s.numShreds.Store(0)
	s.numShredsSkipped.Store(0)
	s.unknownShredSlotLeader.Store(0)
	s.numAddrsFailed.Store(0)
	s.numNodes.Store(0)
	s.retransmitTotalMicros.Store(0)
	s.computeTurbineMicros.Store(0)
	s.epochFetchMicros.Store(0)
	s.cacheRefreshMicros.Store(0)
}
