// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config holds the tuning constants for the turbine retransmit
// core and a validated Config for wiring them into a Supervisor.
package config

import (
	"errors"
	"time"
)

// Error variables for config validation.
var (
	ErrInvalidMaxDuplicateCount = errors.New("max duplicate count must be >= 1")
	ErrInvalidDeduperBits       = errors.New("deduper num bits must be > 0")
	ErrInvalidFanout            = errors.New("data plane fanout must be >= 1")
	ErrInvalidEpochCap          = errors.New("cluster nodes cache epoch cap must be >= 1")
	ErrInvalidSlotStatsCap      = errors.New("slot stats capacity must be >= 1")
	ErrInvalidWorkerChunk       = errors.New("worker min chunk must be >= 1")
)

// Config collects the authoritative tuning constants of the retransmit
// core (§6 of the spec). All fields have defaults matching the source
// cluster's production configuration; override only for testing.
type Config struct {
	// MaxDuplicateCount bounds the number of distinct payloads admitted
	// per logical shred id within one deduper epoch.
	MaxDuplicateCount int

	// DeduperFalsePositiveRate is the target FPR that triggers a filter
	// rebuild once exceeded.
	DeduperFalsePositiveRate float64
	// DeduperNumBits sizes each of the two dedup filters.
	DeduperNumBits uint64
	// DeduperResetCycle is the minimum time between filter rebuilds.
	DeduperResetCycle time.Duration

	// ClusterNodesCacheEpochCap bounds the number of cached epochs.
	ClusterNodesCacheEpochCap int
	// ClusterNodesCacheTTL is the max age of a cached snapshot.
	ClusterNodesCacheTTL time.Duration

	// DataPlaneFanout is the branching factor of the broadcast tree.
	DataPlaneFanout int

	// RecvTimeout bounds the supervisor's blocking intake receive.
	RecvTimeout time.Duration
	// SubmitCadence is the aggregate-stats emission period.
	SubmitCadence time.Duration

	// SlotStatsCapacity bounds the slot-stats LRU.
	SlotStatsCapacity int
	// FirstShredsPruneThreshold triggers a prune of the first-shred set.
	FirstShredsPruneThreshold int

	// WorkerMinChunk is the minimum shreds-per-worker chunk size.
	WorkerMinChunk int
	// WorkerCountMax caps the worker pool regardless of CPU/socket count.
	WorkerCountMax int
}

// Default returns the retransmit core's production tuning constants.
func Default() Config {
	return Config{
		MaxDuplicateCount: 2,

		DeduperFalsePositiveRate: 1e-3,
		DeduperNumBits:           637_534_199,
		DeduperResetCycle:        300 * time.Second,

		ClusterNodesCacheEpochCap: 8,
		ClusterNodesCacheTTL:      5 * time.Second,

		DataPlaneFanout: 200,

		RecvTimeout:   time.Second,
		SubmitCadence: 2 * time.Second,

		SlotStatsCapacity:         750,
		FirstShredsPruneThreshold: 100,

		WorkerMinChunk: 4,
		WorkerCountMax: 8,
	}
}

// Verify validates the config, returning the first violated invariant.
func (c Config) Verify() error {
	switch {
	case c.MaxDuplicateCount < 1:
		return ErrInvalidMaxDuplicateCount
	case c.DeduperNumBits == 0:
		return ErrInvalidDeduperBits
	case c.DataPlaneFanout < 1:
		return ErrInvalidFanout
	case c.ClusterNodesCacheEpochCap < 1:
		return ErrInvalidEpochCap
	case c.SlotStatsCapacity < 1:
		return ErrInvalidSlotStatsCap
	case c.WorkerMinChunk < 1:
		return ErrInvalidWorkerChunk
	default:
		return nil
	}
}

// WorkerCount implements WORKER_COUNT = min(max(cpu, sockets), 8).
func (c Config) WorkerCount(cpu, sockets int) int {
	n := cpu
	if sockets > n {
		n = sockets
	}
	if n > c.WorkerCountMax {
		n = c.WorkerCountMax
	}
	if n < 1 {
		n = 1
	}
	return n
}
