// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package retransmit

import (
	"context"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/luxfi/log"

	"github.com/luxfi/turbine/clusternodes"
	"github.com/luxfi/turbine/config"
	"github.com/luxfi/turbine/dedup"
	"github.com/luxfi/turbine/firstshred"
	"github.com/luxfi/turbine/shred"
	"github.com/luxfi/turbine/slotstats"
	"github.com/luxfi/turbine/stats"
)

// Deps bundles the external collaborators an Engine needs, all
// borrowed read-only by the worker pool except where noted.
type Deps struct {
	Sockets        []Socket
	ForkState      ForkStateReader
	LeaderSchedule LeaderSchedule
	ClusterInfo    clusternodes.ClusterInfo
	StakeProvider  clusternodes.StakeProvider
	EpochSchedule  clusternodes.EpochSchedule
	RPCSink        FirstShredSink // optional; nil disables notifications
	StatsSink      stats.Sink     // optional
	SlotStatsSink  slotstats.Sink // optional
	Log            log.Logger
}

// Engine runs one batch of shreds through the full retransmit pipeline.
// It owns the deduper, cluster-nodes cache, slot-stats ring,
// first-shred tracker, and aggregate stats; the socket array and
// collaborators in Deps are borrowed.
type Engine struct {
	cfg  config.Config
	deps Deps

	deduper   *dedup.ShredDeduper
	nodes     *clusternodes.Cache
	ring      *slotstats.Ring
	firstSeen *firstshred.Tracker
	agg       *stats.Stats

	maxRetransmitSlot atomicU64
	rng               *rand.Rand
}

// NewEngine constructs an Engine. rngSeed seeds the deduper's filters and
// its own reset reseeding; pass a fixed seed only in tests.
func NewEngine(cfg config.Config, deps Deps, rngSeed int64) *Engine {
	rng := rand.New(rand.NewSource(rngSeed))
	return &Engine{
		cfg:       cfg,
		deps:      deps,
		deduper:   dedup.New(rng, cfg.DeduperNumBits, cfg.MaxDuplicateCount),
		nodes:     clusternodes.NewCache(cfg.ClusterNodesCacheEpochCap, cfg.ClusterNodesCacheTTL, deps.EpochSchedule, deps.StakeProvider),
		ring:      slotstats.NewRing(cfg.SlotStatsCapacity, deps.SlotStatsSink),
		firstSeen: firstshred.NewTracker(cfg.FirstShredsPruneThreshold),
		agg:       stats.New(),
		rng:       rng,
	}
}

// MaxRetransmitSlot returns the highest slot number observed so far,
// for downstream observability (e.g. repair/catch-up heuristics).
func (e *Engine) MaxRetransmitSlot() uint64 { return e.maxRetransmitSlot.Load() }

// RingLen exposes the slot-stats ring's current size, for tests.
func (e *Engine) RingLen() int { return e.ring.Len() }

// RunBatch drives one batch through the pipeline: a single fork-state
// snapshot and deduper reset, then a parallel fan-out over the worker
// pool, then a slot-stats upsert and stats submit. It must never be
// called concurrently with itself: the supervisor drives exactly one
// batch at a time, which is also what lets MaybeReset run here without
// racing worker activity.
func (e *Engine) RunBatch(ctx context.Context, shreds []*shred.Shred) {
	if len(shreds) == 0 {
		return
	}
	e.agg.AddBatch()
	e.agg.AddShredsSeen(int64(len(shreds)))

	fetchStart := time.Now()
	working, root := e.deps.ForkState.Snapshot()
	e.agg.AddEpochFetchMicros(time.Since(fetchStart))

	refreshStart := time.Now()
	e.deduper.MaybeReset(e.rng, e.cfg.DeduperFalsePositiveRate, e.cfg.DeduperResetCycle)
	e.agg.AddCacheRefreshMicros(time.Since(refreshStart))

	folded := e.processParallel(ctx, shreds, working, root)
	e.ring.UpsertAll(folded)

	e.agg.MaybeSubmit(e.deps.StatsSink, e.cfg.SubmitCadence)
}

// processParallel chunks shreds across the worker pool and reduces the
// per-worker folds pairwise, merging the smaller map into the larger to
// keep reduction work proportional.
func (e *Engine) processParallel(ctx context.Context, shreds []*shred.Shred, working, root BankView) map[uint64]*slotstats.Stats {
	numWorkers := e.cfg.WorkerCount(runtime.NumCPU(), len(e.deps.Sockets))
	if numWorkers > len(shreds) {
		numWorkers = len(shreds)
	}
	chunkSize := e.cfg.WorkerMinChunk
	if perWorker := (len(shreds) + numWorkers - 1) / numWorkers; perWorker > chunkSize {
		chunkSize = perWorker
	}

	var wg sync.WaitGroup
	results := make(chan map[uint64]*slotstats.Stats, numWorkers+1)
	workerIdx := 0
	for start := 0; start < len(shreds); start += chunkSize {
		end := start + chunkSize
		if end > len(shreds) {
			end = len(shreds)
		}
		chunk := shreds[start:end]
		idx := workerIdx
		workerIdx++
		wg.Add(1)
		go func() {
			defer wg.Done()
			socket := e.deps.Sockets[idx%len(e.deps.Sockets)]
			results <- e.processChunk(ctx, chunk, working, root, socket)
		}()
	}
	wg.Wait()
	close(results)

	var folds []map[uint64]*slotstats.Stats
	for m := range results {
		folds = append(folds, m)
	}
	return reduceFolds(folds)
}

// processChunk is what one worker goroutine runs over its slice of the
// batch.
func (e *Engine) processChunk(ctx context.Context, chunk []*shred.Shred, working, root BankView, socket Socket) map[uint64]*slotstats.Stats {
	out := make(map[uint64]*slotstats.Stats)
	for _, s := range chunk {
		rootDistance, numSent, ok := e.processOne(ctx, s, working, root, socket)
		if !ok {
			continue
		}
		now := nowMillis()
		st, exists := out[s.Slot()]
		if !exists {
			st = &slotstats.Stats{}
			out[s.Slot()] = st
		}
		st.Record(now, rootDistance, numSent)
	}
	return out
}

func (e *Engine) processOne(ctx context.Context, s *shred.Shred, working, root BankView, socket Socket) (rootDistance int, numSent int, ok bool) {
	if e.deduper.Dedup(s) {
		e.agg.AddShredSkipped()
		return 0, 0, false
	}

	e.maxRetransmitSlot.Max(s.Slot())

	if e.deps.RPCSink != nil && e.firstSeen.Observe(s.Slot(), root.Slot()) {
		e.deps.RPCSink.NotifyFirstShred(s.Slot(), nowMillis())
	}

	// TODO: consider using the root bank here for leader lookup. Shreds
	// are signature-verified upstream, so an unknown leader should be
	// rare; this is a known inconsistency with the root-bank schedule,
	// preserved from the source implementation (see DESIGN.md).
	leader, known := e.deps.LeaderSchedule.At(s.Slot(), working)
	if !known {
		e.agg.AddUnknownLeader()
		return 0, 0, false
	}

	turbineStart := time.Now()
	snap, err := e.nodes.Get(ctx, s.Slot(), leader, e.deps.ClusterInfo)
	if err != nil {
		if e.deps.Log != nil {
			e.deps.Log.Warn("cluster nodes lookup failed", "slot", s.Slot(), "error", err)
		}
		return 0, 0, false
	}
	dist, addrs := snap.GetRetransmitAddrs(leader, s, e.cfg.DataPlaneFanout)
	e.agg.AddComputeTurbineMicros(time.Since(turbineStart))

	if dist == 2 || len(addrs) == 0 {
		// Leaves never retransmit; still a processed (non-skipped) shred.
		return dist, 0, true
	}

	sendStart := time.Now()
	sent, err := socket.SendTo(s.Payload(), addrs)
	e.agg.AddRetransmitMicros(time.Since(sendStart))
	if err != nil {
		failed := len(addrs) - sent
		if failed < 0 {
			failed = 0
		}
		e.agg.AddAddrsFailed(int64(failed))
		if e.deps.Log != nil {
			e.deps.Log.Warn("retransmit send error", "slot", s.Slot(), "failed", failed, "total", len(addrs), "error", err)
		}
	}
	e.agg.AddNodesSent(int64(sent))
	return dist, sent, true
}

// reduceFolds merges a set of per-worker slot-stats maps into one,
// merging the smaller map into the larger at each step.
func reduceFolds(folds []map[uint64]*slotstats.Stats) map[uint64]*slotstats.Stats {
	if len(folds) == 0 {
		return map[uint64]*slotstats.Stats{}
	}
	acc := folds[0]
	for _, next := range folds[1:] {
		if len(next) > len(acc) {
			acc, next = next, acc
		}
		for slot, st := range next {
			if existing, ok := acc[slot]; ok {
				existing.Merge(st)
			} else {
				acc[slot] = st
			}
		}
	}
	return acc
}

func nowMillis() int64 { return time.Now().UnixMilli() }

// atomicU64 is a monotone high-water-mark counter, updated concurrently
// by every worker goroutine without a shared lock.
type atomicU64 struct {
	v atomic.Uint64
}

func (a *atomicU64) Load() uint64 { return a.v.Load() }

func (a *atomicU64) Max(candidate uint64) {
	for {
		cur := a.v.Load()
		if candidate <= cur {
			return
		}
		if a.v.CompareAndSwap(cur, candidate) {
			return
		}
	}
}
