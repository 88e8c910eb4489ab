// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package firstshred implements the monotone tracker of slot numbers
// observed for the first time, used to drive FirstShredReceived RPC
// subscription notifications.
package firstshred

import (
	"sync"

	set "github.com/luxfi/turbine/internal/setutil"
)

// Tracker is the mutex-guarded set of slots already observed. Besides
// the cluster-nodes cache's read-write lock, its mutex is the only lock
// in the retransmit hot path: one insert plus an occasional prune.
type Tracker struct {
	mu             sync.Mutex
	slots          set.Set[uint64]
	pruneThreshold int
}

// NewTracker creates a Tracker that prunes down to slots > rootSlot once
// its size exceeds pruneThreshold.
func NewTracker(pruneThreshold int) *Tracker {
	return &Tracker{slots: set.NewSet[uint64](0), pruneThreshold: pruneThreshold}
}

// Observe reports whether shredSlot is being seen for the first time.
// Slots at or below rootSlot are ignored (stale) and always report false.
func (t *Tracker) Observe(shredSlot, rootSlot uint64) bool {
	if shredSlot <= rootSlot {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.slots.Contains(shredSlot) {
		return false
	}
	t.slots.Add(shredSlot)
	novel := true
	if t.slots.Len() > t.pruneThreshold {
		t.pruneLocked(rootSlot)
	}
	return novel
}

// pruneLocked retains only slots > rootSlot. Caller must hold t.mu.
func (t *Tracker) pruneLocked(rootSlot uint64) {
	kept := set.NewSet[uint64](t.slots.Len())
	for _, s := range t.slots.List() {
		if s > rootSlot {
			kept.Add(s)
		}
	}
	t.slots = kept
}

// Len returns the number of tracked slots, for tests and diagnostics.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.slots.Len()
}
