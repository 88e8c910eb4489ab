// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package clusternodes implements the bounded, TTL-based memoization of
// the deterministic peer-selection computation keyed by epoch (spec
// §4.2), and the stake-weighted broadcast-tree layout it serves.
package clusternodes

import (
	"context"
	"net/netip"
	"sync"
	"time"

	"github.com/luxfi/ids"
	"github.com/luxfi/validators"

	"github.com/luxfi/turbine/internal/sampler"
	"github.com/luxfi/turbine/shred"
)

// Peer is a cluster member known to the local node's gossip layer.
type Peer struct {
	NodeID       ids.NodeID
	Addr         netip.AddrPort
	ShredVersion uint32
}

// AddressPolicy decides whether a candidate retransmit destination may be
// sent to. The only place in this package where peer-address trust is
// asserted; callers must not bypass it.
type AddressPolicy interface {
	Allowed(addr netip.AddrPort) bool
}

// PublicNode rejects unspecified, loopback, and link-local-unicast
// addresses — the policy for a node with peers reachable only over
// routable addresses.
type PublicNode struct{}

func (PublicNode) Allowed(addr netip.AddrPort) bool {
	if !addr.IsValid() || addr.Port() == 0 {
		return false
	}
	ip := addr.Addr()
	return !(ip.IsUnspecified() || ip.IsLoopback() || ip.IsLinkLocalUnicast())
}

// PermitAll allows any syntactically valid address. Intended for local
// or fully-trusted test clusters only.
type PermitAll struct{}

func (PermitAll) Allowed(addr netip.AddrPort) bool { return addr.IsValid() && addr.Port() != 0 }

// ClusterInfo exposes the node's gossip-derived view of the cluster.
type ClusterInfo interface {
	Peers() []Peer
	AddressPolicy() AddressPolicy
	LocalNodeID() ids.NodeID
	LocalShredVersion() uint32
}

// EpochSchedule maps a slot to the epoch that contains it.
type EpochSchedule interface {
	EpochOf(slot uint64) uint64
}

// StakeProvider supplies the stake-weighted validator set for an epoch,
// mirroring validators.State.GetValidatorSet but indexed by epoch rather
// than block height.
type StakeProvider interface {
	GetValidatorSet(ctx context.Context, epoch uint64) (map[ids.NodeID]*validators.GetValidatorOutput, error)
}

type cacheEntry struct {
	snapshot  *Snapshot
	createdAt time.Time
}

// Cache is a bounded, TTL-based memoization of per-epoch snapshots.
// Reads dominate; a write occurs on cache miss
// and may originate from any worker goroutine, so access is guarded by
// an RWMutex rather than the generic internal/lru.Cache (which assumes a
// single-writer-at-a-time discipline).
type Cache struct {
	mu       sync.RWMutex
	entries  map[uint64]*cacheEntry
	order    []uint64 // least-recently-inserted first
	cap      int
	ttl      time.Duration
	schedule EpochSchedule
	stakes   StakeProvider
}

// NewCache creates a Cache bounded to cap epochs, each entry valid for ttl.
func NewCache(cap int, ttl time.Duration, schedule EpochSchedule, stakes StakeProvider) *Cache {
	return &Cache{
		entries:  make(map[uint64]*cacheEntry),
		cap:      cap,
		ttl:      ttl,
		schedule: schedule,
		stakes:   stakes,
	}
}

// Get returns the snapshot for the epoch containing slot, computing and
// caching a fresh one if the cached entry is missing, stale, or rooted
// at a different leader than requested (see DESIGN.md: this recomputes
// more often than pure epoch-TTL freshness would, trading cache hit
// rate for the invariant that Get never hands back a shuffle rooted at
// the wrong leader).
func (c *Cache) Get(ctx context.Context, slot uint64, leader ids.NodeID, info ClusterInfo) (*Snapshot, error) {
	epoch := c.schedule.EpochOf(slot)

	c.mu.RLock()
	if e, ok := c.entries[epoch]; ok && time.Since(e.createdAt) < c.ttl {
		snap := e.snapshot
		c.mu.RUnlock()
		if snap.leader == leader {
			return snap, nil
		}
	} else {
		c.mu.RUnlock()
	}

	stakeMap, err := c.stakes.GetValidatorSet(ctx, epoch)
	if err != nil {
		return nil, err
	}
	snap := buildSnapshot(epoch, slot, leader, stakeMap, info)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[epoch]; !exists {
		c.order = append(c.order, epoch)
		for c.cap > 0 && len(c.order) > c.cap {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
	}
	c.entries[epoch] = &cacheEntry{snapshot: snap, createdAt: time.Now()}
	return snap, nil
}

// Snapshot is a deterministic ordering of cluster peers for one epoch,
// rooted at one slot leader, keyed off a stake-weighted shuffle.
type Snapshot struct {
	epoch  uint64
	leader ids.NodeID
	order  []Peer // shuffled peers, excluding the leader itself
	local  int    // index of the local node in order, or -1 if absent
	policy AddressPolicy
}

func buildSnapshot(epoch, slot uint64, leader ids.NodeID, stakeMap map[ids.NodeID]*validators.GetValidatorOutput, info ClusterInfo) *Snapshot {
	localVersion := info.LocalShredVersion()
	candidates := make([]Peer, 0, len(info.Peers()))
	for _, p := range info.Peers() {
		if p.NodeID == leader {
			continue
		}
		if p.ShredVersion != localVersion {
			continue
		}
		candidates = append(candidates, p)
	}

	weights := make([]uint64, len(candidates))
	for i, p := range candidates {
		if out, ok := stakeMap[p.NodeID]; ok {
			weights[i] = out.Weight
		}
	}

	src := sampler.NewSource(shuffleSeed(epoch, leader))
	perm := sampler.WeightedShuffle(weights, src)

	order := make([]Peer, len(perm))
	local := -1
	for i, idx := range perm {
		order[i] = candidates[idx]
		if candidates[idx].NodeID == info.LocalNodeID() {
			local = i
		}
	}
	return &Snapshot{
		epoch:  epoch,
		leader: leader,
		order:  order,
		local:  local,
		policy: info.AddressPolicy(),
	}
}

// shuffleSeed mixes epoch and slot leader into a deterministic int64 seed
// so every validator computes the identical shuffle for the same inputs.
func shuffleSeed(epoch uint64, leader ids.NodeID) int64 {
	h := xxhashSeed(epoch, leader)
	return int64(h) //nolint:gosec // deterministic seed, not a security boundary
}

// GetRetransmitAddrs returns the local node's distance from the root and
// the addresses it must forward s to, per the fanout-ary tree layout.
// Leaf nodes (root distance 2) always return an empty address list.
func (s *Snapshot) GetRetransmitAddrs(_ ids.NodeID, _ *shred.Shred, fanout int) (rootDistance int, addrs []netip.AddrPort) {
	if s.local < 0 {
		// Local node isn't part of this epoch's shuffle (e.g. not yet a
		// known peer); treat as a leaf so it neither claims addresses
		// nor blocks the batch.
		return 2, nil
	}
	children := childIndices(s.local, fanout, len(s.order))
	distance := rootDistanceOf(s.local, fanout)
	if distance >= 2 {
		return 2, nil
	}
	addrs = make([]netip.AddrPort, 0, len(children))
	for _, ci := range children {
		peer := s.order[ci]
		if s.policy.Allowed(peer.Addr) {
			addrs = append(addrs, peer.Addr)
		}
	}
	return distance, addrs
}

// rootDistanceOf returns 0 for the root (index 0, directly downstream of
// the leader), 1 for the next fanout entries (the first forwarding
// layer), and 2 for everything else (leaves, which never retransmit).
func rootDistanceOf(index, fanout int) int {
	if index == 0 {
		return 0
	}
	if index <= fanout {
		return 1
	}
	return 2
}

// childIndices returns the indices in order that are index's children in
// the fanout-ary tree. The root owns the fanout entries of the distance-1
// layer; distance-1 nodes each own a contiguous block of fanout entries
// in the distance-2 (leaf) layer.
func childIndices(index, fanout, n int) []int {
	var start int
	switch rootDistanceOf(index, fanout) {
	case 0:
		start = 1
	case 1:
		start = 1 + fanout + (index-1)*fanout
	default:
		return nil
	}
	if start >= n {
		return nil
	}
	end := start + fanout
	if end > n {
		end = n
	}
	out := make([]int, end-start)
	for i := range out {
		out[i] = start + i
	}
	return out
}
