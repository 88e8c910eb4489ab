// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package clusternodes

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/ids"
	"github.com/luxfi/validators"
)

type fixedSchedule struct{ slotsPerEpoch uint64 }

func (f fixedSchedule) EpochOf(slot uint64) uint64 { return slot / f.slotsPerEpoch }

type fixedStakes struct {
	out map[ids.NodeID]*validators.GetValidatorOutput
}

func (f fixedStakes) GetValidatorSet(context.Context, uint64) (map[ids.NodeID]*validators.GetValidatorOutput, error) {
	return f.out, nil
}

type fakeClusterInfo struct {
	peers   []Peer
	local   ids.NodeID
	version uint32
	policy  AddressPolicy
}

func (f fakeClusterInfo) Peers() []Peer                { return f.peers }
func (f fakeClusterInfo) AddressPolicy() AddressPolicy { return f.policy }
func (f fakeClusterInfo) LocalNodeID() ids.NodeID      { return f.local }
func (f fakeClusterInfo) LocalShredVersion() uint32    { return f.version }

func mustAddr(s string) netip.AddrPort { return netip.MustParseAddrPort(s) }

func nodeID(b byte) ids.NodeID {
	var n ids.NodeID
	n[0] = b
	return n
}

func buildTestCache(t *testing.T, numPeers int) (*Cache, fakeClusterInfo, ids.NodeID) {
	t.Helper()
	leader := nodeID(1)
	local := nodeID(2)

	peers := []Peer{{NodeID: leader, Addr: mustAddr("10.0.0.1:8001"), ShredVersion: 7}}
	stakes := map[ids.NodeID]*validators.GetValidatorOutput{}
	for i := 0; i < numPeers; i++ {
		id := nodeID(byte(10 + i))
		peers = append(peers, Peer{NodeID: id, Addr: mustAddr("10.0.0.2:9000"), ShredVersion: 7})
		stakes[id] = &validators.GetValidatorOutput{NodeID: id, Weight: uint64(i + 1)}
	}
	// Ensure local is present with real routable address.
	peers = append(peers, Peer{NodeID: local, Addr: mustAddr("10.0.0.3:9100"), ShredVersion: 7})
	stakes[local] = &validators.GetValidatorOutput{NodeID: local, Weight: 5}

	info := fakeClusterInfo{peers: peers, local: local, version: 7, policy: PublicNode{}}
	cache := NewCache(8, 5*time.Second, fixedSchedule{slotsPerEpoch: 100}, fixedStakes{out: stakes})
	return cache, info, leader
}

func TestLeafNonTransmission(t *testing.T) {
	cache, info, leader := buildTestCache(t, 500)
	snap, err := cache.Get(context.Background(), 10, leader, info)
	require.NoError(t, err)

	// Force local to a leaf position to exercise the invariant directly.
	snap.local = len(snap.order) - 1
	dist, addrs := snap.GetRetransmitAddrs(leader, nil, 200)
	require.Equal(t, 2, dist)
	require.Empty(t, addrs)
}

func TestRootDistanceZeroHasChildren(t *testing.T) {
	cache, info, leader := buildTestCache(t, 500)
	snap, err := cache.Get(context.Background(), 10, leader, info)
	require.NoError(t, err)

	snap.local = 0
	dist, addrs := snap.GetRetransmitAddrs(leader, nil, 200)
	require.Equal(t, 0, dist)
	require.NotEmpty(t, addrs)
}

func TestCacheTTLExpiry(t *testing.T) {
	leader := nodeID(1)
	local := nodeID(2)
	peers := []Peer{
		{NodeID: leader, Addr: mustAddr("10.0.0.1:8001"), ShredVersion: 1},
		{NodeID: local, Addr: mustAddr("10.0.0.2:8002"), ShredVersion: 1},
	}
	stakes := map[ids.NodeID]*validators.GetValidatorOutput{
		local: {NodeID: local, Weight: 1},
	}
	info := fakeClusterInfo{peers: peers, local: local, version: 1, policy: PublicNode{}}
	cache := NewCache(8, time.Millisecond, fixedSchedule{slotsPerEpoch: 100}, fixedStakes{out: stakes})

	first, err := cache.Get(context.Background(), 5, leader, info)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := cache.Get(context.Background(), 5, leader, info)
	require.NoError(t, err)
	require.NotSame(t, first, second)
}

func TestCacheEvictsOverCapacity(t *testing.T) {
	leader := nodeID(1)
	local := nodeID(2)
	peers := []Peer{
		{NodeID: leader, Addr: mustAddr("10.0.0.1:8001"), ShredVersion: 1},
		{NodeID: local, Addr: mustAddr("10.0.0.2:8002"), ShredVersion: 1},
	}
	stakes := map[ids.NodeID]*validators.GetValidatorOutput{local: {NodeID: local, Weight: 1}}
	info := fakeClusterInfo{peers: peers, local: local, version: 1, policy: PublicNode{}}
	cache := NewCache(2, time.Hour, fixedSchedule{slotsPerEpoch: 1}, fixedStakes{out: stakes})

	for epoch := uint64(0); epoch < 5; epoch++ {
		_, err := cache.Get(context.Background(), epoch, leader, info)
		require.NoError(t, err)
	}
	require.LessOrEqual(t, len(cache.entries), 2)
}

func TestAddressPolicyFiltersUnspecified(t *testing.T) {
	require.False(t, PublicNode{}.Allowed(mustAddr("0.0.0.0:1000")))
	require.False(t, PublicNode{}.Allowed(mustAddr("127.0.0.1:1000")))
	require.True(t, PublicNode{}.Allowed(mustAddr("8.8.8.8:1000")))
	require.True(t, PermitAll{}.Allowed(mustAddr("127.0.0.1:1000")))
}
