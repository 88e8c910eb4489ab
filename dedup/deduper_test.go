// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dedup

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/turbine/shred"
)

func newTestDeduper() *ShredDeduper {
	rng := rand.New(rand.NewSource(1))
	return New(rng, 1<<16, 2)
}

func TestExactReplayRejected(t *testing.T) {
	d := newTestDeduper()
	s := shred.New(shred.ID{Slot: 10, Index: 0}, []byte("payload-a"))

	require.False(t, d.Dedup(s))
	require.True(t, d.Dedup(s))
}

func TestTwoDistinctPayloadsAdmittedThirdRejected(t *testing.T) {
	d := newTestDeduper()
	id := shred.ID{Slot: 10, Index: 3, Kind: shred.KindData}

	a := shred.New(id, []byte("payload-a"))
	b := shred.New(id, []byte("payload-b"))
	c := shred.New(id, []byte("payload-c"))

	require.False(t, d.Dedup(a), "first distinct payload admitted")
	require.False(t, d.Dedup(b), "second distinct payload admitted")
	require.True(t, d.Dedup(c), "third distinct payload rejected")
}

func TestDedupConcurrentSafe(t *testing.T) {
	d := newTestDeduper()
	id := shred.ID{Slot: 42, Index: 1}
	done := make(chan bool, 4)
	for i := 0; i < 4; i++ {
		payload := []byte{byte(i)}
		go func() {
			s := shred.New(id, payload)
			done <- d.Dedup(s)
		}()
	}
	admitted := 0
	for i := 0; i < 4; i++ {
		if !<-done {
			admitted++
		}
	}
	require.LessOrEqual(t, admitted, 2, "at most MAX_DUPLICATE_COUNT payloads admitted")
}
