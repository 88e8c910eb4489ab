// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package slotstats

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	emitted []EvictedRecord
}

func (s *recordingSink) EmitSlotStats(rec EvictedRecord) {
	s.emitted = append(s.emitted, rec)
}

func TestMergeLaw(t *testing.T) {
	a := &Stats{Outset: 100, Asof: 150}
	a.NumShredsReceived[0] = 2
	a.NumShredsSent[0] = 6

	b := &Stats{Outset: 90, Asof: 200}
	b.NumShredsReceived[0] = 1
	b.NumShredsSent[0] = 3

	a.Merge(b)
	require.Equal(t, int64(90), a.Outset)
	require.Equal(t, int64(200), a.Asof)
	require.Equal(t, 3, a.NumShredsReceived[0])
	require.Equal(t, 9, a.NumShredsSent[0])
}

func TestLRUEvictsExactlyOnce(t *testing.T) {
	sink := &recordingSink{}
	ring := NewRing(750, sink)

	for slot := uint64(0); slot < 751; slot++ {
		stats := &Stats{Outset: int64(slot) + 1, Asof: int64(slot) + 1}
		stats.NumShredsReceived[0] = 1
		ring.Upsert(slot, stats)
	}

	require.Equal(t, 750, ring.Len())
	require.Len(t, sink.emitted, 1)
	require.Equal(t, uint64(0), sink.emitted[0].Slot, "earliest-inserted slot evicted first")
}

func TestUpsertMergesExistingSlot(t *testing.T) {
	ring := NewRing(10, nil)
	s1 := &Stats{Outset: 5, Asof: 5}
	s1.NumShredsReceived[1] = 1
	ring.Upsert(42, s1)

	s2 := &Stats{Outset: 6, Asof: 8}
	s2.NumShredsReceived[1] = 1
	ring.Upsert(42, s2)

	got, ok := ring.cache.Get(42)
	require.True(t, ok)
	require.Equal(t, 2, got.NumShredsReceived[1])
	require.Equal(t, int64(5), got.Outset)
	require.Equal(t, int64(8), got.Asof)
}
