// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	snaps []Snapshot
}

func (s *recordingSink) EmitAggregate(snap Snapshot) { s.snaps = append(s.snaps, snap) }

func TestMonotonicityUntilReset(t *testing.T) {
	s := New()
	s.AddShredsSeen(1)
	s.AddShredSkipped()
	require.Equal(t, int64(1), s.Snapshot().NumShreds)
	s.AddShredsSeen(2)
	require.Equal(t, int64(3), s.Snapshot().NumShreds)
	require.Equal(t, int64(1), s.Snapshot().NumShredsSkipped)
}

func TestMaybeSubmitResetsPreservesNoRing(t *testing.T) {
	s := New()
	s.AddShredsSeen(5)
	sink := &recordingSink{}

	require.False(t, s.MaybeSubmit(sink, time.Hour))
	require.Empty(t, sink.snaps)

	require.True(t, s.MaybeSubmit(sink, 0))
	require.Len(t, sink.snaps, 1)
	require.Equal(t, int64(5), sink.snaps[0].NumShreds)
	require.Equal(t, int64(0), s.Snapshot().NumShreds, "counters reset after submit")
}
