// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package firstshred

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFirstShredUniqueness(t *testing.T) {
	tracker := NewTracker(100)
	const root = 2

	var novelCount int
	for _, slot := range []uint64{5, 5, 7, 5} {
		if tracker.Observe(slot, root) {
			novelCount++
		}
	}
	require.Equal(t, 2, novelCount)
}

func TestStaleSlotIgnored(t *testing.T) {
	tracker := NewTracker(100)
	require.False(t, tracker.Observe(2, 5))
	require.Equal(t, 0, tracker.Len())
}

func TestPruneRetainsOnlyAboveRoot(t *testing.T) {
	tracker := NewTracker(3)
	tracker.Observe(10, 0)
	tracker.Observe(11, 0)
	tracker.Observe(12, 0)
	tracker.Observe(13, 10) // triggers prune at size 4 > threshold 3, keeping > root=10

	require.LessOrEqual(t, tracker.Len(), 3)
	require.False(t, tracker.slots.Contains(uint64(10)))
}
