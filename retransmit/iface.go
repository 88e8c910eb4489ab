// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package retransmit implements the per-batch retransmit engine and its
// supervising goroutine: the pipeline that composes the deduper,
// cluster-nodes cache, slot-stats ring, and first-shred tracker, and
// drives the parallel fan-out over a fixed socket pool.
package retransmit

import (
	"context"
	"net/netip"
	"time"

	"github.com/luxfi/ids"

	"github.com/luxfi/turbine/shred"
)

// Intake is the multi-producer, single-consumer queue of shred batches
// the window service delivers to this core.
type Intake interface {
	// Recv blocks up to timeout for the next batch. ok is false on
	// timeout (benign, caller should loop); err is non-nil only on
	// permanent disconnect, which terminates the supervisor.
	Recv(ctx context.Context, timeout time.Duration) (batch []*shred.Shred, ok bool, err error)
	// TryRecv returns an immediately-available batch without blocking,
	// or ok=false if none is pending.
	TryRecv() (batch []*shred.Shred, ok bool)
}

// Socket is one pre-bound datagram socket. The engine selects one by
// worker index modulo socket count and issues a single scatter send per
// shred; the kernel serializes concurrent sends on the same descriptor.
type Socket interface {
	SendTo(payload []byte, addrs []netip.AddrPort) (sent int, err error)
}

// BankView is the minimal fork-state accessor the engine needs: its
// slot number. The root bank's slot is the first-shred tracker's
// watermark; the working bank is handed to LeaderSchedule.At.
type BankView interface {
	Slot() uint64
}

// ForkStateReader supplies (working, root) bank snapshots atomically
// with respect to one another, taken once per batch to bound
// inconsistency within that batch.
type ForkStateReader interface {
	Snapshot() (working, root BankView)
}

// LeaderSchedule resolves a slot's leader using the working bank, a
// known latent inconsistency with the root-bank schedule preserved
// here exactly as the source implementation leaves it (see DESIGN.md).
type LeaderSchedule interface {
	At(slot uint64, working BankView) (leader ids.NodeID, ok bool)
}

// FirstShredSink accepts FirstShredReceived notifications for the
// optional RPC subscription layer.
type FirstShredSink interface {
	NotifyFirstShred(slot uint64, nowMillis int64)
}
