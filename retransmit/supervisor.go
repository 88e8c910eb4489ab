// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package retransmit

import (
	"context"
	"errors"
	"fmt"

	"github.com/luxfi/turbine/config"
)

// Errors surfaced at construction time.
var (
	ErrNoSockets     = errors.New("retransmit: at least one socket is required")
	ErrInvalidConfig = errors.New("retransmit: invalid config")
)

// Supervisor owns an Engine and the long-lived loop that feeds it
// batches from Intake until the intake disconnects or ctx is cancelled.
type Supervisor struct {
	engine *Engine
	intake Intake
	cfg    config.Config
}

// NewSupervisor validates cfg and deps and constructs a Supervisor.
// rngSeed seeds the engine's deduper; callers should derive it from a
// real entropy source in production and a fixed value in tests.
func NewSupervisor(cfg config.Config, intake Intake, deps Deps, rngSeed int64) (*Supervisor, error) {
	if err := cfg.Verify(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if len(deps.Sockets) == 0 {
		return nil, ErrNoSockets
	}
	return &Supervisor{
		engine: NewEngine(cfg, deps, rngSeed),
		intake: intake,
		cfg:    cfg,
	}, nil
}

// Engine exposes the underlying engine, mainly for tests and metrics
// snapshots taken outside the run loop.
func (sv *Supervisor) Engine() *Engine { return sv.engine }

// Run drains batches from the intake until it permanently disconnects
// or ctx is cancelled. A timed-out Recv is benign and simply loops. Once
// the blocking Recv yields a batch, Run drains every immediately-
// available follow-up batch via TryRecv and flattens them all into the
// one batch handed to a single RunBatch call, so the fork-state
// snapshot and deduper reset for a drain cycle are taken exactly once
// regardless of how many sub-batches were pending.
func (sv *Supervisor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		batch, ok, err := sv.intake.Recv(ctx, sv.cfg.RecvTimeout)
		if err != nil {
			return fmt.Errorf("retransmit: intake disconnected: %w", err)
		}
		if !ok {
			continue
		}

		for {
			more, ok := sv.intake.TryRecv()
			if !ok {
				break
			}
			batch = append(batch, more...)
		}
		sv.engine.RunBatch(ctx, batch)
	}
}
