// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package retransmit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/turbine/config"
	"github.com/luxfi/turbine/shred"
)

type scriptedIntake struct {
	mu            sync.Mutex
	batches       [][]*shred.Shred
	idx           int
	disconnectErr error
}

func (s *scriptedIntake) Recv(_ context.Context, _ time.Duration) ([]*shred.Shred, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idx >= len(s.batches) {
		if s.disconnectErr != nil {
			return nil, false, s.disconnectErr
		}
		return nil, false, nil
	}
	b := s.batches[s.idx]
	s.idx++
	return b, true, nil
}

func (s *scriptedIntake) TryRecv() ([]*shred.Shred, bool) { return nil, false }

func TestSupervisorRejectsEmptySockets(t *testing.T) {
	_, err := NewSupervisor(config.Default(), &scriptedIntake{}, Deps{}, 1)
	require.ErrorIs(t, err, ErrNoSockets)
}

func TestSupervisorRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.MaxDuplicateCount = 0
	_, err := NewSupervisor(cfg, &scriptedIntake{}, Deps{Sockets: []Socket{&recordingSocket{}}}, 1)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSupervisorStopsOnDisconnect(t *testing.T) {
	engine, socket, _ := buildEngine(t, 3)
	intake := &scriptedIntake{
		batches: [][]*shred.Shred{
			{shred.New(shred.ID{Slot: 1, Index: 0}, []byte("a"))},
		},
		disconnectErr: errors.New("eof"),
	}
	sv := &Supervisor{engine: engine, intake: intake, cfg: config.Default()}

	err := sv.Run(context.Background())
	require.Error(t, err)
	require.Equal(t, uint64(1), engine.MaxRetransmitSlot())
	require.GreaterOrEqual(t, socket.totalSent(), 0)
}

func TestSupervisorStopsOnContextCancel(t *testing.T) {
	engine, _, _ := buildEngine(t, 3)
	intake := &scriptedIntake{} // never has data, never disconnects
	sv := &Supervisor{engine: engine, intake: intake, cfg: config.Default()}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := sv.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
