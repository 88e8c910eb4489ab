// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sampler

import "math/rand"

// Source is a source of pseudo-random uint64s. The cluster-nodes cache
// seeds a Source deterministically from (epoch, slot leader) so every
// validator computes the identical shuffle for a given slot.
type Source interface {
	Uint64() uint64
}

type source struct {
	r *rand.Rand
}

// NewSource returns a Source seeded deterministically from seed.
func NewSource(seed int64) Source {
	return &source{r: rand.New(rand.NewSource(seed))}
}

func (s *source) Uint64() uint64 { return s.r.Uint64() }
