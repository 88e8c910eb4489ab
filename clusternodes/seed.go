// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package clusternodes

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"github.com/luxfi/ids"
)

// xxhashSeed mixes epoch and the slot leader's node id into a single
// uint64, used to seed the deterministic stake-weighted shuffle.
func xxhashSeed(epoch uint64, leader ids.NodeID) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], epoch)
	h := xxhash.New()
	_, _ = h.Write(buf[:])
	_, _ = h.Write(leader[:])
	return h.Sum64()
}
