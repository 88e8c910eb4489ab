// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package shred defines the block-fragment type the retransmit core
// forwards. It is intentionally thin: signature verification and
// decoding happen upstream, before a shred ever reaches this core.
package shred

// Kind distinguishes a shred's role within its slot's erasure-coded batch.
type Kind uint8

const (
	// KindData carries block data directly.
	KindData Kind = iota
	// KindCode carries erasure-coding parity data.
	KindCode
)

// ID uniquely identifies a shred's logical position within a slot. Two
// shreds sharing an ID but differing in Payload are distinct physical
// encodings of the same position — the signal the deduper uses to bound
// (rather than forbid) equivocation.
type ID struct {
	Slot  uint64
	Index uint32
	Kind  Kind
}

// Shred is an immutable, signature-verified block fragment eligible for
// retransmission. Payload is the exact wire form received; retransmission
// sends it byte-identical to every selected peer.
type Shred struct {
	id      ID
	payload []byte
}

// New constructs a Shred. Payload is retained, not copied: callers must
// not mutate it after construction.
func New(id ID, payload []byte) *Shred {
	return &Shred{id: id, payload: payload}
}

// Slot returns the shred's slot number.
func (s *Shred) Slot() uint64 { return s.id.Slot }

// ID returns the shred's logical position identifier.
func (s *Shred) ID() ID { return s.id }

// Payload returns the shred's wire bytes, verbatim.
func (s *Shred) Payload() []byte { return s.payload }
