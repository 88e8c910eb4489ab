// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package set implements a minimal generic set, trimmed to the
// operations the first-shred tracker needs: insert, membership test,
// size, and listing for the prune-on-size-threshold sweep.
package set

import "golang.org/x/exp/maps"

const minSetSize = 16

// Set is a set of elements.
type Set[T comparable] map[T]struct{}

// NewSet returns a new set with initial capacity size.
func NewSet[T comparable](size int) Set[T] {
	if size < 0 {
		size = 0
	}
	if size < minSetSize {
		size = minSetSize
	}
	return make(map[T]struct{}, size)
}

// Add inserts elt into the set; a no-op if already present.
func (s Set[T]) Add(elt T) {
	s[elt] = struct{}{}
}

// Contains reports whether elt is in the set.
func (s Set[T]) Contains(elt T) bool {
	_, ok := s[elt]
	return ok
}

// Len returns the number of elements in the set.
func (s Set[T]) Len() int {
	return len(s)
}

// List returns the set's elements in unspecified order.
func (s Set[T]) List() []T {
	return maps.Keys(s)
}
