// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package lru implements a generic, entry-capped least-recently-used
// cache with an optional eviction callback. It backs the slot-stats
// ring, which uses OnEvict as its sole metrics-emission path.
package lru

import (
	"container/list"
	"sync"
)

// Cache is a capacity-bounded LRU keyed by K, holding values V. Get and
// Put both count as a touch (move-to-front). OnEvict, if set, is invoked
// synchronously with the lock held whenever an entry is evicted to make
// room for a new one — callers must not call back into the Cache from
// within OnEvict.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	ll      *list.List
	entries map[K]*list.Element
	cap     int
	OnEvict func(K, V)
}

type entry[K comparable, V any] struct {
	key   K
	value V
}

// New creates a Cache bounded to cap entries. cap <= 0 means unbounded.
func New[K comparable, V any](cap int) *Cache[K, V] {
	return &Cache[K, V]{
		ll:      list.New(),
		entries: make(map[K]*list.Element),
		cap:     cap,
	}
}

// Get returns the value for k, touching it to the front if present.
func (c *Cache[K, V]) Get(k K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[k]; ok {
		c.ll.MoveToFront(el)
		return el.Value.(*entry[K, V]).value, true
	}
	var zero V
	return zero, false
}

// Put inserts or updates k -> v, touching it to the front, and evicts
// the least-recently-used entry if the cache is now over capacity.
func (c *Cache[K, V]) Put(k K, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[k]; ok {
		el.Value.(*entry[K, V]).value = v
		c.ll.MoveToFront(el)
		return
	}
	el := c.ll.PushFront(&entry[K, V]{key: k, value: v})
	c.entries[k] = el
	c.evict()
}

// Len returns the number of entries currently cached.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

func (c *Cache[K, V]) evict() {
	for c.cap > 0 && c.ll.Len() > c.cap {
		back := c.ll.Back()
		if back == nil {
			return
		}
		en := back.Value.(*entry[K, V])
		delete(c.entries, en.key)
		c.ll.Remove(back)
		if c.OnEvict != nil {
			c.OnEvict(en.key, en.value)
		}
	}
}
