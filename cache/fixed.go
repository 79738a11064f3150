// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package cache

import (
	"sync"
	"sync/atomic"
)

// DefaultCapacity is the number of entries a Fixed cache holds when created
// with a non-positive capacity.
const DefaultCapacity = 3

// EvictFunc is called for every value that leaves the cache, whether by
// eviction, Delete or Clear. It runs with the cache lock held.
type EvictFunc[K comparable, V any] func(key K, value V)

// Fixed is a thread-safe cache with a fixed number of entries and arbitrary
// eviction.
type Fixed[K comparable, V any] struct {
	mu       sync.Mutex
	entries  []fixedEntry[K, V]
	next     int // rotating eviction victim
	onEvict  EvictFunc[K, V]
	capacity int

	size      atomic.Int64
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

type fixedEntry[K comparable, V any] struct {
	key   K
	value V
	used  bool
}

// NewFixed creates a cache holding at most capacity entries.
// If capacity <= 0, DefaultCapacity is used. onEvict may be nil.
func NewFixed[K comparable, V any](capacity int, onEvict EvictFunc[K, V]) *Fixed[K, V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Fixed[K, V]{
		entries:  make([]fixedEntry[K, V], capacity),
		onEvict:  onEvict,
		capacity: capacity,
	}
}

// Get retrieves a cached value by key.
func (c *Fixed[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.find(key); i >= 0 {
		c.hits.Add(1)
		return c.entries[i].value, true
	}
	c.misses.Add(1)
	var zero V
	return zero, false
}

// GetOrOpen returns the cached value for key, or calls open and caches its
// result. A failed open leaves the cache untouched. open runs with the cache
// lock held.
func (c *Fixed[K, V]) GetOrOpen(key K, open func(K) (V, error)) (V, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.find(key); i >= 0 {
		c.hits.Add(1)
		return c.entries[i].value, nil
	}
	c.misses.Add(1)

	value, err := open(key)
	if err != nil {
		var zero V
		return zero, err
	}
	c.insert(key, value)
	return value, nil
}

// Set stores value under key, replacing (and evicting) any previous value.
func (c *Fixed[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.find(key); i >= 0 {
		c.drop(i)
	}
	c.insert(key, value)
}

// Delete removes key from the cache. Returns true if it was present.
func (c *Fixed[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.find(key)
	if i < 0 {
		return false
	}
	c.drop(i)
	return true
}

// Clear removes every entry.
func (c *Fixed[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.entries {
		if c.entries[i].used {
			c.drop(i)
		}
	}
	c.next = 0
}

// Len returns the number of cached entries. Like Stats, it does not take the
// cache lock, so it never waits for an open in progress.
func (c *Fixed[K, V]) Len() int {
	return int(c.size.Load())
}

// Capacity returns the maximum number of entries.
func (c *Fixed[K, V]) Capacity() int {
	return c.capacity
}

// Stats returns current cache statistics without taking the cache lock.
func (c *Fixed[K, V]) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Len:       c.Len(),
		Capacity:  c.capacity,
		Hits:      hits,
		Misses:    misses,
		HitRate:   hitRate,
		Evictions: c.evictions.Load(),
	}
}

// ResetStats resets all statistics counters to zero.
func (c *Fixed[K, V]) ResetStats() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.evictions.Store(0)
}

func (c *Fixed[K, V]) find(key K) int {
	for i := range c.entries {
		if c.entries[i].used && c.entries[i].key == key {
			return i
		}
	}
	return -1
}

func (c *Fixed[K, V]) insert(key K, value V) {
	slot := -1
	for i := range c.entries {
		if !c.entries[i].used {
			slot = i
			break
		}
	}
	if slot < 0 {
		slot = c.next
		c.next = (c.next + 1) % c.capacity
		c.drop(slot)
		c.evictions.Add(1)
	}
	c.entries[slot] = fixedEntry[K, V]{key: key, value: value, used: true}
	c.size.Add(1)
}

func (c *Fixed[K, V]) drop(i int) {
	e := c.entries[i]
	c.entries[i] = fixedEntry[K, V]{}
	c.size.Add(-1)
	if c.onEvict != nil {
		c.onEvict(e.key, e.value)
	}
}

// Stats contains cache statistics.
type Stats struct {
	// Len is the current number of entries.
	Len int
	// Capacity is the maximum number of entries.
	Capacity int
	// Hits is the number of lookups served from the cache.
	Hits uint64
	// Misses is the number of lookups that had to open the value.
	Misses uint64
	// HitRate is Hits / (Hits + Misses), 0.0 to 1.0.
	HitRate float64
	// Evictions is the number of entries dropped to make room.
	Evictions uint64
}
