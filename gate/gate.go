// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package gate provides the two-state keyed gate that hands ownership of a
// shared GPU surface back and forth between a producer and a consumer.
//
// A gate behaves like a cross-device keyed mutex: it is released with a key
// and can only be acquired by a caller asking for that same key. A relay slot
// uses two keys, Writable and Readable. The producer acquires Writable, copies,
// and releases with Readable; the consumer acquires Readable, samples, and
// releases with Writable. Because at most one party holds the gate at a time,
// the gate is the only synchronization the two sides need.
package gate

import (
	"errors"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"
)

// Key is the value a gate is released with and must be acquired with.
type Key uint32

const (
	// Writable is the key under which the producer may copy into a slot.
	Writable Key = 0

	// Readable is the key under which the consumer may sample a slot.
	Readable Key = 1
)

// String returns the key name.
func (k Key) String() string {
	switch k {
	case Writable:
		return "writable"
	case Readable:
		return "readable"
	default:
		return "key(" + strconv.FormatUint(uint64(k), 10) + ")"
	}
}

var (
	// ErrNotHeld is returned by Release when the gate is not held.
	ErrNotHeld = errors.New("gate: release of a gate that is not held")

	// ErrClosed is returned by Release on a closed gate.
	ErrClosed = errors.New("gate: gate is closed")
)

// KeyedMutex is the contract a backend exposes for each binding of a shared
// surface. Both bindings of one surface share a single token.
type KeyedMutex interface {
	// Acquire takes the gate if it was released with key. A zero timeout
	// polls once and never blocks. Acquire reports whether the gate was taken.
	Acquire(key Key, timeout time.Duration) bool

	// Release hands the gate back, tagging it with key.
	Release(key Key) error
}

const (
	heldBit   uint64 = 1 << 63
	closedBit uint64 = 1 << 62
	keyMask   uint64 = 1<<32 - 1
)

// Gate is an in-process KeyedMutex built on a single atomic word.
// The zero value is a released gate with key Writable.
//
// Acquire and Release use sequentially consistent atomics, so everything the
// releasing goroutine wrote before Release is visible to the goroutine whose
// Acquire succeeds afterwards.
type Gate struct {
	state atomic.Uint64
}

// New returns a released gate tagged with key.
func New(key Key) *Gate {
	g := &Gate{}
	g.state.Store(uint64(key))
	return g
}

// Acquire implements KeyedMutex.
func (g *Gate) Acquire(key Key, timeout time.Duration) bool {
	want := uint64(key)
	if g.state.CompareAndSwap(want, want|heldBit) {
		return true
	}
	if timeout <= 0 {
		return false
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		runtime.Gosched()
		if g.state.CompareAndSwap(want, want|heldBit) {
			return true
		}
	}
	return false
}

// Release implements KeyedMutex.
func (g *Gate) Release(key Key) error {
	for {
		s := g.state.Load()
		if s&closedBit != 0 {
			return ErrClosed
		}
		if s&heldBit == 0 {
			return ErrNotHeld
		}
		if g.state.CompareAndSwap(s, uint64(key)&keyMask) {
			return nil
		}
	}
}

// Close marks the gate unusable. Later acquisitions fail and releases
// return ErrClosed. Close is idempotent.
func (g *Gate) Close() {
	for {
		s := g.state.Load()
		if s&closedBit != 0 || g.state.CompareAndSwap(s, s|closedBit) {
			return
		}
	}
}

// Held reports whether the gate is currently held, and the key it was last
// acquired or released with.
func (g *Gate) Held() (held bool, key Key) {
	s := g.state.Load()
	return s&heldBit != 0, Key(s & keyMask)
}
