// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package cache provides the small fixed-capacity cache the relay uses to
// remember imported shared surfaces by handle.
//
// Producers usually cycle through two or three of their own buffers, so the
// same handle shows up on most paint notifications. Fixed keeps a handful of
// entries and, when full, evicts an arbitrary one. There is no recency
// tracking: with a working set this small, bookkeeping costs more than an
// occasional re-import.
//
//	c := cache.NewFixed[uint64, *Texture](3, func(_ uint64, t *Texture) { t.Release() })
//	tex, err := c.GetOrOpen(handle, open)
//
// # Thread Safety
//
// Fixed is safe for concurrent use. It must not be copied after creation.
package cache
