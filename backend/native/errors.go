// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package native

import "errors"

var (
	// ErrNilHALDevice is returned when an Adapter is created without a HAL
	// device or queue.
	ErrNilHALDevice = errors.New("native: HAL device or queue is nil")

	// ErrNoHALAccess is returned when a device provider does not expose its
	// HAL device and queue.
	ErrNoHALAccess = errors.New("native: provider does not expose HAL types")

	// ErrNoGPU is returned by Open when no HAL backend offers an adapter.
	ErrNoGPU = errors.New("native: no GPU adapter available")

	// ErrUnknownHandle is returned when a shared handle does not name a live
	// surface on the adapter.
	ErrUnknownHandle = errors.New("native: unknown shared handle")

	// ErrForeignTexture is returned when a texture from another backend or
	// another adapter is passed to a device.
	ErrForeignTexture = errors.New("native: texture does not belong to this adapter")

	// ErrReleased is returned when a released binding is used.
	ErrReleased = errors.New("native: texture binding released")

	// ErrClosed is returned by operations on a closed adapter.
	ErrClosed = errors.New("native: adapter closed")

	// ErrUnsupportedFormat is returned for formats the adapter cannot sample
	// or that the relay does not carry.
	ErrUnsupportedFormat = errors.New("native: unsupported texture format")

	// ErrInvalidGeometry is returned for zero-sized textures.
	ErrInvalidGeometry = errors.New("native: invalid texture geometry")

	// ErrCopyGeometry is returned when copying between textures of different
	// size or format.
	ErrCopyGeometry = errors.New("native: copy between mismatched textures")

	// ErrReadbackTimeout is returned when a readback copy does not complete.
	ErrReadbackTimeout = errors.New("native: readback timed out")
)
