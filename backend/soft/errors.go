// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package soft

import "errors"

var (
	// ErrUnknownHandle is returned when a shared handle does not name a live
	// surface on the device's adapter.
	ErrUnknownHandle = errors.New("soft: unknown shared handle")

	// ErrForeignTexture is returned when a texture from another backend or
	// another adapter is passed to a device.
	ErrForeignTexture = errors.New("soft: texture does not belong to this adapter")

	// ErrReleased is returned when a released binding is used.
	ErrReleased = errors.New("soft: texture binding released")

	// ErrDeviceClosed is returned by operations on a closed device.
	ErrDeviceClosed = errors.New("soft: device closed")

	// ErrUnsupportedFormat is returned when creating a surface in a format the
	// device does not support.
	ErrUnsupportedFormat = errors.New("soft: unsupported texture format")

	// ErrInvalidGeometry is returned for zero-sized surfaces.
	ErrInvalidGeometry = errors.New("soft: invalid surface geometry")

	// ErrCopyGeometry is returned when copying between surfaces of different
	// size or format.
	ErrCopyGeometry = errors.New("soft: copy between mismatched surfaces")

	// ErrPixelSize is returned by WritePixels when the data does not match
	// the surface size.
	ErrPixelSize = errors.New("soft: pixel data size mismatch")
)
