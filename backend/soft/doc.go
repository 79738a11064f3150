// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package soft provides a CPU implementation of framerelay.Device.
//
// An Adapter stands in for one physical GPU. Devices created from the same
// adapter can share surfaces by handle, the way D3D11 devices on one DXGI
// adapter share NT handles. Surface memory is a plain byte slice; each
// device runs a copy queue goroutine that executes CopyTexture row by row and
// signals a fence when done, so copies really are asynchronous with respect
// to the caller.
//
// The package is used by the relay's tests and by cmd/relaydemo. Devices
// expose fault injection (FailCreate, FailOpen, FailCopy, StallFences and
// friends) and textures carry helpers that stamp and verify every row, which
// makes torn or half-copied frames detectable.
//
// Usage:
//
//	adapter := soft.NewAdapter()
//	browser := adapter.NewDevice("browser")
//	copyDev := adapter.NewDevice("copy")
//	renderDev := adapter.NewDevice("render")
//	defer browser.Close()
//	defer copyDev.Close()
//	defer renderDev.Close()
//
//	src, _ := browser.CreateSurface(framerelay.RGBA8(256, 256), "paint", false)
//	src.WriteStamp(1)
//
// Surface pixels are not synchronized by the package. As on a real GPU,
// ordering comes from fences and gates: CPU writes through WriteStamp or
// WritePixels must not overlap a copy that reads or writes the same surface.
package soft
