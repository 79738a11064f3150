// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package native implements framerelay.Device on gogpu/wgpu HAL devices.
//
// An Adapter wraps one hal.Device and hal.Queue, either opened by Open,
// borrowed from a host application through NewFromProvider, or passed in
// directly with New. Devices made from one Adapter exchange textures by
// SharedHandle. HAL has no cross-process sharing, so handles, reference
// counts and keyed gates are kept in process by the Adapter; the producer
// and consumer devices of a relay therefore run on the same HAL device.
//
// Copies are recorded into a fresh command buffer and submitted at once.
// Their fences poll hal.Queue.PollCompleted against the submission index, and
// command buffers whose fences are released early are freed on a later
// submit once the GPU is done with them.
//
// Usage with a host that renders through gogpu:
//
//	a, err := native.NewFromProvider(app.DeviceProvider())
//	if err != nil {
//	    return err
//	}
//	relay, err := framerelay.New(a.NewDevice("copy"), a.NewDevice("render"))
//
// Textures produced elsewhere on the same HAL device enter the relay through
// Register, which returns the handle to pass in ExternalFrame.
//
// Importing the package registers the "native" backend. Its Init refuses the
// noop HAL backend; import github.com/gogpu/wgpu/hal/allbackends to reach
// real GPUs.
package native
