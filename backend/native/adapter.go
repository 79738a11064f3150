// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package native

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/framerelay"
	"github.com/gogpu/framerelay/gate"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// adapterIDs hands out adapter identifiers. Shared handles are only
// meaningful within one Adapter, so every Adapter gets its own ID even when
// two wrap the same HAL device.
var adapterIDs atomic.Uint64

// Option configures an Adapter.
type Option func(*Adapter)

// WithAdapterInfo sets the description reported by Info.
func WithAdapterInfo(info gputypes.AdapterInfo) Option {
	return func(a *Adapter) {
		a.info = info
	}
}

// WithHALAdapter lets SupportsFormat consult the physical adapter's format
// capabilities. Without it every relay format is assumed sampleable.
func WithHALAdapter(ha hal.Adapter) Option {
	return func(a *Adapter) {
		a.hal = ha
	}
}

// Adapter wraps one HAL device and queue and owns the namespace of shared
// handles its Devices exchange. Producer and consumer Devices created from
// the same Adapter share textures by handle; their gates live in process.
//
// Every queue operation goes through the Adapter, which serializes them:
// HAL queues are not safe for concurrent submission.
type Adapter struct {
	id      uint64
	info    gputypes.AdapterInfo
	variant gputypes.Backend
	hal     hal.Adapter
	device  hal.Device
	queue   hal.Queue

	// instance is set when Open created the device; Close destroys it.
	instance hal.Instance

	queueMu sync.Mutex
	// pending holds submissions whose fences were released before the GPU
	// finished with them; guarded by queueMu.
	pending []submission

	mu         sync.Mutex
	surfaces   map[framerelay.SharedHandle]*surface
	nextHandle framerelay.SharedHandle
	closed     bool
}

// submission is one submitted command buffer and the encoder that
// recorded it. Both are freed once the queue reports index complete.
type submission struct {
	index uint64
	enc   hal.CommandEncoder
	cb    hal.CommandBuffer
}

func (s submission) free(device hal.Device) {
	device.FreeCommandBuffer(s.cb)
	s.enc.Destroy()
}

// New wraps an existing HAL device and queue. The caller keeps ownership of
// both; Close releases only what the Adapter created.
func New(device hal.Device, queue hal.Queue, opts ...Option) (*Adapter, error) {
	if device == nil || queue == nil {
		return nil, ErrNilHALDevice
	}
	a := &Adapter{
		id:         adapterIDs.Add(1),
		device:     device,
		queue:      queue,
		surfaces:   make(map[framerelay.SharedHandle]*surface),
		nextHandle: 0x1000,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// NewFromProvider wraps the device of a host application, so the relay's
// slots live on the same GPU device the host renders with. The provider's
// Device and Queue must expose HalDevice and HalQueue, as *wgpu.Device does.
func NewFromProvider(provider gpucontext.DeviceProvider, opts ...Option) (*Adapter, error) {
	if provider == nil {
		return nil, ErrNoHALAccess
	}
	type halDevice interface {
		HalDevice() hal.Device
		HalQueue() hal.Queue
	}
	hd, ok := provider.Device().(halDevice)
	if !ok {
		return nil, fmt.Errorf("%w: device is %T", ErrNoHALAccess, provider.Device())
	}

	info := provider.AdapterInfo()
	opts = append([]Option{WithAdapterInfo(gputypes.AdapterInfo{Name: info.Name})}, opts...)
	return New(hd.HalDevice(), hd.HalQueue(), opts...)
}

// Open creates a standalone device on the best HAL backend registered in
// the process. Import a backend package, or hal/allbackends, to make GPUs
// visible; the noop backend is always linked in.
func Open(opts ...Option) (*Adapter, error) {
	backend, err := hal.SelectBestBackend()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoGPU, err)
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Backends: gputypes.BackendsAll})
	if err != nil {
		return nil, fmt.Errorf("native: create %v instance: %w", backend.Variant(), err)
	}

	exposed := instance.EnumerateAdapters(nil)
	if len(exposed) == 0 {
		instance.Destroy()
		return nil, ErrNoGPU
	}
	best := exposed[0]
	for _, e := range exposed[1:] {
		if e.Info.DeviceType == gputypes.DeviceTypeDiscreteGPU && best.Info.DeviceType != gputypes.DeviceTypeDiscreteGPU {
			best = e
		}
	}

	od, err := best.Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("native: open %s: %w", best.Info.Name, err)
	}

	opts = append([]Option{WithAdapterInfo(best.Info), WithHALAdapter(best.Adapter)}, opts...)
	a, err := New(od.Device, od.Queue, opts...)
	if err != nil {
		od.Device.Destroy()
		instance.Destroy()
		return nil, err
	}
	a.instance = instance
	a.variant = backend.Variant()
	framerelay.Logger().Info("native: device opened",
		"backend", backend.Variant(), "adapter", best.Info.Name)
	return a, nil
}

// ID returns the identifier reported by the adapter's devices.
func (a *Adapter) ID() uint64 { return a.id }

// Info returns the adapter description.
func (a *Adapter) Info() gputypes.AdapterInfo { return a.info }

// Variant returns the HAL backend Open selected. gputypes.BackendEmpty is
// the noop backend; adapters wrapping a caller's device report it too.
func (a *Adapter) Variant() gputypes.Backend { return a.variant }

// HAL returns the wrapped device and queue.
func (a *Adapter) HAL() (hal.Device, hal.Queue) { return a.device, a.queue }

// NewDevice creates a relay device bound to this adapter.
func (a *Adapter) NewDevice(name string) *Device {
	return &Device{adapter: a, name: name}
}

// Register publishes a texture created outside the package, such as one
// rendered by the host's external producer, under a new shared handle. The
// adapter never destroys registered textures; Unregister removes the handle
// once the owner is done with it. keyed attaches an in-process gate that
// starts released with key 0.
func (a *Adapter) Register(tex hal.Texture, g framerelay.Geometry, label string, keyed bool) (framerelay.SharedHandle, error) {
	if tex == nil {
		return 0, fmt.Errorf("%w: nil texture", ErrInvalidGeometry)
	}
	if !g.Valid() {
		return 0, fmt.Errorf("%w: %v", ErrInvalidGeometry, g)
	}
	s, err := a.newSurface(tex, g, label, keyed, false)
	if err != nil {
		return 0, err
	}
	return s.handle, nil
}

// Unregister drops the registration reference of h. Bindings opened from it
// stay valid until released.
func (a *Adapter) Unregister(h framerelay.SharedHandle) {
	a.mu.Lock()
	s, ok := a.surfaces[h]
	ok = ok && s.registered
	if ok {
		s.registered = false
	}
	a.mu.Unlock()
	if ok {
		a.unref(s)
	}
}

// Surfaces returns the number of live shared surfaces.
func (a *Adapter) Surfaces() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.surfaces)
}

// Close frees deferred command buffers and, for adapters created by Open,
// the device and instance. Textures still bound stay the caller's problem:
// release every relay first.
func (a *Adapter) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	live := len(a.surfaces)
	a.mu.Unlock()

	if live > 0 {
		framerelay.Logger().Warn("native: adapter closed with live surfaces", "surfaces", live)
	}

	a.queueMu.Lock()
	if len(a.pending) > 0 {
		_ = a.device.WaitIdle()
		for _, p := range a.pending {
			p.free(a.device)
		}
		a.pending = nil
	}
	a.queueMu.Unlock()

	if a.instance != nil {
		a.device.Destroy()
		a.instance.Destroy()
	}
}

// surface is one shared texture and the bookkeeping every binding of it
// shares.
type surface struct {
	adapter *Adapter
	handle  framerelay.SharedHandle
	geom    framerelay.Geometry
	label   string
	tex     hal.Texture
	gate    *gate.Gate // nil for unkeyed surfaces

	// owned surfaces were created by the adapter and are destroyed with the
	// last binding. registered surfaces hold one extra reference until
	// Unregister.
	owned      bool
	registered bool

	refs int // guarded by adapter.mu
}

func (a *Adapter) newSurface(tex hal.Texture, g framerelay.Geometry, label string, keyed, owned bool) (*surface, error) {
	s := &surface{
		adapter:    a,
		geom:       g,
		label:      label,
		tex:        tex,
		owned:      owned,
		registered: !owned,
		refs:       1,
	}
	if keyed {
		s.gate = gate.New(gate.Writable)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, ErrClosed
	}
	s.handle = a.nextHandle
	a.nextHandle += 4
	a.surfaces[s.handle] = s
	return s, nil
}

func (a *Adapter) open(h framerelay.SharedHandle) (*surface, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, ErrClosed
	}
	s, ok := a.surfaces[h]
	if !ok {
		return nil, fmt.Errorf("%w: %#x", ErrUnknownHandle, uint64(h))
	}
	s.refs++
	return s, nil
}

// unref drops one reference. The last one unpublishes the handle, closes
// the gate and destroys owned textures.
func (a *Adapter) unref(s *surface) {
	a.mu.Lock()
	s.refs--
	last := s.refs == 0
	if last {
		delete(a.surfaces, s.handle)
	}
	a.mu.Unlock()

	if !last {
		return
	}
	if s.gate != nil {
		s.gate.Close()
	}
	if s.owned {
		a.device.DestroyTexture(s.tex)
	}
}

// submit records one command buffer with record and submits it. The
// submission completes when PollCompleted reaches its index.
func (a *Adapter) submit(label string, record func(hal.CommandEncoder)) (submission, error) {
	a.queueMu.Lock()
	defer a.queueMu.Unlock()
	a.reapLocked()

	enc, err := a.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return submission{}, fmt.Errorf("create command encoder: %w", err)
	}
	if err := enc.BeginEncoding(label); err != nil {
		enc.Destroy()
		return submission{}, fmt.Errorf("begin encoding: %w", err)
	}
	record(enc)
	cb, err := enc.EndEncoding()
	if err != nil {
		enc.DiscardEncoding()
		enc.Destroy()
		return submission{}, fmt.Errorf("end encoding: %w", err)
	}

	idx, err := a.queue.Submit([]hal.CommandBuffer{cb})
	if err != nil {
		a.device.FreeCommandBuffer(cb)
		enc.Destroy()
		return submission{}, fmt.Errorf("submit: %w", err)
	}
	return submission{index: idx, enc: enc, cb: cb}, nil
}

// completed reports whether submission idx has finished on the GPU.
func (a *Adapter) completed(idx uint64) bool {
	a.queueMu.Lock()
	defer a.queueMu.Unlock()
	return a.queue.PollCompleted() >= idx
}

// retire frees sub once it completes, now or on a later submit.
func (a *Adapter) retire(sub submission) {
	a.queueMu.Lock()
	defer a.queueMu.Unlock()
	if a.queue.PollCompleted() >= sub.index {
		sub.free(a.device)
		return
	}
	a.pending = append(a.pending, sub)
}

// reapLocked frees pending submissions whose work has completed.
func (a *Adapter) reapLocked() {
	if len(a.pending) == 0 {
		return
	}
	done := a.queue.PollCompleted()
	keep := a.pending[:0]
	for _, p := range a.pending {
		if p.index <= done {
			p.free(a.device)
			continue
		}
		keep = append(keep, p)
	}
	clear(a.pending[len(keep):])
	a.pending = keep
}

// queueWrite runs fn with the queue lock held.
func (a *Adapter) queueWrite(fn func(hal.Queue) error) error {
	a.queueMu.Lock()
	defer a.queueMu.Unlock()
	return fn(a.queue)
}
