// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package soft

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/framerelay"
	"github.com/gogpu/gputypes"
)

// DefaultQueueDepth is the number of copies a device queues before
// CopyTexture blocks.
const DefaultQueueDepth = 16

// DeviceOption configures a Device at creation.
type DeviceOption func(*deviceConfig)

type deviceConfig struct {
	formats    []gputypes.TextureFormat
	queueDepth int
	rowYield   bool
}

// WithFormats sets the formats the device supports. The default is
// RGBA8Unorm, BGRA8Unorm and R8Unorm.
func WithFormats(formats ...gputypes.TextureFormat) DeviceOption {
	return func(c *deviceConfig) {
		c.formats = formats
	}
}

// WithQueueDepth sets the copy queue capacity.
func WithQueueDepth(n int) DeviceOption {
	return func(c *deviceConfig) {
		if n > 0 {
			c.queueDepth = n
		}
	}
}

// WithRowYield makes the copy queue yield the processor after every row it
// copies. Copies get much slower and interleave with other goroutines,
// which widens the window in which a reader could observe a partial copy.
func WithRowYield() DeviceOption {
	return func(c *deviceConfig) {
		c.rowYield = true
	}
}

// faults are injected failures, guarded by Device.mu.
type faults struct {
	createAfter int // successful creates left before createErr; -1 disables
	createErr   error
	openErr     error
	viewErr     error
	copyErr     error
	fenceErr    error
	latency     time.Duration
	stall       bool
}

// Device is a simulated logical device. It implements framerelay.Device.
type Device struct {
	adapter  *Adapter
	name     string
	rowYield bool

	mu      sync.Mutex
	formats map[gputypes.TextureFormat]bool
	faults  faults

	queue     chan copyJob
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	creates atomic.Uint64
	opens   atomic.Uint64
	copies  atomic.Uint64
	live    atomic.Int64
	views   atomic.Int64
}

var _ framerelay.Device = (*Device)(nil)

type copyJob struct {
	dst, src *surface
	fence    *fence
	latency  time.Duration
	fenceErr error
}

func newDevice(a *Adapter, name string, opts ...DeviceOption) *Device {
	cfg := deviceConfig{
		formats: []gputypes.TextureFormat{
			gputypes.TextureFormatRGBA8Unorm,
			gputypes.TextureFormatBGRA8Unorm,
			gputypes.TextureFormatR8Unorm,
		},
		queueDepth: DefaultQueueDepth,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	d := &Device{
		adapter:  a,
		name:     name,
		rowYield: cfg.rowYield,
		formats:  make(map[gputypes.TextureFormat]bool, len(cfg.formats)),
		faults:   faults{createAfter: -1},
		queue:    make(chan copyJob, cfg.queueDepth),
		done:     make(chan struct{}),
	}
	for _, f := range cfg.formats {
		d.formats[f] = true
	}

	d.wg.Add(1)
	go d.run()
	return d
}

// Name returns the device name.
func (d *Device) Name() string { return d.name }

// Adapter returns the adapter the device was created on.
func (d *Device) Adapter() *Adapter { return d.adapter }

// AdapterID implements framerelay.Device.
func (d *Device) AdapterID() uint64 { return d.adapter.id }

// SupportsFormat implements framerelay.Device.
func (d *Device) SupportsFormat(format gputypes.TextureFormat) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.formats[format]
}

// SetFormatSupported adds or removes a supported format.
func (d *Device) SetFormatSupported(format gputypes.TextureFormat, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ok {
		d.formats[format] = true
	} else {
		delete(d.formats, format)
	}
}

// CreateSharedTexture implements framerelay.Device. The surface is keyed and
// its gate starts released with gate.Writable.
func (d *Device) CreateSharedTexture(g framerelay.Geometry, label string) (framerelay.SharedTexture, error) {
	t, err := d.CreateSurface(g, label, true)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// CreateSurface creates a shareable surface. keyed selects whether it carries
// a gate; browser compositors commonly hand out unkeyed surfaces.
func (d *Device) CreateSurface(g framerelay.Geometry, label string, keyed bool) (*Texture, error) {
	if d.closed() {
		return nil, ErrDeviceClosed
	}
	if !g.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, g)
	}
	if !d.SupportsFormat(g.Format) {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, g.Format)
	}

	d.mu.Lock()
	if d.faults.createAfter == 0 {
		err := d.faults.createErr
		d.mu.Unlock()
		return nil, fmt.Errorf("soft: create %q: %w", label, err)
	}
	if d.faults.createAfter > 0 {
		d.faults.createAfter--
	}
	d.mu.Unlock()

	s := d.adapter.newSurface(g, label, keyed)
	d.creates.Add(1)
	return d.bind(s), nil
}

// OpenSharedTexture implements framerelay.Device.
func (d *Device) OpenSharedTexture(h framerelay.SharedHandle) (framerelay.SharedTexture, error) {
	t, err := d.Open(h)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Open binds the surface named by h to this device.
func (d *Device) Open(h framerelay.SharedHandle) (*Texture, error) {
	if d.closed() {
		return nil, ErrDeviceClosed
	}
	d.mu.Lock()
	err := d.faults.openErr
	d.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("soft: open %#x: %w", uint64(h), err)
	}

	s, ok := d.adapter.open(h)
	if !ok {
		return nil, fmt.Errorf("%w: %#x", ErrUnknownHandle, uint64(h))
	}
	d.opens.Add(1)
	return d.bind(s), nil
}

func (d *Device) bind(s *surface) *Texture {
	d.live.Add(1)
	return &Texture{surf: s, device: d}
}

// CreateView implements framerelay.Device.
func (d *Device) CreateView(t framerelay.Texture) (framerelay.View, error) {
	tex, err := d.own(t)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	err = d.faults.viewErr
	d.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("soft: view of %q: %w", tex.surf.label, err)
	}
	d.views.Add(1)
	return &View{tex: tex}, nil
}

// CopyTexture implements framerelay.Device. The copy runs on the device's
// queue goroutine; the returned fence signals when it has finished.
func (d *Device) CopyTexture(dst, src framerelay.Texture) (framerelay.Fence, error) {
	dt, err := d.own(dst)
	if err != nil {
		return nil, err
	}
	st, err := d.own(src)
	if err != nil {
		return nil, err
	}
	if dt.surf.geom != st.surf.geom {
		return nil, fmt.Errorf("%w: %v into %v", ErrCopyGeometry, st.surf.geom, dt.surf.geom)
	}

	d.mu.Lock()
	f := d.faults
	d.mu.Unlock()
	if f.copyErr != nil {
		return nil, fmt.Errorf("soft: copy: %w", f.copyErr)
	}

	fn := newFence()
	if f.stall {
		// The fence never signals and the copy never runs.
		return fn, nil
	}

	job := copyJob{dst: dt.surf, src: st.surf, fence: fn, latency: f.latency, fenceErr: f.fenceErr}
	select {
	case d.queue <- job:
	case <-d.done:
		return nil, ErrDeviceClosed
	}
	d.copies.Add(1)
	return fn, nil
}

// own checks that t is a live binding from this device's adapter.
func (d *Device) own(t framerelay.Texture) (*Texture, error) {
	if d.closed() {
		return nil, ErrDeviceClosed
	}
	tex, ok := t.(*Texture)
	if !ok || tex == nil || tex.surf.adapter != d.adapter {
		return nil, fmt.Errorf("%w: %T", ErrForeignTexture, t)
	}
	if tex.released.Load() {
		return nil, fmt.Errorf("%w: %q", ErrReleased, tex.surf.label)
	}
	return tex, nil
}

func (d *Device) run() {
	defer d.wg.Done()
	for {
		select {
		case job := <-d.queue:
			d.execute(job)
		case <-d.done:
			for {
				select {
				case job := <-d.queue:
					job.fence.signal(ErrDeviceClosed)
				default:
					return
				}
			}
		}
	}
}

func (d *Device) execute(job copyJob) {
	if job.latency > 0 {
		time.Sleep(job.latency)
	}
	if job.fenceErr != nil {
		job.fence.signal(job.fenceErr)
		return
	}
	for y := 0; y < job.dst.geom.Height; y++ {
		copy(job.dst.row(y), job.src.row(y))
		if d.rowYield {
			runtime.Gosched()
		}
	}
	job.fence.signal(nil)
}

func (d *Device) closed() bool {
	select {
	case <-d.done:
		return true
	default:
		return false
	}
}

// Close stops the copy queue. Queued copies that have not started complete
// with ErrDeviceClosed. Bindings stay valid for Release. Close is idempotent.
func (d *Device) Close() {
	d.closeOnce.Do(func() {
		close(d.done)
	})
	d.wg.Wait()
}

// FailCreate makes surface creation fail with err once n more creations
// have succeeded. n < 0 clears the fault.
func (d *Device) FailCreate(n int, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n < 0 {
		d.faults.createAfter, d.faults.createErr = -1, nil
		return
	}
	d.faults.createAfter, d.faults.createErr = n, err
}

// FailOpen makes OpenSharedTexture fail with err. nil clears the fault.
func (d *Device) FailOpen(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.faults.openErr = err
}

// FailView makes CreateView fail with err. nil clears the fault.
func (d *Device) FailView(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.faults.viewErr = err
}

// FailCopy makes CopyTexture fail with err before queuing anything. nil
// clears the fault.
func (d *Device) FailCopy(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.faults.copyErr = err
}

// FailFence makes queued copies signal their fence with err instead of
// copying. nil clears the fault.
func (d *Device) FailFence(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.faults.fenceErr = err
}

// SetCopyLatency delays every queued copy by latency before it runs.
func (d *Device) SetCopyLatency(latency time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.faults.latency = latency
}

// StallFences makes CopyTexture return fences that never signal.
func (d *Device) StallFences(stall bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.faults.stall = stall
}

// ClearFaults removes every injected fault and latency.
func (d *Device) ClearFaults() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.faults = faults{createAfter: -1}
}

// DeviceStats counts device activity.
type DeviceStats struct {
	Creates uint64 // surfaces created
	Opens   uint64 // surfaces opened by handle
	Copies  uint64 // copies queued
	Live    int64  // bindings not yet released
	Views   int64  // views not yet released
}

// Stats returns the device counters.
func (d *Device) Stats() DeviceStats {
	return DeviceStats{
		Creates: d.creates.Load(),
		Opens:   d.opens.Load(),
		Copies:  d.copies.Load(),
		Live:    d.live.Load(),
		Views:   d.views.Load(),
	}
}
