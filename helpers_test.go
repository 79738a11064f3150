package framerelay_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gogpu/framerelay"
	"github.com/gogpu/framerelay/backend/soft"
	"github.com/gogpu/framerelay/gate"
)

// gateCounter counts gate operations made through countingDevice bindings.
type gateCounter struct {
	acquires atomic.Int64
	releases atomic.Int64
}

func (c *gateCounter) total() int64 {
	return c.acquires.Load() + c.releases.Load()
}

// countingDevice wraps a soft device so tests can count the gate traffic
// of one side of the relay and reach the underlying gates.
type countingDevice struct {
	*soft.Device
	counter gateCounter

	mu    sync.Mutex
	gates map[framerelay.SharedHandle]*gate.Gate
}

func newCountingDevice(d *soft.Device) *countingDevice {
	return &countingDevice{Device: d, gates: make(map[framerelay.SharedHandle]*gate.Gate)}
}

func (d *countingDevice) CreateSharedTexture(g framerelay.Geometry, label string) (framerelay.SharedTexture, error) {
	t, err := d.Device.CreateSharedTexture(g, label)
	if err != nil {
		return nil, err
	}
	return d.wrap(t), nil
}

func (d *countingDevice) OpenSharedTexture(h framerelay.SharedHandle) (framerelay.SharedTexture, error) {
	t, err := d.Device.OpenSharedTexture(h)
	if err != nil {
		return nil, err
	}
	return d.wrap(t), nil
}

func (d *countingDevice) CreateView(t framerelay.Texture) (framerelay.View, error) {
	return d.Device.CreateView(unwrap(t))
}

func (d *countingDevice) CopyTexture(dst, src framerelay.Texture) (framerelay.Fence, error) {
	return d.Device.CopyTexture(unwrap(dst), unwrap(src))
}

func (d *countingDevice) wrap(t framerelay.SharedTexture) framerelay.SharedTexture {
	if g, ok := t.Gate().(*gate.Gate); ok {
		d.mu.Lock()
		d.gates[t.Handle()] = g
		d.mu.Unlock()
	}
	return &countingTexture{SharedTexture: t, counter: &d.counter}
}

// gateOf returns the gate of the surface a view samples.
func (d *countingDevice) gateOf(t *testing.T, v framerelay.View) *gate.Gate {
	t.Helper()
	h := v.(*soft.View).Texture().Handle()
	d.mu.Lock()
	defer d.mu.Unlock()
	g, ok := d.gates[h]
	if !ok {
		t.Fatalf("no gate recorded for handle %#x", uint64(h))
	}
	return g
}

// allGates returns every gate the device has bound.
func (d *countingDevice) allGates() []*gate.Gate {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*gate.Gate, 0, len(d.gates))
	for _, g := range d.gates {
		out = append(out, g)
	}
	return out
}

type countingTexture struct {
	framerelay.SharedTexture
	counter *gateCounter
}

func (t *countingTexture) Gate() gate.KeyedMutex {
	g := t.SharedTexture.Gate()
	if g == nil {
		return nil
	}
	return countingGate{KeyedMutex: g, counter: t.counter}
}

func unwrap(t framerelay.Texture) framerelay.Texture {
	if ct, ok := t.(*countingTexture); ok {
		return ct.SharedTexture
	}
	return t
}

type countingGate struct {
	gate.KeyedMutex
	counter *gateCounter
}

func (g countingGate) Acquire(key gate.Key, timeout time.Duration) bool {
	g.counter.acquires.Add(1)
	return g.KeyedMutex.Acquire(key, timeout)
}

func (g countingGate) Release(key gate.Key) error {
	g.counter.releases.Add(1)
	return g.KeyedMutex.Release(key)
}

// rig is a relay wired to soft devices on one adapter: a source device
// playing the browser, the producer device and a counting consumer device.
type rig struct {
	t        *testing.T
	adapter  *soft.Adapter
	source   *soft.Device
	producer *soft.Device
	consumer *countingDevice
	relay    *framerelay.Relay
}

func newRig(t *testing.T, opts []framerelay.Option, devOpts ...soft.DeviceOption) *rig {
	t.Helper()
	r := newDevices(t, devOpts...)

	relay, err := framerelay.New(r.producer, r.consumer, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	r.relay = relay
	t.Cleanup(func() { _ = relay.Close() })
	return r
}

// newDevices creates the rig's devices without a relay.
func newDevices(t *testing.T, devOpts ...soft.DeviceOption) *rig {
	t.Helper()
	a := soft.NewAdapter()
	r := &rig{
		t:        t,
		adapter:  a,
		source:   a.NewDevice("browser", devOpts...),
		producer: a.NewDevice("copy", devOpts...),
		consumer: newCountingDevice(a.NewDevice("render", devOpts...)),
	}
	t.Cleanup(func() {
		r.source.Close()
		r.producer.Close()
		r.consumer.Close()
	})
	return r
}

// newSource creates a browser-side paint surface.
func (r *rig) newSource(g framerelay.Geometry, keyed bool) *soft.Texture {
	r.t.Helper()
	src, err := r.source.CreateSurface(g, "paint", keyed)
	if err != nil {
		r.t.Fatalf("CreateSurface(%v) error = %v", g, err)
	}
	r.t.Cleanup(src.Release)
	return src
}

// send paints stamp into src and delivers it to the relay.
func (r *rig) send(src *soft.Texture, stamp uint64) bool {
	src.WriteStamp(stamp)
	return r.relay.OnExternalFrame(frameOf(src))
}

func frameOf(src *soft.Texture) framerelay.ExternalFrame {
	g := src.Geometry()
	return framerelay.ExternalFrame{
		Handle: src.Handle(),
		Width:  g.Width,
		Height: g.Height,
		Format: g.Format,
	}
}

// stampOf samples a view and fails the test if its content is torn.
func stampOf(t *testing.T, v framerelay.View) uint64 {
	t.Helper()
	s, ok := v.(*soft.View).Stamp()
	if !ok {
		t.Fatalf("view %v shows a torn frame (first row stamp %#x)", v.Geometry(), s)
	}
	return s
}

// acquireStamp acquires the current frame and returns its stamp.
func (r *rig) acquireStamp() uint64 {
	r.t.Helper()
	v, ok := r.relay.AcquireFrame()
	if !ok {
		r.t.Fatal("AcquireFrame() returned no frame")
	}
	return stampOf(r.t, v)
}
