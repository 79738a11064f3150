package framerelay

import (
	"errors"
	"sync"

	"github.com/gogpu/framerelay/gate"
	"github.com/gogpu/gputypes"
)

// fakeDevice is a minimal in-package Device. Devices joined with link share
// one surface registry, as devices on one adapter would.
type fakeDevice struct {
	adapter uint64
	reg     *fakeRegistry

	createErr error
	fence     *fakeFence
}

type fakeRegistry struct {
	mu       sync.Mutex
	surfaces map[SharedHandle]*fakeSurface
	next     SharedHandle
}

type fakeSurface struct {
	geom Geometry
	gate *gate.Gate
}

func newFakeDevice(adapter uint64) *fakeDevice {
	return &fakeDevice{
		adapter: adapter,
		reg:     &fakeRegistry{surfaces: make(map[SharedHandle]*fakeSurface), next: 1},
	}
}

// link makes d see the surfaces of other.
func (d *fakeDevice) link(other *fakeDevice) *fakeDevice {
	d.reg = other.reg
	return d
}

func (d *fakeDevice) AdapterID() uint64 { return d.adapter }

func (d *fakeDevice) SupportsFormat(f gputypes.TextureFormat) bool {
	return f == gputypes.TextureFormatRGBA8Unorm || f == gputypes.TextureFormatBGRA8Unorm
}

func (d *fakeDevice) CreateSharedTexture(g Geometry, _ string) (SharedTexture, error) {
	if d.createErr != nil {
		return nil, d.createErr
	}
	d.reg.mu.Lock()
	defer d.reg.mu.Unlock()
	h := d.reg.next
	d.reg.next++
	s := &fakeSurface{geom: g, gate: gate.New(gate.Writable)}
	d.reg.surfaces[h] = s
	return &fakeTexture{surf: s, handle: h}, nil
}

func (d *fakeDevice) OpenSharedTexture(h SharedHandle) (SharedTexture, error) {
	d.reg.mu.Lock()
	defer d.reg.mu.Unlock()
	s, ok := d.reg.surfaces[h]
	if !ok {
		return nil, errors.New("fake: unknown handle")
	}
	return &fakeTexture{surf: s, handle: h}, nil
}

func (d *fakeDevice) CreateView(t Texture) (View, error) {
	return &fakeView{geom: t.Geometry()}, nil
}

func (d *fakeDevice) CopyTexture(_, _ Texture) (Fence, error) {
	if d.fence != nil {
		return d.fence, nil
	}
	return &fakeFence{done: true}, nil
}

type fakeTexture struct {
	surf   *fakeSurface
	handle SharedHandle
}

func (t *fakeTexture) Geometry() Geometry    { return t.surf.geom }
func (t *fakeTexture) Release()              {}
func (t *fakeTexture) Handle() SharedHandle  { return t.handle }
func (t *fakeTexture) Gate() gate.KeyedMutex { return t.surf.gate }

type fakeView struct {
	geom     Geometry
	released bool
}

func (v *fakeView) Geometry() Geometry { return v.geom }
func (v *fakeView) Release()           { v.released = true }

// fakeFence signals after polls calls to Done. A fence that is not done
// with polls <= 0 never signals.
type fakeFence struct {
	mu       sync.Mutex
	done     bool
	polls    int
	err      error
	released bool
}

func (f *fakeFence) Done() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if f.done {
		return true, nil
	}
	if f.polls > 0 {
		f.polls--
		f.done = f.polls == 0
	}
	return f.done, nil
}

func (f *fakeFence) Release() {
	f.mu.Lock()
	f.released = true
	f.mu.Unlock()
}
