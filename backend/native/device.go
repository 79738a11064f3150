// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package native

import (
	"fmt"
	"sync/atomic"

	"github.com/gogpu/framerelay"
	"github.com/gogpu/framerelay/gate"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// slotUsage is the usage of every texture the relay creates: copy target for
// the publish, copy source for readback, and sampled by the host.
const slotUsage = gputypes.TextureUsageCopySrc |
	gputypes.TextureUsageCopyDst |
	gputypes.TextureUsageTextureBinding

// Device is a framerelay.Device over an Adapter's HAL device. Several
// Devices on one Adapter share the HAL device; they differ only in name and
// binding bookkeeping.
type Device struct {
	adapter *Adapter
	name    string

	creates atomic.Uint64
	opens   atomic.Uint64
	copies  atomic.Uint64
	live    atomic.Int64
}

var _ framerelay.Device = (*Device)(nil)

// Name returns the device name.
func (d *Device) Name() string { return d.name }

// Adapter returns the adapter the device was created on.
func (d *Device) Adapter() *Adapter { return d.adapter }

// AdapterID implements framerelay.Device.
func (d *Device) AdapterID() uint64 { return d.adapter.id }

// SupportsFormat implements framerelay.Device. The relay carries 8-bit RGBA
// and BGRA; the HAL adapter, when known, must be able to sample them.
func (d *Device) SupportsFormat(f gputypes.TextureFormat) bool {
	switch f {
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatBGRA8Unorm:
	default:
		return false
	}
	if d.adapter.hal == nil {
		return true
	}
	caps := d.adapter.hal.TextureFormatCapabilities(f)
	return caps.Flags&hal.TextureFormatCapabilitySampled != 0
}

// CreateSharedTexture implements framerelay.Device.
func (d *Device) CreateSharedTexture(g framerelay.Geometry, label string) (framerelay.SharedTexture, error) {
	return d.createTexture(g, label, true)
}

// CreateTexture creates a shared texture with or without a gate. Unkeyed
// textures stand in for producers that synchronize on their own.
func (d *Device) CreateTexture(g framerelay.Geometry, label string, keyed bool) (*Texture, error) {
	return d.createTexture(g, label, keyed)
}

func (d *Device) createTexture(g framerelay.Geometry, label string, keyed bool) (*Texture, error) {
	if !g.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, g)
	}
	if !d.SupportsFormat(g.Format) {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, g.Format)
	}

	tex, err := d.adapter.device.CreateTexture(&hal.TextureDescriptor{
		Label:         label,
		Size:          hal.Extent3D{Width: uint32(g.Width), Height: uint32(g.Height), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        g.Format,
		Usage:         slotUsage,
	})
	if err != nil {
		return nil, fmt.Errorf("native: create texture %q: %w", label, err)
	}

	s, err := d.adapter.newSurface(tex, g, label, keyed, true)
	if err != nil {
		d.adapter.device.DestroyTexture(tex)
		return nil, err
	}
	d.creates.Add(1)
	return d.bind(s), nil
}

// OpenSharedTexture implements framerelay.Device.
func (d *Device) OpenSharedTexture(h framerelay.SharedHandle) (framerelay.SharedTexture, error) {
	return d.Open(h)
}

// Open binds the surface named by h to this device.
func (d *Device) Open(h framerelay.SharedHandle) (*Texture, error) {
	s, err := d.adapter.open(h)
	if err != nil {
		return nil, err
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
	g := tex.surf.geom
	hv, err := d.adapter.device.CreateTextureView(tex.surf.tex, &hal.TextureViewDescriptor{
		Label:         tex.surf.label + "_view",
		Format:        g.Format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("native: create view of %q: %w", tex.surf.label, err)
	}
	return &View{tex: tex, view: hv}, nil
}

// CopyTexture implements framerelay.Device. The copy is recorded into its
// own command buffer and submitted immediately; the fence polls the queue's
// completed submission index.
func (d *Device) CopyTexture(dst, src framerelay.Texture) (framerelay.Fence, error) {
	dt, err := d.own(dst)
	if err != nil {
		return nil, fmt.Errorf("destination: %w", err)
	}
	st, err := d.own(src)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	g := dt.surf.geom
	if sg := st.surf.geom; sg != g {
		return nil, fmt.Errorf("%w: %v into %v", ErrCopyGeometry, sg, g)
	}

	sub, err := d.adapter.submit(d.name+"_copy", func(enc hal.CommandEncoder) {
		enc.CopyTextureToTexture(st.surf.tex, dt.surf.tex, []hal.TextureCopy{{
			SrcBase: hal.ImageCopyTexture{Texture: st.surf.tex, Aspect: gputypes.TextureAspectAll},
			DstBase: hal.ImageCopyTexture{Texture: dt.surf.tex, Aspect: gputypes.TextureAspectAll},
			Size:    hal.Extent3D{Width: uint32(g.Width), Height: uint32(g.Height), DepthOrArrayLayers: 1},
		}})
	})
	if err != nil {
		return nil, fmt.Errorf("native: copy %q to %q: %w", st.surf.label, dt.surf.label, err)
	}
	d.copies.Add(1)
	return &fence{adapter: d.adapter, sub: sub}, nil
}

// own returns t as a live binding on d's adapter.
func (d *Device) own(t framerelay.Texture) (*Texture, error) {
	tex, ok := t.(*Texture)
	if !ok || tex.surf.adapter != d.adapter {
		return nil, fmt.Errorf("%w: %T", ErrForeignTexture, t)
	}
	if tex.released.Load() {
		return nil, ErrReleased
	}
	return tex, nil
}

// DeviceStats counts a device's resource activity.
type DeviceStats struct {
	Creates uint64
	Opens   uint64
	Copies  uint64
	Live    int64
}

// Stats returns the device counters.
func (d *Device) Stats() DeviceStats {
	return DeviceStats{
		Creates: d.creates.Load(),
		Opens:   d.opens.Load(),
		Copies:  d.copies.Load(),
		Live:    d.live.Load(),
	}
}

// Texture is one device's binding of a shared surface.
type Texture struct {
	surf     *surface
	device   *Device
	released atomic.Bool
}

var _ framerelay.SharedTexture = (*Texture)(nil)

// Geometry implements framerelay.Texture.
func (t *Texture) Geometry() framerelay.Geometry { return t.surf.geom }

// Handle implements framerelay.SharedTexture.
func (t *Texture) Handle() framerelay.SharedHandle { return t.surf.handle }

// Gate implements framerelay.SharedTexture.
func (t *Texture) Gate() gate.KeyedMutex {
	if t.surf.gate == nil {
		return nil
	}
	return t.surf.gate
}

// Label returns the surface's debug label.
func (t *Texture) Label() string { return t.surf.label }

// Raw returns the HAL texture. It must not be destroyed by the caller.
func (t *Texture) Raw() hal.Texture { return t.surf.tex }

// Release implements framerelay.Texture. It is idempotent.
func (t *Texture) Release() {
	if t.released.Swap(true) {
		return
	}
	t.device.live.Add(-1)
	t.surf.adapter.unref(t.surf)
}

// View is a sampling view of a texture, handed to the host compositor.
type View struct {
	tex      *Texture
	view     hal.TextureView
	released atomic.Bool
}

var _ framerelay.View = (*View)(nil)

// Geometry implements framerelay.View.
func (v *View) Geometry() framerelay.Geometry { return v.tex.surf.geom }

// Raw returns the HAL texture view to bind in the host's render pass.
func (v *View) Raw() hal.TextureView { return v.view }

// Texture returns the binding the view samples.
func (v *View) Texture() *Texture { return v.tex }

// Release implements framerelay.View. It is idempotent.
func (v *View) Release() {
	if v.released.Swap(true) {
		return
	}
	v.tex.device.adapter.device.DestroyTextureView(v.view)
}

// fence tracks one copy submission.
type fence struct {
	adapter  *Adapter
	sub      submission
	released atomic.Bool
}

// Done implements framerelay.Fence.
func (f *fence) Done() (bool, error) {
	return f.adapter.completed(f.sub.index), nil
}

// Release implements framerelay.Fence. The command buffer is freed when the
// GPU is done with it, which may be after Release returns.
func (f *fence) Release() {
	if f.released.Swap(true) {
		return
	}
	f.adapter.retire(f.sub)
}
