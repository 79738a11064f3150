// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package soft

import (
	"encoding/binary"
	"fmt"
	"image"
	"sync/atomic"

	"github.com/gogpu/framerelay"
	"github.com/gogpu/framerelay/gate"
	"github.com/gogpu/gputypes"
)

// Texture is one device's binding of a surface. It implements
// framerelay.SharedTexture.
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

// Gate implements framerelay.SharedTexture. All bindings of one surface
// return the same gate. Unkeyed surfaces return nil.
func (t *Texture) Gate() gate.KeyedMutex {
	if t.surf.gate == nil {
		return nil
	}
	return t.surf.gate
}

// Label returns the debug label the surface was created with.
func (t *Texture) Label() string { return t.surf.label }

// Device returns the device this binding belongs to.
func (t *Texture) Device() *Device { return t.device }

// Released reports whether Release was called on this binding.
func (t *Texture) Released() bool { return t.released.Load() }

// Release implements framerelay.Texture. It is idempotent.
func (t *Texture) Release() {
	if !t.released.CompareAndSwap(false, true) {
		return
	}
	t.device.live.Add(-1)
	t.surf.adapter.unref(t.surf)
}

// WriteStamp fills every row of the surface with the little-endian bytes of
// stamp, repeated. A surface written this way can be checked with Stamp.
func (t *Texture) WriteStamp(stamp uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], stamp)
	for y := 0; y < t.surf.geom.Height; y++ {
		row := t.surf.row(y)
		for i := range row {
			row[i] = b[i%8]
		}
	}
}

// Stamp reads back the value written by WriteStamp. consistent is false if
// any byte of any row disagrees with the first row, which is what a torn or
// half-finished copy looks like. Surfaces narrower than 8 bytes per row
// carry only the low bytes of the stamp.
func (t *Texture) Stamp() (stamp uint64, consistent bool) {
	return readStamp(t.surf)
}

// WritePixels replaces the surface contents. pix must hold exactly
// Width*Height*BytesPerPixel bytes in row-major order.
func (t *Texture) WritePixels(pix []byte) error {
	if len(pix) != len(t.surf.pix) {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrPixelSize, len(pix), len(t.surf.pix))
	}
	copy(t.surf.pix, pix)
	return nil
}

// Pixels returns a copy of the surface contents.
func (t *Texture) Pixels() []byte {
	out := make([]byte, len(t.surf.pix))
	copy(out, t.surf.pix)
	return out
}

// View is a consumer-side sampling view. It implements framerelay.View.
type View struct {
	tex      *Texture
	released atomic.Bool
}

var _ framerelay.View = (*View)(nil)

// Geometry implements framerelay.View.
func (v *View) Geometry() framerelay.Geometry { return v.tex.surf.geom }

// Release implements framerelay.View. It is idempotent.
func (v *View) Release() {
	if v.released.CompareAndSwap(false, true) {
		v.tex.device.views.Add(-1)
	}
}

// Released reports whether Release was called.
func (v *View) Released() bool { return v.released.Load() }

// Texture returns the binding the view samples.
func (v *View) Texture() *Texture { return v.tex }

// Stamp samples the view and returns its stamp; see Texture.Stamp.
func (v *View) Stamp() (stamp uint64, consistent bool) {
	return readStamp(v.tex.surf)
}

// Image samples the view into a new RGBA image. BGRA surfaces are swizzled
// and single-channel surfaces expand to opaque gray.
func (v *View) Image() *image.RGBA {
	s := v.tex.surf
	g := s.geom
	img := image.NewRGBA(image.Rect(0, 0, g.Width, g.Height))

	switch g.Format {
	case gputypes.TextureFormatBGRA8Unorm:
		for i := 0; i+3 < len(s.pix); i += 4 {
			img.Pix[i+0] = s.pix[i+2]
			img.Pix[i+1] = s.pix[i+1]
			img.Pix[i+2] = s.pix[i+0]
			img.Pix[i+3] = s.pix[i+3]
		}
	case gputypes.TextureFormatR8Unorm:
		for i, c := range s.pix {
			img.Pix[i*4+0] = c
			img.Pix[i*4+1] = c
			img.Pix[i*4+2] = c
			img.Pix[i*4+3] = 0xff
		}
	default:
		copy(img.Pix, s.pix)
	}
	return img
}

func readStamp(s *surface) (uint64, bool) {
	first := s.row(0)
	var b [8]byte
	copy(b[:], first)
	stamp := binary.LittleEndian.Uint64(b[:])

	for y := 0; y < s.geom.Height; y++ {
		row := s.row(y)
		for i := range row {
			if row[i] != b[i%8] {
				return stamp, false
			}
		}
	}
	return stamp, true
}

// fence is signaled by the copy queue once its job has run.
type fence struct {
	done chan struct{}
	err  error // written before done is closed
}

func newFence() *fence {
	return &fence{done: make(chan struct{})}
}

func (f *fence) signal(err error) {
	f.err = err
	close(f.done)
}

// Done implements framerelay.Fence.
func (f *fence) Done() (bool, error) {
	select {
	case <-f.done:
		return true, f.err
	default:
		return false, nil
	}
}

// Release implements framerelay.Fence.
func (f *fence) Release() {}
