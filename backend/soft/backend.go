// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package soft

import (
	"fmt"
	"image"

	"github.com/gogpu/framerelay"
	"github.com/gogpu/framerelay/backend"
	"github.com/gogpu/gputypes"
)

// Name is the registry name of the soft backend.
const Name = "soft"

func init() {
	backend.Register(Name, func() backend.Backend {
		return NewBackend()
	})
}

// Backend is a backend.Backend over one soft Adapter with three devices:
// the source device standing in for the external producer, the producer
// device the relay copies on, and the consumer device it renders with.
type Backend struct {
	opts     []DeviceOption
	adapter  *Adapter
	source   *Device
	producer *Device
	consumer *Device
}

var _ backend.Backend = (*Backend)(nil)

// NewBackend creates an uninitialized soft backend. opts apply to every
// device it opens.
func NewBackend(opts ...DeviceOption) *Backend {
	return &Backend{opts: opts}
}

// Name implements backend.Backend.
func (b *Backend) Name() string { return Name }

// Init implements backend.Backend. It is idempotent.
func (b *Backend) Init() error {
	if b.adapter != nil {
		return nil
	}
	b.adapter = NewAdapter()
	b.source = b.adapter.NewDevice("source", b.opts...)
	b.producer = b.adapter.NewDevice("producer", b.opts...)
	b.consumer = b.adapter.NewDevice("consumer", b.opts...)
	return nil
}

// Close implements backend.Backend.
func (b *Backend) Close() {
	for _, d := range []*Device{b.source, b.producer, b.consumer} {
		if d != nil {
			d.Close()
		}
	}
}

// Adapter returns the backend's adapter, or nil before Init.
func (b *Backend) Adapter() *Adapter { return b.adapter }

// Source returns the device sources are created on.
func (b *Backend) Source() *Device { return b.source }

// Producer implements backend.Backend.
func (b *Backend) Producer() framerelay.Device {
	if b.producer == nil {
		return nil
	}
	return b.producer
}

// Consumer implements backend.Backend.
func (b *Backend) Consumer() framerelay.Device {
	if b.consumer == nil {
		return nil
	}
	return b.consumer
}

// NewSource implements backend.Backend. Sources are unkeyed, like the
// shared buffers of most browser compositors.
func (b *Backend) NewSource(g framerelay.Geometry, label string) (backend.Source, error) {
	if b.source == nil {
		return nil, backend.ErrNotInitialized
	}
	t, err := b.source.CreateSurface(g, label, false)
	if err != nil {
		return nil, err
	}
	return &source{Texture: t}, nil
}

// Readback implements backend.Backend.
func (b *Backend) Readback(v framerelay.View) (*image.RGBA, error) {
	sv, ok := v.(*View)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrForeignTexture, v)
	}
	return sv.Image(), nil
}

type source struct {
	*Texture
}

// Upload implements backend.Source.
func (s *source) Upload(img *image.RGBA) error {
	g := s.Geometry()
	if img.Bounds().Dx() != g.Width || img.Bounds().Dy() != g.Height {
		return fmt.Errorf("%w: image %v, surface %v", ErrPixelSize, img.Bounds().Size(), g)
	}
	if g.BytesPerPixel() != 4 {
		return fmt.Errorf("%w: %v", ErrUnsupportedFormat, g.Format)
	}

	pix := make([]byte, 0, g.Width*g.Height*4)
	for y := 0; y < g.Height; y++ {
		off := img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y+y)
		pix = append(pix, img.Pix[off:off+g.Width*4]...)
	}
	if g.Format == gputypes.TextureFormatBGRA8Unorm {
		for i := 0; i+3 < len(pix); i += 4 {
			pix[i], pix[i+2] = pix[i+2], pix[i]
		}
	}
	return s.WritePixels(pix)
}
