// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package native

import (
	"fmt"
	"image"
	"runtime"
	"time"
	"unsafe"

	"github.com/gogpu/framerelay"
	"github.com/gogpu/framerelay/backend"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// The noop backend is always available, so Open works headless.
	_ "github.com/gogpu/wgpu/hal/noop"
)

// Name is the registry name of the native backend.
const Name = "native"

// ReadbackTimeout bounds how long Readback waits for its copy.
const ReadbackTimeout = 2 * time.Second

// rowAlignment is the required BytesPerRow alignment of buffer-texture copies.
const rowAlignment = 256

func init() {
	backend.Register(Name, func() backend.Backend {
		return NewBackend()
	})
}

// Backend is a backend.Backend over a HAL device opened with Open. The
// source, producer and consumer devices all share it.
type Backend struct {
	// allowNoop accepts the noop HAL backend, whose textures hold no pixels.
	allowNoop bool

	adapter  *Adapter
	source   *Device
	producer *Device
	consumer *Device
}

var _ backend.Backend = (*Backend)(nil)

// NewBackend creates an uninitialized native backend.
func NewBackend() *Backend {
	return &Backend{}
}

// Name implements backend.Backend.
func (b *Backend) Name() string { return Name }

// Init implements backend.Backend. It fails with backend.ErrBackendNotAvailable
// when only the noop HAL backend is linked in, so the registry falls back to
// a backend that actually moves pixels.
func (b *Backend) Init() error {
	if b.adapter != nil {
		return nil
	}
	a, err := Open()
	if err != nil {
		return fmt.Errorf("%w: %w", backend.ErrBackendNotAvailable, err)
	}
	if a.Variant() == gputypes.BackendEmpty && !b.allowNoop {
		a.Close()
		return fmt.Errorf("%w: only the noop HAL backend is available", backend.ErrBackendNotAvailable)
	}
	b.adapter = a
	b.source = a.NewDevice("source")
	b.producer = a.NewDevice("producer")
	b.consumer = a.NewDevice("consumer")
	return nil
}

// Close implements backend.Backend.
func (b *Backend) Close() {
	if b.adapter != nil {
		b.adapter.Close()
	}
}

// Adapter returns the backend's adapter, or nil before Init.
func (b *Backend) Adapter() *Adapter { return b.adapter }

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

// NewSource implements backend.Backend.
func (b *Backend) NewSource(g framerelay.Geometry, label string) (backend.Source, error) {
	if b.source == nil {
		return nil, backend.ErrNotInitialized
	}
	t, err := b.source.CreateTexture(g, label, false)
	if err != nil {
		return nil, err
	}
	return &source{Texture: t}, nil
}

// Readback implements backend.Backend. It copies the viewed texture into a
// mappable buffer and waits for the copy.
func (b *Backend) Readback(v framerelay.View) (*image.RGBA, error) {
	nv, ok := v.(*View)
	if !ok || b.adapter == nil || nv.tex.surf.adapter != b.adapter {
		return nil, fmt.Errorf("%w: %T", ErrForeignTexture, v)
	}
	return b.adapter.readback(nv.tex.surf)
}

func (a *Adapter) readback(s *surface) (*image.RGBA, error) {
	g := s.geom
	rowBytes := g.Width * 4
	stride := (rowBytes + rowAlignment - 1) / rowAlignment * rowAlignment
	size := uint64(stride * g.Height)

	buf, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: s.label + "_readback",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("native: readback buffer: %w", err)
	}

	extent := hal.Extent3D{Width: uint32(g.Width), Height: uint32(g.Height), DepthOrArrayLayers: 1}
	sub, err := a.submit(s.label+"_readback", func(enc hal.CommandEncoder) {
		enc.CopyTextureToBuffer(s.tex, buf, []hal.BufferTextureCopy{{
			BufferLayout: hal.ImageDataLayout{BytesPerRow: uint32(stride), RowsPerImage: uint32(g.Height)},
			TextureBase:  hal.ImageCopyTexture{Texture: s.tex, Aspect: gputypes.TextureAspectAll},
			Size:         extent,
		}})
	})
	if err != nil {
		a.device.DestroyBuffer(buf)
		return nil, fmt.Errorf("native: readback: %w", err)
	}

	deadline := time.Now().Add(ReadbackTimeout)
	for !a.completed(sub.index) {
		if time.Now().After(deadline) {
			// The GPU may still write into buf; leak it rather than free it early.
			a.retire(sub)
			return nil, ErrReadbackTimeout
		}
		runtime.Gosched()
	}
	a.retire(sub)
	defer a.device.DestroyBuffer(buf)

	m, err := a.device.MapBuffer(buf, 0, size)
	if err != nil {
		return nil, fmt.Errorf("native: map readback buffer: %w", err)
	}
	defer func() { _ = a.device.UnmapBuffer(buf) }()
	data := unsafe.Slice((*byte)(m.Ptr), size)

	img := image.NewRGBA(image.Rect(0, 0, g.Width, g.Height))
	for y := 0; y < g.Height; y++ {
		copy(img.Pix[y*img.Stride:y*img.Stride+rowBytes], data[y*stride:y*stride+rowBytes])
	}
	if g.Format == gputypes.TextureFormatBGRA8Unorm {
		swizzle(img.Pix)
	}
	return img, nil
}

type source struct {
	*Texture
}

// Upload implements backend.Source. It writes through the queue, so it is
// ordered before any copy submitted after it returns.
func (s *source) Upload(img *image.RGBA) error {
	g := s.Geometry()
	if img.Bounds().Dx() != g.Width || img.Bounds().Dy() != g.Height {
		return fmt.Errorf("%w: image %v, texture %v", ErrInvalidGeometry, img.Bounds().Size(), g)
	}

	rowBytes := g.Width * 4
	pix := make([]byte, 0, rowBytes*g.Height)
	for y := 0; y < g.Height; y++ {
		off := img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y+y)
		pix = append(pix, img.Pix[off:off+rowBytes]...)
	}
	if g.Format == gputypes.TextureFormatBGRA8Unorm {
		swizzle(pix)
	}

	tex := s.surf.tex
	return s.surf.adapter.queueWrite(func(q hal.Queue) error {
		return q.WriteTexture(
			&hal.ImageCopyTexture{Texture: tex, Aspect: gputypes.TextureAspectAll},
			pix,
			&hal.ImageDataLayout{BytesPerRow: uint32(rowBytes), RowsPerImage: uint32(g.Height)},
			&hal.Extent3D{Width: uint32(g.Width), Height: uint32(g.Height), DepthOrArrayLayers: 1},
		)
	})
}

// swizzle swaps the R and B channels of 4-byte pixels in place.
func swizzle(pix []byte) {
	for i := 0; i+3 < len(pix); i += 4 {
		pix[i], pix[i+2] = pix[i+2], pix[i]
	}
}
