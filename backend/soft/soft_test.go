// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package soft

import (
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/gogpu/framerelay"
	"github.com/gogpu/framerelay/gate"
	"github.com/gogpu/gputypes"
)

func newTestDevice(t *testing.T, a *Adapter, name string, opts ...DeviceOption) *Device {
	t.Helper()
	d := a.NewDevice(name, opts...)
	t.Cleanup(d.Close)
	return d
}

func waitDone(t *testing.T, f framerelay.Fence) error {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		done, err := f.Done()
		if done {
			return err
		}
		runtime.Gosched()
	}
	t.Fatal("fence never signaled")
	return nil
}

func TestAdapterIDsAreUnique(t *testing.T) {
	a, b := NewAdapter(), NewAdapter()
	if a.ID() == 0 || a.ID() == b.ID() {
		t.Errorf("adapter IDs %d and %d", a.ID(), b.ID())
	}
	d := newTestDevice(t, a, "dev")
	if d.AdapterID() != a.ID() {
		t.Errorf("AdapterID() = %d, want %d", d.AdapterID(), a.ID())
	}
}

func TestSharedSurfaceAcrossDevices(t *testing.T) {
	a := NewAdapter()
	p := newTestDevice(t, a, "producer")
	c := newTestDevice(t, a, "consumer")

	pt, err := p.CreateSharedTexture(framerelay.RGBA8(16, 8), "slot")
	if err != nil {
		t.Fatalf("CreateSharedTexture: %v", err)
	}
	ct, err := c.OpenSharedTexture(pt.Handle())
	if err != nil {
		t.Fatalf("OpenSharedTexture: %v", err)
	}
	if ct.Geometry() != pt.Geometry() {
		t.Errorf("opened geometry %v, want %v", ct.Geometry(), pt.Geometry())
	}

	// The gate is shared: taking it on one side blocks the other.
	if !pt.Gate().Acquire(gate.Writable, 0) {
		t.Fatal("producer could not take fresh gate")
	}
	if ct.Gate().Acquire(gate.Writable, 0) {
		t.Fatal("consumer took a gate the producer holds")
	}
	if err := pt.Gate().Release(gate.Readable); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if !ct.Gate().Acquire(gate.Readable, 0) {
		t.Fatal("consumer could not take readable gate")
	}

	// Writes through one binding are visible through the other.
	pt.(*Texture).WriteStamp(42)
	if s, ok := ct.(*Texture).Stamp(); s != 42 || !ok {
		t.Errorf("Stamp() = %d, %v; want 42, true", s, ok)
	}

	if a.Surfaces() != 1 {
		t.Errorf("Surfaces() = %d, want 1", a.Surfaces())
	}
	pt.Release()
	pt.Release()
	if a.Surfaces() != 1 {
		t.Error("surface freed while consumer binding still open")
	}
	ct.Release()
	if a.Surfaces() != 0 {
		t.Errorf("Surfaces() = %d after last release, want 0", a.Surfaces())
	}
	if _, err := c.OpenSharedTexture(pt.Handle()); !errors.Is(err, ErrUnknownHandle) {
		t.Errorf("open of freed handle = %v, want ErrUnknownHandle", err)
	}
}

func TestUnkeyedSurfaceHasNoGate(t *testing.T) {
	d := newTestDevice(t, NewAdapter(), "browser")
	tex, err := d.CreateSurface(framerelay.RGBA8(4, 4), "paint", false)
	if err != nil {
		t.Fatal(err)
	}
	if g := tex.Gate(); g != nil {
		t.Errorf("Gate() = %v, want nil interface", g)
	}
}

func TestForeignAdapterRejected(t *testing.T) {
	d1 := newTestDevice(t, NewAdapter(), "one")
	d2 := newTestDevice(t, NewAdapter(), "two")

	tex, err := d1.CreateSharedTexture(framerelay.RGBA8(4, 4), "a")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d2.OpenSharedTexture(tex.Handle()); !errors.Is(err, ErrUnknownHandle) {
		t.Errorf("cross-adapter open = %v, want ErrUnknownHandle", err)
	}
	if _, err := d2.CreateView(tex); !errors.Is(err, ErrForeignTexture) {
		t.Errorf("cross-adapter view = %v, want ErrForeignTexture", err)
	}
}

func TestCreateValidation(t *testing.T) {
	d := newTestDevice(t, NewAdapter(), "dev", WithFormats(gputypes.TextureFormatRGBA8Unorm))

	tests := []struct {
		name string
		geom framerelay.Geometry
		want error
	}{
		{"zero size", framerelay.RGBA8(0, 10), ErrInvalidGeometry},
		{"undefined format", framerelay.Geometry{Width: 4, Height: 4}, ErrInvalidGeometry},
		{"unsupported format", framerelay.Geometry{Width: 4, Height: 4, Format: gputypes.TextureFormatBGRA8Unorm}, ErrUnsupportedFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := d.CreateSharedTexture(tt.geom, "x"); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	d.SetFormatSupported(gputypes.TextureFormatBGRA8Unorm, true)
	if !d.SupportsFormat(gputypes.TextureFormatBGRA8Unorm) {
		t.Error("SetFormatSupported(true) had no effect")
	}
	d.SetFormatSupported(gputypes.TextureFormatRGBA8Unorm, false)
	if d.SupportsFormat(gputypes.TextureFormatRGBA8Unorm) {
		t.Error("SetFormatSupported(false) had no effect")
	}
}

func TestCopyTexture(t *testing.T) {
	a := NewAdapter()
	d := newTestDevice(t, a, "copy", WithRowYield())

	src, _ := d.CreateSurface(framerelay.RGBA8(32, 32), "src", false)
	dst, _ := d.CreateSurface(framerelay.RGBA8(32, 32), "dst", true)
	src.WriteStamp(0xdeadbeef)

	f, err := d.CopyTexture(dst, src)
	if err != nil {
		t.Fatalf("CopyTexture: %v", err)
	}
	defer f.Release()
	if err := waitDone(t, f); err != nil {
		t.Fatalf("fence error: %v", err)
	}
	if s, ok := dst.Stamp(); s != 0xdeadbeef || !ok {
		t.Errorf("dst Stamp() = %#x, %v", s, ok)
	}
	if got := d.Stats().Copies; got != 1 {
		t.Errorf("Copies = %d, want 1", got)
	}
}

func TestCopyGeometryMismatch(t *testing.T) {
	d := newTestDevice(t, NewAdapter(), "copy")
	src, _ := d.CreateSurface(framerelay.RGBA8(8, 8), "src", false)
	dst, _ := d.CreateSurface(framerelay.RGBA8(8, 4), "dst", false)
	if _, err := d.CopyTexture(dst, src); !errors.Is(err, ErrCopyGeometry) {
		t.Errorf("err = %v, want ErrCopyGeometry", err)
	}
}

func TestCopyReleasedBinding(t *testing.T) {
	d := newTestDevice(t, NewAdapter(), "copy")
	src, _ := d.CreateSurface(framerelay.RGBA8(8, 8), "src", false)
	dst, _ := d.CreateSurface(framerelay.RGBA8(8, 8), "dst", false)
	src.Release()
	if _, err := d.CopyTexture(dst, src); !errors.Is(err, ErrReleased) {
		t.Errorf("err = %v, want ErrReleased", err)
	}
}

func TestFaultInjection(t *testing.T) {
	errBoom := errors.New("boom")
	d := newTestDevice(t, NewAdapter(), "dev")
	g := framerelay.RGBA8(8, 8)

	d.FailCreate(1, errBoom)
	if _, err := d.CreateSharedTexture(g, "ok"); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	if _, err := d.CreateSharedTexture(g, "bad"); !errors.Is(err, errBoom) {
		t.Errorf("second create = %v, want errBoom", err)
	}
	d.FailCreate(-1, nil)

	tex, err := d.CreateSurface(g, "t", true)
	if err != nil {
		t.Fatal(err)
	}

	d.FailOpen(errBoom)
	if _, err := d.OpenSharedTexture(tex.Handle()); !errors.Is(err, errBoom) {
		t.Errorf("open = %v, want errBoom", err)
	}
	d.FailView(errBoom)
	if _, err := d.CreateView(tex); !errors.Is(err, errBoom) {
		t.Errorf("view = %v, want errBoom", err)
	}
	d.FailCopy(errBoom)
	if _, err := d.CopyTexture(tex, tex); !errors.Is(err, errBoom) {
		t.Errorf("copy = %v, want errBoom", err)
	}
	d.ClearFaults()

	d.FailFence(errBoom)
	f, err := d.CopyTexture(tex, tex)
	if err != nil {
		t.Fatal(err)
	}
	if err := waitDone(t, f); !errors.Is(err, errBoom) {
		t.Errorf("fence err = %v, want errBoom", err)
	}
	d.ClearFaults()

	d.StallFences(true)
	f, err = d.CopyTexture(tex, tex)
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	if done, _ := f.Done(); done {
		t.Error("stalled fence signaled")
	}
}

func TestStampDetectsTearing(t *testing.T) {
	d := newTestDevice(t, NewAdapter(), "dev")
	tex, _ := d.CreateSurface(framerelay.RGBA8(4, 4), "t", false)
	tex.WriteStamp(7)

	pix := tex.Pixels()
	pix[len(pix)-1] ^= 0xff
	if err := tex.WritePixels(pix); err != nil {
		t.Fatal(err)
	}
	if s, ok := tex.Stamp(); s != 7 || ok {
		t.Errorf("Stamp() = %d, %v; want 7, false", s, ok)
	}
	if err := tex.WritePixels(pix[:3]); !errors.Is(err, ErrPixelSize) {
		t.Errorf("short WritePixels = %v, want ErrPixelSize", err)
	}
}

func TestViewImageSwizzle(t *testing.T) {
	d := newTestDevice(t, NewAdapter(), "dev")
	g := framerelay.Geometry{Width: 1, Height: 1, Format: gputypes.TextureFormatBGRA8Unorm}
	tex, _ := d.CreateSurface(g, "bgra", true)
	if err := tex.WritePixels([]byte{1, 2, 3, 4}); err != nil {
		t.Fatal(err)
	}

	v, err := d.CreateView(tex)
	if err != nil {
		t.Fatal(err)
	}
	img := v.(*View).Image()
	if got := img.Pix[:4]; got[0] != 3 || got[1] != 2 || got[2] != 1 || got[3] != 4 {
		t.Errorf("RGBA = %v, want [3 2 1 4]", got)
	}
	if d.Stats().Views != 1 {
		t.Errorf("Views = %d, want 1", d.Stats().Views)
	}
	v.Release()
	v.Release()
	if d.Stats().Views != 0 {
		t.Errorf("Views = %d after release, want 0", d.Stats().Views)
	}
}

func TestCloseDevice(t *testing.T) {
	d := NewAdapter().NewDevice("dev")
	tex, _ := d.CreateSurface(framerelay.RGBA8(4, 4), "t", true)

	d.Close()
	d.Close()

	if _, err := d.CreateSharedTexture(framerelay.RGBA8(4, 4), "x"); !errors.Is(err, ErrDeviceClosed) {
		t.Errorf("create after close = %v, want ErrDeviceClosed", err)
	}
	if _, err := d.CopyTexture(tex, tex); !errors.Is(err, ErrDeviceClosed) {
		t.Errorf("copy after close = %v, want ErrDeviceClosed", err)
	}
	tex.Release()
	if got := d.Stats().Live; got != 0 {
		t.Errorf("Live = %d, want 0", got)
	}
}
