// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package overlay

import (
	"errors"
	"image"
	"image/color"
	"strings"
	"testing"

	"golang.org/x/text/language"

	"github.com/gogpu/framerelay"
)

func TestAddAndSetLine(t *testing.T) {
	o := New()
	a := o.AddLine("fps: %d", 60)
	b := o.AddLine("frames: %d", 1234567)

	if err := o.SetLine(a, "fps: %d", 59); err != nil {
		t.Fatalf("SetLine() = %v", err)
	}
	got := o.Lines()
	want := []string{"fps: 59", "frames: 1,234,567"}
	if len(got) != len(want) {
		t.Fatalf("Lines() = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}

	if err := o.SetLine(b+1, "x"); !errors.Is(err, ErrLineIndex) {
		t.Errorf("SetLine(out of range) = %v, want ErrLineIndex", err)
	}
	if err := o.SetLine(-1, "x"); !errors.Is(err, ErrLineIndex) {
		t.Errorf("SetLine(-1) = %v, want ErrLineIndex", err)
	}
}

func TestLanguageFormatting(t *testing.T) {
	o := New(WithLanguage(language.German))
	o.AddLine("%d", 1234567)
	if got := o.Lines()[0]; got != "1.234.567" {
		t.Errorf("German grouping = %q, want %q", got, "1.234.567")
	}
}

func TestClear(t *testing.T) {
	o := New()
	o.AddLine("one")
	o.Clear()
	if n := len(o.Lines()); n != 0 {
		t.Errorf("len(Lines()) = %d after Clear, want 0", n)
	}
	if s := o.Size(); s != (image.Point{}) {
		t.Errorf("Size() = %v with no lines, want zero", s)
	}
}

func TestSize(t *testing.T) {
	o := New(WithPadding(2))
	o.AddLine("abc")
	o.AddLine("abcdef")

	// basicfont.Face7x13: 7px advance, 13px line height.
	want := image.Pt(6*7+4, 2*13+4)
	if got := o.Size(); got != want {
		t.Errorf("Size() = %v, want %v", got, want)
	}
}

func TestRender(t *testing.T) {
	bg := color.RGBA{R: 0, G: 0, B: 255, A: 255}
	o := New(WithColors(color.White, bg), WithPadding(1))
	o.AddLine("HI")

	dst := image.NewRGBA(image.Rect(0, 0, 64, 32))
	o.Render(dst, image.Pt(10, 5))

	if got := dst.RGBAAt(10, 5); got != bg {
		t.Errorf("box corner = %v, want background %v", got, bg)
	}
	if got := dst.RGBAAt(0, 0); got != (color.RGBA{}) {
		t.Errorf("pixel outside the box = %v, want untouched", got)
	}

	size := o.Size()
	var lit int
	for y := 5; y < 5+size.Y; y++ {
		for x := 10; x < 10+size.X; x++ {
			if dst.RGBAAt(x, y).R > 0x80 {
				lit++
			}
		}
	}
	if lit == 0 {
		t.Error("no text pixels drawn")
	}
}

func TestRenderClipsToDestination(t *testing.T) {
	o := New()
	o.AddLine("a long line that does not fit")
	dst := image.NewRGBA(image.Rect(0, 0, 16, 8))
	o.Render(dst, image.Pt(8, 4)) // must not panic
}

func TestShowStats(t *testing.T) {
	o := New()
	o.AddLine("replaced")
	o.ShowStats(framerelay.Stats{
		State:     framerelay.StateReady,
		Geometry:  framerelay.RGBA8(1920, 1080),
		Slots:     4,
		Frames:    12000,
		Published: 11000,
		Dropped:   framerelay.DropStats{Exhausted: 600, Busy: 400},
	})

	text := strings.Join(o.Lines(), "\n")
	for _, want := range []string{"ready", "1920x1080", "x4", "published 11,000", "dropped 1,000", "exhausted 600"} {
		if !strings.Contains(text, want) {
			t.Errorf("stats overlay missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "replaced") {
		t.Error("ShowStats kept old lines")
	}
}
