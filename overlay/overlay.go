// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package overlay draws a small block of debug text, such as relay
// statistics, on top of a rendered frame.
//
// An Overlay is an ordinary value owned by whoever renders it; there is no
// global debug layer. Lines are formatted through a golang.org/x/text
// message.Printer, so numbers get locale digit grouping, and drawn with the
// fixed-width basicfont face from golang.org/x/image.
//
//	ov := overlay.New()
//	fps := ov.AddLine("fps: %d", 0)
//	...
//	_ = ov.SetLine(fps, "fps: %d", current)
//	ov.Render(frame, image.Pt(8, 8))
package overlay

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ErrLineIndex is returned by SetLine for an index AddLine never returned.
var ErrLineIndex = errors.New("overlay: line index out of range")

// Option configures an Overlay.
type Option func(*Overlay)

// WithColors sets the text and background colors. The background is drawn
// with Over compositing, so a translucent color dims the frame beneath.
func WithColors(fg, bg color.Color) Option {
	return func(o *Overlay) {
		o.fg = image.NewUniform(fg)
		o.bg = image.NewUniform(bg)
	}
}

// WithLanguage sets the language used for number formatting.
func WithLanguage(tag language.Tag) Option {
	return func(o *Overlay) {
		o.printer = message.NewPrinter(tag)
	}
}

// WithPadding sets the margin between the background box and the text.
func WithPadding(px int) Option {
	return func(o *Overlay) {
		if px >= 0 {
			o.padding = px
		}
	}
}

// Overlay is a list of text lines. It is safe for concurrent use: a
// producer goroutine may update lines while the render loop draws them.
type Overlay struct {
	face    font.Face
	fg, bg  *image.Uniform
	padding int
	printer *message.Printer

	mu    sync.Mutex
	lines []string
}

// New creates an empty overlay: white text on translucent black, English
// number formatting.
func New(opts ...Option) *Overlay {
	o := &Overlay{
		face:    basicfont.Face7x13,
		fg:      image.NewUniform(color.White),
		bg:      image.NewUniform(color.NRGBA{A: 0xb0}),
		padding: 4,
		printer: message.NewPrinter(language.English),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// AddLine appends a formatted line and returns its index for SetLine.
func (o *Overlay) AddLine(format string, args ...any) int {
	s := o.printer.Sprintf(format, args...)
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lines = append(o.lines, s)
	return len(o.lines) - 1
}

// SetLine replaces line i.
func (o *Overlay) SetLine(i int, format string, args ...any) error {
	s := o.printer.Sprintf(format, args...)
	o.mu.Lock()
	defer o.mu.Unlock()
	if i < 0 || i >= len(o.lines) {
		return fmt.Errorf("%w: %d of %d", ErrLineIndex, i, len(o.lines))
	}
	o.lines[i] = s
	return nil
}

// Clear removes every line. Indices returned by AddLine become invalid.
func (o *Overlay) Clear() {
	o.mu.Lock()
	o.lines = o.lines[:0]
	o.mu.Unlock()
}

// Lines returns a copy of the current lines.
func (o *Overlay) Lines() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.lines...)
}

// Size returns the size of the box Render draws, or zero with no lines.
func (o *Overlay) Size() image.Point {
	lines := o.Lines()
	return o.size(lines)
}

func (o *Overlay) size(lines []string) image.Point {
	if len(lines) == 0 {
		return image.Point{}
	}
	var w fixed.Int26_6
	for _, l := range lines {
		w = max(w, font.MeasureString(o.face, l))
	}
	h := o.face.Metrics().Height.Ceil() * len(lines)
	return image.Pt(w.Ceil()+2*o.padding, h+2*o.padding)
}

// Render draws the overlay into dst with its top-left corner at at. The
// box is clipped to dst's bounds.
func (o *Overlay) Render(dst draw.Image, at image.Point) {
	lines := o.Lines()
	if len(lines) == 0 {
		return
	}
	box := image.Rectangle{Min: at, Max: at.Add(o.size(lines))}
	draw.Draw(dst, box.Intersect(dst.Bounds()), o.bg, image.Point{}, draw.Over)

	m := o.face.Metrics()
	d := &font.Drawer{Dst: dst, Src: o.fg, Face: o.face}
	for i, l := range lines {
		d.Dot = fixed.P(at.X+o.padding, at.Y+o.padding+i*m.Height.Ceil()+m.Ascent.Ceil())
		d.DrawString(l)
	}
}
