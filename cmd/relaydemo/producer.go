package main

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/gogpu/framerelay"
	"github.com/gogpu/framerelay/backend"
)

// browser plays the external producer: it paints into a rotating set of
// shared buffers and announces each one to the relay, the way an embedded
// browser announces accelerated paints.
type browser struct {
	b       backend.Backend
	buffers int
	sources []backend.Source
	next    int
	canvas  *image.RGBA
}

func newBrowser(b backend.Backend, buffers int, g framerelay.Geometry) (*browser, error) {
	br := &browser{b: b, buffers: buffers}
	if err := br.resize(g); err != nil {
		return nil, err
	}
	return br, nil
}

// resize replaces the buffers with new ones of geometry g.
func (br *browser) resize(g framerelay.Geometry) error {
	br.release()
	for i := range br.buffers {
		src, err := br.b.NewSource(g, fmt.Sprintf("browser-%d", i))
		if err != nil {
			br.release()
			return fmt.Errorf("creating buffer %d: %w", i, err)
		}
		br.sources = append(br.sources, src)
	}
	br.canvas = image.NewRGBA(image.Rect(0, 0, g.Width, g.Height))
	br.next = 0
	return nil
}

func (br *browser) release() {
	for _, s := range br.sources {
		s.Release()
	}
	br.sources = br.sources[:0]
}

// paint draws frame n into the next buffer and returns it.
func (br *browser) paint(n uint64) (backend.Source, error) {
	drawFrame(br.canvas, n)
	src := br.sources[br.next]
	br.next = (br.next + 1) % len(br.sources)
	if err := src.Upload(br.canvas); err != nil {
		return nil, fmt.Errorf("uploading frame %d: %w", n, err)
	}
	return src, nil
}

// drawFrame paints a background that shifts hue with n, a bar sweeping left
// to right, and the frame number. A torn frame shows as a broken bar.
func drawFrame(dst *image.RGBA, n uint64) {
	b := dst.Bounds()
	bg := color.RGBA{R: uint8(n * 3), G: uint8(n * 5), B: 0x60, A: 0xff}
	draw.Draw(dst, b, image.NewUniform(bg), image.Point{}, draw.Src)

	const barWidth = 16
	x := int(n*4) % max(b.Dx()-barWidth, 1)
	bar := image.Rect(x, 0, x+barWidth, b.Dy())
	draw.Draw(dst, bar, image.White, image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.Black,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(b.Dx()/2-40, b.Dy()/2),
	}
	d.DrawString(fmt.Sprintf("frame %d", n))
}

// produce paints and delivers frames at cfg.FPS until ctx is done.
func produce(ctx context.Context, relay *framerelay.Relay, br *browser, cfg *Config) error {
	base := framerelay.RGBA8(cfg.Width, cfg.Height)
	small := framerelay.RGBA8(max(cfg.Width*3/4, 1), max(cfg.Height*3/4, 1))
	geom := base

	t := time.NewTicker(time.Second / time.Duration(cfg.FPS))
	defer t.Stop()

	for n := uint64(0); ; n++ {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}

		if cfg.ResizeEvery > 0 && n > 0 && n%uint64(cfg.ResizeEvery) == 0 {
			if geom == base {
				geom = small
			} else {
				geom = base
			}
			if err := br.resize(geom); err != nil {
				return err
			}
		}

		src, err := br.paint(n)
		if err != nil {
			return err
		}
		relay.OnExternalFrame(framerelay.ExternalFrame{
			Handle: src.Handle(),
			Width:  geom.Width,
			Height: geom.Height,
			Format: geom.Format,
		})
	}
}
