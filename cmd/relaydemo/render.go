package main

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gogpu/framerelay"
	"github.com/gogpu/framerelay/backend"
	"github.com/gogpu/framerelay/overlay"
	"github.com/gogpu/wgpu/hal"
)

func run(ctx context.Context, cfg *Config, out io.Writer) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.level()}))
	framerelay.SetLogger(logger)
	hal.SetLogger(logger)

	b, err := backend.Open(cfg.Backend)
	if err != nil {
		return fmt.Errorf("opening backend %q: %w", cfg.Backend, err)
	}
	defer b.Close()
	logger.Info("backend ready", "name", b.Name(), "adapter", b.Producer().AdapterID())

	relay, err := framerelay.New(b.Producer(), b.Consumer(),
		framerelay.WithSlotCount(cfg.Slots),
		framerelay.WithViewportSize(cfg.Width, cfg.Height),
		framerelay.WithLabel("relaydemo"),
	)
	if err != nil {
		return err
	}
	defer relay.Close()

	br, err := newBrowser(b, cfg.Buffers, framerelay.RGBA8(cfg.Width, cfg.Height))
	if err != nil {
		return err
	}
	defer br.release()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	h := &host{relay: relay, b: b, ov: overlay.New(), log: logger}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return produce(ctx, relay, br, cfg) })
	g.Go(func() error { return h.loop(ctx, cfg.RenderFPS) })
	g.Go(func() error { return reportStats(ctx, relay, logger) })
	if err := g.Wait(); err != nil {
		return err
	}

	s := relay.Stats()
	fmt.Fprintf(out, "backend %s: %d frames, %d published, %d dropped, %d presented, %d readback failures, %d latch changes\n",
		b.Name(), s.Frames, s.Published, s.Dropped.Total(), h.presented, h.failed, s.LatchChanges)

	if cfg.Output != "" {
		if h.last == nil {
			return fmt.Errorf("no frame was presented; %s not written", cfg.Output)
		}
		if err := savePNG(cfg.Output, h.last); err != nil {
			return err
		}
		fmt.Fprintf(out, "last frame saved to %s\n", cfg.Output)
	}
	return nil
}

// host is the render side: once per tick it draws the relay's current
// frame, which here means reading it back and stamping the statistics on it.
type host struct {
	relay *framerelay.Relay
	b     backend.Backend
	ov    *overlay.Overlay
	log   *slog.Logger

	last      *image.RGBA
	presented int
	failed    int
}

func (h *host) loop(ctx context.Context, fps int) error {
	t := time.NewTicker(time.Second / time.Duration(fps))
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
		h.tick()
	}
}

// tick presents one frame. A failed readback skips the frame.
func (h *host) tick() {
	h.relay.Render(func(v framerelay.View) {
		img, err := h.b.Readback(v)
		if err != nil {
			h.failed++
			h.log.Warn("reading back frame", "geometry", v.Geometry(), "err", err)
			return
		}
		h.ov.ShowStats(h.relay.Stats())
		h.ov.Render(img, image.Pt(8, 8))
		h.last = img
		h.presented++
	})
}

func reportStats(ctx context.Context, relay *framerelay.Relay, log *slog.Logger) error {
	t := time.NewTicker(time.Second)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
		s := relay.Stats()
		log.Info("relay stats",
			"state", s.State,
			"geometry", s.Geometry,
			"published", s.Published,
			"dropped", s.Dropped.Total(),
			"latched", s.LatchChanges,
			"rebuilds", s.Rebuilds)
	}
}

func savePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return f.Close()
}
