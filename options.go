package framerelay

import (
	"log/slog"
	"time"
)

// Option configures a Relay during creation.
//
// Example:
//
//	r, err := framerelay.New(copyDev, renderDev,
//	    framerelay.WithSlotCount(3),
//	    framerelay.WithViewportSize(1920, 1080),
//	)
type Option func(*options)

type options struct {
	slots             int
	viewportWidth     int
	viewportHeight    int
	importCacheSize   int
	fenceTimeout      time.Duration
	sourceSyncTimeout time.Duration
	logger            *slog.Logger
	label             string
}

// Default timeouts.
const (
	// DefaultFenceTimeout bounds the publisher's wait for a copy fence.
	DefaultFenceTimeout = time.Second

	// DefaultSourceSyncTimeout bounds the wait for an external surface's own gate.
	DefaultSourceSyncTimeout = 5 * time.Millisecond
)

func defaultOptions() options {
	return options{
		slots:             DefaultSlotCount,
		importCacheSize:   DefaultImportCacheSize,
		fenceTimeout:      DefaultFenceTimeout,
		sourceSyncTimeout: DefaultSourceSyncTimeout,
		label:             "framerelay",
	}
}

// WithSlotCount sets the number of ring slots. At least two are required.
func WithSlotCount(n int) Option {
	return func(o *options) {
		o.slots = n
	}
}

// WithViewportSize sets the display size reported to the producer by
// ViewportSize. When set, New builds an RGBA8 ring of this size right away,
// so a failure to allocate GPU resources surfaces from New.
func WithViewportSize(width, height int) Option {
	return func(o *options) {
		o.viewportWidth = width
		o.viewportHeight = height
	}
}

// WithImportCacheSize sets how many imported external surfaces stay open.
func WithImportCacheSize(n int) Option {
	return func(o *options) {
		o.importCacheSize = n
	}
}

// WithFenceTimeout bounds the publisher's wait for a copy to complete.
// A non-positive value waits indefinitely.
func WithFenceTimeout(d time.Duration) Option {
	return func(o *options) {
		o.fenceTimeout = d
	}
}

// WithSourceSyncTimeout bounds the wait for the gate of an external surface
// that carries one. Zero polls once.
func WithSourceSyncTimeout(d time.Duration) Option {
	return func(o *options) {
		o.sourceSyncTimeout = d
	}
}

// WithLogger sets the logger for this relay instead of the package default.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithLabel sets the debug label prefix used for GPU resources.
func WithLabel(label string) Option {
	return func(o *options) {
		if label != "" {
			o.label = label
		}
	}
}
