package framerelay

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/google/uuid"
)

// State is the lifecycle state of a Relay.
type State uint32

const (
	// StateUninitialized means no slot ring exists yet, or the last build failed.
	StateUninitialized State = iota
	// StateReady means frames can be published and consumed.
	StateReady
	// StateRebuilding means the ring is being replaced after a geometry change.
	StateRebuilding
	// StateClosed means the relay was shut down.
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateRebuilding:
		return "rebuilding"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", uint32(s))
	}
}

// ExternalFrame is one accelerated paint notification from the producer.
// Handle is only valid for the duration of OnExternalFrame.
type ExternalFrame struct {
	Handle SharedHandle

	// Width, Height and Format are the producer's claim about the frame.
	// The relay trusts the imported surface's own description instead and
	// only logs disagreements.
	Width  int
	Height int
	Format gputypes.TextureFormat

	// Popup marks popup or overlay layers, which this relay ignores.
	Popup bool
}

// Relay hands the newest complete frame from an external producer to a
// host render loop.
//
// OnExternalFrame is called from the producer's delivery goroutine and
// AcquireFrame or Render from the host's render goroutine. The two sides
// share no lock: they meet only at per-slot gates and atomic indices.
// Producer-side calls (OnExternalFrame, EnsureGeometry, Close) are
// serialized among themselves.
type Relay struct {
	id       string
	producer Device
	consumer Device
	opts     options

	importer *importer
	ring     atomic.Pointer[ring]
	state    atomic.Uint32
	visible  atomic.Bool

	// producerMu serializes producer-side work. The consumer never takes it.
	producerMu sync.Mutex
	// failure holds the last fatal ring build error; guarded by producerMu.
	failure error

	stats counters
}

// New creates a relay between a producer device (where external frames are
// imported and copied) and a consumer device (which the host renders with).
//
// If WithViewportSize is given, the ring is built immediately at that size;
// otherwise it is built from the first frame's geometry. Errors from New are
// fatal: the relay cannot run without its slot ring.
func New(producer, consumer Device, opts ...Option) (*Relay, error) {
	if producer == nil || consumer == nil {
		return nil, ErrNilDevice
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.slots < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSlotCount, o.slots)
	}
	if pa, ca := producer.AdapterID(), consumer.AdapterID(); pa != ca {
		return nil, fmt.Errorf("%w: producer %#x, consumer %#x", ErrAdapterMismatch, pa, ca)
	}

	r := &Relay{
		id:       uuid.NewString(),
		producer: producer,
		consumer: consumer,
		opts:     o,
		importer: newImporter(producer, o.importCacheSize),
	}
	r.visible.Store(true)

	if o.viewportWidth > 0 && o.viewportHeight > 0 {
		if err := r.EnsureGeometry(RGBA8(o.viewportWidth, o.viewportHeight)); err != nil {
			return nil, err
		}
	}

	r.log().Info("relay created", "slots", o.slots, "adapter", producer.AdapterID())
	return r, nil
}

// ID returns the relay's instance ID, also attached to its log records.
func (r *Relay) ID() string { return r.id }

// State returns the current lifecycle state.
func (r *Relay) State() State { return State(r.state.Load()) }

// SlotCount returns the configured number of ring slots.
func (r *Relay) SlotCount() int { return r.opts.slots }

// Geometry returns the current ring geometry, or the zero Geometry if no
// ring is built.
func (r *Relay) Geometry() Geometry {
	if rg := r.ring.Load(); rg != nil {
		return rg.geom
	}
	return Geometry{}
}

// Err returns the error that left the relay without a ring, if any.
// It is cleared by a successful EnsureGeometry.
func (r *Relay) Err() error {
	r.producerMu.Lock()
	defer r.producerMu.Unlock()
	return r.failure
}

// ViewportSize returns the size the producer should render at: the
// configured viewport, or 800x600 if none was configured.
func (r *Relay) ViewportSize() (width, height int) {
	if r.opts.viewportWidth > 0 && r.opts.viewportHeight > 0 {
		return r.opts.viewportWidth, r.opts.viewportHeight
	}
	return DefaultViewportWidth, DefaultViewportHeight
}

// SetVisible shows or hides the frame source. While hidden, Render draws
// nothing and leaves the latch alone.
func (r *Relay) SetVisible(v bool) { r.visible.Store(v) }

// Visible reports whether the frame source is shown.
func (r *Relay) Visible() bool { return r.visible.Load() }

// OnExternalFrame imports, copies and publishes one external frame. It
// reports whether the frame was published; a false result means the frame
// was dropped, which is routine under load.
//
// OnExternalFrame blocks only while the copy into the reserved slot
// completes on the GPU.
func (r *Relay) OnExternalFrame(f ExternalFrame) bool {
	if f.Popup {
		r.stats.popups.Add(1)
		return false
	}
	r.stats.frames.Add(1)

	if !r.producerMu.TryLock() {
		r.stats.dropBusy.Add(1)
		return false
	}
	defer r.producerMu.Unlock()

	if r.State() == StateClosed || r.failure != nil {
		r.stats.dropNotReady.Add(1)
		return false
	}

	src, err := r.importer.open(f.Handle)
	if err != nil {
		r.stats.dropImport.Add(1)
		r.log().Warn("dropping frame", "err", err)
		return false
	}

	g := src.Geometry()
	if hint := (Geometry{Width: f.Width, Height: f.Height, Format: f.Format}); hint.Valid() && hint != g {
		r.log().Debug("frame hint differs from surface", "hint", hint, "geometry", g)
	}

	if rg := r.ring.Load(); rg == nil || rg.geom != g {
		if err := r.rebuildLocked(g); err != nil {
			r.stats.dropNotReady.Add(1)
			return false
		}
		// The rebuild cleared the import cache.
		if src, err = r.importer.open(f.Handle); err != nil {
			r.stats.dropImport.Add(1)
			r.log().Warn("dropping frame", "err", err)
			return false
		}
	}

	rg := r.ring.Load()
	idx, ok := rg.reserveForWrite()
	if !ok {
		r.stats.dropExhausted.Add(1)
		return false
	}

	if err := r.copyAndPublish(rg, idx, src); err != nil {
		if errors.Is(err, ErrGeometryMismatch) {
			r.stats.dropGeometry.Add(1)
			r.log().Debug("dropping frame", "slot", idx, "err", err)
			return false
		}
		r.stats.dropCopy.Add(1)
		r.log().Warn("dropping frame", "slot", idx, "err", err)
		if errors.Is(err, ErrCopy) {
			// The import may be stale; reopen it next time.
			r.importer.forget(f.Handle)
		}
		return false
	}

	r.stats.published.Add(1)
	return true
}

// AcquireFrame returns the view to draw on this render tick, or false if no
// frame has been published yet. It never blocks.
//
// Calling it again without a new publish returns the same view with no gate
// traffic. The view stays valid until the next AcquireFrame, Render,
// EnsureGeometry or Close; hosts that draw outside the render goroutine
// should use Render instead.
func (r *Relay) AcquireFrame() (View, bool) {
	r.stats.ticks.Add(1)
	if r.State() != StateReady {
		return nil, false
	}
	rg := r.ring.Load()
	if rg == nil || !rg.enter() {
		return nil, false
	}
	defer rg.exit()

	v, ok := rg.acquire()
	if ok {
		r.stats.served.Add(1)
	}
	return v, ok
}

// Render acquires this tick's frame and calls draw with it while the ring is
// pinned, so a concurrent rebuild cannot release the view mid-draw. It
// reports whether draw was called. Nothing is drawn while the relay is hidden.
func (r *Relay) Render(draw func(View)) bool {
	if !r.Visible() {
		return false
	}
	r.stats.ticks.Add(1)
	if r.State() != StateReady {
		return false
	}
	rg := r.ring.Load()
	if rg == nil || !rg.enter() {
		return false
	}
	defer rg.exit()

	v, ok := rg.acquire()
	if !ok {
		return false
	}
	r.stats.served.Add(1)
	draw(v)
	return true
}

// Stats returns a snapshot of relay activity. It reads only atomics and
// never waits on the producer, so render loops may call it every tick.
func (r *Relay) Stats() Stats {
	s := r.stats.snapshot()
	s.State = r.State()
	if rg := r.ring.Load(); rg != nil {
		s.Geometry = rg.geom
		s.Slots = rg.len()
	}
	s.Import = r.importer.stats()
	return s
}

// Close tears down the slot ring and releases every imported surface.
// It waits for an in-progress Render or AcquireFrame to return. Close is
// idempotent.
func (r *Relay) Close() error {
	r.producerMu.Lock()
	defer r.producerMu.Unlock()

	if r.State() == StateClosed {
		return nil
	}
	r.state.Store(uint32(StateClosed))
	r.teardownLocked()
	r.log().Info("relay closed")
	return nil
}

func (r *Relay) log() *slog.Logger {
	l := r.opts.logger
	if l == nil {
		l = Logger()
	}
	return l.With("relay", r.id)
}
