package framerelay

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/gogpu/framerelay/gate"
)

// DefaultSlotCount is the number of slots in a ring. Two would suffice for a
// hand-off; the extra slots absorb scheduling jitter between the producer
// and consumer.
const DefaultSlotCount = 4

// noSlot marks an empty latest/latched index.
const noSlot = ^uint32(0)

// slot is one unit of shared GPU memory bound on both devices.
type slot struct {
	producer SharedTexture // native binding on the producer device
	consumer SharedTexture // imported binding on the consumer device
	view     View          // consumer-side sampling view
}

// ring is a fixed set of slots at one geometry. A ring is immutable in
// shape; a geometry change builds a new ring and retires the old one.
//
// latest is written only by the producer, latched only by the consumer.
// The slot gates are the only thing either side waits on.
type ring struct {
	geom  Geometry
	slots []slot

	latest    atomic.Uint32
	latched   atomic.Uint32
	nextWrite atomic.Uint32

	// users counts consumer critical sections in progress; retired stops
	// new ones from starting. Together they let retire wait out a render tick.
	users   atomic.Int32
	retired atomic.Bool

	stats *counters
}

// buildRing creates n slots at geometry g. Each slot's memory is created on
// the producer device and imported into the consumer device. On failure
// every resource created so far is released.
func buildRing(producer, consumer Device, g Geometry, n int, label string, stats *counters) (*ring, error) {
	if !g.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, g)
	}
	if !producer.SupportsFormat(g.Format) || !consumer.SupportsFormat(g.Format) {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, g.Format)
	}

	r := &ring{
		geom:  g,
		slots: make([]slot, 0, n),
		stats: stats,
	}
	r.latest.Store(noSlot)
	r.latched.Store(noSlot)

	for i := 0; i < n; i++ {
		s, err := createSlot(producer, consumer, g, fmt.Sprintf("%s_slot_%d", label, i))
		if err != nil {
			r.destroy()
			return nil, fmt.Errorf("%w: slot %d: %w", ErrResourceCreation, i, err)
		}
		r.slots = append(r.slots, s)
	}
	return r, nil
}

func createSlot(producer, consumer Device, g Geometry, label string) (slot, error) {
	var s slot

	p, err := producer.CreateSharedTexture(g, label)
	if err != nil {
		return s, fmt.Errorf("create producer texture: %w", err)
	}
	if p.Gate() == nil {
		p.Release()
		return s, fmt.Errorf("producer texture %q has no gate", label)
	}
	s.producer = p

	c, err := consumer.OpenSharedTexture(p.Handle())
	if err != nil {
		s.release()
		return s, fmt.Errorf("open consumer binding: %w", err)
	}
	s.consumer = c

	v, err := consumer.CreateView(c)
	if err != nil {
		s.release()
		return s, fmt.Errorf("create consumer view: %w", err)
	}
	s.view = v

	// A fresh surface may come up keyed readable on some drivers; hand it
	// to the producer so the first reserve finds it writable.
	cg := c.Gate()
	if cg == nil {
		s.release()
		return s, fmt.Errorf("consumer binding %q has no gate", label)
	}
	if cg.Acquire(gate.Readable, 0) {
		_ = cg.Release(gate.Writable)
	}
	return s, nil
}

func (s *slot) release() {
	if s.view != nil {
		s.view.Release()
		s.view = nil
	}
	if s.consumer != nil {
		s.consumer.Release()
		s.consumer = nil
	}
	if s.producer != nil {
		s.producer.Release()
		s.producer = nil
	}
}

func (r *ring) len() int { return len(r.slots) }

// reserveForWrite finds a slot the producer may copy into and returns it
// with its gate held under gate.Writable. It never blocks.
//
// The first pass polls every slot, starting at the round-robin hint, for a
// writable gate. If none is free, the recall pass takes back slots the
// consumer has been handed but is not latched on: acquiring the readable key
// proves the consumer is not holding the slot, and the slot is re-keyed
// writable. The consumer's latched slot is never touched.
func (r *ring) reserveForWrite() (int, bool) {
	n := uint32(len(r.slots))
	start := r.nextWrite.Load() % n

	for a := uint32(0); a < n; a++ {
		idx := (start + a) % n
		if r.slots[idx].producer.Gate().Acquire(gate.Writable, 0) {
			return int(idx), true
		}
	}

	latched := r.latched.Load()
	for a := uint32(0); a < n; a++ {
		idx := (start + a) % n
		if idx == latched {
			continue
		}
		g := r.slots[idx].producer.Gate()
		if !g.Acquire(gate.Readable, 0) {
			continue
		}
		if err := g.Release(gate.Writable); err != nil {
			continue
		}
		if g.Acquire(gate.Writable, 0) {
			r.stats.recalls.Add(1)
			return int(idx), true
		}
	}
	return 0, false
}

// publish advertises idx as the newest complete frame. The slot's copy must
// be GPU-complete and its gate released readable.
func (r *ring) publish(idx int) {
	r.latest.Store(uint32(idx))
	r.nextWrite.Store(uint32((idx + 1) % len(r.slots)))
}

// enter starts a consumer critical section. It fails once the ring is retired.
func (r *ring) enter() bool {
	r.users.Add(1)
	if r.retired.Load() {
		r.users.Add(-1)
		return false
	}
	return true
}

func (r *ring) exit() {
	r.users.Add(-1)
}

// retire stops new consumer sections and waits for running ones to finish.
// Consumer sections are short and never block, so the wait is bounded.
func (r *ring) retire() {
	r.retired.Store(true)
	for r.users.Load() != 0 {
		runtime.Gosched()
	}
}

// destroy releases every slot. The ring must be retired or never published.
// The slot slice itself is left in place for concurrent Stats readers.
func (r *ring) destroy() {
	for i := range r.slots {
		r.slots[i].release()
	}
	r.latest.Store(noSlot)
	r.latched.Store(noSlot)
}
