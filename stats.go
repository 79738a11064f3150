package framerelay

import (
	"sync/atomic"

	"github.com/gogpu/framerelay/cache"
)

// counters are the relay's live statistics. Every field is updated with a
// single atomic add from whichever side owns the event.
type counters struct {
	frames    atomic.Uint64
	popups    atomic.Uint64
	published atomic.Uint64
	rebuilds  atomic.Uint64
	recalls   atomic.Uint64

	dropImport    atomic.Uint64
	dropGeometry  atomic.Uint64
	dropExhausted atomic.Uint64
	dropBusy      atomic.Uint64
	dropNotReady  atomic.Uint64
	dropCopy      atomic.Uint64

	ticks        atomic.Uint64
	served       atomic.Uint64
	latchChanges atomic.Uint64
	staleTicks   atomic.Uint64
}

// Stats is a snapshot of relay activity.
type Stats struct {
	State    State
	Geometry Geometry
	Slots    int

	// Frames counts non-popup external frame notifications.
	Frames uint64
	// Popups counts ignored popup/overlay notifications.
	Popups uint64
	// Published counts frames made visible to the consumer.
	Published uint64
	// Recalls counts slots reclaimed from the readable state by the producer.
	Recalls uint64
	// Rebuilds counts slot ring builds, including the first.
	Rebuilds uint64
	// Dropped breaks down frames that were not published.
	Dropped DropStats

	// Ticks counts AcquireFrame calls.
	Ticks uint64
	// Served counts ticks that returned a view.
	Served uint64
	// LatchChanges counts ticks that switched to a newer slot.
	LatchChanges uint64
	// StaleTicks counts ticks where a newer frame existed but could not be
	// acquired, so the previous one was served.
	StaleTicks uint64

	// Import is the imported-surface cache.
	Import cache.Stats
}

// DropStats breaks down dropped frames by cause.
type DropStats struct {
	Import    uint64 // handle could not be opened
	Geometry  uint64 // source and slot disagreed mid-copy
	Exhausted uint64 // no writable or recallable slot
	Busy      uint64 // a rebuild or another delivery was in progress
	NotReady  uint64 // relay uninitialized, failed, or closed
	Copy      uint64 // copy, source sync or fence failure
}

// Total returns the number of dropped frames.
func (d DropStats) Total() uint64 {
	return d.Import + d.Geometry + d.Exhausted + d.Busy + d.NotReady + d.Copy
}

func (c *counters) snapshot() Stats {
	return Stats{
		Frames:    c.frames.Load(),
		Popups:    c.popups.Load(),
		Published: c.published.Load(),
		Recalls:   c.recalls.Load(),
		Rebuilds:  c.rebuilds.Load(),
		Dropped: DropStats{
			Import:    c.dropImport.Load(),
			Geometry:  c.dropGeometry.Load(),
			Exhausted: c.dropExhausted.Load(),
			Busy:      c.dropBusy.Load(),
			NotReady:  c.dropNotReady.Load(),
			Copy:      c.dropCopy.Load(),
		},
		Ticks:        c.ticks.Load(),
		Served:       c.served.Load(),
		LatchChanges: c.latchChanges.Load(),
		StaleTicks:   c.staleTicks.Load(),
	}
}
