package framerelay

import "github.com/gogpu/framerelay/gate"

// acquire returns the view the consumer should draw this tick. It never
// blocks and touches at most two gates.
//
// If the latched slot is already the latest, it is returned with no gate
// traffic at all. Otherwise the latest slot is polled for the readable key;
// on success the old latch is handed back to the producer and the new slot
// latched. On failure the old latch keeps being served, so what the consumer
// shows never goes backwards.
func (r *ring) acquire() (View, bool) {
	latest := r.latest.Load()
	latched := r.latched.Load()

	if latest == noSlot || latched == latest {
		return r.viewOf(latched)
	}

	if r.slots[latest].consumer.Gate().Acquire(gate.Readable, 0) {
		if latched != noSlot {
			_ = r.slots[latched].consumer.Gate().Release(gate.Writable)
		}
		r.latched.Store(latest)
		r.stats.latchChanges.Add(1)
		return r.slots[latest].view, true
	}

	r.stats.staleTicks.Add(1)
	return r.viewOf(latched)
}

func (r *ring) viewOf(idx uint32) (View, bool) {
	if idx == noSlot {
		return nil, false
	}
	return r.slots[idx].view, true
}
