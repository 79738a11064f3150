package framerelay

import "fmt"

// EnsureGeometry makes the slot ring match g, rebuilding it if the size or
// format differs. The rebuild finishes before any further publish; frames
// delivered meanwhile are dropped rather than raced.
//
// A build failure leaves the relay without a ring and is returned to the
// caller; frames are dropped until a later EnsureGeometry succeeds.
func (r *Relay) EnsureGeometry(g Geometry) error {
	r.producerMu.Lock()
	defer r.producerMu.Unlock()

	if r.State() == StateClosed {
		return ErrClosed
	}
	r.failure = nil
	if rg := r.ring.Load(); rg != nil && rg.geom == g {
		return nil
	}
	return r.rebuildLocked(g)
}

// rebuildLocked replaces the ring with one at geometry g. The caller holds
// producerMu.
func (r *Relay) rebuildLocked(g Geometry) error {
	if !g.Valid() {
		return fmt.Errorf("%w: %v", ErrInvalidGeometry, g)
	}

	if old := r.ring.Load(); old != nil {
		r.log().Debug("rebuilding slot ring", "from", old.geom, "to", g)
	}
	r.state.Store(uint32(StateRebuilding))
	r.teardownLocked()

	rg, err := buildRing(r.producer, r.consumer, g, r.opts.slots, r.opts.label, &r.stats)
	if err != nil {
		r.failure = err
		r.state.Store(uint32(StateUninitialized))
		r.log().Error("slot ring build failed", "geometry", g, "err", err)
		return err
	}

	r.ring.Store(rg)
	r.stats.rebuilds.Add(1)
	r.state.Store(uint32(StateReady))
	r.log().Info("slot ring ready", "geometry", g, "slots", rg.len())
	return nil
}

// teardownLocked unpublishes the current ring, waits for the consumer to
// leave it and releases its slots along with every cached import.
func (r *Relay) teardownLocked() {
	old := r.ring.Swap(nil)
	if old != nil {
		old.retire()
		old.destroy()
	}
	r.importer.clear()
}
