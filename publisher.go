package framerelay

import (
	"fmt"
	"runtime"
	"time"

	"github.com/gogpu/framerelay/gate"
)

// sourceKey is the key external producers release their own surfaces with.
const sourceKey = gate.Key(0)

// copyAndPublish copies src into the reserved slot idx and publishes it.
// The slot's gate must be held writable by the caller. On any failure the
// slot is handed back writable and nothing is published.
//
// This is the one place the relay waits: it spins on the copy's own fence,
// yielding between polls, so the consumer can never latch a half-copied slot.
func (r *Relay) copyAndPublish(rg *ring, idx int, src SharedTexture) error {
	s := &rg.slots[idx]
	pg := s.producer.Gate()

	if sg, dg := src.Geometry(), s.producer.Geometry(); sg != dg {
		_ = pg.Release(gate.Writable)
		return fmt.Errorf("%w: source %v, slot %v", ErrGeometryMismatch, sg, dg)
	}

	if sgate := src.Gate(); sgate != nil {
		if !sgate.Acquire(sourceKey, r.opts.sourceSyncTimeout) {
			_ = pg.Release(gate.Writable)
			return ErrSourceBusy
		}
		defer func() { _ = sgate.Release(sourceKey) }()
	}

	fence, err := r.producer.CopyTexture(s.producer, src)
	if err != nil {
		_ = pg.Release(gate.Writable)
		return fmt.Errorf("%w: %w", ErrCopy, err)
	}
	defer fence.Release()

	if err := waitFence(fence, r.opts.fenceTimeout); err != nil {
		_ = pg.Release(gate.Writable)
		return err
	}

	if err := pg.Release(gate.Readable); err != nil {
		return fmt.Errorf("%w: release slot %d: %w", ErrCopy, idx, err)
	}
	rg.publish(idx)
	return nil
}

// waitFence polls f until it signals, yielding the goroutine between polls.
// A non-positive timeout waits as long as it takes.
func waitFence(f Fence, timeout time.Duration) error {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		done, err := f.Done()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCopy, err)
		}
		if done {
			return nil
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return fmt.Errorf("%w after %v", ErrFenceTimeout, timeout)
		}
		runtime.Gosched()
	}
}
