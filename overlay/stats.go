// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package overlay

import "github.com/gogpu/framerelay"

// ShowStats replaces the overlay's lines with a summary of s.
func (o *Overlay) ShowStats(s framerelay.Stats) {
	lines := []string{
		o.printer.Sprintf("relay %v  %v x%d", s.State, s.Geometry, s.Slots),
		o.printer.Sprintf("frames %d  published %d  dropped %d", s.Frames, s.Published, s.Dropped.Total()),
		o.printer.Sprintf("  exhausted %d  busy %d  copy %d  import %d",
			s.Dropped.Exhausted, s.Dropped.Busy, s.Dropped.Copy, s.Dropped.Import),
		o.printer.Sprintf("ticks %d  latched %d  stale %d", s.Ticks, s.LatchChanges, s.StaleTicks),
		o.printer.Sprintf("recalls %d  rebuilds %d", s.Recalls, s.Rebuilds),
		o.printer.Sprintf("imports %d/%d  hit rate %.1f%%", s.Import.Len, s.Import.Capacity, s.Import.HitRate*100),
	}

	o.mu.Lock()
	o.lines = lines
	o.mu.Unlock()
}
