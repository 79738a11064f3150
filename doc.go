// Package framerelay relays GPU frames from an external producer, such as an
// off-screen browser, into a host application's render loop.
//
// # Overview
//
// The producer paints at its own pace on its own goroutine and hands over a
// shared texture handle per frame. The host renders on a fixed cadence and
// wants the newest complete frame every tick. framerelay sits between them
// and guarantees neither side waits on the other:
//
//	producer goroutine                          host render goroutine
//	------------------                          ---------------------
//	OnExternalFrame(handle)                     Render(func(v View) { draw(v) })
//	  import handle (cached)                      latest published slot?
//	  rebuild ring if geometry changed            poll its gate (readable)
//	  reserve a writable slot                     latch it, release old latch
//	  GPU copy + fence, spin until done
//	  flip slot gate to readable, publish
//
// # Slot Ring
//
// Frames travel through a ring of slots (4 by default). Each slot is one GPU
// surface bound on both devices and guarded by a two-state keyed gate (see
// package gate): whoever holds the writable key may copy into it, whoever
// holds the readable key may sample it. The gate and a few atomic indices are
// the only state the two sides share.
//
// The pipeline is latest-wins. When every slot is busy the frame is dropped,
// not queued, and the consumer keeps showing the last frame it latched.
//
// # Quick Start
//
//	adapter := soft.NewAdapter()
//	copyDev := adapter.NewDevice("copy")
//	renderDev := adapter.NewDevice("render")
//
//	r, err := framerelay.New(copyDev, renderDev, framerelay.WithViewportSize(1280, 720))
//	if err != nil {
//	    return err // no slot ring, disable this frame source
//	}
//	defer r.Close()
//
//	// browser paint callback
//	r.OnExternalFrame(framerelay.ExternalFrame{Handle: h})
//
//	// host render tick
//	r.Render(func(v framerelay.View) { compositor.Draw(v) })
//
// # Errors
//
// Only failures to build the slot ring leave the relay (from New and
// EnsureGeometry). Everything else costs at most one frame and shows up in
// Stats and, for actual failures, in the log.
package framerelay
