// Package backend provides a pluggable device backend abstraction for
// framerelay.
//
// A Backend bundles the producer and consumer devices a relay needs with
// helpers for standing in for an external producer and for reading frames
// back to the CPU. Backends register themselves by name from init():
//
//	import _ "github.com/gogpu/framerelay/backend/soft"
//
// # Backend Selection
//
// Use Open("") to get the best backend that initializes, or Open(name) for
// a specific one:
//
//	b, err := backend.Open("soft")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer b.Close()
//
//	relay, err := framerelay.New(b.Producer(), b.Consumer())
//
// # Available Backends
//
//   - soft: CPU devices with asynchronous copy queues; always available
//   - native: gogpu/wgpu HAL devices
package backend
