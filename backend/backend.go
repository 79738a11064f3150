package backend

import (
	"errors"
	"image"

	"github.com/gogpu/framerelay"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not available.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrNotInitialized is returned when operations are called before Init.
	ErrNotInitialized = errors.New("backend: not initialized")
)

// Backend supplies everything needed to run a relay on one kind of device:
// the producer and consumer devices, a way to play the external producer,
// and a way to read consumer views back to the CPU.
//
// Backends must be registered via Register() and are selected via
// Get() or Default().
type Backend interface {
	// Name returns the backend identifier (e.g., "soft", "native").
	Name() string

	// Init opens the backend's devices.
	// This should be called before any other method.
	Init() error

	// Close releases all backend resources.
	// The backend should not be used after Close is called.
	Close()

	// Producer returns the device external frames are imported and copied on.
	Producer() framerelay.Device

	// Consumer returns the device the host renders with.
	Consumer() framerelay.Device

	// NewSource creates a surface that plays the part of an external
	// producer's shared buffer.
	NewSource(g framerelay.Geometry, label string) (Source, error)

	// Readback copies a consumer view into a new image.
	Readback(v framerelay.View) (*image.RGBA, error)
}

// Source is a producer-side surface that can be filled from the CPU and
// announced to a relay by its handle.
type Source interface {
	Handle() framerelay.SharedHandle
	Geometry() framerelay.Geometry

	// Upload replaces the surface contents with img, which must match the
	// surface size.
	Upload(img *image.RGBA) error

	Release()
}
