package framerelay

import "errors"

// Errors returned by New and EnsureGeometry. These are fatal to the relay:
// it cannot operate without its slot ring.
var (
	// ErrNilDevice is returned when New is given a nil producer or consumer device.
	ErrNilDevice = errors.New("framerelay: nil device")

	// ErrAdapterMismatch is returned when the producer and consumer devices
	// do not live on the same GPU adapter, so surfaces cannot be shared.
	ErrAdapterMismatch = errors.New("framerelay: producer and consumer devices are on different adapters")

	// ErrInvalidSlotCount is returned when fewer than two slots are requested.
	ErrInvalidSlotCount = errors.New("framerelay: slot count must be at least 2")

	// ErrInvalidGeometry is returned for zero-sized or format-less geometry.
	ErrInvalidGeometry = errors.New("framerelay: invalid geometry")

	// ErrUnsupportedFormat is returned when a device cannot create or sample
	// shared textures in the requested format.
	ErrUnsupportedFormat = errors.New("framerelay: texture format not supported")

	// ErrResourceCreation wraps a backend failure while building the slot ring.
	ErrResourceCreation = errors.New("framerelay: slot resource creation failed")

	// ErrClosed is returned by operations on a closed relay.
	ErrClosed = errors.New("framerelay: relay is closed")
)

// Errors that cost a single frame. They never leave the relay except
// through logs and Stats.
var (
	// ErrImport is returned when an external handle cannot be opened.
	ErrImport = errors.New("framerelay: shared surface import failed")

	// ErrGeometryMismatch is returned when the source surface and the
	// reserved slot disagree on size or format.
	ErrGeometryMismatch = errors.New("framerelay: source geometry does not match slot")

	// ErrSourceBusy is returned when the source surface's own gate could not
	// be taken within the source sync timeout.
	ErrSourceBusy = errors.New("framerelay: source surface is busy")

	// ErrCopy wraps a backend failure while issuing the slot copy.
	ErrCopy = errors.New("framerelay: slot copy failed")

	// ErrFenceTimeout is returned when a copy fence does not signal in time.
	ErrFenceTimeout = errors.New("framerelay: copy fence timed out")
)
