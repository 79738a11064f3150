package framerelay

import (
	"github.com/gogpu/framerelay/gate"
	"github.com/gogpu/gputypes"
)

// SharedHandle is an opaque cross-device surface reference, such as the
// shared texture handle a browser hands out with each accelerated paint.
type SharedHandle uint64

// Device is the slice of a GPU device the relay needs. A relay uses two:
// the producer device, on which external frames are imported and copied,
// and the consumer device, which the host renders with.
//
// Backends live under backend/: soft is a CPU implementation used by tests
// and the demo, native drives gogpu/wgpu HAL devices.
type Device interface {
	// AdapterID identifies the physical GPU. Producer and consumer devices
	// must share an adapter for shared surfaces to work.
	AdapterID() uint64

	// SupportsFormat reports whether shared, sampleable 2D textures of the
	// given format can be created.
	SupportsFormat(format gputypes.TextureFormat) bool

	// CreateSharedTexture creates a texture on this device that other
	// devices can open through its Handle. The texture carries a gate that
	// starts released with gate.Writable.
	CreateSharedTexture(g Geometry, label string) (SharedTexture, error)

	// OpenSharedTexture binds a surface created elsewhere to this device.
	OpenSharedTexture(h SharedHandle) (SharedTexture, error)

	// CreateView creates a read-only sampling view of t.
	CreateView(t Texture) (View, error)

	// CopyTexture records and submits a full copy of src into dst and
	// returns a fence that signals once the copy is complete on the GPU.
	CopyTexture(dst, src Texture) (Fence, error)
}

// Texture is a device-local binding of GPU memory.
type Texture interface {
	// Geometry returns the texture's size and format as described by the
	// backend, not as claimed by whoever handed it over.
	Geometry() Geometry

	// Release drops this binding. The memory survives while other bindings exist.
	Release()
}

// SharedTexture is a Texture that can be opened on other devices.
type SharedTexture interface {
	Texture

	// Handle returns the cross-device handle of the underlying surface.
	Handle() SharedHandle

	// Gate returns this binding's view of the surface's keyed gate, or nil
	// if the surface was created without one.
	Gate() gate.KeyedMutex
}

// View is a sampleable view handed to the host compositor.
type View interface {
	Geometry() Geometry
	Release()
}

// Fence tracks completion of submitted GPU work.
type Fence interface {
	// Done polls the fence without blocking.
	Done() (bool, error)

	// Release frees the fence.
	Release()
}
