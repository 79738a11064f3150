package framerelay

import (
	"fmt"

	"github.com/gogpu/framerelay/cache"
)

// DefaultImportCacheSize is the number of imported external surfaces kept
// open between paint notifications. Browsers typically rotate through two
// or three shared buffers.
const DefaultImportCacheSize = 3

// importer opens external shared handles on the producer device and keeps
// the last few open so a rotating set of producer buffers is imported once.
// Only the producer side touches it.
type importer struct {
	device Device
	cache  *cache.Fixed[SharedHandle, SharedTexture]
}

func newImporter(device Device, capacity int) *importer {
	return &importer{
		device: device,
		cache: cache.NewFixed(capacity, func(_ SharedHandle, t SharedTexture) {
			t.Release()
		}),
	}
}

// open returns a texture bound to the producer device for h.
func (im *importer) open(h SharedHandle) (SharedTexture, error) {
	tex, err := im.cache.GetOrOpen(h, im.device.OpenSharedTexture)
	if err != nil {
		return nil, fmt.Errorf("%w: handle %#x: %w", ErrImport, uint64(h), err)
	}
	return tex, nil
}

// forget drops h from the cache, releasing its binding.
func (im *importer) forget(h SharedHandle) {
	im.cache.Delete(h)
}

// clear releases every cached import.
func (im *importer) clear() {
	im.cache.Clear()
}

func (im *importer) stats() cache.Stats {
	return im.cache.Stats()
}
