package framerelay

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// Default viewport reported before the host configures one.
const (
	DefaultViewportWidth  = 800
	DefaultViewportHeight = 600
)

// Geometry is the pixel size and format shared by every slot of a ring and
// by the external frames copied into it.
type Geometry struct {
	Width  int
	Height int
	Format gputypes.TextureFormat
}

// RGBA8 returns an RGBA8Unorm geometry of the given size.
func RGBA8(width, height int) Geometry {
	return Geometry{Width: width, Height: height, Format: gputypes.TextureFormatRGBA8Unorm}
}

// Valid reports whether g describes a creatable texture.
func (g Geometry) Valid() bool {
	return g.Width > 0 && g.Height > 0 && g.Format != gputypes.TextureFormatUndefined
}

// BytesPerPixel returns the texel size for the formats a relay carries.
// Unknown formats report 4.
func (g Geometry) BytesPerPixel() int {
	switch g.Format {
	case gputypes.TextureFormatR8Unorm:
		return 1
	default:
		return 4
	}
}

// String returns e.g. "256x256/RGBA8Unorm".
func (g Geometry) String() string {
	return fmt.Sprintf("%dx%d/%v", g.Width, g.Height, g.Format)
}
