package metadata

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

/**
 * @brief A 2D image that passes render into and sample from. The ID, Name and the
 * RenderTarget pointer itself stay the same for the whole life of the target; only
 * the size, the generation and whatever the backend keeps in InternalData change on resize.
 */
type RenderTarget struct {
	/** @brief Stable identifier handed out at creation. */
	ID uint32
	/** @brief Unique debug name. */
	Name string
	/** @brief Pixel format, RGBA8 for color and R32 float for depth. */
	Format gputypes.TextureFormat
	Width  uint32
	Height uint32
	/** @brief Incremented every time backing storage is reallocated. */
	Generation uint32
	/** @brief Backend specific storage. */
	InternalData interface{}
}

func (t *RenderTarget) Extent() gputypes.Extent3D {
	return gputypes.Extent3D{Width: t.Width, Height: t.Height, DepthOrArrayLayers: 1}
}

// IsAllocated reports whether the target has backing storage.
func (t *RenderTarget) IsAllocated() bool {
	return t.Width > 0 && t.Height > 0
}

func (t *RenderTarget) IsDepth() bool {
	return t.Format == gputypes.TextureFormatR32Float || t.Format == gputypes.TextureFormatDepth32Float
}

func (t *RenderTarget) String() string {
	return fmt.Sprintf("%s(#%d %dx%d %v gen=%d)", t.Name, t.ID, t.Width, t.Height, t.Format, t.Generation)
}

// BytesPerPixel returns the texel size for the formats render targets can use.
func BytesPerPixel(format gputypes.TextureFormat) uint32 {
	switch format {
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatR32Float, gputypes.TextureFormatDepth32Float:
		return 4
	default:
		return 0
	}
}
