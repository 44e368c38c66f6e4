package metadata

import "image"

type ResourceType int

/** @brief Pre-defined resource types. */
const (
	ResourceTypeNone ResourceType = iota
	/** @brief WGSL shader source. */
	ResourceTypeShader
	/** @brief Decoded image. */
	ResourceTypeImage
)

func (t ResourceType) String() string {
	switch t {
	case ResourceTypeShader:
		return "shader"
	case ResourceTypeImage:
		return "image"
	default:
		return "none"
	}
}

/**
 * @brief A generic structure for a resource. All resource loaders
 * load data into these.
 */
type Resource struct {
	/** @brief The name of the resource. */
	Name string
	Type ResourceType
	/** @brief The full file path of the resource. */
	FullPath string
	/** @brief The size of the resource data in bytes. */
	DataSize uint64
	/** @brief The resource data. */
	Data interface{}
}

type ImageResourceParams struct {
	/** @brief Flip rows so that the first row is the bottom of the image. */
	FlipY bool
}

type ImageResourceData struct {
	Image *image.RGBA
	/** @brief Name of the decoder that read the file, e.g. "png" or "tga". */
	Format string
}
