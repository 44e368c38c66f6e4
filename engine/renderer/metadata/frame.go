package metadata

/**
 * @brief Per-frame values owned by the caller of a render and passed down explicitly.
 */
type FrameContext struct {
	FrameNumber uint64
	/** @brief Seconds since the previous frame. */
	DeltaTime float64
	/** @brief Seconds since the application started. */
	Elapsed float64
	/** @brief Scene fade, 0 fully hidden and 1 fully shown. */
	FadeAlpha float32
	Width     uint32
	Height    uint32
}

// NewFrameContext returns a context with the scene fully visible.
func NewFrameContext(width, height uint32) *FrameContext {
	return &FrameContext{FadeAlpha: 1, Width: width, Height: height}
}

/**
 * @brief One full-screen triangle pair draw.
 */
type FullscreenDraw struct {
	/** @brief Label used in logs and debug markers. */
	Label  string
	Shader *Shader
	/** @brief Sampled at binding 0. */
	Color *RenderTarget
	/** @brief Sampled at binding 1. */
	Depth *RenderTarget
	/** @brief Render destination, nil for the display. */
	Output *RenderTarget
	/** @brief Values for the shader parameter block. */
	Uniforms map[string]float32
}
