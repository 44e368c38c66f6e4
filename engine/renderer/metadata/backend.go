package metadata

import "image"

type RendererBackendType int

const (
	RENDERER_BACKEND_TYPE_VULKAN RendererBackendType = iota
	RENDERER_BACKEND_TYPE_SOFTWARE
)

func (t RendererBackendType) String() string {
	switch t {
	case RENDERER_BACKEND_TYPE_VULKAN:
		return "vulkan"
	case RENDERER_BACKEND_TYPE_SOFTWARE:
		return "software"
	default:
		return "unknown"
	}
}

/**
 * @brief The GPU facing half of the renderer. Full-screen passes are the only kind
 * of draw it needs to support.
 */
type RendererBackend interface {
	Initialize(appName string, width, height uint32) error
	Shutdown() error
	/** @brief The display surface changed size. */
	Resized(width, height uint32) error
	BeginFrame(frame *FrameContext) error
	EndFrame(frame *FrameContext) error

	/** @brief Creates backing storage for target at its current size (which may be zero). */
	RenderTargetCreate(target *RenderTarget) error
	/** @brief Reallocates storage, keeping the same RenderTarget object alive. */
	RenderTargetResize(target *RenderTarget, width, height uint32) error
	RenderTargetDestroy(target *RenderTarget)
	/** @brief Uploads a tightly packed image in the target format. */
	RenderTargetWrite(target *RenderTarget, pixels []uint8) error
	/** @brief Reads a tightly packed copy of the target. */
	RenderTargetRead(target *RenderTarget) ([]uint8, error)

	ShaderCreate(shader *Shader) error
	ShaderDestroy(shader *Shader)

	DrawFullscreen(draw *FullscreenDraw) error

	/** @brief Copy of the last presented display image. */
	DisplayRead() (*image.RGBA, error)
}
