package postfx

import (
	"fmt"
	"image"

	"github.com/gogpu/gputypes"

	"github.com/spaghettifunk/cartofx/engine/core"
	"github.com/spaghettifunk/cartofx/engine/renderer/metadata"
)

const (
	COMPOSITE_SHADER_NAME = "composite"
	UNIFORM_FADE          = "fade"
)

/**
 * @brief The terminal blit from the chain's final output to the display.
 */
type CompositeStage struct {
	shader *metadata.Shader
	source *metadata.RenderTarget
	depth  *metadata.RenderTarget
}

func newCompositeStage(shader *metadata.Shader, source, depth *metadata.RenderTarget) *CompositeStage {
	return &CompositeStage{shader: shader, source: source, depth: depth}
}

// Source is the target currently shown on the display.
func (c *CompositeStage) Source() *metadata.RenderTarget {
	return c.source
}

func (c *CompositeStage) Shader() *metadata.Shader {
	return c.shader
}

func (c *CompositeStage) setSource(source *metadata.RenderTarget) {
	c.source = source
}

func (c *CompositeStage) drawCommand(frame *metadata.FrameContext) *metadata.FullscreenDraw {
	fade := float32(1)
	if frame != nil {
		fade = frame.FadeAlpha
	}
	return &metadata.FullscreenDraw{
		Label:    COMPOSITE_SHADER_NAME,
		Shader:   c.shader,
		Color:    c.source,
		Depth:    c.depth,
		Output:   nil,
		Uniforms: map[string]float32{UNIFORM_FADE: fade},
	}
}

// acquireComposite returns the composite program, checked for the fade uniform.
func acquireComposite(shaders ShaderProvider) (*metadata.Shader, error) {
	shader, err := shaders.Acquire(COMPOSITE_SHADER_NAME)
	if err != nil {
		return nil, asShaderLoadError(COMPOSITE_SHADER_NAME, err)
	}
	if !shader.HasUniform(UNIFORM_FADE) {
		return nil, &core.ShaderLoadError{
			Shader: COMPOSITE_SHADER_NAME + ".frag",
			Err:    fmt.Errorf("no uniform '%s'", UNIFORM_FADE),
		}
	}
	return shader, nil
}

/**
 * @brief Shows one image through the composite program while the scene loads. It
 * owns a single color target, so the pipeline and its pool only come to exist once
 * the scene is ready.
 */
type PlaceholderStage struct {
	backend   metadata.RendererBackend
	composite *CompositeStage
	target    *metadata.RenderTarget
	width     uint32
	height    uint32
}

func NewPlaceholderStage(backend metadata.RendererBackend, shaders ShaderProvider) (*PlaceholderStage, error) {
	shader, err := acquireComposite(shaders)
	if err != nil {
		err = fmt.Errorf("failed to create placeholder: %w", err)
		core.LogError("%s", err)
		return nil, err
	}
	target, err := createTarget(backend, "placeholder", gputypes.TextureFormatRGBA8Unorm)
	if err != nil {
		return nil, err
	}
	return &PlaceholderStage{
		backend:   backend,
		composite: newCompositeStage(shader, target, nil),
		target:    target,
	}, nil
}

// Resize reallocates the placeholder target. Non-positive and repeated sizes do nothing.
func (s *PlaceholderStage) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return nil
	}
	w, h := uint32(width), uint32(height)
	if w == s.width && h == s.height {
		return nil
	}
	if err := s.backend.RenderTargetResize(s.target, w, h); err != nil {
		err = fmt.Errorf("failed to resize placeholder to %dx%d: %w", w, h, err)
		core.LogError("%s", err)
		return err
	}
	s.width, s.height = w, h
	return nil
}

func (s *PlaceholderStage) Size() (uint32, uint32) {
	return s.width, s.height
}

// Target is the image the composite samples.
func (s *PlaceholderStage) Target() *metadata.RenderTarget {
	return s.target
}

// Submit uploads img, which must match the current size.
func (s *PlaceholderStage) Submit(img *image.RGBA) error {
	b := img.Bounds()
	if uint32(b.Dx()) != s.width || uint32(b.Dy()) != s.height {
		return fmt.Errorf("placeholder is %dx%d but target is %dx%d", b.Dx(), b.Dy(), s.width, s.height)
	}
	return s.backend.RenderTargetWrite(s.target, packRGBA(img))
}

// Render draws the composite over the placeholder target. Does nothing until sized.
func (s *PlaceholderStage) Render(frame *metadata.FrameContext) error {
	if s.width == 0 || s.height == 0 {
		return nil
	}
	if err := s.backend.DrawFullscreen(s.composite.drawCommand(frame)); err != nil {
		return fmt.Errorf("render placeholder: %w", err)
	}
	return nil
}

func (s *PlaceholderStage) Destroy() {
	if s.target != nil {
		destroyTarget(s.backend, s.target)
		s.target = nil
	}
	s.width, s.height = 0, 0
}
