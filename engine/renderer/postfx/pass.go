package postfx

import (
	"fmt"

	"github.com/spaghettifunk/cartofx/engine/renderer/metadata"
)

const (
	UNIFORM_RESOLUTION_X = "resolution_x"
	UNIFORM_RESOLUTION_Y = "resolution_y"
)

/**
 * @brief A post-processing layer as seen by the pipeline and the controls.
 * Concrete effects embed *EffectPass and add their typed parameters.
 */
type Effect interface {
	Kind() EffectKind
	Pass() *EffectPass
	/** @brief Updates the viewport and any uniform derived from it. */
	Resize(width, height uint32)
	SetActive(active bool)
	GetActive() bool
	/** @brief Sets a tunable by name, as listed by EffectParameterNames. */
	SetParameter(name string, value float64) error
}

/**
 * @brief One full-screen shader stage. The input, depth and output targets are owned
 * by the pipeline's pool; the pass only references them.
 */
type EffectPass struct {
	kind EffectKind
	/** @brief Position in the chain, starting at 1. 0 is never assigned. */
	order    uint32
	shader   *metadata.Shader
	input    *metadata.RenderTarget
	depth    *metadata.RenderTarget
	output   *metadata.RenderTarget
	uniforms map[string]float32
	active   bool
	width    uint32
	height   uint32

	onActiveChanged func(pass *EffectPass)
}

func newEffectPass(kind EffectKind, order uint32, shader *metadata.Shader) *EffectPass {
	return &EffectPass{
		kind:     kind,
		order:    order,
		shader:   shader,
		uniforms: make(map[string]float32),
		active:   true,
	}
}

func (p *EffectPass) Kind() EffectKind {
	return p.kind
}

func (p *EffectPass) Pass() *EffectPass {
	return p
}

func (p *EffectPass) Order() uint32 {
	return p.order
}

func (p *EffectPass) Shader() *metadata.Shader {
	return p.shader
}

func (p *EffectPass) Input() *metadata.RenderTarget {
	return p.input
}

func (p *EffectPass) Depth() *metadata.RenderTarget {
	return p.depth
}

func (p *EffectPass) Output() *metadata.RenderTarget {
	return p.output
}

// EffectiveOutput is where the result of this pass lives: its output when active,
// its input otherwise.
func (p *EffectPass) EffectiveOutput() *metadata.RenderTarget {
	if p.active {
		return p.output
	}
	return p.input
}

// Viewport returns the size the pass last resized to.
func (p *EffectPass) Viewport() (uint32, uint32) {
	return p.width, p.height
}

func (p *EffectPass) Resize(width, height uint32) {
	p.width, p.height = width, height
}

func (p *EffectPass) GetActive() bool {
	return p.active
}

func (p *EffectPass) SetActive(active bool) {
	if p.active == active {
		return
	}
	p.active = active
	if p.onActiveChanged != nil {
		p.onActiveChanged(p)
	}
}

// Uniform returns the current value of a shader uniform.
func (p *EffectPass) Uniform(name string) (float32, bool) {
	v, ok := p.uniforms[name]
	return v, ok
}

// Uniforms returns a copy of every uniform value the pass uploads.
func (p *EffectPass) Uniforms() map[string]float32 {
	out := make(map[string]float32, len(p.uniforms))
	for k, v := range p.uniforms {
		out[k] = v
	}
	return out
}

func (p *EffectPass) SetParameter(name string, value float64) error {
	return fmt.Errorf("%s has no parameter '%s'", p.kind, name)
}

func (p *EffectPass) setUniform(name string, value float32) {
	p.uniforms[name] = value
}

func (p *EffectPass) setResolution(width, height uint32) {
	p.setUniform(UNIFORM_RESOLUTION_X, float32(width))
	p.setUniform(UNIFORM_RESOLUTION_Y, float32(height))
}

func (p *EffectPass) bind(input, depth, output *metadata.RenderTarget) {
	p.input, p.depth, p.output = input, depth, output
}

func (p *EffectPass) drawCommand() *metadata.FullscreenDraw {
	return &metadata.FullscreenDraw{
		Label:    fmt.Sprintf("%s#%d", p.kind, p.order),
		Shader:   p.shader,
		Color:    p.input,
		Depth:    p.depth,
		Output:   p.output,
		Uniforms: p.Uniforms(),
	}
}
