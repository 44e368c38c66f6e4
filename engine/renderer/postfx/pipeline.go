package postfx

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/spaghettifunk/cartofx/engine/core"
	"github.com/spaghettifunk/cartofx/engine/renderer/metadata"
)

/**
 * @brief Hands out built shader programs by name.
 */
type ShaderProvider interface {
	/** @brief Returns the program made of passthrough.vert and <name>.frag. */
	Acquire(name string) (*metadata.Shader, error)
}

/**
 * @brief Implemented by providers that can rebuild a program in place.
 */
type ShaderReloader interface {
	/** @brief Rebuilds the named program, keeping the *Shader the passes hold. The
	 * rebuilt program must still declare every uniform in required. */
	Reload(name string, required []string) error
}

/**
 * @brief An ordered chain of effect passes over a shared target pool, resolved to the
 * display by a composite stage.
 */
type Pipeline struct {
	backend   metadata.RendererBackend
	shaders   ShaderProvider
	pool      *RenderTargetPool
	composite *CompositeStage

	passes      []Effect
	byKind      map[EffectKind]Effect
	finalOutput *metadata.RenderTarget
}

func NewPipeline(backend metadata.RendererBackend, shaders ShaderProvider) (*Pipeline, error) {
	shader, err := acquireComposite(shaders)
	if err != nil {
		err = fmt.Errorf("failed to create pipeline: %w", err)
		core.LogError("%s", err)
		return nil, err
	}

	pool, err := NewRenderTargetPool(backend)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		backend:     backend,
		shaders:     shaders,
		pool:        pool,
		byKind:      make(map[EffectKind]Effect),
		finalOutput: pool.Color(),
	}
	p.composite = newCompositeStage(shader, pool.Color(), pool.Depth())
	return p, nil
}

/**
 * @brief Appends a pass of the given kind to the end of the chain.
 * @returns The new pass, or an error naming the shader that could not be used. On error
 * the chain is unchanged.
 */
func (p *Pipeline) PushLayer(kind EffectKind) (Effect, error) {
	factory, ok := effectFactories[kind]
	if !ok {
		err := fmt.Errorf("push layer: unknown effect kind %s", kind)
		core.LogError("%s", err)
		return nil, err
	}

	shader, err := p.shaders.Acquire(kind.ShaderName())
	if err != nil {
		err = fmt.Errorf("push layer %s: %w", kind, asShaderLoadError(kind.ShaderName(), err))
		core.LogError("%s", err)
		return nil, err
	}
	if err := checkUniforms(kind, shader); err != nil {
		err = fmt.Errorf("push layer %s: %w", kind, &core.ShaderLoadError{Shader: kind.ShaderName() + ".frag", Err: err})
		core.LogError("%s", err)
		return nil, err
	}

	base := newEffectPass(kind, uint32(len(p.passes))+1, shader)
	base.width, base.height = p.pool.Size()
	base.onActiveChanged = p.onActiveChanged

	effect := factory(base)
	p.passes = append(p.passes, effect)
	p.byKind[kind] = effect
	p.rewire()

	core.LogDebug("pushed %s as pass %d: %s -> %s", kind, base.order, base.input.Name, base.output.Name)
	return effect, nil
}

// GetLayer returns the pass created by the most recent push of kind.
func (p *Pipeline) GetLayer(kind EffectKind) (Effect, bool) {
	e, ok := p.byKind[kind]
	return e, ok
}

// GetLayerAs is GetLayer narrowed to a concrete effect type.
func GetLayerAs[T Effect](p *Pipeline, kind EffectKind) (T, bool) {
	var zero T
	e, ok := p.byKind[kind]
	if !ok {
		return zero, false
	}
	t, ok := e.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

// Layers returns the passes in render order.
func (p *Pipeline) Layers() []Effect {
	out := make([]Effect, len(p.passes))
	copy(out, p.passes)
	return out
}

// FinalOutput is the target the composite stage samples.
func (p *Pipeline) FinalOutput() *metadata.RenderTarget {
	return p.finalOutput
}

func (p *Pipeline) Composite() *CompositeStage {
	return p.composite
}

func (p *Pipeline) Pool() *RenderTargetPool {
	return p.pool
}

/**
 * @brief Resizes the pool and then every pass. Degenerate sizes are ignored and a
 * repeated size does nothing.
 */
func (p *Pipeline) Resize(width, height int) error {
	changed, err := p.pool.Resize(width, height)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	w, h := p.pool.Size()
	for _, e := range p.passes {
		e.Resize(w, h)
	}
	core.LogDebug("pipeline resized to %dx%d (%d passes)", w, h, len(p.passes))
	return nil
}

/**
 * @brief Uploads the scene images into the raw color and depth targets.
 * depth may be nil, which leaves the depth target untouched.
 */
func (p *Pipeline) SubmitScene(color *image.RGBA, depth []float32) error {
	if !p.pool.IsAllocated() {
		return nil
	}
	w, h := p.pool.Size()
	b := color.Bounds()
	if uint32(b.Dx()) != w || uint32(b.Dy()) != h {
		return fmt.Errorf("scene is %dx%d but targets are %dx%d", b.Dx(), b.Dy(), w, h)
	}
	if err := p.backend.RenderTargetWrite(p.pool.Color(), packRGBA(color)); err != nil {
		return err
	}
	if depth == nil {
		return nil
	}
	if uint32(len(depth)) != w*h {
		return fmt.Errorf("scene depth has %d samples, expected %d", len(depth), w*h)
	}
	return p.backend.RenderTargetWrite(p.pool.Depth(), packDepth(depth))
}

/**
 * @brief Draws every active pass in order and then the composite stage. Does nothing
 * until the targets have a size.
 */
func (p *Pipeline) Render(frame *metadata.FrameContext) error {
	if !p.pool.IsAllocated() {
		return nil
	}
	for _, e := range p.passes {
		pass := e.Pass()
		if !pass.active {
			continue
		}
		if err := p.backend.DrawFullscreen(pass.drawCommand()); err != nil {
			return fmt.Errorf("render %s: %w", pass.kind, err)
		}
	}
	if err := p.backend.DrawFullscreen(p.composite.drawCommand(frame)); err != nil {
		return fmt.Errorf("render composite: %w", err)
	}
	return nil
}

/**
 * @brief Rebuilds a program the passes use. A name no pass uses is ignored.
 */
func (p *Pipeline) ReloadShader(name string) error {
	reloader, ok := p.shaders.(ShaderReloader)
	if !ok {
		core.LogDebug("shader provider cannot reload '%s'", name)
		return nil
	}
	if name == COMPOSITE_SHADER_NAME {
		return reloader.Reload(name, []string{UNIFORM_FADE})
	}
	kind, err := ParseEffectKind(name)
	if err != nil {
		return nil
	}
	if _, ok := p.byKind[kind]; !ok {
		return nil
	}
	return reloader.Reload(name, RequiredUniforms(kind))
}

func (p *Pipeline) Destroy() {
	p.passes = nil
	p.byKind = make(map[EffectKind]Effect)
	if p.pool != nil {
		p.pool.Destroy()
	}
	p.finalOutput = nil
}

func (p *Pipeline) onActiveChanged(pass *EffectPass) {
	core.LogDebug("%s#%d active=%t", pass.kind, pass.order, pass.active)
	p.rewire()
}

/**
 * @brief Binds every pass to its targets. Active passes alternate between the two
 * intermediate buffers; an inactive pass is bound as if it would run next, but does
 * not advance the chain, so the following pass reads the same input it does.
 */
func (p *Pipeline) rewire() {
	head := p.pool.Color()
	depth := p.pool.Depth()
	slot := 0
	for _, e := range p.passes {
		pass := e.Pass()
		pass.bind(head, depth, p.pool.PingPong(slot))
		if pass.active {
			head = pass.output
			slot ^= 1
		}
	}
	p.finalOutput = head
	p.composite.setSource(head)
}

func asShaderLoadError(name string, err error) error {
	var sle *core.ShaderLoadError
	if errors.As(err, &sle) {
		return err
	}
	return &core.ShaderLoadError{Shader: name + ".frag", Err: err}
}

func packRGBA(img *image.RGBA) []uint8 {
	b := img.Bounds()
	rowBytes := b.Dx() * 4
	if img.Stride == rowBytes && len(img.Pix) == rowBytes*b.Dy() {
		return img.Pix
	}
	out := make([]uint8, 0, rowBytes*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := img.PixOffset(b.Min.X, y)
		out = append(out, img.Pix[off:off+rowBytes]...)
	}
	return out
}

func packDepth(depth []float32) []uint8 {
	out := make([]uint8, len(depth)*4)
	for i, d := range depth {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(d))
	}
	return out
}
