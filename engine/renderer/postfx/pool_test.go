package postfx

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/cartofx/engine/renderer/metadata"
	"github.com/spaghettifunk/cartofx/engine/renderer/software"
)

// flakyBackend fails the failOn-th RenderTargetResize call, counting from 1.
type flakyBackend struct {
	*software.Backend
	failOn int
	calls  int
}

func (b *flakyBackend) RenderTargetResize(target *metadata.RenderTarget, width, height uint32) error {
	b.calls++
	if b.calls == b.failOn {
		return errors.New("out of device memory")
	}
	return b.Backend.RenderTargetResize(target, width, height)
}

func TestPoolResizeFailureRestoresTargets(t *testing.T) {
	sw := software.New()
	require.NoError(t, sw.Initialize("pool-test", 8, 8))
	backend := &flakyBackend{Backend: sw}
	p, err := NewPipeline(backend, newTestShaders(sw))
	require.NoError(t, err)
	t.Cleanup(p.Destroy)

	fxaa := pushAll(t, p, EFFECT_KIND_FXAA)[0]
	require.NoError(t, p.Resize(16, 16))

	// color and depth resize, then the first ping-pong buffer fails
	backend.failOn = backend.calls + 3
	require.Error(t, p.Resize(32, 32))

	w, h := p.Pool().Size()
	assert.Equal(t, uint32(16), w)
	assert.Equal(t, uint32(16), h)
	for _, target := range p.Pool().Targets() {
		assert.Equalf(t, uint32(16), target.Width, "%s width", target.Name)
		assert.Equalf(t, uint32(16), target.Height, "%s height", target.Name)
	}
	vw, vh := fxaa.Pass().Viewport()
	assert.Equal(t, uint32(16), vw)
	assert.Equal(t, uint32(16), vh)

	scene, depth := sceneImage(16, 16)
	require.NoError(t, p.SubmitScene(scene, depth))

	// the next attempt goes through
	require.NoError(t, p.Resize(32, 32))
	w, h = p.Pool().Size()
	assert.Equal(t, uint32(32), w)
	assert.Equal(t, uint32(32), h)
	for _, target := range p.Pool().Targets() {
		assert.Equal(t, uint32(32), target.Width)
	}
}

func TestPoolFirstResizeFailureStaysUnallocated(t *testing.T) {
	sw := software.New()
	require.NoError(t, sw.Initialize("pool-test", 8, 8))
	backend := &flakyBackend{Backend: sw, failOn: 2}
	pool, err := NewRenderTargetPool(backend)
	require.NoError(t, err)
	t.Cleanup(pool.Destroy)

	changed, err := pool.Resize(10, 10)
	require.Error(t, err)
	assert.False(t, changed)
	assert.False(t, pool.IsAllocated())

	changed, err = pool.Resize(10, 10)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, pool.IsAllocated())
}

func TestPlaceholderStage(t *testing.T) {
	backend := software.New()
	require.NoError(t, backend.Initialize("placeholder-test", 8, 8))
	s, err := NewPlaceholderStage(backend, newTestShaders(backend))
	require.NoError(t, err)
	t.Cleanup(s.Destroy)

	// nothing to draw before the first size
	require.NoError(t, s.Render(nil))
	assert.Equal(t, uint64(0), backend.Stats().DrawCalls)

	require.NoError(t, s.Resize(6, 4))
	require.NoError(t, s.Resize(0, 4))
	w, h := s.Size()
	assert.Equal(t, uint32(6), w)
	assert.Equal(t, uint32(4), h)
	assert.Equal(t, uint32(6), s.Target().Width)

	img, _ := sceneImage(6, 4)
	require.NoError(t, s.Submit(img))
	wrong, _ := sceneImage(5, 4)
	assert.Error(t, s.Submit(wrong))

	require.NoError(t, backend.Resized(6, 4))
	frame := metadata.NewFrameContext(6, 4)
	require.NoError(t, backend.BeginFrame(frame))
	require.NoError(t, s.Render(frame))
	require.NoError(t, backend.EndFrame(frame))
	assert.Equal(t, uint64(1), backend.Stats().FrameDrawCalls)

	out, err := backend.DisplayRead()
	require.NoError(t, err)
	assert.Equal(t, img.Pix, out.Pix)
}

func TestPlaceholderStageNeedsComposite(t *testing.T) {
	backend := software.New()
	require.NoError(t, backend.Initialize("placeholder-test", 8, 8))
	shaders := newTestShaders(backend)
	shaders.missing[COMPOSITE_SHADER_NAME] = true

	_, err := NewPlaceholderStage(backend, shaders)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "composite.frag")
}
