package postfx

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/cartofx/engine/core"
)

func TestEmptyPipelineShowsRawColor(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	assert.Empty(t, p.Layers())
	assert.Same(t, p.Pool().Color(), p.FinalOutput())
	assert.Same(t, p.Pool().Color(), p.Composite().Source())
}

func TestRenderBeforeResizeIsNoop(t *testing.T) {
	p, backend, _ := newTestPipeline(t)
	pushAll(t, p, EFFECT_KIND_FXAA)
	assert.False(t, p.Pool().IsAllocated())
	assert.NoError(t, p.Render(nil))
	assert.Equal(t, uint64(0), backend.Stats().DrawCalls)
}

func TestPushLayerWiring(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	layers := pushAll(t, p, EFFECT_KIND_FXAA, EFFECT_KIND_DOF, EFFECT_KIND_BLOOM)

	for i, e := range layers {
		assert.Equal(t, uint32(i+1), e.Pass().Order())
		assert.True(t, e.GetActive())
	}
	assert.Same(t, p.Pool().Color(), layers[0].Pass().Input())
	assert.Same(t, p.Pool().PingPong(0), layers[0].Pass().Output())
	assert.Same(t, p.Pool().PingPong(1), layers[1].Pass().Output())
	assert.Same(t, p.Pool().PingPong(0), layers[2].Pass().Output())
	requireContinuity(t, p)
}

// A lone FXAA pass reads raw color and follows the pool size.
func TestSingleFXAAResize(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	fxaa := pushAll(t, p, EFFECT_KIND_FXAA)[0]

	require.NoError(t, p.Resize(1920, 1080))

	out := fxaa.Pass().Output()
	assert.Equal(t, uint32(1920), out.Width)
	assert.Equal(t, uint32(1080), out.Height)
	assert.Same(t, p.Pool().Color(), fxaa.Pass().Input())

	rx, _ := fxaa.Pass().Uniform(UNIFORM_RESOLUTION_X)
	ry, _ := fxaa.Pass().Uniform(UNIFORM_RESOLUTION_Y)
	assert.Equal(t, float32(1920), rx)
	assert.Equal(t, float32(1080), ry)
}

func TestBloomFeedsComposite(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	layers := pushAll(t, p, EFFECT_KIND_FXAA, EFFECT_KIND_DOF, EFFECT_KIND_BLOOM)
	assert.Same(t, layers[2].Pass().Output(), p.Composite().Source())
}

// With DOF off, Bloom reads FXAA's output directly.
func TestInactiveMiddlePassIsBypassed(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	layers := pushAll(t, p, EFFECT_KIND_FXAA, EFFECT_KIND_DOF, EFFECT_KIND_BLOOM)
	fxaa, dof, bloom := layers[0], layers[1], layers[2]

	dof.SetActive(false)

	assert.Same(t, fxaa.Pass().Output(), bloom.Pass().Input())
	assert.Same(t, bloom.Pass().Output(), p.Composite().Source())
	assert.Same(t, fxaa.Pass().Output(), dof.Pass().EffectiveOutput())
	requireContinuity(t, p)
}

func TestAllInactiveFallsBackToRawColor(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	for _, e := range pushAll(t, p, EFFECT_KIND_FXAA, EFFECT_KIND_DOF) {
		e.SetActive(false)
	}
	assert.Same(t, p.Pool().Color(), p.Composite().Source())
	requireContinuity(t, p)
}

func TestContinuityUnderEveryMask(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	layers := pushAll(t, p, EFFECT_KIND_FXAA, EFFECT_KIND_DOF, EFFECT_KIND_BLOOM, EFFECT_KIND_PASSTHROUGH)

	for mask := 0; mask < 1<<len(layers); mask++ {
		for i, e := range layers {
			e.SetActive(mask&(1<<i) != 0)
		}
		requireContinuity(t, p)
	}
}

func TestGetLayerMiss(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	pushAll(t, p, EFFECT_KIND_FXAA)

	e, ok := p.GetLayer(EFFECT_KIND_UV)
	assert.False(t, ok)
	assert.Nil(t, e)
}

func TestGetLayerReturnsMostRecentPush(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	layers := pushAll(t, p, EFFECT_KIND_FXAA, EFFECT_KIND_DOF, EFFECT_KIND_FXAA)

	e, ok := p.GetLayer(EFFECT_KIND_FXAA)
	require.True(t, ok)
	assert.Same(t, layers[2].Pass(), e.Pass())

	fxaa, ok := GetLayerAs[*FXAA](p, EFFECT_KIND_FXAA)
	require.True(t, ok)
	assert.Equal(t, DefaultFXAAParameters(), fxaa.Parameters())

	_, ok = GetLayerAs[*Bloom](p, EFFECT_KIND_FXAA)
	assert.False(t, ok)
	_, ok = GetLayerAs[*Bloom](p, EFFECT_KIND_BLOOM)
	assert.False(t, ok)
}

func TestResizeKeepsIdentities(t *testing.T) {
	p, backend, _ := newTestPipeline(t)
	layers := pushAll(t, p, EFFECT_KIND_FXAA, EFFECT_KIND_BLOOM)

	require.NoError(t, p.Resize(64, 32))
	targets := p.Pool().Targets()
	inputs := []any{layers[0].Pass().Input(), layers[1].Pass().Input()}
	allocs := backend.Stats().Allocations
	assert.Equal(t, uint64(4), allocs)

	require.NoError(t, p.Resize(128, 96))
	for i, rt := range p.Pool().Targets() {
		assert.Same(t, targets[i], rt)
		assert.Equal(t, uint32(128), rt.Width)
		assert.Equal(t, uint32(96), rt.Height)
		assert.Equal(t, uint32(2), rt.Generation)
	}
	assert.Same(t, inputs[0], layers[0].Pass().Input())
	assert.Same(t, inputs[1], layers[1].Pass().Input())
	for _, e := range layers {
		w, h := e.Pass().Viewport()
		assert.Equal(t, uint32(128), w)
		assert.Equal(t, uint32(96), h)
	}

	// repeating the size reallocates nothing
	require.NoError(t, p.Resize(128, 96))
	assert.Equal(t, uint64(8), backend.Stats().Allocations)
	requireContinuity(t, p)
}

func TestDegenerateResizeIsIgnored(t *testing.T) {
	tests := []struct {
		name string
		w, h int
	}{
		{"zero width", 0, 100},
		{"zero height", 100, 0},
		{"negative", -5, -5},
		{"both zero", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _, _ := newTestPipeline(t)
			pushAll(t, p, EFFECT_KIND_FXAA)

			require.NoError(t, p.Resize(tt.w, tt.h))
			assert.False(t, p.Pool().IsAllocated())

			require.NoError(t, p.Resize(40, 30))
			require.NoError(t, p.Resize(tt.w, tt.h))
			w, h := p.Pool().Size()
			assert.Equal(t, uint32(40), w)
			assert.Equal(t, uint32(30), h)
			for _, rt := range p.Pool().Targets() {
				assert.Equal(t, uint32(1), rt.Generation)
			}
		})
	}
}

func TestPushAfterResizeGetsViewport(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	require.NoError(t, p.Resize(320, 200))
	bloom := pushAll(t, p, EFFECT_KIND_BLOOM)[0]

	w, h := bloom.Pass().Viewport()
	assert.Equal(t, uint32(320), w)
	assert.Equal(t, uint32(200), h)
	rx, _ := bloom.Pass().Uniform(UNIFORM_RESOLUTION_X)
	assert.Equal(t, float32(320), rx)
}

func TestShaderLoadFailure(t *testing.T) {
	p, _, shaders := newTestPipeline(t)
	pushAll(t, p, EFFECT_KIND_FXAA)
	shaders.missing["dof"] = true

	e, err := p.PushLayer(EFFECT_KIND_DOF)
	require.Error(t, err)
	assert.Nil(t, e)
	assert.Contains(t, err.Error(), "dof.frag")

	var sle *core.ShaderLoadError
	require.True(t, errors.As(err, &sle))
	assert.Equal(t, "dof.frag", sle.Shader)

	// the chain is untouched and still accepts passes
	assert.Len(t, p.Layers(), 1)
	_, ok := p.GetLayer(EFFECT_KIND_DOF)
	assert.False(t, ok)

	bloom, err := p.PushLayer(EFFECT_KIND_BLOOM)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), bloom.Pass().Order())
	requireContinuity(t, p)
}

func TestShaderMissingUniform(t *testing.T) {
	p, _, shaders := newTestPipeline(t)
	shaders.stripped["bloom"] = BLOOM_PARAM_KNEE

	_, err := p.PushLayer(EFFECT_KIND_BLOOM)
	require.Error(t, err)
	var sle *core.ShaderLoadError
	require.ErrorAs(t, err, &sle)
	assert.Equal(t, "bloom.frag", sle.Shader)
	assert.Contains(t, err.Error(), BLOOM_PARAM_KNEE)
	assert.Empty(t, p.Layers())
}

func TestCompositeShaderRequired(t *testing.T) {
	p, backend, shaders := newTestPipeline(t)
	_ = p
	shaders.missing[COMPOSITE_SHADER_NAME] = true
	delete(shaders.cache, COMPOSITE_SHADER_NAME)

	_, err := NewPipeline(backend, shaders)
	var sle *core.ShaderLoadError
	require.ErrorAs(t, err, &sle)
	assert.Equal(t, "composite.frag", sle.Shader)
}

func TestIdentityPassthrough(t *testing.T) {
	tests := []struct {
		name  string
		kinds []EffectKind
		off   []int
	}{
		{"no passes", nil, nil},
		{"passthrough chain", []EffectKind{EFFECT_KIND_PASSTHROUGH, EFFECT_KIND_PASSTHROUGH, EFFECT_KIND_PASSTHROUGH}, nil},
		{"all passes inactive", []EffectKind{EFFECT_KIND_FXAA, EFFECT_KIND_DOF, EFFECT_KIND_BLOOM}, []int{0, 1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, backend, _ := newTestPipeline(t)
			layers := pushAll(t, p, tt.kinds...)
			for _, i := range tt.off {
				layers[i].SetActive(false)
			}
			require.NoError(t, p.Resize(6, 4))
			scene, depth := sceneImage(6, 4)
			require.NoError(t, p.SubmitScene(scene, depth))

			img := renderFrame(t, p, backend)
			assert.Equal(t, scene.Pix, img.Pix)
		})
	}
}

func TestBypassIsPixelIdentical(t *testing.T) {
	render := func(withDOF, toggle bool) []uint8 {
		p, backend, _ := newTestPipeline(t)
		kinds := []EffectKind{EFFECT_KIND_FXAA}
		if withDOF {
			kinds = append(kinds, EFFECT_KIND_DOF)
		}
		kinds = append(kinds, EFFECT_KIND_BLOOM)
		layers := pushAll(t, p, kinds...)
		if toggle {
			layers[1].SetActive(false)
		}
		require.NoError(t, p.Resize(12, 9))
		scene, depth := sceneImage(12, 9)
		require.NoError(t, p.SubmitScene(scene, depth))
		return renderFrame(t, p, backend).Pix
	}

	without := render(false, false)
	bypassed := render(true, true)
	assert.Equal(t, without, bypassed)
}

func TestToggleRoundTripIsPixelIdentical(t *testing.T) {
	p, backend, _ := newTestPipeline(t)
	layers := pushAll(t, p, EFFECT_KIND_FXAA, EFFECT_KIND_DOF, EFFECT_KIND_BLOOM)
	require.NoError(t, p.Resize(10, 10))
	scene, depth := sceneImage(10, 10)
	require.NoError(t, p.SubmitScene(scene, depth))

	before := renderFrame(t, p, backend).Pix
	wiring := [][2]any{}
	for _, e := range layers {
		wiring = append(wiring, [2]any{e.Pass().Input(), e.Pass().Output()})
	}

	layers[1].SetActive(false)
	layers[1].SetActive(false)
	layers[1].SetActive(true)

	for i, e := range layers {
		assert.Same(t, wiring[i][0], e.Pass().Input())
		assert.Same(t, wiring[i][1], e.Pass().Output())
	}
	assert.Equal(t, before, renderFrame(t, p, backend).Pix)
}

func TestOnlyActivePassesDraw(t *testing.T) {
	p, backend, _ := newTestPipeline(t)
	layers := pushAll(t, p, EFFECT_KIND_FXAA, EFFECT_KIND_DOF, EFFECT_KIND_BLOOM)
	layers[0].SetActive(false)
	require.NoError(t, p.Resize(4, 4))
	scene, _ := sceneImage(4, 4)
	require.NoError(t, p.SubmitScene(scene, nil))

	renderFrame(t, p, backend)
	// two effects plus the composite
	assert.Equal(t, uint64(3), backend.Stats().FrameDrawCalls)
}

func TestSubmitSceneSizeMismatch(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	require.NoError(t, p.Resize(4, 4))
	scene, depth := sceneImage(5, 4)
	assert.Error(t, p.SubmitScene(scene, nil))

	scene, depth = sceneImage(4, 4)
	assert.Error(t, p.SubmitScene(scene, depth[:3]))
	assert.NoError(t, p.SubmitScene(scene, depth))
}

func TestReloadShader(t *testing.T) {
	p, _, shaders := newTestPipeline(t)
	pushAll(t, p, EFFECT_KIND_FXAA)

	require.NoError(t, p.ReloadShader("fxaa"))
	require.NoError(t, p.ReloadShader("composite"))
	require.NoError(t, p.ReloadShader("bloom"))
	require.NoError(t, p.ReloadShader("not-a-shader"))
	assert.Equal(t, []string{"fxaa", "composite"}, shaders.reloads)
}
