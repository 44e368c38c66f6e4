package systems

import (
	"context"
	"io/fs"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/cartofx/engine/assets"
	"github.com/spaghettifunk/cartofx/engine/config"
	"github.com/spaghettifunk/cartofx/engine/core"
	"github.com/spaghettifunk/cartofx/engine/renderer/metadata"
	"github.com/spaghettifunk/cartofx/engine/renderer/postfx"
	"github.com/spaghettifunk/cartofx/engine/renderer/software"
	"github.com/spaghettifunk/cartofx/engine/scene"
	"github.com/spaghettifunk/cartofx/shaders"
)

func newTestRenderer(t *testing.T, sources fs.FS, cfg *RendererSystemConfig) (*RendererSystem, *software.Backend) {
	t.Helper()
	backend := software.New()
	ss, err := NewShaderSystem(nil, assets.NewAssetManager(sources), backend)
	require.NoError(t, err)

	if cfg == nil {
		def := config.Default()
		cfg = &RendererSystemConfig{
			AppName:  "renderer-test",
			Width:    32,
			Height:   24,
			Layers:   def.Layers,
			Keys:     def.Keys,
			SkipFade: true,
		}
	}
	rs, err := NewRendererSystem(cfg, backend, ss)
	require.NoError(t, err)
	require.NoError(t, rs.Initialize())
	t.Cleanup(func() {
		_ = rs.Shutdown()
		_ = ss.Shutdown()
	})
	return rs, backend
}

func loadTestScene(t *testing.T, rs *RendererSystem) {
	t.Helper()
	js, err := NewJobSystem(1, 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = js.Shutdown() })

	require.NoError(t, rs.LoadScene(js, scene.Options{Seed: 7}))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, rs.WaitScene(ctx))
}

func TestRendererShowsPlaceholderUntilReady(t *testing.T) {
	rs, backend := newTestRenderer(t, shaders.FS, nil)

	frame := &metadata.FrameContext{DeltaTime: 0.016, Elapsed: 0.5}
	require.NoError(t, rs.DrawFrame(frame))

	assert.False(t, rs.Ready())
	assert.True(t, rs.LayersPending())
	assert.Nil(t, rs.Pipeline(), "no pipeline before the scene is ready")
	assert.Equal(t, uint64(1), backend.Stats().FrameDrawCalls, "composite only")
	assert.Equal(t, float32(1), frame.FadeAlpha)
	assert.Equal(t, uint64(1), frame.FrameNumber)
	assert.Equal(t, uint32(32), frame.Width)
	assert.Equal(t, uint32(24), frame.Height)

	img, err := rs.Display()
	require.NoError(t, err)
	assert.Equal(t, 32, img.Rect.Dx())
	assert.Equal(t, 24, img.Rect.Dy())

	// resizes while loading reach the pipeline once it exists
	require.NoError(t, rs.Resize(40, 30))
	loadTestScene(t, rs)
	require.NotNil(t, rs.Pipeline())
	w, h := rs.Pipeline().Pool().Size()
	assert.Equal(t, uint32(40), w)
	assert.Equal(t, uint32(30), h)
}

func TestRendererBuildsConfiguredLayers(t *testing.T) {
	rs, backend := newTestRenderer(t, shaders.FS, nil)
	loadTestScene(t, rs)

	require.True(t, rs.Ready())
	layers := rs.Pipeline().Layers()
	require.Len(t, layers, 3)
	assert.Equal(t, postfx.EFFECT_KIND_FXAA, layers[0].Kind())
	assert.Equal(t, postfx.EFFECT_KIND_DOF, layers[1].Kind())
	assert.Equal(t, postfx.EFFECT_KIND_BLOOM, layers[2].Kind())
	assert.Same(t, layers[2].Pass().Output(), rs.Pipeline().FinalOutput())

	frame := &metadata.FrameContext{DeltaTime: 0.016}
	require.NoError(t, rs.DrawFrame(frame))
	assert.Equal(t, uint64(4), backend.Stats().FrameDrawCalls)
	assert.Equal(t, float32(1), frame.FadeAlpha)
}

func TestRendererAppliesLayerParams(t *testing.T) {
	active := false
	cfg := &RendererSystemConfig{
		Width:  16,
		Height: 16,
		Layers: []config.LayerConfig{
			{Kind: "bloom", Params: map[string]float64{postfx.BLOOM_PARAM_INTENSITY: 4}},
			{Kind: "dof", Active: &active},
		},
		SkipFade: true,
	}
	rs, _ := newTestRenderer(t, shaders.FS, cfg)
	loadTestScene(t, rs)

	bloom, ok := postfx.GetLayerAs[*postfx.Bloom](rs.Pipeline(), postfx.EFFECT_KIND_BLOOM)
	require.True(t, ok)
	assert.InDelta(t, 4.0, bloom.Parameters().Intensity, 1e-9)

	dof, ok := rs.GetLayer(postfx.EFFECT_KIND_DOF)
	require.True(t, ok)
	assert.False(t, dof.GetActive())
	assert.Same(t, bloom.Pass().Output(), rs.Pipeline().FinalOutput())
}

func TestRendererSkipsLayersThatFailToBuild(t *testing.T) {
	sources := bundledSources(t)
	delete(sources, "dof.frag.wgsl")
	rs, backend := newTestRenderer(t, sources, nil)
	loadTestScene(t, rs)

	_, ok := rs.GetLayer(postfx.EFFECT_KIND_DOF)
	assert.False(t, ok)
	require.Len(t, rs.Pipeline().Layers(), 2)

	require.NoError(t, rs.DrawFrame(&metadata.FrameContext{DeltaTime: 0.016}))
	assert.Equal(t, uint64(3), backend.Stats().FrameDrawCalls)
}

func TestRendererKeyToggle(t *testing.T) {
	require.True(t, core.EventInitialize())
	t.Cleanup(func() { _ = core.EventShutdown() })

	rs, backend := newTestRenderer(t, shaders.FS, nil)
	loadTestScene(t, rs)

	key, ok := core.KeyCodeFromName("2")
	require.True(t, ok)
	ctx := core.EventContext{}
	ctx.Data.U16[0] = uint16(key)
	core.EventFire(core.EVENT_CODE_KEY_PRESSED, nil, ctx)

	// queued, not applied yet
	dof, _ := rs.GetLayer(postfx.EFFECT_KIND_DOF)
	assert.True(t, dof.GetActive())

	require.NoError(t, rs.DrawFrame(&metadata.FrameContext{DeltaTime: 0.016}))
	assert.False(t, dof.GetActive())
	assert.Equal(t, uint64(3), backend.Stats().FrameDrawCalls)

	fxaa, _ := rs.GetLayer(postfx.EFFECT_KIND_FXAA)
	bloom, _ := rs.GetLayer(postfx.EFFECT_KIND_BLOOM)
	assert.Same(t, fxaa.Pass().Output(), bloom.Pass().Input())
}

func TestRendererKeyToggleWhileLoading(t *testing.T) {
	require.True(t, core.EventInitialize())
	t.Cleanup(func() { _ = core.EventShutdown() })

	rs, backend := newTestRenderer(t, shaders.FS, nil)

	key, ok := core.KeyCodeFromName("2")
	require.True(t, ok)
	ctx := core.EventContext{}
	ctx.Data.U16[0] = uint16(key)
	core.EventFire(core.EVENT_CODE_KEY_PRESSED, nil, ctx)

	require.NoError(t, rs.DrawFrame(&metadata.FrameContext{DeltaTime: 0.016}))
	assert.Equal(t, 1, rs.Controller.Pending())

	loadTestScene(t, rs)
	require.NoError(t, rs.DrawFrame(&metadata.FrameContext{DeltaTime: 0.016}))
	dof, ok := rs.GetLayer(postfx.EFFECT_KIND_DOF)
	require.True(t, ok)
	assert.False(t, dof.GetActive())
	assert.Equal(t, uint64(3), backend.Stats().FrameDrawCalls)
	assert.Equal(t, 0, rs.Controller.Pending())
}

func TestRendererKeepsPlaceholderWhenSceneFails(t *testing.T) {
	rs, backend := newTestRenderer(t, shaders.FS, nil)
	js, err := NewJobSystem(1, 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = js.Shutdown() })

	require.NoError(t, rs.LoadScene(js, scene.Options{Path: "missing.png"}))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.Error(t, rs.WaitScene(ctx))
	assert.False(t, rs.Ready())
	assert.False(t, rs.LayersPending())

	// no layers will ever exist, so a toggle is dropped rather than kept
	require.NoError(t, rs.Controller.RequestToggle(postfx.EFFECT_KIND_DOF))
	require.NoError(t, rs.DrawFrame(&metadata.FrameContext{DeltaTime: 0.016}))
	assert.Equal(t, 0, rs.Controller.Pending())
	assert.Nil(t, rs.Pipeline())
	assert.Equal(t, uint64(1), backend.Stats().FrameDrawCalls)
}

// resizeCounter counts the resizes that reach the backend.
type resizeCounter struct {
	*software.Backend
	resized int
}

func (b *resizeCounter) Resized(width, height uint32) error {
	b.resized++
	return b.Backend.Resized(width, height)
}

func TestRendererIgnoresRepeatedResize(t *testing.T) {
	backend := &resizeCounter{Backend: software.New()}
	ss, err := NewShaderSystem(nil, assets.NewAssetManager(shaders.FS), backend)
	require.NoError(t, err)
	rs, err := NewRendererSystem(&RendererSystemConfig{Width: 16, Height: 16, SkipFade: true}, backend, ss)
	require.NoError(t, err)
	require.NoError(t, rs.Initialize())
	t.Cleanup(func() {
		_ = rs.Shutdown()
		_ = ss.Shutdown()
	})

	require.NoError(t, rs.Resize(16, 16))
	assert.Equal(t, 0, backend.resized)

	require.NoError(t, rs.Resize(20, 16))
	require.NoError(t, rs.Resize(20, 16))
	assert.Equal(t, 1, backend.resized)
}

func TestRendererResize(t *testing.T) {
	require.True(t, core.EventInitialize())
	t.Cleanup(func() { _ = core.EventShutdown() })

	rs, _ := newTestRenderer(t, shaders.FS, nil)
	loadTestScene(t, rs)

	ctx := core.EventContext{}
	ctx.Data.U32[0] = 40
	ctx.Data.U32[1] = 30
	core.EventFire(core.EVENT_CODE_RESIZED, nil, ctx)
	ctx.Data.U32[0] = 48
	ctx.Data.U32[1] = 36
	core.EventFire(core.EVENT_CODE_RESIZED, nil, ctx)

	frame := &metadata.FrameContext{DeltaTime: 0.016}
	require.NoError(t, rs.DrawFrame(frame))
	assert.Equal(t, uint32(48), frame.Width)
	assert.Equal(t, uint32(36), frame.Height)
	for _, e := range rs.Pipeline().Layers() {
		w, h := e.Pass().Viewport()
		assert.Equal(t, uint32(48), w)
		assert.Equal(t, uint32(36), h)
	}

	img, err := rs.Display()
	require.NoError(t, err)
	assert.Equal(t, 48, img.Rect.Dx())

	require.NoError(t, rs.Resize(0, 10))
	require.NoError(t, rs.Resize(-4, -4))
	w, h := rs.Pipeline().Pool().Size()
	assert.Equal(t, uint32(48), w)
	assert.Equal(t, uint32(36), h)
}

func TestRendererFadesSceneIn(t *testing.T) {
	def := config.Default()
	cfg := &RendererSystemConfig{Width: 16, Height: 16, Layers: def.Layers, FadeSpeed: 2}
	rs, _ := newTestRenderer(t, shaders.FS, cfg)
	loadTestScene(t, rs)

	frame := &metadata.FrameContext{DeltaTime: 0.25}
	require.NoError(t, rs.DrawFrame(frame))
	assert.InDelta(t, 0.5, frame.FadeAlpha, 1e-6)
	require.NoError(t, rs.DrawFrame(frame))
	assert.InDelta(t, 1.0, frame.FadeAlpha, 1e-6)
	assert.True(t, rs.Fader().Done())
}

func TestRendererAnnouncesReadyScene(t *testing.T) {
	require.True(t, core.EventInitialize())
	t.Cleanup(func() { _ = core.EventShutdown() })

	rs, _ := newTestRenderer(t, shaders.FS, nil)

	var fired int
	var readyWhenFired bool
	listener := new(int)
	require.True(t, core.EventRegister(core.EVENT_CODE_SCENE_READY, listener,
		func(code core.SystemEventCode, sender, listenerInst interface{}, data core.EventContext) bool {
			fired++
			readyWhenFired = rs.Ready()
			return false
		}))
	t.Cleanup(func() { core.EventUnregister(core.EVENT_CODE_SCENE_READY, listener) })

	loadTestScene(t, rs)
	assert.Equal(t, 1, fired)
	assert.True(t, readyWhenFired)

	require.NoError(t, rs.DrawFrame(&metadata.FrameContext{DeltaTime: 0.016}))
	assert.Equal(t, 1, fired)
}
