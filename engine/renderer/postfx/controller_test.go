package postfx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/cartofx/engine/core"
)

func TestControllerAppliesAtFrameStart(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	layers := pushAll(t, p, EFFECT_KIND_FXAA, EFFECT_KIND_DOF, EFFECT_KIND_BLOOM)

	c := NewController(0)
	c.BindKey(core.KEY_1, EFFECT_KIND_FXAA)
	c.BindKey(core.KEY_2, EFFECT_KIND_DOF)
	c.BindKey(core.KEY_3, EFFECT_KIND_BLOOM)

	assert.True(t, c.OnKeyPressed(core.KEY_2))
	assert.False(t, c.OnKeyPressed(core.KEY_9))
	require.NoError(t, c.RequestResize(100, 50))

	// nothing changes until the queue is applied
	assert.True(t, layers[1].GetActive())
	assert.False(t, p.Pool().IsAllocated())
	assert.Equal(t, 2, c.Pending())

	assert.Equal(t, 2, c.Apply(p))
	assert.False(t, layers[1].GetActive())
	assert.Same(t, layers[0].Pass().Output(), layers[2].Pass().Input())
	w, h := p.Pool().Size()
	assert.Equal(t, uint32(100), w)
	assert.Equal(t, uint32(50), h)
	assert.Equal(t, 0, c.Pending())
	requireContinuity(t, p)
}

func TestControllerCoalescesResizes(t *testing.T) {
	p, backend, _ := newTestPipeline(t)
	c := NewController(8)
	require.NoError(t, c.RequestResize(10, 10))
	require.NoError(t, c.RequestResize(0, 0))
	require.NoError(t, c.RequestResize(30, 20))

	assert.Equal(t, 1, c.Apply(p))
	w, h := p.Pool().Size()
	assert.Equal(t, uint32(30), w)
	assert.Equal(t, uint32(20), h)
	assert.Equal(t, uint64(4), backend.Stats().Allocations)
}

func TestControllerToggleTwiceRestores(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	layers := pushAll(t, p, EFFECT_KIND_FXAA, EFFECT_KIND_BLOOM)
	c := NewController(4)

	require.NoError(t, c.RequestToggle(EFFECT_KIND_BLOOM))
	require.NoError(t, c.RequestToggle(EFFECT_KIND_BLOOM))
	c.Apply(p)
	assert.True(t, layers[1].GetActive())

	require.NoError(t, c.RequestSetActive(EFFECT_KIND_FXAA, false))
	require.NoError(t, c.RequestSetActive(EFFECT_KIND_FXAA, false))
	c.Apply(p)
	assert.False(t, layers[0].GetActive())
	assert.Same(t, p.Pool().Color(), layers[1].Pass().Input())
}

func TestControllerSkipsMissingLayer(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	c := NewController(4)
	require.NoError(t, c.RequestToggle(EFFECT_KIND_UV))
	assert.Equal(t, 0, c.Apply(p))
}

func TestControllerQueueFull(t *testing.T) {
	c := NewController(2)
	require.NoError(t, c.RequestToggle(EFFECT_KIND_FXAA))
	require.NoError(t, c.RequestToggle(EFFECT_KIND_DOF))
	assert.ErrorIs(t, c.RequestToggle(EFFECT_KIND_BLOOM), core.ErrQueueFull)
}

func TestControllerEvents(t *testing.T) {
	require.True(t, core.EventInitialize())
	t.Cleanup(func() { _ = core.EventShutdown() })

	p, _, shaders := newTestPipeline(t)
	fxaa := pushAll(t, p, EFFECT_KIND_FXAA)[0]

	c := NewController(8)
	c.BindKey(core.KEY_1, EFFECT_KIND_FXAA)
	require.True(t, c.Register())
	defer c.Unregister()

	var key core.EventContext
	key.Data.U16[0] = uint16(core.KEY_1)
	core.EventFire(core.EVENT_CODE_KEY_PRESSED, nil, key)

	var resize core.EventContext
	resize.Data.U32[0], resize.Data.U32[1] = 64, 48
	core.EventFire(core.EVENT_CODE_RESIZED, nil, resize)

	var changed core.EventContext
	changed.Data.C[0] = "fxaa"
	core.EventFire(core.EVENT_CODE_SHADER_CHANGED, nil, changed)

	assert.Equal(t, 3, c.Apply(p))
	assert.False(t, fxaa.GetActive())
	assert.True(t, p.Pool().IsAllocated())
	assert.Equal(t, []string{"fxaa"}, shaders.reloads)
}

// loadingTarget is a pipeline whose layers have not been pushed yet.
type loadingTarget struct {
	*Pipeline
	loaded bool
}

func (l *loadingTarget) LayersPending() bool {
	return !l.loaded
}

func TestControllerKeepsTogglesWhileLayersPending(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	target := &loadingTarget{Pipeline: p}

	c := NewController(8)
	c.BindKey(core.KEY_2, EFFECT_KIND_DOF)
	require.True(t, c.OnKeyPressed(core.KEY_2))
	require.NoError(t, c.RequestResize(20, 10))

	// the resize goes through, the toggle waits
	assert.Equal(t, 1, c.Apply(target))
	assert.True(t, p.Pool().IsAllocated())
	assert.Equal(t, 1, c.Pending())
	assert.Equal(t, 0, c.Apply(target))
	assert.Equal(t, 1, c.Pending())

	layers := pushAll(t, p, EFFECT_KIND_FXAA, EFFECT_KIND_DOF)
	target.loaded = true
	assert.Equal(t, 1, c.Apply(target))
	assert.False(t, layers[1].GetActive())
	assert.Equal(t, 0, c.Pending())
	requireContinuity(t, p)
}

func TestControllerDeferredTogglesKeepOrder(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	target := &loadingTarget{Pipeline: p}
	c := NewController(8)

	require.NoError(t, c.RequestToggle(EFFECT_KIND_BLOOM))
	require.NoError(t, c.RequestSetActive(EFFECT_KIND_BLOOM, true))
	require.NoError(t, c.RequestToggle(EFFECT_KIND_BLOOM))
	c.Apply(target)
	assert.Equal(t, 3, c.Pending())

	bloom := pushAll(t, p, EFFECT_KIND_BLOOM)[0]
	target.loaded = true
	assert.Equal(t, 3, c.Apply(target))
	assert.False(t, bloom.GetActive())
}
