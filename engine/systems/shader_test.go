package systems

import (
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/cartofx/engine/assets"
	"github.com/spaghettifunk/cartofx/engine/core"
	"github.com/spaghettifunk/cartofx/engine/renderer/metadata"
	"github.com/spaghettifunk/cartofx/engine/renderer/software"
	"github.com/spaghettifunk/cartofx/shaders"
)

func bundledSources(t *testing.T) fstest.MapFS {
	t.Helper()
	out := fstest.MapFS{}
	entries, err := fs.ReadDir(shaders.FS, ".")
	require.NoError(t, err)
	for _, e := range entries {
		data, err := fs.ReadFile(shaders.FS, e.Name())
		require.NoError(t, err)
		out[e.Name()] = &fstest.MapFile{Data: data}
	}
	return out
}

func newTestShaderSystem(t *testing.T, sources fs.FS) *ShaderSystem {
	t.Helper()
	backend := software.New()
	require.NoError(t, backend.Initialize("shader-test", 4, 4))
	ss, err := NewShaderSystem(nil, assets.NewAssetManager(sources), backend)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Shutdown() })
	return ss
}

func TestShaderSystemAcquire(t *testing.T) {
	ss := newTestShaderSystem(t, shaders.FS)

	fxaa, err := ss.Acquire("fxaa")
	require.NoError(t, err)
	assert.Equal(t, metadata.SHADER_STATE_INITIALIZED, fxaa.State)
	require.Len(t, fxaa.Stages, 2)
	assert.Equal(t, "passthrough.vert", fxaa.Stages[0].FileName)
	assert.Equal(t, "fxaa.frag", fxaa.Stages[1].FileName)
	for _, u := range []string{"resolution_x", "search_steps", "blur_far_distance"} {
		assert.True(t, fxaa.HasUniform(u), u)
	}
	assert.Equal(t, uint32(len(fxaa.Uniforms)*4), fxaa.PushConstantSize)

	again, err := ss.Acquire("fxaa")
	require.NoError(t, err)
	assert.Same(t, fxaa, again)
	assert.Equal(t, []string{"fxaa"}, ss.Names())
}

func TestShaderSystemMissingSource(t *testing.T) {
	sources := bundledSources(t)
	delete(sources, "dof.frag.wgsl")
	ss := newTestShaderSystem(t, sources)

	_, err := ss.Acquire("dof")
	var sle *core.ShaderLoadError
	require.ErrorAs(t, err, &sle)
	assert.Equal(t, "dof.frag", sle.Shader)
	assert.ErrorIs(t, err, core.ErrShaderNotFound)
	assert.Empty(t, ss.Names())
}

func TestShaderSystemInvalidSource(t *testing.T) {
	sources := bundledSources(t)
	sources["bloom.frag.wgsl"] = &fstest.MapFile{Data: []byte("this is not wgsl")}
	ss := newTestShaderSystem(t, sources)

	_, err := ss.Acquire("bloom")
	var sle *core.ShaderLoadError
	require.ErrorAs(t, err, &sle)
	assert.Equal(t, "bloom.frag", sle.Shader)
}

func TestShaderSystemWrongStage(t *testing.T) {
	sources := bundledSources(t)
	sources["vertex.frag.wgsl"] = sources["passthrough.vert.wgsl"]
	ss := newTestShaderSystem(t, sources)

	_, err := ss.Acquire("vertex")
	assert.Error(t, err)
}

func TestShaderSystemReloadKeepsIdentity(t *testing.T) {
	ss := newTestShaderSystem(t, bundledSources(t))

	dof, err := ss.Acquire("dof")
	require.NoError(t, err)
	id := dof.ID

	require.NoError(t, ss.Reload("dof", []string{"max_blur", "focus_range"}))
	assert.Equal(t, id, dof.ID)
	assert.Equal(t, metadata.SHADER_STATE_INITIALIZED, dof.State)
	got, err := ss.Acquire("dof")
	require.NoError(t, err)
	assert.Same(t, dof, got)

	// a rebuilt program missing a uniform the pass needs is rejected
	assert.Error(t, ss.Reload("dof", []string{"aperture"}))
	assert.Equal(t, metadata.SHADER_STATE_INITIALIZED, dof.State)
	assert.NotNil(t, dof.InternalData)

	// unknown programs are ignored
	assert.NoError(t, ss.Reload("bloom", nil))
}
