package assets

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/cartofx/engine/core"
	"github.com/spaghettifunk/cartofx/engine/renderer/metadata"
)

func TestLoadShaderSource(t *testing.T) {
	am := NewAssetManager(fstest.MapFS{
		"fxaa.frag.wgsl": {Data: []byte("// fxaa")},
	})
	defer am.Shutdown()

	res, err := am.LoadAsset("fxaa.frag", metadata.ResourceTypeShader, nil)
	require.NoError(t, err)
	assert.Equal(t, "// fxaa", res.Data)
	assert.Equal(t, uint64(7), res.DataSize)
	_, ok := am.Loaded("fxaa.frag.wgsl")
	assert.True(t, ok)

	_, err = am.LoadAsset("dof.frag", metadata.ResourceTypeShader, nil)
	assert.ErrorIs(t, err, core.ErrShaderNotFound)

	_, err = am.LoadAsset("x", metadata.ResourceTypeNone, nil)
	assert.Error(t, err)
}

func TestLoadImage(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	img.Set(0, 1, color.NRGBA{B: 255, A: 255})
	path := filepath.Join(t.TempDir(), "scene.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	am := NewAssetManager(fstest.MapFS{})
	res, err := am.LoadAsset(path, metadata.ResourceTypeImage, &metadata.ImageResourceParams{FlipY: true})
	require.NoError(t, err)

	data := res.Data.(*metadata.ImageResourceData)
	assert.Equal(t, "png", data.Format)
	assert.Equal(t, color.RGBA{B: 255, A: 255}, data.Image.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{R: 255, A: 255}, data.Image.RGBAAt(0, 1))

	_, err = am.LoadAsset(filepath.Join(t.TempDir(), "missing.png"), metadata.ResourceTypeImage, nil)
	assert.Error(t, err)
}

func TestProgramName(t *testing.T) {
	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"shaders/fxaa.frag.wgsl", "fxaa", true},
		{"bloom.frag.wgsl", "bloom", true},
		{"shaders/passthrough.vert.wgsl", "", false},
		{"shaders/readme.md", "", false},
		{".frag.wgsl", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := ProgramName(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsImage(t *testing.T) {
	assert.True(t, IsImage("map.TGA"))
	assert.True(t, IsImage("map.webp"))
	assert.False(t, IsImage("fxaa.frag.wgsl"))
}

func TestWatchFiresShaderChanged(t *testing.T) {
	require.True(t, core.EventInitialize())
	t.Cleanup(func() { _ = core.EventShutdown() })

	dir := t.TempDir()
	changed := make(chan string, 8)
	core.EventRegister(core.EVENT_CODE_SHADER_CHANGED, t, func(code core.SystemEventCode, sender, inst interface{}, data core.EventContext) bool {
		changed <- data.Data.C[0]
		return true
	})

	am := NewAssetManager(os.DirFS(dir))
	require.NoError(t, am.Watch(dir))
	defer am.Shutdown()
	assert.Error(t, am.Watch(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dof.frag.wgsl"), []byte("// dof"), 0o644))

	select {
	case name := <-changed:
		assert.Equal(t, "dof", name)
	case <-time.After(5 * time.Second):
		t.Fatal("no shader change event")
	}
}
