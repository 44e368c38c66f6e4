package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cartofx.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []string{"1", "2", "3"}, cfg.SortedKeys())
	assert.Equal(t, DEFAULT_FADE_SPEED, cfg.Fade.Speed)
	require.Len(t, cfg.Layers, 3)
	assert.Equal(t, "fxaa", cfg.Layers[0].Kind)
	assert.True(t, cfg.Layers[0].IsActive())
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
[window]
width = 800

[log]
level = "debug"

[[layers]]
kind = "bloom"
active = false
[layers.params]
intensity = 3.5

[[layers]]
kind = "uv"

[keys]
"b" = "bloom"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 800, cfg.Window.Width)
	assert.Equal(t, 720, cfg.Window.Height)
	assert.Equal(t, "debug", cfg.Log.Level)
	require.Len(t, cfg.Layers, 2)
	assert.False(t, cfg.Layers[0].IsActive())
	assert.Equal(t, 3.5, cfg.Layers[0].Params["intensity"])
	assert.Equal(t, map[string]string{"b": "bloom"}, cfg.Keys)
	assert.Equal(t, "shaders", cfg.Shaders.Dir)
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown kind", "[[layers]]\nkind = \"ssao\"\n"},
		{"unknown param", "[[layers]]\nkind = \"dof\"\n[layers.params]\naperture = 1.0\n"},
		{"param on kind without params", "[[layers]]\nkind = \"uv\"\n[layers.params]\nx = 1.0\n"},
		{"unknown key", "[keys]\n\"hyper\" = \"fxaa\"\n"},
		{"unknown key target", "[keys]\n\"4\" = \"ssao\"\n"},
		{"unknown field", "[window]\ndepth = 3\n"},
		{"negative size", "[window]\nwidth = -1\n"},
		{"unknown backend", "[renderer]\nbackend = \"metal\"\n"},
		{"syntax", "[window\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestSetLayerParam(t *testing.T) {
	cfg := Default()
	cfg.SetLayerParam("FXAA", "search_steps", 12)
	cfg.SetLayerParam("ssao", "radius", 1)
	assert.Equal(t, 12.0, cfg.Layers[0].Params["search_steps"])
	assert.Nil(t, cfg.Layers[1].Params)
	require.NoError(t, cfg.Validate())
}

func TestExampleConfigLoads(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "cartofx.example.toml"))
	require.NoError(t, err)
	require.Len(t, cfg.Layers, 3)
	assert.InDelta(t, 0.986, cfg.Layers[1].Params["focus_range"], 1e-9)
	assert.Equal(t, "vulkan", cfg.Renderer.Backend)
	assert.Equal(t, 1280, cfg.Window.Width)
}
