package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/cartofx/engine/core"
	"github.com/spaghettifunk/cartofx/engine/renderer/postfx"
)

type WindowConfig struct {
	// The application name used in windowing.
	Name string `toml:"name"`
	// Window starting position.
	X int `toml:"x"`
	Y int `toml:"y"`
	// Window starting size.
	Width  int `toml:"width"`
	Height int `toml:"height"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type ShaderConfig struct {
	// Directory holding passthrough.vert.wgsl and the <kind>.frag.wgsl programs.
	Dir       string `toml:"dir"`
	HotReload *bool  `toml:"hot_reload"`
}

type SceneConfig struct {
	// Color image of the scene. Empty selects the procedural map.
	Path string `toml:"path"`
	// Optional grayscale depth image matching Path.
	DepthPath   string `toml:"depth_path"`
	LoadDelayMS int    `toml:"load_delay_ms"`
	Seed        int64  `toml:"seed"`
}

type LayerConfig struct {
	Kind   string             `toml:"kind"`
	Active *bool              `toml:"active"`
	Params map[string]float64 `toml:"params"`
}

// IsActive reports the configured activation, defaulting to on.
func (l LayerConfig) IsActive() bool {
	return l.Active == nil || *l.Active
}

type RendererConfig struct {
	// "vulkan" or "software".
	Backend string `toml:"backend"`
	// Enables the Vulkan validation layers and debug report callback.
	Validation bool `toml:"validation"`
}

type FadeConfig struct {
	Speed float64 `toml:"speed"`
}

type Config struct {
	Window   WindowConfig   `toml:"window"`
	Log      LogConfig      `toml:"log"`
	Renderer RendererConfig `toml:"renderer"`
	Shaders  ShaderConfig   `toml:"shaders"`
	Scene    SceneConfig    `toml:"scene"`
	Layers   []LayerConfig  `toml:"layers"`
	// Key name to effect kind, e.g. "1" = "fxaa".
	Keys map[string]string `toml:"keys"`
	Fade FadeConfig        `toml:"fade"`
}

const DEFAULT_FADE_SPEED = 2.0

// Default reproduces the stock viewer: FXAA, DOF and Bloom on keys 1, 2 and 3.
func Default() *Config {
	hotReload := true
	return &Config{
		Window: WindowConfig{
			Name:   "cartofx",
			X:      100,
			Y:      100,
			Width:  1280,
			Height: 720,
		},
		Log:      LogConfig{Level: "info"},
		Renderer: RendererConfig{Backend: "vulkan"},
		Shaders:  ShaderConfig{Dir: "shaders", HotReload: &hotReload},
		Scene:    SceneConfig{LoadDelayMS: 0, Seed: 1},
		Layers: []LayerConfig{
			{Kind: "fxaa"},
			{Kind: "dof"},
			{Kind: "bloom"},
		},
		Keys: map[string]string{
			"1": "fxaa",
			"2": "dof",
			"3": "bloom",
		},
		Fade: FadeConfig{Speed: DEFAULT_FADE_SPEED},
	}
}

/**
 * @brief Loads a TOML file and merges it over Default(). An empty path returns the defaults.
 * @param path The file to read.
 * @returns The validated configuration or an error naming the offending field.
 */
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		err = fmt.Errorf("failed to read config '%s': %w", path, err)
		core.LogError("%s", err)
		return nil, err
	}
	if err := cfg.merge(data); err != nil {
		err = fmt.Errorf("failed to parse config '%s': %w", path, err)
		core.LogError("%s", err)
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		core.LogError("%s", err)
		return nil, err
	}
	core.LogDebug("configuration loaded from %s", path)
	return cfg, nil
}

func (c *Config) merge(data []byte) error {
	var file Config
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&file); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return fmt.Errorf("line %d column %d: %s", row, col, derr.Error())
		}
		return err
	}

	if file.Window.Name != "" {
		c.Window.Name = file.Window.Name
	}
	if file.Window.X != 0 {
		c.Window.X = file.Window.X
	}
	if file.Window.Y != 0 {
		c.Window.Y = file.Window.Y
	}
	if file.Window.Width != 0 {
		c.Window.Width = file.Window.Width
	}
	if file.Window.Height != 0 {
		c.Window.Height = file.Window.Height
	}
	if file.Log.Level != "" {
		c.Log.Level = file.Log.Level
	}
	if file.Renderer.Backend != "" {
		c.Renderer.Backend = file.Renderer.Backend
	}
	if file.Renderer.Validation {
		c.Renderer.Validation = true
	}
	if file.Shaders.Dir != "" {
		c.Shaders.Dir = file.Shaders.Dir
	}
	if file.Shaders.HotReload != nil {
		c.Shaders.HotReload = file.Shaders.HotReload
	}
	if file.Scene.Path != "" {
		c.Scene.Path = file.Scene.Path
	}
	if file.Scene.DepthPath != "" {
		c.Scene.DepthPath = file.Scene.DepthPath
	}
	if file.Scene.LoadDelayMS != 0 {
		c.Scene.LoadDelayMS = file.Scene.LoadDelayMS
	}
	if file.Scene.Seed != 0 {
		c.Scene.Seed = file.Scene.Seed
	}
	if file.Layers != nil {
		c.Layers = file.Layers
	}
	if file.Keys != nil {
		c.Keys = file.Keys
	}
	if file.Fade.Speed != 0 {
		c.Fade.Speed = file.Fade.Speed
	}
	return nil
}

// Validate checks layer kinds, parameter names, key names and sizes.
func (c *Config) Validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("window size %dx%d: %w", c.Window.Width, c.Window.Height, core.ErrInvalidTargetSize)
	}
	switch c.Renderer.Backend {
	case "vulkan", "software":
	default:
		return fmt.Errorf("renderer backend must be 'vulkan' or 'software', got '%s'", c.Renderer.Backend)
	}
	if c.Fade.Speed < 0 {
		return fmt.Errorf("fade speed must not be negative, got %v", c.Fade.Speed)
	}
	for i, l := range c.Layers {
		kind, err := postfx.ParseEffectKind(l.Kind)
		if err != nil {
			return fmt.Errorf("layers[%d]: %w", i, err)
		}
		known := postfx.EffectParameterNames(kind)
		for name := range l.Params {
			if !contains(known, name) {
				return fmt.Errorf("layers[%d]: unknown parameter '%s' for %s (known: %s)", i, name, kind, strings.Join(known, ", "))
			}
		}
	}
	for key, kindName := range c.Keys {
		if _, ok := core.KeyCodeFromName(key); !ok {
			return fmt.Errorf("keys: unknown key '%s'", key)
		}
		if _, err := postfx.ParseEffectKind(kindName); err != nil {
			return fmt.Errorf("keys.%s: %w", key, err)
		}
	}
	return nil
}

/**
 * @brief Overrides one parameter on every configured layer of the given kind.
 * Used for command line flags.
 */
func (c *Config) SetLayerParam(kind, name string, value float64) {
	for i := range c.Layers {
		if !strings.EqualFold(c.Layers[i].Kind, kind) {
			continue
		}
		if c.Layers[i].Params == nil {
			c.Layers[i].Params = map[string]float64{}
		}
		c.Layers[i].Params[name] = value
	}
}

// SortedKeys returns the key bindings in a stable order.
func (c *Config) SortedKeys() []string {
	keys := make([]string, 0, len(c.Keys))
	for k := range c.Keys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
