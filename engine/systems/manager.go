package systems

import (
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/spaghettifunk/cartofx/engine/assets"
	"github.com/spaghettifunk/cartofx/engine/config"
	"github.com/spaghettifunk/cartofx/engine/core"
	"github.com/spaghettifunk/cartofx/engine/renderer/metadata"
	"github.com/spaghettifunk/cartofx/engine/scene"
	"github.com/spaghettifunk/cartofx/shaders"
)

const (
	SCENE_WORKER_COUNT = 1
	SCENE_QUEUE_SIZE   = 4
)

type SystemManagerConfig struct {
	Config *config.Config
	// Shader sources. Nil reads Config.Shaders.Dir, falling back to the bundled programs.
	Shaders fs.FS
	// Initial framebuffer size in pixels. Zero uses the configured window size.
	Width  uint32
	Height uint32
	// Generate SPIR-V for every program.
	EmitSPIRV bool
	SkipFade  bool
}

/**
 * @brief Owns the systems of one viewer instance and brings them up and down in order.
 */
type SystemManager struct {
	Config *SystemManagerConfig

	AssetManager   *assets.AssetManager
	JobSystem      *JobSystem
	ShaderSystem   *ShaderSystem
	RendererSystem *RendererSystem

	// On-disk directory the shaders came from, empty for the bundled copies.
	shaderDir string
}

func NewSystemManager(cfg *SystemManagerConfig, backend metadata.RendererBackend) (*SystemManager, error) {
	if cfg == nil || cfg.Config == nil {
		err := fmt.Errorf("NewSystemManager - a configuration is required")
		core.LogError("%s", err)
		return nil, err
	}
	sm := &SystemManager{Config: cfg}

	sources := cfg.Shaders
	if sources == nil {
		sources, sm.shaderDir = ShaderSources(cfg.Config.Shaders.Dir)
	}
	sm.AssetManager = assets.NewAssetManager(sources)

	js, err := NewJobSystem(SCENE_WORKER_COUNT, SCENE_QUEUE_SIZE)
	if err != nil {
		return nil, err
	}
	sm.JobSystem = js

	ss, err := NewShaderSystem(&ShaderSystemConfig{EmitSPIRV: cfg.EmitSPIRV}, sm.AssetManager, backend)
	if err != nil {
		_ = js.Shutdown()
		return nil, err
	}
	sm.ShaderSystem = ss

	width, height := cfg.Width, cfg.Height
	if width == 0 || height == 0 {
		width, height = uint32(cfg.Config.Window.Width), uint32(cfg.Config.Window.Height)
	}
	rs, err := NewRendererSystem(&RendererSystemConfig{
		AppName:   cfg.Config.Window.Name,
		Width:     width,
		Height:    height,
		Layers:    cfg.Config.Layers,
		Keys:      cfg.Config.Keys,
		FadeSpeed: cfg.Config.Fade.Speed,
		SkipFade:  cfg.SkipFade,
	}, backend, ss)
	if err != nil {
		_ = js.Shutdown()
		return nil, err
	}
	sm.RendererSystem = rs
	return sm, nil
}

// ShaderSources prefers the configured directory so edits can be hot reloaded.
func ShaderSources(dir string) (fs.FS, string) {
	if dir != "" {
		if st, err := os.Stat(dir); err == nil && st.IsDir() {
			core.LogInfo("loading shaders from '%s'", dir)
			return os.DirFS(dir), dir
		}
		core.LogWarn("shader directory '%s' not found, using the bundled programs", dir)
	}
	return shaders.FS, ""
}

/**
 * @brief Initializes the renderer, starts building the scene on the job system and,
 * when enabled, watches the shader directory.
 */
func (sm *SystemManager) Initialize() error {
	if err := sm.RendererSystem.Initialize(); err != nil {
		return err
	}

	sc := sm.Config.Config.Scene
	opts := scene.Options{
		Path:      sc.Path,
		DepthPath: sc.DepthPath,
		Seed:      sc.Seed,
		Delay:     time.Duration(sc.LoadDelayMS) * time.Millisecond,
		Assets:    sm.AssetManager,
	}
	if err := sm.RendererSystem.LoadScene(sm.JobSystem, opts); err != nil {
		return err
	}

	hot := sm.Config.Config.Shaders.HotReload
	if sm.shaderDir != "" && hot != nil && *hot {
		if err := sm.AssetManager.Watch(sm.shaderDir); err != nil {
			// Not fatal, the viewer still runs with the programs it has.
			core.LogWarn("shader hot reload disabled: %s", err)
		}
	}
	return nil
}

func (sm *SystemManager) DrawFrame(frame *metadata.FrameContext) error {
	return sm.RendererSystem.DrawFrame(frame)
}

// Shutdown releases the systems in reverse order of creation.
func (sm *SystemManager) Shutdown() error {
	if err := sm.AssetManager.Shutdown(); err != nil {
		return err
	}
	if err := sm.JobSystem.Shutdown(); err != nil {
		return err
	}
	// Programs go before the backend they were created on.
	if err := sm.ShaderSystem.Shutdown(); err != nil {
		return err
	}
	if err := sm.RendererSystem.Shutdown(); err != nil {
		return err
	}
	return nil
}
