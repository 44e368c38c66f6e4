package systems

import (
	"context"
	"errors"
	"fmt"
	"image"
	"maps"
	"slices"

	"github.com/spaghettifunk/cartofx/engine/config"
	"github.com/spaghettifunk/cartofx/engine/core"
	"github.com/spaghettifunk/cartofx/engine/renderer/metadata"
	"github.com/spaghettifunk/cartofx/engine/renderer/postfx"
	"github.com/spaghettifunk/cartofx/engine/scene"
)

type RendererSystemConfig struct {
	AppName string
	// Initial framebuffer size. Overridden by the first resize event.
	Width  uint32
	Height uint32
	// Passes pushed, in order, once the scene is ready.
	Layers []config.LayerConfig
	// Key name to effect kind.
	Keys      map[string]string
	FadeSpeed float64
	// Show the scene at full alpha as soon as it is ready. Used when rendering headless.
	SkipFade bool
}

/**
 * @brief Owns the frame loop: applies queued control commands, swaps the loading
 * placeholder for the scene once it is ready and drives the post-processing pipeline.
 */
type RendererSystem struct {
	Config *RendererSystemConfig

	backend    metadata.RendererBackend
	shaders    *ShaderSystem
	Controller *postfx.Controller
	fader      *postfx.Fader
	loader     *scene.Loader

	// Shown until the scene is ready. The pipeline does not exist before that.
	placeholder *postfx.PlaceholderStage
	pipeline    *postfx.Pipeline
	source      scene.Source
	sceneErr    error

	FrameNumber uint64
	// The current window framebuffer width.
	FramebufferWidth uint32
	// The current window framebuffer height.
	FramebufferHeight uint32
}

func NewRendererSystem(config *RendererSystemConfig, backend metadata.RendererBackend, shaders *ShaderSystem) (*RendererSystem, error) {
	if config == nil || backend == nil || shaders == nil {
		err := fmt.Errorf("NewRendererSystem - config, backend and shader system are required")
		core.LogError("%s", err)
		return nil, err
	}
	return &RendererSystem{
		Config:     config,
		backend:    backend,
		shaders:    shaders,
		Controller: postfx.NewController(postfx.DEFAULT_COMMAND_QUEUE_CAPACITY),
		fader:      postfx.NewFader(config.FadeSpeed),
		loader:     scene.NewLoader(),
	}, nil
}

/**
 * @brief Brings the backend up, prepares the loading placeholder and binds the
 * configured keys. The pipeline is built later, once the scene is ready.
 */
func (r *RendererSystem) Initialize() error {
	// Default framebuffer size. Overridden when window is created.
	r.FramebufferWidth = r.Config.Width
	r.FramebufferHeight = r.Config.Height
	if r.FramebufferWidth == 0 || r.FramebufferHeight == 0 {
		r.FramebufferWidth, r.FramebufferHeight = 1280, 720
	}
	r.FrameNumber = 0

	if err := r.backend.Initialize(r.Config.AppName, r.FramebufferWidth, r.FramebufferHeight); err != nil {
		core.LogError("renderer backend failed to initialize: %s", err)
		return err
	}

	placeholder, err := postfx.NewPlaceholderStage(r.backend, r.shaders)
	if err != nil {
		return err
	}
	r.placeholder = placeholder
	if err := r.placeholder.Resize(int(r.FramebufferWidth), int(r.FramebufferHeight)); err != nil {
		return err
	}

	for _, name := range slices.Sorted(maps.Keys(r.Config.Keys)) {
		key, ok := core.KeyCodeFromName(name)
		if !ok {
			core.LogWarn("ignoring binding for unknown key '%s'", name)
			continue
		}
		kind, err := postfx.ParseEffectKind(r.Config.Keys[name])
		if err != nil {
			core.LogWarn("ignoring binding for key '%s': %s", name, err)
			continue
		}
		r.Controller.BindKey(key, kind)
	}
	if !r.Controller.Register() {
		core.LogWarn("event system not running, key and resize events will not reach the pipeline")
	}
	core.LogInfo("renderer system initialized (%dx%d)", r.FramebufferWidth, r.FramebufferHeight)
	return nil
}

// LoadScene builds the scene described by opts on jobs.
func (r *RendererSystem) LoadScene(jobs scene.Submitter, opts scene.Options) error {
	return r.loader.Start(jobs, func() (scene.Source, error) {
		return scene.Build(opts)
	})
}

// WaitScene blocks until the scene is ready and the layers are built.
func (r *RendererSystem) WaitScene(ctx context.Context) error {
	if _, err := r.loader.Wait(ctx); err != nil && ctx.Err() != nil {
		return err
	}
	r.pollScene()
	return r.sceneErr
}

// Ready reports whether the scene replaced the placeholder.
func (r *RendererSystem) Ready() bool {
	return r.pipeline != nil
}

// LayersPending reports whether the layers are still to be built, which is the case
// until the scene either loads or fails.
func (r *RendererSystem) LayersPending() bool {
	return r.pipeline == nil && r.sceneErr == nil
}

// SceneError is the error the scene failed to load with, if any.
func (r *RendererSystem) SceneError() error {
	return r.sceneErr
}

func (r *RendererSystem) Pipeline() *postfx.Pipeline {
	return r.pipeline
}

func (r *RendererSystem) Fader() *postfx.Fader {
	return r.fader
}

func (r *RendererSystem) Backend() metadata.RendererBackend {
	return r.backend
}

// Resize resizes the display and the pipeline, or the placeholder while loading.
// Non-positive sizes and the current size are ignored.
func (r *RendererSystem) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		core.LogDebug("ignoring resize to %dx%d", width, height)
		return nil
	}
	if uint32(width) == r.FramebufferWidth && uint32(height) == r.FramebufferHeight {
		return nil
	}
	r.FramebufferWidth = uint32(width)
	r.FramebufferHeight = uint32(height)
	if err := r.backend.Resized(r.FramebufferWidth, r.FramebufferHeight); err != nil {
		return err
	}
	if r.pipeline != nil {
		return r.pipeline.Resize(width, height)
	}
	if r.placeholder != nil {
		return r.placeholder.Resize(width, height)
	}
	return nil
}

func (r *RendererSystem) GetLayer(kind postfx.EffectKind) (postfx.Effect, bool) {
	if r.pipeline == nil {
		return nil, false
	}
	return r.pipeline.GetLayer(kind)
}

func (r *RendererSystem) ReloadShader(name string) error {
	if r.pipeline != nil {
		return r.pipeline.ReloadShader(name)
	}
	// only the placeholder's composite is in use
	if name == postfx.COMPOSITE_SHADER_NAME {
		return r.shaders.Reload(name, []string{postfx.UNIFORM_FADE})
	}
	return nil
}

/**
 * @brief Renders one frame. frame carries the timing values; the frame number, the
 * size and the fade alpha are filled in here.
 */
func (r *RendererSystem) DrawFrame(frame *metadata.FrameContext) error {
	if r.pipeline == nil && r.placeholder == nil {
		return core.ErrSceneNotReady
	}
	r.FrameNumber++
	frame.FrameNumber = r.FrameNumber

	// Layers built here are visible to the commands applied right after.
	r.pollScene()
	r.Controller.Apply(r)

	var width, height uint32
	if r.pipeline != nil {
		width, height = r.pipeline.Pool().Size()
	} else {
		width, height = r.placeholder.Size()
	}
	if width == 0 || height == 0 {
		return nil
	}
	frame.Width, frame.Height = width, height

	var f *scene.Frame
	if r.pipeline != nil {
		frame.FadeAlpha = r.fader.Update(frame.DeltaTime)
		var err error
		f, err = r.source.Render(int(width), int(height))
		if err != nil {
			err = fmt.Errorf("scene '%s' failed to render: %w", r.source.Name(), err)
			core.LogError("%s", err)
			return err
		}
	} else {
		frame.FadeAlpha = 1
	}

	// If the begin frame returned successfully, mid-frame operations may continue.
	if err := r.backend.BeginFrame(frame); err != nil {
		if errors.Is(err, core.ErrSwapchainBooting) {
			return nil
		}
		return err
	}
	if err := r.renderFrame(frame, f); err != nil {
		core.LogError("%s", err)
		return err
	}
	// End the frame. If this fails, it is likely unrecoverable.
	if err := r.backend.EndFrame(frame); err != nil {
		err := fmt.Errorf("backend func EndFrame failed: %w", err)
		core.LogError("%s", err)
		return err
	}
	return nil
}

// renderFrame draws the scene through the pipeline, or the placeholder when f is nil.
func (r *RendererSystem) renderFrame(frame *metadata.FrameContext, f *scene.Frame) error {
	if f == nil {
		img := scene.Placeholder(int(frame.Width), int(frame.Height), frame.Elapsed)
		if err := r.placeholder.Submit(img); err != nil {
			return err
		}
		return r.placeholder.Render(frame)
	}
	if err := r.pipeline.SubmitScene(f.Color, f.Depth); err != nil {
		return err
	}
	return r.pipeline.Render(frame)
}

// Display returns the last presented image.
func (r *RendererSystem) Display() (*image.RGBA, error) {
	return r.backend.DisplayRead()
}

func (r *RendererSystem) Shutdown() error {
	r.Controller.Unregister()
	if r.pipeline != nil {
		r.pipeline.Destroy()
		r.pipeline = nil
	}
	if r.placeholder != nil {
		r.placeholder.Destroy()
		r.placeholder = nil
	}
	return r.backend.Shutdown()
}

/**
 * @brief Checks the scene worker without blocking. Once it is done the pipeline is
 * built here, on the render thread, and replaces the placeholder. On failure the
 * placeholder stays up and the viewer keeps running.
 */
func (r *RendererSystem) pollScene() {
	if !r.LayersPending() {
		return
	}
	src, done, err := r.loader.Poll()
	if !done {
		return
	}
	if err != nil {
		r.sceneErr = err
		return
	}
	pipeline, err := postfx.NewPipeline(r.backend, r.shaders)
	if err != nil {
		r.sceneErr = err
		return
	}
	if err := pipeline.Resize(int(r.FramebufferWidth), int(r.FramebufferHeight)); err != nil {
		pipeline.Destroy()
		r.sceneErr = err
		return
	}
	r.pipeline = pipeline
	r.source = src
	r.buildLayers()
	if r.placeholder != nil {
		r.placeholder.Destroy()
		r.placeholder = nil
	}

	if r.Config.SkipFade {
		r.fader.Current = 1
	}
	r.fader.FadeIn()
	core.EventFire(core.EVENT_CODE_SCENE_READY, r, core.EventContext{})
}

// buildLayers pushes the configured passes. A pass that fails to build is left out.
func (r *RendererSystem) buildLayers() {
	for i, l := range r.Config.Layers {
		kind, err := postfx.ParseEffectKind(l.Kind)
		if err != nil {
			core.LogError("layers[%d]: %s", i, err)
			continue
		}
		e, err := r.pipeline.PushLayer(kind)
		if err != nil {
			core.LogError("layer %s disabled: %s", kind, err)
			continue
		}
		for _, name := range slices.Sorted(maps.Keys(l.Params)) {
			if err := e.SetParameter(name, l.Params[name]); err != nil {
				core.LogWarn("layer %s: %s", kind, err)
			}
		}
		e.SetActive(l.IsActive())
	}
	core.LogInfo("pipeline built with %d of %d layers", len(r.pipeline.Layers()), len(r.Config.Layers))
}
