package engine

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/spaghettifunk/cartofx/engine/core"
	"github.com/spaghettifunk/cartofx/engine/platform"
	"github.com/spaghettifunk/cartofx/engine/renderer"
	"github.com/spaghettifunk/cartofx/engine/renderer/metadata"
	"github.com/spaghettifunk/cartofx/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently booting up
	EngineStageBooting
	// Engine completed boot process and is ready to be initialized
	EngineStageBootComplete
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

// Seconds between two frame rate log lines.
const METRICS_LOG_INTERVAL = 5.0

type Engine struct {
	currentStage  Stage
	gameInstance  *Game
	isRunning     atomic.Bool
	isSuspended   bool
	platform      *platform.Platform
	backendType   metadata.RendererBackendType
	systemManager *systems.SystemManager
	width         uint32
	height        uint32
	clock         *core.Clock
	lastTime      float64
}

/**
 * @brief Opens the window and creates the renderer backend and the systems. Nothing
 * is initialized until Initialize is called.
 */
func New(g *Game) (*Engine, error) {
	if g == nil || g.ApplicationConfig == nil || g.ApplicationConfig.Config == nil {
		return nil, fmt.Errorf("engine.New - a game with an application config is required")
	}
	e := &Engine{
		currentStage: EngineStageBooting,
		gameInstance: g,
		clock:        core.NewClock(),
		platform:     platform.New(),
	}
	cfg := g.ApplicationConfig.Config

	backendType, err := renderer.ParseBackendType(cfg.Renderer.Backend)
	if err != nil {
		core.LogError("%s", err)
		return nil, err
	}
	e.backendType = backendType
	if backendType == metadata.RENDERER_BACKEND_TYPE_SOFTWARE {
		core.LogWarn("software backend selected, frames are rendered but not presented to the window")
	}

	w := cfg.Window
	if err := e.platform.Startup(w.Name, uint32(w.X), uint32(w.Y), uint32(w.Width), uint32(w.Height)); err != nil {
		return nil, err
	}
	// HiDPI displays hand back a framebuffer larger than the window.
	e.width, e.height = e.platform.FramebufferSize()

	backend, err := renderer.NewBackend(backendType, e.platform, cfg.Renderer.Validation)
	if err != nil {
		_ = e.platform.Shutdown()
		return nil, err
	}

	sm, err := systems.NewSystemManager(&systems.SystemManagerConfig{
		Config:    cfg,
		Width:     e.width,
		Height:    e.height,
		EmitSPIRV: renderer.NeedsSPIRV(backendType),
	}, backend)
	if err != nil {
		_ = e.platform.Shutdown()
		return nil, err
	}
	e.systemManager = sm
	g.SystemManager = sm

	e.currentStage = EngineStageBootComplete
	return e, nil
}

func (e *Engine) Initialize() error {
	if e.currentStage != EngineStageBootComplete {
		return fmt.Errorf("engine must be booted before initialization, stage %d", e.currentStage)
	}
	e.currentStage = EngineStageInitializing

	// initialize input
	if err := core.InputInitialize(); err != nil {
		return err
	}

	// initialize events
	if !core.EventInitialize() {
		return fmt.Errorf("failed to initialize the event system")
	}
	if err := core.MetricsInitialize(); err != nil {
		return err
	}

	// Registered ahead of the renderer so the engine sees every event first.
	core.EventRegister(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	core.EventRegister(core.EVENT_CODE_KEY_PRESSED, e, e.onKey)
	core.EventRegister(core.EVENT_CODE_RESIZED, e, e.onResized)

	if err := e.systemManager.Initialize(); err != nil {
		return err
	}

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(); err != nil {
			return err
		}
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
			return err
		}
	}

	e.currentStage = EngineStageInitialized
	return nil
}

/**
 * @brief Runs the frame loop until the window closes, Escape is pressed, the frame
 * limit is reached or ctx is cancelled.
 */
func (e *Engine) Run(ctx context.Context) error {
	if e.currentStage != EngineStageInitialized {
		return fmt.Errorf("engine must be initialized before running, stage %d", e.currentStage)
	}
	e.currentStage = EngineStageRunning
	e.isRunning.Store(true)

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	app := e.gameInstance.ApplicationConfig
	var targetFrameSeconds float64
	if app.TargetFPS > 0 {
		targetFrameSeconds = 1.0 / app.TargetFPS
	}
	var frames uint64
	var sinceLog float64

	for e.isRunning.Load() {
		if ctx.Err() != nil {
			core.LogInfo("context cancelled, shutting down")
			break
		}
		if !e.platform.PumpMessages() {
			break
		}
		if e.isSuspended {
			e.platform.Sleep(10)
			continue
		}

		// Update clock and get delta time.
		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime
		frameStartTime := platform.GetAbsoluteTime()

		if e.gameInstance.FnUpdate != nil {
			if err := e.gameInstance.FnUpdate(delta); err != nil {
				core.LogError("game update failed, shutting down: %s", err)
				return err
			}
		}

		frame := &metadata.FrameContext{DeltaTime: delta, Elapsed: currentTime}
		if err := e.systemManager.DrawFrame(frame); err != nil {
			core.LogError("frame %d failed, shutting down: %s", frame.FrameNumber, err)
			return err
		}
		if e.gameInstance.FnRender != nil {
			if err := e.gameInstance.FnRender(frame, delta); err != nil {
				core.LogError("game render failed, shutting down: %s", err)
				return err
			}
		}

		// Figure out how long the frame took and, if below the target, give the rest back.
		frameElapsedTime := platform.GetAbsoluteTime() - frameStartTime
		core.MetricsUpdate(frameElapsedTime)
		if remaining := targetFrameSeconds - frameElapsedTime; remaining > 0 {
			e.platform.Sleep(remaining * 1000)
		}

		sinceLog += delta
		if sinceLog >= METRICS_LOG_INTERVAL {
			fps, ms := core.MetricsFrame()
			core.LogDebug("%.0f fps, %.2f ms/frame", fps, ms)
			sinceLog = 0
		}

		// NOTE: Input update/state copying should always be handled
		// after any input should be recorded; I.E. before this line.
		// As a safety, input is the last thing to be updated before
		// this frame ends.
		if err := core.InputUpdate(delta); err != nil {
			return err
		}

		e.lastTime = currentTime
		frames++
		if app.MaxFrames > 0 && frames >= app.MaxFrames {
			core.LogInfo("frame limit %d reached", app.MaxFrames)
			break
		}
	}
	e.isRunning.Store(false)
	return nil
}

// Stop asks the loop to exit after the current frame. Safe from any goroutine.
func (e *Engine) Stop() {
	e.isRunning.Store(false)
}

func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	if e.gameInstance.FnShutdown != nil {
		if err := e.gameInstance.FnShutdown(); err != nil {
			core.LogWarn("game shutdown: %s", err)
		}
	}
	core.EventUnregister(core.EVENT_CODE_APPLICATION_QUIT, e)
	core.EventUnregister(core.EVENT_CODE_KEY_PRESSED, e)
	core.EventUnregister(core.EVENT_CODE_RESIZED, e)

	if err := e.systemManager.Shutdown(); err != nil {
		return err
	}
	if err := core.EventShutdown(); err != nil {
		return err
	}
	if err := core.InputShutdown(); err != nil {
		return err
	}
	if err := e.platform.Shutdown(); err != nil {
		return err
	}
	e.currentStage = EngineStageUninitialized
	return nil
}

// GetFramebufferSize returns the width and height (in this order)
// of the application Framebuffer
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) onEvent(code core.SystemEventCode, sender, listenerInst interface{}, data core.EventContext) bool {
	if code == core.EVENT_CODE_APPLICATION_QUIT {
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.Stop()
		return true
	}
	return false
}

func (e *Engine) onKey(code core.SystemEventCode, sender, listenerInst interface{}, data core.EventContext) bool {
	if core.KeyCode(data.Data.U16[0]) == core.KEY_ESCAPE {
		// NOTE: Technically firing an event to itself, but there may be other listeners.
		core.EventFire(core.EVENT_CODE_APPLICATION_QUIT, e, core.EventContext{})
		// Block anything else from processing this.
		return true
	}
	return false
}

func (e *Engine) onResized(code core.SystemEventCode, sender, listenerInst interface{}, data core.EventContext) bool {
	width, height := data.Data.U32[0], data.Data.U32[1]
	if width == e.width && height == e.height {
		return false
	}
	e.width, e.height = width, height
	core.LogDebug("Window resize: %d, %d", width, height)

	// Handle minimization
	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		// The pipeline ignores degenerate sizes anyway.
		return true
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(width, height); err != nil {
			core.LogError("%s", err)
		}
	}
	// Let the renderer queue its own resize.
	return false
}
