package testbed

import (
	"strings"

	"github.com/spaghettifunk/cartofx/engine"
	"github.com/spaghettifunk/cartofx/engine/config"
	"github.com/spaghettifunk/cartofx/engine/core"
	"github.com/spaghettifunk/cartofx/engine/renderer/metadata"
)

// Viewer is the map viewer: a window showing the scene through the configured passes.
type Viewer struct {
	*engine.Game
}

type viewerState struct {
	width  uint32
	height uint32

	sceneReported bool
	// Activation of each pass as last logged, to report toggles once.
	active map[string]bool
}

func NewViewer(cfg *config.Config, targetFPS float64, maxFrames uint64) *Viewer {
	v := &Viewer{
		Game: &engine.Game{
			ApplicationConfig: &engine.ApplicationConfig{
				Config:    cfg,
				TargetFPS: targetFPS,
				MaxFrames: maxFrames,
			},
			State: &viewerState{active: map[string]bool{}},
		},
	}
	v.FnInitialize = v.Initialize
	v.FnUpdate = v.Update
	v.FnRender = v.Render
	v.FnOnResize = v.OnResize
	v.FnShutdown = v.Shutdown
	return v
}

func (v *Viewer) state() *viewerState {
	return v.State.(*viewerState)
}

func (v *Viewer) Initialize() error {
	cfg := v.ApplicationConfig.Config
	bindings := make([]string, 0, len(cfg.Keys))
	for _, key := range cfg.SortedKeys() {
		bindings = append(bindings, key+"="+cfg.Keys[key])
	}
	core.LogInfo("viewer ready, keys: %s, escape quits", strings.Join(bindings, " "))
	return nil
}

func (v *Viewer) Update(deltaTime float64) error {
	s := v.state()
	rs := v.SystemManager.RendererSystem
	if !s.sceneReported {
		if err := rs.SceneError(); err != nil {
			core.LogError("scene failed to load, keeping the placeholder: %s", err)
			s.sceneReported = true
		} else if rs.Ready() {
			core.LogInfo("scene loaded, %d passes active", len(rs.Pipeline().Layers()))
			s.sceneReported = true
		}
	}
	return nil
}

func (v *Viewer) Render(frame *metadata.FrameContext, deltaTime float64) error {
	s := v.state()
	rs := v.SystemManager.RendererSystem
	if !rs.Ready() {
		return nil
	}
	for _, l := range rs.Pipeline().Layers() {
		name := l.Kind().String()
		active := l.GetActive()
		if prev, ok := s.active[name]; ok && prev != active {
			core.LogInfo("%s %s", name, onOff(active))
		}
		s.active[name] = active
	}
	return nil
}

func (v *Viewer) OnResize(width uint32, height uint32) error {
	s := v.state()
	s.width, s.height = width, height
	return nil
}

func (v *Viewer) Shutdown() error {
	core.LogInfo("viewer closing")
	return nil
}

func onOff(active bool) string {
	if active {
		return "on"
	}
	return "off"
}
