package postfx

import (
	"sync"

	"github.com/spaghettifunk/cartofx/engine/containers"
	"github.com/spaghettifunk/cartofx/engine/core"
)

const DEFAULT_COMMAND_QUEUE_CAPACITY = 64

type CommandType int

const (
	COMMAND_TYPE_RESIZE CommandType = iota
	COMMAND_TYPE_TOGGLE
	COMMAND_TYPE_SET_ACTIVE
	COMMAND_TYPE_RELOAD_SHADER
)

// Command is a pipeline change recorded off the render thread.
type Command struct {
	Type   CommandType
	Width  int
	Height int
	Kind   EffectKind
	Active bool
	Shader string
}

/**
 * @brief What the controller drives. The pipeline implements it, and so does anything
 * that forwards to a pipeline that may not exist yet.
 */
type Target interface {
	Resize(width, height int) error
	GetLayer(kind EffectKind) (Effect, bool)
	ReloadShader(name string) error
}

/**
 * @brief Implemented by targets whose layers are built later. While LayersPending
 * is true, toggles are kept queued instead of missing.
 */
type LayerWaiter interface {
	LayersPending() bool
}

/**
 * @brief Collects resize, toggle and reload requests from input callbacks and applies
 * them at the start of the next frame.
 */
type Controller struct {
	queue *containers.RingQueue[Command]

	mu       sync.RWMutex
	bindings map[core.KeyCode]EffectKind
}

func NewController(capacity int) *Controller {
	if capacity <= 0 {
		capacity = DEFAULT_COMMAND_QUEUE_CAPACITY
	}
	return &Controller{
		queue:    containers.NewRingQueue[Command](capacity),
		bindings: make(map[core.KeyCode]EffectKind),
	}
}

// BindKey makes a key press toggle the most recent pass of kind.
func (c *Controller) BindKey(key core.KeyCode, kind EffectKind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bindings[key] = kind
}

func (c *Controller) Binding(key core.KeyCode) (EffectKind, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	k, ok := c.bindings[key]
	return k, ok
}

func (c *Controller) RequestResize(width, height int) error {
	return c.push(Command{Type: COMMAND_TYPE_RESIZE, Width: width, Height: height})
}

func (c *Controller) RequestToggle(kind EffectKind) error {
	return c.push(Command{Type: COMMAND_TYPE_TOGGLE, Kind: kind})
}

func (c *Controller) RequestSetActive(kind EffectKind, active bool) error {
	return c.push(Command{Type: COMMAND_TYPE_SET_ACTIVE, Kind: kind, Active: active})
}

func (c *Controller) RequestShaderReload(name string) error {
	return c.push(Command{Type: COMMAND_TYPE_RELOAD_SHADER, Shader: name})
}

// Pending is the number of queued commands.
func (c *Controller) Pending() int {
	return c.queue.Len()
}

func (c *Controller) push(cmd Command) error {
	if err := c.queue.Enqueue(cmd); err != nil {
		core.LogWarn("dropping pipeline command %d: %s", cmd.Type, err)
		return err
	}
	return nil
}

// OnKeyPressed queues a toggle if key is bound. It reports whether the key was consumed.
func (c *Controller) OnKeyPressed(key core.KeyCode) bool {
	kind, ok := c.Binding(key)
	if !ok {
		return false
	}
	return c.RequestToggle(kind) == nil
}

// Register subscribes the controller to key, resize and shader change events.
func (c *Controller) Register() bool {
	ok := core.EventRegister(core.EVENT_CODE_KEY_PRESSED, c, c.onEvent)
	ok = core.EventRegister(core.EVENT_CODE_RESIZED, c, c.onEvent) && ok
	ok = core.EventRegister(core.EVENT_CODE_SHADER_CHANGED, c, c.onEvent) && ok
	return ok
}

func (c *Controller) Unregister() {
	core.EventUnregister(core.EVENT_CODE_KEY_PRESSED, c)
	core.EventUnregister(core.EVENT_CODE_RESIZED, c)
	core.EventUnregister(core.EVENT_CODE_SHADER_CHANGED, c)
}

func (c *Controller) onEvent(code core.SystemEventCode, sender, listenerInst interface{}, data core.EventContext) bool {
	switch code {
	case core.EVENT_CODE_KEY_PRESSED:
		return c.OnKeyPressed(core.KeyCode(data.Data.U16[0]))
	case core.EVENT_CODE_RESIZED:
		// other listeners, such as the platform layer, need to see resizes too
		_ = c.RequestResize(int(data.Data.U32[0]), int(data.Data.U32[1]))
	case core.EVENT_CODE_SHADER_CHANGED:
		_ = c.RequestShaderReload(data.Data.C[0])
	}
	return false
}

/**
 * @brief Applies every queued command to target in arrival order. Only the last resize
 * of a batch is applied. Misses and failures are logged and skipped. Toggles wait in
 * the queue while target's layers are pending.
 * @returns The number of commands applied.
 */
func (c *Controller) Apply(target Target) int {
	pending := false
	if w, ok := target.(LayerWaiter); ok {
		pending = w.LayersPending()
	}

	cmds := c.queue.Drain()
	var deferred []Command
	lastResize := -1
	for i, cmd := range cmds {
		if cmd.Type == COMMAND_TYPE_RESIZE {
			lastResize = i
		}
	}

	applied := 0
	for i, cmd := range cmds {
		switch cmd.Type {
		case COMMAND_TYPE_RESIZE:
			if i != lastResize {
				continue
			}
			if err := target.Resize(cmd.Width, cmd.Height); err != nil {
				core.LogError("resize to %dx%d failed: %s", cmd.Width, cmd.Height, err)
				continue
			}
		case COMMAND_TYPE_TOGGLE, COMMAND_TYPE_SET_ACTIVE:
			if pending {
				deferred = append(deferred, cmd)
				continue
			}
			e, ok := target.GetLayer(cmd.Kind)
			if !ok {
				core.LogDebug("no %s layer to toggle", cmd.Kind)
				continue
			}
			active := cmd.Active
			if cmd.Type == COMMAND_TYPE_TOGGLE {
				active = !e.GetActive()
			}
			e.SetActive(active)
			if active {
				core.LogInfo("%s enabled", cmd.Kind)
			} else {
				core.LogInfo("%s disabled", cmd.Kind)
			}
		case COMMAND_TYPE_RELOAD_SHADER:
			if err := target.ReloadShader(cmd.Shader); err != nil {
				core.LogError("reloading shader '%s' failed: %s", cmd.Shader, err)
				continue
			}
		}
		applied++
	}
	for _, cmd := range deferred {
		_ = c.push(cmd)
	}
	return applied
}
