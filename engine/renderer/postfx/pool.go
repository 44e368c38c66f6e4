package postfx

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/google/uuid"

	"github.com/spaghettifunk/cartofx/engine/core"
	"github.com/spaghettifunk/cartofx/engine/renderer/metadata"
)

const PING_PONG_BUFFER_COUNT = 2

/**
 * @brief Owns the scene color and depth targets and the two intermediate buffers
 * passes alternate between. Targets start without storage and get it on the first
 * valid Resize.
 */
type RenderTargetPool struct {
	backend  metadata.RendererBackend
	color    *metadata.RenderTarget
	depth    *metadata.RenderTarget
	pingPong [PING_PONG_BUFFER_COUNT]*metadata.RenderTarget
	width    uint32
	height   uint32
}

func NewRenderTargetPool(backend metadata.RendererBackend) (*RenderTargetPool, error) {
	p := &RenderTargetPool{backend: backend}

	var err error
	if p.color, err = p.create("scene-color", gputypes.TextureFormatRGBA8Unorm); err != nil {
		return nil, err
	}
	if p.depth, err = p.create("scene-depth", gputypes.TextureFormatR32Float); err != nil {
		p.Destroy()
		return nil, err
	}
	for i := range p.pingPong {
		if p.pingPong[i], err = p.create(fmt.Sprintf("ping-pong-%c", 'a'+i), gputypes.TextureFormatRGBA8Unorm); err != nil {
			p.Destroy()
			return nil, err
		}
	}
	return p, nil
}

func (p *RenderTargetPool) create(role string, format gputypes.TextureFormat) (*metadata.RenderTarget, error) {
	return createTarget(p.backend, role, format)
}

func createTarget(backend metadata.RendererBackend, role string, format gputypes.TextureFormat) (*metadata.RenderTarget, error) {
	t := &metadata.RenderTarget{
		Name:   fmt.Sprintf("%s-%s", role, uuid.NewString()),
		Format: format,
	}
	t.ID = core.IdentifierAquireNewID(t)
	if err := backend.RenderTargetCreate(t); err != nil {
		_ = core.IdentifierReleaseID(t.ID)
		err = fmt.Errorf("failed to create render target '%s': %w", role, err)
		core.LogError("%s", err)
		return nil, err
	}
	return t, nil
}

func destroyTarget(backend metadata.RendererBackend, t *metadata.RenderTarget) {
	backend.RenderTargetDestroy(t)
	_ = core.IdentifierReleaseID(t.ID)
}

/**
 * @brief Reallocates every owned target. Identities are preserved, so passes bound
 * to them stay valid. Non-positive sizes are ignored and the previous size is kept.
 * If a target fails to resize, the ones already resized go back to the previous
 * size, so all targets always agree with Size.
 * @returns true if storage was reallocated.
 */
func (p *RenderTargetPool) Resize(width, height int) (bool, error) {
	if width <= 0 || height <= 0 {
		core.LogDebug("ignoring degenerate render target resize %dx%d", width, height)
		return false, nil
	}
	w, h := uint32(width), uint32(height)
	if w == p.width && h == p.height {
		return false, nil
	}
	targets := p.Targets()
	for i, t := range targets {
		if err := p.backend.RenderTargetResize(t, w, h); err != nil {
			err = fmt.Errorf("failed to resize render target '%s' to %dx%d: %w", t.Name, w, h, err)
			core.LogError("%s", err)
			p.rollback(targets[:i])
			return false, err
		}
	}
	p.width, p.height = w, h
	return true, nil
}

// rollback returns already resized targets to the pool size. Before the first
// allocation there is no size to return to and the pool stays unallocated.
func (p *RenderTargetPool) rollback(resized []*metadata.RenderTarget) {
	if !p.IsAllocated() {
		return
	}
	for _, t := range resized {
		if err := p.backend.RenderTargetResize(t, p.width, p.height); err != nil {
			core.LogError("failed to restore render target '%s' to %dx%d: %s", t.Name, p.width, p.height, err)
		}
	}
}

func (p *RenderTargetPool) Size() (uint32, uint32) {
	return p.width, p.height
}

func (p *RenderTargetPool) IsAllocated() bool {
	return p.width > 0 && p.height > 0
}

// Color is the raw scene color target.
func (p *RenderTargetPool) Color() *metadata.RenderTarget {
	return p.color
}

// Depth is the raw scene depth target.
func (p *RenderTargetPool) Depth() *metadata.RenderTarget {
	return p.depth
}

// PingPong returns intermediate buffer i modulo the buffer count.
func (p *RenderTargetPool) PingPong(i int) *metadata.RenderTarget {
	return p.pingPong[i%PING_PONG_BUFFER_COUNT]
}

// Targets lists every target the pool owns.
func (p *RenderTargetPool) Targets() []*metadata.RenderTarget {
	out := make([]*metadata.RenderTarget, 0, 2+PING_PONG_BUFFER_COUNT)
	for _, t := range []*metadata.RenderTarget{p.color, p.depth, p.pingPong[0], p.pingPong[1]} {
		if t != nil {
			out = append(out, t)
		}
	}
	return out
}

func (p *RenderTargetPool) Destroy() {
	for _, t := range p.Targets() {
		destroyTarget(p.backend, t)
	}
	p.color, p.depth = nil, nil
	p.pingPong = [PING_PONG_BUFFER_COUNT]*metadata.RenderTarget{}
	p.width, p.height = 0, 0
}
