package software

import (
	"encoding/binary"
	"fmt"
	"image"
	stdmath "math"
	"strings"
	"sync"

	"github.com/gogpu/gputypes"

	"github.com/spaghettifunk/cartofx/engine/core"
	"github.com/spaghettifunk/cartofx/engine/math"
	"github.com/spaghettifunk/cartofx/engine/renderer/metadata"
)

// Stats counts the work done by the backend, mostly for tests and the headless CLI.
type Stats struct {
	// Draw calls since Initialize.
	DrawCalls uint64
	// Draw calls since the last BeginFrame.
	FrameDrawCalls uint64
	// Render target storage allocations since Initialize.
	Allocations uint64
	Frames      uint64
}

type surface struct {
	width  int
	height int
	color  *image.RGBA
	depth  []float32
}

type program struct {
	kernel FragmentKernel
}

/**
 * @brief A CPU implementation of the renderer backend. Fragment programs are
 * resolved to Go kernels by name, after the WGSL source has been validated.
 */
type Backend struct {
	mu sync.Mutex

	appName   string
	width     uint32
	height    uint32
	display   *image.RGBA
	presented *image.RGBA
	kernels   map[string]FragmentKernel
	stats     Stats
}

func New() *Backend {
	b := &Backend{kernels: map[string]FragmentKernel{}}
	for name, k := range builtinKernels {
		b.kernels[name] = k
	}
	return b
}

// RegisterKernel makes a fragment program name available, replacing any kernel with the same name.
func (b *Backend) RegisterKernel(name string, kernel FragmentKernel) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.kernels[name] = kernel
}

func (b *Backend) Initialize(appName string, width, height uint32) error {
	b.appName = appName
	b.stats = Stats{}
	if err := b.Resized(width, height); err != nil {
		return err
	}
	core.LogInfo("software renderer initialized for '%s' (%dx%d)", appName, width, height)
	return nil
}

func (b *Backend) Shutdown() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.display = nil
	b.presented = nil
	core.LogDebug("software renderer shut down")
	return nil
}

func (b *Backend) Resized(width, height uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if width == 0 || height == 0 {
		return nil
	}
	if width == b.width && height == b.height && b.display != nil {
		return nil
	}
	b.width, b.height = width, height
	b.display = image.NewRGBA(image.Rect(0, 0, int(width), int(height)))
	return nil
}

func (b *Backend) BeginFrame(frame *metadata.FrameContext) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.display == nil {
		return core.ErrSwapchainBooting
	}
	b.stats.FrameDrawCalls = 0
	return nil
}

func (b *Backend) EndFrame(frame *metadata.FrameContext) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.display == nil {
		return core.ErrSwapchainBooting
	}
	if b.presented == nil || !b.presented.Rect.Eq(b.display.Rect) {
		b.presented = image.NewRGBA(b.display.Rect)
	}
	copy(b.presented.Pix, b.display.Pix)
	b.stats.Frames++
	return nil
}

func (b *Backend) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

func (b *Backend) RenderTargetCreate(target *metadata.RenderTarget) error {
	switch target.Format {
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatR32Float:
	default:
		err := fmt.Errorf("render target '%s': unsupported format %v", target.Name, target.Format)
		core.LogError("%s", err)
		return err
	}
	surf := &surface{}
	target.InternalData = surf
	return b.allocate(target, surf, target.Width, target.Height)
}

func (b *Backend) RenderTargetResize(target *metadata.RenderTarget, width, height uint32) error {
	surf, ok := target.InternalData.(*surface)
	if !ok {
		return fmt.Errorf("render target '%s' was not created by the software renderer", target.Name)
	}
	if width == 0 || height == 0 {
		return core.ErrInvalidTargetSize
	}
	if surf.width == int(width) && surf.height == int(height) {
		return nil
	}
	if err := b.allocate(target, surf, width, height); err != nil {
		return err
	}
	target.Width, target.Height = width, height
	target.Generation++
	return nil
}

func (b *Backend) allocate(target *metadata.RenderTarget, surf *surface, width, height uint32) error {
	surf.width, surf.height = int(width), int(height)
	surf.color, surf.depth = nil, nil
	if width == 0 || height == 0 {
		return nil
	}
	if target.Format == gputypes.TextureFormatR32Float {
		surf.depth = make([]float32, int(width)*int(height))
	} else {
		surf.color = image.NewRGBA(image.Rect(0, 0, int(width), int(height)))
	}
	b.mu.Lock()
	b.stats.Allocations++
	b.mu.Unlock()
	return nil
}

func (b *Backend) RenderTargetDestroy(target *metadata.RenderTarget) {
	target.InternalData = nil
}

func (b *Backend) RenderTargetWrite(target *metadata.RenderTarget, pixels []uint8) error {
	surf, ok := target.InternalData.(*surface)
	if !ok || surf.width == 0 {
		return fmt.Errorf("render target '%s' has no storage", target.Name)
	}
	want := surf.width * surf.height * 4
	if len(pixels) != want {
		return fmt.Errorf("render target '%s': got %d bytes, want %d", target.Name, len(pixels), want)
	}
	if surf.depth != nil {
		for i := range surf.depth {
			surf.depth[i] = stdmath.Float32frombits(binary.LittleEndian.Uint32(pixels[i*4:]))
		}
		return nil
	}
	copy(surf.color.Pix, pixels)
	return nil
}

func (b *Backend) RenderTargetRead(target *metadata.RenderTarget) ([]uint8, error) {
	surf, ok := target.InternalData.(*surface)
	if !ok || surf.width == 0 {
		return nil, fmt.Errorf("render target '%s' has no storage", target.Name)
	}
	out := make([]uint8, surf.width*surf.height*4)
	if surf.depth != nil {
		for i, d := range surf.depth {
			binary.LittleEndian.PutUint32(out[i*4:], stdmath.Float32bits(d))
		}
		return out, nil
	}
	copy(out, surf.color.Pix)
	return out, nil
}

func (b *Backend) ShaderCreate(shader *metadata.Shader) error {
	var frag *metadata.ShaderStageConfig
	for _, s := range shader.Stages {
		if s.Stage == gputypes.ShaderStageFragment {
			frag = s
		}
	}
	if frag == nil {
		return fmt.Errorf("shader '%s' has no fragment stage", shader.Name)
	}
	name := strings.TrimSuffix(frag.FileName, ".frag")

	b.mu.Lock()
	kernel, ok := b.kernels[name]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("shader '%s': no software kernel for fragment program '%s'", shader.Name, frag.FileName)
	}
	shader.InternalData = &program{kernel: kernel}
	shader.State = metadata.SHADER_STATE_INITIALIZED
	return nil
}

func (b *Backend) ShaderDestroy(shader *metadata.Shader) {
	shader.InternalData = nil
	shader.State = metadata.SHADER_STATE_NOT_CREATED
}

func (b *Backend) DrawFullscreen(draw *metadata.FullscreenDraw) error {
	prog, ok := draw.Shader.InternalData.(*program)
	if !ok {
		return fmt.Errorf("draw '%s': shader '%s' is not initialized", draw.Label, draw.Shader.Name)
	}

	var dst *image.RGBA
	if draw.Output == nil {
		b.mu.Lock()
		dst = b.display
		b.mu.Unlock()
	} else {
		surf, ok := draw.Output.InternalData.(*surface)
		if !ok || surf.color == nil {
			return fmt.Errorf("draw '%s': output '%s' is not a color target with storage", draw.Label, draw.Output.Name)
		}
		dst = surf.color
	}
	if dst == nil {
		return core.ErrSwapchainBooting
	}

	ctx := &KernelContext{uniforms: draw.Uniforms}
	if draw.Color != nil {
		ctx.color, _ = draw.Color.InternalData.(*surface)
	}
	if draw.Depth != nil {
		ctx.depth, _ = draw.Depth.InternalData.(*surface)
	}
	if draw.Output != nil && (draw.Output == draw.Color || draw.Output == draw.Depth) {
		return fmt.Errorf("draw '%s': output '%s' is also bound as an input", draw.Label, draw.Output.Name)
	}

	w, h := dst.Rect.Dx(), dst.Rect.Dy()
	ctx.Width, ctx.Height = w, h
	for y := 0; y < h; y++ {
		v := (float32(y) + 0.5) / float32(h)
		row := dst.Pix[y*dst.Stride:]
		for x := 0; x < w; x++ {
			u := (float32(x) + 0.5) / float32(w)
			c := prog.kernel(ctx, u, v)
			i := x * 4
			row[i+0] = toByte(c.X)
			row[i+1] = toByte(c.Y)
			row[i+2] = toByte(c.Z)
			row[i+3] = toByte(c.W)
		}
	}

	b.mu.Lock()
	b.stats.DrawCalls++
	b.stats.FrameDrawCalls++
	b.mu.Unlock()
	return nil
}

func (b *Backend) DisplayRead() (*image.RGBA, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.presented == nil {
		return nil, fmt.Errorf("nothing has been presented yet")
	}
	out := image.NewRGBA(b.presented.Rect)
	copy(out.Pix, b.presented.Pix)
	return out, nil
}

func toByte(f float32) uint8 {
	return uint8(math.Clamp(f*255+0.5, 0, 255))
}
