package software

import (
	"github.com/spaghettifunk/cartofx/engine/math"
)

// FragmentKernel shades the pixel at normalized coordinates (u, v), with v growing downwards.
type FragmentKernel func(ctx *KernelContext, u, v float32) math.Vec4

// KernelContext gives kernels access to the bound inputs and the parameter block.
type KernelContext struct {
	color    *surface
	depth    *surface
	uniforms map[string]float32
	// Size of the surface being written.
	Width  int
	Height int
}

func (c *KernelContext) Uniform(name string) float32 {
	return c.uniforms[name]
}

// Color samples the color input with nearest filtering and clamp-to-edge addressing.
func (c *KernelContext) Color(u, v float32) math.Vec4 {
	s := c.color
	if s == nil || s.color == nil {
		return math.Vec4{}
	}
	x, y := s.texel(u, v)
	i := y*s.color.Stride + x*4
	p := s.color.Pix[i : i+4 : i+4]
	return math.Vec4{
		X: float32(p[0]) / 255,
		Y: float32(p[1]) / 255,
		Z: float32(p[2]) / 255,
		W: float32(p[3]) / 255,
	}
}

// Depth samples the depth input, 1 when nothing is bound.
func (c *KernelContext) Depth(u, v float32) float32 {
	s := c.depth
	if s == nil || s.depth == nil {
		return 1
	}
	x, y := s.texel(u, v)
	return s.depth[y*s.width+x]
}

// Texel is the size of one input texel in normalized coordinates.
func (c *KernelContext) Texel() (float32, float32) {
	if c.color == nil || c.color.width == 0 {
		return 1 / float32(max(c.Width, 1)), 1 / float32(max(c.Height, 1))
	}
	return 1 / float32(c.color.width), 1 / float32(c.color.height)
}

func (s *surface) texel(u, v float32) (int, int) {
	x := int(u * float32(s.width))
	y := int(v * float32(s.height))
	if u < 0 {
		x = 0
	}
	if v < 0 {
		y = 0
	}
	return math.Clamp(x, 0, s.width-1), math.Clamp(y, 0, s.height-1)
}

var builtinKernels = map[string]FragmentKernel{
	"passthrough": PassthroughKernel,
	"uv":          UVKernel,
	"composite":   CompositeKernel,
	"fxaa":        FXAAKernel,
	"dof":         DOFKernel,
	"bloom":       BloomKernel,
}

func PassthroughKernel(ctx *KernelContext, u, v float32) math.Vec4 {
	return ctx.Color(u, v)
}

func UVKernel(ctx *KernelContext, u, v float32) math.Vec4 {
	return math.Vec4{X: u, Y: v, Z: 0, W: 1}
}

func CompositeKernel(ctx *KernelContext, u, v float32) math.Vec4 {
	c := ctx.Color(u, v)
	fade := math.Saturate(ctx.Uniform("fade"))
	return math.Vec4{X: c.X * fade, Y: c.Y * fade, Z: c.Z * fade, W: 1}
}

func resolutionTexel(ctx *KernelContext) (float32, float32) {
	rx := ctx.Uniform("resolution_x")
	ry := ctx.Uniform("resolution_y")
	if rx < 1 {
		rx = 1
	}
	if ry < 1 {
		ry = 1
	}
	return 1 / rx, 1 / ry
}

func FXAAKernel(ctx *KernelContext, u, v float32) math.Vec4 {
	tx, ty := resolutionTexel(ctx)
	lumaAt := func(du, dv float32) float32 { return ctx.Color(u+du, v+dv).Luma() }

	center := ctx.Color(u, v)
	lM := center.Luma()
	lN := lumaAt(0, -ty)
	lS := lumaAt(0, ty)
	lE := lumaAt(tx, 0)
	lW := lumaAt(-tx, 0)

	lMin := min(lM, lN, lS, lE, lW)
	lMax := max(lM, lN, lS, lE, lW)
	contrast := lMax - lMin
	if contrast < max(ctx.Uniform("edge_threshold_min"), lMax*ctx.Uniform("edge_threshold_max")) {
		return center
	}

	horizontal := math.Abs(lN+lS-2*lM) >= math.Abs(lE+lW-2*lM)
	acrossU, acrossV := tx, float32(0)
	alongU, alongV := float32(0), ty
	if horizontal {
		acrossU, acrossV = 0, ty
		alongU, alongV = tx, 0
	}

	searchSteps := ctx.Uniform("search_steps")
	steps := int(searchSteps)
	span := float32(0)
	for i := 1; i <= steps; i++ {
		ou, ov := alongU*float32(i), alongV*float32(i)
		gPos := math.Abs(lumaAt(ou+acrossU, ov+acrossV) - lumaAt(ou-acrossU, ov-acrossV))
		gNeg := math.Abs(lumaAt(-ou+acrossU, -ov+acrossV) - lumaAt(-ou-acrossU, -ov-acrossV))
		if gPos < contrast*0.25 && gNeg < contrast*0.25 {
			break
		}
		span++
	}
	weight := math.Clamp(1-span/max(2*searchSteps, 1), 0.25, 1)

	closeD := ctx.Uniform("blur_close_distance")
	farD := ctx.Uniform("blur_far_distance")
	near := ctx.Color(u+acrossU*closeD, v+acrossV*closeD).Add(ctx.Color(u-acrossU*closeD, v-acrossV*closeD))
	far := ctx.Color(u+acrossU*farD, v+acrossV*farD).Add(ctx.Color(u-acrossU*farD, v-acrossV*farD))
	blurred := near.Scale(0.375).Add(far.Scale(0.125))
	return center.Mix(blurred, weight*0.5)
}

var dofTaps = [8][2]float32{
	{1, 0}, {-1, 0}, {0, 1}, {0, -1},
	{0.7071, 0.7071}, {-0.7071, 0.7071}, {0.7071, -0.7071}, {-0.7071, -0.7071},
}

func DOFKernel(ctx *KernelContext, u, v float32) math.Vec4 {
	depth := ctx.Depth(u, v)
	focus := ctx.Uniform("focus_range")
	spread := max(1-focus, 0.0001)
	factor := math.Saturate(math.Abs(depth-focus) / spread)
	radius := factor * ctx.Uniform("max_blur")

	sum := ctx.Color(u, v)
	for _, t := range dofTaps {
		sum = sum.Add(ctx.Color(u+t[0]*radius, v+t[1]*radius))
	}
	return sum.Scale(1.0 / 9.0)
}

func bloomBright(c math.Vec4, threshold, knee float32) math.Vec4 {
	l := c.Luma()
	knee = max(knee, 0.00001)
	soft := math.Clamp(l-threshold+knee, 0, 2*knee)
	contribution := max(soft*soft/(4*knee), l-threshold) / max(l, 0.00001)
	contribution = max(contribution, 0)
	return math.Vec4{X: c.X * contribution, Y: c.Y * contribution, Z: c.Z * contribution}
}

func BloomKernel(ctx *KernelContext, u, v float32) math.Vec4 {
	tx, ty := resolutionTexel(ctx)
	step := ctx.Uniform("blur_step")
	threshold := ctx.Uniform("threshold")
	knee := ctx.Uniform("knee")

	center := ctx.Color(u, v)
	var glow math.Vec4
	for y := -1; y <= 1; y++ {
		for x := -1; x <= 1; x++ {
			s := ctx.Color(u+float32(x)*tx*step, v+float32(y)*ty*step)
			glow = glow.Add(bloomBright(s, threshold, knee))
		}
	}
	glow = glow.Scale(ctx.Uniform("intensity") / 9.0)
	return math.Vec4{X: center.X + glow.X, Y: center.Y + glow.Y, Z: center.Z + glow.Z, W: center.W}
}
