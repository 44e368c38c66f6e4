package scene

import (
	"fmt"
	"image"
	stdmath "math"
	"math/rand/v2"

	"github.com/gogpu/gg"
	"golang.org/x/image/draw"
)

const (
	BLOCK_SIZE   = 48.0
	STREET_WIDTH = 10.0
	// How much closer than the ground a building roof is.
	BUILDING_DEPTH_OFFSET = 0.012
)

type building struct {
	x, y, w, h float64
	shade      float64
}

/**
 * @brief A top-down city map drawn with vector primitives: land, a river, a street
 * grid and building footprints. The layout is fixed by the seed and laid out in a
 * 1024x1024 design space that is stretched to the viewport.
 */
type ProceduralScene struct {
	seed      int64
	buildings []building
	river     [][2]float64
}

func NewProceduralScene(seed int64) *ProceduralScene {
	s := &ProceduralScene{seed: seed}
	s.layout()
	return s
}

func (s *ProceduralScene) Name() string {
	return fmt.Sprintf("procedural-%d", s.seed)
}

func (s *ProceduralScene) layout() {
	rng := rand.New(rand.NewPCG(uint64(s.seed), 0x9e3779b97f4a7c15))

	// the river meanders from top to bottom around the middle
	x := 380 + rng.Float64()*260
	for y := -40.0; y <= 1064; y += 64 {
		s.river = append(s.river, [2]float64{x, y})
		x += (rng.Float64() - 0.5) * 90
	}

	for by := 0.0; by < 1024; by += BLOCK_SIZE {
		for bx := 0.0; bx < 1024; bx += BLOCK_SIZE {
			if s.nearRiver(bx+BLOCK_SIZE/2, by+BLOCK_SIZE/2) || rng.Float64() < 0.15 {
				continue
			}
			inner := BLOCK_SIZE - STREET_WIDTH
			n := 1 + rng.IntN(3)
			for i := 0; i < n; i++ {
				w := inner * (0.3 + rng.Float64()*0.5)
				h := inner * (0.3 + rng.Float64()*0.5)
				s.buildings = append(s.buildings, building{
					x:     bx + STREET_WIDTH/2 + rng.Float64()*(inner-w),
					y:     by + STREET_WIDTH/2 + rng.Float64()*(inner-h),
					w:     w,
					h:     h,
					shade: 0.55 + rng.Float64()*0.3,
				})
			}
		}
	}
}

func (s *ProceduralScene) nearRiver(x, y float64) bool {
	for _, p := range s.river {
		if stdmath.Hypot(p[0]-x, p[1]-y) < 70 {
			return true
		}
	}
	return false
}

func (s *ProceduralScene) Render(width, height int) (*Frame, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid scene size %dx%d", width, height)
	}
	sx, sy := float64(width)/1024, float64(height)/1024

	dc := gg.NewContext(width, height)
	defer dc.Close()
	dc.ClearWithColor(gg.RGB(0.83, 0.86, 0.78))

	// parks
	dc.SetRGB(0.62, 0.78, 0.52)
	dc.DrawRectangle(40*sx, 620*sy, 220*sx, 180*sy)
	if err := dc.Fill(); err != nil {
		return nil, err
	}

	if err := s.drawRiver(dc, sx, sy); err != nil {
		return nil, err
	}

	// streets
	dc.SetRGB(0.97, 0.97, 0.95)
	dc.SetLineWidth(STREET_WIDTH * stdmath.Min(sx, sy))
	for v := 0.0; v <= 1024; v += BLOCK_SIZE {
		dc.DrawLine(v*sx, 0, v*sx, float64(height))
		dc.DrawLine(0, v*sy, float64(width), v*sy)
	}
	if err := dc.Stroke(); err != nil {
		return nil, err
	}

	// an arterial road crossing the river
	dc.SetRGB(0.98, 0.82, 0.45)
	dc.SetLineWidth(1.8 * STREET_WIDTH * stdmath.Min(sx, sy))
	dc.DrawLine(0, 420*sy, float64(width), 540*sy)
	if err := dc.Stroke(); err != nil {
		return nil, err
	}

	for _, b := range s.buildings {
		dc.SetRGB(b.shade, b.shade*0.95, b.shade*0.9)
		dc.DrawRectangle(b.x*sx, b.y*sy, b.w*sx, b.h*sy)
		if err := dc.Fill(); err != nil {
			return nil, err
		}
	}

	color := toRGBA(dc.Image())
	depth, err := s.renderDepth(width, height, sx, sy)
	if err != nil {
		return nil, err
	}
	return &Frame{Color: color, Depth: depth}, nil
}

func (s *ProceduralScene) drawRiver(dc *gg.Context, sx, sy float64) error {
	if len(s.river) == 0 {
		return nil
	}
	dc.SetRGB(0.55, 0.72, 0.88)
	dc.SetLineWidth(56 * stdmath.Min(sx, sy))
	dc.MoveTo(s.river[0][0]*sx, s.river[0][1]*sy)
	for _, p := range s.river[1:] {
		dc.LineTo(p[0]*sx, p[1]*sy)
	}
	return dc.Stroke()
}

// renderDepth draws building footprints into a mask and lifts them off the ground ramp.
func (s *ProceduralScene) renderDepth(width, height int, sx, sy float64) ([]float32, error) {
	mask := gg.NewContext(width, height)
	defer mask.Close()
	mask.ClearWithColor(gg.RGB(0, 0, 0))
	mask.SetRGB(1, 1, 1)
	for _, b := range s.buildings {
		mask.DrawRectangle(b.x*sx, b.y*sy, b.w*sx, b.h*sy)
	}
	if err := mask.Fill(); err != nil {
		return nil, err
	}

	m := toRGBA(mask.Image())
	depth := RampDepth(width, height)
	for i := range depth {
		coverage := float32(m.Pix[i*4]) / 255
		depth[i] -= BUILDING_DEPTH_OFFSET * coverage
	}
	return depth, nil
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Rect, img, b.Min, draw.Src)
	return dst
}
