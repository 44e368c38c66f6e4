package scene

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// ImageScene shows a still image, stretched to the viewport.
type ImageScene struct {
	name  string
	color *image.RGBA
	depth *image.RGBA
}

// NewImageScene uses depth, when not nil, as a grayscale depth map where black is near.
func NewImageScene(name string, color, depth *image.RGBA) *ImageScene {
	return &ImageScene{name: name, color: color, depth: depth}
}

func (s *ImageScene) Name() string {
	return s.name
}

func (s *ImageScene) Render(width, height int) (*Frame, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid scene size %dx%d", width, height)
	}
	f := &Frame{Color: scale(s.color, width, height)}
	if s.depth == nil {
		f.Depth = RampDepth(width, height)
		return f, nil
	}
	d := scale(s.depth, width, height)
	f.Depth = make([]float32, width*height)
	for i := range f.Depth {
		p := d.Pix[i*4 : i*4+3]
		luma := (0.299*float32(p[0]) + 0.587*float32(p[1]) + 0.114*float32(p[2])) / 255
		f.Depth[i] = DEPTH_NEAR + (DEPTH_FAR-DEPTH_NEAR)*luma
	}
	return f, nil
}

func scale(src *image.RGBA, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	if src.Rect.Dx() == width && src.Rect.Dy() == height {
		draw.Draw(dst, dst.Rect, src, src.Rect.Min, draw.Src)
		return dst
	}
	draw.CatmullRom.Scale(dst, dst.Rect, src, src.Rect, draw.Src, nil)
	return dst
}
