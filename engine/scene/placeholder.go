package scene

import (
	"image"
	stdmath "math"

	"github.com/gogpu/gg"
)

const PLACEHOLDER_DOTS = 8

// Placeholder draws the loading indicator shown until the scene is ready: a ring
// of dots whose brightness rotates with elapsed seconds.
func Placeholder(width, height int, elapsed float64) *image.RGBA {
	dc := gg.NewContext(width, height)
	defer dc.Close()
	dc.ClearWithColor(gg.RGB(0.08, 0.09, 0.12))

	cx, cy := float64(width)/2, float64(height)/2
	radius := stdmath.Min(cx, cy) * 0.15
	dot := stdmath.Max(radius*0.18, 1)
	head := stdmath.Mod(elapsed*PLACEHOLDER_DOTS, PLACEHOLDER_DOTS)

	for i := 0; i < PLACEHOLDER_DOTS; i++ {
		angle := 2 * stdmath.Pi * float64(i) / PLACEHOLDER_DOTS
		behind := stdmath.Mod(head-float64(i)+PLACEHOLDER_DOTS, PLACEHOLDER_DOTS)
		brightness := 0.25 + 0.75*(1-behind/PLACEHOLDER_DOTS)
		dc.SetRGB(brightness, brightness, brightness)
		dc.DrawCircle(cx+radius*stdmath.Cos(angle), cy+radius*stdmath.Sin(angle), dot)
		_ = dc.Fill()
	}
	return toRGBA(dc.Image())
}
