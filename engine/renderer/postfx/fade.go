package postfx

import (
	"github.com/spaghettifunk/cartofx/engine/math"
)

const (
	DEFAULT_FADE_SPEED = 2.0
	FADE_EPSILON       = 0.001
)

/**
 * @brief Eases the scene alpha towards a target at a constant rate per second.
 */
type Fader struct {
	Current float64
	Target  float64
	Speed   float64
}

// NewFader starts fully hidden.
func NewFader(speed float64) *Fader {
	if speed <= 0 {
		speed = DEFAULT_FADE_SPEED
	}
	return &Fader{Speed: speed}
}

func (f *Fader) FadeIn() {
	f.Target = 1
}

func (f *Fader) FadeOut() {
	f.Target = 0
}

// Update steps towards the target and returns the new alpha.
func (f *Fader) Update(deltaTime float64) float32 {
	if math.Abs(f.Target-f.Current) > FADE_EPSILON {
		f.Current = math.MoveTowards(f.Current, f.Target, f.Speed*deltaTime)
	}
	return f.Alpha()
}

func (f *Fader) Alpha() float32 {
	return float32(math.Saturate(f.Current))
}

func (f *Fader) Done() bool {
	return math.Abs(f.Target-f.Current) <= FADE_EPSILON
}
