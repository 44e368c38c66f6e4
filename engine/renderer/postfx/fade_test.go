package postfx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFaderReachesTarget(t *testing.T) {
	f := NewFader(DEFAULT_FADE_SPEED)
	assert.Equal(t, float32(0), f.Alpha())

	f.FadeIn()
	assert.InDelta(t, 0.2, f.Update(0.1), 1e-6)
	assert.False(t, f.Done())

	for i := 0; i < 10; i++ {
		f.Update(0.1)
	}
	assert.Equal(t, float32(1), f.Alpha())
	assert.True(t, f.Done())

	f.FadeOut()
	f.Update(1)
	assert.Equal(t, float32(0), f.Alpha())
}

func TestFaderDefaultsSpeed(t *testing.T) {
	assert.Equal(t, DEFAULT_FADE_SPEED, NewFader(0).Speed)
	assert.Equal(t, 3.0, NewFader(3).Speed)
}

func TestFaderIgnoresTinyDifferences(t *testing.T) {
	f := &Fader{Current: 0.9995, Target: 1, Speed: 2}
	f.Update(0.5)
	assert.Equal(t, 0.9995, f.Current)
}
