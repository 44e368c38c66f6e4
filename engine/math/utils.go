package math

import (
	stdmath "math"

	"golang.org/x/exp/constraints"
)

type Float interface {
	constraints.Float
}

// Clamp returns the value `f` clamped to the range [low, high].
// It works for any numeric type (integers and floats).
func Clamp[T constraints.Ordered](f, low, high T) T {
	if f < low {
		return low
	}
	if f > high {
		return high
	}
	return f
}

// Saturate clamps to [0, 1].
func Saturate[T Float](f T) T {
	return Clamp(f, 0, 1)
}

func Lerp[T Float](a, b, t T) T {
	return a + (b-a)*t
}

// Smoothstep is the Hermite interpolation used by the shading language of the same name.
func Smoothstep[T Float](edge0, edge1, x T) T {
	if edge0 == edge1 {
		if x < edge0 {
			return 0
		}
		return 1
	}
	t := Saturate((x - edge0) / (edge1 - edge0))
	return t * t * (3 - 2*t)
}

func Step[T Float](edge, x T) T {
	if x < edge {
		return 0
	}
	return 1
}

func Abs[T Float](f T) T {
	return T(stdmath.Abs(float64(f)))
}

// MoveTowards advances current toward target by at most maxDelta, never overshooting.
func MoveTowards[T Float](current, target, maxDelta T) T {
	diff := target - current
	if Abs(diff) <= maxDelta {
		return target
	}
	if diff > 0 {
		return current + maxDelta
	}
	return current - maxDelta
}
