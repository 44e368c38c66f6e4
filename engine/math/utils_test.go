package math

import "testing"

func TestClamp(t *testing.T) {
	tests := []struct {
		in, lo, hi, want float64
	}{
		{-1, 0, 1, 0},
		{0.5, 0, 1, 0.5},
		{3, 0, 1, 1},
	}
	for _, tt := range tests {
		if got := Clamp(tt.in, tt.lo, tt.hi); got != tt.want {
			t.Errorf("Clamp(%v, %v, %v) = %v, want %v", tt.in, tt.lo, tt.hi, got, tt.want)
		}
	}
	if got := Clamp(7, 1, 5); got != 5 {
		t.Errorf("Clamp int = %d", got)
	}
}

func TestSmoothstep(t *testing.T) {
	if got := Smoothstep[float32](0, 1, -1); got != 0 {
		t.Errorf("below edge = %v", got)
	}
	if got := Smoothstep[float32](0, 1, 2); got != 1 {
		t.Errorf("above edge = %v", got)
	}
	if got := Smoothstep[float32](0, 1, 0.5); got != 0.5 {
		t.Errorf("midpoint = %v", got)
	}
	if got := Smoothstep[float32](0.5, 0.5, 0.6); got != 1 {
		t.Errorf("degenerate edges = %v", got)
	}
}

func TestMoveTowards(t *testing.T) {
	tests := []struct {
		name                   string
		current, target, delta float32
		want                   float32
	}{
		{"step up", 0, 1, 0.25, 0.25},
		{"step down", 1, 0, 0.25, 0.75},
		{"snap", 0.9, 1, 0.25, 1},
		{"already there", 1, 1, 0.25, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MoveTowards(tt.current, tt.target, tt.delta); got != tt.want {
				t.Errorf("MoveTowards = %v, want %v", got, tt.want)
			}
		})
	}
}
