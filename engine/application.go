package engine

import (
	"github.com/spaghettifunk/cartofx/engine/config"
)

type ApplicationConfig struct {
	// Viewer settings: window, backend, layers, key bindings.
	Config *config.Config
	// Cap the loop at this many frames per second. Zero leaves it uncapped.
	TargetFPS float64
	// Stop after this many frames. Zero runs until the window closes.
	MaxFrames uint64
}
