//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Opens the viewer with the default configuration.
func (Run) View() error {
	mg.Deps(Build.Shaders)
	fmt.Println("Run viewer...")
	return cartofx("view")
}

// Renders one frame headless to build/frame.png.
func (Run) Render() error {
	return cartofx("render", "--out", "build/frame.png")
}
