//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// Validates every pass program and writes the SPIR-V modules to build/spirv.
func (Build) Shaders() error {
	return cartofx("shaders", "--spirv", "build/spirv")
}

// Builds the cartofx binary into build/.
func (Build) Viewer() error {
	mg.Deps(Build.Shaders)
	return goCmd(false, "build", "-o", "build/cartofx", ".")
}
