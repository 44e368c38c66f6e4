//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Test mg.Namespace

// Runs every package test.
func (Test) All() error {
	return goCmd(true, "test", "./...")
}

// Runs the tests that need neither a window nor a GPU.
func (Test) Headless() error {
	return goCmd(true, "test",
		"./engine/core/...", "./engine/containers/...", "./engine/config/...", "./engine/math/...",
		"./engine/assets/...", "./engine/scene/...", "./engine/systems/...",
		"./engine/capture/...", "./engine/renderer/postfx/...", "./engine/renderer/software/...",
		"./engine/renderer/wgsl/...",
	)
}
