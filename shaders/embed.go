// Package shaders holds the WGSL sources of the full-screen passes.
//
// Every program is a pair of passthrough.vert and <name>.frag. Fragment programs
// sample color at binding 0, depth at binding 1 and use the sampler at binding 2;
// their tunables are the f32 members of a single push constant block.
package shaders

import "embed"

//go:embed *.wgsl
var FS embed.FS
