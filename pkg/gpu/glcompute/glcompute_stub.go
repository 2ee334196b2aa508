//go:build !gl

// Package glcompute runs the flock kernel as an OpenGL 4.5 compute shader.
// This build has no OpenGL support: rebuild with -tags gl.
package glcompute

import (
	"github.com/lao-tseu-is-alive/go-flox/pkg/gpu"
)

// New always fails with gpu.ErrUnsupported in builds without the gl tag.
func New() (gpu.Backend, error) {
	return nil, gpu.ErrUnsupported
}
