//go:build ebiten

package main

import (
	"github.com/lao-tseu-is-alive/go-flox/pkg/geometry"
	"github.com/lao-tseu-is-alive/go-flox/pkg/simulation"
)

const (
	minScreenWidth  = 1024
	minScreenHeight = 720
)

func screenWidth(cfg *simulation.Config) int {
	return max(int(cfg.WorldWidth)+panelWidth, minScreenWidth)
}

func screenHeight(cfg *simulation.Config) int {
	return max(int(cfg.WorldHeight), minScreenHeight)
}

// viewport maps world coordinates, y up, onto the screen area right of the panel, y down.
type viewport struct {
	center geometry.Vector2D // screen position of the world center
	world  geometry.Vector2D
	scale  float32
}

func newViewport(world geometry.Rectangle, w, h int) viewport {
	availW, availH := float32(w-panelWidth), float32(h)
	scale := min(availW/world.Width(), availH/world.Height()) * 0.95
	return viewport{
		center: geometry.Vector2D{X: panelWidth + availW/2, Y: availH / 2},
		world:  world.Center,
		scale:  scale,
	}
}

func (v viewport) project(p geometry.Vector2D) geometry.Vector2D {
	d := p.Sub(v.world).Mul(v.scale)
	return geometry.Vector2D{X: v.center.X + d.X, Y: v.center.Y - d.Y}
}
