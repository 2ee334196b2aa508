package algorithm

import (
	"github.com/lao-tseu-is-alive/go-flox/pkg/behavior"
	"github.com/lao-tseu-is-alive/go-flox/pkg/geometry"
)

// Direct compares every boid with every other one. O(n²), no index to maintain.
type Direct struct {
	world  geometry.Rectangle
	params behavior.Params
}

// NewDirect returns the all pairs strategy.
func NewDirect(cfg Config) *Direct {
	return &Direct{world: cfg.World, params: cfg.Params}
}

// Update implements Algorithm.
func (d *Direct) Update(boids *Boids, dt float32) error {
	if err := checkDelta(dt); err != nil {
		return err
	}
	stepAllPairs(d.params, d.world, boids.Read(), boids.Write(), dt)
	return nil
}

func stepAllPairs(p behavior.Params, world geometry.Rectangle, read, write []behavior.Boid, dt float32) {
	for i := range read {
		write[i] = p.NextAllPairs(i, read, world, dt)
	}
}
