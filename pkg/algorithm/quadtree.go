package algorithm

import (
	"github.com/lao-tseu-is-alive/go-flox/pkg/quadtree"
)

// Quadtree rebuilds a quadtree every frame and only compares each boid with the
// boids found inside its cohesive radius box.
type Quadtree struct {
	builder *treeBuilder
	results []int32
}

// NewQuadtree returns the single goroutine quadtree strategy.
func NewQuadtree(cfg Config) (*Quadtree, error) {
	b, err := newTreeBuilder(cfg)
	if err != nil {
		return nil, err
	}
	b.tree.Reserve(1024)
	return &Quadtree{builder: b}, nil
}

// Update implements Algorithm.
func (a *Quadtree) Update(boids *Boids, dt float32) error {
	if err := checkDelta(dt); err != nil {
		return err
	}
	read, write := boids.Read(), boids.Write()
	a.builder.build(read)
	a.results = a.builder.step(read, write, 0, len(read), dt, a.results)
	a.builder.rebound(write)
	return nil
}

// Tree implements TreeAlgorithm.
func (a *Quadtree) Tree() *quadtree.Quadtree[int32] {
	return a.builder.tree
}

// FailedInserts returns how many boids the last frame could not index.
func (a *Quadtree) FailedInserts() int {
	return a.builder.Failed()
}
