package algorithm

import (
	"github.com/tochemey/goakt/v3/log"

	"github.com/lao-tseu-is-alive/go-flox/pkg/behavior"
	"github.com/lao-tseu-is-alive/go-flox/pkg/geometry"
	"github.com/lao-tseu-is-alive/go-flox/pkg/quadtree"
)

// treeBuilder indexes the read slot of the flock once per frame and answers the
// neighbor queries of any number of goroutines afterwards.
//
// The root bound rolls with the flock: after each update it is recomputed from the
// new positions, which are the read slot of the next frame once the caller swaps.
// Boids that still fall outside (new boids, a caller that did not swap) are kept in
// failed and checked against every boid by brute force.
type treeBuilder struct {
	world  geometry.Rectangle
	params behavior.Params
	logger log.Logger

	tree      *quadtree.Quadtree[int32]
	failed    []int32
	bound     geometry.Rectangle
	haveBound bool
}

func newTreeBuilder(cfg Config) (*treeBuilder, error) {
	tree, err := quadtree.New[int32](cfg.World, cfg.Tree)
	if err != nil {
		return nil, err
	}
	return &treeBuilder{
		world:  cfg.World,
		params: cfg.Params,
		logger: cfg.logger(),
		tree:   tree,
	}, nil
}

// build clears the tree and inserts every boid of read.
func (b *treeBuilder) build(read []behavior.Boid) {
	if !b.haveBound {
		b.rebound(read)
	}
	b.tree.Clear()
	b.tree.SetBounds(b.bound)
	b.failed = b.failed[:0]
	for i := range read {
		if !b.tree.Insert(int32(i), read[i].Position) {
			b.failed = append(b.failed, int32(i))
		}
	}
	if len(b.failed) > 0 {
		b.logger.Debugf("%d of %d boids fell outside the tree bound %v", len(b.failed), len(read), b.bound)
	}
}

// step computes write[lo:hi]. results is the caller owned search scratch, returned for reuse.
// It only reads the tree, so shards of the same frame can run concurrently.
func (b *treeBuilder) step(read, write []behavior.Boid, lo, hi int, dt float32, results []int32) []int32 {
	p := b.params
	for i := lo; i < hi; i++ {
		self := read[i]
		n := p.Neighborhood(self)
		results = b.tree.Search(p.SearchArea(self), results[:0])
		for _, k := range results {
			if int(k) != i {
				n.Observe(read[k])
			}
		}
		for _, k := range b.failed {
			if int(k) != i {
				n.Observe(read[k])
			}
		}
		write[i] = p.Next(&n, b.world, dt)
	}
	return results
}

// rebound sets the root bound of the next build to the tight box around flock.
func (b *treeBuilder) rebound(flock []behavior.Boid) {
	b.bound, b.haveBound = behavior.Bounds(flock)
}

// Failed returns how many boids the last build could not insert.
func (b *treeBuilder) Failed() int {
	return len(b.failed)
}
