package algorithm

import (
	"golang.org/x/sync/errgroup"

	"github.com/lao-tseu-is-alive/go-flox/pkg/quadtree"
)

// Threaded builds one quadtree per frame, then splits the flock into ThreadCount
// contiguous shards updated concurrently. The calling goroutine runs the first shard,
// which also takes the remainder of the division. Shards write disjoint ranges of the
// write slot and only read the tree, so no locking is needed.
type Threaded struct {
	builder *treeBuilder
	threads int
	scratch [][]int32 // one search result buffer per shard
}

// NewThreaded returns the multi goroutine quadtree strategy.
func NewThreaded(cfg Config) (*Threaded, error) {
	b, err := newTreeBuilder(cfg)
	if err != nil {
		return nil, err
	}
	b.tree.Reserve(1024)
	return &Threaded{
		builder: b,
		threads: cfg.ThreadCount,
		scratch: make([][]int32, cfg.ThreadCount),
	}, nil
}

// Update implements Algorithm.
func (a *Threaded) Update(boids *Boids, dt float32) error {
	if err := checkDelta(dt); err != nil {
		return err
	}
	read, write := boids.Read(), boids.Write()
	a.builder.build(read)

	count := len(read)
	chunk := count / a.threads
	first := chunk + count%a.threads

	var g errgroup.Group
	for w := 1; w < a.threads && chunk > 0; w++ {
		lo := first + (w-1)*chunk
		hi := lo + chunk
		g.Go(func() error {
			a.scratch[w] = a.builder.step(read, write, lo, hi, dt, a.scratch[w])
			return nil
		})
	}
	a.scratch[0] = a.builder.step(read, write, 0, first, dt, a.scratch[0])
	if err := g.Wait(); err != nil {
		return err
	}

	a.builder.rebound(write)
	return nil
}

// Tree implements TreeAlgorithm.
func (a *Threaded) Tree() *quadtree.Quadtree[int32] {
	return a.builder.tree
}

// FailedInserts returns how many boids the last frame could not index.
func (a *Threaded) FailedInserts() int {
	return a.builder.Failed()
}

// Shards returns the [lo, hi) ranges one frame of count boids is split into.
func (a *Threaded) Shards(count int) [][2]int {
	chunk := count / a.threads
	first := chunk + count%a.threads
	shards := [][2]int{{0, first}}
	for w := 1; w < a.threads && chunk > 0; w++ {
		lo := first + (w-1)*chunk
		shards = append(shards, [2]int{lo, lo + chunk})
	}
	return shards
}
