// Package quadtree implements a bucketed region quadtree over float32 points.
//
// Storage is arena based: nodes, bucket headers and bucket slots live in flat slices
// addressed by int32 indices, so a tree can be cleared and refilled every frame without
// releasing memory. A node is a leaf while its first child index is 0 (the root is node 0
// and can never be anyone's child). A leaf owns a chain of fixed capacity buckets; chains
// longer than one bucket only appear at the maximum depth.
//
// Insert and Clear must not run concurrently with anything else. Once filled, Search may
// be called from any number of goroutines.
package quadtree

import (
	"errors"
	"fmt"
	"iter"
	"slices"

	"github.com/lao-tseu-is-alive/go-flox/pkg/geometry"
)

// MaxDepthLimit bounds Config.MaxDepth so the search stack fits in a fixed array.
const MaxDepthLimit = 32

// ErrInvalidConfig is returned by New when the configuration is out of range.
var ErrInvalidConfig = errors.New("invalid quadtree config")

const noBucket = -1

// Config controls the shape of the tree.
type Config struct {
	MaxDepth   int `json:"maxDepth"`
	BucketSize int `json:"bucketSize"`
}

// DefaultConfig returns a depth of 8 with 16 points per bucket.
func DefaultConfig() Config {
	return Config{MaxDepth: 8, BucketSize: 16}
}

// Validate checks the ranges of the configuration.
func (c Config) Validate() error {
	if c.MaxDepth < 1 || c.MaxDepth > MaxDepthLimit {
		return fmt.Errorf("%w: max depth %d not in [1, %d]", ErrInvalidConfig, c.MaxDepth, MaxDepthLimit)
	}
	if c.BucketSize < 1 {
		return fmt.Errorf("%w: bucket size %d must be positive", ErrInvalidConfig, c.BucketSize)
	}
	return nil
}

type node struct {
	children [4]int32
	bucket   int32 // head of the bucket chain, meaningful for leaves only
}

type bucketList struct {
	next int32
	size int32
}

// Quadtree stores values of type T at points inside a fixed root bound.
type Quadtree[T any] struct {
	bounds     geometry.Rectangle
	maxDepth   int
	bucketSize int
	count      int

	nodes  []node
	lists  []bucketList
	items  []T
	points []geometry.Vector2D

	// redistribution scratch used by subdivide
	spillItems  []T
	spillPoints []geometry.Vector2D
}

// New returns an empty tree covering bounds.
func New[T any](bounds geometry.Rectangle, cfg Config) (*Quadtree[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	q := &Quadtree[T]{
		bounds:      bounds,
		maxDepth:    cfg.MaxDepth,
		bucketSize:  cfg.BucketSize,
		spillItems:  make([]T, cfg.BucketSize),
		spillPoints: make([]geometry.Vector2D, cfg.BucketSize),
	}
	q.Clear()
	return q, nil
}

// Bounds returns the root bound.
func (q *Quadtree[T]) Bounds() geometry.Rectangle {
	return q.bounds
}

// SetBounds changes the root bound. Points already stored are not moved,
// so it is meant to be called right after Clear.
func (q *Quadtree[T]) SetBounds(r geometry.Rectangle) {
	q.bounds = r
}

// Config returns the configuration the tree was built with.
func (q *Quadtree[T]) Config() Config {
	return Config{MaxDepth: q.maxDepth, BucketSize: q.bucketSize}
}

// Len returns the number of stored points.
func (q *Quadtree[T]) Len() int {
	return q.count
}

// Clear drops every point and leaves a single empty root leaf. Capacity is kept.
func (q *Quadtree[T]) Clear() {
	q.nodes = q.nodes[:0]
	q.lists = q.lists[:0]
	q.items = q.items[:0]
	q.points = q.points[:0]
	q.count = 0
	q.nodes = append(q.nodes, node{bucket: q.newBucket()})
}

// Reserve grows the arenas so that about n points can be inserted without reallocating.
func (q *Quadtree[T]) Reserve(n int) {
	buckets := 2 * (n/q.bucketSize + 1)
	q.lists = slices.Grow(q.lists, buckets)
	q.nodes = slices.Grow(q.nodes, buckets+buckets/3+1)
	q.items = slices.Grow(q.items, buckets*q.bucketSize)
	q.points = slices.Grow(q.points, buckets*q.bucketSize)
}

// Insert stores item at p. It returns false, leaving the tree unchanged,
// when p lies outside the root bound.
func (q *Quadtree[T]) Insert(item T, p geometry.Vector2D) bool {
	if !q.bounds.Contains(p) {
		return false
	}

	n := int32(0)
	bound := q.bounds
	depth := 0
	for {
		if q.nodes[n].children[0] != 0 {
			quad := bound.Quadrant(p)
			n = q.nodes[n].children[quad]
			bound = bound.Child(quad)
			depth++
			continue
		}

		head := q.nodes[n].bucket
		if int(q.lists[head].size) < q.bucketSize {
			q.put(head, item, p)
			return true
		}
		if depth < q.maxDepth {
			q.subdivide(n, bound)
			continue
		}

		// full leaf at the maximum depth: chain a new bucket in front
		b := q.newBucket()
		q.lists[b].next = head
		q.nodes[n].bucket = b
		q.put(b, item, p)
		return true
	}
}

// subdivide turns leaf n into an internal node. Its bucket is handed to the first
// child, the three others get fresh buckets, and the entries are redistributed.
func (q *Quadtree[T]) subdivide(n int32, bound geometry.Rectangle) {
	head := q.nodes[n].bucket
	first := int32(len(q.nodes))
	q.nodes = append(q.nodes,
		node{bucket: head},
		node{bucket: q.newBucket()},
		node{bucket: q.newBucket()},
		node{bucket: q.newBucket()},
	)
	q.nodes[n].children = [4]int32{first, first + 1, first + 2, first + 3}
	q.nodes[n].bucket = noBucket

	size := int(q.lists[head].size)
	base := int(head) * q.bucketSize
	copy(q.spillItems, q.items[base:base+size])
	copy(q.spillPoints, q.points[base:base+size])
	q.lists[head].size = 0
	q.count -= size

	for i := range size {
		p := q.spillPoints[i]
		child := first + int32(bound.Quadrant(p))
		q.put(q.nodes[child].bucket, q.spillItems[i], p)
	}
}

func (q *Quadtree[T]) newBucket() int32 {
	b := int32(len(q.lists))
	q.lists = append(q.lists, bucketList{next: noBucket})
	need := len(q.items) + q.bucketSize
	q.items = slices.Grow(q.items, q.bucketSize)[:need]
	q.points = slices.Grow(q.points, q.bucketSize)[:need]
	return b
}

func (q *Quadtree[T]) put(b int32, item T, p geometry.Vector2D) {
	i := int(b)*q.bucketSize + int(q.lists[b].size)
	q.items[i] = item
	q.points[i] = p
	q.lists[b].size++
	q.count++
}

type frame struct {
	node  int32
	next  int32 // next quadrant to visit
	bound geometry.Rectangle
}

// Search appends to results every item whose point lies inside area (edges included)
// and returns the extended slice. results is never cleared. The order of the
// results is unspecified.
func (q *Quadtree[T]) Search(area geometry.Rectangle, results []T) []T {
	if !q.bounds.Intersects(area) {
		return results
	}

	var stack [MaxDepthLimit + 1]frame
	stack[0] = frame{node: 0, bound: q.bounds}
	top := 0
	for top >= 0 {
		f := &stack[top]
		nd := &q.nodes[f.node]
		if nd.children[0] == 0 {
			results = q.collect(nd.bucket, area, results)
			top--
			continue
		}
		if f.next == 4 {
			top--
			continue
		}
		quad := int(f.next)
		f.next++
		if !f.bound.ReachesQuadrant(area, quad) {
			continue
		}
		top++
		stack[top] = frame{node: nd.children[quad], bound: f.bound.Child(quad)}
	}
	return results
}

func (q *Quadtree[T]) collect(head int32, area geometry.Rectangle, results []T) []T {
	for b := head; b != noBucket; b = q.lists[b].next {
		base := int(b) * q.bucketSize
		for i := base; i < base+int(q.lists[b].size); i++ {
			if area.Contains(q.points[i]) {
				results = append(results, q.items[i])
			}
		}
	}
	return results
}

// ---------------------------------------------------------------------
// Read-only accessors, used to draw the tree
// ---------------------------------------------------------------------

// NodeCount returns the number of allocated nodes, the root included.
func (q *Quadtree[T]) NodeCount() int {
	return len(q.nodes)
}

// BucketCount returns the number of allocated buckets.
func (q *Quadtree[T]) BucketCount() int {
	return len(q.lists)
}

// HasChildren reports whether node n has been subdivided.
func (q *Quadtree[T]) HasChildren(n int) bool {
	return q.nodes[n].children[0] != 0
}

// Child returns the index of the child of n in quadrant quad.
func (q *Quadtree[T]) Child(n, quad int) int {
	return int(q.nodes[n].children[quad])
}

// NodeBucket returns the head bucket of leaf n, or -1 for an internal node.
func (q *Quadtree[T]) NodeBucket(n int) int {
	return int(q.nodes[n].bucket)
}

// BucketLen returns the number of points stored in bucket b.
func (q *Quadtree[T]) BucketLen(b int) int {
	return int(q.lists[b].size)
}

// BucketNext returns the bucket chained after b, or -1.
func (q *Quadtree[T]) BucketNext(b int) int {
	return int(q.lists[b].next)
}

// NodeView describes one node for visualization.
type NodeView struct {
	Index  int
	Depth  int
	Bounds geometry.Rectangle
	Leaf   bool
	Items  int // points held by a leaf, summed over its bucket chain
}

// Nodes yields every node depth first, children in quadrant order.
func (q *Quadtree[T]) Nodes() iter.Seq[NodeView] {
	return func(yield func(NodeView) bool) {
		type pending struct {
			node  int
			depth int
			bound geometry.Rectangle
		}
		stack := []pending{{node: 0, bound: q.bounds}}
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			v := NodeView{Index: p.node, Depth: p.depth, Bounds: p.bound, Leaf: !q.HasChildren(p.node)}
			if v.Leaf {
				for b := q.NodeBucket(p.node); b != noBucket; b = q.BucketNext(b) {
					v.Items += q.BucketLen(b)
				}
			}
			if !yield(v) {
				return
			}
			if v.Leaf {
				continue
			}
			for quad := 3; quad >= 0; quad-- {
				stack = append(stack, pending{node: q.Child(p.node, quad), depth: p.depth + 1, bound: p.bound.Child(quad)})
			}
		}
	}
}

// Depth returns the depth of the deepest node.
func (q *Quadtree[T]) Depth() int {
	deepest := 0
	for v := range q.Nodes() {
		deepest = max(deepest, v.Depth)
	}
	return deepest
}
