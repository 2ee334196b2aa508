package quadtree

import (
	"errors"
	"math/rand/v2"
	"slices"
	"sync"
	"testing"

	"github.com/lao-tseu-is-alive/go-flox/pkg/geometry"
)

var world = geometry.NewRectangle(geometry.Vector2D{}, geometry.Vector2D{X: 200, Y: 200})

func newTree(t testing.TB, cfg Config) *Quadtree[int32] {
	t.Helper()
	q, err := New[int32](world, cfg)
	if err != nil {
		t.Fatalf("New(%v) failed: %v", cfg, err)
	}
	return q
}

func randomPoints(rng *rand.Rand, n int, r geometry.Rectangle) []geometry.Vector2D {
	lo := r.Min()
	pts := make([]geometry.Vector2D, n)
	for i := range pts {
		pts[i] = geometry.Vector2D{
			X: lo.X + float32(rng.Float64())*r.Width(),
			Y: lo.Y + float32(rng.Float64())*r.Height(),
		}
	}
	return pts
}

func bruteForce(pts []geometry.Vector2D, area geometry.Rectangle) []int32 {
	var out []int32
	for i, p := range pts {
		if area.Contains(p) {
			out = append(out, int32(i))
		}
	}
	return out
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"default", DefaultConfig(), false},
		{"depth zero", Config{MaxDepth: 0, BucketSize: 16}, true},
		{"depth too deep", Config{MaxDepth: MaxDepthLimit + 1, BucketSize: 16}, true},
		{"empty buckets", Config{MaxDepth: 8, BucketSize: 0}, true},
		{"single slot buckets", Config{MaxDepth: MaxDepthLimit, BucketSize: 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New[int32](world, tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New(%v) error = %v; wantErr %v", tt.cfg, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("error %v does not wrap ErrInvalidConfig", err)
			}
		})
	}
}

func TestSearchMatchesBruteForce(t *testing.T) {
	configs := []Config{
		DefaultConfig(),
		{MaxDepth: 1, BucketSize: 4},
		{MaxDepth: 12, BucketSize: 1},
	}
	rng := rand.New(rand.NewPCG(42, 1024))
	for _, cfg := range configs {
		q := newTree(t, cfg)
		for round := range 5 {
			q.Clear()
			pts := randomPoints(rng, 50+round*400, world)
			for i, p := range pts {
				if !q.Insert(int32(i), p) {
					t.Fatalf("Insert(%d, %v) rejected a point inside %v", i, p, world)
				}
			}
			if q.Len() != len(pts) {
				t.Fatalf("Len() = %d; want %d", q.Len(), len(pts))
			}
			for range 100 {
				area := geometry.NewRectangle(
					randomPoints(rng, 1, world.Scale(1.2))[0],
					geometry.Vector2D{X: float32(rng.Float64() * 60), Y: float32(rng.Float64() * 60)},
				)
				got := q.Search(area, nil)
				want := bruteForce(pts, area)
				slices.Sort(got)
				if !slices.Equal(got, want) {
					t.Fatalf("cfg %v: Search(%v) returned %d items, brute force %d", cfg, area, len(got), len(want))
				}
			}
		}
	}
}

func TestSearchAppendsWithoutClearing(t *testing.T) {
	q := newTree(t, DefaultConfig())
	q.Insert(7, geometry.Vector2D{X: 1, Y: 1})
	results := []int32{99}
	results = q.Search(world, results)
	if !slices.Equal(results, []int32{99, 7}) {
		t.Errorf("Search appended to %v; want [99 7]", results)
	}
}

func TestSearchOutsideRoot(t *testing.T) {
	q := newTree(t, DefaultConfig())
	q.Insert(1, geometry.Vector2D{X: 10, Y: 10})
	far := geometry.NewRectangle(geometry.Vector2D{X: 1000, Y: 1000}, geometry.Vector2D{X: 5, Y: 5})
	if got := q.Search(far, nil); len(got) != 0 {
		t.Errorf("Search outside root returned %v", got)
	}
}

func TestInsertOutOfBounds(t *testing.T) {
	q := newTree(t, DefaultConfig())
	outside := []geometry.Vector2D{
		{X: 200.5, Y: 0},
		{X: 0, Y: -201},
		{X: 1e9, Y: 1e9},
	}
	for _, p := range outside {
		if q.Insert(1, p) {
			t.Errorf("Insert(%v) = true; want false", p)
		}
	}
	if q.Len() != 0 || q.NodeCount() != 1 {
		t.Errorf("tree changed after rejected inserts: len %d nodes %d", q.Len(), q.NodeCount())
	}
	if !q.Insert(2, geometry.Vector2D{X: 200, Y: -200}) {
		t.Error("Insert on the root corner should succeed")
	}
}

func TestSubdivision(t *testing.T) {
	cfg := DefaultConfig()
	q := newTree(t, cfg)
	rng := rand.New(rand.NewPCG(3, 5))
	pts := randomPoints(rng, cfg.BucketSize, world)
	for i, p := range pts {
		q.Insert(int32(i), p)
	}
	if q.HasChildren(0) {
		t.Fatalf("root subdivided with only %d points", cfg.BucketSize)
	}
	q.Insert(int32(len(pts)), geometry.Vector2D{X: 1, Y: 1})
	if !q.HasChildren(0) {
		t.Fatal("root should have children after BucketSize+1 inserts")
	}

	total := 0
	for v := range q.Nodes() {
		if !v.Leaf {
			continue
		}
		total += v.Items
		if q.BucketNext(q.NodeBucket(v.Index)) != -1 {
			t.Errorf("leaf %d at depth %d has a bucket chain", v.Index, v.Depth)
		}
		if v.Items > cfg.BucketSize {
			t.Errorf("leaf %d holds %d items; bucket size is %d", v.Index, v.Items, cfg.BucketSize)
		}
	}
	if total != cfg.BucketSize+1 {
		t.Errorf("leaves hold %d items; want %d", total, cfg.BucketSize+1)
	}
}

func TestMaxDepthChaining(t *testing.T) {
	cfg := Config{MaxDepth: 1, BucketSize: 16}
	q := newTree(t, cfg)
	p := geometry.Vector2D{X: 50, Y: 50}
	for i := range 40 {
		if !q.Insert(int32(i), p) {
			t.Fatalf("Insert %d rejected", i)
		}
	}
	if q.NodeCount() != 5 {
		t.Fatalf("NodeCount() = %d; want 5 (root and four children)", q.NodeCount())
	}
	if d := q.Depth(); d != cfg.MaxDepth {
		t.Errorf("Depth() = %d; want %d", d, cfg.MaxDepth)
	}

	leaf := q.Child(0, world.Quadrant(p))
	var sizes []int
	for b := q.NodeBucket(leaf); b != -1; b = q.BucketNext(b) {
		sizes = append(sizes, q.BucketLen(b))
	}
	if !slices.Equal(sizes, []int{8, 16, 16}) {
		t.Errorf("chain sizes = %v; want [8 16 16]", sizes)
	}

	got := q.Search(geometry.NewRectangle(p, geometry.Vector2D{}), nil)
	if len(got) != 40 {
		t.Errorf("Search on the shared point found %d items; want 40", len(got))
	}
}

func TestClearReusesTree(t *testing.T) {
	q := newTree(t, DefaultConfig())
	rng := rand.New(rand.NewPCG(9, 9))
	for i, p := range randomPoints(rng, 1000, world) {
		q.Insert(int32(i), p)
	}
	q.Clear()
	if q.Len() != 0 || q.NodeCount() != 1 || q.BucketCount() != 1 {
		t.Fatalf("after Clear: len %d nodes %d buckets %d", q.Len(), q.NodeCount(), q.BucketCount())
	}
	if got := q.Search(world, nil); len(got) != 0 {
		t.Errorf("Search after Clear returned %d items", len(got))
	}

	q.SetBounds(geometry.NewRectangle(geometry.Vector2D{X: 500, Y: 500}, geometry.Vector2D{X: 10, Y: 10}))
	if q.Insert(1, geometry.Vector2D{}) {
		t.Error("origin should be outside the new bounds")
	}
	if !q.Insert(2, geometry.Vector2D{X: 505, Y: 495}) {
		t.Error("point inside the new bounds was rejected")
	}
}

func TestNodesCoverParent(t *testing.T) {
	q := newTree(t, Config{MaxDepth: 6, BucketSize: 2})
	rng := rand.New(rand.NewPCG(1, 1))
	for i, p := range randomPoints(rng, 300, world) {
		q.Insert(int32(i), p)
	}
	seen := 0
	for v := range q.Nodes() {
		seen++
		if v.Leaf {
			continue
		}
		for quad := range 4 {
			child := q.Child(v.Index, quad)
			if child == 0 {
				t.Fatalf("internal node %d has root as child", v.Index)
			}
			if want := v.Bounds.Child(quad); !v.Bounds.ContainsRect(want) {
				t.Fatalf("child bound %v escapes parent %v", want, v.Bounds)
			}
		}
	}
	if seen != q.NodeCount() {
		t.Errorf("Nodes() visited %d nodes; NodeCount() = %d", seen, q.NodeCount())
	}
}

func TestConcurrentSearch(t *testing.T) {
	q := newTree(t, DefaultConfig())
	rng := rand.New(rand.NewPCG(77, 13))
	pts := randomPoints(rng, 2000, world)
	for i, p := range pts {
		q.Insert(int32(i), p)
	}
	area := geometry.NewRectangle(geometry.Vector2D{X: 20, Y: -30}, geometry.Vector2D{X: 40, Y: 25})
	want := bruteForce(pts, area)

	var wg sync.WaitGroup
	errs := make(chan string, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var buf []int32
			for range 50 {
				buf = q.Search(area, buf[:0])
				got := slices.Clone(buf)
				slices.Sort(got)
				if !slices.Equal(got, want) {
					errs <- "concurrent Search returned a different result set"
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Error(e)
	}
}

func BenchmarkInsert(b *testing.B) {
	q := newTree(b, DefaultConfig())
	rng := rand.New(rand.NewPCG(1, 2))
	pts := randomPoints(rng, 10000, world)
	q.Reserve(len(pts))
	b.ResetTimer()
	for b.Loop() {
		q.Clear()
		for i, p := range pts {
			q.Insert(int32(i), p)
		}
	}
}

func BenchmarkSearch(b *testing.B) {
	q := newTree(b, DefaultConfig())
	rng := rand.New(rand.NewPCG(1, 2))
	pts := randomPoints(rng, 10000, world)
	for i, p := range pts {
		q.Insert(int32(i), p)
	}
	var results []int32
	b.ResetTimer()
	for b.Loop() {
		for _, p := range pts[:1000] {
			results = q.Search(geometry.NewRectangle(p, geometry.Vector2D{X: 15, Y: 15}), results[:0])
		}
	}
}
