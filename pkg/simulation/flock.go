package simulation

import (
	"math"

	"github.com/lao-tseu-is-alive/go-flox/pkg/algorithm"
	"github.com/lao-tseu-is-alive/go-flox/pkg/behavior"
	"github.com/lao-tseu-is-alive/go-flox/pkg/buffer"
	"github.com/lao-tseu-is-alive/go-flox/pkg/geometry"
)

const (
	spiralSpacing = 7.5
	resizeRadius  = 50
)

// Flock owns the boid state and hands it to an algorithm once per frame.
type Flock struct {
	boids    *algorithm.Boids
	maxSpeed float32
}

// NewFlock lays n boids out on a spiral around the origin, each one flying
// roughly along the spiral at maxSpeed.
func NewFlock(n int, maxSpeed float32) *Flock {
	f := &Flock{boids: buffer.NewDoubleBuffer[behavior.Boid](n), maxSpeed: maxSpeed}
	write := f.boids.Write()
	var angle float64
	for i := range write {
		radius := math.Sqrt(float64(i + 1))
		angle += math.Asin(1 / radius)
		offsets := geometry.NewVector(
			float32(math.Cos(angle)*radius*spiralSpacing),
			float32(math.Sin(angle)*radius*spiralSpacing),
		)
		write[i] = f.seed(offsets, float32(angle))
	}
	f.boids.Flip()
	return f
}

func (f *Flock) seed(offsets geometry.Vector2D, angle float32) behavior.Boid {
	heading := offsets.Mul(10).Add(geometry.NewVector(angle, angle))
	return behavior.Boid{Position: offsets, Velocity: heading.Magnitude(f.maxSpeed)}
}

// Update runs one frame of alg and publishes its result.
func (f *Flock) Update(alg algorithm.Algorithm, dt float32) error {
	if err := alg.Update(f.boids, dt); err != nil {
		return err
	}
	f.boids.Swap()
	return nil
}

// Boids returns the last computed frame. The slice is overwritten by the frame after next.
func (f *Flock) Boids() []behavior.Boid {
	return f.boids.Read()
}

// Len returns the number of boids.
func (f *Flock) Len() int {
	return f.boids.Count()
}

// Resize changes the population. New boids start on a ring of radius 50 around
// the origin, spread by the previous population size.
func (f *Flock) Resize(n int) {
	old := f.boids.Count()
	f.boids.Resize(n)
	if n <= old {
		return
	}
	step := 2 * math.Pi / float64(max(old, 1))
	read, write := f.boids.Read(), f.boids.Write()
	for i := old; i < n; i++ {
		angle := float64(i) * step
		offsets := geometry.NewVector(float32(math.Cos(angle)), float32(math.Sin(angle)))
		b := f.seed(offsets, float32(angle))
		b.Position = offsets.Mul(resizeRadius)
		read[i], write[i] = b, b
	}
}

// Snapshot copies the current frame.
func (f *Flock) Snapshot() []behavior.Boid {
	return append([]behavior.Boid(nil), f.boids.Read()...)
}
