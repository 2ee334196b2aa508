// Package behavior holds the boid state and the steering model shared by every update algorithm.
package behavior

import (
	"errors"
	"fmt"

	"github.com/lao-tseu-is-alive/go-flox/pkg/geometry"
)

// Boid represents a single entity in the flock.
// Boids is an artificial life program, developed by Craig Reynolds in 1986,
// which simulates the flocking behaviour of birds, and related group motion.
// https://en.wikipedia.org/wiki/Boids
//
// The layout is two packed vec2, which is also what the compute shader reads.
type Boid struct {
	Position geometry.Vector2D `json:"position"`
	Velocity geometry.Vector2D `json:"velocity"`
}

// ErrInvalidParams is returned by Params.Validate.
var ErrInvalidParams = errors.New("invalid behavior params")

// Weights scale each steering contribution before they are summed.
type Weights struct {
	Containment float32 `json:"containment"` // stay inside the world
	Cruise      float32 `json:"cruise"`      // keep flying at full speed
	Separation  float32 `json:"separation"`
	Alignment   float32 `json:"alignment"`
	Cohesion    float32 `json:"cohesion"`
}

// Params controls the physics constants for the simulation.
type Params struct {
	Scale            float32 `json:"scale"`
	MaxSpeed         float32 `json:"maxSpeed"`
	MaxForce         float32 `json:"maxForce"`
	DisruptiveRadius float32 `json:"disruptiveRadius"`
	CohesiveRadius   float32 `json:"cohesiveRadius"`
	// SoftBound and HardBound are fractions of the world half-extents.
	// Outside the soft one a boid steers home, outside the hard one twice as hard.
	SoftBound float32 `json:"softBound"`
	HardBound float32 `json:"hardBound"`
	Weights   Weights `json:"weights"`
}

// DefaultParams returns the reference tuning: scale 5, disruptive radius 1.5 scale,
// cohesive radius twice the disruptive one.
func DefaultParams() Params {
	const scale = 5
	return Params{
		Scale:            scale,
		MaxSpeed:         100,
		MaxForce:         3,
		DisruptiveRadius: 1.5 * scale,
		CohesiveRadius:   2 * 1.5 * scale,
		SoftBound:        0.75,
		HardBound:        0.90,
		Weights: Weights{
			Containment: 0.8,
			Cruise:      0.2,
			Separation:  1.0,
			Alignment:   0.6,
			Cohesion:    0.6,
		},
	}
}

// Validate checks that the parameters describe a usable model.
func (p Params) Validate() error {
	switch {
	case p.Scale <= 0:
		return fmt.Errorf("%w: scale %v must be positive", ErrInvalidParams, p.Scale)
	case p.MaxSpeed <= 0 || p.MaxForce <= 0:
		return fmt.Errorf("%w: max speed %v and max force %v must be positive", ErrInvalidParams, p.MaxSpeed, p.MaxForce)
	case p.DisruptiveRadius <= 0 || p.CohesiveRadius <= 0:
		return fmt.Errorf("%w: radii must be positive", ErrInvalidParams)
	case p.DisruptiveRadius > p.CohesiveRadius:
		return fmt.Errorf("%w: disruptive radius %v exceeds cohesive radius %v", ErrInvalidParams, p.DisruptiveRadius, p.CohesiveRadius)
	case p.SoftBound <= 0 || p.SoftBound > 1 || p.HardBound <= 0 || p.HardBound > 1:
		return fmt.Errorf("%w: bound factors must be in (0, 1]", ErrInvalidParams)
	case p.SoftBound > p.HardBound:
		return fmt.Errorf("%w: soft bound %v lies outside hard bound %v", ErrInvalidParams, p.SoftBound, p.HardBound)
	}
	return nil
}

// Steer returns the force turning velocity toward desired at full speed, capped at maxForce.
func Steer(desired, velocity geometry.Vector2D, maxSpeed, maxForce float32) geometry.Vector2D {
	return desired.Magnitude(maxSpeed).Sub(velocity).Truncate(maxForce)
}

// Steer is the package level Steer with the speed and force limits of p.
func (p Params) Steer(desired, velocity geometry.Vector2D) geometry.Vector2D {
	return Steer(desired, velocity, p.MaxSpeed, p.MaxForce)
}

// Body returns the scale sized box around b.
func (p Params) Body(b Boid) geometry.Rectangle {
	return geometry.NewRectangle(b.Position, geometry.Vector2D{X: p.Scale, Y: p.Scale})
}

// SearchArea returns the box that holds every neighbor inside the cohesive radius of b.
func (p Params) SearchArea(b Boid) geometry.Rectangle {
	return geometry.NewRectangle(b.Position, geometry.Vector2D{X: p.CohesiveRadius, Y: p.CohesiveRadius})
}

// Containment returns the steer back to the world center and its weight.
// A boid whose body is inside the soft bound gets a zero steer.
func (p Params) Containment(b Boid, world geometry.Rectangle) (geometry.Vector2D, float32) {
	body := p.Body(b)
	if world.Scale(p.SoftBound).ContainsRect(body) {
		return geometry.Vector2D{}, p.Weights.Containment
	}
	weight := p.Weights.Containment
	if !world.Scale(p.HardBound).ContainsRect(body) {
		weight *= 2
	}
	return p.Steer(world.Center.Sub(b.Position), b.Velocity), weight
}

// Neighborhood accumulates what one boid sees of the others.
// Both radii are compared strictly on squared distances.
type Neighborhood struct {
	self         Boid
	disruptiveSq float32
	cohesiveSq   float32

	separation geometry.Vector2D
	alignment  geometry.Vector2D
	cohesion   geometry.Vector2D
	disruptive int
	cohesive   int
}

// Neighborhood starts an empty accumulator for self.
func (p Params) Neighborhood(self Boid) Neighborhood {
	return Neighborhood{
		self:         self,
		disruptiveSq: p.DisruptiveRadius * p.DisruptiveRadius,
		cohesiveSq:   p.CohesiveRadius * p.CohesiveRadius,
	}
}

// Observe adds other to the neighborhood if it is close enough.
// The caller is responsible for not observing the boid itself.
func (n *Neighborhood) Observe(other Boid) {
	diff := n.self.Position.Sub(other.Position)
	d2 := diff.LenSqr()
	if d2 > 0 && d2 < n.disruptiveSq {
		n.separation = n.separation.Add(diff.Mul(1 / d2))
		n.disruptive++
	}
	if d2 < n.cohesiveSq {
		n.alignment = n.alignment.Add(other.Velocity)
		n.cohesion = n.cohesion.Add(other.Position)
		n.cohesive++
	}
}

// Self returns the boid the neighborhood was built for.
func (n *Neighborhood) Self() Boid {
	return n.self
}

// Counts returns how many neighbors fell inside the disruptive and the cohesive radius.
func (n *Neighborhood) Counts() (disruptive, cohesive int) {
	return n.disruptive, n.cohesive
}

// Acceleration sums the weighted steering forces for the neighborhood owner and
// truncates the result to MaxForce. Terms without neighbors contribute nothing.
func (p Params) Acceleration(n *Neighborhood, world geometry.Rectangle) geometry.Vector2D {
	self := n.self
	w := p.Weights

	containment, containmentWeight := p.Containment(self, world)
	acc := containment.Mul(containmentWeight)
	acc = acc.Add(p.Steer(self.Velocity, self.Velocity).Mul(w.Cruise))

	if n.disruptive > 0 {
		separation := n.separation.Mul(1 / float32(n.disruptive))
		acc = acc.Add(p.Steer(separation, self.Velocity).Mul(w.Separation))
	}
	if n.cohesive > 0 {
		inv := 1 / float32(n.cohesive)
		alignment := n.alignment.Mul(inv)
		acc = acc.Add(p.Steer(alignment, self.Velocity).Mul(w.Alignment))
		cohesion := n.cohesion.Mul(inv).Sub(self.Position)
		acc = acc.Add(p.Steer(cohesion, self.Velocity).Mul(w.Cohesion))
	}
	return acc.Truncate(p.MaxForce)
}

// Integrate applies one semi-implicit Euler step.
func Integrate(b Boid, acc geometry.Vector2D, dt float32) Boid {
	b.Velocity = b.Velocity.Add(acc)
	b.Position = b.Position.Add(b.Velocity.Mul(dt))
	return b
}

// Next returns the state of the neighborhood owner after dt.
func (p Params) Next(n *Neighborhood, world geometry.Rectangle, dt float32) Boid {
	return Integrate(n.self, p.Acceleration(n, world), dt)
}

// NextAllPairs returns the state of flock[i] after dt, observing every other boid of the flock.
func (p Params) NextAllPairs(i int, flock []Boid, world geometry.Rectangle, dt float32) Boid {
	n := p.Neighborhood(flock[i])
	for j := range flock {
		if j != i {
			n.Observe(flock[j])
		}
	}
	return p.Next(&n, world, dt)
}

// Bounds returns the tight box around the positions of the flock.
// An empty flock yields ok == false.
func Bounds(flock []Boid) (r geometry.Rectangle, ok bool) {
	if len(flock) == 0 {
		return geometry.Rectangle{}, false
	}
	lo, hi := flock[0].Position, flock[0].Position
	for _, b := range flock[1:] {
		lo.X, lo.Y = min(lo.X, b.Position.X), min(lo.Y, b.Position.Y)
		hi.X, hi.Y = max(hi.X, b.Position.X), max(hi.Y, b.Position.Y)
	}
	return geometry.FromMinMax(lo, hi), true
}
