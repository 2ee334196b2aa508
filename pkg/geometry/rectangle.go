package geometry

import (
	"fmt"
	"math"
)

// Quadrant indices in the order children are stored and visited.
const (
	NorthEast = iota
	NorthWest
	SouthWest
	SouthEast
)

// QuadrantOffsets gives, for each quadrant, the direction of the child center
// from the parent center in units of the child half-extents.
var QuadrantOffsets = [4]Vector2D{
	NorthEast: {1, 1},
	NorthWest: {-1, 1},
	SouthWest: {-1, -1},
	SouthEast: {1, -1},
}

// Rectangle is an axis aligned box stored as a center and its half-extents.
// Size must not be negative.
type Rectangle struct {
	Center Vector2D `json:"center"`
	Size   Vector2D `json:"size"`
}

// NewRectangle builds a rectangle from its center and half-extents.
func NewRectangle(center, size Vector2D) Rectangle {
	return Rectangle{Center: center, Size: size}
}

// FromMinMax returns the smallest rectangle whose closed interval contains both corners.
// The half-extents are widened by one ulp when rounding would leave a corner outside.
func FromMinMax(lo, hi Vector2D) Rectangle {
	c := Vector2D{lo.X + (hi.X-lo.X)*0.5, lo.Y + (hi.Y-lo.Y)*0.5}
	r := Rectangle{
		Center: c,
		Size:   Vector2D{cover(c.X, lo.X, hi.X), cover(c.Y, lo.Y, hi.Y)},
	}
	return r
}

func cover(c, lo, hi float32) float32 {
	s := max(hi-c, c-lo)
	for c+s < hi || c-s > lo {
		s = math.Nextafter32(s, float32(math.Inf(1)))
	}
	return s
}

// String implements fmt.Stringer.
func (r Rectangle) String() string {
	return fmt.Sprintf("[center %s size %s]", r.Center, r.Size)
}

// Min returns the lower left corner.
func (r Rectangle) Min() Vector2D {
	return r.Center.Sub(r.Size)
}

// Max returns the upper right corner.
func (r Rectangle) Max() Vector2D {
	return r.Center.Add(r.Size)
}

// Contains reports whether p lies inside the rectangle, edges included.
func (r Rectangle) Contains(p Vector2D) bool {
	lo, hi := r.Min(), r.Max()
	return p.X >= lo.X && p.X <= hi.X && p.Y >= lo.Y && p.Y <= hi.Y
}

// ContainsRect reports whether o lies completely inside r, edges included.
func (r Rectangle) ContainsRect(o Rectangle) bool {
	lo, hi := r.Min(), r.Max()
	olo, ohi := o.Min(), o.Max()
	return olo.X >= lo.X && ohi.X <= hi.X && olo.Y >= lo.Y && ohi.Y <= hi.Y
}

// Intersects reports whether the two rectangles overlap. Touching edges count as overlap.
func (r Rectangle) Intersects(o Rectangle) bool {
	lo, hi := r.Min(), r.Max()
	olo, ohi := o.Min(), o.Max()
	return !(ohi.X < lo.X || olo.X > hi.X || ohi.Y < lo.Y || olo.Y > hi.Y)
}

// Quadrant classifies p relative to the center: points on a split line belong
// to the east or north side.
func (r Rectangle) Quadrant(p Vector2D) int {
	east := p.X >= r.Center.X
	north := p.Y >= r.Center.Y
	switch {
	case east && north:
		return NorthEast
	case north:
		return NorthWest
	case !east:
		return SouthWest
	default:
		return SouthEast
	}
}

// Child returns the bound of quadrant q: half the size, center moved along QuadrantOffsets[q].
func (r Rectangle) Child(q int) Rectangle {
	half := r.Size.Mul(0.5)
	return Rectangle{
		Center: r.Center.Add(half.MulVec(QuadrantOffsets[q])),
		Size:   half,
	}
}

// ReachesQuadrant reports whether area can hold a point that Quadrant would put in q.
// It only looks at the split lines through the center, so it agrees exactly with Quadrant.
func (r Rectangle) ReachesQuadrant(area Rectangle, q int) bool {
	lo, hi := area.Min(), area.Max()
	off := QuadrantOffsets[q]
	var xOK, yOK bool
	if off.X > 0 {
		xOK = hi.X >= r.Center.X
	} else {
		xOK = lo.X < r.Center.X
	}
	if off.Y > 0 {
		yOK = hi.Y >= r.Center.Y
	} else {
		yOK = lo.Y < r.Center.Y
	}
	return xOK && yOK
}

// Scale returns a rectangle with the same center and half-extents multiplied by f.
func (r Rectangle) Scale(f float32) Rectangle {
	return Rectangle{Center: r.Center, Size: r.Size.Mul(f)}
}

// Width returns the full horizontal extent.
func (r Rectangle) Width() float32 {
	return 2 * r.Size.X
}

// Height returns the full vertical extent.
func (r Rectangle) Height() float32 {
	return 2 * r.Size.Y
}

// BoundsOf returns the tight bound of the points, or the zero rectangle when there are none.
func BoundsOf(points []Vector2D) Rectangle {
	if len(points) == 0 {
		return Rectangle{}
	}
	lo, hi := points[0], points[0]
	for _, p := range points[1:] {
		lo.X, lo.Y = min(lo.X, p.X), min(lo.Y, p.Y)
		hi.X, hi.Y = max(hi.X, p.X), max(hi.Y, p.Y)
	}
	return FromMinMax(lo, hi)
}
