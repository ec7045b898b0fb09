package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// A Collider describes the shape attached to a dynamic body. Shapes are
// convex; contact generation samples their corner points against the static
// arena and uses the bounding radius for body-body contacts.
type Collider interface {
	// Points returns the local-space corner points used for plane contacts.
	Points() []mgl32.Vec3
	// SurfaceRadius is an extra radius added around the corner points,
	// non-zero for shapes with rounded edges.
	SurfaceRadius() float32
	// BoundingRadius returns the radius of the smallest sphere centred at
	// the origin that contains the shape.
	BoundingRadius() float32
	// Volume returns the approximate volume, used with the body density to
	// derive its mass.
	Volume() float32
}

// RoundCuboid is a cube with chamfered edges: a core cube of the given half
// extent grown by Radius in every direction.
type RoundCuboid struct {
	HalfExtent float32
	Radius     float32
}

func (c RoundCuboid) Points() []mgl32.Vec3 {
	h := c.HalfExtent
	pts := make([]mgl32.Vec3, 0, 8)
	for _, x := range [2]float32{-h, h} {
		for _, y := range [2]float32{-h, h} {
			for _, z := range [2]float32{-h, h} {
				pts = append(pts, mgl32.Vec3{x, y, z})
			}
		}
	}
	return pts
}

func (c RoundCuboid) SurfaceRadius() float32 { return c.Radius }

func (c RoundCuboid) BoundingRadius() float32 {
	return c.HalfExtent*sqrt3 + c.Radius
}

func (c RoundCuboid) Volume() float32 {
	side := 2 * (c.HalfExtent + c.Radius)
	return side * side * side
}

// ConvexHull is the convex hull of a fixed vertex set.
type ConvexHull struct {
	Vertices []mgl32.Vec3
}

func (c ConvexHull) Points() []mgl32.Vec3 { return c.Vertices }

func (c ConvexHull) SurfaceRadius() float32 { return 0 }

func (c ConvexHull) BoundingRadius() float32 {
	var max float32
	for _, v := range c.Vertices {
		if d := v.Len(); d > max {
			max = d
		}
	}
	return max
}

func (c ConvexHull) Volume() float32 {
	// The hulls used here are regular polyhedra; a partially filled bounding
	// sphere is close enough for mass purposes.
	r := c.BoundingRadius()
	return hullFillFactor * (4.0 / 3.0) * math.Pi * r * r * r
}

const (
	sqrt3          = 1.7320508
	hullFillFactor = 0.5
)
