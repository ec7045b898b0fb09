// Package dice defines the polyhedral die types, their collider geometry and
// the face-normal tables shared with the client renderer.
package dice

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/dicesuki/dicesuki/server/physics"
)

// Type is one of the six supported die types. It serialises as its lowercase
// tag ("d4" ... "d20").
type Type string

const (
	D4  Type = "d4"
	D6  Type = "d6"
	D8  Type = "d8"
	D10 Type = "d10"
	D12 Type = "d12"
	D20 Type = "d20"
)

// Types lists every supported die type.
var Types = []Type{D4, D6, D8, D10, D12, D20}

// Valid reports whether t is a known die type.
func (t Type) Valid() bool {
	switch t {
	case D4, D6, D8, D10, D12, D20:
		return true
	}
	return false
}

// UnmarshalJSON rejects unknown die type tags so that malformed spawns fail
// at the protocol boundary.
func (t *Type) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if !Type(s).Valid() {
		return fmt.Errorf("unknown dice type %q", s)
	}
	*t = Type(s)
	return nil
}

// Size is the half-extent of a d6 and the approximate radius of every other
// die type.
const Size = 0.5

const tau = 2 * math.Pi

// Shape returns the collider for a die type. The d6 is the only rounded
// shape: a chamfered cuboid matching the client's visual edge rounding.
// Every other type is the convex hull of its vertex set.
func Shape(t Type) physics.Collider {
	if t == D6 {
		return physics.RoundCuboid{
			HalfExtent: Size - physics.EdgeChamferRadius,
			Radius:     physics.EdgeChamferRadius,
		}
	}
	return physics.ConvexHull{Vertices: Vertices(t)}
}

// Vertices returns the local-space vertex set of a die type.
func Vertices(t Type) []mgl32.Vec3 {
	s := float32(Size)
	switch t {
	case D4:
		// Regular tetrahedron, vertex parity {+++, +--, -+-, --+}.
		a := s
		return []mgl32.Vec3{
			{a, a, a},
			{a, -a, -a},
			{-a, a, -a},
			{-a, -a, a},
		}
	case D8:
		a := s
		return []mgl32.Vec3{
			{a, 0, 0}, {-a, 0, 0},
			{0, a, 0}, {0, -a, 0},
			{0, 0, a}, {0, 0, -a},
		}
	case D10:
		// Pentagonal trapezohedron: two staggered pentagons of kite
		// vertices plus the two apex points.
		top, bot := s*0.8, -s*0.8
		midTop, midBot := s*0.3, -s*0.3
		r := s * 0.9
		verts := make([]mgl32.Vec3, 0, 12)
		for i := 0; i < 5; i++ {
			angle := float32(i) * tau / 5
			offset := angle + tau/10
			verts = append(verts,
				mgl32.Vec3{cosf(angle) * r, midTop, sinf(angle) * r},
				mgl32.Vec3{cosf(offset) * r, midBot, sinf(offset) * r},
			)
		}
		return append(verts,
			mgl32.Vec3{0, top, 0},
			mgl32.Vec3{0, bot, 0},
		)
	case D12:
		// Dodecahedron: cube vertices plus golden-ratio rectangles.
		phi := float32((1 + math.Sqrt(5)) / 2)
		a := s * 0.5
		b := s * 0.5 / phi
		c := s * 0.5 * phi
		verts := make([]mgl32.Vec3, 0, 20)
		for _, x := range [2]float32{-a, a} {
			for _, y := range [2]float32{-a, a} {
				for _, z := range [2]float32{-a, a} {
					verts = append(verts, mgl32.Vec3{x, y, z})
				}
			}
		}
		return append(verts,
			mgl32.Vec3{0, b, c}, mgl32.Vec3{0, b, -c}, mgl32.Vec3{0, -b, c}, mgl32.Vec3{0, -b, -c},
			mgl32.Vec3{b, c, 0}, mgl32.Vec3{b, -c, 0}, mgl32.Vec3{-b, c, 0}, mgl32.Vec3{-b, -c, 0},
			mgl32.Vec3{c, 0, b}, mgl32.Vec3{c, 0, -b}, mgl32.Vec3{-c, 0, b}, mgl32.Vec3{-c, 0, -b},
		)
	case D20:
		phi := float32((1 + math.Sqrt(5)) / 2)
		a := s * 0.5
		b := s * 0.5 * phi
		return []mgl32.Vec3{
			{-a, b, 0}, {a, b, 0}, {-a, -b, 0}, {a, -b, 0},
			{0, -a, b}, {0, a, b}, {0, -a, -b}, {0, a, -b},
			{b, 0, -a}, {b, 0, a}, {-b, 0, -a}, {-b, 0, a},
		}
	default:
		// d6 colliders are rounded cuboids; the cube vertices are kept for
		// completeness.
		a := s
		return []mgl32.Vec3{
			{-a, -a, -a}, {a, -a, -a}, {-a, a, -a}, {a, a, -a},
			{-a, -a, a}, {a, -a, a}, {-a, a, a}, {a, a, a},
		}
	}
}

// Roll impulse parameters, matching the client-side throw.
const (
	RollHorizontalMin = 1.0
	RollHorizontalMax = 3.0
	RollVerticalMin   = 3.0
	RollVerticalMax   = 5.0
)

// RollImpulse generates a random throw impulse: a horizontal component with
// uniform direction in the XZ plane and an upward component.
func RollImpulse() mgl32.Vec3 {
	angle := rand.Float32() * tau
	horizontal := rangef(RollHorizontalMin, RollHorizontalMax)
	vertical := rangef(RollVerticalMin, RollVerticalMax)
	return mgl32.Vec3{
		cosf(angle) * horizontal,
		vertical,
		sinf(angle) * horizontal,
	}
}

// RollTorque generates a random angular impulse for tumbling.
func RollTorque() mgl32.Vec3 {
	return mgl32.Vec3{
		rangef(-5, 5),
		rangef(-5, 5),
		rangef(-5, 5),
	}
}

// SpawnPosition returns a random position above the table for a newly
// spawned die.
func SpawnPosition() mgl32.Vec3 {
	return mgl32.Vec3{
		rangef(-3, 3),
		2,
		rangef(-2, 2),
	}
}

func rangef(min, max float32) float32 {
	return min + rand.Float32()*(max-min)
}

func cosf(v float32) float32 { return float32(math.Cos(float64(v))) }
func sinf(v float32) float32 { return float32(math.Sin(float64(v))) }
