package dice

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Face pairs a face value with the outward unit normal at the centre of that
// face in the die's local space.
type Face struct {
	Value  int
	Normal mgl32.Vec3
}

// Faces returns the ordered face-normal table for a die type. The tables are
// a wire-level contract with the client renderer: values and normals must
// match the digit textures exactly.
func Faces(t Type) []Face {
	switch t {
	case D4:
		s := float32(1 / math.Sqrt(3))
		return []Face{
			{1, mgl32.Vec3{s, s, s}},
			{2, mgl32.Vec3{s, -s, -s}},
			{3, mgl32.Vec3{-s, s, -s}},
			{4, mgl32.Vec3{-s, -s, s}},
		}
	case D6:
		// Opposite faces sum to 7.
		return []Face{
			{1, mgl32.Vec3{0, -1, 0}},
			{2, mgl32.Vec3{0, 0, 1}},
			{3, mgl32.Vec3{1, 0, 0}},
			{4, mgl32.Vec3{-1, 0, 0}},
			{5, mgl32.Vec3{0, 0, -1}},
			{6, mgl32.Vec3{0, 1, 0}},
		}
	case D8:
		s := float32(1 / math.Sqrt(3))
		return []Face{
			{1, mgl32.Vec3{s, s, s}},
			{2, mgl32.Vec3{-s, s, s}},
			{3, mgl32.Vec3{s, s, -s}},
			{4, mgl32.Vec3{-s, s, -s}},
			{5, mgl32.Vec3{s, -s, s}},
			{6, mgl32.Vec3{-s, -s, s}},
			{7, mgl32.Vec3{s, -s, -s}},
			{8, mgl32.Vec3{-s, -s, -s}},
		}
	case D10:
		// Kite faces: upper ring reads 0,2,4,6,8 and the staggered lower
		// ring 3,1,9,7,5.
		upper := [5]int{0, 2, 4, 6, 8}
		lower := [5]int{3, 1, 9, 7, 5}
		faces := make([]Face, 0, 10)
		for i := 0; i < 5; i++ {
			angle := float32(i) * tau / 5
			faces = append(faces, Face{
				Value:  upper[i],
				Normal: mgl32.Vec3{cosf(angle), 0.3, sinf(angle)}.Normalize(),
			})
		}
		for i := 0; i < 5; i++ {
			angle := float32(i)*tau/5 + tau/10
			faces = append(faces, Face{
				Value:  lower[i],
				Normal: mgl32.Vec3{cosf(angle), -0.3, sinf(angle)}.Normalize(),
			})
		}
		return faces
	case D12:
		const (
			a = 0.5257311 // 1/sqrt(phi+2)
			b = 0.8506508 // phi/sqrt(phi+2)
		)
		return []Face{
			{1, mgl32.Vec3{0, b, a}},
			{2, mgl32.Vec3{0, b, -a}},
			{3, mgl32.Vec3{0, -b, a}},
			{4, mgl32.Vec3{0, -b, -a}},
			{5, mgl32.Vec3{a, 0, b}},
			{6, mgl32.Vec3{-a, 0, b}},
			{7, mgl32.Vec3{a, 0, -b}},
			{8, mgl32.Vec3{-a, 0, -b}},
			{9, mgl32.Vec3{b, a, 0}},
			{10, mgl32.Vec3{-b, a, 0}},
			{11, mgl32.Vec3{b, -a, 0}},
			{12, mgl32.Vec3{-b, -a, 0}},
		}
	case D20:
		return d20Faces()
	default:
		return nil
	}
}

// d20Faces derives the 20 face normals as normalised centroids of the
// icosahedron's triangular faces. The vertex order and the index triples fix
// the value-by-position numbering used by the client.
func d20Faces() []Face {
	phi := float32((1 + math.Sqrt(5)) / 2)
	a, b := float32(1), phi
	verts := [12]mgl32.Vec3{
		{-a, b, 0}, {a, b, 0},
		{-a, -b, 0}, {a, -b, 0},
		{0, -a, b}, {0, a, b},
		{0, -a, -b}, {0, a, -b},
		{b, 0, -a}, {b, 0, a},
		{-b, 0, -a}, {-b, 0, a},
	}
	triples := [20][3]int{
		{0, 11, 5}, {0, 5, 1}, {0, 1, 7}, {0, 7, 10}, {0, 10, 11},
		{1, 5, 9}, {5, 11, 4}, {11, 10, 2}, {10, 7, 6}, {7, 1, 8},
		{3, 9, 4}, {3, 4, 2}, {3, 2, 6}, {3, 6, 8}, {3, 8, 9},
		{4, 9, 5}, {2, 4, 11}, {6, 2, 10}, {8, 6, 7}, {9, 8, 1},
	}
	faces := make([]Face, 20)
	for i, tri := range triples {
		centre := verts[tri[0]].Add(verts[tri[1]]).Add(verts[tri[2]]).Mul(1.0 / 3.0)
		faces[i] = Face{Value: i + 1, Normal: centre.Normalize()}
	}
	return faces
}

// DetectFaceValue returns the face value visible from above for a die in the
// given orientation.
//
// Each face normal is rotated into world space and dotted against the read
// direction; the face with the largest dot product wins, with ties broken by
// table order. A d4 rests on a face and shows its number at the upward
// vertex, so it reads the face pointing down; every other type reads the
// face pointing up.
func DetectFaceValue(rotation mgl32.Quat, t Type) int {
	target := mgl32.Vec3{0, 1, 0}
	if t == D4 {
		target = mgl32.Vec3{0, -1, 0}
	}

	best := 1
	bestDot := float32(math.Inf(-1))
	for _, face := range Faces(t) {
		if dot := rotation.Rotate(face.Normal).Dot(target); dot > bestDot {
			bestDot = dot
			best = face.Value
		}
	}
	return best
}
