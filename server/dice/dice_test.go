package dice

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestFaceCounts(t *testing.T) {
	counts := map[Type]int{D4: 4, D6: 6, D8: 8, D10: 10, D12: 12, D20: 20}
	for typ, n := range counts {
		if got := len(Faces(typ)); got != n {
			t.Fatalf("expected %d faces for %v, got %d", n, typ, got)
		}
	}
}

func TestFaceNormalsUnit(t *testing.T) {
	for _, typ := range Types {
		for _, f := range Faces(typ) {
			if l := f.Normal.Len(); math.Abs(float64(l)-1) > 1e-4 {
				t.Fatalf("%v face %d normal has length %v", typ, f.Value, l)
			}
		}
	}
}

func TestD6OppositeFacesSumToSeven(t *testing.T) {
	faces := Faces(D6)
	for _, f := range faces {
		opposite := f.Normal.Mul(-1)
		found := false
		for _, g := range faces {
			if g.Normal.Sub(opposite).Len() < 1e-5 {
				if f.Value+g.Value != 7 {
					t.Fatalf("faces %d and %d are opposite but sum to %d", f.Value, g.Value, f.Value+g.Value)
				}
				found = true
			}
		}
		if !found {
			t.Fatalf("no opposite face for %d", f.Value)
		}
	}
}

func TestD6FaceValues(t *testing.T) {
	for _, tc := range []struct {
		name     string
		rotation mgl32.Quat
		want     int
	}{
		{"identity", mgl32.QuatIdent(), 6},
		{"half turn about x", mgl32.QuatRotate(math.Pi, mgl32.Vec3{1, 0, 0}), 1},
		{"quarter turn about x", mgl32.QuatRotate(math.Pi/2, mgl32.Vec3{1, 0, 0}), 5},
		{"quarter turn about z", mgl32.QuatRotate(math.Pi/2, mgl32.Vec3{0, 0, 1}), 3},
	} {
		if got := DetectFaceValue(tc.rotation, D6); got != tc.want {
			t.Fatalf("%s: expected face %d, got %d", tc.name, tc.want, got)
		}
	}
}

func TestD4ReadsDownwardFace(t *testing.T) {
	// A d4 result is the face pointing down, not up. At identity orientation
	// the first downward-most face in table order is 2.
	if got := DetectFaceValue(mgl32.QuatIdent(), D4); got != 2 {
		t.Fatalf("expected face 2, got %d", got)
	}
}

func TestD10ValuesZeroToNine(t *testing.T) {
	seen := make(map[int]bool)
	for _, f := range Faces(D10) {
		if f.Value < 0 || f.Value > 9 {
			t.Fatalf("d10 face value %d out of range", f.Value)
		}
		if seen[f.Value] {
			t.Fatalf("duplicate d10 face value %d", f.Value)
		}
		seen[f.Value] = true
	}
}

func TestDetectFaceValueInRange(t *testing.T) {
	max := map[Type]int{D4: 4, D6: 6, D8: 8, D12: 12, D20: 20}
	for typ, upper := range max {
		for i := 0; i < 50; i++ {
			q := mgl32.AnglesToQuat(
				float32(i)*0.37,
				float32(i)*0.73,
				float32(i)*1.19,
				mgl32.XYZ,
			)
			v := DetectFaceValue(q, typ)
			if v < 1 || v > upper {
				t.Fatalf("%v produced face value %d", typ, v)
			}
		}
	}
}

func TestRollImpulseRange(t *testing.T) {
	for i := 0; i < 100; i++ {
		imp := RollImpulse()
		if imp[1] < RollVerticalMin || imp[1] > RollVerticalMax {
			t.Fatalf("vertical impulse %v out of range", imp[1])
		}
		h := mgl32.Vec2{imp[0], imp[2]}.Len()
		if h < RollHorizontalMin-1e-4 || h > RollHorizontalMax+1e-4 {
			t.Fatalf("horizontal impulse %v out of range", h)
		}
	}
}

func TestRollTorqueRange(t *testing.T) {
	for i := 0; i < 100; i++ {
		tq := RollTorque()
		for axis := 0; axis < 3; axis++ {
			if tq[axis] < -5 || tq[axis] > 5 {
				t.Fatalf("torque %v out of range", tq)
			}
		}
	}
}

func TestSpawnPositionBounds(t *testing.T) {
	for i := 0; i < 100; i++ {
		p := SpawnPosition()
		if p[0] < -3 || p[0] > 3 || p[2] < -2 || p[2] > 2 {
			t.Fatalf("spawn position %v out of bounds", p)
		}
		if p[1] != 2 {
			t.Fatalf("spawn height %v, expected 2", p[1])
		}
	}
}

func TestTypeUnmarshal(t *testing.T) {
	var typ Type
	if err := json.Unmarshal([]byte(`"d6"`), &typ); err != nil {
		t.Fatalf("failed to decode d6: %v", err)
	}
	if typ != D6 {
		t.Fatalf("expected d6, got %v", typ)
	}
	if err := json.Unmarshal([]byte(`"d7"`), &typ); err == nil {
		t.Fatalf("expected error for unknown dice type")
	}
}

func TestVertexCounts(t *testing.T) {
	counts := map[Type]int{D4: 4, D8: 6, D10: 12, D12: 20, D20: 12}
	for typ, n := range counts {
		if got := len(Vertices(typ)); got != n {
			t.Fatalf("expected %d vertices for %v, got %d", n, typ, got)
		}
	}
}
