package physics

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func testCollider() Collider {
	return RoundCuboid{HalfExtent: 0.42, Radius: EdgeChamferRadius}
}

func TestInsertAndQuery(t *testing.T) {
	w := NewWorld()
	h := w.InsertDice(testCollider(), mgl32.Vec3{1, 2, 3})
	if h == 0 {
		t.Fatalf("expected a non-zero handle")
	}
	pos, ok := w.Position(h)
	if !ok {
		t.Fatalf("body not found after insert")
	}
	if pos != (mgl32.Vec3{1, 2, 3}) {
		t.Fatalf("unexpected position %v", pos)
	}
	if _, ok := w.Rotation(h); !ok {
		t.Fatalf("rotation not found after insert")
	}
}

func TestRemove(t *testing.T) {
	w := NewWorld()
	h := w.InsertDice(testCollider(), mgl32.Vec3{0, 2, 0})
	w.Remove(h)
	if _, ok := w.Position(h); ok {
		t.Fatalf("body still present after removal")
	}
	// Unknown handles are ignored.
	w.Remove(h)
}

func TestGravityPullsDown(t *testing.T) {
	w := NewWorld()
	h := w.InsertDice(testCollider(), mgl32.Vec3{0, 5, 0})
	w.Step()
	if vel := w.LinearVelocity(h); vel[1] >= 0 {
		t.Fatalf("expected downward velocity after a step, got %v", vel)
	}
}

func TestDiceSettlesOnGround(t *testing.T) {
	w := NewWorld()
	h := w.InsertDice(testCollider(), mgl32.Vec3{0, 2, 0})
	for i := 0; i < 1200; i++ {
		w.Step()
	}
	pos, _ := w.Position(h)
	if pos[1] < -0.1 || pos[1] > 1.5 {
		t.Fatalf("die did not land on the ground, y = %v", pos[1])
	}
	if !w.AtRest(h) {
		t.Fatalf("die still moving after 1200 steps: linear %v angular %v",
			w.LinearSpeed(h), w.AngularSpeed(h))
	}
}

func TestRolledDiceStaysAtRest(t *testing.T) {
	w := NewWorld()
	h := w.InsertDice(testCollider(), mgl32.Vec3{0, 2, 0})
	w.ApplyImpulse(h, mgl32.Vec3{2, 4, 1})
	w.ApplyTorqueImpulse(h, mgl32.Vec3{3, -2, 4})

	// Settlement needs the body below the rest thresholds for 30 ticks in a
	// row, not just once.
	longest, run := 0, 0
	for i := 0; i < 1200; i++ {
		w.Step()
		if w.AtRest(h) {
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 0
		}
	}
	if longest < 30 {
		t.Fatalf("longest consecutive at-rest run %d ticks, need 30", longest)
	}
}

func TestThrownDiceStaysInArena(t *testing.T) {
	w := NewWorld()
	h := w.InsertDice(testCollider(), mgl32.Vec3{0, 2, 0})
	w.SetLinearVelocity(h, mgl32.Vec3{15, 5, 12})
	for i := 0; i < 1200; i++ {
		w.Step()
		pos, _ := w.Position(h)
		if pos[0] < -WallHalfX-1 || pos[0] > WallHalfX+1 ||
			pos[2] < -WallHalfZ-1 || pos[2] > WallHalfZ+1 {
			t.Fatalf("die escaped the arena at %v on step %d", pos, i)
		}
		if pos[1] > CeilingY+1 || pos[1] < -1 {
			t.Fatalf("die escaped vertically at %v on step %d", pos, i)
		}
	}
}

func TestImpulseChangesVelocity(t *testing.T) {
	w := NewWorld()
	h := w.InsertDice(testCollider(), mgl32.Vec3{0, 5, 0})
	before := w.LinearVelocity(h)
	w.ApplyImpulse(h, mgl32.Vec3{1, 0, 0})
	after := w.LinearVelocity(h)
	if after[0] <= before[0] {
		t.Fatalf("impulse did not increase x velocity: %v -> %v", before, after)
	}
	w.ApplyTorqueImpulse(h, mgl32.Vec3{0, 2, 0})
	if w.AngularSpeed(h) == 0 {
		t.Fatalf("torque impulse did not spin the body")
	}
}

func TestTwoDiceSeparate(t *testing.T) {
	w := NewWorld()
	a := w.InsertDice(testCollider(), mgl32.Vec3{0, 2, 0})
	b := w.InsertDice(testCollider(), mgl32.Vec3{0.1, 2.1, 0})
	for i := 0; i < 1200; i++ {
		w.Step()
	}
	pa, _ := w.Position(a)
	pb, _ := w.Position(b)
	if dist := pb.Sub(pa).Len(); dist < 0.5 {
		t.Fatalf("dice remained overlapping, distance %v", dist)
	}
}

func TestAtRestThresholds(t *testing.T) {
	w := NewWorld()
	h := w.InsertDice(testCollider(), mgl32.Vec3{0, 5, 0})
	w.SetLinearVelocity(h, mgl32.Vec3{0, 0, 0})
	w.SetAngularVelocity(h, mgl32.Vec3{0, 0, 0})
	if !w.AtRest(h) {
		t.Fatalf("zero-velocity body reported as moving")
	}
	w.SetLinearVelocity(h, mgl32.Vec3{1, 0, 0})
	if w.AtRest(h) {
		t.Fatalf("moving body reported at rest")
	}
}
