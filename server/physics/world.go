// Package physics implements the fixed-timestep rigid-body world backing a
// dice table: a static arena of six axis-aligned surfaces and dynamic convex
// dice bodies resolved with sequential impulses.
package physics

import (
	"math"
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl32"
)

// Constants shared with the client's physics configuration. Changing any of
// these desynchronises the server simulation from what clients render.
const (
	Gravity                  = -9.81
	DiceRestitution          = 0.3
	DiceFriction             = 0.6
	DiceDensity              = 1.0
	EdgeChamferRadius        = 0.08
	LinearVelocityThreshold  = 0.01
	AngularVelocityThreshold = 0.01

	GroundY       = -0.5
	CeilingY      = 15.0
	WallHalfX     = 8.0
	WallHalfZ     = 5.0
	WallHeight    = 8.0
	WallThickness = 0.5

	// TickRate is the number of integration steps per second.
	TickRate = 60
	// TimeStep is the integration step.
	TimeStep = 1.0 / TickRate
)

// Solver tuning. Positional correction follows the Baumgarte scheme; the
// restitution cutoff stops slow contacts from bouncing forever.
const (
	solverIterations  = 6
	correctionFactor  = 0.2
	penetrationSlop   = 0.005
	restitutionCutoff = 1.0
	linearDamping     = 0.999
	angularDamping    = 0.995
	restAssistLinear  = 0.3
	restAssistAngular = 1.0
	restAssistDamping = 0.8
	restSnapLinear    = 0.1
	restSnapAngular   = 0.15
)

// Handle identifies a dynamic body in a World. The zero Handle is never
// issued and refers to no body.
type Handle uint32

type body struct {
	pos    mgl32.Vec3
	orient mgl32.Quat
	linvel mgl32.Vec3
	angvel mgl32.Vec3

	invMass    float32
	invInertia float32

	collider    Collider
	restitution float32
	friction    float32

	// contacts counts arena/body contacts found during the last step; used
	// for the rest-assist damping that lets dice actually come to rest.
	contacts int
}

// surface is one static arena face. Points p with normal·p >= offset are on
// the inside of the arena.
type surface struct {
	normal      mgl32.Vec3
	offset      float32
	restitution float32
	friction    float32
}

// World holds the static arena and all dynamic dice bodies of one room.
// Worlds are not safe for concurrent use; the owning room serialises access.
type World struct {
	bodies map[Handle]*body
	next   Handle

	surfaces []surface
	gravity  mgl32.Vec3
}

// NewWorld creates a world with the fixed arena: ground, ceiling and four
// walls enclosing the visible table area.
func NewWorld() *World {
	w := &World{
		bodies:  make(map[Handle]*body),
		next:    1,
		gravity: mgl32.Vec3{0, Gravity, 0},
	}
	// The static boxes of the original arena reduce to their inward faces:
	// the ground body sits at GroundY with half height 0.5, so its top face
	// is at y = 0. The walls sit half a thickness outside WallHalfX/Z.
	w.surfaces = []surface{
		{normal: mgl32.Vec3{0, 1, 0}, offset: GroundY + 0.5, restitution: DiceRestitution, friction: DiceFriction},
		{normal: mgl32.Vec3{0, -1, 0}, offset: -(CeilingY - 0.5)},
		{normal: mgl32.Vec3{-1, 0, 0}, offset: -WallHalfX, restitution: DiceRestitution, friction: DiceFriction},
		{normal: mgl32.Vec3{1, 0, 0}, offset: -WallHalfX, restitution: DiceRestitution, friction: DiceFriction},
		{normal: mgl32.Vec3{0, 0, -1}, offset: -WallHalfZ, restitution: DiceRestitution, friction: DiceFriction},
		{normal: mgl32.Vec3{0, 0, 1}, offset: -WallHalfZ, restitution: DiceRestitution, friction: DiceFriction},
	}
	return w
}

// InsertDice adds a dynamic body with the given collider at a position,
// giving it a uniformly random initial orientation. Bodies never sleep;
// settlement is detected by the room through AtRest.
func (w *World) InsertDice(c Collider, pos mgl32.Vec3) Handle {
	const tau = 2 * math.Pi
	orient := mgl32.AnglesToQuat(
		rand.Float32()*tau,
		rand.Float32()*tau,
		rand.Float32()*tau,
		mgl32.XYZ,
	)
	mass := c.Volume() * DiceDensity
	r := c.BoundingRadius()
	// Solid-sphere inertia approximation keeps the angular response
	// isotropic, which is plenty for tumbling dice.
	inertia := 0.4 * mass * r * r

	h := w.next
	w.next++
	w.bodies[h] = &body{
		pos:         pos,
		orient:      orient.Normalize(),
		invMass:     1 / mass,
		invInertia:  1 / inertia,
		collider:    c,
		restitution: DiceRestitution,
		friction:    DiceFriction,
	}
	return h
}

// Remove deletes a body from the world. Removing an unknown handle is a
// no-op.
func (w *World) Remove(h Handle) {
	delete(w.bodies, h)
}

// Step advances the simulation by one TimeStep.
func (w *World) Step() {
	dt := float32(TimeStep)

	for _, b := range w.bodies {
		b.linvel = b.linvel.Add(w.gravity.Mul(dt))
		b.contacts = 0
	}

	for i := 0; i < solverIterations; i++ {
		for _, b := range w.bodies {
			w.solveSurfaces(b)
		}
		w.solvePairs()
	}

	for _, b := range w.bodies {
		w.correctSurfaces(b)

		b.pos = b.pos.Add(b.linvel.Mul(dt))
		if b.angvel.Dot(b.angvel) > 0 {
			dq := mgl32.Quat{W: 0, V: b.angvel.Mul(0.5 * dt)}.Mul(b.orient)
			b.orient = b.orient.Add(dq).Normalize()
		}

		b.linvel = b.linvel.Mul(linearDamping)
		b.angvel = b.angvel.Mul(angularDamping)
		if b.contacts > 0 {
			// The contact solve leaves residual jitter above the rest
			// thresholds even on a body that has visibly stopped. A
			// contacting body inside the snap band is stopped outright so
			// it can stay below the thresholds tick after tick; the wider
			// assist band above it bleeds slow tumbling into the snap band.
			switch {
			case b.linvel.Len() < restSnapLinear && b.angvel.Len() < restSnapAngular:
				b.linvel = mgl32.Vec3{}
				b.angvel = mgl32.Vec3{}
			case b.linvel.Len() < restAssistLinear && b.angvel.Len() < restAssistAngular:
				b.linvel = b.linvel.Mul(restAssistDamping)
				b.angvel = b.angvel.Mul(restAssistDamping)
			}
		}
	}
}

// solveSurfaces applies contact impulses between a body and every arena
// surface its corner points penetrate.
func (w *World) solveSurfaces(b *body) {
	radius := b.collider.SurfaceRadius()
	for si := range w.surfaces {
		s := &w.surfaces[si]
		for _, local := range b.collider.Points() {
			p := b.pos.Add(b.orient.Rotate(local))
			depth := s.offset - s.normal.Dot(p) + radius
			if depth < -penetrationSlop {
				continue
			}
			b.contacts++

			r := p.Sub(b.pos)
			vel := b.linvel.Add(b.angvel.Cross(r))
			vn := vel.Dot(s.normal)
			if vn >= 0 {
				continue
			}

			e := minf(b.restitution, s.restitution)
			if -vn < restitutionCutoff {
				e = 0
			}
			denom := b.invMass + b.invInertia*r.Cross(s.normal).Cross(r).Dot(s.normal)
			j := -(1 + e) * vn / denom
			impulse := s.normal.Mul(j)
			b.linvel = b.linvel.Add(impulse.Mul(b.invMass))
			b.angvel = b.angvel.Add(r.Cross(impulse).Mul(b.invInertia))

			// Coulomb friction against the updated point velocity.
			vel = b.linvel.Add(b.angvel.Cross(r))
			tangent := vel.Sub(s.normal.Mul(vel.Dot(s.normal)))
			speed := tangent.Len()
			if speed < 1e-5 {
				continue
			}
			dir := tangent.Mul(1 / speed)
			denomT := b.invMass + b.invInertia*r.Cross(dir).Cross(r).Dot(dir)
			jt := speed / denomT
			max := minf(b.friction, s.friction) * j
			if jt > max {
				jt = max
			}
			fr := dir.Mul(-jt)
			b.linvel = b.linvel.Add(fr.Mul(b.invMass))
			b.angvel = b.angvel.Add(r.Cross(fr).Mul(b.invInertia))
		}
	}
}

// correctSurfaces pushes a body out of any surface it still penetrates
// after the velocity solve.
func (w *World) correctSurfaces(b *body) {
	radius := b.collider.SurfaceRadius()
	for si := range w.surfaces {
		s := &w.surfaces[si]
		var deepest float32
		for _, local := range b.collider.Points() {
			p := b.pos.Add(b.orient.Rotate(local))
			if depth := s.offset - s.normal.Dot(p) + radius; depth > deepest {
				deepest = depth
			}
		}
		if deepest > penetrationSlop {
			b.pos = b.pos.Add(s.normal.Mul((deepest - penetrationSlop) * correctionFactor))
		}
	}
}

// solvePairs resolves body-body contacts with a bounding-sphere model. Dice
// are nearly spherical at this scale and the cheap model keeps piles from
// interlocking.
func (w *World) solvePairs() {
	handles := make([]Handle, 0, len(w.bodies))
	for h := range w.bodies {
		handles = append(handles, h)
	}
	for i := 0; i < len(handles); i++ {
		for k := i + 1; k < len(handles); k++ {
			a, b := w.bodies[handles[i]], w.bodies[handles[k]]
			d := b.pos.Sub(a.pos)
			minDist := a.collider.BoundingRadius() + b.collider.BoundingRadius()
			distSq := d.Dot(d)
			if distSq >= minDist*minDist || distSq == 0 {
				continue
			}
			dist := sqrtf(distSq)
			n := d.Mul(1 / dist)
			a.contacts++
			b.contacts++

			vn := b.linvel.Sub(a.linvel).Dot(n)
			if vn < 0 {
				e := minf(a.restitution, b.restitution)
				if -vn < restitutionCutoff {
					e = 0
				}
				j := -(1 + e) * vn / (a.invMass + b.invMass)
				a.linvel = a.linvel.Sub(n.Mul(j * a.invMass))
				b.linvel = b.linvel.Add(n.Mul(j * b.invMass))
			}

			overlap := minDist - dist
			push := n.Mul(overlap * correctionFactor * 0.5)
			a.pos = a.pos.Sub(push)
			b.pos = b.pos.Add(push)
		}
	}
}

// Position returns the body position, or false for an unknown handle.
func (w *World) Position(h Handle) (mgl32.Vec3, bool) {
	b, ok := w.bodies[h]
	if !ok {
		return mgl32.Vec3{}, false
	}
	return b.pos, true
}

// Rotation returns the body orientation, or false for an unknown handle.
func (w *World) Rotation(h Handle) (mgl32.Quat, bool) {
	b, ok := w.bodies[h]
	if !ok {
		return mgl32.QuatIdent(), false
	}
	return b.orient, true
}

// LinearVelocity returns the body's linear velocity.
func (w *World) LinearVelocity(h Handle) mgl32.Vec3 {
	if b, ok := w.bodies[h]; ok {
		return b.linvel
	}
	return mgl32.Vec3{}
}

// AngularVelocity returns the body's angular velocity.
func (w *World) AngularVelocity(h Handle) mgl32.Vec3 {
	if b, ok := w.bodies[h]; ok {
		return b.angvel
	}
	return mgl32.Vec3{}
}

// SetLinearVelocity overrides the body's linear velocity.
func (w *World) SetLinearVelocity(h Handle, v mgl32.Vec3) {
	if b, ok := w.bodies[h]; ok {
		b.linvel = v
	}
}

// SetAngularVelocity overrides the body's angular velocity.
func (w *World) SetAngularVelocity(h Handle, v mgl32.Vec3) {
	if b, ok := w.bodies[h]; ok {
		b.angvel = v
	}
}

// ApplyImpulse applies a linear impulse at the centre of mass.
func (w *World) ApplyImpulse(h Handle, impulse mgl32.Vec3) {
	if b, ok := w.bodies[h]; ok {
		b.linvel = b.linvel.Add(impulse.Mul(b.invMass))
	}
}

// ApplyTorqueImpulse applies an angular impulse.
func (w *World) ApplyTorqueImpulse(h Handle, impulse mgl32.Vec3) {
	if b, ok := w.bodies[h]; ok {
		b.angvel = b.angvel.Add(impulse.Mul(b.invInertia))
	}
}

// LinearSpeed returns the magnitude of the body's linear velocity.
func (w *World) LinearSpeed(h Handle) float32 {
	return w.LinearVelocity(h).Len()
}

// AngularSpeed returns the magnitude of the body's angular velocity.
func (w *World) AngularSpeed(h Handle) float32 {
	return w.AngularVelocity(h).Len()
}

// AtRest reports whether the body has dropped below both the linear and the
// angular velocity thresholds.
func (w *World) AtRest(h Handle) bool {
	return w.LinearSpeed(h) < LinearVelocityThreshold &&
		w.AngularSpeed(h) < AngularVelocityThreshold
}

func minf(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func sqrtf(v float32) float32 {
	return float32(math.Sqrt(float64(v)))
}
