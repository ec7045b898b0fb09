package room

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/dicesuki/dicesuki/server/dice"
	"github.com/dicesuki/dicesuki/server/physics"
	"github.com/dicesuki/dicesuki/server/protocol"
)

// die is the authoritative server-side state of a single die on the table.
type die struct {
	id       string
	ownerID  string
	diceType dice.Type

	// Last pose read back from the physics body.
	pos mgl32.Vec3
	rot mgl32.Quat

	// rolling is true between a roll or throw and settlement.
	rolling bool
	// faceValue is the settled result; valid only when settled is true.
	faceValue int
	settled   bool

	// body is zero only in test fixtures; production spawns always attach a
	// physics body.
	body physics.Handle

	// restStart is the tick at which the die first dipped below the rest
	// thresholds since it last moved, or -1.
	restStart int64

	drag *dragState

	// lastSnapshotPos is the position at which this die was last included
	// in an outbound snapshot, used to gate idle dice out of snapshots.
	lastSnapshotPos mgl32.Vec3
}

// dragState exists while a die is held by a player.
type dragState struct {
	draggerID  string
	grabOffset mgl32.Vec3
	target     mgl32.Vec3
	lastTarget mgl32.Vec3
}

// state returns the die's public wire state.
func (d *die) state() protocol.DiceState {
	return protocol.DiceState{
		ID:       d.id,
		OwnerID:  d.ownerID,
		DiceType: d.diceType,
		Position: d.pos,
		Rotation: protocol.WireQuat(d.rot),
	}
}
