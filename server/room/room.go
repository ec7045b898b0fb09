// Package room implements the authoritative state of a dice table: players,
// dice, the physics tick, settlement detection and broadcast fan-out, plus
// the registry that owns all rooms of a process.
package room

import (
	"log/slog"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/dicesuki/dicesuki/server/dice"
	"github.com/dicesuki/dicesuki/server/physics"
	"github.com/dicesuki/dicesuki/server/protocol"
)

const (
	// MaxPlayers is the player capacity of a room.
	MaxPlayers = 8
	// MaxDice is the dice capacity of a table.
	MaxDice = 30
	// MaxNameLength bounds display names, in bytes.
	MaxNameLength = 20

	// IdleTimeout is how long an empty room survives before reclamation.
	IdleTimeout = 30 * time.Minute

	// SnapshotDivisor thins snapshot broadcasts: 1 sends at the full 60 Hz
	// tick rate, 2 at 30 Hz, 3 at 20 Hz.
	SnapshotDivisor = 1

	// RestDuration is how long a die must stay below the rest thresholds
	// before it counts as settled.
	RestDuration = 500 * time.Millisecond

	// restTicks is RestDuration expressed in 60 Hz ticks.
	restTicks = int64(RestDuration / (time.Second / 60))

	// positionDeltaThreshold gates idle dice out of snapshots: a die that
	// moved less than this since its last snapshot entry is skipped.
	positionDeltaThreshold = 0.01
)

// Drag and throw tuning, matching the client-side feel. Drag velocity is set
// directly each tick; the boost kicks in once the die trails its target by
// more than the distance threshold.
const (
	MaxDiceVelocity = 20.0

	DragFollowSpeed       = 10.0
	DragDistanceBoost     = 10.0
	DragDistanceThreshold = 1.0
	DragRollFactor        = 0.4
	DragSpinFactor        = 0.2

	ThrowVelocityScale = 1.2
	ThrowUpwardBoost   = 2.0
	MinThrowSpeed      = 0.5
	MaxThrowSpeed      = 12.0
)

// SettledDie is one die that came to rest during a tick.
type SettledDie struct {
	ID        string
	FaceValue int
}

// Room is an isolated dice table. All state is guarded by mu; every mutation
// and every broadcast runs under the write lock so that clients observe a
// single consistent order of events.
type Room struct {
	id  string
	log *slog.Logger

	mu           sync.RWMutex
	players      map[string]*Player
	dice         map[string]*die
	lastActivity time.Time

	// simulating is true while any die is rolling or dragged. simRunning is
	// true while a simulation task is attached; it is the single-writer
	// gate that keeps it to one task per room.
	simulating bool
	simRunning bool

	tick  uint64
	world *physics.World
}

// New creates an empty room with its own physics arena.
func New(id string, log *slog.Logger) *Room {
	return &Room{
		id:           id,
		log:          log,
		players:      make(map[string]*Player),
		dice:         make(map[string]*die),
		lastActivity: time.Now(),
		world:        physics.NewWorld(),
	}
}

// ID returns the room id.
func (r *Room) ID() string {
	return r.id
}

// PlayerCount returns the number of joined players.
func (r *Room) PlayerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}

// DiceCount returns the number of dice on the table.
func (r *Room) DiceCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.dice)
}

// Empty reports whether the room has no players.
func (r *Room) Empty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players) == 0
}

// IdleExpired reports whether the room is empty and has seen no activity for
// longer than the given timeout, making it eligible for reclamation.
func (r *Room) IdleExpired(timeout time.Duration) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players) == 0 && time.Since(r.lastActivity) > timeout
}

// Simulating reports whether any die is rolling or being dragged.
func (r *Room) Simulating() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.simulating
}

// SimRunning reports whether a simulation task is attached.
func (r *Room) SimRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.simRunning
}

// touchLocked records activity for idle reclamation.
func (r *Room) touchLocked() {
	r.lastActivity = time.Now()
}

// AddPlayer validates and inserts a player without any notifications. Join
// is the session-facing variant.
func (r *Room) AddPlayer(p *Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addPlayerLocked(p)
}

func (r *Room) addPlayerLocked(p *Player) error {
	if len(r.players) >= MaxPlayers {
		return ErrRoomFull
	}
	if len(p.displayName) == 0 || len(p.displayName) > MaxNameLength {
		return ErrInvalidName
	}
	r.players[p.id] = p
	r.touchLocked()
	return nil
}

// Join adds a player, sends them the full room state and announces them to
// everyone else.
func (r *Room) Join(p *Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.addPlayerLocked(p); err != nil {
		return err
	}
	p.Send(r.stateLocked())
	r.broadcastExceptLocked(protocol.PlayerJoined{
		Type:   protocol.TypePlayerJoined,
		Player: p.Info(),
	}, p.id)
	r.log.Info("Player joined room.", "room", r.id, "player", p.id, "name", p.displayName)
	return nil
}

// RemovePlayer removes a player and every die they own, returning the
// removed die ids. Leave is the session-facing variant.
func (r *Room) RemovePlayer(playerID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removePlayerLocked(playerID)
}

func (r *Room) removePlayerLocked(playerID string) []string {
	delete(r.players, playerID)
	var removed []string
	for id, d := range r.dice {
		if d.ownerID == playerID {
			removed = append(removed, id)
		}
	}
	for _, id := range removed {
		r.world.Remove(r.dice[id].body)
		delete(r.dice, id)
	}
	r.touchLocked()
	return removed
}

// Leave removes a player and notifies the remaining players of the removed
// dice and the departure.
func (r *Room) Leave(playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := r.removePlayerLocked(playerID)
	if len(removed) > 0 {
		r.broadcastLocked(protocol.DiceRemoved{Type: protocol.TypeDiceRemoved, DiceIDs: removed})
	}
	r.broadcastLocked(protocol.PlayerLeft{Type: protocol.TypePlayerLeft, PlayerID: playerID})
	r.log.Info("Player left room.", "room", r.id, "player", playerID, "removedDice", len(removed))
}

// SpawnDice places new dice on the table with physics bodies at random spawn
// positions and announces them to the whole room.
func (r *Room) SpawnDice(ownerID string, entries []protocol.SpawnEntry) ([]protocol.DiceState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.dice)+len(entries) > MaxDice {
		return nil, ErrDiceLimit
	}
	owner, ok := r.players[ownerID]
	if !ok {
		return nil, ErrPlayerNotFound
	}

	spawned := make([]protocol.DiceState, 0, len(entries))
	for _, entry := range entries {
		pos := dice.SpawnPosition()
		body := r.world.InsertDice(dice.Shape(entry.DiceType), pos)
		rot, _ := r.world.Rotation(body)

		d := &die{
			id:              entry.ID,
			ownerID:         ownerID,
			diceType:        entry.DiceType,
			pos:             pos,
			rot:             rot,
			body:            body,
			restStart:       -1,
			lastSnapshotPos: pos,
		}
		r.dice[entry.ID] = d
		owner.diceIDs = append(owner.diceIDs, entry.ID)
		spawned = append(spawned, d.state())
	}

	r.touchLocked()
	r.broadcastLocked(protocol.DiceSpawned{
		Type:    protocol.TypeDiceSpawned,
		OwnerID: ownerID,
		Dice:    spawned,
	})
	return spawned, nil
}

// RemoveDice removes the named dice that exist and belong to the player,
// silently skipping the rest, and announces any removals.
func (r *Room) RemoveDice(playerID string, diceIDs []string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []string
	for _, id := range diceIDs {
		d, ok := r.dice[id]
		if !ok || d.ownerID != playerID {
			continue
		}
		r.world.Remove(d.body)
		delete(r.dice, id)
		removed = append(removed, id)
	}
	if p, ok := r.players[playerID]; ok {
		kept := p.diceIDs[:0]
		for _, id := range p.diceIDs {
			if _, ok := r.dice[id]; ok {
				kept = append(kept, id)
			}
		}
		p.diceIDs = kept
	}
	r.touchLocked()

	if len(removed) > 0 {
		r.broadcastLocked(protocol.DiceRemoved{Type: protocol.TypeDiceRemoved, DiceIDs: removed})
	}
	return removed
}

// Roll throws every die the player owns with a random impulse and torque and
// announces the roll. startSim reports whether the caller must start the
// simulation task: it is true at most once per quiescent-to-active
// transition.
func (r *Room) Roll(playerID string) (rolled []string, startSim bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, d := range r.dice {
		if d.ownerID != playerID {
			continue
		}
		if d.body != 0 {
			r.world.ApplyImpulse(d.body, dice.RollImpulse())
			r.world.ApplyTorqueImpulse(d.body, dice.RollTorque())
		}
		d.rolling = true
		d.settled = false
		d.restStart = -1
		rolled = append(rolled, id)
	}
	if len(rolled) == 0 {
		return nil, false
	}

	r.simulating = true
	r.touchLocked()
	r.broadcastLocked(protocol.RollStarted{
		Type:     protocol.TypeRollStarted,
		PlayerID: playerID,
		DiceIDs:  rolled,
	})
	return rolled, r.claimSimLocked()
}

// claimSimLocked flips the single-task gate when a simulation task must be
// started.
func (r *Room) claimSimLocked() bool {
	if r.simulating && !r.simRunning {
		r.simRunning = true
		return true
	}
	return false
}

// StartDrag attaches a drag to a die. Only the owner may drag, and a die can
// only be held once. Dragging takes precedence over rolling.
func (r *Room) StartDrag(playerID, dieID string, grabOffset, worldPosition mgl32.Vec3) (startSim bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.dice[dieID]
	if !ok {
		return false, ErrDieNotFound
	}
	if d.ownerID != playerID {
		return false, ErrNotOwner
	}
	if d.drag != nil {
		return false, ErrAlreadyDragged
	}

	d.drag = &dragState{
		draggerID:  playerID,
		grabOffset: grabOffset,
		target:     worldPosition,
		lastTarget: worldPosition,
	}
	d.rolling = false
	d.settled = false
	d.restStart = -1

	r.simulating = true
	r.touchLocked()
	return r.claimSimLocked(), nil
}

// UpdateDrag moves the drag target of a held die.
func (r *Room) UpdateDrag(playerID, dieID string, worldPosition mgl32.Vec3) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.dice[dieID]
	if !ok {
		return ErrDieNotFound
	}
	switch {
	case d.drag == nil:
		return ErrNotDragging
	case d.drag.draggerID != playerID:
		return ErrNotDragger
	}
	d.drag.lastTarget = d.drag.target
	d.drag.target = worldPosition
	return nil
}

// EndDrag releases a held die, throwing it with a velocity derived from the
// recent cursor history when one can be computed. It is a silent no-op if
// the die is absent or not held by this player.
func (r *Room) EndDrag(playerID, dieID string, history []protocol.VelocityEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.dice[dieID]
	if !ok || d.drag == nil || d.drag.draggerID != playerID {
		return
	}

	d.drag = nil
	d.rolling = true
	d.settled = false
	d.restStart = -1

	if d.body != 0 {
		if vel, ok := throwVelocity(history); ok {
			r.world.SetLinearVelocity(d.body, vel)
			r.world.SetAngularVelocity(d.body, r.world.AngularVelocity(d.body).Mul(0.75))
		}
	}
	r.touchLocked()
}

// UpdateColor changes a player's colour. The change is not broadcast; other
// clients pick it up from the next full room state.
func (r *Room) UpdateColor(playerID, color string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.players[playerID]; ok {
		p.color = color
	}
}

// State returns the full room snapshot sent to newly joined players.
func (r *Room) State() protocol.RoomState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stateLocked()
}

func (r *Room) stateLocked() protocol.RoomState {
	players := make([]protocol.PlayerInfo, 0, len(r.players))
	for _, p := range r.players {
		players = append(players, p.Info())
	}
	states := make([]protocol.DiceState, 0, len(r.dice))
	for _, d := range r.dice {
		states = append(states, d.state())
	}
	return protocol.RoomState{
		Type:    protocol.TypeRoomState,
		RoomID:  r.id,
		Players: players,
		Dice:    states,
	}
}

// broadcastLocked queues a message on every player's connection.
func (r *Room) broadcastLocked(msg any) {
	for _, p := range r.players {
		p.Send(msg)
	}
}

// broadcastExceptLocked queues a message on every connection but one.
func (r *Room) broadcastExceptLocked(msg any, exceptID string) {
	for _, p := range r.players {
		if p.id != exceptID {
			p.Send(msg)
		}
	}
}

// Tick advances the simulation by one 60 Hz step and performs all broadcasts
// for that tick. It returns the snapshot that was sent, if any, and the dice
// that settled.
func (r *Room) Tick() (*protocol.PhysicsSnapshot, []SettledDie) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tickLocked()
}

func (r *Room) tickLocked() (*protocol.PhysicsSnapshot, []SettledDie) {
	// 1. Drag forces: held dice chase their target with a velocity override
	// and tumble with the horizontal cursor motion.
	for _, d := range r.dice {
		if d.drag == nil || d.body == 0 {
			continue
		}
		pos, _ := r.world.Position(d.body)
		delta := d.drag.target.Sub(pos)
		distance := delta.Len()

		mult := float32(DragFollowSpeed)
		if distance > DragDistanceThreshold {
			factor := (distance - DragDistanceThreshold) / DragDistanceThreshold
			if factor > 1 {
				factor = 1
			}
			mult += DragDistanceBoost * factor
		}
		r.world.SetLinearVelocity(d.body, delta.Mul(mult))

		move := d.drag.target.Sub(d.drag.lastTarget)
		moveSpeed := float32(mgl32.Vec2{move[0], move[2]}.Len())
		if moveSpeed > 0.001 {
			dirX, dirZ := move[0]/moveSpeed, move[2]/moveSpeed
			roll := mgl32.Vec3{-dirZ * moveSpeed * DragRollFactor, 0, dirX * moveSpeed * DragRollFactor}
			spin := mgl32.Vec3{dirX * moveSpeed * DragSpinFactor, 0, dirZ * moveSpeed * DragSpinFactor}
			r.world.ApplyTorqueImpulse(d.body, roll.Add(spin))
		}
	}

	// 2. Step.
	r.world.Step()
	r.tick++

	// 3. Clamp runaway dice.
	for _, d := range r.dice {
		if d.body == 0 {
			continue
		}
		vel := r.world.LinearVelocity(d.body)
		if speed := vel.Len(); speed > MaxDiceVelocity {
			r.world.SetLinearVelocity(d.body, vel.Mul(MaxDiceVelocity/speed))
		}
	}

	// 4. Read back poses.
	for _, d := range r.dice {
		if d.body == 0 {
			continue
		}
		if pos, ok := r.world.Position(d.body); ok {
			d.pos = pos
		}
		if rot, ok := r.world.Rotation(d.body); ok {
			d.rot = rot
		}
	}

	// 5. Snapshot: only dice that are active or have visibly moved since
	// their last snapshot entry.
	var snapshot *protocol.PhysicsSnapshot
	if r.tick%SnapshotDivisor == 0 {
		var moving []protocol.DiceSnapshot
		for _, d := range r.dice {
			delta := d.pos.Sub(d.lastSnapshotPos)
			if !d.rolling && d.drag == nil && delta.Dot(delta) <= positionDeltaThreshold*positionDeltaThreshold {
				continue
			}
			d.lastSnapshotPos = d.pos
			moving = append(moving, protocol.DiceSnapshot{
				ID:       d.id,
				Position: d.pos,
				Rotation: protocol.WireQuat(d.rot),
			})
		}
		if len(moving) > 0 {
			snapshot = &protocol.PhysicsSnapshot{
				Type: protocol.TypePhysicsSnapshot,
				Tick: r.tick,
				Dice: moving,
			}
			r.broadcastLocked(*snapshot)
		}
	}

	// 6. Settlement: a rolling die settles once it stays below the rest
	// thresholds for restTicks in a row.
	var settled []SettledDie
	for _, d := range r.dice {
		if !d.rolling || d.body == 0 {
			continue
		}
		if !r.world.AtRest(d.body) {
			d.restStart = -1
			continue
		}
		switch {
		case d.restStart < 0:
			d.restStart = int64(r.tick)
		case int64(r.tick)-d.restStart >= restTicks:
			d.faceValue = dice.DetectFaceValue(d.rot, d.diceType)
			d.settled = true
			d.rolling = false
			settled = append(settled, SettledDie{ID: d.id, FaceValue: d.faceValue})
		}
	}

	for _, s := range settled {
		d := r.dice[s.ID]
		r.broadcastLocked(protocol.DieSettled{
			Type:      protocol.TypeDieSettled,
			DiceID:    s.ID,
			FaceValue: s.FaceValue,
			Position:  d.pos,
			Rotation:  protocol.WireQuat(d.rot),
		})
	}
	if len(settled) > 0 {
		r.completeRollsLocked(settled)
	}

	// 7. Close the simulation once nothing is rolling or held.
	active := false
	for _, d := range r.dice {
		if d.rolling || d.drag != nil {
			active = true
			break
		}
	}
	if !active {
		r.simulating = false
	}

	return snapshot, settled
}

// completeRollsLocked announces RollComplete for every player whose dice
// have all come to rest and at least one of them settled this tick.
func (r *Room) completeRollsLocked(settled []SettledDie) {
	newly := make(map[string]bool, len(settled))
	for _, s := range settled {
		newly[s.ID] = true
	}

	for id, p := range r.players {
		var results []protocol.DieResult
		owned, rolling, hasNew := false, false, false
		for _, d := range r.dice {
			if d.ownerID != id {
				continue
			}
			owned = true
			if d.rolling {
				rolling = true
				break
			}
			if d.settled {
				results = append(results, protocol.DieResult{
					DiceID:    d.id,
					DiceType:  d.diceType,
					FaceValue: d.faceValue,
				})
				if newly[d.id] {
					hasNew = true
				}
			}
		}
		if !owned || rolling || !hasNew || len(results) == 0 {
			continue
		}

		total := 0
		for _, res := range results {
			total += res.FaceValue
		}
		r.broadcastLocked(protocol.RollComplete{
			Type:     protocol.TypeRollComplete,
			PlayerID: p.id,
			Results:  results,
			Total:    total,
		})
	}
}
