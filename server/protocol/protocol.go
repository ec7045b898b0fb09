// Package protocol defines the JSON wire format spoken over the WebSocket:
// a tagged union with a snake_case "type" discriminator and camelCase
// payload keys. Quaternions travel as [x, y, z, w].
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/dicesuki/dicesuki/server/dice"
)

// Client message type tags.
const (
	TypeJoin        = "join"
	TypeSpawnDice   = "spawn_dice"
	TypeRemoveDice  = "remove_dice"
	TypeRoll        = "roll"
	TypeUpdateColor = "update_color"
	TypeDragStart   = "drag_start"
	TypeDragMove    = "drag_move"
	TypeDragEnd     = "drag_end"
	TypeLeave       = "leave"
)

// Server message type tags.
const (
	TypeRoomState       = "room_state"
	TypePlayerJoined    = "player_joined"
	TypePlayerLeft      = "player_left"
	TypeDiceSpawned     = "dice_spawned"
	TypeDiceRemoved     = "dice_removed"
	TypeRollStarted     = "roll_started"
	TypePhysicsSnapshot = "physics_snapshot"
	TypeDieSettled      = "die_settled"
	TypeRollComplete    = "roll_complete"
	TypeError           = "error"
)

// Wire error codes sent to clients.
const (
	ErrCodeNotJoined      = "NOT_JOINED"
	ErrCodeAlreadyJoined  = "ALREADY_JOINED"
	ErrCodeRoomFull       = "ROOM_FULL"
	ErrCodeInvalidName    = "INVALID_NAME"
	ErrCodeInvalidMessage = "INVALID_MESSAGE"
	ErrCodeDiceLimit      = "DICE_LIMIT"
)

// ClientMessage is implemented by every message a client may send.
type ClientMessage interface {
	clientMessage()
}

// Join enters a room. It must be the first message on a connection.
type Join struct {
	RoomID      string `json:"roomId"`
	DisplayName string `json:"displayName"`
	Color       string `json:"color"`
}

// SpawnDice places new dice on the table.
type SpawnDice struct {
	Dice []SpawnEntry `json:"dice"`
}

// SpawnEntry is a single die requested in a SpawnDice message. The client
// picks the id; the server enforces uniqueness within the room.
type SpawnEntry struct {
	ID       string    `json:"id"`
	DiceType dice.Type `json:"diceType"`
}

// RemoveDice removes dice owned by the sender.
type RemoveDice struct {
	DiceIDs []string `json:"diceIds"`
}

// Roll throws every die the sender owns.
type Roll struct{}

// UpdateColor changes the sender's display colour.
type UpdateColor struct {
	Color string `json:"color"`
}

// DragStart begins dragging one of the sender's dice.
type DragStart struct {
	DieID         string     `json:"dieId"`
	GrabOffset    mgl32.Vec3 `json:"grabOffset"`
	WorldPosition mgl32.Vec3 `json:"worldPosition"`
}

// DragMove updates the drag target of a die being dragged by the sender.
type DragMove struct {
	DieID         string     `json:"dieId"`
	WorldPosition mgl32.Vec3 `json:"worldPosition"`
}

// DragEnd releases a dragged die, optionally throwing it with a velocity
// derived from the recent drag history.
type DragEnd struct {
	DieID           string          `json:"dieId"`
	VelocityHistory []VelocityEntry `json:"velocityHistory"`
}

// VelocityEntry is one sample of the client cursor history: a world position
// and its timestamp in milliseconds.
type VelocityEntry struct {
	Position mgl32.Vec3 `json:"position"`
	Time     float64    `json:"time"`
}

// Leave exits the room and closes the session.
type Leave struct{}

func (Join) clientMessage()        {}
func (SpawnDice) clientMessage()   {}
func (RemoveDice) clientMessage()  {}
func (Roll) clientMessage()        {}
func (UpdateColor) clientMessage() {}
func (DragStart) clientMessage()   {}
func (DragMove) clientMessage()    {}
func (DragEnd) clientMessage()     {}
func (Leave) clientMessage()       {}

// UnmarshalClient decodes a client frame by its type tag.
func UnmarshalClient(data []byte) (ClientMessage, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, err
	}

	decode := func(msg ClientMessage) (ClientMessage, error) {
		if err := json.Unmarshal(data, msg); err != nil {
			return nil, err
		}
		return msg, nil
	}

	switch envelope.Type {
	case TypeJoin:
		return decode(&Join{})
	case TypeSpawnDice:
		return decode(&SpawnDice{})
	case TypeRemoveDice:
		return decode(&RemoveDice{})
	case TypeRoll:
		return &Roll{}, nil
	case TypeUpdateColor:
		return decode(&UpdateColor{})
	case TypeDragStart:
		return decode(&DragStart{})
	case TypeDragMove:
		return decode(&DragMove{})
	case TypeDragEnd:
		return decode(&DragEnd{})
	case TypeLeave:
		return &Leave{}, nil
	default:
		return nil, fmt.Errorf("unknown message type %q", envelope.Type)
	}
}

// PlayerInfo is the public view of a player.
type PlayerInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Color       string `json:"color"`
}

// DiceState is the full public state of one die.
type DiceState struct {
	ID       string     `json:"id"`
	OwnerID  string     `json:"ownerId"`
	DiceType dice.Type  `json:"diceType"`
	Position mgl32.Vec3 `json:"position"`
	Rotation [4]float32 `json:"rotation"`
}

// DiceSnapshot is the compact pose of a moving die inside a
// PhysicsSnapshot.
type DiceSnapshot struct {
	ID       string     `json:"id"`
	Position mgl32.Vec3 `json:"p"`
	Rotation [4]float32 `json:"r"`
}

// DieResult is one die's contribution to a completed roll.
type DieResult struct {
	DiceID    string    `json:"diceId"`
	DiceType  dice.Type `json:"diceType"`
	FaceValue int       `json:"faceValue"`
}

// RoomState is the full snapshot sent to a player on join.
type RoomState struct {
	Type    string       `json:"type"`
	RoomID  string       `json:"roomId"`
	Players []PlayerInfo `json:"players"`
	Dice    []DiceState  `json:"dice"`
}

// PlayerJoined notifies existing players of a new arrival.
type PlayerJoined struct {
	Type   string     `json:"type"`
	Player PlayerInfo `json:"player"`
}

// PlayerLeft notifies remaining players of a departure.
type PlayerLeft struct {
	Type     string `json:"type"`
	PlayerID string `json:"playerId"`
}

// DiceSpawned announces newly placed dice to everyone in the room.
type DiceSpawned struct {
	Type    string      `json:"type"`
	OwnerID string      `json:"ownerId"`
	Dice    []DiceState `json:"dice"`
}

// DiceRemoved announces removed dice.
type DiceRemoved struct {
	Type    string   `json:"type"`
	DiceIDs []string `json:"diceIds"`
}

// RollStarted announces that a player's dice have been thrown.
type RollStarted struct {
	Type     string   `json:"type"`
	PlayerID string   `json:"playerId"`
	DiceIDs  []string `json:"diceIds"`
}

// PhysicsSnapshot carries the poses of all moving dice for one tick.
type PhysicsSnapshot struct {
	Type string         `json:"type"`
	Tick uint64         `json:"tick"`
	Dice []DiceSnapshot `json:"dice"`
}

// DieSettled announces a single die coming to rest with its face value.
type DieSettled struct {
	Type      string     `json:"type"`
	DiceID    string     `json:"diceId"`
	FaceValue int        `json:"faceValue"`
	Position  mgl32.Vec3 `json:"position"`
	Rotation  [4]float32 `json:"rotation"`
}

// RollComplete announces that all of a player's dice have settled, with the
// per-die results and their sum.
type RollComplete struct {
	Type     string      `json:"type"`
	PlayerID string      `json:"playerId"`
	Results  []DieResult `json:"results"`
	Total    int         `json:"total"`
}

// Error reports a problem to a single connection.
type Error struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewError builds an Error message with its type tag set.
func NewError(code, message string) Error {
	return Error{Type: TypeError, Code: code, Message: message}
}

// Quat converts a wire quaternion [x, y, z, w] to an mgl32.Quat.
func Quat(r [4]float32) mgl32.Quat {
	return mgl32.Quat{W: r[3], V: mgl32.Vec3{r[0], r[1], r[2]}}
}

// WireQuat converts an mgl32.Quat to its wire form [x, y, z, w].
func WireQuat(q mgl32.Quat) [4]float32 {
	return [4]float32{q.V[0], q.V[1], q.V[2], q.W}
}
