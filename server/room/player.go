package room

import (
	"github.com/dicesuki/dicesuki/server/protocol"
)

// Sender is the outbound side of a player's connection. Send queues a
// message for delivery and never blocks; it reports false once the
// connection is gone.
type Sender interface {
	Send(msg any) bool
}

// Player is a participant in a room. The room owns its players; all fields
// are mutated under the room lock.
type Player struct {
	id          string
	displayName string
	color       string
	sender      Sender

	// diceIDs mirrors the dice this player owns, in spawn order.
	diceIDs []string
}

// NewPlayer creates a player with the given identity and outbound sender.
func NewPlayer(id, displayName, color string, sender Sender) *Player {
	return &Player{
		id:          id,
		displayName: displayName,
		color:       color,
		sender:      sender,
	}
}

// ID returns the server-assigned player id.
func (p *Player) ID() string {
	return p.id
}

// DisplayName returns the name shown to other players.
func (p *Player) DisplayName() string {
	return p.displayName
}

// Send queues a message on the player's connection.
func (p *Player) Send(msg any) bool {
	return p.sender.Send(msg)
}

// Info returns the public view of the player.
func (p *Player) Info() protocol.PlayerInfo {
	return protocol.PlayerInfo{
		ID:          p.id,
		DisplayName: p.displayName,
		Color:       p.color,
	}
}
