// Package session drives one WebSocket connection: it decodes client frames,
// enforces the join handshake and dispatches operations onto the connected
// room.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dicesuki/dicesuki/server/protocol"
	"github.com/dicesuki/dicesuki/server/room"
)

// writeTimeout bounds a single outbound frame write.
const writeTimeout = 10 * time.Second

// Session is the server side of one player connection.
type Session struct {
	conn *websocket.Conn
	room *room.Room
	log  *slog.Logger

	playerID string
	out      *outbox
	joined   bool
}

// Handle runs a connection against a room until the client leaves or the
// connection drops. It blocks for the lifetime of the connection.
func Handle(conn *websocket.Conn, r *room.Room, log *slog.Logger) {
	s := &Session{
		conn:     conn,
		room:     r,
		log:      log,
		playerID: uuid.New().String(),
		out:      newOutbox(),
	}
	s.run()
}

func (s *Session) run() {
	go s.writeLoop()
	defer s.cleanup()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("Connection closed unexpectedly.", "player", s.playerID, "err", err)
			}
			return
		}

		msg, err := protocol.UnmarshalClient(data)
		if err != nil {
			s.sendError(protocol.ErrCodeInvalidMessage, fmt.Sprintf("Failed to parse message: %v", err))
			continue
		}
		if !s.handle(msg) {
			return
		}
	}
}

// handle dispatches one decoded message. It reports false once the session
// should end.
func (s *Session) handle(msg protocol.ClientMessage) bool {
	if !s.joined {
		join, ok := msg.(*protocol.Join)
		if !ok {
			s.sendError(protocol.ErrCodeNotJoined, "Must join the room first")
			return true
		}
		s.handleJoin(join)
		return true
	}

	switch m := msg.(type) {
	case *protocol.Join:
		s.sendError(protocol.ErrCodeAlreadyJoined, "Already joined this room")
	case *protocol.SpawnDice:
		s.handleSpawnDice(m)
	case *protocol.RemoveDice:
		s.room.RemoveDice(s.playerID, m.DiceIDs)
	case *protocol.Roll:
		if _, start := s.room.Roll(s.playerID); start {
			go s.room.RunSimulation()
		}
	case *protocol.UpdateColor:
		s.room.UpdateColor(s.playerID, m.Color)
	case *protocol.DragStart:
		start, err := s.room.StartDrag(s.playerID, m.DieID, m.GrabOffset, m.WorldPosition)
		if err != nil {
			s.log.Debug("Drag rejected.", "player", s.playerID, "die", m.DieID, "err", err)
			return true
		}
		if start {
			go s.room.RunSimulation()
		}
	case *protocol.DragMove:
		if err := s.room.UpdateDrag(s.playerID, m.DieID, m.WorldPosition); err != nil {
			s.log.Debug("Drag update rejected.", "player", s.playerID, "die", m.DieID, "err", err)
		}
	case *protocol.DragEnd:
		s.room.EndDrag(s.playerID, m.DieID, m.VelocityHistory)
	case *protocol.Leave:
		return false
	}
	return true
}

func (s *Session) handleJoin(m *protocol.Join) {
	p := room.NewPlayer(s.playerID, m.DisplayName, m.Color, s.out)
	if err := s.room.Join(p); err != nil {
		code := err.Error()
		var text string
		switch {
		case errors.Is(err, room.ErrRoomFull):
			text = fmt.Sprintf("Room is full (%d/%d players)", room.MaxPlayers, room.MaxPlayers)
		case errors.Is(err, room.ErrInvalidName):
			text = fmt.Sprintf("Display name must be 1-%d characters", room.MaxNameLength)
		default:
			text = fmt.Sprintf("Failed to join: %s", code)
		}
		s.sendError(code, text)
		return
	}
	s.joined = true
}

func (s *Session) handleSpawnDice(m *protocol.SpawnDice) {
	if _, err := s.room.SpawnDice(s.playerID, m.Dice); err != nil {
		code := err.Error()
		var text string
		if errors.Is(err, room.ErrDiceLimit) {
			text = fmt.Sprintf("Table is full (%d/%d dice)", s.room.DiceCount(), room.MaxDice)
		} else {
			text = fmt.Sprintf("Failed to spawn dice: %s", code)
		}
		s.sendError(code, text)
	}
}

func (s *Session) sendError(code, message string) {
	s.out.Send(protocol.NewError(code, message))
}

// writeLoop drains the outbox onto the connection, one JSON text frame per
// message, until the outbox closes or a write fails.
func (s *Session) writeLoop() {
	for {
		batch := s.out.next()
		if batch == nil {
			return
		}
		for _, msg := range batch {
			data, err := json.Marshal(msg)
			if err != nil {
				s.log.Error("Failed to encode message.", "player", s.playerID, "err", err)
				continue
			}
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}

func (s *Session) cleanup() {
	if s.joined {
		s.room.Leave(s.playerID)
	}
	s.out.close()
	_ = s.conn.Close()
}
