package room

import (
	"log/slog"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// roomIDLength is the length of generated room ids.
const roomIDLength = 6

// Manager owns every room of a server instance and hands out short random
// ids for new ones.
type Manager struct {
	log         *slog.Logger
	idleTimeout time.Duration

	mu    sync.RWMutex
	rooms map[string]*Room
}

// NewManager creates an empty room registry. Rooms that stay empty for
// longer than idleTimeout are removed by CleanupStaleRooms; a zero timeout
// selects IdleTimeout.
func NewManager(log *slog.Logger, idleTimeout time.Duration) *Manager {
	if idleTimeout <= 0 {
		idleTimeout = IdleTimeout
	}
	return &Manager{
		log:         log,
		idleTimeout: idleTimeout,
		rooms:       make(map[string]*Room),
	}
}

// CreateRoom creates a fresh room under a new random id.
func (m *Manager) CreateRoom() (string, *Room) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var id string
	for {
		id = gonanoid.Must(roomIDLength)
		if _, taken := m.rooms[id]; !taken {
			break
		}
	}
	r := New(id, m.log)
	m.rooms[id] = r
	m.log.Info("Room created.", "room", id)
	return id, r
}

// Room looks up a room by id.
func (m *Manager) Room(id string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	return r, ok
}

// RemoveRoom destroys a room.
func (m *Manager) RemoveRoom(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[id]; ok {
		delete(m.rooms, id)
		m.log.Info("Room destroyed.", "room", id)
	}
}

// RoomCount returns the number of live rooms.
func (m *Manager) RoomCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// CleanupStaleRooms removes every room that has been empty for longer than
// the manager's idle timeout and returns how many were removed.
func (m *Manager) CleanupStaleRooms() int {
	m.mu.RLock()
	var stale []string
	for id, r := range m.rooms {
		if r.IdleExpired(m.idleTimeout) {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range stale {
		m.RemoveRoom(id)
	}
	if len(stale) > 0 {
		m.log.Info("Reclaimed idle rooms.", "count", len(stale))
	}
	return len(stale)
}
