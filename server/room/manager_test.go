package room

import (
	"testing"
	"time"
)

func TestCreateRoom(t *testing.T) {
	m := NewManager(testLogger(), 0)
	id, r := m.CreateRoom()
	if len(id) != roomIDLength {
		t.Fatalf("expected a %d-character room id, got %q", roomIDLength, id)
	}
	if r.ID() != id {
		t.Fatalf("room id mismatch: %q vs %q", r.ID(), id)
	}
	got, ok := m.Room(id)
	if !ok || got != r {
		t.Fatalf("created room not found")
	}
}

func TestRoomLookupUnknown(t *testing.T) {
	m := NewManager(testLogger(), 0)
	if _, ok := m.Room("nope"); ok {
		t.Fatalf("lookup of unknown room succeeded")
	}
}

func TestRemoveRoom(t *testing.T) {
	m := NewManager(testLogger(), 0)
	id, _ := m.CreateRoom()
	m.RemoveRoom(id)
	if _, ok := m.Room(id); ok {
		t.Fatalf("room still present after removal")
	}
	// Removing twice is a no-op.
	m.RemoveRoom(id)
}

func TestRoomCount(t *testing.T) {
	m := NewManager(testLogger(), 0)
	for i := 0; i < 3; i++ {
		m.CreateRoom()
	}
	if n := m.RoomCount(); n != 3 {
		t.Fatalf("expected 3 rooms, got %d", n)
	}
}

func TestCleanupStaleRooms(t *testing.T) {
	m := NewManager(testLogger(), time.Millisecond)
	idle, _ := m.CreateRoom()
	occupiedID, occupied := m.CreateRoom()
	joinPlayer(t, occupied, "p1", "Alice")

	time.Sleep(5 * time.Millisecond)
	if n := m.CleanupStaleRooms(); n != 1 {
		t.Fatalf("expected 1 reclaimed room, got %d", n)
	}
	if _, ok := m.Room(idle); ok {
		t.Fatalf("idle room survived cleanup")
	}
	if _, ok := m.Room(occupiedID); !ok {
		t.Fatalf("occupied room was reclaimed")
	}
}
