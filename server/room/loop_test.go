package room

import (
	"testing"
	"time"

	"github.com/dicesuki/dicesuki/server/dice"
)

func TestSimulationLoopExits(t *testing.T) {
	if testing.Short() {
		t.Skip("runs the simulation loop in real time")
	}
	r := New("ABC123", testLogger())
	joinPlayer(t, r, "p1", "Alice")
	spawnOne(t, r, "p1", "die-1", dice.D6)

	_, start := r.Roll("p1")
	if !start {
		t.Fatalf("roll did not claim the simulation task")
	}
	done := make(chan struct{})
	go func() {
		r.RunSimulation()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(25 * time.Second):
		t.Fatalf("simulation task did not exit after the dice settled")
	}
	if r.SimRunning() {
		t.Fatalf("simulation gate still held after the task exited")
	}
	if r.Simulating() {
		t.Fatalf("room still simulating after the task exited")
	}
}
