package room

import (
	"time"

	"github.com/dicesuki/dicesuki/server/physics"
)

// RunSimulation drives the room's physics at the fixed tick rate until every
// die has settled and no die is held, then releases the single-task gate and
// returns. It must only be called by the caller that won the gate, that is
// when Roll or StartDrag reported startSim.
func (r *Room) RunSimulation() {
	t := time.NewTicker(time.Second / physics.TickRate)
	defer t.Stop()

	for range t.C {
		if !r.tickOnce() {
			return
		}
	}
}

// tickOnce advances the simulation by one step, or releases the gate and
// reports false once the room went quiescent.
func (r *Room) tickOnce() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.simulating {
		r.simRunning = false
		return false
	}
	r.tickLocked()
	return true
}
