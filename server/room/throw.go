package room

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/dicesuki/dicesuki/server/protocol"
)

// throwVelocity derives a release velocity from the tail of the client's
// cursor history. It averages the instantaneous velocities of the last
// samples, scales and clamps the speed and adds an upward boost so a flick
// along the table still lifts the die. ok is false when the history is too
// short or spans no time.
func throwVelocity(history []protocol.VelocityEntry) (vel mgl32.Vec3, ok bool) {
	if len(history) > 3 {
		history = history[len(history)-3:]
	}
	if len(history) < 2 {
		return mgl32.Vec3{}, false
	}

	var sum mgl32.Vec3
	samples := 0
	for i := 1; i < len(history); i++ {
		dt := float32((history[i].Time - history[i-1].Time) / 1000)
		if dt <= 0 {
			continue
		}
		sum = sum.Add(history[i].Position.Sub(history[i-1].Position).Mul(1 / dt))
		samples++
	}
	if samples == 0 {
		return mgl32.Vec3{}, false
	}

	avg := sum.Mul(1 / float32(samples))
	speed := avg.Len()
	if speed < MinThrowSpeed {
		return mgl32.Vec3{}, false
	}
	target := min(speed*ThrowVelocityScale, MaxThrowSpeed)
	vel = avg.Mul(target / speed)
	vel[1] += ThrowUpwardBoost
	return vel, true
}
