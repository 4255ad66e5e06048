// Package trajectory generates desired end-effector waypoints as pure
// functions of elapsed simulation time. Trajectories carry no state, so the
// control loop stays reproducible under replay.
package trajectory

import (
	"math"

	"github.com/san-kum/armctl/internal/kinematics"
)

// Trajectory maps elapsed simulation time to a target position.
type Trajectory func(t float64) kinematics.Position

// Static holds the target fixed for the whole run.
func Static(target kinematics.Position) Trajectory {
	frozen := target.Clone()
	return func(float64) kinematics.Position {
		return frozen.Clone()
	}
}

// Circle traces a circle of the given radius around center, completing freq
// revolutions per second of simulation time. At t=0 the target sits at
// center + (radius, 0).
func Circle(center kinematics.Position, radius, freq float64) Trajectory {
	cx, cy := center[0], center[1]
	return func(t float64) kinematics.Position {
		s, c := math.Sincos(2 * math.Pi * freq * t)
		return kinematics.Position{cx + radius*c, cy + radius*s}
	}
}

// Line interpolates from one position to another over the given duration,
// then holds the endpoint.
func Line(from, to kinematics.Position, duration float64) Trajectory {
	a := from.Clone()
	b := to.Clone()
	return func(t float64) kinematics.Position {
		if duration <= 0 || t >= duration {
			return b.Clone()
		}
		if t <= 0 {
			return a.Clone()
		}
		frac := t / duration
		p := make(kinematics.Position, len(a))
		for i := range p {
			p[i] = a[i] + frac*(b[i]-a[i])
		}
		return p
	}
}
