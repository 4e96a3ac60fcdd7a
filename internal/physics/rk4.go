// Package physics advances the longitudinal state of a point-mass vehicle.
package physics

// State is the continuous position/velocity pair of the vehicle along the track.
type State struct {
	Position float64 `json:"position"`
	Velocity float64 `json:"velocity"`
}

// Advance returns the state after one integration step under a constant force.
func (s State) Advance(force, mass, dt float64) State {
	p, v := Step(s.Position, s.Velocity, force, mass, dt)
	return State{Position: p, Velocity: v}
}

type derivative struct {
	dp float64
	dv float64
}

// Step integrates dp/dt = v, dv/dt = force/mass over dt with classic RK4.
// The force is sampled once for the whole step. The returned velocity is
// clamped at zero: braking stops the vehicle but never reverses it.
func Step(position, velocity, force, mass, dt float64) (float64, float64) {
	accel := force / mass
	eval := func(v float64) derivative {
		return derivative{dp: v, dv: accel}
	}

	k1 := eval(velocity)
	k2 := eval(velocity + 0.5*dt*k1.dv)
	k3 := eval(velocity + 0.5*dt*k2.dv)
	k4 := eval(velocity + dt*k3.dv)

	nextP := position + (dt/6.0)*(k1.dp+2*k2.dp+2*k3.dp+k4.dp)
	nextV := velocity + (dt/6.0)*(k1.dv+2*k2.dv+2*k3.dv+k4.dv)
	if nextV < 0 {
		nextV = 0
	}
	return nextP, nextV
}
