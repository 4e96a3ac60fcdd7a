// Package reward scores braking transitions relative to the stop line.
package reward

import "math"

const (
	// Tolerance is the half-width of the stop zone around the target.
	Tolerance = 1.0
	// StoppedSpeed is the speed below which the vehicle counts as stopped.
	StoppedSpeed = 1.0

	Overshoot    = -100.0
	Success      = 100.0
	TooFast      = -10.0
	Fallback     = -5.0
	SpeedPenalty = 10.0
)

// Reward scores the post-step state. Branches are evaluated in order and
// the first match wins; reordering them changes what the policy learns.
func Reward(position, velocity, target float64) float64 {
	d := position - target
	switch {
	case d < -Tolerance:
		return Overshoot
	case math.Abs(d) <= Tolerance && velocity < StoppedSpeed:
		return Success
	case math.Abs(d) <= Tolerance && velocity >= StoppedSpeed:
		return TooFast
	case d > Tolerance:
		return -velocity / SpeedPenalty
	default:
		return Fallback
	}
}

// Stopped reports whether an episode has terminated successfully. The zone
// is open at ±Tolerance, unlike the closed zone used by Reward.
func Stopped(position, velocity, target float64) bool {
	return math.Abs(position-target) < Tolerance && velocity < StoppedSpeed
}
