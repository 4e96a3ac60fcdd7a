package scape

import (
	"errors"
	"fmt"
	"math"

	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/physics"
	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/quantize"
	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/reward"
)

const (
	DefaultTarget   = 100.0
	DefaultMass     = 100.0
	DefaultDT       = 0.1
	DefaultDeadband = 200.0
)

// StopLine is the braking scenario: a fixed target on a 1-D track, the
// vehicle mass, the integration step and the far-field deadband.
type StopLine struct {
	Target   float64 `json:"target"`
	Mass     float64 `json:"mass"`
	DT       float64 `json:"dt"`
	Deadband float64 `json:"deadband"`
}

func Default() StopLine {
	return StopLine{
		Target:   DefaultTarget,
		Mass:     DefaultMass,
		DT:       DefaultDT,
		Deadband: DefaultDeadband,
	}
}

func (l StopLine) Validate() error {
	if !(l.Mass > 0) {
		return errors.New("mass must be positive")
	}
	if !(l.DT > 0) {
		return errors.New("time step must be positive")
	}
	if math.IsNaN(l.Target) || math.IsInf(l.Target, 0) {
		return fmt.Errorf("target must be finite, got %v", l.Target)
	}
	if math.IsNaN(l.Deadband) {
		return errors.New("deadband must be a number")
	}
	return nil
}

// Offset is the signed offset d = position - target used by the quantizer
// and the reward.
func (l StopLine) Offset(position float64) float64 {
	return position - l.Target
}

// InDeadband reports whether the vehicle is beyond the decision range, where
// no action is chosen and the force is zero.
func (l StopLine) InDeadband(position float64) bool {
	return l.Offset(position) > l.Deadband
}

func (l StopLine) StateIndex(s physics.State) int {
	return quantize.StateIndex(s.Position, s.Velocity, l.Target, l.Mass)
}

func (l StopLine) Advance(s physics.State, force float64) physics.State {
	return s.Advance(force, l.Mass, l.DT)
}

func (l StopLine) Reward(s physics.State) float64 {
	return reward.Reward(s.Position, s.Velocity, l.Target)
}

func (l StopLine) Stopped(s physics.State) bool {
	return reward.Stopped(s.Position, s.Velocity, l.Target)
}

// Reached reports whether the vehicle has arrived at or passed the target.
func (l StopLine) Reached(s physics.State) bool {
	return s.Position >= l.Target
}

// TicksFor converts a duration in seconds to a whole number of ticks.
func (l StopLine) TicksFor(seconds float64) int {
	return int(seconds / l.DT)
}
