package scape

import "math"

// Sample is one tick of an episode log.
type Sample struct {
	Time     float64 `json:"time"`
	Position float64 `json:"position"`
	Velocity float64 `json:"velocity"`
	Force    float64 `json:"force"`
}

// Trajectory is the append-only per-tick episode log.
type Trajectory []Sample

func (t Trajectory) Final() (Sample, bool) {
	if len(t) == 0 {
		return Sample{}, false
	}
	return t[len(t)-1], true
}

func (t Trajectory) MaxPosition() float64 {
	highest := math.Inf(-1)
	for _, s := range t {
		if s.Position > highest {
			highest = s.Position
		}
	}
	return highest
}

// Equal compares two trajectories tick by tick.
func (t Trajectory) Equal(other Trajectory) bool {
	if len(t) != len(other) {
		return false
	}
	for i := range t {
		if t[i] != other[i] {
			return false
		}
	}
	return true
}
