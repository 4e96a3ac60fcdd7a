package policy

import (
	"errors"
	"fmt"
	"math"
)

// ActionSet is the ordered list of brake forces. The order defines the
// column index of every policy table trained against it.
type ActionSet []float64

// DefaultActions is the canonical five-level brake set.
var DefaultActions = ActionSet{0, -500, -1000, -1750, -2500}

// UnknownLabel is reported for forces outside the action set.
const UnknownLabel = "Unknown"

var defaultLabels = []string{
	"No braking",
	"Light braking",
	"Medium braking",
	"Hard braking",
	"Very hard braking",
}

var ErrActionSetMismatch = errors.New("action set mismatch")

func (a ActionSet) Len() int {
	return len(a)
}

// Force returns the force for an action index.
func (a ActionSet) Force(action int) float64 {
	return a[action]
}

// IndexOf finds the column of a force value.
func (a ActionSet) IndexOf(force float64) (int, bool) {
	for i, f := range a {
		if f == force {
			return i, true
		}
	}
	return -1, false
}

// Label returns a human-readable name for the force. Forces outside the
// set are not an error and map to UnknownLabel.
func (a ActionSet) Label(force float64) string {
	idx, ok := a.IndexOf(force)
	if !ok {
		return UnknownLabel
	}
	if len(a) == len(defaultLabels) && idx < len(defaultLabels) {
		return defaultLabels[idx]
	}
	if force == 0 {
		return defaultLabels[0]
	}
	return fmt.Sprintf("Braking %.0f", math.Abs(force))
}

func (a ActionSet) Equal(other ActionSet) bool {
	if len(a) != len(other) {
		return false
	}
	for i := range a {
		if a[i] != other[i] {
			return false
		}
	}
	return true
}

func (a ActionSet) Validate() error {
	if len(a) == 0 {
		return errors.New("action set is empty")
	}
	seen := make(map[float64]struct{}, len(a))
	for i, f := range a {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("action %d: force must be finite", i)
		}
		if _, dup := seen[f]; dup {
			return fmt.Errorf("action %d: duplicate force %.0f", i, f)
		}
		seen[f] = struct{}{}
	}
	return nil
}

func (a ActionSet) Clone() ActionSet {
	return append(ActionSet(nil), a...)
}
