package policy

import (
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// Selector picks an action index from the estimates of one state.
type Selector interface {
	Select(values []float64) int
}

// Greedy always exploits: the first maximum wins.
type Greedy struct{}

func (Greedy) Select(values []float64) int {
	return floats.MaxIdx(values)
}

// EpsilonGreedy explores uniformly with probability Epsilon and otherwise
// behaves like Greedy.
type EpsilonGreedy struct {
	rng     *rand.Rand
	epsilon float64
}

func NewEpsilonGreedy(rng *rand.Rand, epsilon float64) *EpsilonGreedy {
	return &EpsilonGreedy{rng: rng, epsilon: epsilon}
}

func (e *EpsilonGreedy) Epsilon() float64 {
	return e.epsilon
}

func (e *EpsilonGreedy) SetEpsilon(epsilon float64) {
	e.epsilon = epsilon
}

func (e *EpsilonGreedy) Select(values []float64) int {
	if e.rng.Float64() < e.epsilon {
		return e.rng.Intn(len(values))
	}
	return floats.MaxIdx(values)
}
