package scape

import (
	"context"

	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/physics"
)

type Fitness float64

type Trace map[string]any

// Agent drives one episode from an initial state and returns its log.
type Agent interface {
	ID() string
	Run(ctx context.Context, initial physics.State, maxTicks int) (Trajectory, error)
}

type Scape interface {
	Name() string
	Evaluate(ctx context.Context, agent Agent) (Fitness, Trace, error)
}

// ModeAwareScape optionally exposes evaluation mode routing for gt/validation/test flows.
type ModeAwareScape interface {
	Scape
	EvaluateMode(ctx context.Context, agent Agent, mode string) (Fitness, Trace, error)
}
