package scape

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/physics"
	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/reward"
)

// StopLineScape scores an agent by how often it comes to rest inside the
// tolerance band around the line without running past it.
type StopLineScape struct {
	Line          StopLine
	StartPosition float64
}

func (StopLineScape) Name() string {
	return "stop-line"
}

func (s StopLineScape) Evaluate(ctx context.Context, agent Agent) (Fitness, Trace, error) {
	return s.EvaluateMode(ctx, agent, "gt")
}

func (s StopLineScape) EvaluateMode(ctx context.Context, agent Agent, mode string) (Fitness, Trace, error) {
	if agent == nil {
		return 0, nil, fmt.Errorf("stop-line evaluation requires an agent")
	}
	cfg, err := stopLineConfigForMode(mode)
	if err != nil {
		return 0, nil, err
	}
	return evaluateStopLine(ctx, s.line(), s.StartPosition, agent, cfg)
}

func (s StopLineScape) line() StopLine {
	if s.Line == (StopLine{}) {
		return Default()
	}
	return s.Line
}

type stopLineModeConfig struct {
	mode       string
	velocities []float64
	maxTicks   int
}

func stopLineConfigForMode(mode string) (stopLineModeConfig, error) {
	switch strings.TrimSpace(strings.ToLower(mode)) {
	case "", "gt":
		return stopLineModeConfig{
			mode:       "gt",
			velocities: []float64{40, 55, 70, 85, 100},
			maxTicks:   400,
		}, nil
	case "validation":
		return stopLineModeConfig{
			mode:       "validation",
			velocities: []float64{45, 65, 95},
			maxTicks:   400,
		}, nil
	case "test":
		return stopLineModeConfig{
			mode:       "test",
			velocities: []float64{50, 60, 75, 90},
			maxTicks:   400,
		}, nil
	case "benchmark":
		return stopLineModeConfig{
			mode:       "benchmark",
			velocities: []float64{50, 60, 75, 90},
			maxTicks:   400,
		}, nil
	default:
		return stopLineModeConfig{}, fmt.Errorf("unsupported stop-line mode: %s", mode)
	}
}

// EpisodeOutcome summarizes a single trajectory against a stop line.
type EpisodeOutcome struct {
	Success   bool
	Overshoot bool
	Ticks     int
	StopError float64
}

// Score finds the first tick at which the vehicle is at rest inside the
// tolerance band. The episode succeeds when that tick exists and the vehicle
// never went past target+tolerance before it.
func Score(line StopLine, traj Trajectory) EpisodeOutcome {
	limit := line.Target + reward.Tolerance
	out := EpisodeOutcome{Ticks: len(traj), StopError: math.Inf(1)}
	highest := math.Inf(-1)
	for i, sample := range traj {
		highest = math.Max(highest, sample.Position)
		if math.Abs(line.Offset(sample.Position)) <= reward.Tolerance && sample.Velocity < reward.StoppedSpeed {
			out.Ticks = i + 1
			out.StopError = math.Abs(line.Offset(sample.Position))
			out.Overshoot = highest > limit
			out.Success = !out.Overshoot
			return out
		}
	}
	if final, ok := traj.Final(); ok {
		out.StopError = math.Abs(line.Offset(final.Position))
	}
	out.Overshoot = highest > limit
	return out
}

func evaluateStopLine(ctx context.Context, line StopLine, start float64, agent Agent, cfg stopLineModeConfig) (Fitness, Trace, error) {
	successes := 0
	overshoots := 0
	totalTicks := 0
	totalError := 0.0
	for _, v0 := range cfg.velocities {
		if err := ctx.Err(); err != nil {
			return 0, nil, err
		}
		traj, err := agent.Run(ctx, physics.State{Position: start, Velocity: v0}, cfg.maxTicks)
		if err != nil {
			return 0, nil, fmt.Errorf("agent %s at v0=%g: %w", agent.ID(), v0, err)
		}
		outcome := Score(line, traj)
		if outcome.Success {
			successes++
		}
		if outcome.Overshoot {
			overshoots++
		}
		totalTicks += outcome.Ticks
		totalError += outcome.StopError
	}

	episodes := len(cfg.velocities)
	rate := float64(successes) / float64(episodes)
	return Fitness(rate), Trace{
		"mode":            cfg.mode,
		"episodes":        episodes,
		"successes":       successes,
		"overshoots":      overshoots,
		"success_rate":    rate,
		"mean_ticks":      float64(totalTicks) / float64(episodes),
		"mean_stop_error": totalError / float64(episodes),
	}, nil
}
