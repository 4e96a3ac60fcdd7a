// Package trainer runs tabular Q-learning episodes against a stop line.
package trainer

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/physics"
	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/policy"
	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/quantize"
	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/scape"
	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/stats"
)

// Result is the outcome of a training run.
type Result struct {
	Table        *policy.Table
	Returns      []float64
	Successes    int
	Visited      []bool
	FinalEpsilon float64
}

// VisitedCount counts the states that received at least one update.
func (r Result) VisitedCount() int {
	n := 0
	for _, v := range r.Visited {
		if v {
			n++
		}
	}
	return n
}

// Trainer owns the table for the duration of a run.
type Trainer struct {
	cfg      Config
	line     scape.StopLine
	rng      *rand.Rand
	selector *policy.EpsilonGreedy
	table    *policy.Table
	log      zerolog.Logger
	metrics  *instruments
}

type Option func(*Trainer)

func WithLogger(log zerolog.Logger) Option {
	return func(t *Trainer) {
		t.log = log
	}
}

// WithTable continues training from an existing table instead of zeros.
func WithTable(table *policy.Table) Option {
	return func(t *Trainer) {
		t.table = table
	}
}

func New(cfg Config, opts ...Option) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid training config: %w", err)
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	t := &Trainer{
		cfg:      cfg,
		line:     cfg.Line(),
		rng:      rng,
		selector: policy.NewEpsilonGreedy(rng, cfg.EpsilonStart),
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.table == nil {
		table, err := policy.NewTable(cfg.Actions)
		if err != nil {
			return nil, err
		}
		t.table = table
	} else if !t.table.Actions().Equal(cfg.Actions) {
		return nil, fmt.Errorf("%w: table %v, config %v", policy.ErrActionSetMismatch, t.table.Actions(), cfg.Actions)
	}
	metrics, err := newInstruments()
	if err != nil {
		return nil, err
	}
	t.metrics = metrics
	return t, nil
}

// Run trains for cfg.Episodes episodes. Cancellation is checked between
// episodes; on cancellation the partial result is returned with the error.
func (t *Trainer) Run(ctx context.Context) (Result, error) {
	result := Result{
		Table:   t.table,
		Returns: make([]float64, 0, t.cfg.Episodes),
		Visited: make([]bool, quantize.NumStates),
	}
	t.log.Info().
		Int("episodes", t.cfg.Episodes).
		Int64("seed", t.cfg.Seed).
		Float64("epsilon", t.selector.Epsilon()).
		Msg("training started")

	for episode := 1; episode <= t.cfg.Episodes; episode++ {
		if err := ctx.Err(); err != nil {
			result.FinalEpsilon = t.selector.Epsilon()
			return result, err
		}
		total, success := t.episode(result.Visited)
		result.Returns = append(result.Returns, total)
		if success {
			result.Successes++
		}
		t.record(ctx, total, success)
		t.selector.SetEpsilon(math.Max(t.cfg.EpsilonMin, t.selector.Epsilon()*t.cfg.EpsilonDecay))

		if t.cfg.ReportEvery > 0 && episode%t.cfg.ReportEvery == 0 {
			mean, std := stats.Rolling(result.Returns, t.cfg.ReportEvery)
			t.log.Info().
				Int("episode", episode).
				Float64("mean_return", mean).
				Float64("std_return", std).
				Float64("epsilon", t.selector.Epsilon()).
				Int("successes", result.Successes).
				Msg("training progress")
		}
	}

	result.FinalEpsilon = t.selector.Epsilon()
	t.log.Info().
		Int("successes", result.Successes).
		Int("visited_states", result.VisitedCount()).
		Float64("epsilon", result.FinalEpsilon).
		Msg("training finished")
	return result, nil
}

// episode runs one episode from a random initial velocity and returns the
// undiscounted return and whether the vehicle stopped at the line.
func (t *Trainer) episode(visited []bool) (float64, bool) {
	v0 := t.cfg.VelocityMin + t.rng.Float64()*(t.cfg.VelocityMax-t.cfg.VelocityMin)
	state := physics.State{Position: t.cfg.StartPosition, Velocity: v0}
	total := 0.0
	for tick := 0; tick < t.cfg.MaxTicks; tick++ {
		if t.line.InDeadband(state.Position) {
			state = t.line.Advance(state, 0)
			continue
		}
		s := t.line.StateIndex(state)
		action := t.table.Choose(t.selector, s)
		state = t.line.Advance(state, t.cfg.Actions.Force(action))
		r := t.line.Reward(state)
		total += r
		t.table.Update(s, action, r, t.line.StateIndex(state), t.cfg.Alpha, t.cfg.Gamma)
		visited[s] = true
		if t.line.Stopped(state) {
			return total, true
		}
	}
	return total, false
}

func (t *Trainer) record(ctx context.Context, total float64, success bool) {
	attrs := metric.WithAttributes(attribute.Bool("success", success))
	t.metrics.episodes.Add(ctx, 1, attrs)
	if success {
		t.metrics.successes.Add(ctx, 1)
	}
	t.metrics.returns.Record(ctx, total, attrs)
}
