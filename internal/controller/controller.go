// Package controller replays a trained policy greedily against a stop line.
package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/physics"
	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/policy"
	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/scape"
)

type Phase int

const (
	PhaseCoasting Phase = iota
	PhaseBraking
	PhaseStopped
	PhaseWaiting
	PhaseDeparting
)

func (p Phase) String() string {
	switch p {
	case PhaseCoasting:
		return "coasting"
	case PhaseBraking:
		return "braking"
	case PhaseStopped:
		return "stopped"
	case PhaseWaiting:
		return "waiting"
	case PhaseDeparting:
		return "departing"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

const (
	DefaultDepartureWait  = 2 * time.Second
	DefaultDepartureForce = 500.0
)

type departure struct {
	waitTicks int
	force     float64
}

// Controller is a single-episode greedy driver. It is not safe for
// concurrent use; Run resets it, so one controller can drive many episodes.
type Controller struct {
	id      string
	view    *policy.View
	actions policy.ActionSet
	line    scape.StopLine
	depart  *departure
	log     zerolog.Logger
	metrics *instruments

	state  physics.State
	force  float64
	phase  Phase
	tick   int
	waited int
}

type Option func(*Controller) error

func WithID(id string) Option {
	return func(c *Controller) error {
		c.id = id
		return nil
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(c *Controller) error {
		c.log = log
		return nil
	}
}

// WithDeparture scripts the vehicle to pull away after it has stopped: it
// waits for the given duration at zero force, then applies force forward.
func WithDeparture(wait time.Duration, force float64) Option {
	return func(c *Controller) error {
		if wait < 0 {
			return fmt.Errorf("departure wait must not be negative, got %s", wait)
		}
		c.depart = &departure{waitTicks: c.line.TicksFor(wait.Seconds()), force: force}
		return nil
	}
}

func New(view *policy.View, line scape.StopLine, opts ...Option) (*Controller, error) {
	if view == nil {
		return nil, errors.New("controller requires a policy view")
	}
	if err := line.Validate(); err != nil {
		return nil, fmt.Errorf("invalid stop line: %w", err)
	}
	c := &Controller{
		id:      "greedy",
		view:    view,
		actions: view.Actions(),
		line:    line,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	metrics, err := newInstruments()
	if err != nil {
		return nil, err
	}
	c.metrics = metrics
	return c, nil
}

func (c *Controller) ID() string {
	return c.id
}

// Reset puts the controller back at the start of an episode.
func (c *Controller) Reset(initial physics.State) {
	c.state = initial
	c.force = 0
	c.tick = 0
	c.waited = 0
	c.phase = PhaseBraking
	if c.line.InDeadband(initial.Position) {
		c.phase = PhaseCoasting
	}
}

func (c *Controller) State() physics.State {
	return c.state
}

func (c *Controller) Phase() Phase {
	return c.phase
}

func (c *Controller) Force() float64 {
	return c.force
}

// Status is the display text for the current tick.
func (c *Controller) Status() string {
	switch c.phase {
	case PhaseStopped, PhaseWaiting:
		return "Stopped at line"
	case PhaseDeparting:
		return "Departing"
	default:
		return c.actions.Label(c.force)
	}
}

// Step advances one tick and returns its log sample.
func (c *Controller) Step() scape.Sample {
	switch c.phase {
	case PhaseCoasting, PhaseBraking:
		c.drive()
	case PhaseStopped, PhaseWaiting:
		c.force = 0
		if c.depart != nil {
			c.phase = PhaseWaiting
			c.waited++
			if c.waited >= c.depart.waitTicks {
				c.phase = PhaseDeparting
			}
		}
	case PhaseDeparting:
		c.force = c.depart.force
		c.state = c.line.Advance(c.state, c.force)
	}
	c.tick++
	return scape.Sample{
		Time:     float64(c.tick) * c.line.DT,
		Position: c.state.Position,
		Velocity: c.state.Velocity,
		Force:    c.force,
	}
}

func (c *Controller) drive() {
	if c.line.InDeadband(c.state.Position) {
		c.phase = PhaseCoasting
		c.force = 0
	} else {
		c.phase = PhaseBraking
		state := c.line.StateIndex(c.state)
		c.force = c.actions.Force(c.view.Best(state))
	}
	c.state = c.line.Advance(c.state, c.force)
	if c.line.Reached(c.state) {
		c.state = physics.State{Position: c.line.Target, Velocity: 0}
		c.force = 0
		c.phase = PhaseStopped
	}
}

// Run drives one episode from initial for at most maxTicks ticks. Without a
// departure script the episode ends at the stop.
func (c *Controller) Run(ctx context.Context, initial physics.State, maxTicks int) (scape.Trajectory, error) {
	if maxTicks <= 0 {
		return nil, fmt.Errorf("max ticks must be positive, got %d", maxTicks)
	}
	c.Reset(initial)
	traj := make(scape.Trajectory, 0, maxTicks)
	for len(traj) < maxTicks {
		if err := ctx.Err(); err != nil {
			return traj, err
		}
		traj = append(traj, c.Step())
		if c.phase == PhaseStopped && c.depart == nil {
			break
		}
	}
	c.metrics.ticks.Add(ctx, int64(len(traj)))
	c.log.Debug().
		Str("controller", c.id).
		Float64("v0", initial.Velocity).
		Int("ticks", len(traj)).
		Str("phase", c.phase.String()).
		Float64("position", c.state.Position).
		Msg("replay finished")
	return traj, nil
}
