package controller

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/physics"
	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/policy"
	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/quantize"
	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/scape"
	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/trainer"
)

func constantView(t *testing.T, preferred int) *policy.View {
	t.Helper()
	values := make([][]float64, quantize.NumStates)
	for s := range values {
		values[s] = make([]float64, len(policy.DefaultActions))
		if preferred > 0 {
			values[s][preferred] = 1
		}
	}
	view, err := policy.NewView(policy.DefaultActions, values)
	if err != nil {
		t.Fatalf("new view: %v", err)
	}
	return view
}

func mustController(t *testing.T, view *policy.View, opts ...Option) *Controller {
	t.Helper()
	c, err := New(view, scape.Default(), opts...)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	return c
}

func TestRunClampsAtTarget(t *testing.T) {
	c := mustController(t, constantView(t, 0))
	traj, err := c.Run(context.Background(), physics.State{Position: 0, Velocity: 70}, 400)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(traj) != 15 {
		t.Fatalf("expected stop after 15 ticks, got %d", len(traj))
	}
	final, _ := traj.Final()
	if final.Position != 100 || final.Velocity != 0 || final.Force != 0 {
		t.Fatalf("expected clamp to (100,0,0), got %+v", final)
	}
	if traj.MaxPosition() > 100 {
		t.Fatalf("position exceeded the target: %f", traj.MaxPosition())
	}
	if c.Phase() != PhaseStopped || c.Status() != "Stopped at line" {
		t.Fatalf("unexpected phase %s status %q", c.Phase(), c.Status())
	}
	if math.Abs(traj[0].Time-0.1) > 1e-12 || traj[0].Force != 0 {
		t.Fatalf("unexpected first sample %+v", traj[0])
	}
}

func TestStepReportsActionLabel(t *testing.T) {
	c := mustController(t, constantView(t, 2))
	c.Reset(physics.State{Position: 0, Velocity: 70})
	sample := c.Step()
	if sample.Force != -1000 || c.Status() != "Medium braking" || c.Phase() != PhaseBraking {
		t.Fatalf("unexpected step %+v phase %s status %q", sample, c.Phase(), c.Status())
	}
	if c.State().Velocity >= 70 {
		t.Fatalf("expected braking to slow the vehicle, got %+v", c.State())
	}
}

func TestRunStopsShortWithoutClamp(t *testing.T) {
	c := mustController(t, constantView(t, 4))
	traj, err := c.Run(context.Background(), physics.State{Position: 0, Velocity: 70}, 100)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(traj) != 100 {
		t.Fatalf("expected the full tick budget, got %d", len(traj))
	}
	final, _ := traj.Final()
	if final.Position >= 100 || final.Velocity != 0 {
		t.Fatalf("expected the vehicle at rest short of the line, got %+v", final)
	}
	if c.Phase() != PhaseBraking {
		t.Fatalf("expected braking phase, got %s", c.Phase())
	}
	for i, s := range traj {
		if s.Velocity < 0 {
			t.Fatalf("tick %d velocity negative: %f", i, s.Velocity)
		}
	}
}

func TestDeadbandAppliesNoForce(t *testing.T) {
	c := mustController(t, constantView(t, 4))
	c.Reset(physics.State{Position: 350, Velocity: 10})
	if c.Phase() != PhaseCoasting {
		t.Fatalf("expected coasting phase, got %s", c.Phase())
	}
	sample := c.Step()
	if sample.Force != 0 {
		t.Fatalf("expected zero force beyond the deadband, got %f", sample.Force)
	}
	if c.Phase() != PhaseStopped || sample.Position != 100 {
		t.Fatalf("expected the line clamp past the target, got %+v phase %s", sample, c.Phase())
	}
}

func TestDepartureScript(t *testing.T) {
	c := mustController(t, constantView(t, 0), WithDeparture(DefaultDepartureWait, DefaultDepartureForce))
	traj, err := c.Run(context.Background(), physics.State{Position: 0, Velocity: 70}, 60)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(traj) != 60 {
		t.Fatalf("expected departure run to use all ticks, got %d", len(traj))
	}
	if traj[14].Position != 100 || traj[14].Velocity != 0 {
		t.Fatalf("expected stop at tick 15, got %+v", traj[14])
	}
	for i := 15; i < 35; i++ {
		if traj[i].Force != 0 || traj[i].Position != 100 {
			t.Fatalf("tick %d: expected waiting at the line, got %+v", i+1, traj[i])
		}
	}
	if traj[35].Force != DefaultDepartureForce || math.Abs(traj[35].Velocity-0.5) > 1e-12 {
		t.Fatalf("expected departure at tick 36, got %+v", traj[35])
	}
	final, _ := traj.Final()
	if final.Position <= 100 || c.Phase() != PhaseDeparting || c.Status() != "Departing" {
		t.Fatalf("expected the vehicle to pull away, got %+v phase %s", final, c.Phase())
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	if _, err := New(nil, scape.Default()); err == nil {
		t.Fatal("expected error for nil view")
	}
	if _, err := New(constantView(t, 0), scape.StopLine{Target: 100}); err == nil {
		t.Fatal("expected error for invalid line")
	}
	if _, err := New(constantView(t, 0), scape.Default(), WithDeparture(-time.Second, 500)); err == nil {
		t.Fatal("expected error for negative wait")
	}
	c := mustController(t, constantView(t, 0), WithID("replay-1"))
	if c.ID() != "replay-1" {
		t.Fatalf("unexpected id %q", c.ID())
	}
	if _, err := c.Run(context.Background(), physics.State{Velocity: 70}, 0); err == nil {
		t.Fatal("expected error for zero tick budget")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Run(ctx, physics.State{Velocity: 70}, 10); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func trainedView(t *testing.T) *policy.View {
	t.Helper()
	cfg := trainer.DefaultConfig()
	cfg.Seed = 1
	cfg.Episodes = 2000
	cfg.ReportEvery = 0
	tr, err := trainer.New(cfg)
	if err != nil {
		t.Fatalf("new trainer: %v", err)
	}
	result, err := tr.Run(context.Background())
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	return result.Table.Freeze()
}

func TestTrainedPolicyStopsAtLine(t *testing.T) {
	view := trainedView(t)
	c := mustController(t, view)
	traj, err := c.Run(context.Background(), physics.State{Position: 0, Velocity: 70}, 400)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(traj) >= 400 || c.Phase() != PhaseStopped {
		t.Fatalf("expected a stop within 400 ticks, got %d ticks phase %s", len(traj), c.Phase())
	}
	if traj.MaxPosition() > 101 {
		t.Fatalf("position exceeded target+1: %f", traj.MaxPosition())
	}

	fitness, trace, err := scape.StopLineScape{}.Evaluate(context.Background(), c)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if fitness != 1 {
		t.Fatalf("expected every gt episode to stop at the line, got %f %+v", fitness, trace)
	}
}

func TestReplayIdenticalAfterReload(t *testing.T) {
	view := trainedView(t)
	data, err := view.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	reloaded, err := policy.DecodeView(data, policy.DefaultActions)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	initial := physics.State{Position: 0, Velocity: 70}
	first, err := mustController(t, view).Run(context.Background(), initial, 400)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := mustController(t, reloaded).Run(context.Background(), initial, 400)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !first.Equal(second) {
		t.Fatalf("replay differs after reload:\n%v\n%v", first, second)
	}
}
