package stopline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/physics"
	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/platform"
	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/policy"
	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/trainer"
)

func newTestClient(t *testing.T, base string) *Client {
	t.Helper()
	client, err := New(Options{
		StoreKind:    "file",
		StorePath:    filepath.Join(base, "store"),
		ArtifactsDir: filepath.Join(base, "artifacts"),
		ExportsDir:   filepath.Join(base, "exports"),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

func trainingConfig() trainer.Config {
	cfg := trainer.DefaultConfig()
	cfg.Seed = 1
	cfg.Episodes = 2000
	cfg.ReportEvery = 0
	return cfg
}

func TestClientTrainReplayEvaluateInspectExport(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	client := newTestClient(t, base)

	summary, err := client.Train(ctx, TrainRequest{
		RunID:        "run-a",
		Config:       trainingConfig(),
		Preview:      true,
		PreviewState: physics.State{Position: 0, Velocity: 70},
		PreviewTicks: 400,
	})
	require.NoError(t, err)
	assert.Equal(t, "run-a", summary.PolicyID)
	assert.Equal(t, 2000, summary.Episodes)
	assert.Positive(t, summary.Successes)
	assert.NotEmpty(t, summary.Preview)
	assert.DirExists(t, summary.ArtifactsDir)

	runs, err := client.Runs(ctx, RunsRequest{Limit: 5})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-a", runs[0].RunID)

	replay, err := client.Replay(ctx, ReplayRequest{
		Latest:   true,
		Initial:  physics.State{Position: 0, Velocity: 70},
		MaxTicks: 400,
	})
	require.NoError(t, err)
	assert.Equal(t, "run-a", replay.PolicyID)
	assert.True(t, replay.Outcome.Success)
	assert.Equal(t, "stopped", replay.Phase)
	assert.True(t, replay.Trajectory.Equal(summary.Preview))

	eval, err := client.Evaluate(ctx, EvaluateRequest{PolicyID: "run-a", Mode: "validation"})
	require.NoError(t, err)
	assert.Equal(t, "validation", eval.Mode)
	assert.Equal(t, 1.0, eval.Fitness)
	assert.Equal(t, 3, eval.Episodes)

	evals, err := client.Evaluations(ctx, "run-a")
	require.NoError(t, err)
	require.Len(t, evals, 1)

	inspect, err := client.Inspect(ctx, InspectRequest{Latest: true, VisitedOnly: true})
	require.NoError(t, err)
	assert.Equal(t, "run-a", inspect.RunID)
	require.NotNil(t, inspect.Config)
	assert.Equal(t, int64(1), inspect.Config.Seed)
	assert.Equal(t, 2000, inspect.Config.Episodes)
	require.NotEmpty(t, inspect.Rows)
	assert.Equal(t, len(inspect.Rows), inspect.Visited)
	var found bool
	for _, row := range inspect.Rows {
		assert.Equal(t, 3, row.Index%4, "target and mass buckets are fixed by the defaults")
		if row.Index == 63 {
			found = true
			assert.Equal(t, -2500.0, row.BestForce)
			assert.Equal(t, "Very hard braking", row.Label)
		}
	}
	assert.True(t, found, "expected state 63 among visited rows")

	exported, err := client.Export(ctx, ExportRequest{Latest: true})
	require.NoError(t, err)
	assert.Equal(t, "run-a", exported.RunID)
	assert.FileExists(t, filepath.Join(exported.Directory, "config.json"))
	assert.FileExists(t, filepath.Join(exported.Directory, "trajectory.csv"))

	details, err := client.Show(ctx, ShowRequest{Latest: true})
	require.NoError(t, err)
	assert.Equal(t, "run-a", details.RunID)
	assert.Equal(t, "run-a", details.Config.PolicyID)
	assert.Equal(t, "file", details.Config.StoreKind)
	assert.Equal(t, summary.Returns, details.Returns)
	assert.True(t, details.Preview.Equal(summary.Preview))
	assert.True(t, details.PreviewOutcome.Success)

	_, err = client.Evaluate(ctx, EvaluateRequest{PolicyID: "run-a", Scape: "crossing"})
	assert.ErrorContains(t, err, "registered: stop-line")
}

func TestClientShowWithoutPreview(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, t.TempDir())

	cfg := trainingConfig()
	cfg.Episodes = 50
	trained, err := client.Train(ctx, TrainRequest{RunID: "bare", Config: cfg})
	require.NoError(t, err)

	details, err := client.Show(ctx, ShowRequest{RunID: "bare"})
	require.NoError(t, err)
	assert.Empty(t, details.Preview)
	assert.False(t, details.PreviewOutcome.Success)
	assert.Equal(t, 50, details.Returns.Episodes)
	assert.Equal(t, trained.Returns.Mean, details.Returns.Mean)
}

func TestClientPolicySurvivesReopen(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	initial := physics.State{Position: 0, Velocity: 70}

	first := newTestClient(t, base)
	_, err := first.Train(ctx, TrainRequest{PolicyID: "brake", Config: trainingConfig()})
	require.NoError(t, err)
	before, err := first.Replay(ctx, ReplayRequest{PolicyID: "brake", Initial: initial, MaxTicks: 400})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second := newTestClient(t, base)
	after, err := second.Replay(ctx, ReplayRequest{PolicyID: "brake", Initial: initial, MaxTicks: 400})
	require.NoError(t, err)
	assert.True(t, before.Trajectory.Equal(after.Trajectory))
}

func TestClientRequestValidation(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, t.TempDir())

	_, err := client.Replay(ctx, ReplayRequest{MaxTicks: 10})
	assert.Error(t, err)
	_, err = client.Replay(ctx, ReplayRequest{PolicyID: "x", Latest: true, MaxTicks: 10})
	assert.Error(t, err)
	_, err = client.Inspect(ctx, InspectRequest{Latest: true})
	assert.ErrorIs(t, err, platform.ErrPolicyNotFound)
	_, err = client.Export(ctx, ExportRequest{})
	assert.Error(t, err)
	_, err = client.Export(ctx, ExportRequest{RunID: "x", Latest: true})
	assert.Error(t, err)
	_, err = client.Export(ctx, ExportRequest{Latest: true})
	assert.Error(t, err)
	_, err = client.Show(ctx, ShowRequest{})
	assert.Error(t, err)
	_, err = client.Show(ctx, ShowRequest{RunID: "x", Latest: true})
	assert.Error(t, err)
	_, err = client.Show(ctx, ShowRequest{Latest: true})
	assert.Error(t, err)
	_, err = client.Show(ctx, ShowRequest{RunID: "ghost"})
	assert.Error(t, err)

	cfg := trainingConfig()
	cfg.Episodes = 3
	_, err = client.Train(ctx, TrainRequest{PolicyID: "small", Config: cfg})
	require.NoError(t, err)
	_, err = client.Replay(ctx, ReplayRequest{PolicyID: "small", MaxTicks: 0})
	assert.Error(t, err)
	_, err = client.Evaluate(ctx, EvaluateRequest{PolicyID: "small", Actions: policy.ActionSet{0, -100}})
	assert.ErrorIs(t, err, policy.ErrActionSetMismatch)
	_, err = client.Replay(ctx, ReplayRequest{PolicyID: "missing", MaxTicks: 5})
	assert.ErrorIs(t, err, platform.ErrPolicyNotFound)
}

func TestNewRejectsUnknownStore(t *testing.T) {
	_, err := New(Options{StoreKind: "bogus"})
	assert.Error(t, err)
	_, err = New(Options{StoreKind: "file"})
	assert.Error(t, err)
}
