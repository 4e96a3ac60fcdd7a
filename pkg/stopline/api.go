package stopline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/model"
	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/physics"
	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/platform"
	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/policy"
	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/quantize"
	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/scape"
	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/stats"
	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/storage"
	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/trainer"
)

const (
	defaultArtifactsDir = "stopline_data"
	defaultExportsDir   = "exports"
	showTailWindow      = 100
)

type Options struct {
	StoreKind    string
	StorePath    string
	ArtifactsDir string
	ExportsDir   string
	Line         scape.StopLine
	Logger       *zerolog.Logger
}

type Client struct {
	store    storage.Store
	platform *platform.Platform

	artifactsDir string
	exportsDir   string
}

type TrainRequest struct {
	RunID        string
	PolicyID     string
	Config       trainer.Config
	ContinueFrom string
	// Preview replays the trained policy once from PreviewState and stores
	// the trajectory with the run artifacts.
	Preview      bool
	PreviewState physics.State
	PreviewTicks int
}

type TrainSummary struct {
	RunID         string
	PolicyID      string
	ArtifactsDir  string
	Episodes      int
	Successes     int
	VisitedStates int
	FinalEpsilon  float64
	Returns       stats.ReturnSummary
	Preview       scape.Trajectory
}

type ReplayRequest struct {
	PolicyID    string
	Latest      bool
	Actions     policy.ActionSet
	Initial     physics.State
	MaxTicks    int
	Depart      bool
	DepartWait  time.Duration
	DepartForce float64
}

type ReplaySummary struct {
	PolicyID   string
	Trajectory scape.Trajectory
	Outcome    scape.EpisodeOutcome
	Phase      string
	Status     string
}

type EvaluateRequest struct {
	PolicyID string
	Latest   bool
	Actions  policy.ActionSet
	Scape    string
	Mode     string
}

type InspectRequest struct {
	PolicyID string
	Latest   bool
	Actions  policy.ActionSet
	// VisitedOnly drops states whose row is still all zeros.
	VisitedOnly bool
}

// StateRow is one row of a policy table with its decoded buckets.
type StateRow struct {
	Index     int
	Buckets   quantize.Buckets
	Values    []float64
	Best      int
	BestForce float64
	Label     string
}

type InspectSummary struct {
	PolicyID string
	RunID    string
	Actions  policy.ActionSet
	// Config is the training configuration from the run artifacts, when present.
	Config   *stats.RunConfig
	Visited  int
	Rows     []StateRow
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID          string
	PolicyID       string
	CreatedAtUTC   string
	Seed           int64
	Episodes       int
	Successes      int
	VisitedStates  int
	TailMeanReturn float64
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

type ShowRequest struct {
	RunID  string
	Latest bool
}

// RunDetails is what the artifacts directory holds for one run.
type RunDetails struct {
	RunID          string
	Config         stats.RunConfig
	Returns        stats.ReturnSummary
	// Preview is the stored replay of the trained policy; empty when the run
	// was trained without one.
	Preview        scape.Trajectory
	PreviewOutcome scape.EpisodeOutcome
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}

	store, err := storage.NewStore(storeKind, opts.StorePath)
	if err != nil {
		return nil, err
	}
	return &Client{
		store: store,
		platform: platform.New(platform.Config{
			Store:        store,
			ArtifactsDir: artifactsDir,
			Logger:       opts.Logger,
			Line:         opts.Line,
		}),
		artifactsDir: artifactsDir,
		exportsDir:   exportsDir,
	}, nil
}

func (c *Client) Close() error {
	if c.platform.Started() {
		return c.platform.Stop()
	}
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.platform.Init(ctx)
}

func (c *Client) ensureStarted(ctx context.Context) error {
	if c.platform.Started() {
		return nil
	}
	return c.platform.Init(ctx)
}

func (c *Client) Train(ctx context.Context, req TrainRequest) (TrainSummary, error) {
	if err := c.ensureStarted(ctx); err != nil {
		return TrainSummary{}, err
	}
	if req.Config.Actions == nil {
		req.Config.Actions = policy.DefaultActions.Clone()
	}
	preq := platform.TrainRequest{
		RunID:        req.RunID,
		PolicyID:     req.PolicyID,
		Config:       req.Config,
		ContinueFrom: req.ContinueFrom,
		PreviewTicks: req.PreviewTicks,
	}
	if req.Preview {
		initial := req.PreviewState
		preq.Preview = &initial
	}
	out, err := c.platform.Train(ctx, preq)
	if err != nil {
		return TrainSummary{}, err
	}
	return TrainSummary{
		RunID:         out.Run.ID,
		PolicyID:      out.Policy.ID,
		ArtifactsDir:  out.ArtifactsDir,
		Episodes:      out.Run.Episodes,
		Successes:     out.Run.Successes,
		VisitedStates: out.Run.VisitedStates,
		FinalEpsilon:  out.Run.FinalEpsilon,
		Returns:       out.Summary,
		Preview:       out.Preview,
	}, nil
}

func (c *Client) Replay(ctx context.Context, req ReplayRequest) (ReplaySummary, error) {
	policyID, err := c.resolvePolicy(ctx, req.PolicyID, req.Latest)
	if err != nil {
		return ReplaySummary{}, err
	}
	if req.MaxTicks <= 0 {
		return ReplaySummary{}, errors.New("replay requires a positive tick limit")
	}
	out, err := c.platform.Replay(ctx, platform.ReplayRequest{
		PolicyID:    policyID,
		Actions:     actionsOrDefault(req.Actions),
		Initial:     req.Initial,
		MaxTicks:    req.MaxTicks,
		Depart:      req.Depart,
		DepartWait:  req.DepartWait,
		DepartForce: req.DepartForce,
	})
	if err != nil {
		return ReplaySummary{}, err
	}
	return ReplaySummary{
		PolicyID:   policyID,
		Trajectory: out.Trajectory,
		Outcome:    out.Outcome,
		Phase:      out.Phase.String(),
		Status:     out.Status,
	}, nil
}

func (c *Client) Evaluate(ctx context.Context, req EvaluateRequest) (model.EvaluationRecord, error) {
	policyID, err := c.resolvePolicy(ctx, req.PolicyID, req.Latest)
	if err != nil {
		return model.EvaluationRecord{}, err
	}
	return c.platform.Evaluate(ctx, platform.EvaluateRequest{
		PolicyID: policyID,
		Actions:  actionsOrDefault(req.Actions),
		Scape:    req.Scape,
		Mode:     req.Mode,
	})
}

func (c *Client) Evaluations(ctx context.Context, policyID string) ([]model.EvaluationRecord, error) {
	if err := c.ensureStarted(ctx); err != nil {
		return nil, err
	}
	return c.platform.Evaluations(ctx, policyID)
}

func (c *Client) Inspect(ctx context.Context, req InspectRequest) (InspectSummary, error) {
	policyID, err := c.resolvePolicy(ctx, req.PolicyID, req.Latest)
	if err != nil {
		return InspectSummary{}, err
	}
	actions := actionsOrDefault(req.Actions)
	view, record, err := c.platform.LoadPolicy(ctx, policyID, actions)
	if err != nil {
		return InspectSummary{}, err
	}

	summary := InspectSummary{PolicyID: record.ID, RunID: record.RunID, Actions: view.Actions()}
	if record.RunID != "" {
		cfg, ok, err := stats.ReadRunConfig(c.artifactsDir, record.RunID)
		if err != nil {
			return InspectSummary{}, fmt.Errorf("read run config: %w", err)
		}
		if ok {
			summary.Config = &cfg
		}
	}
	states, _ := view.Shape()
	for s := 0; s < states; s++ {
		values := view.Values(s)
		visited := !allZero(values)
		if visited {
			summary.Visited++
		}
		if req.VisitedOnly && !visited {
			continue
		}
		buckets, err := quantize.Unpack(s)
		if err != nil {
			return InspectSummary{}, err
		}
		best := view.Best(s)
		force := actions.Force(best)
		summary.Rows = append(summary.Rows, StateRow{
			Index:     s,
			Buckets:   buckets,
			Values:    values,
			Best:      best,
			BestForce: force,
			Label:     actions.Label(force),
		})
	}
	return summary, nil
}

func allZero(values []float64) bool {
	for _, v := range values {
		if v != 0 {
			return false
		}
	}
	return true
}

func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	if err := c.ensureStarted(ctx); err != nil {
		return nil, err
	}
	runs, err := c.platform.Runs(ctx)
	if err != nil {
		return nil, err
	}
	if len(runs) > req.Limit {
		runs = runs[:req.Limit]
	}

	out := make([]RunItem, 0, len(runs))
	for _, r := range runs {
		out = append(out, RunItem{
			RunID:          r.ID,
			PolicyID:       r.PolicyID,
			CreatedAtUTC:   r.CreatedAtUTC,
			Seed:           r.Seed,
			Episodes:       r.Episodes,
			Successes:      r.Successes,
			VisitedStates:  r.VisitedStates,
			TailMeanReturn: r.TailMeanReturn,
		})
	}
	return out, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.RunID != "" && req.Latest {
		return ExportSummary{}, errors.New("use either run id or latest")
	}
	if req.RunID == "" && !req.Latest {
		return ExportSummary{}, errors.New("export requires run id or latest")
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	runID, err := c.resolveRun(req.RunID, req.Latest)
	if err != nil {
		return ExportSummary{}, err
	}

	exportedDir, err := stats.ExportRunArtifacts(c.artifactsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

// Show reads back the artifacts of a run: its configuration, the return
// series and the preview trajectory.
func (c *Client) Show(_ context.Context, req ShowRequest) (RunDetails, error) {
	if req.RunID != "" && req.Latest {
		return RunDetails{}, errors.New("use either run id or latest")
	}
	if req.RunID == "" && !req.Latest {
		return RunDetails{}, errors.New("show requires run id or latest")
	}
	runID, err := c.resolveRun(req.RunID, req.Latest)
	if err != nil {
		return RunDetails{}, err
	}

	cfg, ok, err := stats.ReadRunConfig(c.artifactsDir, runID)
	if err != nil {
		return RunDetails{}, err
	}
	if !ok {
		return RunDetails{}, fmt.Errorf("run %s has no artifacts in %s", runID, c.artifactsDir)
	}
	details := RunDetails{RunID: runID, Config: cfg}

	returns, ok, err := stats.ReadReturnSeries(c.artifactsDir, runID)
	if err != nil {
		return RunDetails{}, fmt.Errorf("read return series: %w", err)
	}
	if ok {
		details.Returns = stats.Summarize(returns, showTailWindow)
	}

	traj, ok, err := stats.ReadRunTrajectory(c.artifactsDir, runID)
	if err != nil {
		return RunDetails{}, fmt.Errorf("read preview trajectory: %w", err)
	}
	if ok {
		details.Preview = traj
		line := scape.StopLine{Target: cfg.Target, Mass: cfg.Mass, DT: cfg.DT, Deadband: cfg.Deadband}
		details.PreviewOutcome = scape.Score(line, traj)
	}
	return details, nil
}

// resolveRun returns runID, or the newest entry of the run index when latest is set.
func (c *Client) resolveRun(runID string, latest bool) (string, error) {
	if !latest {
		return runID, nil
	}
	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", errors.New("no runs available in the run index")
	}
	return entries[0].RunID, nil
}

// resolvePolicy returns the given id, or the policy of the newest stored run
// when latest is set.
func (c *Client) resolvePolicy(ctx context.Context, policyID string, latest bool) (string, error) {
	if policyID != "" && latest {
		return "", errors.New("use either policy id or latest")
	}
	if policyID == "" && !latest {
		return "", errors.New("policy id or latest is required")
	}
	if err := c.ensureStarted(ctx); err != nil {
		return "", err
	}
	if !latest {
		return policyID, nil
	}
	runs, err := c.platform.Runs(ctx)
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", fmt.Errorf("%w: no runs stored", platform.ErrPolicyNotFound)
	}
	return runs[0].PolicyID, nil
}

func actionsOrDefault(actions policy.ActionSet) policy.ActionSet {
	if len(actions) == 0 {
		return policy.DefaultActions
	}
	return actions
}
