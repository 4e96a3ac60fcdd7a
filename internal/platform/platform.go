// Package platform wires storage, training, replay and evaluation together.
package platform

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/controller"
	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/model"
	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/physics"
	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/policy"
	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/quantize"
	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/scape"
	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/stats"
	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/storage"
	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/trainer"
)

var ErrPolicyNotFound = errors.New("policy not found")

type Config struct {
	Store storage.Store
	// ArtifactsDir receives per-run artifacts and the run index; empty disables them.
	ArtifactsDir string
	Logger       *zerolog.Logger
	Line         scape.StopLine
	Now          func() time.Time
}

type Platform struct {
	store        storage.Store
	artifactsDir string
	log          zerolog.Logger
	line         scape.StopLine
	now          func() time.Time

	mu      sync.RWMutex
	scapes  map[string]scape.Scape
	started bool
}

func New(cfg Config) *Platform {
	p := &Platform{
		store:        cfg.Store,
		artifactsDir: cfg.ArtifactsDir,
		log:          zerolog.Nop(),
		line:         cfg.Line,
		now:          cfg.Now,
		scapes:       make(map[string]scape.Scape),
	}
	if cfg.Logger != nil {
		p.log = *cfg.Logger
	}
	if p.line == (scape.StopLine{}) {
		p.line = scape.Default()
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

func (p *Platform) Init(ctx context.Context) error {
	if p.store == nil {
		return fmt.Errorf("store is required")
	}
	if err := p.line.Validate(); err != nil {
		return fmt.Errorf("invalid stop line: %w", err)
	}
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return nil
	}
	if err := p.store.Init(ctx); err != nil {
		p.mu.Unlock()
		return err
	}
	p.started = true
	p.mu.Unlock()

	return p.RegisterScape(scape.StopLineScape{Line: p.line})
}

// Stop releases the store. The platform can be initialized again afterwards.
func (p *Platform) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return nil
	}
	p.started = false
	p.scapes = make(map[string]scape.Scape)
	return storage.CloseIfSupported(p.store)
}

func (p *Platform) Started() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.started
}

func (p *Platform) Line() scape.StopLine {
	return p.line
}

func (p *Platform) RegisterScape(s scape.Scape) error {
	if s == nil {
		return fmt.Errorf("scape is nil")
	}
	name := s.Name()
	if name == "" {
		return fmt.Errorf("scape name is required")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return fmt.Errorf("platform is not initialized")
	}
	p.scapes[name] = s
	return nil
}

func (p *Platform) GetScape(name string) (scape.Scape, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s, ok := p.scapes[name]
	return s, ok
}

func (p *Platform) RegisteredScapes() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, 0, len(p.scapes))
	for name := range p.scapes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p *Platform) ensureStarted() error {
	if !p.Started() {
		return fmt.Errorf("platform is not initialized")
	}
	return nil
}

type TrainRequest struct {
	RunID    string
	PolicyID string
	Config   trainer.Config
	// ContinueFrom names a stored policy to keep training instead of starting from zeros.
	ContinueFrom string
	// Preview, when set, replays the trained policy once from this state and
	// stores the trajectory with the run artifacts.
	Preview      *physics.State
	PreviewTicks int
}

type TrainResult struct {
	Run          model.RunRecord
	Policy       model.PolicyRecord
	Result       trainer.Result
	Summary      stats.ReturnSummary
	ArtifactsDir string
	Preview      scape.Trajectory
}

func (p *Platform) Train(ctx context.Context, req TrainRequest) (TrainResult, error) {
	if err := p.ensureStarted(); err != nil {
		return TrainResult{}, err
	}
	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	policyID := req.PolicyID
	if policyID == "" {
		policyID = runID
	}
	log := p.log.With().Str("run_id", runID).Logger()

	opts := []trainer.Option{trainer.WithLogger(log)}
	if req.ContinueFrom != "" {
		record, err := p.policyRecord(ctx, req.ContinueFrom, req.Config.Actions)
		if err != nil {
			return TrainResult{}, err
		}
		table, err := policy.DecodeTable(record.Table, req.Config.Actions)
		if err != nil {
			return TrainResult{}, fmt.Errorf("load policy %s: %w", req.ContinueFrom, err)
		}
		opts = append(opts, trainer.WithTable(table))
	}

	tr, err := trainer.New(req.Config, opts...)
	if err != nil {
		return TrainResult{}, err
	}
	result, err := tr.Run(ctx)
	if err != nil {
		return TrainResult{}, fmt.Errorf("train run %s: %w", runID, err)
	}

	payload, err := result.Table.MarshalBinary()
	if err != nil {
		return TrainResult{}, fmt.Errorf("encode policy table: %w", err)
	}
	createdAt := p.now().UTC().Format(time.RFC3339Nano)
	policyRecord := model.PolicyRecord{
		VersionedRecord: storage.CurrentVersion(),
		ID:              policyID,
		RunID:           runID,
		Actions:         append([]float64(nil), req.Config.Actions...),
		States:          quantize.NumStates,
		Table:           payload,
		CreatedAtUTC:    createdAt,
	}
	if err := p.store.SavePolicy(ctx, policyRecord); err != nil {
		return TrainResult{}, fmt.Errorf("save policy %s: %w", policyID, err)
	}

	summary := stats.Summarize(result.Returns, summaryWindow(req.Config))
	run := model.RunRecord{
		VersionedRecord: storage.CurrentVersion(),
		ID:              runID,
		PolicyID:        policyID,
		Seed:            req.Config.Seed,
		Episodes:        len(result.Returns),
		Successes:       result.Successes,
		VisitedStates:   result.VisitedCount(),
		FinalEpsilon:    result.FinalEpsilon,
		MeanReturn:      summary.Mean,
		TailMeanReturn:  summary.TailMean,
		Returns:         result.Returns,
		CreatedAtUTC:    createdAt,
	}
	if err := p.store.SaveRun(ctx, run); err != nil {
		return TrainResult{}, fmt.Errorf("save run %s: %w", runID, err)
	}

	out := TrainResult{Run: run, Policy: policyRecord, Result: result, Summary: summary}
	if req.Preview != nil {
		ticks := req.PreviewTicks
		if ticks <= 0 {
			ticks = req.Config.MaxTicks
		}
		c, err := controller.New(result.Table.Freeze(), req.Config.Line(), controller.WithID(policyID), controller.WithLogger(log))
		if err != nil {
			return TrainResult{}, err
		}
		out.Preview, err = c.Run(ctx, *req.Preview, ticks)
		if err != nil {
			return TrainResult{}, fmt.Errorf("preview replay: %w", err)
		}
	}

	if p.artifactsDir != "" {
		dir, err := p.writeArtifacts(runID, policyID, req, out)
		if err != nil {
			return TrainResult{}, err
		}
		out.ArtifactsDir = dir
	}

	log.Info().
		Str("policy_id", policyID).
		Int("episodes", run.Episodes).
		Int("successes", run.Successes).
		Float64("tail_mean_return", run.TailMeanReturn).
		Msg("policy saved")
	return out, nil
}

func summaryWindow(cfg trainer.Config) int {
	if cfg.ReportEvery > 0 {
		return cfg.ReportEvery
	}
	return 100
}

func (p *Platform) writeArtifacts(runID, policyID string, req TrainRequest, out TrainResult) (string, error) {
	cfg := req.Config
	artifacts := stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:         runID,
			PolicyID:      policyID,
			Scenario:      scape.StopLineScape{}.Name(),
			StoreKind:     storage.KindOf(p.store),
			Episodes:      cfg.Episodes,
			MaxTicks:      cfg.MaxTicks,
			Alpha:         cfg.Alpha,
			Gamma:         cfg.Gamma,
			EpsilonStart:  cfg.EpsilonStart,
			EpsilonMin:    cfg.EpsilonMin,
			EpsilonDecay:  cfg.EpsilonDecay,
			VelocityMin:   cfg.VelocityMin,
			VelocityMax:   cfg.VelocityMax,
			StartPosition: cfg.StartPosition,
			Mass:          cfg.Mass,
			Target:        cfg.Target,
			DT:            cfg.DT,
			Deadband:      cfg.Deadband,
			Seed:          cfg.Seed,
			Actions:       append([]float64(nil), cfg.Actions...),
			ContinueFrom:  req.ContinueFrom,
		},
		Returns:       out.Result.Returns,
		Summary:       out.Summary,
		WindowMeans:   stats.WindowMeans(out.Result.Returns, summaryWindow(cfg)),
		Successes:     out.Result.Successes,
		VisitedStates: out.Result.VisitedCount(),
		FinalEpsilon:  out.Result.FinalEpsilon,
		Trajectory:    out.Preview,
	}
	dir, err := stats.WriteRunArtifacts(p.artifactsDir, artifacts)
	if err != nil {
		return "", fmt.Errorf("write run artifacts: %w", err)
	}
	if err := stats.AppendRunIndex(p.artifactsDir, stats.RunIndexEntry{
		RunID:          runID,
		PolicyID:       policyID,
		Scenario:       artifacts.Config.Scenario,
		Episodes:       out.Run.Episodes,
		Seed:           cfg.Seed,
		Successes:      out.Run.Successes,
		TailMeanReturn: out.Run.TailMeanReturn,
		CreatedAtUTC:   out.Run.CreatedAtUTC,
	}); err != nil {
		return "", fmt.Errorf("update run index: %w", err)
	}
	return dir, nil
}

func (p *Platform) policyRecord(ctx context.Context, id string, actions policy.ActionSet) (model.PolicyRecord, error) {
	record, ok, err := p.store.GetPolicy(ctx, id)
	if err != nil {
		return model.PolicyRecord{}, fmt.Errorf("load policy %s: %w", id, err)
	}
	if !ok {
		return model.PolicyRecord{}, fmt.Errorf("%w: %s", ErrPolicyNotFound, id)
	}
	if !policy.ActionSet(record.Actions).Equal(actions) {
		return model.PolicyRecord{}, fmt.Errorf("%w: policy %s was trained with %v, configured %v",
			policy.ErrActionSetMismatch, id, record.Actions, []float64(actions))
	}
	return record, nil
}

// LoadPolicy returns the read-only view of a stored policy. The stored action
// set must match actions exactly.
func (p *Platform) LoadPolicy(ctx context.Context, id string, actions policy.ActionSet) (*policy.View, model.PolicyRecord, error) {
	if err := p.ensureStarted(); err != nil {
		return nil, model.PolicyRecord{}, err
	}
	record, err := p.policyRecord(ctx, id, actions)
	if err != nil {
		return nil, model.PolicyRecord{}, err
	}
	view, err := policy.DecodeView(record.Table, actions)
	if err != nil {
		return nil, model.PolicyRecord{}, fmt.Errorf("load policy %s: %w", id, err)
	}
	return view, record, nil
}

type ReplayRequest struct {
	PolicyID    string
	Actions     policy.ActionSet
	Initial     physics.State
	MaxTicks    int
	Depart      bool
	DepartWait  time.Duration
	DepartForce float64
}

type ReplayResult struct {
	Trajectory scape.Trajectory
	Outcome    scape.EpisodeOutcome
	Phase      controller.Phase
	Status     string
}

func (p *Platform) Replay(ctx context.Context, req ReplayRequest) (ReplayResult, error) {
	view, _, err := p.LoadPolicy(ctx, req.PolicyID, req.Actions)
	if err != nil {
		return ReplayResult{}, err
	}
	opts := []controller.Option{
		controller.WithID(req.PolicyID),
		controller.WithLogger(p.log),
	}
	if req.Depart {
		opts = append(opts, controller.WithDeparture(req.DepartWait, req.DepartForce))
	}
	c, err := controller.New(view, p.line, opts...)
	if err != nil {
		return ReplayResult{}, err
	}
	traj, err := c.Run(ctx, req.Initial, req.MaxTicks)
	if err != nil {
		return ReplayResult{}, err
	}
	return ReplayResult{
		Trajectory: traj,
		Outcome:    scape.Score(p.line, traj),
		Phase:      c.Phase(),
		Status:     c.Status(),
	}, nil
}

type EvaluateRequest struct {
	PolicyID string
	Actions  policy.ActionSet
	Scape    string
	Mode     string
}

// Evaluate scores a stored policy on a registered scape and stores the result.
func (p *Platform) Evaluate(ctx context.Context, req EvaluateRequest) (model.EvaluationRecord, error) {
	view, _, err := p.LoadPolicy(ctx, req.PolicyID, req.Actions)
	if err != nil {
		return model.EvaluationRecord{}, err
	}
	name := req.Scape
	if name == "" {
		name = scape.StopLineScape{}.Name()
	}
	sc, ok := p.GetScape(name)
	if !ok {
		return model.EvaluationRecord{}, fmt.Errorf("unknown scape %q (registered: %s)", name, strings.Join(p.RegisteredScapes(), ", "))
	}
	c, err := controller.New(view, p.line, controller.WithID(req.PolicyID), controller.WithLogger(p.log))
	if err != nil {
		return model.EvaluationRecord{}, err
	}

	mode := req.Mode
	if mode == "" {
		mode = "gt"
	}
	var (
		fitness scape.Fitness
		trace   scape.Trace
	)
	if aware, ok := sc.(scape.ModeAwareScape); ok {
		fitness, trace, err = aware.EvaluateMode(ctx, c, mode)
	} else {
		fitness, trace, err = sc.Evaluate(ctx, c)
	}
	if err != nil {
		return model.EvaluationRecord{}, fmt.Errorf("evaluate policy %s: %w", req.PolicyID, err)
	}

	record := model.EvaluationRecord{
		VersionedRecord: storage.CurrentVersion(),
		PolicyID:        req.PolicyID,
		Mode:            mode,
		Fitness:         float64(fitness),
	}
	if v, ok := trace["mode"].(string); ok {
		record.Mode = v
	}
	record.Successes, _ = trace["successes"].(int)
	record.Episodes, _ = trace["episodes"].(int)
	record.MeanStopError, _ = trace["mean_stop_error"].(float64)
	record.MeanTicks, _ = trace["mean_ticks"].(float64)
	if err := p.store.SaveEvaluation(ctx, record); err != nil {
		return model.EvaluationRecord{}, fmt.Errorf("save evaluation: %w", err)
	}
	p.log.Info().
		Str("policy_id", req.PolicyID).
		Str("mode", record.Mode).
		Float64("fitness", record.Fitness).
		Msg("policy evaluated")
	return record, nil
}

func (p *Platform) Evaluations(ctx context.Context, policyID string) ([]model.EvaluationRecord, error) {
	if err := p.ensureStarted(); err != nil {
		return nil, err
	}
	return p.store.ListEvaluations(ctx, policyID)
}

func (p *Platform) Runs(ctx context.Context) ([]model.RunRecord, error) {
	if err := p.ensureStarted(); err != nil {
		return nil, err
	}
	return p.store.ListRuns(ctx)
}

func (p *Platform) GetRun(ctx context.Context, id string) (model.RunRecord, bool, error) {
	if err := p.ensureStarted(); err != nil {
		return model.RunRecord{}, false, err
	}
	return p.store.GetRun(ctx, id)
}
