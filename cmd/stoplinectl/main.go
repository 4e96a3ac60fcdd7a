package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/physics"
	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/quantize"
	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/stats"
	"github.com/ParthSatpute25/intelligent-braking-qlearning/pkg/stopline"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "train":
		return runTrain(ctx, args[1:])
	case "replay":
		return runReplay(ctx, args[1:])
	case "evaluate":
		return runEvaluate(ctx, args[1:])
	case "inspect":
		return runInspect(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "show":
		return runShow(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runTrain(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	common := addCommonFlags(fs)
	training := addTrainingFlags(fs)
	runID := fs.String("run-id", "", "explicit run id (optional)")
	policyID := fs.String("policy-id", "", "policy id (defaults to the run id)")
	continueFrom := fs.String("continue-from", "", "keep training a stored policy")
	preview := fs.Bool("preview", true, "replay the trained policy once and store the trajectory")
	jsonOut := fs.Bool("json", false, "emit the run summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, set, err := loadConfig(fs, common)
	if err != nil {
		return err
	}
	training.apply(&cfg, set)

	client, err := openClient(cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Train(ctx, stopline.TrainRequest{
		RunID:        *runID,
		PolicyID:     *policyID,
		Config:       cfg.TrainerConfig(),
		ContinueFrom: *continueFrom,
		Preview:      *preview,
		PreviewState: physics.State{Position: cfg.Replay.StartPosition, Velocity: cfg.Replay.Velocity},
		PreviewTicks: cfg.Replay.MaxTicks,
	})
	if err != nil {
		return err
	}

	if *jsonOut {
		return writeJSON(struct {
			RunID          string  `json:"run_id"`
			PolicyID       string  `json:"policy_id"`
			Episodes       int     `json:"episodes"`
			Successes      int     `json:"successes"`
			VisitedStates  int     `json:"visited_states"`
			FinalEpsilon   float64 `json:"final_epsilon"`
			MeanReturn     float64 `json:"mean_return"`
			TailMeanReturn float64 `json:"tail_mean_return"`
			ArtifactsDir   string  `json:"artifacts_dir,omitempty"`
		}{
			RunID:          summary.RunID,
			PolicyID:       summary.PolicyID,
			Episodes:       summary.Episodes,
			Successes:      summary.Successes,
			VisitedStates:  summary.VisitedStates,
			FinalEpsilon:   summary.FinalEpsilon,
			MeanReturn:     summary.Returns.Mean,
			TailMeanReturn: summary.Returns.TailMean,
			ArtifactsDir:   summary.ArtifactsDir,
		})
	}

	fmt.Printf("trained run_id=%s policy_id=%s episodes=%s successes=%s visited_states=%d/%d final_epsilon=%.6f tail_mean_return=%.3f\n",
		summary.RunID,
		summary.PolicyID,
		humanize.Comma(int64(summary.Episodes)),
		humanize.Comma(int64(summary.Successes)),
		summary.VisitedStates,
		quantize.NumStates,
		summary.FinalEpsilon,
		summary.Returns.TailMean,
	)
	if len(summary.Preview) > 0 {
		final, _ := summary.Preview.Final()
		fmt.Printf("preview ticks=%d final_position=%.3f final_velocity=%.3f\n", len(summary.Preview), final.Position, final.Velocity)
	}
	if summary.ArtifactsDir != "" {
		fmt.Printf("artifacts=%s\n", filepath.Clean(summary.ArtifactsDir))
	}
	return nil
}

func runReplay(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	common := addCommonFlags(fs)
	replay := addReplayFlags(fs)
	policyID := fs.String("policy-id", "", "stored policy id")
	latest := fs.Bool("latest", false, "replay the policy of the most recent run")
	csvPath := fs.String("csv", "", "write the trajectory as CSV to this path (- for stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, set, err := loadConfig(fs, common)
	if err != nil {
		return err
	}
	replay.apply(&cfg, set)

	client, err := openClient(cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Replay(ctx, stopline.ReplayRequest{
		PolicyID:    *policyID,
		Latest:      *latest,
		Actions:     cfg.Actions(),
		Initial:     physics.State{Position: cfg.Replay.StartPosition, Velocity: cfg.Replay.Velocity},
		MaxTicks:    cfg.Replay.MaxTicks,
		Depart:      cfg.Replay.Depart,
		DepartWait:  cfg.Replay.DepartWait,
		DepartForce: cfg.Replay.DepartForce,
	})
	if err != nil {
		return err
	}

	switch *csvPath {
	case "":
	case "-":
		return stats.WriteTrajectoryCSV(os.Stdout, summary.Trajectory)
	default:
		f, err := os.Create(*csvPath)
		if err != nil {
			return err
		}
		if err := stats.WriteTrajectoryCSV(f, summary.Trajectory); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}

	final, _ := summary.Trajectory.Final()
	fmt.Printf("replay policy_id=%s ticks=%d success=%t overshoot=%t stop_error=%.3f final_position=%.3f final_velocity=%.3f phase=%s status=%q\n",
		summary.PolicyID,
		len(summary.Trajectory),
		summary.Outcome.Success,
		summary.Outcome.Overshoot,
		summary.Outcome.StopError,
		final.Position,
		final.Velocity,
		summary.Phase,
		summary.Status,
	)
	return nil
}

func runEvaluate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("evaluate", flag.ContinueOnError)
	common := addCommonFlags(fs)
	policyID := fs.String("policy-id", "", "stored policy id")
	latest := fs.Bool("latest", false, "evaluate the policy of the most recent run")
	mode := fs.String("mode", "gt", "evaluation mode: gt|validation|test|benchmark")
	scapeName := fs.String("scape", "", "registered scape to evaluate against (defaults to stop-line)")
	jsonOut := fs.Bool("json", false, "emit the evaluation as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, _, err := loadConfig(fs, common)
	if err != nil {
		return err
	}
	client, err := openClient(cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	record, err := client.Evaluate(ctx, stopline.EvaluateRequest{
		PolicyID: *policyID,
		Latest:   *latest,
		Actions:  cfg.Actions(),
		Scape:    *scapeName,
		Mode:     *mode,
	})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(record)
	}
	fmt.Printf("evaluate policy_id=%s mode=%s fitness=%.6f successes=%d/%d mean_stop_error=%.3f mean_ticks=%.1f\n",
		record.PolicyID,
		record.Mode,
		record.Fitness,
		record.Successes,
		record.Episodes,
		record.MeanStopError,
		record.MeanTicks,
	)
	return nil
}

func runInspect(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	common := addCommonFlags(fs)
	policyID := fs.String("policy-id", "", "stored policy id")
	latest := fs.Bool("latest", false, "inspect the policy of the most recent run")
	all := fs.Bool("all", false, "include states that were never updated")
	jsonOut := fs.Bool("json", false, "emit the table rows as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, _, err := loadConfig(fs, common)
	if err != nil {
		return err
	}
	client, err := openClient(cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Inspect(ctx, stopline.InspectRequest{
		PolicyID:    *policyID,
		Latest:      *latest,
		Actions:     cfg.Actions(),
		VisitedOnly: !*all,
	})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(summary)
	}

	fmt.Printf("policy_id=%s run_id=%s actions=%v visited=%d/%d\n",
		summary.PolicyID, summary.RunID, []float64(summary.Actions), summary.Visited, quantize.NumStates)
	if c := summary.Config; c != nil {
		fmt.Printf("trained episodes=%s seed=%d alpha=%g gamma=%g epsilon=%g..%g decay=%g velocity=[%g,%g]\n",
			humanize.Comma(int64(c.Episodes)), c.Seed, c.Alpha, c.Gamma, c.EpsilonStart, c.EpsilonMin, c.EpsilonDecay, c.VelocityMin, c.VelocityMax)
	}
	for _, row := range summary.Rows {
		lo, hi := quantize.DistanceRange(row.Buckets.Distance)
		vlo, vhi := quantize.VelocityRange(row.Buckets.Velocity)
		fmt.Printf("state=%3d %s d=[%g,%g) v=[%g,%g) best=%s (%g) q=%s\n",
			row.Index,
			row.Buckets,
			lo, hi,
			vlo, vhi,
			row.Label,
			row.BestForce,
			formatValues(row.Values),
		)
	}
	return nil
}

func formatValues(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%.3f", v)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	common := addCommonFlags(fs)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	cfg, _, err := loadConfig(fs, common)
	if err != nil {
		return err
	}
	client, err := openClient(cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	items, err := client.Runs(ctx, stopline.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(items)
	}
	if len(items) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	for _, item := range items {
		created := item.CreatedAtUTC
		if ts, err := time.Parse(time.RFC3339Nano, item.CreatedAtUTC); err == nil {
			created = fmt.Sprintf("%s (%s)", item.CreatedAtUTC, humanize.Time(ts))
		}
		fmt.Printf("run_id=%s policy_id=%s created_at=%s seed=%d episodes=%s successes=%s visited_states=%d tail_mean_return=%.3f\n",
			item.RunID,
			item.PolicyID,
			created,
			item.Seed,
			humanize.Comma(int64(item.Episodes)),
			humanize.Comma(int64(item.Successes)),
			item.VisitedStates,
			item.TailMeanReturn,
		)
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	common := addCommonFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run from run index")
	outDir := fs.String("out", "exports", "export output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("export requires --run-id or --latest")
	}

	cfg, _, err := loadConfig(fs, common)
	if err != nil {
		return err
	}
	client, err := openClient(cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Export(ctx, stopline.ExportRequest{RunID: *runID, Latest: *latest, OutDir: *outDir})
	if err != nil {
		return err
	}
	size, err := dirSize(summary.Directory)
	if err != nil {
		return err
	}
	fmt.Printf("exported run_id=%s to=%s size=%s\n", summary.RunID, summary.Directory, humanize.Bytes(size))
	return nil
}

func runShow(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	common := addCommonFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show the most recent run from run index")
	csvOut := fs.Bool("csv", false, "print the stored preview trajectory as CSV")
	jsonOut := fs.Bool("json", false, "emit the run details as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("show requires --run-id or --latest")
	}

	cfg, _, err := loadConfig(fs, common)
	if err != nil {
		return err
	}
	client, err := openClient(cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	details, err := client.Show(ctx, stopline.ShowRequest{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}
	if *csvOut {
		if len(details.Preview) == 0 {
			return fmt.Errorf("run %s has no stored preview trajectory", details.RunID)
		}
		return stats.WriteTrajectoryCSV(os.Stdout, details.Preview)
	}
	if *jsonOut {
		return writeJSON(details)
	}

	c := details.Config
	fmt.Printf("run_id=%s policy_id=%s store=%s seed=%d episodes=%s continue_from=%q\n",
		details.RunID, c.PolicyID, c.StoreKind, c.Seed, humanize.Comma(int64(c.Episodes)), c.ContinueFrom)
	fmt.Printf("returns episodes=%d mean=%.3f std=%.3f tail_mean=%.3f best=%.3f worst=%.3f\n",
		details.Returns.Episodes, details.Returns.Mean, details.Returns.Std, details.Returns.TailMean, details.Returns.Best, details.Returns.Worst)
	if len(details.Preview) > 0 {
		out := details.PreviewOutcome
		fmt.Printf("preview ticks=%d success=%t overshoot=%t stop_error=%.3f\n", len(details.Preview), out.Success, out.Overshoot, out.StopError)
	}
	return nil
}

func dirSize(dir string) (uint64, error) {
	var total uint64
	err := filepath.WalkDir(dir, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += uint64(info.Size())
		return nil
	})
	return total, err
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: stoplinectl <train|replay|evaluate|inspect|runs|export|show> [flags]", msg)
}
