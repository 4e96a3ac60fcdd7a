package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/stats"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	origWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	workdir := t.TempDir()
	if err := os.Chdir(workdir); err != nil {
		t.Fatalf("chdir tempdir: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(origWD)
	})
	return workdir
}

var quiet = []string{"--log-level", "error", "--log-format", "json"}

func withQuiet(args ...string) []string {
	return append(args, quiet...)
}

func TestTrainReplayEvaluateInspectRunsExport(t *testing.T) {
	chdirTemp(t)
	ctx := context.Background()

	out, err := captureStdout(func() error {
		return run(ctx, withQuiet("train", "--run-id", "cli-run", "--episodes", "2000", "--seed", "1", "--report-every", "0"))
	})
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if !strings.Contains(out, "run_id=cli-run") || !strings.Contains(out, "episodes=2,000") {
		t.Fatalf("unexpected train output: %s", out)
	}
	if _, err := os.Stat(filepath.Join("stopline_data", "store", "policies", "cli-run.qtable")); err != nil {
		t.Fatalf("expected persisted table: %v", err)
	}
	entries, err := stats.ListRunIndex("stopline_data")
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one indexed run, got %v %v", entries, err)
	}

	out, err = captureStdout(func() error {
		return run(ctx, withQuiet("replay", "--latest", "--velocity", "70"))
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !strings.Contains(out, "success=true") || !strings.Contains(out, "final_position=100.000") {
		t.Fatalf("unexpected replay output: %s", out)
	}

	out, err = captureStdout(func() error {
		return run(ctx, withQuiet("replay", "--policy-id", "cli-run", "--csv", "-"))
	})
	if err != nil {
		t.Fatalf("replay csv: %v", err)
	}
	traj, err := stats.ReadTrajectoryCSV(strings.NewReader(out))
	if err != nil {
		t.Fatalf("parse replay csv: %v", err)
	}
	if final, ok := traj.Final(); !ok || final.Position != 100 {
		t.Fatalf("unexpected csv trajectory end %+v", final)
	}

	out, err = captureStdout(func() error {
		return run(ctx, withQuiet("evaluate", "--latest", "--mode", "test"))
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !strings.Contains(out, "fitness=1.000000") || !strings.Contains(out, "successes=4/4") {
		t.Fatalf("unexpected evaluate output: %s", out)
	}
	_, err = captureStdout(func() error {
		return run(ctx, withQuiet("evaluate", "--latest", "--scape", "crossing"))
	})
	if err == nil || !strings.Contains(err.Error(), "registered: stop-line") {
		t.Fatalf("expected unknown scape error listing registered scapes, got %v", err)
	}

	out, err = captureStdout(func() error {
		return run(ctx, withQuiet("inspect", "--policy-id", "cli-run"))
	})
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if !strings.Contains(out, "state= 63") || !strings.Contains(out, "Very hard braking") {
		t.Fatalf("unexpected inspect output: %s", out)
	}
	if !strings.Contains(out, "trained episodes=2,000 seed=1") {
		t.Fatalf("expected stored run config in inspect output: %s", out)
	}

	out, err = captureStdout(func() error {
		return run(ctx, withQuiet("runs"))
	})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if !strings.Contains(out, "run_id=cli-run") {
		t.Fatalf("unexpected runs output: %s", out)
	}

	out, err = captureStdout(func() error {
		return run(ctx, withQuiet("export", "--latest", "--out", "exports"))
	})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(out, "exported run_id=cli-run") {
		t.Fatalf("unexpected export output: %s", out)
	}
	for _, file := range []string{"config.json", "returns.json", "returns.csv", "trajectory.csv"} {
		if _, err := os.Stat(filepath.Join("exports", "cli-run", file)); err != nil {
			t.Fatalf("expected exported %s: %v", file, err)
		}
	}

	out, err = captureStdout(func() error {
		return run(ctx, withQuiet("show", "--latest"))
	})
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	for _, want := range []string{"run_id=cli-run", "store=file", "seed=1", "returns episodes=2000", "preview ticks="} {
		if !strings.Contains(out, want) {
			t.Fatalf("show output missing %q: %s", want, out)
		}
	}

	out, err = captureStdout(func() error {
		return run(ctx, withQuiet("show", "--run-id", "cli-run", "--csv"))
	})
	if err != nil {
		t.Fatalf("show csv: %v", err)
	}
	stored, err := stats.ReadTrajectoryCSV(strings.NewReader(out))
	if err != nil {
		t.Fatalf("parse show csv: %v", err)
	}
	if len(stored) == 0 {
		t.Fatal("expected stored preview samples")
	}
}

func TestRunsEmpty(t *testing.T) {
	chdirTemp(t)
	out, err := captureStdout(func() error {
		return run(context.Background(), withQuiet("runs", "--store", "memory"))
	})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if strings.TrimSpace(out) != "no runs found" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestCommandValidation(t *testing.T) {
	chdirTemp(t)
	ctx := context.Background()
	cases := map[string][]string{
		"missing":        {},
		"unknown":        {"fly"},
		"export neither": {"export"},
		"export both":    {"export", "--run-id", "x", "--latest"},
		"show neither":   {"show"},
		"show both":      {"show", "--run-id", "x", "--latest"},
		"show missing":   withQuiet("show", "--run-id", "ghost"),
		"runs limit":     {"runs", "--limit", "0"},
		"replay no id":   withQuiet("replay"),
		"bad episodes":   withQuiet("train", "--episodes", "0"),
		"bad store":      withQuiet("runs", "--store", "postgres"),
		"missing config": {"runs", "--config", "nope.yaml"},
		"missing policy": withQuiet("replay", "--policy-id", "ghost"),
	}
	for name, args := range cases {
		if _, err := captureStdout(func() error { return run(ctx, args) }); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func captureStdout(fn func() error) (string, error) {
	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		return "", err
	}

	os.Stdout = w
	runErr := fn()
	_ = w.Close()
	os.Stdout = origStdout

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		_ = r.Close()
		return "", err
	}
	_ = r.Close()
	return buf.String(), runErr
}
