package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/scape"
)

const (
	runIndexFile   = "run_index.json"
	configFile     = "config.json"
	returnsFile    = "returns.json"
	seriesFile     = "returns.csv"
	trajectoryFile = "trajectory.csv"
)

// RunConfig records everything needed to reproduce a training run.
type RunConfig struct {
	RunID         string    `json:"run_id"`
	PolicyID      string    `json:"policy_id"`
	Scenario      string    `json:"scenario"`
	StoreKind     string    `json:"store_kind,omitempty"`
	Episodes      int       `json:"episodes"`
	MaxTicks      int       `json:"max_ticks"`
	Alpha         float64   `json:"alpha"`
	Gamma         float64   `json:"gamma"`
	EpsilonStart  float64   `json:"epsilon_start"`
	EpsilonMin    float64   `json:"epsilon_min"`
	EpsilonDecay  float64   `json:"epsilon_decay"`
	VelocityMin   float64   `json:"velocity_min"`
	VelocityMax   float64   `json:"velocity_max"`
	StartPosition float64   `json:"start_position"`
	Mass          float64   `json:"mass"`
	Target        float64   `json:"target"`
	DT            float64   `json:"dt"`
	Deadband      float64   `json:"deadband"`
	Seed          int64     `json:"seed"`
	Actions       []float64 `json:"actions"`
	ContinueFrom  string    `json:"continue_from,omitempty"`
}

type RunArtifacts struct {
	Config        RunConfig        `json:"config"`
	Returns       []float64        `json:"returns"`
	Summary       ReturnSummary    `json:"summary"`
	WindowMeans   []float64        `json:"window_means,omitempty"`
	Successes     int              `json:"successes"`
	VisitedStates int              `json:"visited_states"`
	FinalEpsilon  float64          `json:"final_epsilon"`
	Trajectory    scape.Trajectory `json:"-"`
}

type RunIndexEntry struct {
	RunID          string  `json:"run_id"`
	PolicyID       string  `json:"policy_id"`
	Scenario       string  `json:"scenario"`
	Episodes       int     `json:"episodes"`
	Seed           int64   `json:"seed"`
	Successes      int     `json:"successes"`
	TailMeanReturn float64 `json:"tail_mean_return"`
	CreatedAtUTC   string  `json:"created_at_utc"`
}

func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := WriteRunConfig(baseDir, artifacts.Config.RunID, artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, returnsFile), map[string]any{
		"returns":        artifacts.Returns,
		"summary":        artifacts.Summary,
		"window_means":   artifacts.WindowMeans,
		"successes":      artifacts.Successes,
		"visited_states": artifacts.VisitedStates,
		"final_epsilon":  artifacts.FinalEpsilon,
	}); err != nil {
		return "", err
	}
	if err := WriteReturnSeries(runDir, artifacts.Returns); err != nil {
		return "", err
	}
	if len(artifacts.Trajectory) > 0 {
		if err := writeTrajectoryFile(filepath.Join(runDir, trajectoryFile), artifacts.Trajectory); err != nil {
			return "", err
		}
	}

	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	path := filepath.Join(baseDir, runIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

// ExportRunArtifacts copies a run directory to outDir. The trajectory is
// copied only when the run recorded one.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range []string{configFile, returnsFile, seriesFile} {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	trajectoryPath := filepath.Join(src, trajectoryFile)
	if _, err := os.Stat(trajectoryPath); err == nil {
		if err := copyFile(trajectoryPath, filepath.Join(dst, trajectoryFile)); err != nil {
			return "", err
		}
	} else if !os.IsNotExist(err) {
		return "", err
	}

	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	path := filepath.Join(baseDir, runID, configFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return RunConfig{}, false, nil
		}
		return RunConfig{}, false, err
	}

	var cfg RunConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return RunConfig{}, false, err
	}
	return cfg, true, nil
}

func WriteRunConfig(baseDir, runID string, cfg RunConfig) error {
	if strings.TrimSpace(runID) == "" {
		return fmt.Errorf("run id is required")
	}
	if strings.TrimSpace(cfg.RunID) == "" {
		cfg.RunID = strings.TrimSpace(runID)
	}
	if cfg.RunID != strings.TrimSpace(runID) {
		return fmt.Errorf("run config run id mismatch: got=%s want=%s", cfg.RunID, strings.TrimSpace(runID))
	}
	runDir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	return writeJSON(filepath.Join(runDir, configFile), cfg)
}

func WriteReturnSeries(runDir string, returns []float64) error {
	file, err := os.Create(filepath.Join(runDir, seriesFile))
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"episode", "return"}); err != nil {
		return err
	}
	for i, value := range returns {
		if err := writer.Write([]string{
			strconv.Itoa(i + 1),
			strconv.FormatFloat(value, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadReturnSeries(baseDir, runID string) ([]float64, bool, error) {
	path := filepath.Join(baseDir, runID, seriesFile)
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []float64{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < 2 {
		return nil, false, fmt.Errorf("return series header must have at least 2 columns")
	}

	series := make([]float64, 0, 128)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		if len(record) < 2 {
			return nil, false, fmt.Errorf("return series row must have at least 2 columns")
		}
		value, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, false, err
		}
		series = append(series, value)
	}
	return series, true, nil
}

func ReadRunTrajectory(baseDir, runID string) (scape.Trajectory, bool, error) {
	file, err := os.Open(filepath.Join(baseDir, runID, trajectoryFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	traj, err := ReadTrajectoryCSV(file)
	if err != nil {
		return nil, false, err
	}
	return traj, true, nil
}

func writeTrajectoryFile(path string, traj scape.Trajectory) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteTrajectoryCSV(file, traj); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
