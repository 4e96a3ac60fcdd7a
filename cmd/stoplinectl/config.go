package main

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/config"
	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/logging"
	"github.com/ParthSatpute25/intelligent-braking-qlearning/pkg/stopline"
)

// commonFlags are accepted by every subcommand.
type commonFlags struct {
	configPath   *string
	storeKind    *string
	storePath    *string
	artifactsDir *string
	logLevel     *string
	logFormat    *string
}

func addCommonFlags(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		configPath:   fs.String("config", "", "optional config file (json|yaml|toml)"),
		storeKind:    fs.String("store", "file", "store backend: memory|file|sqlite"),
		storePath:    fs.String("store-path", "", "file store directory or sqlite database path"),
		artifactsDir: fs.String("artifacts-dir", "stopline_data", "run artifacts directory"),
		logLevel:     fs.String("log-level", "info", "log level: debug|info|warn|error"),
		logFormat:    fs.String("log-format", "auto", "log format: auto|console|json"),
	}
}

// setFlags returns the names of the flags given on the command line.
func setFlags(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	return set
}

// loadConfig reads the config file and environment, then applies the
// common flags that were set explicitly.
func loadConfig(fs *flag.FlagSet, common commonFlags) (config.Config, map[string]bool, error) {
	cfg, err := config.Load(*common.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	set := setFlags(fs)
	if set["store"] {
		cfg.Store.Kind = *common.storeKind
	}
	if set["store-path"] {
		cfg.Store.Path = *common.storePath
	}
	if set["artifacts-dir"] {
		cfg.ArtifactsDir = *common.artifactsDir
	}
	if set["log-level"] {
		cfg.LogLevel = *common.logLevel
	}
	if set["log-format"] {
		cfg.LogFormat = *common.logFormat
	}
	return cfg, set, nil
}

// trainingFlags override config.TrainingConfig fields for the train command.
type trainingFlags struct {
	episodes     *int
	maxTicks     *int
	alpha        *float64
	gamma        *float64
	epsilonStart *float64
	epsilonMin   *float64
	epsilonDecay *float64
	velocityMin  *float64
	velocityMax  *float64
	seed         *int64
	reportEvery  *int
}

func addTrainingFlags(fs *flag.FlagSet) trainingFlags {
	return trainingFlags{
		episodes:     fs.Int("episodes", 20000, "training episodes"),
		maxTicks:     fs.Int("max-ticks", 300, "tick limit per episode"),
		alpha:        fs.Float64("alpha", 0.1, "learning rate"),
		gamma:        fs.Float64("gamma", 0.95, "discount factor"),
		epsilonStart: fs.Float64("epsilon", 0.1, "initial exploration rate"),
		epsilonMin:   fs.Float64("epsilon-min", 0.01, "exploration floor"),
		epsilonDecay: fs.Float64("epsilon-decay", 0.9995, "per-episode exploration decay"),
		velocityMin:  fs.Float64("v-min", 40, "lowest initial velocity"),
		velocityMax:  fs.Float64("v-max", 100, "highest initial velocity"),
		seed:         fs.Int64("seed", 1, "rng seed"),
		reportEvery:  fs.Int("report-every", 500, "progress log cadence in episodes (0 disables)"),
	}
}

func (f trainingFlags) apply(cfg *config.Config, set map[string]bool) {
	if set["episodes"] {
		cfg.Training.Episodes = *f.episodes
	}
	if set["max-ticks"] {
		cfg.Training.MaxTicks = *f.maxTicks
	}
	if set["alpha"] {
		cfg.Training.Alpha = *f.alpha
	}
	if set["gamma"] {
		cfg.Training.Gamma = *f.gamma
	}
	if set["epsilon"] {
		cfg.Training.EpsilonStart = *f.epsilonStart
	}
	if set["epsilon-min"] {
		cfg.Training.EpsilonMin = *f.epsilonMin
	}
	if set["epsilon-decay"] {
		cfg.Training.EpsilonDecay = *f.epsilonDecay
	}
	if set["v-min"] {
		cfg.Training.VelocityMin = *f.velocityMin
	}
	if set["v-max"] {
		cfg.Training.VelocityMax = *f.velocityMax
	}
	if set["seed"] {
		cfg.Training.Seed = *f.seed
	}
	if set["report-every"] {
		cfg.Training.ReportEvery = *f.reportEvery
	}
}

// replayFlags override config.ReplayConfig fields for the replay command.
type replayFlags struct {
	start       *float64
	velocity    *float64
	maxTicks    *int
	depart      *bool
	departWait  *time.Duration
	departForce *float64
}

func addReplayFlags(fs *flag.FlagSet) replayFlags {
	return replayFlags{
		start:       fs.Float64("start", 0, "initial position"),
		velocity:    fs.Float64("velocity", 70, "initial velocity"),
		maxTicks:    fs.Int("max-ticks", 400, "tick limit"),
		depart:      fs.Bool("depart", false, "pull away after stopping"),
		departWait:  fs.Duration("depart-wait", 2*time.Second, "time stopped before departing"),
		departForce: fs.Float64("depart-force", 500, "forward force while departing"),
	}
}

func (f replayFlags) apply(cfg *config.Config, set map[string]bool) {
	if set["start"] {
		cfg.Replay.StartPosition = *f.start
	}
	if set["velocity"] {
		cfg.Replay.Velocity = *f.velocity
	}
	if set["max-ticks"] {
		cfg.Replay.MaxTicks = *f.maxTicks
	}
	if set["depart"] {
		cfg.Replay.Depart = *f.depart
	}
	if set["depart-wait"] {
		cfg.Replay.DepartWait = *f.departWait
	}
	if set["depart-force"] {
		cfg.Replay.DepartForce = *f.departForce
	}
}

// openClient validates cfg after flag overrides and builds the client.
func openClient(cfg config.Config, logOut io.Writer) (*stopline.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log, err := logging.New(logOut, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}
	client, err := stopline.New(stopline.Options{
		StoreKind:    cfg.Store.Kind,
		StorePath:    cfg.StorePath(),
		ArtifactsDir: cfg.ArtifactsDir,
		Line:         cfg.StopLine(),
		Logger:       &log,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}
