// Package config loads stopline settings from defaults, an optional config
// file and STOPLINE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/policy"
	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/scape"
	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/trainer"
)

const EnvPrefix = "STOPLINE"

var ErrInvalid = errors.New("invalid configuration")

type StoreConfig struct {
	Kind string `json:"kind" mapstructure:"kind"`
	Path string `json:"path" mapstructure:"path"`
}

type LineConfig struct {
	Target   float64 `json:"target" mapstructure:"target"`
	Mass     float64 `json:"mass" mapstructure:"mass"`
	DT       float64 `json:"dt" mapstructure:"dt"`
	Deadband float64 `json:"deadband" mapstructure:"deadband"`
}

type TrainingConfig struct {
	Episodes      int       `json:"episodes" mapstructure:"episodes"`
	MaxTicks      int       `json:"maxTicks" mapstructure:"maxTicks"`
	Alpha         float64   `json:"alpha" mapstructure:"alpha"`
	Gamma         float64   `json:"gamma" mapstructure:"gamma"`
	EpsilonStart  float64   `json:"epsilonStart" mapstructure:"epsilonStart"`
	EpsilonMin    float64   `json:"epsilonMin" mapstructure:"epsilonMin"`
	EpsilonDecay  float64   `json:"epsilonDecay" mapstructure:"epsilonDecay"`
	VelocityMin   float64   `json:"velocityMin" mapstructure:"velocityMin"`
	VelocityMax   float64   `json:"velocityMax" mapstructure:"velocityMax"`
	StartPosition float64   `json:"startPosition" mapstructure:"startPosition"`
	Seed          int64     `json:"seed" mapstructure:"seed"`
	ReportEvery   int       `json:"reportEvery" mapstructure:"reportEvery"`
	Actions       []float64 `json:"actions" mapstructure:"actions"`
}

type ReplayConfig struct {
	StartPosition float64       `json:"startPosition" mapstructure:"startPosition"`
	Velocity      float64       `json:"velocity" mapstructure:"velocity"`
	MaxTicks      int           `json:"maxTicks" mapstructure:"maxTicks"`
	Depart        bool          `json:"depart" mapstructure:"depart"`
	DepartWait    time.Duration `json:"departWait" mapstructure:"departWait"`
	DepartForce   float64       `json:"departForce" mapstructure:"departForce"`
}

type Config struct {
	LogLevel     string         `json:"logLevel" mapstructure:"logLevel"`
	LogFormat    string         `json:"logFormat" mapstructure:"logFormat"`
	ArtifactsDir string         `json:"artifactsDir" mapstructure:"artifactsDir"`
	Store        StoreConfig    `json:"store" mapstructure:"store"`
	Line         LineConfig     `json:"line" mapstructure:"line"`
	Training     TrainingConfig `json:"training" mapstructure:"training"`
	Replay       ReplayConfig   `json:"replay" mapstructure:"replay"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logLevel", "info")
	v.SetDefault("logFormat", "auto")
	v.SetDefault("artifactsDir", "stopline_data")

	v.SetDefault("store.kind", "file")
	v.SetDefault("store.path", "")

	line := scape.Default()
	v.SetDefault("line.target", line.Target)
	v.SetDefault("line.mass", line.Mass)
	v.SetDefault("line.dt", line.DT)
	v.SetDefault("line.deadband", line.Deadband)

	training := trainer.DefaultConfig()
	v.SetDefault("training.episodes", training.Episodes)
	v.SetDefault("training.maxTicks", training.MaxTicks)
	v.SetDefault("training.alpha", training.Alpha)
	v.SetDefault("training.gamma", training.Gamma)
	v.SetDefault("training.epsilonStart", training.EpsilonStart)
	v.SetDefault("training.epsilonMin", training.EpsilonMin)
	v.SetDefault("training.epsilonDecay", training.EpsilonDecay)
	v.SetDefault("training.velocityMin", training.VelocityMin)
	v.SetDefault("training.velocityMax", training.VelocityMax)
	v.SetDefault("training.startPosition", training.StartPosition)
	v.SetDefault("training.seed", training.Seed)
	v.SetDefault("training.reportEvery", training.ReportEvery)
	v.SetDefault("training.actions", []float64(policy.DefaultActions))

	v.SetDefault("replay.startPosition", 0.0)
	v.SetDefault("replay.velocity", 70.0)
	v.SetDefault("replay.maxTicks", 400)
	v.SetDefault("replay.depart", false)
	v.SetDefault("replay.departWait", "2s")
	v.SetDefault("replay.departForce", 500.0)
}

// Load reads the optional config file at path (JSON, YAML or TOML by
// extension) on top of the defaults. Environment variables such as
// STOPLINE_TRAINING_EPISODES override both.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default is the configuration Load returns with no file and no environment.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return cfg
}

func (c Config) StopLine() scape.StopLine {
	return scape.StopLine{
		Target:   c.Line.Target,
		Mass:     c.Line.Mass,
		DT:       c.Line.DT,
		Deadband: c.Line.Deadband,
	}
}

// StorePath is the configured store path. A file store without one keeps
// its policies under the artifacts directory.
func (c Config) StorePath() string {
	if c.Store.Path == "" && c.Store.Kind == "file" {
		return filepath.Join(c.ArtifactsDir, "store")
	}
	return c.Store.Path
}

func (c Config) Actions() policy.ActionSet {
	return policy.ActionSet(append([]float64(nil), c.Training.Actions...))
}

func (c Config) TrainerConfig() trainer.Config {
	line := c.StopLine()
	return trainer.Config{
		Episodes:      c.Training.Episodes,
		MaxTicks:      c.Training.MaxTicks,
		Alpha:         c.Training.Alpha,
		Gamma:         c.Training.Gamma,
		EpsilonStart:  c.Training.EpsilonStart,
		EpsilonMin:    c.Training.EpsilonMin,
		EpsilonDecay:  c.Training.EpsilonDecay,
		VelocityMin:   c.Training.VelocityMin,
		VelocityMax:   c.Training.VelocityMax,
		StartPosition: c.Training.StartPosition,
		Mass:          line.Mass,
		Target:        line.Target,
		DT:            line.DT,
		Deadband:      line.Deadband,
		Seed:          c.Training.Seed,
		ReportEvery:   c.Training.ReportEvery,
		Actions:       c.Actions(),
	}
}

func (c Config) Validate() error {
	var errs []error
	if err := c.TrainerConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Replay.MaxTicks <= 0 {
		errs = append(errs, fmt.Errorf("replay max ticks must be positive, got %d", c.Replay.MaxTicks))
	}
	if c.Replay.Velocity < 0 {
		errs = append(errs, fmt.Errorf("replay velocity must not be negative, got %v", c.Replay.Velocity))
	}
	if c.Replay.DepartWait < 0 {
		errs = append(errs, fmt.Errorf("departure wait must not be negative, got %s", c.Replay.DepartWait))
	}
	switch c.Store.Kind {
	case "", "memory", "sqlite", "file":
	default:
		errs = append(errs, fmt.Errorf("unsupported store backend: %s", c.Store.Kind))
	}
	if c.Store.Kind == "sqlite" && c.Store.Path == "" {
		errs = append(errs, fmt.Errorf("sqlite store requires a path"))
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "auto", "json", "console":
	default:
		errs = append(errs, fmt.Errorf("unsupported log format: %s", c.LogFormat))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}
