package trainer

import (
	"errors"
	"fmt"
	"math"

	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/policy"
	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/scape"
)

// Config holds every training tunable. Zero values are not defaults; start
// from DefaultConfig and override.
type Config struct {
	Episodes      int              `json:"episodes"`
	MaxTicks      int              `json:"max_ticks"`
	Alpha         float64          `json:"alpha"`
	Gamma         float64          `json:"gamma"`
	EpsilonStart  float64          `json:"epsilon_start"`
	EpsilonMin    float64          `json:"epsilon_min"`
	EpsilonDecay  float64          `json:"epsilon_decay"`
	VelocityMin   float64          `json:"velocity_min"`
	VelocityMax   float64          `json:"velocity_max"`
	StartPosition float64          `json:"start_position"`
	Mass          float64          `json:"mass"`
	Target        float64          `json:"target"`
	DT            float64          `json:"dt"`
	Deadband      float64          `json:"deadband"`
	Seed          int64            `json:"seed"`
	ReportEvery   int              `json:"report_every"`
	Actions       policy.ActionSet `json:"actions"`
}

func DefaultConfig() Config {
	return Config{
		Episodes:      20000,
		MaxTicks:      300,
		Alpha:         0.1,
		Gamma:         0.95,
		EpsilonStart:  0.1,
		EpsilonMin:    0.01,
		EpsilonDecay:  0.9995,
		VelocityMin:   40,
		VelocityMax:   100,
		StartPosition: 0,
		Mass:          scape.DefaultMass,
		Target:        scape.DefaultTarget,
		DT:            scape.DefaultDT,
		Deadband:      scape.DefaultDeadband,
		Seed:          1,
		ReportEvery:   500,
		Actions:       policy.DefaultActions.Clone(),
	}
}

// Line is the scenario the configuration trains on.
func (c Config) Line() scape.StopLine {
	return scape.StopLine{
		Target:   c.Target,
		Mass:     c.Mass,
		DT:       c.DT,
		Deadband: c.Deadband,
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.Episodes <= 0 {
		errs = append(errs, fmt.Errorf("episodes must be positive, got %d", c.Episodes))
	}
	if c.MaxTicks <= 0 {
		errs = append(errs, fmt.Errorf("max ticks must be positive, got %d", c.MaxTicks))
	}
	if c.ReportEvery < 0 {
		errs = append(errs, fmt.Errorf("report interval must not be negative, got %d", c.ReportEvery))
	}
	for _, rate := range []struct {
		name  string
		value float64
	}{
		{"alpha", c.Alpha},
		{"gamma", c.Gamma},
		{"epsilon start", c.EpsilonStart},
		{"epsilon min", c.EpsilonMin},
		{"epsilon decay", c.EpsilonDecay},
	} {
		if !(rate.value >= 0 && rate.value <= 1) {
			errs = append(errs, fmt.Errorf("%s must be within [0,1], got %v", rate.name, rate.value))
		}
	}
	if !(c.VelocityMin >= 0) || math.IsInf(c.VelocityMax, 0) || !(c.VelocityMax >= c.VelocityMin) {
		errs = append(errs, fmt.Errorf("velocity range [%v,%v] is invalid", c.VelocityMin, c.VelocityMax))
	}
	if math.IsNaN(c.StartPosition) || math.IsInf(c.StartPosition, 0) {
		errs = append(errs, fmt.Errorf("start position must be finite, got %v", c.StartPosition))
	}
	if err := c.Line().Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Actions.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
