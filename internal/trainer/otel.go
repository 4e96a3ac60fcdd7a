package trainer

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/ParthSatpute25/intelligent-braking-qlearning/internal/trainer"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

type instruments struct {
	episodes  metric.Int64Counter
	successes metric.Int64Counter
	returns   metric.Float64Histogram
}

func newInstruments() (*instruments, error) {
	m := meter()
	var (
		in  instruments
		err error
	)
	in.episodes, err = m.Int64Counter(
		"trainer.episodes",
		metric.WithDescription("Training episodes completed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating episodes counter: %w", err)
	}
	in.successes, err = m.Int64Counter(
		"trainer.successes",
		metric.WithDescription("Training episodes that ended stopped at the line"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating successes counter: %w", err)
	}
	in.returns, err = m.Float64Histogram(
		"trainer.episode.return",
		metric.WithDescription("Undiscounted return per training episode"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating return histogram: %w", err)
	}
	return &in, nil
}
