package controller

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/ParthSatpute25/intelligent-braking-qlearning/internal/controller"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

type instruments struct {
	ticks metric.Int64Counter
}

func newInstruments() (*instruments, error) {
	ticks, err := meter().Int64Counter(
		"controller.replay.ticks",
		metric.WithDescription("Ticks simulated during greedy replay"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating replay ticks counter: %w", err)
	}
	return &instruments{ticks: ticks}, nil
}
