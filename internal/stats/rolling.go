package stats

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Rolling returns the mean and standard deviation of the last window values.
// A non-positive window or one larger than the input covers every value.
func Rolling(values []float64, window int) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}
	if window <= 0 || window > len(values) {
		window = len(values)
	}
	tail := values[len(values)-window:]
	if len(tail) == 1 {
		return tail[0], 0
	}
	return stat.MeanStdDev(tail, nil)
}

// WindowMeans averages consecutive non-overlapping windows. A trailing
// partial window is averaged on its own.
func WindowMeans(values []float64, window int) []float64 {
	if window <= 0 || len(values) == 0 {
		return nil
	}
	out := make([]float64, 0, (len(values)+window-1)/window)
	for start := 0; start < len(values); start += window {
		end := min(start+window, len(values))
		out = append(out, stat.Mean(values[start:end], nil))
	}
	return out
}

// ReturnSummary describes the per-episode returns of a training run.
type ReturnSummary struct {
	Episodes int     `json:"episodes"`
	Mean     float64 `json:"mean"`
	Std      float64 `json:"std"`
	Best     float64 `json:"best"`
	Worst    float64 `json:"worst"`
	TailMean float64 `json:"tail_mean"`
	TailStd  float64 `json:"tail_std"`
}

func Summarize(returns []float64, tail int) ReturnSummary {
	if len(returns) == 0 {
		return ReturnSummary{}
	}
	summary := ReturnSummary{
		Episodes: len(returns),
		Best:     floats.Max(returns),
		Worst:    floats.Min(returns),
	}
	summary.Mean, summary.Std = Rolling(returns, 0)
	summary.TailMean, summary.TailStd = Rolling(returns, tail)
	if math.IsNaN(summary.Std) {
		summary.Std = 0
	}
	if math.IsNaN(summary.TailStd) {
		summary.TailStd = 0
	}
	return summary
}
