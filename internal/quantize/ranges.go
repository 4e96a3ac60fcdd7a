package quantize

import "math"

func bucketRange(bucket int, thresholds []float64) (float64, float64) {
	lo, hi := math.Inf(-1), math.Inf(1)
	if bucket > 0 && bucket <= len(thresholds) {
		lo = thresholds[bucket-1]
	}
	if bucket >= 0 && bucket < len(thresholds) {
		hi = thresholds[bucket]
	}
	return lo, hi
}
