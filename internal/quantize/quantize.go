// Package quantize maps the continuous vehicle state onto the discrete state
// space shared by training and deployment.
//
// The partitions are fixed. Distance buckets are narrow around the stop line
// and widen with distance; changing any threshold invalidates every stored
// policy table.
package quantize

import "fmt"

const (
	DistanceBuckets = 8
	VelocityBuckets = 4
	TargetBuckets   = 2
	MassBuckets     = 2

	NumStates = DistanceBuckets * VelocityBuckets * TargetBuckets * MassBuckets
)

var (
	// distanceThresholds partition d = position - target.
	distanceThresholds = [DistanceBuckets - 1]float64{-1, 2, 5, 10, 30, 70, 130}
	velocityThresholds = [VelocityBuckets - 1]float64{2, 10, 40}
	targetThresholds   = [TargetBuckets - 1]float64{100}
	massThresholds     = [MassBuckets - 1]float64{100}
)

// Buckets holds the per-dimension bucket indices of a state.
type Buckets struct {
	Distance int `json:"distance"`
	Velocity int `json:"velocity"`
	Target   int `json:"target"`
	Mass     int `json:"mass"`
}

// Bucket returns the index of the first threshold strictly greater than
// value, or len(thresholds) when there is none. Thresholds must be ascending.
func Bucket(value float64, thresholds []float64) int {
	for i, limit := range thresholds {
		if value < limit {
			return i
		}
	}
	return len(thresholds)
}

// Quantize classifies a continuous state. It is total over all reals.
func Quantize(position, velocity, target, mass float64) Buckets {
	return Buckets{
		Distance: Bucket(position-target, distanceThresholds[:]),
		Velocity: Bucket(velocity, velocityThresholds[:]),
		Target:   Bucket(target, targetThresholds[:]),
		Mass:     Bucket(mass, massThresholds[:]),
	}
}

// Index packs bucket indices into the composite state index d*16 + v*4 + ps*2 + m.
func Index(b Buckets) int {
	return b.Distance*(VelocityBuckets*TargetBuckets*MassBuckets) +
		b.Velocity*(TargetBuckets*MassBuckets) +
		b.Target*MassBuckets +
		b.Mass
}

// StateIndex quantizes and packs in one call.
func StateIndex(position, velocity, target, mass float64) int {
	return Index(Quantize(position, velocity, target, mass))
}

// Unpack is the inverse of Index.
func Unpack(index int) (Buckets, error) {
	if index < 0 || index >= NumStates {
		return Buckets{}, fmt.Errorf("state index %d out of range [0,%d)", index, NumStates)
	}
	return Buckets{
		Distance: index / (VelocityBuckets * TargetBuckets * MassBuckets),
		Velocity: index / (TargetBuckets * MassBuckets) % VelocityBuckets,
		Target:   index / MassBuckets % TargetBuckets,
		Mass:     index % MassBuckets,
	}, nil
}

// DistanceRange returns the half-open [lo, hi) interval of d covered by a
// distance bucket; open ends are reported as ±Inf.
func DistanceRange(bucket int) (lo, hi float64) {
	return bucketRange(bucket, distanceThresholds[:])
}

// VelocityRange returns the half-open interval covered by a velocity bucket.
func VelocityRange(bucket int) (lo, hi float64) {
	return bucketRange(bucket, velocityThresholds[:])
}

func (b Buckets) String() string {
	return fmt.Sprintf("d%d/v%d/ps%d/m%d", b.Distance, b.Velocity, b.Target, b.Mass)
}
