// Package analytics holds the pure statistical primitives shared by the
// anomaly, baseline and forecast services. Everything here is deterministic
// and side-effect free.
package analytics

import (
	"fmt"
	"math"
)

// MinSamples is the minimum number of samples required before any statistic
// is considered meaningful. Groups below this are treated as "no result".
const MinSamples = 3

// Mean returns the arithmetic mean of values, or 0 for an empty slice
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// PopulationStdDev returns the population standard deviation (divide by N,
// not N-1), or 0 for an empty slice.
func PopulationStdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := Mean(values)
	var sumSq float64
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)))
}

// Stats bundles the population statistics of a sample
type Stats struct {
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
	Count  int
}

// Describe computes mean, population standard deviation, min, max and count
func Describe(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}

	s := Stats{
		Mean:   Mean(values),
		StdDev: PopulationStdDev(values),
		Min:    values[0],
		Max:    values[0],
		Count:  len(values),
	}
	for _, v := range values[1:] {
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
	}
	return s
}

// ZScore returns |value - mean| / stdDev. The caller must guard stdDev == 0.
func ZScore(value, mean, stdDev float64) float64 {
	return math.Abs((value - mean) / stdDev)
}

// SeverityForZScore maps a z-score to a severity tier relative to the
// detection threshold, evaluated highest first.
func SeverityForZScore(zScore, threshold float64) string {
	switch {
	case zScore >= threshold*2:
		return "critical"
	case zScore >= threshold*1.5:
		return "high"
	case zScore >= threshold*1.2:
		return "medium"
	default:
		return "low"
	}
}

// BucketKey identifies an (hour, weekday) forecast bucket
func BucketKey(hour, dayOfWeek int) string {
	return fmt.Sprintf("%d_%d", hour, dayOfWeek)
}

// TimeKey identifies a persisted baseline bucket. Note the reversed order
// relative to BucketKey; both formats are fixed by the stored data.
func TimeKey(dayOfWeek, hour int) string {
	return fmt.Sprintf("%d_%d", dayOfWeek, hour)
}

// Bucket holds per-bucket statistics for the forecast model
type Bucket struct {
	Mean   float64
	StdDev float64
	Count  int
}
