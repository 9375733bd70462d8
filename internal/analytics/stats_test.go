package analytics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMean(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 0.0, Mean([]float64{}))
	assert.Equal(t, 2.0, Mean([]float64{1, 2, 3}))
	assert.Equal(t, -1.5, Mean([]float64{-3, 0}))
}

func TestPopulationStdDev(t *testing.T) {
	assert.Equal(t, 0.0, PopulationStdDev(nil))
	assert.Equal(t, 0.0, PopulationStdDev([]float64{5, 5, 5, 5}))

	// Population variance divides by N, not N-1
	got := PopulationStdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.InDelta(t, 2.0, got, 1e-9)
}

func TestDescribe(t *testing.T) {
	stats := Describe([]float64{3, 1, 4, 1, 5})
	assert.Equal(t, 5, stats.Count)
	assert.Equal(t, 1.0, stats.Min)
	assert.Equal(t, 5.0, stats.Max)
	assert.InDelta(t, 2.8, stats.Mean, 1e-9)

	assert.Equal(t, Stats{}, Describe(nil))
}

func TestZScore(t *testing.T) {
	assert.InDelta(t, 2.0, ZScore(110, 100, 5), 1e-9)
	// Absolute value, direction does not matter
	assert.InDelta(t, 2.0, ZScore(90, 100, 5), 1e-9)
}

func TestSeverityForZScore(t *testing.T) {
	threshold := 3.0

	assert.Equal(t, "critical", SeverityForZScore(6.0, threshold))
	assert.Equal(t, "high", SeverityForZScore(4.5, threshold))
	assert.Equal(t, "medium", SeverityForZScore(3.6, threshold))
	assert.Equal(t, "low", SeverityForZScore(3.0, threshold))

	// Tier boundaries are inclusive
	assert.Equal(t, "critical", SeverityForZScore(threshold*2, threshold))
	assert.Equal(t, "high", SeverityForZScore(threshold*1.5, threshold))
	assert.Equal(t, "medium", SeverityForZScore(threshold*1.2, threshold))
}

func TestSeverityForZScoreLowThreshold(t *testing.T) {
	// A z-score of ~1.732 against threshold 1.5 lands below the 1.2x
	// medium tier (1.8), so it stays low even though it is an anomaly
	z := 67.5 / math.Sqrt(1518.75)
	assert.InDelta(t, 1.732, z, 0.001)
	assert.Equal(t, "low", SeverityForZScore(z, 1.5))
}

func TestBucketAndTimeKeys(t *testing.T) {
	// Forecast buckets are hour-first, persisted baselines weekday-first
	assert.Equal(t, "14_3", BucketKey(14, 3))
	assert.Equal(t, "3_14", TimeKey(3, 14))
}
