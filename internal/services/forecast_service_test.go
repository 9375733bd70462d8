package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptc-energia/backend/internal/analytics"
	"github.com/uptc-energia/backend/internal/db/models"
	"github.com/uptc-energia/backend/internal/testutil"
)

func TestBuildBucketModel(t *testing.T) {
	mon := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	var readings []models.Reading
	for week := 0; week < 3; week++ {
		shift := time.Duration(week*7*24) * time.Hour
		readings = append(readings, reading("central", "", mon.Add(shift), float64(100+week*10)))
	}
	readings = append(readings, reading("central", "", mon.Add(time.Hour), 50))

	model := BuildBucketModel(readings, "energiaTotal")
	require.Len(t, model, 2)

	rich, ok := model[analytics.BucketKey(8, 1)]
	require.True(t, ok)
	assert.Equal(t, 3, rich.Count)
	assert.InDelta(t, 110.0, rich.Mean, 0.001)

	thin, ok := model[analytics.BucketKey(9, 1)]
	require.True(t, ok)
	assert.Equal(t, 1, thin.Count)
}

func TestGenerateForecastRichBucket(t *testing.T) {
	model := map[string]analytics.Bucket{
		// Monday 09:00, three samples
		analytics.BucketKey(9, 1): {Mean: 120, StdDev: 10, Count: 3},
	}

	// Start Monday 08:00 so the single forecast hour lands at 09:00
	start := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	forecast := GenerateForecast(model, 1, start)
	require.Len(t, forecast, 1)

	p := forecast[0]
	assert.Equal(t, 9, p.Hour)
	assert.Equal(t, 1, p.DayOfWeek)
	assert.Equal(t, 120.0, p.Predicted)
	assert.Equal(t, 120.0, p.Baseline)
	assert.InDelta(t, 100.0, p.Confidence.Lower, 0.001)
	assert.InDelta(t, 140.0, p.Confidence.Upper, 0.001)
}

func TestGenerateForecastClampsLowerBand(t *testing.T) {
	model := map[string]analytics.Bucket{
		analytics.BucketKey(9, 1): {Mean: 10, StdDev: 20, Count: 5},
	}

	start := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	forecast := GenerateForecast(model, 1, start)
	require.Len(t, forecast, 1)

	// mean - 2σ would be -30; the band never goes negative
	assert.Equal(t, 0.0, forecast[0].Confidence.Lower)
	assert.InDelta(t, 50.0, forecast[0].Confidence.Upper, 0.001)
}

func TestGenerateForecastThinBucketFallback(t *testing.T) {
	model := map[string]analytics.Bucket{
		analytics.BucketKey(9, 1):  {Mean: 100, StdDev: 5, Count: 3},
		analytics.BucketKey(10, 1): {Mean: 200, StdDev: 5, Count: 3},
		// The target hour only has two samples
		analytics.BucketKey(11, 1): {Mean: 999, StdDev: 5, Count: 2},
	}

	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	forecast := GenerateForecast(model, 1, start)
	require.Len(t, forecast, 1)

	// Fallback is the unweighted mean of all bucket means: (100+200+999)/3
	p := forecast[0]
	expected := (100.0 + 200.0 + 999.0) / 3.0
	assert.InDelta(t, expected, p.Predicted, 0.001)
	assert.InDelta(t, expected*0.5, p.Confidence.Lower, 0.001)
	assert.InDelta(t, expected*1.5, p.Confidence.Upper, 0.001)
}

func TestGenerateForecastHorizon(t *testing.T) {
	forecast := GenerateForecast(map[string]analytics.Bucket{}, 24,
		time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))

	require.Len(t, forecast, 24)
	assert.Equal(t, 1, forecast[0].Hour)
	assert.Equal(t, 0, forecast[23].Hour) // wraps into Tuesday midnight
	assert.Equal(t, 2, forecast[23].DayOfWeek)
}

func TestForecastEndToEnd(t *testing.T) {
	ts := testutil.NewTestSetup(t)
	t.Cleanup(ts.Cleanup)

	mon := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	var readings []models.Reading
	for week := 0; week < 4; week++ {
		shift := time.Duration(week*7*24) * time.Hour
		readings = append(readings, reading("central", "", mon.Add(shift), 100))
	}

	svc := NewForecastService(&stubSource{readings: readings}, nil, &ts.Config.Redis, &ts.Config.Analytics, ts.Logger)

	resp, err := svc.Forecast(context.Background(), ForecastRequest{SedeID: "central"})
	require.NoError(t, err)
	assert.Equal(t, ForecastMethod, resp.Method)
	assert.Len(t, resp.Forecast, 24)
	assert.Equal(t, 4, resp.HistoricalData.DataPoints)
	assert.InDelta(t, 100.0, resp.HistoricalData.Mean, 0.001)
}

func TestForecastNoHistory(t *testing.T) {
	ts := testutil.NewTestSetup(t)
	t.Cleanup(ts.Cleanup)

	svc := NewForecastService(&stubSource{}, nil, &ts.Config.Redis, &ts.Config.Analytics, ts.Logger)

	resp, err := svc.Forecast(context.Background(), ForecastRequest{})
	require.NoError(t, err)
	assert.Empty(t, resp.Forecast)
	assert.Equal(t, 0, resp.HistoricalData.DataPoints)
}

func TestEvaluateForecast(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	forecast := []ForecastPoint{
		{Timestamp: base, Predicted: 100},
		{Timestamp: base.Add(time.Hour), Predicted: 200},
		{Timestamp: base.Add(2 * time.Hour), Predicted: 300}, // no actual nearby
	}

	actual := []models.Reading{
		reading("central", "", base.Add(10*time.Minute), 110),  // within tolerance
		reading("central", "", base.Add(time.Hour), 180),       // exact match
		reading("central", "", base.Add(3*time.Hour), 999),     // too far from any point
	}

	acc := Evaluate(forecast, actual, "energiaTotal")

	// Paired errors: |100-110| = 10 and |200-180| = 20
	assert.InDelta(t, 15.0, acc.MAE, 0.001)
	assert.InDelta(t, 15.811, acc.RMSE, 0.001)
	// MAPE: (10/110 + 20/180) / 2 * 100
	assert.InDelta(t, (10.0/110.0+20.0/180.0)/2*100, acc.MAPE, 0.001)
}

func TestEvaluateForecastNoMatches(t *testing.T) {
	forecast := []ForecastPoint{
		{Timestamp: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), Predicted: 100},
	}
	actual := []models.Reading{
		reading("central", "", time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC), 100),
	}

	acc := Evaluate(forecast, actual, "energiaTotal")
	assert.Zero(t, acc.MAE)
	assert.Zero(t, acc.RMSE)
	assert.Zero(t, acc.MAPE)
}

func TestEvaluateForecastSkipsZeroActualsInMAPE(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	forecast := []ForecastPoint{
		{Timestamp: base, Predicted: 50},
		{Timestamp: base.Add(time.Hour), Predicted: 100},
	}
	actual := []models.Reading{
		reading("central", "", base, 0), // counted in MAE, excluded from MAPE
		reading("central", "", base.Add(time.Hour), 80),
	}

	acc := Evaluate(forecast, actual, "energiaTotal")
	assert.InDelta(t, 35.0, acc.MAE, 0.001)
	assert.InDelta(t, 25.0, acc.MAPE, 0.001)
}
