package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptc-energia/backend/internal/db/models"
	"github.com/uptc-energia/backend/internal/db/repository"
	"github.com/uptc-energia/backend/internal/energyapi"
	"github.com/uptc-energia/backend/internal/testutil"
)

// stubSource serves a fixed batch of readings in place of the upstream API
type stubSource struct {
	readings []models.Reading
	err      error
}

func (s *stubSource) GetConsumos(_ context.Context, _ energyapi.ConsumoFilter) ([]models.Reading, error) {
	return s.readings, s.err
}

func TestDetectInReadings(t *testing.T) {
	base := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	readings := []models.Reading{
		reading("central", "comedor", base, 10),
		reading("central", "comedor", base.Add(time.Hour), 10),
		reading("central", "comedor", base.Add(2*time.Hour), 10),
		reading("central", "comedor", base.Add(3*time.Hour), 100),
	}

	anomalies := DetectInReadings(readings, "energiaTotal", 1.5)
	require.Len(t, anomalies, 1)

	a := anomalies[0]
	assert.Equal(t, 100.0, a.Value)
	assert.InDelta(t, 32.5, a.Mean, 0.001)
	// z = 67.5 / sqrt(1518.75) ≈ 1.732, above 1.5 but below 1.5*1.2
	assert.InDelta(t, 1.732, a.ZScore, 0.001)
	assert.Equal(t, models.SeverityLow, a.Severity)
}

func TestDetectInReadingsFlatSeries(t *testing.T) {
	base := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	readings := []models.Reading{
		reading("central", "", base, 5),
		reading("central", "", base.Add(time.Hour), 5),
		reading("central", "", base.Add(2*time.Hour), 5),
		reading("central", "", base.Add(3*time.Hour), 5),
	}

	assert.Empty(t, DetectInReadings(readings, "energiaTotal", 3.0))
}

func TestDetectInReadingsTooFewSamples(t *testing.T) {
	base := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	readings := []models.Reading{
		reading("central", "", base, 10),
		reading("central", "", base.Add(time.Hour), 500),
	}

	assert.Empty(t, DetectInReadings(readings, "energiaTotal", 1.0))
}

func TestDetectInReadingsSkipsMissingMetric(t *testing.T) {
	base := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	withAgua := models.Reading{Time: base, SedeID: "central", Agua: testutil.Float(3)}

	readings := []models.Reading{
		withAgua, // no energiaTotal: excluded from the sample set
		reading("central", "", base.Add(time.Hour), 10),
		reading("central", "", base.Add(2*time.Hour), 12),
	}

	// Only two usable samples remain, below the minimum
	assert.Empty(t, DetectInReadings(readings, "energiaTotal", 1.0))
}

func TestDetectSeverityTiers(t *testing.T) {
	// Spread the batch so one value lands far out; with threshold 1.0 a
	// z-score at twice the threshold is critical
	base := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	readings := []models.Reading{
		reading("central", "", base, 10),
		reading("central", "", base.Add(time.Hour), 10),
		reading("central", "", base.Add(2*time.Hour), 10),
		reading("central", "", base.Add(3*time.Hour), 10),
		reading("central", "", base.Add(4*time.Hour), 10),
		reading("central", "", base.Add(5*time.Hour), 10),
		reading("central", "", base.Add(6*time.Hour), 10),
		reading("central", "", base.Add(7*time.Hour), 10),
		reading("central", "", base.Add(8*time.Hour), 200),
	}

	anomalies := DetectInReadings(readings, "energiaTotal", 1.0)
	require.Len(t, anomalies, 1)
	// z ≈ 2.83, more than twice the threshold
	assert.Equal(t, models.SeverityCritical, anomalies[0].Severity)
}

func TestDetectWithAlerts(t *testing.T) {
	ts := testutil.NewTestSetup(t)
	t.Cleanup(ts.Cleanup)
	ts.MigrateAll(t)

	base := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	source := &stubSource{readings: []models.Reading{
		reading("central", "laboratorios", base, 10),
		reading("central", "laboratorios", base.Add(time.Hour), 10),
		reading("central", "laboratorios", base.Add(2*time.Hour), 10),
		reading("central", "laboratorios", base.Add(3*time.Hour), 10),
		reading("central", "laboratorios", base.Add(4*time.Hour), 10),
		reading("central", "laboratorios", base.Add(5*time.Hour), 10),
		reading("central", "laboratorios", base.Add(6*time.Hour), 10),
		reading("central", "laboratorios", base.Add(7*time.Hour), 10),
		reading("central", "laboratorios", base.Add(8*time.Hour), 200),
	}}

	alertRepo := repository.NewAlertRepository(ts.DB.DB)
	notifier := &recordingNotifier{}
	svc := NewAnomalyService(source, alertRepo, notifier, &ts.Config.Analytics, ts.Logger)

	resp, alertsCreated, err := svc.DetectWithAlerts(context.Background(), AnomalyRequest{
		SedeID:          "central",
		ZScoreThreshold: 1.0,
	})
	require.NoError(t, err)
	assert.Equal(t, 9, resp.TotalReadings)
	require.Len(t, resp.Anomalies, 1)
	assert.Equal(t, 1, alertsCreated)
	require.Len(t, notifier.created, 1)

	alert := notifier.created[0]
	assert.Nil(t, alert.RuleID)
	assert.Equal(t, "central", alert.SedeID)
	assert.Equal(t, "laboratorios", alert.Sector)
	assert.Equal(t, models.SeverityCritical, alert.Severity)
	assert.Contains(t, alert.Message, "Anomalía detectada en energiaTotal")
	assert.Equal(t, base.Add(7*time.Hour), alert.WindowStart.UTC())
	assert.Equal(t, base.Add(9*time.Hour), alert.WindowEnd.UTC())

	evidence, err := alertRepo.ListEvidence(alert.ID)
	require.NoError(t, err)
	require.Len(t, evidence, 1)
	assert.Equal(t, "zscore", evidence[0].Baseline["method"])
	require.NotNil(t, evidence[0].AnomalyScore)

	// Rerun: fingerprint dedup keeps the alert count flat
	_, alertsCreated, err = svc.DetectWithAlerts(context.Background(), AnomalyRequest{
		SedeID:          "central",
		ZScoreThreshold: 1.0,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, alertsCreated)
	assert.Len(t, notifier.created, 1)
}

func TestDetectWithAlertsIgnoresMildAnomalies(t *testing.T) {
	ts := testutil.NewTestSetup(t)
	t.Cleanup(ts.Cleanup)
	ts.MigrateAll(t)

	base := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	source := &stubSource{readings: []models.Reading{
		reading("central", "", base, 10),
		reading("central", "", base.Add(time.Hour), 10),
		reading("central", "", base.Add(2*time.Hour), 10),
		reading("central", "", base.Add(3*time.Hour), 100),
	}}

	alertRepo := repository.NewAlertRepository(ts.DB.DB)
	notifier := &recordingNotifier{}
	svc := NewAnomalyService(source, alertRepo, notifier, &ts.Config.Analytics, ts.Logger)

	// z ≈ 1.73 against threshold 1.5 is a low severity anomaly: reported
	// but never raised as an alert
	resp, alertsCreated, err := svc.DetectWithAlerts(context.Background(), AnomalyRequest{
		ZScoreThreshold: 1.5,
	})
	require.NoError(t, err)
	require.Len(t, resp.Anomalies, 1)
	assert.Equal(t, models.SeverityLow, resp.Anomalies[0].Severity)
	assert.Equal(t, 0, alertsCreated)
	assert.Empty(t, notifier.created)
}
