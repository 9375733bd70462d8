package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptc-energia/backend/internal/db/models"
	"github.com/uptc-energia/backend/internal/testutil"
)

func newAlertFixture(ruleID uint, sedeID string, start time.Time) *models.Alert {
	end := start.Add(time.Hour)
	return &models.Alert{
		Fingerprint: models.Fingerprint(&ruleID, sedeID, "comedor", start, end),
		RuleID:      &ruleID,
		SedeID:      sedeID,
		Sector:      "comedor",
		Metric:      "energiaTotal",
		Severity:    models.SeverityHigh,
		Status:      models.AlertOpen,
		Message:     "Consumo excesivo en comedor",
		WindowStart: start,
		WindowEnd:   end,
	}
}

func TestCreateIdempotent(t *testing.T) {
	ts := testutil.NewTestSetup(t)
	defer ts.Cleanup()
	ts.Migrate(t, &models.Alert{})

	repo := NewAlertRepository(ts.DB.DB)
	start := time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC)

	alert := newAlertFixture(7, "central", start)
	saved, created, err := repo.CreateIdempotent(alert)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, saved.ID)

	// Same fingerprint: the existing row comes back untouched
	dup := newAlertFixture(7, "central", start)
	existing, created, err := repo.CreateIdempotent(dup)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, saved.ID, existing.ID)

	var count int64
	require.NoError(t, ts.DB.DB.Model(&models.Alert{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCreateIdempotentDistinctWindows(t *testing.T) {
	ts := testutil.NewTestSetup(t)
	defer ts.Cleanup()
	ts.Migrate(t, &models.Alert{})

	repo := NewAlertRepository(ts.DB.DB)
	start := time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC)

	_, created, err := repo.CreateIdempotent(newAlertFixture(7, "central", start))
	require.NoError(t, err)
	assert.True(t, created)

	// A shifted window is a different fingerprint, so a new alert
	_, created, err = repo.CreateIdempotent(newAlertFixture(7, "central", start.Add(time.Hour)))
	require.NoError(t, err)
	assert.True(t, created)
}

func TestFindByFingerprintNotFound(t *testing.T) {
	ts := testutil.NewTestSetup(t)
	defer ts.Cleanup()
	ts.Migrate(t, &models.Alert{})

	repo := NewAlertRepository(ts.DB.DB)
	_, err := repo.FindByFingerprint("7::central::all::nope::nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAlertList(t *testing.T) {
	ts := testutil.NewTestSetup(t)
	defer ts.Cleanup()
	ts.Migrate(t, &models.Alert{})

	repo := NewAlertRepository(ts.DB.DB)
	base := time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC)

	a1 := newAlertFixture(1, "central", base)
	a2 := newAlertFixture(2, "duitama", base.Add(2*time.Hour))
	a2.Severity = models.SeverityCritical
	a3 := newAlertFixture(3, "central", base.Add(4*time.Hour))
	a3.Status = models.AlertResolved

	for _, a := range []*models.Alert{a1, a2, a3} {
		_, _, err := repo.CreateIdempotent(a)
		require.NoError(t, err)
	}

	alerts, total, err := repo.List(AlertFilter{}, 0, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, alerts, 3)

	alerts, total, err = repo.List(AlertFilter{SedeID: "central"}, 0, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	alerts, total, err = repo.List(AlertFilter{Status: models.AlertOpen}, 0, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	alerts, total, err = repo.List(AlertFilter{Severity: models.SeverityCritical}, 0, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "duitama", alerts[0].SedeID)

	// Window bounds filter on window_start / window_end
	alerts, total, err = repo.List(AlertFilter{From: base.Add(time.Hour)}, 0, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestAlertListPagination(t *testing.T) {
	ts := testutil.NewTestSetup(t)
	defer ts.Cleanup()
	ts.Migrate(t, &models.Alert{})

	repo := NewAlertRepository(ts.DB.DB)
	base := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, _, err := repo.CreateIdempotent(newAlertFixture(uint(i+1), "central", base.Add(time.Duration(i)*time.Hour)))
		require.NoError(t, err)
	}

	alerts, total, err := repo.List(AlertFilter{}, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, alerts, 2)

	alerts, _, err = repo.List(AlertFilter{}, 4, 2)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

func TestUpdateStatus(t *testing.T) {
	ts := testutil.NewTestSetup(t)
	defer ts.Cleanup()
	ts.Migrate(t, &models.Alert{})

	repo := NewAlertRepository(ts.DB.DB)
	start := time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC)

	alert, _, err := repo.CreateIdempotent(newAlertFixture(7, "central", start))
	require.NoError(t, err)

	now := time.Now().UTC()
	alert.Status = models.AlertAcknowledged
	alert.AcknowledgedAt = &now
	alert.AcknowledgedBy = "operador@uptc.edu.co"
	require.NoError(t, repo.UpdateStatus(alert))

	reloaded, err := repo.GetByID(alert.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AlertAcknowledged, reloaded.Status)
	assert.Equal(t, "operador@uptc.edu.co", reloaded.AcknowledgedBy)
	require.NotNil(t, reloaded.AcknowledgedAt)
}

func TestEvidenceRoundTrip(t *testing.T) {
	ts := testutil.NewTestSetup(t)
	defer ts.Cleanup()
	ts.Migrate(t, &models.Alert{}, &models.Evidence{})

	repo := NewAlertRepository(ts.DB.DB)
	start := time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC)
	alert, _, err := repo.CreateIdempotent(newAlertFixture(7, "central", start))
	require.NoError(t, err)

	score := 2.4
	err = repo.AddEvidence(&models.Evidence{
		AlertID:      alert.ID,
		Values:       models.JSONMap{"value": 180.0},
		Baseline:     models.JSONMap{"mean": 120.0, "method": "average"},
		Delta:        models.JSONMap{"absolute": 60.0, "percentage": 50.0},
		AnomalyScore: &score,
	})
	require.NoError(t, err)

	evidence, err := repo.ListEvidence(alert.ID)
	require.NoError(t, err)
	require.Len(t, evidence, 1)
	assert.Equal(t, alert.ID, evidence[0].AlertID)
	assert.InDelta(t, 60.0, evidence[0].Delta["absolute"].(float64), 0.001)
	require.NotNil(t, evidence[0].AnomalyScore)
	assert.InDelta(t, 2.4, *evidence[0].AnomalyScore, 0.001)

	// A different alert sees nothing
	other, err := repo.ListEvidence(alert.ID + 99)
	require.NoError(t, err)
	assert.Empty(t, other)
}
