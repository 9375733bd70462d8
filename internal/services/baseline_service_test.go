package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptc-energia/backend/internal/db/models"
	"github.com/uptc-energia/backend/internal/db/repository"
	"github.com/uptc-energia/backend/internal/testutil"
)

func newBaselineFixture(t *testing.T, readings []models.Reading) (*BaselineService, repository.BaselineRepository) {
	ts := testutil.NewTestSetup(t)
	t.Cleanup(ts.Cleanup)
	ts.MigrateAll(t)

	repo := repository.NewBaselineRepository(ts.DB.DB)
	svc := NewBaselineService(&stubSource{readings: readings}, repo, &ts.Config.Analytics, ts.Logger)
	return svc, repo
}

func TestComputeAndStore(t *testing.T) {
	// Three Mondays at 08:00 make one qualifying bucket; two Mondays at
	// 09:00 stay below the sample minimum
	mon1 := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	mon2 := time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)
	mon3 := time.Date(2026, 3, 16, 8, 0, 0, 0, time.UTC)

	readings := []models.Reading{
		reading("central", "comedor", mon1, 100),
		reading("central", "comedor", mon2, 110),
		reading("central", "comedor", mon3, 120),
		reading("central", "comedor", mon1.Add(time.Hour), 50),
		reading("central", "comedor", mon2.Add(time.Hour), 60),
	}

	svc, repo := newBaselineFixture(t, nil)
	saved, err := svc.ComputeAndStore(readings, "energiaTotal")
	require.NoError(t, err)
	assert.Equal(t, 1, saved)

	baselines, err := repo.List("central", "energiaTotal", models.GranularityHourWeekday)
	require.NoError(t, err)
	require.Len(t, baselines, 1)

	b := baselines[0]
	assert.Equal(t, "comedor", b.Sector)
	assert.Equal(t, "1_8", b.TimeKey) // Monday 08:00
	assert.InDelta(t, 110.0, b.BaselineValue, 0.001)
	assert.Equal(t, 3, b.SampleCount)
	assert.Greater(t, b.StdDev, 0.0)
}

func TestComputeAndStoreSeparatesBuckets(t *testing.T) {
	mon := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	tue := time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC)

	var readings []models.Reading
	for week := 0; week < 3; week++ {
		shift := time.Duration(week*7*24) * time.Hour
		readings = append(readings,
			reading("central", "salones", mon.Add(shift), 100),
			reading("central", "salones", tue.Add(shift), 200),
			reading("duitama", "salones", mon.Add(shift), 300),
		)
	}

	svc, repo := newBaselineFixture(t, nil)
	saved, err := svc.ComputeAndStore(readings, "energiaTotal")
	require.NoError(t, err)
	assert.Equal(t, 3, saved)

	central, err := repo.List("central", "energiaTotal", models.GranularityHourWeekday)
	require.NoError(t, err)
	assert.Len(t, central, 2)

	duitama, err := repo.List("duitama", "energiaTotal", models.GranularityHourWeekday)
	require.NoError(t, err)
	require.Len(t, duitama, 1)
	assert.InDelta(t, 300.0, duitama[0].BaselineValue, 0.001)
}

func TestComputeAndStoreUpsertOverwrites(t *testing.T) {
	mon1 := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	mon2 := time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)
	mon3 := time.Date(2026, 3, 16, 8, 0, 0, 0, time.UTC)

	first := []models.Reading{
		reading("central", "", mon1, 100),
		reading("central", "", mon2, 100),
		reading("central", "", mon3, 100),
	}
	second := []models.Reading{
		reading("central", "", mon1, 200),
		reading("central", "", mon2, 200),
		reading("central", "", mon3, 200),
	}

	svc, repo := newBaselineFixture(t, nil)

	saved, err := svc.ComputeAndStore(first, "energiaTotal")
	require.NoError(t, err)
	assert.Equal(t, 1, saved)

	saved, err = svc.ComputeAndStore(second, "energiaTotal")
	require.NoError(t, err)
	assert.Equal(t, 1, saved)

	// Same bucket key: the second run replaced the row, not added one
	baselines, err := repo.List("central", "energiaTotal", models.GranularityHourWeekday)
	require.NoError(t, err)
	require.Len(t, baselines, 1)
	assert.InDelta(t, 200.0, baselines[0].BaselineValue, 0.001)
}

func TestRecalculate(t *testing.T) {
	mon1 := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	mon2 := time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)
	mon3 := time.Date(2026, 3, 16, 8, 0, 0, 0, time.UTC)

	svc, _ := newBaselineFixture(t, []models.Reading{
		reading("central", "", mon1, 100),
		reading("central", "", mon2, 110),
		reading("central", "", mon3, 120),
	})

	resp, err := svc.Recalculate(context.Background(), BaselineRequest{SedeID: "central"})
	require.NoError(t, err)
	assert.Equal(t, "energiaTotal", resp.Metric)
	assert.Equal(t, 30, resp.LookbackDays)
	assert.Equal(t, 1, resp.BaselinesSaved)
}

func TestRecalculateNoReadings(t *testing.T) {
	svc, _ := newBaselineFixture(t, nil)

	resp, err := svc.Recalculate(context.Background(), BaselineRequest{})
	require.NoError(t, err)
	assert.Equal(t, 0, resp.BaselinesSaved)
}
