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

// recordingNotifier captures alert events for assertions
type recordingNotifier struct {
	created []models.Alert
	updated []models.Alert
}

func (n *recordingNotifier) AlertCreated(_ context.Context, alert *models.Alert) {
	n.created = append(n.created, *alert)
}

func (n *recordingNotifier) AlertUpdated(_ context.Context, alert *models.Alert) {
	n.updated = append(n.updated, *alert)
}

type engineFixture struct {
	ts        *testutil.TestSetup
	engine    *RuleEngineService
	ruleRepo  repository.RuleRepository
	alertRepo repository.AlertRepository
	notifier  *recordingNotifier
}

func newEngineFixture(t *testing.T) *engineFixture {
	ts := testutil.NewTestSetup(t)
	t.Cleanup(ts.Cleanup)
	ts.MigrateAll(t)

	ruleRepo := repository.NewRuleRepository(ts.DB.DB)
	alertRepo := repository.NewAlertRepository(ts.DB.DB)
	notifier := &recordingNotifier{}

	return &engineFixture{
		ts:        ts,
		engine:    NewRuleEngineService(ruleRepo, alertRepo, notifier, ts.Logger),
		ruleRepo:  ruleRepo,
		alertRepo: alertRepo,
		notifier:  notifier,
	}
}

func (f *engineFixture) mustCreateRule(t *testing.T, name string, spec models.RuleSpec) *models.Rule {
	rule, err := models.NewRule(name, "", spec, true)
	require.NoError(t, err)
	require.NoError(t, f.ruleRepo.Create(rule))
	return rule
}

func thresholdSpec(sedeID string, gt float64) models.RuleSpec {
	return models.RuleSpec{
		Type:            models.RuleAbsoluteThreshold,
		Scope:           models.RuleScope{SedeID: sedeID},
		Metric:          "energiaTotal",
		Severity:        models.SeverityHigh,
		MessageTemplate: "Consumo de {value} kWh en {sector} supera {threshold}",
		Condition:       &models.Condition{GT: testutil.Float(gt)},
	}
}

func reading(sedeID, sector string, at time.Time, energia float64) models.Reading {
	r := models.Reading{
		Time:         at,
		SedeID:       sedeID,
		Sector:       sector,
		EnergiaTotal: testutil.Float(energia),
	}
	r.ComputeTemporalDimensions()
	return r
}

func TestEvaluateAbsoluteThreshold(t *testing.T) {
	f := newEngineFixture(t)
	f.mustCreateRule(t, "exceso de consumo", thresholdSpec("central", 100))

	base := time.Date(2026, 3, 16, 10, 0, 0, 0, time.UTC)
	readings := []models.Reading{
		reading("central", "comedor", base, 100), // boundary: gt is strict
		reading("central", "comedor", base.Add(time.Hour), 150),
		reading("duitama", "comedor", base, 500), // out of scope
	}

	result, err := f.engine.Evaluate(context.Background(), readings, EvaluationFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.RulesEvaluated)
	assert.Equal(t, 3, result.ReadingsProcessed)
	require.Len(t, result.TriggeredAlerts, 1)

	alert := result.TriggeredAlerts[0]
	assert.Equal(t, "central", alert.SedeID)
	assert.Equal(t, models.SeverityHigh, alert.Severity)
	assert.Equal(t, models.AlertOpen, alert.Status)
	assert.Equal(t, "Consumo de 150 kWh en comedor supera 100", alert.Message)
	assert.Equal(t, base.Add(time.Hour), alert.WindowStart.UTC())
	assert.Equal(t, base.Add(2*time.Hour), alert.WindowEnd.UTC())

	require.Len(t, f.notifier.created, 1)
}

func TestEvaluateDeduplicatesAcrossRuns(t *testing.T) {
	f := newEngineFixture(t)
	f.mustCreateRule(t, "exceso de consumo", thresholdSpec("central", 100))

	base := time.Date(2026, 3, 16, 10, 0, 0, 0, time.UTC)
	readings := []models.Reading{reading("central", "comedor", base, 150)}

	first, err := f.engine.Evaluate(context.Background(), readings, EvaluationFilter{})
	require.NoError(t, err)
	require.Len(t, first.TriggeredAlerts, 1)

	// Same readings again: fingerprint already exists, nothing new fires
	second, err := f.engine.Evaluate(context.Background(), readings, EvaluationFilter{})
	require.NoError(t, err)
	assert.Empty(t, second.TriggeredAlerts)
	assert.Equal(t, 1, second.RulesEvaluated)

	assert.Len(t, f.notifier.created, 1)
}

func TestEvaluateOutOfSchedule(t *testing.T) {
	f := newEngineFixture(t)
	f.mustCreateRule(t, "consumo nocturno", models.RuleSpec{
		Type:            models.RuleOutOfSchedule,
		Scope:           models.RuleScope{SedeID: "central"},
		Metric:          "energiaTotal",
		Severity:        models.SeverityMedium,
		MessageTemplate: "Consumo fuera de horario a las {hour}:00",
		Condition:       &models.Condition{GT: testutil.Float(20)},
		Schedule:        &models.Schedule{Allowed: []models.TimeRange{{From: "06:00", To: "22:00"}}},
	})

	inSchedule := reading("central", "", time.Date(2026, 3, 16, 10, 0, 0, 0, time.UTC), 80)
	atClose := reading("central", "", time.Date(2026, 3, 16, 22, 0, 0, 0, time.UTC), 80)
	nightLow := reading("central", "", time.Date(2026, 3, 16, 3, 0, 0, 0, time.UTC), 15)

	result, err := f.engine.Evaluate(context.Background(),
		[]models.Reading{inSchedule, atClose, nightLow}, EvaluationFilter{})
	require.NoError(t, err)

	// Only the 22:00 reading is both outside the schedule and above the
	// condition; 22 is already outside the half-open interval
	require.Len(t, result.TriggeredAlerts, 1)
	assert.Equal(t, "Consumo fuera de horario a las 22:00", result.TriggeredAlerts[0].Message)
}

func TestEvaluateBaselineRelative(t *testing.T) {
	f := newEngineFixture(t)
	rule := f.mustCreateRule(t, "desviacion sobre promedio", models.RuleSpec{
		Type:            models.RuleBaselineRelative,
		Scope:           models.RuleScope{SedeID: "central"},
		Metric:          "energiaTotal",
		Severity:        models.SeverityHigh,
		MessageTemplate: "Consumo {value} desvia {deviation} sobre {baseline}",
		Baseline:        &models.BaselineTolerance{TolerancePct: 30},
	})

	base := time.Date(2026, 3, 16, 8, 0, 0, 0, time.UTC)
	// Batch mean is (100+100+100+180)/4 = 120; only 180 deviates 50% > 30%
	readings := []models.Reading{
		reading("central", "salones", base, 100),
		reading("central", "salones", base.Add(time.Hour), 100),
		reading("central", "salones", base.Add(2*time.Hour), 100),
		reading("central", "salones", base.Add(3*time.Hour), 180),
	}

	result, err := f.engine.Evaluate(context.Background(), readings, EvaluationFilter{})
	require.NoError(t, err)
	require.Len(t, result.TriggeredAlerts, 1)

	alert := result.TriggeredAlerts[0]
	assert.Equal(t, rule.ID, *alert.RuleID)

	evidence, err := f.alertRepo.ListEvidence(alert.ID)
	require.NoError(t, err)
	require.Len(t, evidence, 1)
	assert.InDelta(t, 180.0, evidence[0].Values["current"].(float64), 0.001)
	assert.InDelta(t, 120.0, evidence[0].Baseline["baseline"].(float64), 0.001)
	assert.Equal(t, "average", evidence[0].Baseline["method"])
	assert.InDelta(t, 60.0, evidence[0].Delta["absolute"].(float64), 0.001)
	assert.InDelta(t, 50.0, evidence[0].Delta["percentage"].(float64), 0.001)
	require.NotNil(t, evidence[0].AnomalyScore)
	assert.InDelta(t, 50.0/30.0, *evidence[0].AnomalyScore, 0.001)
}

func TestEvaluateBaselineRelativeZeroMean(t *testing.T) {
	f := newEngineFixture(t)
	f.mustCreateRule(t, "desviacion", models.RuleSpec{
		Type:            models.RuleBaselineRelative,
		Metric:          "energiaTotal",
		Severity:        models.SeverityHigh,
		MessageTemplate: "desvio {deviation}",
		Baseline:        &models.BaselineTolerance{TolerancePct: 10},
	})

	base := time.Date(2026, 3, 16, 8, 0, 0, 0, time.UTC)
	readings := []models.Reading{
		reading("central", "", base, 0),
		reading("central", "", base.Add(time.Hour), 0),
	}

	result, err := f.engine.Evaluate(context.Background(), readings, EvaluationFilter{})
	require.NoError(t, err)
	assert.Empty(t, result.TriggeredAlerts)
}

func TestEvaluateBudgetWindow(t *testing.T) {
	f := newEngineFixture(t)
	f.mustCreateRule(t, "presupuesto diario", models.RuleSpec{
		Type:            models.RuleBudgetWindow,
		Scope:           models.RuleScope{SedeID: "central"},
		Metric:          "energiaTotal",
		Severity:        models.SeverityCritical,
		MessageTemplate: "Consumo acumulado {value} supera presupuesto {budget}",
		Budget:          &models.Budget{Amount: 400, Period: "daily"},
	})

	base := time.Date(2026, 3, 16, 6, 0, 0, 0, time.UTC)
	readings := []models.Reading{
		reading("central", "oficinas", base, 150),
		reading("central", "oficinas", base.Add(2*time.Hour), 150),
		reading("central", "oficinas", base.Add(4*time.Hour), 200),
	}

	result, err := f.engine.Evaluate(context.Background(), readings, EvaluationFilter{})
	require.NoError(t, err)

	// One alert for the whole window regardless of how many readings
	require.Len(t, result.TriggeredAlerts, 1)
	alert := result.TriggeredAlerts[0]
	assert.Equal(t, "Consumo acumulado 500 supera presupuesto 400", alert.Message)
	assert.Equal(t, base, alert.WindowStart.UTC())
	assert.Equal(t, base.Add(4*time.Hour), alert.WindowEnd.UTC())

	evidence, err := f.alertRepo.ListEvidence(alert.ID)
	require.NoError(t, err)
	require.Len(t, evidence, 1)
	assert.InDelta(t, 500.0, evidence[0].Values["total"].(float64), 0.001)
	assert.InDelta(t, 100.0, evidence[0].Delta["absolute"].(float64), 0.001)
	assert.InDelta(t, 25.0, evidence[0].Delta["percentage"].(float64), 0.001)
}

func TestEvaluateBudgetWindowUnderBudget(t *testing.T) {
	f := newEngineFixture(t)
	f.mustCreateRule(t, "presupuesto diario", models.RuleSpec{
		Type:            models.RuleBudgetWindow,
		Metric:          "energiaTotal",
		Severity:        models.SeverityCritical,
		MessageTemplate: "supera {budget}",
		Budget:          &models.Budget{Amount: 400, Period: "daily"},
	})

	base := time.Date(2026, 3, 16, 6, 0, 0, 0, time.UTC)
	readings := []models.Reading{
		reading("central", "", base, 200),
		reading("central", "", base.Add(time.Hour), 200), // exactly at budget
	}

	result, err := f.engine.Evaluate(context.Background(), readings, EvaluationFilter{})
	require.NoError(t, err)
	assert.Empty(t, result.TriggeredAlerts)
}

func TestEvaluateSkipsMalformedRule(t *testing.T) {
	f := newEngineFixture(t)

	// Bypass NewRule validation: a malformed spec can land in storage via
	// older schema versions or manual edits
	broken := &models.Rule{
		Name:    "rota",
		Enabled: true,
		Spec: models.RuleSpec{
			Type:     models.RuleAbsoluteThreshold,
			Metric:   "energiaTotal",
			Severity: models.SeverityHigh,
		},
	}
	require.NoError(t, f.ruleRepo.Create(broken))
	f.mustCreateRule(t, "sana", thresholdSpec("central", 100))

	readings := []models.Reading{
		reading("central", "", time.Date(2026, 3, 16, 10, 0, 0, 0, time.UTC), 150),
	}

	result, err := f.engine.Evaluate(context.Background(), readings, EvaluationFilter{})
	require.NoError(t, err)

	// The malformed rule is skipped and not counted
	assert.Equal(t, 1, result.RulesEvaluated)
	assert.Len(t, result.TriggeredAlerts, 1)
}

func TestEvaluateFilterScopesRules(t *testing.T) {
	f := newEngineFixture(t)
	f.mustCreateRule(t, "central", thresholdSpec("central", 100))
	f.mustCreateRule(t, "duitama", thresholdSpec("duitama", 100))
	f.mustCreateRule(t, "global", thresholdSpec("", 100))

	readings := []models.Reading{
		reading("central", "", time.Date(2026, 3, 16, 10, 0, 0, 0, time.UTC), 150),
	}

	result, err := f.engine.Evaluate(context.Background(), readings, EvaluationFilter{SedeID: "central"})
	require.NoError(t, err)

	// The duitama-scoped rule is dropped by the filter; the central and
	// unscoped rules both run, but they dedup to distinct fingerprints
	assert.Equal(t, 2, result.RulesEvaluated)
	assert.Len(t, result.TriggeredAlerts, 2)
}
