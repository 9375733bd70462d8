package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptc-energia/backend/internal/db/models"
	"github.com/uptc-energia/backend/internal/db/repository"
	"github.com/uptc-energia/backend/internal/testutil"
	"github.com/uptc-energia/backend/internal/utils"
)

func newRuleServiceFixture(t *testing.T) *RuleService {
	ts := testutil.NewTestSetup(t)
	t.Cleanup(ts.Cleanup)
	ts.MigrateAll(t)

	svc, err := NewRuleService(repository.NewRuleRepository(ts.DB.DB), ts.Logger)
	require.NoError(t, err)
	return svc
}

func TestRuleCreate(t *testing.T) {
	svc := newRuleServiceFixture(t)

	rule, err := svc.Create("exceso de consumo", "umbral para el comedor", thresholdSpec("central", 100), true)
	require.NoError(t, err)
	assert.NotZero(t, rule.ID)
	assert.True(t, rule.Enabled)

	stored, err := svc.Get(rule.ID)
	require.NoError(t, err)
	assert.Equal(t, "exceso de consumo", stored.Name)
	assert.Equal(t, models.RuleAbsoluteThreshold, stored.Spec.Type)
	require.NotNil(t, stored.Spec.Condition)
	assert.Equal(t, 100.0, *stored.Spec.Condition.GT)
}

func TestRuleCreateRejectsInvalidSpec(t *testing.T) {
	svc := newRuleServiceFixture(t)

	// Schema gate: unknown severity
	bad := thresholdSpec("central", 100)
	bad.Severity = "urgent"
	_, err := svc.Create("mala", "", bad, true)
	assert.ErrorIs(t, err, utils.ErrValidation)

	// Typed gate: threshold rule without a condition
	bad = thresholdSpec("central", 100)
	bad.Condition = nil
	_, err = svc.Create("mala", "", bad, true)
	assert.ErrorIs(t, err, utils.ErrValidation)

	rules, total, err := svc.List(0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.Empty(t, rules)
}

func TestRuleUpdate(t *testing.T) {
	svc := newRuleServiceFixture(t)

	rule, err := svc.Create("original", "", thresholdSpec("central", 100), true)
	require.NoError(t, err)

	updated, err := svc.Update(rule.ID, "renombrada", "ajuste de umbral", thresholdSpec("central", 200), false)
	require.NoError(t, err)
	assert.Equal(t, "renombrada", updated.Name)
	assert.False(t, updated.Enabled)
	assert.Equal(t, 200.0, *updated.Spec.Condition.GT)

	_, err = svc.Update(rule.ID, "", "", thresholdSpec("central", 200), true)
	assert.ErrorIs(t, err, utils.ErrValidation)

	_, err = svc.Update(9999, "fantasma", "", thresholdSpec("central", 200), true)
	assert.ErrorIs(t, err, utils.ErrNotFound)
}

func TestRuleSetEnabled(t *testing.T) {
	svc := newRuleServiceFixture(t)

	rule, err := svc.Create("alternable", "", thresholdSpec("central", 100), true)
	require.NoError(t, err)

	toggled, err := svc.SetEnabled(rule.ID, false)
	require.NoError(t, err)
	assert.False(t, toggled.Enabled)

	toggled, err = svc.SetEnabled(rule.ID, true)
	require.NoError(t, err)
	assert.True(t, toggled.Enabled)

	_, err = svc.SetEnabled(9999, true)
	assert.ErrorIs(t, err, utils.ErrNotFound)
}

func TestRuleDelete(t *testing.T) {
	svc := newRuleServiceFixture(t)

	rule, err := svc.Create("efimera", "", thresholdSpec("central", 100), true)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(rule.ID))

	_, err = svc.Get(rule.ID)
	assert.ErrorIs(t, err, utils.ErrNotFound)

	assert.ErrorIs(t, svc.Delete(rule.ID), utils.ErrNotFound)
}
