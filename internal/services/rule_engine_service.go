package services

import (
	"context"
	"time"

	"github.com/uptc-energia/backend/internal/analytics"
	"github.com/uptc-energia/backend/internal/db/models"
	"github.com/uptc-energia/backend/internal/db/repository"
	"github.com/uptc-energia/backend/internal/utils"
	"go.uber.org/zap"
)

// alertWindow is the span attached to alerts triggered by a single reading
const alertWindow = time.Hour

// AlertNotifier receives alert lifecycle events. Implemented by
// NotificationService; nil notifiers are tolerated.
type AlertNotifier interface {
	AlertCreated(ctx context.Context, alert *models.Alert)
	AlertUpdated(ctx context.Context, alert *models.Alert)
}

// EvaluationFilter narrows an evaluation run to a sede and/or sector
type EvaluationFilter struct {
	SedeID string
	Sector string
}

// EvaluationResult summarizes one evaluation run
type EvaluationResult struct {
	TriggeredAlerts   []models.Alert `json:"triggered_alerts"`
	RulesEvaluated    int            `json:"rules_evaluated"`
	ReadingsProcessed int            `json:"readings_processed"`
}

// RuleEngineService evaluates the enabled rules against batches of readings
// and raises fingerprint-deduplicated alerts.
type RuleEngineService struct {
	ruleRepo  repository.RuleRepository
	alertRepo repository.AlertRepository
	notifier  AlertNotifier
	logger    *utils.Logger
}

// NewRuleEngineService creates a new rule engine service
func NewRuleEngineService(
	ruleRepo repository.RuleRepository,
	alertRepo repository.AlertRepository,
	notifier AlertNotifier,
	logger *utils.Logger,
) *RuleEngineService {
	return &RuleEngineService{
		ruleRepo:  ruleRepo,
		alertRepo: alertRepo,
		notifier:  notifier,
		logger:    logger.Named("rule_engine"),
	}
}

// Evaluate runs every enabled rule over the given readings. Rules whose
// spec does not validate are logged and skipped; a broken rule must never
// take the whole run down.
func (s *RuleEngineService) Evaluate(ctx context.Context, readings []models.Reading, filter EvaluationFilter) (*EvaluationResult, error) {
	s.logger.Info("Starting rules evaluation",
		zap.Int("readings", len(readings)),
		zap.String("sede_id", filter.SedeID),
		zap.String("sector", filter.Sector),
	)

	rules, err := s.ruleRepo.ListEnabled()
	if err != nil {
		return nil, err
	}

	result := &EvaluationResult{
		TriggeredAlerts:   []models.Alert{},
		ReadingsProcessed: len(readings),
	}

	if len(rules) == 0 {
		s.logger.Info("No enabled rules found")
		return result, nil
	}

	for i := range rules {
		rule := &rules[i]

		if err := rule.Spec.Validate(); err != nil {
			s.logger.Warn("Skipping malformed rule",
				zap.Uint("rule_id", rule.ID),
				zap.String("name", rule.Name),
				zap.Error(err),
			)
			continue
		}

		if !ruleMatchesFilter(rule, filter) {
			continue
		}

		alerts, err := s.evaluateRule(ctx, rule, readings)
		if err != nil {
			return nil, err
		}
		result.TriggeredAlerts = append(result.TriggeredAlerts, alerts...)
		result.RulesEvaluated++
	}

	s.logger.Info("Rules evaluation completed",
		zap.Int("rules_evaluated", result.RulesEvaluated),
		zap.Int("alerts_triggered", len(result.TriggeredAlerts)),
	)

	return result, nil
}

// ruleMatchesFilter drops rules scoped to a different sede or sector than
// the one this run was asked for
func ruleMatchesFilter(rule *models.Rule, filter EvaluationFilter) bool {
	if filter.SedeID != "" && rule.Spec.Scope.SedeID != "" && rule.Spec.Scope.SedeID != filter.SedeID {
		return false
	}
	if filter.Sector != "" && rule.Spec.Scope.Sector != "" && rule.Spec.Scope.Sector != filter.Sector {
		return false
	}
	return true
}

func (s *RuleEngineService) evaluateRule(ctx context.Context, rule *models.Rule, readings []models.Reading) ([]models.Alert, error) {
	scoped := make([]models.Reading, 0, len(readings))
	for i := range readings {
		if rule.Spec.Scope.Matches(&readings[i]) {
			scoped = append(scoped, readings[i])
		}
	}
	if len(scoped) == 0 {
		return nil, nil
	}

	s.logger.Debug("Evaluating rule",
		zap.Uint("rule_id", rule.ID),
		zap.String("type", string(rule.Spec.Type)),
		zap.Int("readings", len(scoped)),
	)

	switch rule.Spec.Type {
	case models.RuleAbsoluteThreshold:
		return s.evaluateAbsoluteThreshold(ctx, rule, scoped)
	case models.RuleOutOfSchedule:
		return s.evaluateOutOfSchedule(ctx, rule, scoped)
	case models.RuleBaselineRelative:
		return s.evaluateBaselineRelative(ctx, rule, scoped)
	case models.RuleBudgetWindow:
		return s.evaluateBudgetWindow(ctx, rule, scoped)
	default:
		s.logger.Warn("Unsupported rule type",
			zap.Uint("rule_id", rule.ID),
			zap.String("type", string(rule.Spec.Type)),
		)
		return nil, nil
	}
}

func (s *RuleEngineService) evaluateAbsoluteThreshold(ctx context.Context, rule *models.Rule, readings []models.Reading) ([]models.Alert, error) {
	var alerts []models.Alert

	for i := range readings {
		reading := &readings[i]
		value, ok := reading.MetricValue(rule.Spec.Metric)
		if !ok {
			continue
		}
		if !rule.Spec.Condition.Violates(value) {
			continue
		}

		alert, err := s.createAlert(ctx, rule, reading, reading.Time, reading.Time.Add(alertWindow), value, map[string]interface{}{
			"reason":    "absolute_threshold",
			"threshold": rule.Spec.Condition.Threshold(),
		})
		if err != nil {
			return nil, err
		}
		if alert != nil {
			alerts = append(alerts, *alert)
		}
	}

	return alerts, nil
}

func (s *RuleEngineService) evaluateOutOfSchedule(ctx context.Context, rule *models.Rule, readings []models.Reading) ([]models.Alert, error) {
	var alerts []models.Alert

	for i := range readings {
		reading := &readings[i]
		if rule.Spec.Schedule.HourAllowed(reading.Hora) {
			continue
		}

		value, ok := reading.MetricValue(rule.Spec.Metric)
		if !ok {
			continue
		}
		if !rule.Spec.Condition.Violates(value) {
			continue
		}

		alert, err := s.createAlert(ctx, rule, reading, reading.Time, reading.Time.Add(alertWindow), value, map[string]interface{}{
			"reason":    "out_of_schedule",
			"hour":      reading.Hora,
			"threshold": rule.Spec.Condition.Threshold(),
		})
		if err != nil {
			return nil, err
		}
		if alert != nil {
			alerts = append(alerts, *alert)
		}
	}

	return alerts, nil
}

// evaluateBaselineRelative compares each reading against the mean of the
// batch itself. A zero mean means no usable reference, so nothing fires.
func (s *RuleEngineService) evaluateBaselineRelative(ctx context.Context, rule *models.Rule, readings []models.Reading) ([]models.Alert, error) {
	var values []float64
	for i := range readings {
		if v, ok := readings[i].MetricValue(rule.Spec.Metric); ok {
			values = append(values, v)
		}
	}

	baseline := analytics.Mean(values)
	if baseline == 0 {
		return nil, nil
	}

	tolerance := rule.Spec.Baseline.TolerancePct
	var alerts []models.Alert

	for i := range readings {
		reading := &readings[i]
		value, ok := reading.MetricValue(rule.Spec.Metric)
		if !ok {
			continue
		}

		deviationPct := ((value - baseline) / baseline) * 100
		if deviationPct < 0 {
			if -deviationPct <= tolerance {
				continue
			}
		} else if deviationPct <= tolerance {
			continue
		}

		alert, err := s.createAlert(ctx, rule, reading, reading.Time, reading.Time.Add(alertWindow), value, map[string]interface{}{
			"reason":    "baseline_relative",
			"baseline":  baseline,
			"deviation": deviationPct,
			"tolerance": tolerance,
		})
		if err != nil {
			return nil, err
		}
		if alert == nil {
			continue
		}

		absDeviation := deviationPct
		if absDeviation < 0 {
			absDeviation = -absDeviation
		}
		score := absDeviation / tolerance
		evidence := &models.Evidence{
			AlertID:      alert.ID,
			Values:       models.JSONMap{"current": value},
			Baseline:     models.JSONMap{"baseline": baseline, "method": "average"},
			Delta:        models.JSONMap{"absolute": value - baseline, "percentage": deviationPct},
			AnomalyScore: &score,
		}
		if err := s.alertRepo.AddEvidence(evidence); err != nil {
			return nil, err
		}

		alerts = append(alerts, *alert)
	}

	return alerts, nil
}

// evaluateBudgetWindow sums the metric over the whole batch and raises at
// most one alert, spanning the first to the last reading timestamp.
func (s *RuleEngineService) evaluateBudgetWindow(ctx context.Context, rule *models.Rule, readings []models.Reading) ([]models.Alert, error) {
	budget := rule.Spec.Budget

	var total float64
	for i := range readings {
		if v, ok := readings[i].MetricValue(rule.Spec.Metric); ok {
			total += v
		}
	}

	if total <= budget.Amount {
		return nil, nil
	}

	first := &readings[0]
	last := &readings[len(readings)-1]

	alert, err := s.createAlert(ctx, rule, first, first.Time, last.Time, total, map[string]interface{}{
		"reason": "budget_window",
		"budget": budget.Amount,
		"period": budget.Period,
	})
	if err != nil {
		return nil, err
	}
	if alert == nil {
		return nil, nil
	}

	score := total / budget.Amount
	evidence := &models.Evidence{
		AlertID:      alert.ID,
		Values:       models.JSONMap{"total": total, "readingsCount": len(readings)},
		Baseline:     models.JSONMap{"budget": budget.Amount, "period": budget.Period},
		Delta:        models.JSONMap{"absolute": total - budget.Amount, "percentage": ((total - budget.Amount) / budget.Amount) * 100},
		AnomalyScore: &score,
	}
	if err := s.alertRepo.AddEvidence(evidence); err != nil {
		return nil, err
	}

	return []models.Alert{*alert}, nil
}

// createAlert renders the message, derives the fingerprint and performs an
// idempotent insert. A nil alert with nil error means the fingerprint
// already existed and the trigger was silently dropped.
func (s *RuleEngineService) createAlert(
	ctx context.Context,
	rule *models.Rule,
	reading *models.Reading,
	windowStart, windowEnd time.Time,
	value float64,
	templateCtx map[string]interface{},
) (*models.Alert, error) {
	ruleID := rule.ID
	fingerprint := models.Fingerprint(&ruleID, reading.SedeID, reading.Sector, windowStart, windowEnd)

	sector := reading.Sector
	if sector == "" {
		sector = "general"
	}
	templateCtx["sector"] = sector
	templateCtx["value"] = value
	templateCtx["metric"] = rule.Spec.Metric
	templateCtx["sedeId"] = reading.SedeID

	alert := &models.Alert{
		Fingerprint: fingerprint,
		RuleID:      &ruleID,
		SedeID:      reading.SedeID,
		Sector:      reading.Sector,
		Metric:      rule.Spec.Metric,
		Severity:    rule.Spec.Severity,
		Status:      models.AlertOpen,
		Message:     analytics.RenderTemplate(rule.Spec.MessageTemplate, templateCtx),
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
	}

	stored, created, err := s.alertRepo.CreateIdempotent(alert)
	if err != nil {
		return nil, err
	}
	if !created {
		s.logger.Debug("Alert already exists, skipping",
			zap.String("fingerprint", fingerprint))
		return nil, nil
	}

	if s.notifier != nil {
		s.notifier.AlertCreated(ctx, stored)
	}

	return stored, nil
}
