package services

import (
	"context"
	"fmt"
	"time"

	"github.com/uptc-energia/backend/internal/db/models"
	"github.com/uptc-energia/backend/internal/db/repository"
	"github.com/uptc-energia/backend/internal/utils"
	"go.uber.org/zap"
)

// AlertService manages the alert lifecycle and evidence trail
type AlertService struct {
	alertRepo repository.AlertRepository
	notifier  AlertNotifier
	logger    *utils.Logger
}

// NewAlertService creates a new alert service
func NewAlertService(alertRepo repository.AlertRepository, notifier AlertNotifier, logger *utils.Logger) *AlertService {
	return &AlertService{
		alertRepo: alertRepo,
		notifier:  notifier,
		logger:    logger.Named("alert_service"),
	}
}

// List returns alerts matching the filter, newest first
func (s *AlertService) List(filter repository.AlertFilter, offset, limit int) ([]models.Alert, int64, error) {
	return s.alertRepo.List(filter, offset, limit)
}

// Get returns one alert by id
func (s *AlertService) Get(id uint) (*models.Alert, error) {
	alert, err := s.alertRepo.GetByID(id)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, utils.ErrNotFound
		}
		return nil, err
	}
	return alert, nil
}

// Acknowledge moves an open alert to acknowledged, recording who and when
func (s *AlertService) Acknowledge(ctx context.Context, id uint, acknowledgedBy string) (*models.Alert, error) {
	if acknowledgedBy == "" {
		return nil, fmt.Errorf("%w: acknowledged_by is required", utils.ErrValidation)
	}
	return s.transition(ctx, id, models.AlertAcknowledged, acknowledgedBy)
}

// Resolve moves an alert to its terminal resolved state
func (s *AlertService) Resolve(ctx context.Context, id uint) (*models.Alert, error) {
	return s.transition(ctx, id, models.AlertResolved, "")
}

func (s *AlertService) transition(ctx context.Context, id uint, to models.AlertStatus, acknowledgedBy string) (*models.Alert, error) {
	alert, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	if !alert.Status.CanTransition(to) {
		return nil, fmt.Errorf("%w: %s -> %s", utils.ErrInvalidTransition, alert.Status, to)
	}

	from := alert.Status
	alert.Status = to
	if to == models.AlertAcknowledged {
		now := time.Now().UTC()
		alert.AcknowledgedAt = &now
		alert.AcknowledgedBy = acknowledgedBy
	}

	if err := s.alertRepo.UpdateStatus(alert); err != nil {
		return nil, err
	}

	s.logger.Info("Alert status changed",
		zap.Uint("alert_id", alert.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)

	if s.notifier != nil {
		s.notifier.AlertUpdated(ctx, alert)
	}

	return alert, nil
}

// AddEvidence validates and appends an evidence record to an alert
func (s *AlertService) AddEvidence(id uint, evidence *models.Evidence) error {
	if _, err := s.Get(id); err != nil {
		return err
	}

	if evidence.Values == nil || evidence.Baseline == nil || evidence.Delta == nil {
		return fmt.Errorf("%w: evidence requires values, baseline and delta", utils.ErrValidation)
	}

	evidence.AlertID = id
	return s.alertRepo.AddEvidence(evidence)
}

// ListEvidence returns an alert's evidence, most recent first
func (s *AlertService) ListEvidence(id uint) ([]models.Evidence, error) {
	if _, err := s.Get(id); err != nil {
		return nil, err
	}
	return s.alertRepo.ListEvidence(id)
}
