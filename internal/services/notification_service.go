package services

import (
	"context"
	"strconv"
	"time"

	"github.com/uptc-energia/backend/internal/db/models"
	"github.com/uptc-energia/backend/internal/kafka"
	"github.com/uptc-energia/backend/internal/utils"
	"github.com/uptc-energia/backend/internal/ws"
	"go.uber.org/zap"
)

// NotificationService fans alert events out to the alerts topic and the
// websocket hub. Either sink may be absent; delivery is best-effort and
// never blocks the analytics path.
type NotificationService struct {
	producer *kafka.Producer
	hub      *ws.Hub
	logger   *utils.Logger
}

// NewNotificationService creates a new notification service
func NewNotificationService(producer *kafka.Producer, hub *ws.Hub, logger *utils.Logger) *NotificationService {
	return &NotificationService{
		producer: producer,
		hub:      hub,
		logger:   logger.Named("notification_service"),
	}
}

// AlertCreated publishes a freshly raised alert
func (s *NotificationService) AlertCreated(ctx context.Context, alert *models.Alert) {
	s.publish(alert, ws.EventTypeAlert)
}

// AlertUpdated publishes an alert lifecycle change
func (s *NotificationService) AlertUpdated(ctx context.Context, alert *models.Alert) {
	s.publish(alert, ws.EventTypeAlertStatus)
}

func (s *NotificationService) publish(alert *models.Alert, eventType ws.EventType) {
	s.logger.Info("Publishing alert event",
		zap.Uint("alert_id", alert.ID),
		zap.String("event", string(eventType)),
		zap.String("sede_id", alert.SedeID),
		zap.String("severity", string(alert.Severity)),
	)

	if s.producer != nil {
		message := &kafka.Message{
			Key:       alert.SedeID,
			Value:     alert,
			Timestamp: time.Now().UTC(),
			Headers: map[string]string{
				"event":    string(eventType),
				"alert_id": strconv.FormatUint(uint64(alert.ID), 10),
			},
		}
		if err := s.producer.Produce(kafka.TopicAlerts, message); err != nil {
			s.logger.Error("Failed to publish alert to Kafka",
				zap.Error(err),
				zap.Uint("alert_id", alert.ID),
			)
		}
	}

	if s.hub != nil {
		s.hub.Publish(eventType, alert.SedeID, alert)
	}
}
