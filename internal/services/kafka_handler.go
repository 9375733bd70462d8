package services

import (
	"encoding/json"
	"fmt"

	confluent "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/uptc-energia/backend/internal/db/models"
	"github.com/uptc-energia/backend/internal/db/repository"
	"github.com/uptc-energia/backend/internal/kafka"
	"github.com/uptc-energia/backend/internal/utils"
	"go.uber.org/zap"
)

// KafkaHandler wires the readings topic into local storage. Payloads are
// either a single reading object or an array of them.
type KafkaHandler struct {
	readingRepo repository.ReadingRepository
	logger      *utils.Logger
}

// NewKafkaHandler creates a new readings topic handler
func NewKafkaHandler(readingRepo repository.ReadingRepository, logger *utils.Logger) *KafkaHandler {
	return &KafkaHandler{
		readingRepo: readingRepo,
		logger:      logger.Named("kafka_handler"),
	}
}

// Register attaches the handler to the consumer
func (h *KafkaHandler) Register(consumer *kafka.Consumer) {
	consumer.RegisterHandler(kafka.TopicReadings, h.handleReadings)
}

// handleReadings decodes and persists one readings message. Returned
// errors route the message to the DLQ.
func (h *KafkaHandler) handleReadings(msg *confluent.Message) error {
	readings, err := decodeReadings(msg.Value)
	if err != nil {
		return fmt.Errorf("failed to decode readings payload: %w", err)
	}
	if len(readings) == 0 {
		return nil
	}

	for i := range readings {
		r := &readings[i]
		if r.SedeID == "" || r.Time.IsZero() {
			return fmt.Errorf("reading %d missing sede_id or timestamp", i)
		}
		r.ComputeTemporalDimensions()
	}

	inserted, err := h.readingRepo.InsertBatch(readings)
	if err != nil {
		return fmt.Errorf("failed to persist readings: %w", err)
	}

	h.logger.Debug("Readings ingested from Kafka",
		zap.Int("received", len(readings)),
		zap.Int("inserted", inserted),
	)

	return nil
}

func decodeReadings(payload []byte) ([]models.Reading, error) {
	var batch []models.Reading
	if err := json.Unmarshal(payload, &batch); err == nil {
		return batch, nil
	}

	var single models.Reading
	if err := json.Unmarshal(payload, &single); err != nil {
		return nil, err
	}
	return []models.Reading{single}, nil
}
