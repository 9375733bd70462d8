package services

import (
	"context"
	"time"

	"github.com/uptc-energia/backend/internal/config"
	"github.com/uptc-energia/backend/internal/db/repository"
	"github.com/uptc-energia/backend/internal/energyapi"
	"github.com/uptc-energia/backend/internal/utils"
	"go.uber.org/zap"
)

// IngestionResult summarizes one ingestion run
type IngestionResult struct {
	Fetched  int       `json:"fetched"`
	Inserted int       `json:"inserted"`
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`
}

// IngestionService pulls readings from the Energy API into local storage.
// Inserts are idempotent on (time, sede, sector), so overlapping windows
// are safe.
type IngestionService struct {
	source      ReadingSource
	readingRepo repository.ReadingRepository
	cfg         *config.AnalyticsConfig
	logger      *utils.Logger
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(
	source ReadingSource,
	readingRepo repository.ReadingRepository,
	cfg *config.AnalyticsConfig,
	logger *utils.Logger,
) *IngestionService {
	return &IngestionService{
		source:      source,
		readingRepo: readingRepo,
		cfg:         cfg,
		logger:      logger.Named("ingestion_service"),
	}
}

// IngestRecent fetches the last hoursBack hours of readings for a sede
// (all sedes when empty) and persists them.
func (s *IngestionService) IngestRecent(ctx context.Context, sedeID string, hoursBack int) (*IngestionResult, error) {
	if hoursBack <= 0 {
		hoursBack = s.cfg.HoursBack
	}

	to := time.Now().UTC()
	from := to.Add(-time.Duration(hoursBack) * time.Hour)

	s.logger.Info("Starting ingestion",
		zap.String("sede_id", sedeID),
		zap.Int("hours_back", hoursBack),
	)

	readings, err := s.source.GetConsumos(ctx, energyapi.ConsumoFilter{
		SedeID: sedeID,
		From:   &from,
		To:     &to,
		Limit:  s.cfg.MaxReadingsBatch,
		Order:  "asc",
	})
	if err != nil {
		return nil, err
	}

	result := &IngestionResult{
		Fetched: len(readings),
		From:    from,
		To:      to,
	}

	if len(readings) == 0 {
		s.logger.Info("No readings to ingest")
		return result, nil
	}

	inserted, err := s.readingRepo.InsertBatch(readings)
	if err != nil {
		return nil, err
	}
	result.Inserted = inserted

	s.logger.Info("Ingestion completed",
		zap.Int("fetched", result.Fetched),
		zap.Int("inserted", result.Inserted),
	)

	return result, nil
}
