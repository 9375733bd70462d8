package services

import (
	"context"
	"fmt"
	"time"

	"github.com/uptc-energia/backend/internal/analytics"
	"github.com/uptc-energia/backend/internal/config"
	"github.com/uptc-energia/backend/internal/db/models"
	"github.com/uptc-energia/backend/internal/db/repository"
	"github.com/uptc-energia/backend/internal/energyapi"
	"github.com/uptc-energia/backend/internal/utils"
	"go.uber.org/zap"
)

// BaselineRequest parameterizes one recalculation run
type BaselineRequest struct {
	SedeID       string `json:"sede_id,omitempty"`
	Metric       string `json:"metric,omitempty"`
	LookbackDays int    `json:"lookback_days,omitempty"`
}

// BaselineResponse summarizes one recalculation run
type BaselineResponse struct {
	SedeID         string `json:"sede_id,omitempty"`
	Metric         string `json:"metric"`
	LookbackDays   int    `json:"lookback_days"`
	BaselinesSaved int    `json:"baselines_saved"`
}

// BaselineService recomputes the per-bucket expected values from the
// historical readings and upserts them.
type BaselineService struct {
	source       ReadingSource
	baselineRepo repository.BaselineRepository
	cfg          *config.AnalyticsConfig
	logger       *utils.Logger
}

// NewBaselineService creates a new baseline calculation service
func NewBaselineService(
	source ReadingSource,
	baselineRepo repository.BaselineRepository,
	cfg *config.AnalyticsConfig,
	logger *utils.Logger,
) *BaselineService {
	return &BaselineService{
		source:       source,
		baselineRepo: baselineRepo,
		cfg:          cfg,
		logger:       logger.Named("baseline_service"),
	}
}

// Recalculate groups the lookback window's readings by
// (sede, sector, hour, weekday) and upserts one baseline row per bucket
// with at least three samples.
func (s *BaselineService) Recalculate(ctx context.Context, req BaselineRequest) (*BaselineResponse, error) {
	if req.Metric == "" {
		req.Metric = s.cfg.DefaultMetric
	}
	if req.LookbackDays <= 0 {
		req.LookbackDays = s.cfg.LookbackDays
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -req.LookbackDays)

	s.logger.Info("Recalculating baselines",
		zap.String("sede_id", req.SedeID),
		zap.String("metric", req.Metric),
		zap.Int("lookback_days", req.LookbackDays),
	)

	readings, err := s.source.GetConsumos(ctx, energyapi.ConsumoFilter{
		SedeID: req.SedeID,
		From:   &from,
		To:     &to,
		Limit:  s.cfg.MaxReadingsBatch,
		Order:  "asc",
	})
	if err != nil {
		return nil, err
	}

	response := &BaselineResponse{
		SedeID:       req.SedeID,
		Metric:       req.Metric,
		LookbackDays: req.LookbackDays,
	}

	if len(readings) == 0 {
		return response, nil
	}

	saved, err := s.ComputeAndStore(readings, req.Metric)
	if err != nil {
		return nil, err
	}
	response.BaselinesSaved = saved

	s.logger.Info("Baseline recalculation completed",
		zap.Int("baselines_saved", saved))

	return response, nil
}

type baselineBucket struct {
	sedeID    string
	sector    string
	hour      int
	dayOfWeek int
}

// ComputeAndStore groups an in-memory batch into (sede, sector, hour,
// weekday) buckets and persists the qualifying ones. Returns the number of
// baselines written.
func (s *BaselineService) ComputeAndStore(readings []models.Reading, metric string) (int, error) {
	groups := make(map[baselineBucket][]float64)

	for i := range readings {
		r := &readings[i]
		value, ok := r.MetricValue(metric)
		if !ok {
			continue
		}

		key := baselineBucket{
			sedeID:    r.SedeID,
			sector:    r.Sector,
			hour:      r.Hora,
			dayOfWeek: r.DiaSemana,
		}
		groups[key] = append(groups[key], value)
	}

	now := time.Now().UTC()
	saved := 0

	for key, values := range groups {
		if len(values) < analytics.MinSamples {
			continue
		}

		stats := analytics.Describe(values)

		baseline := &models.Baseline{
			SedeID:        key.sedeID,
			Sector:        key.sector,
			Metric:        metric,
			Granularity:   models.GranularityHourWeekday,
			TimeKey:       analytics.TimeKey(key.dayOfWeek, key.hour),
			BaselineValue: stats.Mean,
			StdDev:        stats.StdDev,
			SampleCount:   stats.Count,
			CalculatedAt:  now,
		}

		if err := s.baselineRepo.Upsert(baseline); err != nil {
			return saved, fmt.Errorf("failed to upsert baseline for %s/%s %s: %w",
				key.sedeID, key.sector, baseline.TimeKey, err)
		}
		saved++
	}

	return saved, nil
}
