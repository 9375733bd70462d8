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

// ReadingSource abstracts the upstream consumption feed. Satisfied by
// energyapi.Client.
type ReadingSource interface {
	GetConsumos(ctx context.Context, filter energyapi.ConsumoFilter) ([]models.Reading, error)
}

// AnomalyRequest parameterizes one detection run. Zero values fall back
// to the configured defaults.
type AnomalyRequest struct {
	SedeID          string  `json:"sede_id,omitempty"`
	Metric          string  `json:"metric,omitempty"`
	HoursBack       int     `json:"hours_back,omitempty"`
	ZScoreThreshold float64 `json:"zscore_threshold,omitempty"`
}

// Anomaly is one statistical outlier found in the readings
type Anomaly struct {
	Timestamp time.Time       `json:"timestamp"`
	SedeID    string          `json:"sede_id"`
	Sector    string          `json:"sector,omitempty"`
	Metric    string          `json:"metric"`
	Value     float64         `json:"value"`
	Mean      float64         `json:"mean"`
	StdDev    float64         `json:"std_dev"`
	ZScore    float64         `json:"z_score"`
	Severity  models.Severity `json:"severity"`
}

// AnomalyResponse summarizes one detection run
type AnomalyResponse struct {
	Anomalies     []Anomaly `json:"anomalies"`
	TotalReadings int       `json:"total_readings"`
	Threshold     float64   `json:"threshold"`
	From          time.Time `json:"from"`
	To            time.Time `json:"to"`
}

// AnomalyService finds z-score outliers in recent readings and optionally
// raises alerts for the severe ones.
type AnomalyService struct {
	source    ReadingSource
	alertRepo repository.AlertRepository
	notifier  AlertNotifier
	cfg       *config.AnalyticsConfig
	logger    *utils.Logger
}

// NewAnomalyService creates a new anomaly detection service
func NewAnomalyService(
	source ReadingSource,
	alertRepo repository.AlertRepository,
	notifier AlertNotifier,
	cfg *config.AnalyticsConfig,
	logger *utils.Logger,
) *AnomalyService {
	return &AnomalyService{
		source:    source,
		alertRepo: alertRepo,
		notifier:  notifier,
		cfg:       cfg,
		logger:    logger.Named("anomaly_service"),
	}
}

func (s *AnomalyService) defaults(req *AnomalyRequest) {
	if req.HoursBack <= 0 {
		req.HoursBack = 24
	}
	if req.ZScoreThreshold <= 0 {
		req.ZScoreThreshold = s.cfg.ZScoreThreshold
	}
	if req.Metric == "" {
		req.Metric = s.cfg.DefaultMetric
	}
}

// Detect fetches the recent readings for the request window and returns
// the outliers, without touching the alerts table.
func (s *AnomalyService) Detect(ctx context.Context, req AnomalyRequest) (*AnomalyResponse, error) {
	s.defaults(&req)

	to := time.Now().UTC()
	from := to.Add(-time.Duration(req.HoursBack) * time.Hour)

	s.logger.Info("Starting anomaly detection",
		zap.String("sede_id", req.SedeID),
		zap.String("metric", req.Metric),
		zap.Int("hours_back", req.HoursBack),
		zap.Float64("threshold", req.ZScoreThreshold),
	)

	readings, err := s.source.GetConsumos(ctx, energyapi.ConsumoFilter{
		SedeID: req.SedeID,
		From:   &from,
		To:     &to,
		Limit:  s.cfg.MaxReadingsBatch,
		Order:  "desc",
	})
	if err != nil {
		return nil, err
	}

	response := &AnomalyResponse{
		Anomalies:     []Anomaly{},
		TotalReadings: len(readings),
		Threshold:     req.ZScoreThreshold,
		From:          from,
		To:            to,
	}

	if len(readings) == 0 {
		s.logger.Warn("No readings found for anomaly detection")
		return response, nil
	}

	response.Anomalies = DetectInReadings(readings, req.Metric, req.ZScoreThreshold)

	s.logger.Info("Anomaly detection completed",
		zap.Int("total_readings", len(readings)),
		zap.Int("anomalies", len(response.Anomalies)),
	)

	return response, nil
}

// DetectWithAlerts runs detection and raises a deduplicated alert for each
// high or critical anomaly. A single alert failing never aborts the sweep.
func (s *AnomalyService) DetectWithAlerts(ctx context.Context, req AnomalyRequest) (*AnomalyResponse, int, error) {
	response, err := s.Detect(ctx, req)
	if err != nil {
		return nil, 0, err
	}

	alertsCreated := 0
	for i := range response.Anomalies {
		anomaly := &response.Anomalies[i]
		if anomaly.Severity != models.SeverityHigh && anomaly.Severity != models.SeverityCritical {
			continue
		}

		created, err := s.createAnomalyAlert(ctx, anomaly)
		if err != nil {
			s.logger.Warn("Failed to create alert for anomaly",
				zap.Error(err),
				zap.String("sede_id", anomaly.SedeID),
				zap.Float64("z_score", anomaly.ZScore),
			)
			continue
		}
		if created {
			alertsCreated++
		}
	}

	s.logger.Info("Anomaly alerts created", zap.Int("alerts_created", alertsCreated))
	return response, alertsCreated, nil
}

// DetectInReadings runs the z-score pass over an in-memory batch. Fewer
// than three usable values, or a flat series, yields no anomalies.
func DetectInReadings(readings []models.Reading, metric string, threshold float64) []Anomaly {
	type sample struct {
		timestamp time.Time
		sedeID    string
		sector    string
		value     float64
	}

	samples := make([]sample, 0, len(readings))
	values := make([]float64, 0, len(readings))
	for i := range readings {
		r := &readings[i]
		v, ok := r.MetricValue(metric)
		if !ok {
			continue
		}
		samples = append(samples, sample{r.Time, r.SedeID, r.Sector, v})
		values = append(values, v)
	}

	if len(samples) < analytics.MinSamples {
		return []Anomaly{}
	}

	mean := analytics.Mean(values)
	stdDev := analytics.PopulationStdDev(values)
	if stdDev == 0 {
		return []Anomaly{}
	}

	anomalies := []Anomaly{}
	for _, item := range samples {
		zScore := analytics.ZScore(item.value, mean, stdDev)
		if zScore < threshold {
			continue
		}

		anomalies = append(anomalies, Anomaly{
			Timestamp: item.timestamp,
			SedeID:    item.sedeID,
			Sector:    item.sector,
			Metric:    metric,
			Value:     item.value,
			Mean:      mean,
			StdDev:    stdDev,
			ZScore:    zScore,
			Severity:  models.Severity(analytics.SeverityForZScore(zScore, threshold)),
		})
	}

	return anomalies
}

// createAnomalyAlert raises one alert for an anomaly, with a window of one
// hour either side of the offending reading and no rule attached.
func (s *AnomalyService) createAnomalyAlert(ctx context.Context, anomaly *Anomaly) (bool, error) {
	windowStart := anomaly.Timestamp.Add(-alertWindow)
	windowEnd := anomaly.Timestamp.Add(alertWindow)

	fingerprint := models.Fingerprint(nil, anomaly.SedeID, anomaly.Sector, windowStart, windowEnd)

	deviationPct := anomaly.ZScore * anomaly.StdDev / anomaly.Mean * 100
	message := fmt.Sprintf(
		"Anomalía detectada en %s: %.2f (z-score: %.2f, desviación de %.1f%%)",
		anomaly.Metric, anomaly.Value, anomaly.ZScore, deviationPct,
	)

	alert := &models.Alert{
		Fingerprint: fingerprint,
		SedeID:      anomaly.SedeID,
		Sector:      anomaly.Sector,
		Metric:      anomaly.Metric,
		Severity:    anomaly.Severity,
		Status:      models.AlertOpen,
		Message:     message,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
	}

	stored, created, err := s.alertRepo.CreateIdempotent(alert)
	if err != nil {
		return false, err
	}
	if !created {
		return false, nil
	}

	score := anomaly.ZScore
	evidence := &models.Evidence{
		AlertID:  stored.ID,
		Values:   models.JSONMap{"value": anomaly.Value, "timestamp": anomaly.Timestamp.UTC().Format(time.RFC3339Nano)},
		Baseline: models.JSONMap{"mean": anomaly.Mean, "stdDev": anomaly.StdDev, "method": "zscore"},
		Delta: models.JSONMap{
			"absolute":   anomaly.Value - anomaly.Mean,
			"percentage": ((anomaly.Value - anomaly.Mean) / anomaly.Mean) * 100,
			"zScore":     anomaly.ZScore,
		},
		AnomalyScore: &score,
	}
	if err := s.alertRepo.AddEvidence(evidence); err != nil {
		return false, err
	}

	if s.notifier != nil {
		s.notifier.AlertCreated(ctx, stored)
	}

	s.logger.Info("Anomaly alert created",
		zap.Uint("alert_id", stored.ID),
		zap.String("sede_id", anomaly.SedeID),
		zap.Float64("z_score", anomaly.ZScore),
	)

	return true, nil
}
