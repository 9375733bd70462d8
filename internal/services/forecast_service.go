package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/uptc-energia/backend/internal/analytics"
	"github.com/uptc-energia/backend/internal/config"
	"github.com/uptc-energia/backend/internal/db/models"
	"github.com/uptc-energia/backend/internal/energyapi"
	"github.com/uptc-energia/backend/internal/utils"
	"go.uber.org/zap"
)

// ForecastMethod names the prediction model in responses
const ForecastMethod = "baseline_with_hourly_weekday_pattern"

// matchTolerance pairs forecast points with actual readings during
// accuracy evaluation
const matchTolerance = 30 * time.Minute

// ForecastRequest parameterizes one forecast run
type ForecastRequest struct {
	SedeID       string `json:"sede_id,omitempty"`
	Metric       string `json:"metric,omitempty"`
	HoursAhead   int    `json:"hours_ahead,omitempty"`
	LookbackDays int    `json:"lookback_days,omitempty"`
}

// ConfidenceBand bounds one forecast point
type ConfidenceBand struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// ForecastPoint is one predicted hour
type ForecastPoint struct {
	Timestamp  time.Time      `json:"timestamp"`
	Hour       int            `json:"hour"`
	DayOfWeek  int            `json:"day_of_week"`
	Predicted  float64        `json:"predicted"`
	Confidence ConfidenceBand `json:"confidence"`
	Baseline   float64        `json:"baseline"`
}

// HistoricalSummary describes the data the forecast was built from
type HistoricalSummary struct {
	Mean       float64 `json:"mean"`
	StdDev     float64 `json:"std_dev"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	DataPoints int     `json:"data_points"`
}

// ForecastResponse is the full forecast payload
type ForecastResponse struct {
	SedeID         string            `json:"sede_id,omitempty"`
	Metric         string            `json:"metric"`
	Forecast       []ForecastPoint   `json:"forecast"`
	HistoricalData HistoricalSummary `json:"historical_data"`
	Method         string            `json:"method"`
	GeneratedAt    time.Time         `json:"generated_at"`
}

// ForecastAccuracy reports how a past forecast fared against actuals
type ForecastAccuracy struct {
	MAE  float64 `json:"mae"`
	RMSE float64 `json:"rmse"`
	MAPE float64 `json:"mape"`
}

// ForecastService predicts per-hour consumption from the historical
// (hour, weekday) pattern. Responses are cached in Redis; a cache outage
// degrades to recomputation, never to an error.
type ForecastService struct {
	source ReadingSource
	cache  *redis.Client
	ttl    time.Duration
	cfg    *config.AnalyticsConfig
	logger *utils.Logger
}

// NewForecastService creates a new forecast service. cache may be nil.
func NewForecastService(
	source ReadingSource,
	cache *redis.Client,
	redisCfg *config.RedisConfig,
	cfg *config.AnalyticsConfig,
	logger *utils.Logger,
) *ForecastService {
	ttl := time.Duration(redisCfg.TTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &ForecastService{
		source: source,
		cache:  cache,
		ttl:    ttl,
		cfg:    cfg,
		logger: logger.Named("forecast_service"),
	}
}

// Forecast produces hourly predictions for the request window
func (s *ForecastService) Forecast(ctx context.Context, req ForecastRequest) (*ForecastResponse, error) {
	if req.Metric == "" {
		req.Metric = s.cfg.DefaultMetric
	}
	if req.HoursAhead <= 0 {
		req.HoursAhead = s.cfg.ForecastHours
	}
	if req.LookbackDays <= 0 {
		req.LookbackDays = s.cfg.LookbackDays
	}

	if cached := s.fromCache(ctx, req); cached != nil {
		return cached, nil
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -req.LookbackDays)

	s.logger.Info("Starting consumption forecast",
		zap.String("sede_id", req.SedeID),
		zap.String("metric", req.Metric),
		zap.Int("hours_ahead", req.HoursAhead),
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

	response := &ForecastResponse{
		SedeID:      req.SedeID,
		Metric:      req.Metric,
		Forecast:    []ForecastPoint{},
		Method:      ForecastMethod,
		GeneratedAt: time.Now().UTC(),
	}

	if len(readings) == 0 {
		s.logger.Warn("No historical data available for forecasting")
		return response, nil
	}

	model := BuildBucketModel(readings, req.Metric)
	response.Forecast = GenerateForecast(model, req.HoursAhead, to)

	var values []float64
	for i := range readings {
		if v, ok := readings[i].MetricValue(req.Metric); ok {
			values = append(values, v)
		}
	}
	stats := analytics.Describe(values)
	response.HistoricalData = HistoricalSummary{
		Mean:       stats.Mean,
		StdDev:     stats.StdDev,
		Min:        stats.Min,
		Max:        stats.Max,
		DataPoints: stats.Count,
	}

	s.logger.Info("Forecast generated",
		zap.Int("forecast_points", len(response.Forecast)),
		zap.Int("historical_points", stats.Count),
	)

	s.toCache(ctx, req, response)
	return response, nil
}

// BuildBucketModel groups historical values into (hour, weekday) buckets
func BuildBucketModel(readings []models.Reading, metric string) map[string]analytics.Bucket {
	groups := make(map[string][]float64)

	for i := range readings {
		r := &readings[i]
		value, ok := r.MetricValue(metric)
		if !ok {
			continue
		}
		key := analytics.BucketKey(r.Hora, r.DiaSemana)
		groups[key] = append(groups[key], value)
	}

	model := make(map[string]analytics.Bucket, len(groups))
	for key, values := range groups {
		model[key] = analytics.Bucket{
			Mean:   analytics.Mean(values),
			StdDev: analytics.PopulationStdDev(values),
			Count:  len(values),
		}
	}
	return model
}

// GenerateForecast predicts the next hoursAhead hours from the bucket
// model. Buckets with enough samples predict their mean with a ±2σ band;
// thin buckets fall back to the unweighted average of all bucket means
// with a wide [0.5p, 1.5p] band.
func GenerateForecast(model map[string]analytics.Bucket, hoursAhead int, startTime time.Time) []ForecastPoint {
	forecast := make([]ForecastPoint, 0, hoursAhead)

	var globalMean float64
	if len(model) > 0 {
		var sum float64
		for _, bucket := range model {
			sum += bucket.Mean
		}
		globalMean = sum / float64(len(model))
	}

	for i := 1; i <= hoursAhead; i++ {
		timestamp := startTime.Add(time.Duration(i) * time.Hour)
		hour := timestamp.Hour()
		dayOfWeek := int(timestamp.Weekday())

		point := ForecastPoint{
			Timestamp: timestamp,
			Hour:      hour,
			DayOfWeek: dayOfWeek,
		}

		bucket, ok := model[analytics.BucketKey(hour, dayOfWeek)]
		if ok && bucket.Count >= analytics.MinSamples {
			point.Predicted = bucket.Mean
			point.Baseline = bucket.Mean
			margin := bucket.StdDev * 2
			point.Confidence = ConfidenceBand{
				Lower: math.Max(0, bucket.Mean-margin),
				Upper: bucket.Mean + margin,
			}
		} else {
			point.Predicted = globalMean
			point.Baseline = globalMean
			point.Confidence = ConfidenceBand{
				Lower: math.Max(0, globalMean*0.5),
				Upper: globalMean * 1.5,
			}
		}

		forecast = append(forecast, point)
	}

	return forecast
}

// Evaluate scores a forecast against actual readings. Each point is paired
// with the first actual within 30 minutes; MAPE only counts non-zero
// actuals.
func Evaluate(forecast []ForecastPoint, actual []models.Reading, metric string) ForecastAccuracy {
	var errors []float64
	var percentageErrors []float64

	for _, point := range forecast {
		var matched *models.Reading
		for i := range actual {
			diff := actual[i].Time.Sub(point.Timestamp)
			if diff < 0 {
				diff = -diff
			}
			if diff < matchTolerance {
				matched = &actual[i]
				break
			}
		}
		if matched == nil {
			continue
		}

		actualValue, ok := matched.MetricValue(metric)
		if !ok {
			continue
		}

		err := math.Abs(point.Predicted - actualValue)
		errors = append(errors, err)
		if actualValue != 0 {
			percentageErrors = append(percentageErrors, err/actualValue*100)
		}
	}

	if len(errors) == 0 {
		return ForecastAccuracy{}
	}

	var sum, sumSq float64
	for _, e := range errors {
		sum += e
		sumSq += e * e
	}

	accuracy := ForecastAccuracy{
		MAE:  sum / float64(len(errors)),
		RMSE: math.Sqrt(sumSq / float64(len(errors))),
	}
	if len(percentageErrors) > 0 {
		accuracy.MAPE = analytics.Mean(percentageErrors)
	}
	return accuracy
}

func (s *ForecastService) cacheKey(req ForecastRequest) string {
	return fmt.Sprintf("forecast:%s:%s:%d:%d", req.SedeID, req.Metric, req.HoursAhead, req.LookbackDays)
}

func (s *ForecastService) fromCache(ctx context.Context, req ForecastRequest) *ForecastResponse {
	if s.cache == nil {
		return nil
	}

	data, err := s.cache.Get(ctx, s.cacheKey(req)).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn("Forecast cache read failed", zap.Error(err))
		}
		return nil
	}

	var response ForecastResponse
	if err := json.Unmarshal(data, &response); err != nil {
		s.logger.Warn("Forecast cache entry corrupt", zap.Error(err))
		return nil
	}

	s.logger.Debug("Forecast served from cache", zap.String("key", s.cacheKey(req)))
	return &response
}

func (s *ForecastService) toCache(ctx context.Context, req ForecastRequest, response *ForecastResponse) {
	if s.cache == nil {
		return
	}

	data, err := json.Marshal(response)
	if err != nil {
		s.logger.Warn("Failed to marshal forecast for cache", zap.Error(err))
		return
	}

	if err := s.cache.Set(ctx, s.cacheKey(req), data, s.ttl).Err(); err != nil {
		s.logger.Warn("Forecast cache write failed", zap.Error(err))
	}
}
