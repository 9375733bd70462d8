package services

import (
	"context"
	"sync"
	"time"

	"github.com/uptc-energia/backend/internal/config"
	"github.com/uptc-energia/backend/internal/db/repository"
	"github.com/uptc-energia/backend/internal/utils"
	"go.uber.org/zap"
)

// SchedulerService runs the periodic background jobs: ingestion, rule
// evaluation, anomaly sweeps and baseline recalculation. Each job ticks on
// its own interval and stops on context cancellation.
type SchedulerService struct {
	ingestion   *IngestionService
	ruleEngine  *RuleEngineService
	anomaly     *AnomalyService
	baseline    *BaselineService
	readingRepo repository.ReadingRepository
	cfg         *config.SchedulerConfig
	analytics   *config.AnalyticsConfig
	logger      *utils.Logger
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// NewSchedulerService creates a new scheduler service
func NewSchedulerService(
	ingestion *IngestionService,
	ruleEngine *RuleEngineService,
	anomaly *AnomalyService,
	baseline *BaselineService,
	readingRepo repository.ReadingRepository,
	cfg *config.SchedulerConfig,
	analyticsCfg *config.AnalyticsConfig,
	logger *utils.Logger,
) *SchedulerService {
	return &SchedulerService{
		ingestion:   ingestion,
		ruleEngine:  ruleEngine,
		anomaly:     anomaly,
		baseline:    baseline,
		readingRepo: readingRepo,
		cfg:         cfg,
		analytics:   analyticsCfg,
		logger:      logger.Named("scheduler"),
	}
}

// Start launches the enabled jobs. Calling Start with the scheduler
// disabled is a no-op.
func (s *SchedulerService) Start(ctx context.Context) {
	if !s.cfg.Enabled {
		s.logger.Info("Scheduler disabled")
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)

	s.spawn(ctx, "ingest", s.cfg.IngestMinutes, s.runIngest)
	if s.cfg.EnableRulesEngine {
		s.spawn(ctx, "evaluate", s.cfg.EvaluateMinutes, s.runEvaluate)
	}
	if s.cfg.EnableAnomalyAlerts {
		s.spawn(ctx, "anomaly", s.cfg.AnomalyMinutes, s.runAnomaly)
	}
	s.spawn(ctx, "baseline", s.cfg.BaselineMinutes, s.runBaseline)

	s.logger.Info("Scheduler started")
}

// Stop cancels all jobs and waits for in-flight runs to finish
func (s *SchedulerService) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

func (s *SchedulerService) spawn(ctx context.Context, name string, minutes int, job func(context.Context) error) {
	if minutes <= 0 {
		s.logger.Info("Job disabled", zap.String("job", name))
		return
	}

	interval := time.Duration(minutes) * time.Minute
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		s.logger.Info("Job scheduled",
			zap.String("job", name),
			zap.Duration("interval", interval),
		)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				if err := job(ctx); err != nil {
					s.logger.Error("Job failed",
						zap.String("job", name),
						zap.Error(err),
					)
					continue
				}
				s.logger.Debug("Job completed",
					zap.String("job", name),
					zap.Duration("took", time.Since(start)),
				)
			}
		}
	}()
}

func (s *SchedulerService) runIngest(ctx context.Context) error {
	_, err := s.ingestion.IngestRecent(ctx, "", 0)
	return err
}

// runEvaluate feeds the most recent stored readings through the rule engine
func (s *SchedulerService) runEvaluate(ctx context.Context) error {
	to := time.Now().UTC()
	from := to.Add(-time.Duration(s.analytics.HoursBack) * time.Hour)

	readings, err := s.readingRepo.List(repository.ReadingFilter{
		From:  from,
		To:    to,
		Order: "asc",
		Limit: s.analytics.MaxReadingsBatch,
	})
	if err != nil {
		return err
	}
	if len(readings) == 0 {
		return nil
	}

	_, err = s.ruleEngine.Evaluate(ctx, readings, EvaluationFilter{})
	return err
}

func (s *SchedulerService) runAnomaly(ctx context.Context) error {
	_, _, err := s.anomaly.DetectWithAlerts(ctx, AnomalyRequest{})
	return err
}

func (s *SchedulerService) runBaseline(ctx context.Context) error {
	_, err := s.baseline.Recalculate(ctx, BaselineRequest{})
	return err
}
