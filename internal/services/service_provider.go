package services

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/uptc-energia/backend/internal/config"
	"github.com/uptc-energia/backend/internal/db"
	"github.com/uptc-energia/backend/internal/db/repository"
	"github.com/uptc-energia/backend/internal/energyapi"
	"github.com/uptc-energia/backend/internal/kafka"
	"github.com/uptc-energia/backend/internal/utils"
	"github.com/uptc-energia/backend/internal/ws"
	"go.uber.org/zap"
)

// ServiceProvider wires and owns all services for the application
type ServiceProvider struct {
	logger   *utils.Logger
	config   *config.Config
	database *db.Database
	repos    *repository.RepositoryFactory

	energyClient *energyapi.Client
	redisClient  *redis.Client
	producer     *kafka.Producer
	consumer     *kafka.Consumer
	hub          *ws.Hub

	kafkaHandler        *KafkaHandler
	notificationService *NotificationService
	userService         *UserService
	ruleService         *RuleService
	alertService        *AlertService
	ruleEngineService   *RuleEngineService
	anomalyService      *AnomalyService
	baselineService     *BaselineService
	forecastService     *ForecastService
	ingestionService    *IngestionService
	schedulerService    *SchedulerService
}

// NewServiceProvider creates a new service provider
func NewServiceProvider(
	logger *utils.Logger,
	config *config.Config,
	database *db.Database,
) *ServiceProvider {
	return &ServiceProvider{
		logger:   logger.Named("services"),
		config:   config,
		database: database,
	}
}

// Initialize constructs all services and starts the Kafka consumer
func (sp *ServiceProvider) Initialize(ctx context.Context) error {
	sp.energyClient = energyapi.NewClient(&sp.config.EnergyAPI, sp.logger)
	sp.hub = ws.NewHub(sp.logger)

	if sp.config.Redis.Addr != "" {
		sp.redisClient = redis.NewClient(&redis.Options{
			Addr:     sp.config.Redis.Addr,
			Password: sp.config.Redis.Password,
			DB:       sp.config.Redis.DB,
		})
		if err := sp.redisClient.Ping(ctx).Err(); err != nil {
			sp.logger.Warn("Redis unreachable, forecast cache disabled", zap.Error(err))
			sp.redisClient = nil
		}
	}

	if sp.config.Kafka.Brokers != "" {
		producer, err := kafka.NewProducer(&sp.config.Kafka, sp.logger)
		if err != nil {
			return fmt.Errorf("failed to create Kafka producer: %w", err)
		}
		sp.producer = producer

		consumer, err := kafka.NewConsumer(&sp.config.Kafka, sp.logger, sp.producer)
		if err != nil {
			return fmt.Errorf("failed to create Kafka consumer: %w", err)
		}
		sp.consumer = consumer
	} else {
		sp.logger.Info("Kafka disabled, no brokers configured")
	}

	repoFactory := repository.NewRepositoryFactory(sp.database.DB)
	sp.repos = repoFactory

	sp.notificationService = NewNotificationService(sp.producer, sp.hub, sp.logger)
	sp.userService = NewUserService(repoFactory.User(), &sp.config.JWT, sp.logger)

	ruleService, err := NewRuleService(repoFactory.Rule(), sp.logger)
	if err != nil {
		return err
	}
	sp.ruleService = ruleService

	sp.alertService = NewAlertService(repoFactory.Alert(), sp.notificationService, sp.logger)
	sp.ruleEngineService = NewRuleEngineService(
		repoFactory.Rule(), repoFactory.Alert(), sp.notificationService, sp.logger)
	sp.anomalyService = NewAnomalyService(
		sp.energyClient, repoFactory.Alert(), sp.notificationService,
		&sp.config.Analytics, sp.logger)
	sp.baselineService = NewBaselineService(
		sp.energyClient, repoFactory.Baseline(), &sp.config.Analytics, sp.logger)
	sp.forecastService = NewForecastService(
		sp.energyClient, sp.redisClient, &sp.config.Redis, &sp.config.Analytics, sp.logger)
	sp.ingestionService = NewIngestionService(
		sp.energyClient, repoFactory.Reading(), &sp.config.Analytics, sp.logger)
	sp.schedulerService = NewSchedulerService(
		sp.ingestionService, sp.ruleEngineService, sp.anomalyService,
		sp.baselineService, repoFactory.Reading(),
		&sp.config.Scheduler, &sp.config.Analytics, sp.logger)

	if sp.consumer != nil {
		sp.kafkaHandler = NewKafkaHandler(repoFactory.Reading(), sp.logger)
		sp.kafkaHandler.Register(sp.consumer)

		if err := sp.consumer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start Kafka consumer: %w", err)
		}
		sp.logger.Info("Kafka consumer started")
	}

	sp.schedulerService.Start(ctx)

	sp.logger.Info("All services initialized")
	return nil
}

// Shutdown performs a graceful shutdown of all services
func (sp *ServiceProvider) Shutdown() error {
	sp.logger.Info("Shutting down services")

	if sp.schedulerService != nil {
		sp.schedulerService.Stop()
	}

	if sp.consumer != nil {
		sp.consumer.Stop()
	}

	if sp.producer != nil {
		sp.producer.Flush(5000)
		sp.producer.Close()
	}

	if sp.redisClient != nil {
		if err := sp.redisClient.Close(); err != nil {
			sp.logger.Error("Failed to close Redis client", zap.Error(err))
		}
	}

	sp.logger.Info("Services shut down")
	return nil
}

// Hub returns the websocket hub
func (sp *ServiceProvider) Hub() *ws.Hub { return sp.hub }

// User returns the user service
func (sp *ServiceProvider) User() *UserService { return sp.userService }

// Rule returns the rule service
func (sp *ServiceProvider) Rule() *RuleService { return sp.ruleService }

// Alert returns the alert service
func (sp *ServiceProvider) Alert() *AlertService { return sp.alertService }

// RuleEngine returns the rule engine service
func (sp *ServiceProvider) RuleEngine() *RuleEngineService { return sp.ruleEngineService }

// Anomaly returns the anomaly detection service
func (sp *ServiceProvider) Anomaly() *AnomalyService { return sp.anomalyService }

// Baseline returns the baseline service
func (sp *ServiceProvider) Baseline() *BaselineService { return sp.baselineService }

// Forecast returns the forecast service
func (sp *ServiceProvider) Forecast() *ForecastService { return sp.forecastService }

// Ingestion returns the ingestion service
func (sp *ServiceProvider) Ingestion() *IngestionService { return sp.ingestionService }

// Readings returns the reading repository for query endpoints
func (sp *ServiceProvider) Readings() repository.ReadingRepository {
	return sp.repos.Reading()
}
