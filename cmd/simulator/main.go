package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/uptc-energia/backend/internal/config"
	"github.com/uptc-energia/backend/internal/db/models"
	"github.com/uptc-energia/backend/internal/kafka"
	"github.com/uptc-energia/backend/internal/utils"
	"go.uber.org/zap"
)

// Synthetic reading generator for the readings topic. Useful for exercising
// the consumer, the rule engine and the anomaly sweep without the real
// Energy API.
func main() {
	configPath := flag.String("config", "", "Path to the configuration directory")
	sedes := flag.String("sedes", "central,sogamoso,duitama,chiquinquira", "Comma-separated sede ids")
	interval := flag.Int("interval", 5, "Seconds between batches")
	count := flag.Int("count", 0, "Number of batches to send, 0 for unlimited")
	spikePct := flag.Float64("spike-pct", 0.05, "Probability of an anomalous spike per reading")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	producer, err := kafka.NewProducer(&cfg.Kafka, logger)
	if err != nil {
		logger.Fatal("Failed to create Kafka producer", zap.Error(err))
	}
	defer producer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-signals
		logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	sedeIDs := strings.Split(*sedes, ",")
	ticker := time.NewTicker(time.Duration(*interval) * time.Second)
	defer ticker.Stop()

	logger.Info("Simulator started",
		zap.Strings("sedes", sedeIDs),
		zap.Int("interval_seconds", *interval),
	)

	sent := 0
	for {
		select {
		case <-ctx.Done():
			producer.Flush(5000)
			logger.Info("Simulator stopped", zap.Int("batches_sent", sent))
			return
		case <-ticker.C:
			batch := generateBatch(sedeIDs, *spikePct)

			message := &kafka.Message{
				Key:       "simulator",
				Value:     batch,
				Timestamp: time.Now().UTC(),
			}
			if err := producer.Produce(kafka.TopicReadings, message); err != nil {
				logger.Error("Failed to produce batch", zap.Error(err))
				continue
			}

			sent++
			logger.Info("Batch sent",
				zap.Int("readings", len(batch)),
				zap.Int("batch", sent),
			)

			if *count > 0 && sent >= *count {
				producer.Flush(5000)
				logger.Info("Simulator finished", zap.Int("batches_sent", sent))
				return
			}
		}
	}
}

// generateBatch produces one reading per sede following a daily sine
// pattern, with occasional spikes to trip the anomaly detector
func generateBatch(sedeIDs []string, spikePct float64) []models.Reading {
	now := time.Now().UTC()
	readings := make([]models.Reading, 0, len(sedeIDs))

	for _, sedeID := range sedeIDs {
		sedeID = strings.TrimSpace(sedeID)
		if sedeID == "" {
			continue
		}

		// Peak around midday, trough at night
		hourAngle := 2 * math.Pi * float64(now.Hour()) / 24
		base := 120 + 80*math.Sin(hourAngle-math.Pi/2)
		value := base + rand.Float64()*10

		if rand.Float64() < spikePct {
			value *= 3
		}

		potencia := value * 0.9
		agua := 10 + rand.Float64()*5
		ocupacion := math.Max(0, 200*math.Sin(hourAngle-math.Pi/2)) + rand.Float64()*20

		reading := models.Reading{
			Time:         now,
			SedeID:       sedeID,
			EnergiaTotal: &value,
			Potencia:     &potencia,
			Agua:         &agua,
			Ocupacion:    &ocupacion,
		}
		reading.ComputeTemporalDimensions()
		readings = append(readings, reading)
	}

	return readings
}
