// Package main provides the main entry point for the paystream application.
// It initializes and coordinates the API server and the settlement worker
// using the service registry pattern.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/paystream/paystream/internal/api"
	"github.com/paystream/paystream/internal/processor"
	"github.com/paystream/paystream/internal/queue"
	"github.com/paystream/paystream/internal/storage"
	"github.com/paystream/paystream/pkg/config"
	"github.com/paystream/paystream/pkg/health"
	"github.com/paystream/paystream/pkg/logging"
	"github.com/paystream/paystream/pkg/metrics"
	"github.com/paystream/paystream/pkg/service"
)

func main() {
	configFile := pflag.String("config", "", "Path to configuration file")
	logLevel := pflag.String("log-level", "", "Log level (debug, info, warn, error)")
	pflag.Parse()

	// A missing .env file is fine; environment variables still apply.
	_ = godotenv.Load()

	opts := config.DefaultLoadOptions()
	if *configFile != "" {
		opts.ConfigFile = *configFile
	}

	cfg, err := config.LoadWithOptions(opts)
	if err != nil {
		logging.New(logging.DefaultConfig()).Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	logger := logging.New(logging.Config{
		Level:       logging.LogLevel(cfg.Log.Level),
		Output:      os.Stdout,
		ServiceName: "paystream",
		Environment: cfg.Log.Environment,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Initializing services...")

	store, err := storage.NewRedisStore(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Error("Failed to initialize transaction store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	producer, err := queue.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if err != nil {
		logger.Error("Failed to initialize job producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	consumer, err := queue.NewKafkaConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.ConsumerGroup)
	if err != nil {
		logger.Error("Failed to initialize job consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	workerMetrics := metrics.New(metrics.Config{
		Namespace:   cfg.Metrics.Namespace,
		Subsystem:   "worker",
		ServiceName: "settlement-worker",
	})

	worker := processor.NewSettlementWorker(
		store,
		consumer,
		cfg.Worker.SettlementDelay,
		cfg.Worker.MaxInFlight,
		logger.WithField("component", "settlement-worker"),
		workerMetrics,
	)

	registry := service.NewRegistry(logger)

	workerService := processor.NewSettlementWorkerService(worker)
	if err := registry.Register(workerService); err != nil {
		logger.Error("Failed to register settlement worker service", "error", err)
		os.Exit(1)
	}

	apiService := api.NewAPIService(cfg, store, producer).
		WithHealthCheck("worker", health.DependencyChecker("worker", func(ctx context.Context) error {
			return workerService.Health()
		})).
		DependsOn(workerService.Name())
	if err := registry.Register(apiService); err != nil {
		logger.Error("Failed to register API service", "error", err)
		os.Exit(1)
	}

	logger.Info("Starting all services...")
	if err := registry.StartAll(ctx); err != nil {
		logger.Error("Failed to start services", "error", err)
		os.Exit(1)
	}
	logger.Info("All services started successfully")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	logger.Info("Shutting down gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer shutdownCancel()

	if err := registry.StopAll(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", "error", err)
	}

	logger.Info("Shutdown complete")
}
