package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/streampainel/campaign-backend/internal/config"
	"github.com/streampainel/campaign-backend/internal/db"
	"github.com/streampainel/campaign-backend/internal/gateway"
	"github.com/streampainel/campaign-backend/internal/queue"
	"github.com/streampainel/campaign-backend/internal/repository"
	"github.com/streampainel/campaign-backend/internal/service"
	"github.com/streampainel/campaign-backend/internal/worker"
)

func main() {
	// Initialize logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	logger.Info("starting campaign worker")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Connect to database
	database, err := db.New(cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer database.Close()

	logger.Info("connected to database")

	// Connect to Redis queue
	queueClient, err := queue.NewRedisClient(cfg.Queue, logger)
	if err != nil {
		logger.Error("failed to connect to Redis", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer queueClient.Close()

	logger.Info("connected to Redis queue")

	// Evolution API gateway client
	gatewayClient := gateway.NewEvolutionClient(cfg.Gateway, logger)

	// Initialize repositories
	campaignRepo := repository.NewCampaignRepository(database.DB)
	recordRepo := repository.NewSendRecordRepository(database.DB)
	clientRepo := repository.NewClientRepository(database.DB)
	templateRepo := repository.NewTemplateRepository(database.DB)

	// Initialize services
	templateSvc := service.NewTemplateService()
	campaignSvc := service.NewCampaignService(
		campaignRepo,
		clientRepo,
		recordRepo,
		templateRepo,
		templateSvc,
		queueClient,
		gatewayClient,
		logger,
	)

	// Initialize campaign processor and runner
	processor := worker.NewProcessor(
		campaignRepo,
		recordRepo,
		clientRepo,
		templateRepo,
		templateSvc,
		gatewayClient,
		cfg.Worker.MaxAttempts,
		time.Duration(cfg.Worker.TransientBackoffSeconds)*time.Second,
		cfg.Worker.DefaultCountryCode,
		logger,
	)
	runner := worker.NewRunner(processor, logger)

	// Scheduler starts due campaigns and requeues in-flight ones at boot
	scheduler := worker.NewScheduler(
		campaignRepo,
		campaignSvc,
		queueClient,
		time.Duration(cfg.Worker.SchedulerIntervalSeconds)*time.Second,
		logger,
	)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go scheduler.Run(ctx)

	// Start consuming campaign start jobs
	consumerErrors := make(chan error, 1)
	go func() {
		logger.Info("starting campaign consumer",
			slog.Int("concurrency", cfg.Worker.Concurrency),
			slog.Int("max_attempts", cfg.Worker.MaxAttempts),
		)
		consumerErrors <- queueClient.Consume(ctx, runner.Handle, cfg.Worker.Concurrency)
	}()

	// Wait for interrupt signal or consumer error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-consumerErrors:
		if err != nil && err != context.Canceled {
			logger.Error("consumer error", slog.String("error", err.Error()))
			os.Exit(1)
		}

	case sig := <-quit:
		logger.Info("shutting down worker", slog.String("signal", sig.String()))

		// Cancel context to stop consumer and campaign loops
		cancel()

		// Give in-flight dispatches time to finalize
		time.Sleep(5 * time.Second)

		logger.Info("worker stopped gracefully")
	}
}
