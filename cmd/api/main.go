package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/streampainel/campaign-backend/internal/config"
	"github.com/streampainel/campaign-backend/internal/db"
	"github.com/streampainel/campaign-backend/internal/gateway"
	"github.com/streampainel/campaign-backend/internal/handler"
	"github.com/streampainel/campaign-backend/internal/queue"
	"github.com/streampainel/campaign-backend/internal/repository"
	"github.com/streampainel/campaign-backend/internal/service"
)

func main() {
	// Initialize logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	logger.Info("starting campaign API server")

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
	clientRepo := repository.NewClientRepository(database.DB)
	campaignRepo := repository.NewCampaignRepository(database.DB)
	recordRepo := repository.NewSendRecordRepository(database.DB)
	templateRepo := repository.NewTemplateRepository(database.DB)

	// Initialize services
	templateSvc := service.NewTemplateService()
	clientSvc := service.NewClientService(clientRepo, logger)
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

	// Initialize handlers
	campaignHandler := handler.NewCampaignHandler(campaignSvc, logger)
	clientHandler := handler.NewClientHandler(clientSvc, logger)
	templateHandler := handler.NewTemplateHandler(templateRepo, templateSvc, logger)
	instanceHandler := handler.NewInstanceHandler(gatewayClient, logger)
	healthHandler := handler.NewHealthHandler(database, queueClient, logger)

	// Setup router
	r := chi.NewRouter()

	// Apply middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(handler.RecoveryMiddleware(logger))
	r.Use(handler.LoggingMiddleware(logger))
	r.Use(handler.CORSMiddleware)

	// Register routes
	r.Get("/health", healthHandler.Health)

	r.Route("/campaigns", campaignHandler.Routes)
	r.Route("/clients", clientHandler.Routes)
	r.Route("/templates", templateHandler.Routes)
	r.Route("/instances", instanceHandler.Routes)

	// Create server
	addr := fmt.Sprintf(":%d", cfg.API.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("API server listening", slog.String("addr", addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Wait for interrupt signal or server error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)

	case sig := <-quit:
		logger.Info("shutting down server", slog.String("signal", sig.String()))

		// Graceful shutdown with timeout
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("server shutdown failed", slog.String("error", err.Error()))
			os.Exit(1)
		}

		logger.Info("server stopped gracefully")
	}
}
