package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lobby-service/internal/config"
	"github.com/lobby-service/internal/domain"
	"github.com/lobby-service/internal/events"
	"github.com/lobby-service/internal/handler"
	"github.com/lobby-service/internal/service"
	"github.com/lobby-service/internal/store"
	"github.com/lobby-service/internal/websocket"
	"github.com/lobby-service/internal/worker"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration. A missing file falls back to defaults; an invalid
	// file is a startup failure, not something to limp past.
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("config file not found, using defaults", "path", *configPath)
			cfg = config.DefaultConfig()
		} else {
			logger.Error("invalid configuration", "error", err)
			os.Exit(1)
		}
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize the in-memory lobby store
	lobbyStore := store.NewMemoryStore(logger)

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(logger)
	go wsHub.Run()
	logger.Info("websocket hub initialized")

	// Initialize the lobby service
	lobbyService := service.NewLobbyService(lobbyStore, domain.SystemClock{}, logger)
	lobbyService.SetHub(wsHub)

	// Initialize Kafka producer for lobby lifecycle events
	var producer *events.Producer
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka producer",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
		producer, err = events.NewProducer(&cfg.Kafka, logger)
		if err != nil {
			logger.Warn("failed to create Kafka producer, continuing without lobby events", "error", err)
		} else {
			lobbyService.SetEvents(producer)
			logger.Info("Kafka producer started")
		}
	}

	// Start the cleanup worker
	cleanupWorker := worker.NewCleanupWorker(lobbyService, &cfg.Lobby, logger)
	if err := cleanupWorker.Start(ctx); err != nil {
		logger.Error("failed to start cleanup worker", "error", err)
		os.Exit(1)
	}

	// Initialize HTTP handler with WebSocket hub
	httpHandler := handler.NewHandler(lobbyService, wsHub, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop the cleanup worker first so no sweep is abandoned mid-write
	if err := cleanupWorker.Stop(); err != nil {
		logger.Error("failed to stop cleanup worker", "error", err)
	}

	// Stop WebSocket hub
	wsHub.Stop()

	// Flush and close the Kafka producer
	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Error("failed to close Kafka producer", "error", err)
		}
	}

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	logger.Info("server stopped")
}
