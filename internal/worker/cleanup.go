package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lobby-service/internal/config"
	"github.com/lobby-service/internal/service"
)

// CleanupWorker periodically removes lobbies whose host has stopped
// heartbeating. A failed pass is logged and retried on the next tick; only
// shutdown stops the loop.
type CleanupWorker struct {
	service *service.LobbyService
	config  *config.LobbyConfig
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewCleanupWorker creates a new cleanup worker
func NewCleanupWorker(svc *service.LobbyService, cfg *config.LobbyConfig, logger *slog.Logger) *CleanupWorker {
	return &CleanupWorker{
		service: svc,
		config:  cfg,
		logger:  logger,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start begins the background cleanup process
func (w *CleanupWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("lobby cleanup worker started",
		"interval", w.config.CleanupInterval(),
		"heartbeat_timeout", w.config.HeartbeatTimeout(),
	)

	go w.run(ctx)
	return nil
}

// Stop stops the background cleanup process and waits for any in-flight pass
// to finish
func (w *CleanupWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("lobby cleanup worker stopped")
	return nil
}

// run is the main worker loop
func (w *CleanupWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.CleanupInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.runPass(ctx)
		}
	}
}

// runPass executes a single cleanup pass, containing any failure
func (w *CleanupWorker) runPass(ctx context.Context) {
	start := time.Now()

	removed, err := w.service.CleanupExpiredLobbies(ctx, w.config.HeartbeatTimeout())
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		w.logger.Error("lobby cleanup pass failed", "error", err, "removed", removed)
		return
	}

	if removed > 0 {
		w.logger.Info("lobby cleanup pass completed",
			"removed", removed,
			"duration", time.Since(start),
		)
	}
}

// IsRunning returns whether the worker is currently running
func (w *CleanupWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// RunOnce runs a single cleanup pass (useful for manual triggers)
func (w *CleanupWorker) RunOnce(ctx context.Context) {
	w.runPass(ctx)
}
