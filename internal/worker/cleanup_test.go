package worker

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lobby-service/internal/config"
	"github.com/lobby-service/internal/domain"
	"github.com/lobby-service/internal/service"
	"github.com/lobby-service/internal/store"
)

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type shiftClock struct {
	base   time.Time
	offset time.Duration
}

func (c *shiftClock) Now() time.Time { return c.base.Add(c.offset) }

func newTestWorker(t *testing.T, cfg *config.LobbyConfig) (*CleanupWorker, *service.LobbyService, *shiftClock) {
	t.Helper()
	clock := &shiftClock{base: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := service.NewLobbyService(store.NewMemoryStore(testLogger()), clock, testLogger())
	return NewCleanupWorker(svc, cfg, testLogger()), svc, clock
}

func createLobby(t *testing.T, svc *service.LobbyService, playerID string) *domain.Lobby {
	t.Helper()
	lobby, err := svc.CreateLobby(context.Background(), domain.CreateLobbyRequest{
		PlayerID:    playerID,
		DisplayName: "Player " + playerID,
		Visibility:  domain.VisibilityPublic,
		GameSettings: &domain.GameSettings{
			TimeControl: "5+3",
			Variant:     "standard",
		},
		ConnectionInfo: &domain.ConnectionInfo{
			Mode:    "direct",
			Address: "203.0.113.1:7777",
		},
		MaxPlayers: 2,
	})
	require.NoError(t, err)
	return lobby
}

func TestRunOnceRemovesExpiredLobbies(t *testing.T) {
	cfg := &config.LobbyConfig{HeartbeatTimeoutSeconds: 30, CleanupIntervalSeconds: 10}
	w, svc, clock := newTestWorker(t, cfg)
	ctx := context.Background()

	stale := createLobby(t, svc, "p1")
	clock.offset = 10 * time.Second
	fresh := createLobby(t, svc, "p2")

	clock.offset = 35 * time.Second
	w.RunOnce(ctx)

	_, err := svc.GetLobby(ctx, stale.LobbyID)
	assert.Equal(t, domain.CodeLobbyNotFound, domain.CodeOf(err))

	_, err = svc.GetLobby(ctx, fresh.LobbyID)
	assert.NoError(t, err)
}

func TestRunOnceContainsFailures(t *testing.T) {
	// A non-positive timeout makes every pass fail; the worker must swallow it
	cfg := &config.LobbyConfig{HeartbeatTimeoutSeconds: 0, CleanupIntervalSeconds: 10}
	w, _, _ := newTestWorker(t, cfg)

	assert.NotPanics(t, func() { w.RunOnce(context.Background()) })
}

func TestStartStopLifecycle(t *testing.T) {
	cfg := &config.LobbyConfig{HeartbeatTimeoutSeconds: 30, CleanupIntervalSeconds: 1}
	w, _, _ := newTestWorker(t, cfg)

	assert.False(t, w.IsRunning())

	require.NoError(t, w.Start(context.Background()))
	assert.True(t, w.IsRunning())

	// Starting twice is a no-op
	require.NoError(t, w.Start(context.Background()))

	require.NoError(t, w.Stop())
	assert.False(t, w.IsRunning())

	// Stopping twice is a no-op
	require.NoError(t, w.Stop())
}
