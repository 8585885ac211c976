package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lobby-service/internal/domain"
	"github.com/lobby-service/internal/events"
	"github.com/lobby-service/internal/websocket"
)

// LobbyStore is the storage contract consumed by the service. The in-memory
// implementation lives in internal/store.
type LobbyStore interface {
	Create(ctx context.Context, lobby *domain.Lobby) (*domain.Lobby, error)
	GetByID(ctx context.Context, lobbyID uuid.UUID) (*domain.Lobby, error)
	Update(ctx context.Context, lobby *domain.Lobby) error
	Delete(ctx context.Context, lobbyID uuid.UUID) error
	Query(ctx context.Context, status *domain.LobbyStatus, visibility *domain.LobbyVisibility) ([]*domain.Lobby, error)
	GetAll(ctx context.Context) ([]*domain.Lobby, error)
}

// LobbyService provides the business rules for lobby lifecycle operations.
// Every mutating operation holds a per-lobby lock for its whole
// read-decide-write sequence, including the cleanup pass.
type LobbyService struct {
	store  LobbyStore
	clock  domain.Clock
	logger *slog.Logger
	locks  *keyLocks

	hub      *websocket.Hub
	producer *events.Producer
}

// NewLobbyService creates a new lobby service
func NewLobbyService(store LobbyStore, clock domain.Clock, logger *slog.Logger) *LobbyService {
	return &LobbyService{
		store:  store,
		clock:  clock,
		logger: logger,
		locks:  newKeyLocks(),
	}
}

// SetHub attaches the WebSocket hub used to push lobby updates to clients
func (s *LobbyService) SetHub(hub *websocket.Hub) {
	s.hub = hub
}

// SetEvents attaches the Kafka producer for lobby lifecycle events
func (s *LobbyService) SetEvents(producer *events.Producer) {
	s.producer = producer
}

// CreateLobby validates the request, allocates a fresh lobby id, seeds the
// host as the only player and persists the new record.
func (s *LobbyService) CreateLobby(ctx context.Context, req domain.CreateLobbyRequest) (*domain.Lobby, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if strings.TrimSpace(req.PlayerID) == "" {
		return nil, domain.NewError(domain.CodeInvalidRequest, "player_id is required")
	}
	if strings.TrimSpace(req.DisplayName) == "" {
		return nil, domain.NewError(domain.CodeInvalidRequest, "display_name is required")
	}
	if req.GameSettings == nil {
		return nil, domain.NewError(domain.CodeInvalidRequest, "game_settings is required")
	}
	if req.ConnectionInfo == nil {
		return nil, domain.NewError(domain.CodeInvalidRequest, "connection_info is required")
	}
	if req.MaxPlayers < 1 {
		return nil, domain.NewError(domain.CodeInvalidRequest, "max_players must be at least 1")
	}

	visibility := req.Visibility
	if visibility == "" {
		visibility = domain.VisibilityPublic
	}
	if visibility != domain.VisibilityPublic && visibility != domain.VisibilityPrivate {
		return nil, domain.Errorf(domain.CodeInvalidRequest, "unknown lobby visibility %q", visibility)
	}

	now := s.clock.Now()
	lobby := &domain.Lobby{
		LobbyID:         uuid.New(),
		HostPlayerID:    req.PlayerID,
		HostDisplayName: req.DisplayName,
		Status:          domain.StatusWaitingForOpponent,
		Visibility:      visibility,
		GameSettings:    *req.GameSettings,
		ConnectionInfo:  *req.ConnectionInfo,
		Players: []domain.PlayerSummary{
			{PlayerID: req.PlayerID, DisplayName: req.DisplayName},
		},
		MaxPlayers:         req.MaxPlayers,
		CreatedAtUtc:       now,
		LastHeartbeatAtUtc: now,
	}

	created, err := s.store.Create(ctx, lobby)
	if err != nil {
		return nil, s.storeFault(err, "creating lobby")
	}

	s.logger.Info("lobby created",
		"lobby_id", created.LobbyID,
		"host_player_id", created.HostPlayerID,
		"visibility", created.Visibility,
		"max_players", created.MaxPlayers,
	)
	s.publish(events.TypeLobbyCreated, created, req.PlayerID)

	return created, nil
}

// Heartbeat records a liveness signal from the lobby host
func (s *LobbyService) Heartbeat(ctx context.Context, lobbyID uuid.UUID, playerID string) error {
	release, err := s.locks.acquire(ctx, lobbyID)
	if err != nil {
		return err
	}
	defer release()

	lobby, err := s.getExisting(ctx, lobbyID)
	if err != nil {
		return err
	}
	if lobby.HostPlayerID != playerID {
		return domain.NewError(domain.CodeNotHost, "only the host may send heartbeat signals for a lobby")
	}

	lobby.LastHeartbeatAtUtc = s.clock.Now()
	if err := s.store.Update(ctx, lobby); err != nil {
		return s.storeFault(err, "persisting heartbeat")
	}
	return nil
}

// ListLobbies returns lobbies matching the optional status and visibility
// filters, ordered by creation time ascending. A public browse list typically
// filters on waiting_for_opponent + public, but that is the caller's choice.
func (s *LobbyService) ListLobbies(ctx context.Context, status *domain.LobbyStatus, visibility *domain.LobbyVisibility) ([]*domain.Lobby, error) {
	lobbies, err := s.store.Query(ctx, status, visibility)
	if err != nil {
		return nil, s.storeFault(err, "querying lobbies")
	}
	return lobbies, nil
}

// GetLobby returns a single lobby by id
func (s *LobbyService) GetLobby(ctx context.Context, lobbyID uuid.UUID) (*domain.Lobby, error) {
	return s.getExisting(ctx, lobbyID)
}

// JoinLobby adds a player to a waiting lobby. While a seat remains open,
// joining a lobby the player is already in is idempotent. Reaching capacity
// advances the lobby to in_progress.
func (s *LobbyService) JoinLobby(ctx context.Context, lobbyID uuid.UUID, playerID, displayName string) (*domain.Lobby, error) {
	if strings.TrimSpace(playerID) == "" {
		return nil, domain.NewError(domain.CodeInvalidRequest, "player_id is required")
	}
	if strings.TrimSpace(displayName) == "" {
		return nil, domain.NewError(domain.CodeInvalidRequest, "display_name is required")
	}

	release, err := s.locks.acquire(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	defer release()

	lobby, err := s.getExisting(ctx, lobbyID)
	if err != nil {
		return nil, err
	}

	if lobby.Status != domain.StatusWaitingForOpponent {
		return nil, domain.NewError(domain.CodeLobbyNotJoinable, "lobby is not in a joinable state")
	}
	// Capacity is checked before membership: a full lobby rejects everyone,
	// members included.
	if len(lobby.Players) >= lobby.MaxPlayers {
		return nil, domain.NewError(domain.CodeLobbyFull, "lobby is full")
	}
	if lobby.HasPlayer(playerID) {
		return lobby, nil
	}

	lobby.Players = append(lobby.Players, domain.PlayerSummary{
		PlayerID:    playerID,
		DisplayName: displayName,
	})
	if len(lobby.Players) >= lobby.MaxPlayers {
		lobby.Status = domain.StatusInProgress
	}

	if err := s.store.Update(ctx, lobby); err != nil {
		return nil, s.storeFault(err, "persisting join")
	}

	s.logger.Info("player joined lobby",
		"lobby_id", lobby.LobbyID,
		"player_id", playerID,
		"players", len(lobby.Players),
		"status", lobby.Status,
	)
	s.broadcastUpdate(lobby)
	s.publish(events.TypePlayerJoined, lobby, playerID)

	return lobby, nil
}

// LeaveLobby removes a player from a lobby. Host departure deletes the whole
// lobby; a leave by a player not in the lobby is a silent no-op.
func (s *LobbyService) LeaveLobby(ctx context.Context, lobbyID uuid.UUID, playerID string) error {
	release, err := s.locks.acquire(ctx, lobbyID)
	if err != nil {
		return err
	}
	defer release()

	lobby, err := s.getExisting(ctx, lobbyID)
	if err != nil {
		return err
	}

	if lobby.HostPlayerID == playerID {
		// Host leaving ends the lobby unconditionally.
		if err := s.store.Delete(ctx, lobbyID); err != nil {
			return s.storeFault(err, "deleting lobby on host leave")
		}
		s.logger.Info("lobby closed by host leave", "lobby_id", lobbyID, "host_player_id", playerID)
		s.broadcastClosed(lobbyID, "host_left")
		s.publish(events.TypeLobbyClosed, lobby, playerID)
		return nil
	}

	removed := false
	players := lobby.Players[:0]
	for _, p := range lobby.Players {
		if p.PlayerID == playerID {
			removed = true
			continue
		}
		players = append(players, p)
	}
	if !removed {
		return nil
	}
	lobby.Players = players

	if err := s.store.Update(ctx, lobby); err != nil {
		return s.storeFault(err, "persisting leave")
	}

	s.logger.Info("player left lobby", "lobby_id", lobby.LobbyID, "player_id", playerID)
	s.broadcastUpdate(lobby)
	s.publish(events.TypePlayerLeft, lobby, playerID)
	return nil
}

// UpdateLobbyStatus overwrites the lobby status on behalf of the host. No
// transition legality is enforced: the host reports game state as it sees it,
// so regressions like completed back to waiting_for_opponent are accepted.
func (s *LobbyService) UpdateLobbyStatus(ctx context.Context, lobbyID uuid.UUID, playerID string, newStatus domain.LobbyStatus) (*domain.Lobby, error) {
	switch newStatus {
	case domain.StatusWaitingForOpponent, domain.StatusInProgress, domain.StatusCompleted:
	default:
		return nil, domain.Errorf(domain.CodeInvalidRequest, "unknown lobby status %q", newStatus)
	}

	release, err := s.locks.acquire(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	defer release()

	lobby, err := s.getExisting(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	if lobby.HostPlayerID != playerID {
		return nil, domain.NewError(domain.CodeNotHost, "only the host may update lobby status")
	}

	lobby.Status = newStatus
	if err := s.store.Update(ctx, lobby); err != nil {
		return nil, s.storeFault(err, "persisting status update")
	}

	s.logger.Info("lobby status updated", "lobby_id", lobby.LobbyID, "status", newStatus)
	s.broadcastUpdate(lobby)
	s.publish(events.TypeStatusChanged, lobby, playerID)
	return lobby, nil
}

// CloseLobby deletes a lobby on behalf of its host
func (s *LobbyService) CloseLobby(ctx context.Context, lobbyID uuid.UUID, playerID string) error {
	release, err := s.locks.acquire(ctx, lobbyID)
	if err != nil {
		return err
	}
	defer release()

	lobby, err := s.getExisting(ctx, lobbyID)
	if err != nil {
		return err
	}
	if lobby.HostPlayerID != playerID {
		return domain.NewError(domain.CodeNotHost, "only the host may close a lobby")
	}

	if err := s.store.Delete(ctx, lobbyID); err != nil {
		return s.storeFault(err, "deleting lobby")
	}

	s.logger.Info("lobby closed", "lobby_id", lobbyID)
	s.broadcastClosed(lobbyID, "closed_by_host")
	s.publish(events.TypeLobbyClosed, lobby, playerID)
	return nil
}

// CleanupExpiredLobbies removes every lobby whose last heartbeat is strictly
// older than heartbeatTimeout and returns the count removed. A lobby exactly
// at the timeout boundary is not expired.
func (s *LobbyService) CleanupExpiredLobbies(ctx context.Context, heartbeatTimeout time.Duration) (int, error) {
	if heartbeatTimeout <= 0 {
		return 0, domain.NewError(domain.CodeInvalidRequest, "heartbeat timeout must be greater than zero")
	}

	lobbies, err := s.store.GetAll(ctx)
	if err != nil {
		return 0, s.storeFault(err, "listing lobbies for cleanup")
	}

	removed := 0
	for _, candidate := range lobbies {
		if s.clock.Now().Sub(candidate.LastHeartbeatAtUtc) <= heartbeatTimeout {
			continue
		}

		expired, err := s.reapOne(ctx, candidate.LobbyID, heartbeatTimeout)
		if err != nil {
			return removed, err
		}
		if expired != nil {
			removed++
			s.broadcastClosed(expired.LobbyID, "expired")
			s.publish(events.TypeLobbyExpired, expired, expired.HostPlayerID)
		}
	}

	return removed, nil
}

// reapOne deletes a lobby if it is still expired once its lock is held. The
// re-check under the lock means a heartbeat racing the sweep wins.
func (s *LobbyService) reapOne(ctx context.Context, lobbyID uuid.UUID, heartbeatTimeout time.Duration) (*domain.Lobby, error) {
	release, err := s.locks.acquire(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	defer release()

	lobby, err := s.store.GetByID(ctx, lobbyID)
	if err != nil {
		return nil, s.storeFault(err, "re-reading lobby for cleanup")
	}
	if lobby == nil {
		return nil, nil
	}
	if s.clock.Now().Sub(lobby.LastHeartbeatAtUtc) <= heartbeatTimeout {
		return nil, nil
	}

	if err := s.store.Delete(ctx, lobbyID); err != nil {
		return nil, s.storeFault(err, "deleting expired lobby")
	}

	s.logger.Info("expired lobby removed",
		"lobby_id", lobby.LobbyID,
		"host_player_id", lobby.HostPlayerID,
		"last_heartbeat_at", lobby.LastHeartbeatAtUtc,
	)
	return lobby, nil
}

// getExisting fetches a lobby and translates absence to lobby_not_found
func (s *LobbyService) getExisting(ctx context.Context, lobbyID uuid.UUID) (*domain.Lobby, error) {
	lobby, err := s.store.GetByID(ctx, lobbyID)
	if err != nil {
		return nil, s.storeFault(err, "reading lobby")
	}
	if lobby == nil {
		return nil, domain.NewError(domain.CodeLobbyNotFound, "lobby not found")
	}
	return lobby, nil
}

// storeFault translates a storage fault, keeping context cancellation
// distinct from domain errors
func (s *LobbyService) storeFault(err error, message string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	s.logger.Error("lobby store fault", "error", err, "op", message)
	return domain.WrapInternal(err, message)
}

func (s *LobbyService) broadcastUpdate(lobby *domain.Lobby) {
	if s.hub != nil {
		s.hub.BroadcastLobbyUpdate(lobby)
	}
}

func (s *LobbyService) broadcastClosed(lobbyID uuid.UUID, reason string) {
	if s.hub != nil {
		s.hub.BroadcastLobbyClosed(lobbyID, reason)
	}
}

func (s *LobbyService) publish(eventType string, lobby *domain.Lobby, playerID string) {
	if s.producer == nil {
		return
	}
	s.producer.Publish(events.LobbyEvent{
		Type:         eventType,
		LobbyID:      lobby.LobbyID,
		HostPlayerID: lobby.HostPlayerID,
		PlayerID:     playerID,
		Status:       lobby.Status,
		PlayerCount:  len(lobby.Players),
		Timestamp:    s.clock.Now(),
	})
}
