package store

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/lobby-service/internal/domain"
)

// Storage errors
var (
	ErrDuplicateID = errors.New("lobby id already exists")
	ErrNotFound    = errors.New("lobby not found in store")
)

// MemoryStore is a concurrency-safe in-process keyed store of lobby records.
// It holds no business logic: every record is replaced wholesale, and records
// are deep-copied on the way in and out so callers never alias stored state.
type MemoryStore struct {
	mu      sync.RWMutex
	lobbies map[uuid.UUID]*domain.Lobby
	logger  *slog.Logger
}

// NewMemoryStore creates an empty lobby store
func NewMemoryStore(logger *slog.Logger) *MemoryStore {
	return &MemoryStore{
		lobbies: make(map[uuid.UUID]*domain.Lobby),
		logger:  logger,
	}
}

// Create inserts a new record under lobby.LobbyID
func (s *MemoryStore) Create(ctx context.Context, lobby *domain.Lobby) (*domain.Lobby, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.lobbies[lobby.LobbyID]; exists {
		return nil, ErrDuplicateID
	}

	stored := lobby.Clone()
	s.lobbies[lobby.LobbyID] = stored
	s.logger.Debug("lobby record created", "lobby_id", lobby.LobbyID, "total", len(s.lobbies))
	return stored.Clone(), nil
}

// GetByID returns the record for lobbyID, or nil if absent. Absence is a
// normal outcome, not an error.
func (s *MemoryStore) GetByID(ctx context.Context, lobbyID uuid.UUID) (*domain.Lobby, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	lobby, ok := s.lobbies[lobbyID]
	if !ok {
		return nil, nil
	}
	return lobby.Clone(), nil
}

// Update replaces the record at lobby.LobbyID in full. The caller must have
// obtained the record first; updating an absent key is ErrNotFound.
func (s *MemoryStore) Update(ctx context.Context, lobby *domain.Lobby) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.lobbies[lobby.LobbyID]; !exists {
		return ErrNotFound
	}

	s.lobbies[lobby.LobbyID] = lobby.Clone()
	return nil
}

// Delete removes the record for lobbyID. Removing an absent key is a no-op.
func (s *MemoryStore) Delete(ctx context.Context, lobbyID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.lobbies, lobbyID)
	s.logger.Debug("lobby record deleted", "lobby_id", lobbyID, "total", len(s.lobbies))
	return nil
}

// Query returns all records matching the supplied filters, ordered by
// creation time ascending. A nil filter matches any value.
func (s *MemoryStore) Query(ctx context.Context, status *domain.LobbyStatus, visibility *domain.LobbyVisibility) ([]*domain.Lobby, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	result := make([]*domain.Lobby, 0, len(s.lobbies))
	for _, lobby := range s.lobbies {
		if status != nil && lobby.Status != *status {
			continue
		}
		if visibility != nil && lobby.Visibility != *visibility {
			continue
		}
		result = append(result, lobby.Clone())
	}
	s.mu.RUnlock()

	sortByCreation(result)
	return result, nil
}

// GetAll returns every record ordered by creation time ascending
func (s *MemoryStore) GetAll(ctx context.Context) ([]*domain.Lobby, error) {
	return s.Query(ctx, nil, nil)
}

// Len returns the number of stored lobbies
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lobbies)
}

// sortByCreation orders lobbies by CreatedAtUtc ascending, with the lobby id
// as tiebreak so repeated listings are stable.
func sortByCreation(lobbies []*domain.Lobby) {
	sort.Slice(lobbies, func(i, j int) bool {
		if lobbies[i].CreatedAtUtc.Equal(lobbies[j].CreatedAtUtc) {
			return lobbies[i].LobbyID.String() < lobbies[j].LobbyID.String()
		}
		return lobbies[i].CreatedAtUtc.Before(lobbies[j].CreatedAtUtc)
	})
}
