package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LobbyStatus represents the high-level lifecycle state of a lobby
type LobbyStatus string

const (
	StatusWaitingForOpponent LobbyStatus = "waiting_for_opponent"
	StatusInProgress         LobbyStatus = "in_progress"
	StatusCompleted          LobbyStatus = "completed"
)

// ParseLobbyStatus parses a status string case-insensitively
func ParseLobbyStatus(s string) (LobbyStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "waiting_for_opponent", "waitingforopponent":
		return StatusWaitingForOpponent, nil
	case "in_progress", "inprogress":
		return StatusInProgress, nil
	case "completed":
		return StatusCompleted, nil
	default:
		return "", Errorf(CodeInvalidRequest, "unknown lobby status %q", s)
	}
}

// LobbyVisibility determines whether a lobby is discoverable via listing
type LobbyVisibility string

const (
	VisibilityPublic  LobbyVisibility = "public"
	VisibilityPrivate LobbyVisibility = "private"
)

// ParseLobbyVisibility parses a visibility string case-insensitively
func ParseLobbyVisibility(s string) (LobbyVisibility, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "public":
		return VisibilityPublic, nil
	case "private":
		return VisibilityPrivate, nil
	default:
		return "", Errorf(CodeInvalidRequest, "unknown lobby visibility %q", s)
	}
}

// GameSettings is opaque per-lobby game configuration. The lobby service
// passes it through unmodified; only presence is validated.
type GameSettings struct {
	TimeControl string `json:"time_control" yaml:"time_control"`
	Variant     string `json:"variant" yaml:"variant"`
	Rated       bool   `json:"rated" yaml:"rated"`
}

// ConnectionInfo describes how a joining client reaches the actual game host.
// Mode is transport-defined, e.g. "direct", "relay", "dedi".
type ConnectionInfo struct {
	Mode     string            `json:"mode"`
	Address  string            `json:"address"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (c ConnectionInfo) clone() ConnectionInfo {
	out := c
	if c.Metadata != nil {
		out.Metadata = make(map[string]string, len(c.Metadata))
		for k, v := range c.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// PlayerSummary is the minimal information about a player in a lobby
type PlayerSummary struct {
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name"`
}

// Lobby is a transient matchmaking session: a host, zero or more joined
// players, and connection metadata for the eventual game host.
//
// Invariants maintained by the service layer:
//   - len(Players) <= MaxPlayers
//   - the host is always the first entry of Players
//   - LastHeartbeatAtUtc >= CreatedAtUtc
type Lobby struct {
	LobbyID            uuid.UUID       `json:"lobby_id"`
	HostPlayerID       string          `json:"host_player_id"`
	HostDisplayName    string          `json:"host_display_name"`
	Status             LobbyStatus     `json:"status"`
	Visibility         LobbyVisibility `json:"visibility"`
	GameSettings       GameSettings    `json:"game_settings"`
	ConnectionInfo     ConnectionInfo  `json:"connection_info"`
	Players            []PlayerSummary `json:"players"`
	MaxPlayers         int             `json:"max_players"`
	CreatedAtUtc       time.Time       `json:"created_at_utc"`
	LastHeartbeatAtUtc time.Time       `json:"last_heartbeat_at_utc"`
}

// Clone returns a deep copy so callers never alias shared stored state
func (l *Lobby) Clone() *Lobby {
	out := *l
	out.ConnectionInfo = l.ConnectionInfo.clone()
	out.Players = make([]PlayerSummary, len(l.Players))
	copy(out.Players, l.Players)
	return &out
}

// HasPlayer reports whether playerID is a member of the lobby
func (l *Lobby) HasPlayer(playerID string) bool {
	for _, p := range l.Players {
		if p.PlayerID == playerID {
			return true
		}
	}
	return false
}

// LobbySummary is the listing projection of a lobby for browse results
type LobbySummary struct {
	LobbyID            uuid.UUID       `json:"lobby_id"`
	HostDisplayName    string          `json:"host_display_name"`
	Status             LobbyStatus     `json:"status"`
	Visibility         LobbyVisibility `json:"visibility"`
	GameSettings       GameSettings    `json:"game_settings"`
	CurrentPlayerCount int             `json:"current_player_count"`
	MaxPlayers         int             `json:"max_players"`
	CreatedAtUtc       time.Time       `json:"created_at_utc"`
}

// ToSummary converts a lobby to its listing projection
func (l *Lobby) ToSummary() LobbySummary {
	return LobbySummary{
		LobbyID:            l.LobbyID,
		HostDisplayName:    l.HostDisplayName,
		Status:             l.Status,
		Visibility:         l.Visibility,
		GameSettings:       l.GameSettings,
		CurrentPlayerCount: len(l.Players),
		MaxPlayers:         l.MaxPlayers,
		CreatedAtUtc:       l.CreatedAtUtc,
	}
}

// CreateLobbyRequest represents a request to create a new lobby
type CreateLobbyRequest struct {
	PlayerID       string          `json:"player_id"`
	DisplayName    string          `json:"display_name"`
	Visibility     LobbyVisibility `json:"visibility,omitempty"`
	GameSettings   *GameSettings   `json:"game_settings"`
	ConnectionInfo *ConnectionInfo `json:"connection_info"`
	MaxPlayers     int             `json:"max_players"`
}

// JoinLobbyRequest represents a request to join an existing lobby
type JoinLobbyRequest struct {
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name"`
}

// PlayerRequest carries the claimed player identity for leave, heartbeat
// and close operations
type PlayerRequest struct {
	PlayerID string `json:"player_id"`
}

// UpdateLobbyStatusRequest represents a host-driven status change
type UpdateLobbyStatusRequest struct {
	PlayerID string `json:"player_id"`
	Status   string `json:"status"`
}

// JoinLobbyResponse surfaces the connection descriptor alongside the lobby
type JoinLobbyResponse struct {
	LobbyID        uuid.UUID      `json:"lobby_id"`
	ConnectionInfo ConnectionInfo `json:"connection_info"`
	Lobby          *Lobby         `json:"lobby"`
}

// String implements fmt.Stringer for log output
func (l *Lobby) String() string {
	return fmt.Sprintf("lobby %s host=%s status=%s players=%d/%d",
		l.LobbyID, l.HostPlayerID, l.Status, len(l.Players), l.MaxPlayers)
}
