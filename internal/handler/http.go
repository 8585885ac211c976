package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/lobby-service/internal/domain"
	"github.com/lobby-service/internal/service"
	"github.com/lobby-service/internal/websocket"
)

// Handler provides HTTP handlers for the lobby API
type Handler struct {
	service *service.LobbyService
	hub     *websocket.Hub
	logger  *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(service *service.LobbyService, hub *websocket.Hub, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		hub:     hub,
		logger:  logger,
	}
}

// ErrorResponse is the structured error body returned for domain failures
type ErrorResponse struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// WebSocket endpoint
	r.Get("/ws", h.HandleWebSocket)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/lobbies", func(r chi.Router) {
			r.Post("/", h.CreateLobby)
			r.Get("/", h.ListLobbies)

			r.Route("/{lobbyID}", func(r chi.Router) {
				r.Get("/", h.GetLobby)
				r.Delete("/", h.CloseLobby)
				r.Post("/join", h.JoinLobby)
				r.Post("/leave", h.LeaveLobby)
				r.Post("/heartbeat", h.Heartbeat)
				r.Post("/status", h.UpdateLobbyStatus)
			})
		})

		// WebSocket info endpoint
		r.Get("/ws/stats", h.GetWebSocketStats)
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError maps a domain error to its HTTP status and structured body
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	code := domain.CodeOf(err)

	var de *domain.Error
	message := "an unexpected error occurred"
	if errors.As(err, &de) {
		message = de.Message
	}

	status := http.StatusInternalServerError
	switch code {
	case domain.CodeInvalidRequest:
		status = http.StatusBadRequest
	case domain.CodeLobbyNotFound:
		status = http.StatusNotFound
	case domain.CodeNotHost:
		status = http.StatusForbidden
	case domain.CodeLobbyFull, domain.CodeLobbyNotJoinable, domain.CodeConcurrencyConflict:
		status = http.StatusConflict
	case domain.CodeInternal:
		h.logger.Error("internal error", "error", err)
		message = "an unexpected error occurred"
	}

	h.writeJSON(w, status, ErrorResponse{
		ErrorCode: string(code),
		Message:   message,
	})
}

// writeInvalid writes an invalid_request error with the given message
func (h *Handler) writeInvalid(w http.ResponseWriter, message string) {
	h.writeError(w, domain.NewError(domain.CodeInvalidRequest, message))
}

// lobbyIDParam parses the lobbyID path parameter
func lobbyIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "lobbyID"))
	if err != nil {
		return uuid.Nil, domain.NewError(domain.CodeInvalidRequest, "lobby id must be a valid uuid")
	}
	return id, nil
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_connections": h.hub.GetTotalConnections(),
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ReadyCheck returns service readiness status
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// CreateLobby handles lobby creation
func (h *Handler) CreateLobby(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateLobbyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeInvalid(w, "malformed request body")
		return
	}

	lobby, err := h.service.CreateLobby(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Location", "/api/v1/lobbies/"+lobby.LobbyID.String())
	h.writeJSON(w, http.StatusCreated, lobby)
}

// ListLobbies returns lobby summaries matching the optional status and
// visibility query filters
func (h *Handler) ListLobbies(w http.ResponseWriter, r *http.Request) {
	var statusFilter *domain.LobbyStatus
	var visibilityFilter *domain.LobbyVisibility

	if s := r.URL.Query().Get("status"); s != "" {
		parsed, err := domain.ParseLobbyStatus(s)
		if err != nil {
			h.writeError(w, err)
			return
		}
		statusFilter = &parsed
	}
	if v := r.URL.Query().Get("visibility"); v != "" {
		parsed, err := domain.ParseLobbyVisibility(v)
		if err != nil {
			h.writeError(w, err)
			return
		}
		visibilityFilter = &parsed
	}

	lobbies, err := h.service.ListLobbies(r.Context(), statusFilter, visibilityFilter)
	if err != nil {
		h.writeError(w, err)
		return
	}

	summaries := make([]domain.LobbySummary, 0, len(lobbies))
	for _, lobby := range lobbies {
		summaries = append(summaries, lobby.ToSummary())
	}

	h.writeJSON(w, http.StatusOK, summaries)
}

// GetLobby returns a lobby by id
func (h *Handler) GetLobby(w http.ResponseWriter, r *http.Request) {
	lobbyID, err := lobbyIDParam(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	lobby, err := h.service.GetLobby(r.Context(), lobbyID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, lobby)
}

// JoinLobby handles a player joining a lobby
func (h *Handler) JoinLobby(w http.ResponseWriter, r *http.Request) {
	lobbyID, err := lobbyIDParam(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req domain.JoinLobbyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeInvalid(w, "malformed request body")
		return
	}

	lobby, err := h.service.JoinLobby(r.Context(), lobbyID, req.PlayerID, req.DisplayName)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, domain.JoinLobbyResponse{
		LobbyID:        lobby.LobbyID,
		ConnectionInfo: lobby.ConnectionInfo,
		Lobby:          lobby,
	})
}

// LeaveLobby handles a player leaving a lobby
func (h *Handler) LeaveLobby(w http.ResponseWriter, r *http.Request) {
	lobbyID, err := lobbyIDParam(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req domain.PlayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeInvalid(w, "malformed request body")
		return
	}

	if err := h.service.LeaveLobby(r.Context(), lobbyID, req.PlayerID); err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Heartbeat records a host liveness signal
func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	lobbyID, err := lobbyIDParam(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req domain.PlayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeInvalid(w, "malformed request body")
		return
	}

	if err := h.service.Heartbeat(r.Context(), lobbyID, req.PlayerID); err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// UpdateLobbyStatus overwrites the lobby status on behalf of the host
func (h *Handler) UpdateLobbyStatus(w http.ResponseWriter, r *http.Request) {
	lobbyID, err := lobbyIDParam(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req domain.UpdateLobbyStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeInvalid(w, "malformed request body")
		return
	}

	newStatus, err := domain.ParseLobbyStatus(req.Status)
	if err != nil {
		h.writeError(w, err)
		return
	}

	lobby, err := h.service.UpdateLobbyStatus(r.Context(), lobbyID, req.PlayerID, newStatus)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, lobby)
}

// CloseLobby deletes a lobby on behalf of its host
func (h *Handler) CloseLobby(w http.ResponseWriter, r *http.Request) {
	lobbyID, err := lobbyIDParam(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req domain.PlayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeInvalid(w, "malformed request body")
		return
	}

	if err := h.service.CloseLobby(r.Context(), lobbyID, req.PlayerID); err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
