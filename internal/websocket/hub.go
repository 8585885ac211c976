package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lobby-service/internal/domain"
)

// Message types
const (
	MessageTypeLobbyUpdate = "lobby_update"
	MessageTypeLobbyClosed = "lobby_closed"
	MessageTypeSubscribe   = "subscribe"
	MessageTypeUnsubscribe = "unsubscribe"
	MessageTypePing        = "ping"
	MessageTypePong        = "pong"
	MessageTypeError       = "error"
)

// Message represents a WebSocket message
type Message struct {
	Type      string      `json:"type"`
	LobbyID   string      `json:"lobby_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// LobbyClosed is the payload sent when a lobby goes away
type LobbyClosed struct {
	LobbyID string `json:"lobby_id"`
	Reason  string `json:"reason"`
}

// Hub maintains the set of active clients and fans lobby events out to the
// clients watching each lobby
type Hub struct {
	// Registered clients by lobby ID
	clients map[string]map[*Client]bool

	// All connected clients
	allClients map[*Client]bool

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Outbound messages to fan out
	broadcast chan *Message

	// Subscription requests
	subscribe chan *subscriptionRequest

	// Unsubscription requests
	unsubscribe chan *subscriptionRequest

	mu sync.RWMutex

	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

type subscriptionRequest struct {
	client  *Client
	lobbyID string
}

// NewHub creates a new Hub
func NewHub(logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:     make(map[string]map[*Client]bool),
		allClients:  make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *Message, 256),
		subscribe:   make(chan *subscriptionRequest, 64),
		unsubscribe: make(chan *subscriptionRequest, 64),
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	h.logger.Info("websocket hub started")
	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("websocket hub stopping")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.allClients[client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered", "client_id", client.id)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.allClients[client]; ok {
				delete(h.allClients, client)
				for lobbyID, clients := range h.clients {
					if _, ok := clients[client]; ok {
						delete(clients, client)
						if len(clients) == 0 {
							delete(h.clients, lobbyID)
						}
					}
				}
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered", "client_id", client.id)

		case req := <-h.subscribe:
			h.mu.Lock()
			if _, ok := h.clients[req.lobbyID]; !ok {
				h.clients[req.lobbyID] = make(map[*Client]bool)
			}
			h.clients[req.lobbyID][req.client] = true
			h.mu.Unlock()
			h.logger.Debug("client subscribed", "client_id", req.client.id, "lobby_id", req.lobbyID)

		case req := <-h.unsubscribe:
			h.mu.Lock()
			if clients, ok := h.clients[req.lobbyID]; ok {
				delete(clients, req.client)
				if len(clients) == 0 {
					delete(h.clients, req.lobbyID)
				}
			}
			h.mu.Unlock()
			h.logger.Debug("client unsubscribed", "client_id", req.client.id, "lobby_id", req.lobbyID)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
			// A closed lobby never produces another event, so its watch
			// list is torn down after the final notification.
			if message.Type == MessageTypeLobbyClosed && message.LobbyID != "" {
				h.dropLobby(message.LobbyID)
			}
		}
	}
}

// Stop stops the hub
func (h *Hub) Stop() {
	h.cancel()
}

// dropLobby unsubscribes every watcher of a lobby that no longer exists
func (h *Hub) dropLobby(lobbyID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, lobbyID)
}

// broadcastMessage sends a message to all clients watching its lobby
func (h *Hub) broadcastMessage(message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal message", "error", err)
		return
	}

	if message.LobbyID != "" {
		if clients, ok := h.clients[message.LobbyID]; ok {
			for client := range clients {
				select {
				case client.send <- data:
				default:
					h.logger.Warn("client buffer full, skipping", "client_id", client.id)
				}
			}
		}
	} else {
		for client := range h.allClients {
			select {
			case client.send <- data:
			default:
				h.logger.Warn("client buffer full, skipping", "client_id", client.id)
			}
		}
	}
}

// BroadcastLobbyUpdate pushes the current lobby record to its watchers
func (h *Hub) BroadcastLobbyUpdate(lobby *domain.Lobby) {
	message := &Message{
		Type:      MessageTypeLobbyUpdate,
		LobbyID:   lobby.LobbyID.String(),
		Data:      lobby,
		Timestamp: time.Now(),
	}

	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast channel full, dropping message")
	}
}

// BroadcastLobbyClosed notifies watchers that a lobby was deleted
func (h *Hub) BroadcastLobbyClosed(lobbyID uuid.UUID, reason string) {
	message := &Message{
		Type:    MessageTypeLobbyClosed,
		LobbyID: lobbyID.String(),
		Data: LobbyClosed{
			LobbyID: lobbyID.String(),
			Reason:  reason,
		},
		Timestamp: time.Now(),
	}

	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast channel full, dropping message")
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Subscribe adds a client to a lobby subscription
func (h *Hub) Subscribe(client *Client, lobbyID string) {
	h.subscribe <- &subscriptionRequest{
		client:  client,
		lobbyID: lobbyID,
	}
}

// Unsubscribe removes a client from a lobby subscription
func (h *Hub) Unsubscribe(client *Client, lobbyID string) {
	h.unsubscribe <- &subscriptionRequest{
		client:  client,
		lobbyID: lobbyID,
	}
}

// GetSubscriberCount returns the number of watchers for a lobby
func (h *Hub) GetSubscriberCount(lobbyID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if clients, ok := h.clients[lobbyID]; ok {
		return len(clients)
	}
	return 0
}

// GetTotalConnections returns the total number of connected clients
func (h *Hub) GetTotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.allClients)
}
