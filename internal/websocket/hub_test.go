package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lobby-service/internal/domain"
)

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(testLogger())
	go hub.Run()
	t.Cleanup(hub.Stop)
	return hub
}

func fakeClient() *Client {
	return &Client{
		id:     uuid.New().String(),
		send:   make(chan []byte, 16),
		logger: testLogger(),
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func recvMessage(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case data := <-c.send:
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
		return Message{}
	}
}

func TestHubRoutesLobbyUpdatesToSubscribers(t *testing.T) {
	hub := startHub(t)

	watcher := fakeClient()
	bystander := fakeClient()
	hub.Register(watcher)
	hub.Register(bystander)
	waitFor(t, func() bool { return hub.GetTotalConnections() == 2 })

	lobby := &domain.Lobby{
		LobbyID:      uuid.New(),
		HostPlayerID: "p1",
		Status:       domain.StatusWaitingForOpponent,
	}
	hub.Subscribe(watcher, lobby.LobbyID.String())
	waitFor(t, func() bool { return hub.GetSubscriberCount(lobby.LobbyID.String()) == 1 })

	hub.BroadcastLobbyUpdate(lobby)

	msg := recvMessage(t, watcher)
	assert.Equal(t, MessageTypeLobbyUpdate, msg.Type)
	assert.Equal(t, lobby.LobbyID.String(), msg.LobbyID)

	select {
	case data := <-bystander.send:
		t.Fatalf("bystander received unexpected message: %s", data)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHubBroadcastsLobbyClosed(t *testing.T) {
	hub := startHub(t)

	watcher := fakeClient()
	hub.Register(watcher)
	lobbyID := uuid.New()
	hub.Subscribe(watcher, lobbyID.String())
	waitFor(t, func() bool { return hub.GetSubscriberCount(lobbyID.String()) == 1 })

	hub.BroadcastLobbyClosed(lobbyID, "host_left")

	msg := recvMessage(t, watcher)
	assert.Equal(t, MessageTypeLobbyClosed, msg.Type)

	payload, ok := msg.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "host_left", payload["reason"])
}

func TestLobbyClosedTearsDownWatchList(t *testing.T) {
	hub := startHub(t)

	watcher := fakeClient()
	hub.Register(watcher)
	lobbyID := uuid.New()
	hub.Subscribe(watcher, lobbyID.String())
	waitFor(t, func() bool { return hub.GetSubscriberCount(lobbyID.String()) == 1 })

	hub.BroadcastLobbyClosed(lobbyID, "expired")

	// Watchers get the final notification, then the subscription is gone
	msg := recvMessage(t, watcher)
	assert.Equal(t, MessageTypeLobbyClosed, msg.Type)
	waitFor(t, func() bool { return hub.GetSubscriberCount(lobbyID.String()) == 0 })

	// The client itself stays connected
	assert.Equal(t, 1, hub.GetTotalConnections())
}

func TestHubUnregisterDropsSubscriptions(t *testing.T) {
	hub := startHub(t)

	client := fakeClient()
	hub.Register(client)
	lobbyID := uuid.NewString()
	hub.Subscribe(client, lobbyID)
	waitFor(t, func() bool { return hub.GetSubscriberCount(lobbyID) == 1 })

	hub.Unregister(client)
	waitFor(t, func() bool { return hub.GetTotalConnections() == 0 })
	assert.Zero(t, hub.GetSubscriberCount(lobbyID))

	// Send channel is closed on unregister
	_, open := <-client.send
	assert.False(t, open)
}

func TestServeWsSubscribeRoundTrip(t *testing.T) {
	hub := startHub(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, testLogger(), w, r)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	lobbyID := uuid.NewString()
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTypeSubscribe, LobbyID: lobbyID}))

	var ack Message
	require.NoError(t, conn.ReadJSON(&ack))
	assert.Equal(t, "subscribed", ack.Type)
	assert.Equal(t, lobbyID, ack.LobbyID)

	waitFor(t, func() bool { return hub.GetSubscriberCount(lobbyID) == 1 })

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTypePing}))
	var pong Message
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, MessageTypePong, pong.Type)
}

func TestServeWsRejectsMalformedLobbyID(t *testing.T) {
	hub := startHub(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, testLogger(), w, r)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTypeSubscribe, LobbyID: "not-a-uuid"}))

	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MessageTypeError, msg.Type)
	assert.Zero(t, hub.GetSubscriberCount("not-a-uuid"))
}
