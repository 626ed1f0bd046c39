package handler

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/AjcJustin/aero-park/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWSTestServer(t *testing.T) (*WebSocketManager, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	manager := NewWebSocketManager()
	r := gin.New()
	r.GET("/ws", NewWebSocketHandler(manager).HandleWebSocket)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return manager, srv
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestWebSocketPublish(t *testing.T) {
	manager, srv := newWSTestServer(t)
	conn := dialWS(t, srv)
	defer conn.Close()

	assert.Eventually(t, func() bool { return manager.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	manager.Publish(domain.Event{
		Type:      domain.EventSpotUpdated,
		Payload:   map[string]string{"spot_id": "a1"},
		Timestamp: time.Now().UTC(),
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var event domain.Event
	require.NoError(t, json.Unmarshal(raw, &event))
	assert.Equal(t, domain.EventSpotUpdated, event.Type)
}

func TestWebSocketFanOut(t *testing.T) {
	manager, srv := newWSTestServer(t)
	first := dialWS(t, srv)
	defer first.Close()
	second := dialWS(t, srv)
	defer second.Close()

	assert.Eventually(t, func() bool { return manager.ClientCount() == 2 }, time.Second, 10*time.Millisecond)

	manager.Publish(domain.Event{Type: domain.EventStatusSnapshot, Timestamp: time.Now().UTC()})

	for _, conn := range []*websocket.Conn{first, second} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Contains(t, string(raw), domain.EventStatusSnapshot)
	}
}

func TestWebSocketDisconnectRemovesClient(t *testing.T) {
	manager, srv := newWSTestServer(t)
	conn := dialWS(t, srv)

	assert.Eventually(t, func() bool { return manager.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
	conn.Close()
	assert.Eventually(t, func() bool { return manager.ClientCount() == 0 }, time.Second, 10*time.Millisecond)

	// Publish sau khi client rời đi không panic.
	manager.Publish(domain.Event{Type: domain.EventSpotUpdated, Timestamp: time.Now().UTC()})
}
