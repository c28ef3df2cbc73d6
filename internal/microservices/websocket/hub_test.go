package websocket

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupFeed(t *testing.T) (*Hub, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub(nil)
	router := gin.New()
	RegisterRoutes(router, hub)

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		hub.CloseAll()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(frame, &out))
	return out
}

func TestHub_EchoesValidJSON(t *testing.T) {
	hub, url := setupFeed(t)
	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.Count() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"ping":1}`)))

	// the invalid frame produced nothing, so the first reply is the echo
	got := readMessage(t, conn)
	assert.Equal(t, TypeEcho, got["type"])
	assert.Equal(t, map[string]any{"ping": float64(1)}, got["data"])
	assert.NotEmpty(t, got["timestamp"])
}

func TestHub_BroadcastReachesEveryClient(t *testing.T) {
	hub, url := setupFeed(t)
	a := dial(t, url)
	b := dial(t, url)
	require.Eventually(t, func() bool { return hub.Count() == 2 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, hub.Broadcast(NewMessage(TypePCBAEvent, map[string]string{
		"serial": "SN1", "stage": "wifi", "status": "pass",
	})))

	for _, conn := range []*websocket.Conn{a, b} {
		got := readMessage(t, conn)
		assert.Equal(t, TypePCBAEvent, got["type"])
		data := got["data"].(map[string]any)
		assert.Equal(t, "SN1", data["serial"])
	}
}

func TestHub_UnregistersOnDisconnect(t *testing.T) {
	hub, url := setupFeed(t)
	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.Count() == 1 }, 2*time.Second, 5*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Count() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestHub_RateLimitsInboundFrames(t *testing.T) {
	hub, url := setupFeed(t)
	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.Count() == 1 }, 2*time.Second, 5*time.Millisecond)

	const frames = 40
	for i := 0; i < frames; i++ {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"n":1}`)))
	}

	limited := 0
	for i := 0; i < frames; i++ {
		if readMessage(t, conn)["type"] == TypeError {
			limited++
		}
	}
	assert.Positive(t, limited)
}

func TestHub_CloseAllSendsCloseFrame(t *testing.T) {
	hub, url := setupFeed(t)
	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.Count() == 1 }, 2*time.Second, 5*time.Millisecond)

	hub.CloseAll()
	assert.Zero(t, hub.Count())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestHub_SendToUnknownClient(t *testing.T) {
	hub := NewHub(nil)
	ghost := &Client{ID: "ghost", SendChannel: make(chan []byte, 1), Hub: hub}
	assert.False(t, hub.Send(ghost, []byte("{}")))

	// unregistering a client that was never registered is a no-op
	hub.Unregister(ghost)
	assert.Zero(t, hub.Count())
}

func TestHub_DropsSlowClient(t *testing.T) {
	hub := NewHub(nil)
	slow := &Client{ID: "slow", SendChannel: make(chan []byte, 1), Hub: hub}
	hub.clients[slow.ID] = slow

	hub.BroadcastRaw([]byte("1"))
	assert.Equal(t, 1, hub.Count())

	hub.BroadcastRaw([]byte("2")) // buffer full
	assert.Zero(t, hub.Count())

	_, open := <-slow.SendChannel
	assert.True(t, open, "queued frame is still delivered")
	_, open = <-slow.SendChannel
	assert.False(t, open)
}
