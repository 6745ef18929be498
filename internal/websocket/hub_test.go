package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viaduct-dev/viaduct/internal/errors"
	"github.com/viaduct-dev/viaduct/internal/logging"
	"github.com/viaduct-dev/viaduct/internal/types"
)

type allowAllOrigins struct{}

func (allowAllOrigins) IsAllowedOrigin(string) bool { return true }

type allowListOrigins struct {
	allowed string
}

func (v allowListOrigins) IsAllowedOrigin(origin string) bool { return origin == v.allowed }

func newTestHub(t *testing.T, validator OriginValidator) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(validator, logging.Nop())
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(func() {
		srv.Close()
		hub.Shutdown(context.Background())
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	url := strings.Replace(srv.URL, "http", "ws", 1)
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &payload))
	return payload
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return hub.GetConnectedClients() == want
	}, 3*time.Second, 10*time.Millisecond, "expected %d connected clients", want)
}

func TestHubBroadcastsReloadToAllClients(t *testing.T) {
	hub, srv := newTestHub(t, allowAllOrigins{})

	first := dial(t, srv)
	second := dial(t, srv)
	waitForClients(t, hub, 2)

	stamp := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	hub.SendReload(types.ReloadEvent{
		Action:    types.ActionStyleUpdate,
		Path:      "/src/App.vue",
		Index:     1,
		Timestamp: stamp,
	})

	for _, conn := range []*websocket.Conn{first, second} {
		payload := readMessage(t, conn)
		assert.Equal(t, "style-update", payload["type"])
		assert.Equal(t, "/src/App.vue", payload["path"])
		assert.Equal(t, float64(1), payload["index"])
		assert.Equal(t, float64(stamp.UnixMilli()), payload["timestamp"],
			"timestamps travel as unix milliseconds")
	}
}

func TestHubCompileErrorOverlayMessages(t *testing.T) {
	hub, srv := newTestHub(t, allowAllOrigins{})

	conn := dial(t, srv)
	waitForClients(t, hub, 1)

	hub.SendCompileError("/src/App.vue", []errors.Diagnostic{{
		File:     "/proj/src/App.vue",
		Line:     3,
		Message:  "unexpected token",
		Severity: errors.SeverityError,
	}})

	payload := readMessage(t, conn)
	assert.Equal(t, "compile-error", payload["type"])
	assert.Equal(t, "/src/App.vue", payload["path"])
	diags, ok := payload["diagnostics"].([]interface{})
	require.True(t, ok)
	require.Len(t, diags, 1)

	hub.ClearCompileError("/src/App.vue")

	payload = readMessage(t, conn)
	assert.Equal(t, "compile-error-resolved", payload["type"])
	assert.Equal(t, "/src/App.vue", payload["path"])
	_, hasDiagnostics := payload["diagnostics"]
	assert.False(t, hasDiagnostics, "the resolved message carries no diagnostics")
}

func TestHubRejectsDisallowedOrigin(t *testing.T) {
	_, srv := newTestHub(t, allowListOrigins{allowed: "http://allowed.test"})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	url := strings.Replace(srv.URL, "http", "ws", 1)
	header := http.Header{}
	header.Set("Origin", "http://evil.test")
	conn, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: header})
	if conn != nil {
		conn.Close(websocket.StatusNormalClosure, "")
	}

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHubAllowsListedOrigin(t *testing.T) {
	hub, srv := newTestHub(t, allowListOrigins{allowed: "http://allowed.test"})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	url := strings.Replace(srv.URL, "http", "ws", 1)
	header := http.Header{}
	header.Set("Origin", "http://allowed.test")
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: header})
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	waitForClients(t, hub, 1)
}

func TestHubDisconnectRemovesClient(t *testing.T) {
	hub, srv := newTestHub(t, allowAllOrigins{})

	conn := dial(t, srv)
	waitForClients(t, hub, 1)

	conn.Close(websocket.StatusNormalClosure, "done")
	waitForClients(t, hub, 0)
}

func TestHubShutdownRefusesNewConnections(t *testing.T) {
	hub := NewHub(allowAllOrigins{}, logging.Nop())
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	require.NoError(t, hub.Shutdown(context.Background()))
	assert.True(t, hub.IsShutdown())

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	// Shutdown is idempotent.
	require.NoError(t, hub.Shutdown(context.Background()))
}

func TestHubRequiresOriginValidator(t *testing.T) {
	assert.Panics(t, func() {
		NewHub(nil, logging.Nop())
	})
}
