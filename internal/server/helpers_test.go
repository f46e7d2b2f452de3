package server_test

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomrelay/internal/server"
)

// inboundFrame mirrors what a client receives from the relay.
type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// newTestRelay starts a hub and an httptest server around SetupRoutes.
func newTestRelay(t *testing.T, customize func(cfg *server.Config)) (*server.Hub, *httptest.Server) {
	t.Helper()

	cfg := server.NewConfig()
	cfg.StaticDir = t.TempDir()
	if customize != nil {
		customize(cfg)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := server.NewHub(*cfg, logger, server.NewMetrics())
	server.StartHub(hub)

	testServer := httptest.NewServer(server.SetupRoutes(*cfg, hub))
	t.Cleanup(func() {
		testServer.Close()
		_ = hub.Shutdown(2 * time.Second)
	})
	return hub, testServer
}

func wsURL(testServer *httptest.Server) string {
	return "ws" + strings.TrimPrefix(testServer.URL, "http") + "/ws"
}

// dial opens a socket to the relay without an Origin header.
func dial(t *testing.T, testServer *httptest.Server) *websocket.Conn {
	t.Helper()
	return dialWithHeader(t, testServer, nil)
}

func dialWithHeader(t *testing.T, testServer *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := dialer.Dial(wsURL(testServer), header)
	if resp != nil {
		_ = resp.Body.Close()
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func emit(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"event": event, "data": data}))
}

// register sends initInstance and waits until the hub counts wantMembers.
func register(t *testing.T, hub *server.Hub, conn *websocket.Conn, room, username string, wantMembers int) {
	t.Helper()
	emit(t, conn, server.EventInitInstance, map[string]string{"room": room, "username": username})
	require.Eventually(t, func() bool {
		return hub.Stats().Members == wantMembers
	}, 2*time.Second, 10*time.Millisecond, "registration of %s/%s not observed", room, username)
}

func readFrame(t *testing.T, conn *websocket.Conn) inboundFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f inboundFrame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func readEnvelope(t *testing.T, conn *websocket.Conn) server.Envelope {
	t.Helper()
	f := readFrame(t, conn)
	require.Equal(t, server.EventMessage, f.Event)
	var env server.Envelope
	require.NoError(t, json.Unmarshal(f.Data, &env))
	return env
}

// expectNoMessage asserts nothing arrives within timeout. The read deadline
// breaks further reads on conn, so call it last for a given connection.
func expectNoMessage(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	_, msg, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("expected no message, but received %s", msg)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return
	}
	t.Fatalf("unexpected error while waiting for absence of message: %v", err)
}
