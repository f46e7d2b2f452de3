// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, and the root page.
package server

import (
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/gorilla/websocket"
)

// WebSocketHandler upgrades GET requests to the relay protocol. Each upgraded
// connection is handed to the hub, which starts its pumps; the registration
// window opens immediately.
func WebSocketHandler(cfg Config, hub *Hub) http.HandlerFunc {
	origins := newOriginPolicy(cfg.AllowedOrigins, hub.log)
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     origins.checkOrigin,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.log.Debug("websocket upgrade failed", "err", err)
			return
		}

		client := NewClient(conn, hub, clientAddr(r, cfg.TrustProxy))
		if !submit(hub, hub.connect, client) {
			client.closeConnection()
		}
	}
}

// HealthHandler provides a simple liveness check.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, "roomrelay is running")
}

// IndexHandler serves index.html from the static directory.
func IndexHandler(staticDir string) http.HandlerFunc {
	index := filepath.Join(staticDir, "index.html")
	return func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, index)
	}
}
