// Package server wires HTTP handlers into a ServeMux for the relay via
// routing helpers.
package server

import (
	"net/http"

	"github.com/rs/cors"
)

// SetupRoutes configures the HTTP routes: the root page, the static
// directory, the WebSocket endpoint, health and metrics. CORS follows the
// configured allowed origins.
func SetupRoutes(cfg Config, hub *Hub) http.Handler {
	cfg = sanitizeConfig(cfg)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", IndexHandler(cfg.StaticDir))
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticDir))))
	mux.HandleFunc("/ws", WebSocketHandler(cfg, hub))
	mux.HandleFunc("GET /healthz", HealthHandler)
	mux.Handle("GET /metrics", hub.Metrics().Handler())

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead},
	})
	return c.Handler(mux)
}
