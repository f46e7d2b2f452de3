// Package server implements the room relay: HTTP and WebSocket handling, the
// registration handshake, and per-room broadcast.
//
// The implementation is organized into specialized files for configuration, hub
// management, clients, registration, routing, and HTTP handlers to keep the
// codebase maintainable and testable as the project grows.
package server
