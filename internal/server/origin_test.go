package server

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOriginPolicy(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{name: "no origin header", allowed: []string{"https://a.example"}, origin: "", want: true},
		{name: "wildcard", allowed: []string{"*"}, origin: "https://anything.example", want: true},
		{name: "listed origin", allowed: []string{"https://a.example"}, origin: "https://a.example", want: true},
		{name: "case insensitive", allowed: []string{"HTTPS://A.Example"}, origin: "https://a.example", want: true},
		{name: "same host", allowed: nil, origin: "http://relay.local:8463", want: true},
		{name: "unlisted origin", allowed: []string{"https://a.example"}, origin: "https://b.example", want: false},
		{name: "invalid configured origin ignored", allowed: []string{"not-a-url"}, origin: "https://b.example", want: false},
		{name: "garbage origin", allowed: []string{"https://a.example"}, origin: "::::", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newOriginPolicy(tt.allowed, logger)
			r := httptest.NewRequest("GET", "http://relay.local:8463/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, p.checkOrigin(r))
		})
	}
}

func TestClientAddr(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws", nil)
	r.RemoteAddr = "10.0.0.5:51234"
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	assert.Equal(t, "203.0.113.9", clientAddr(r, true))
	assert.Equal(t, "10.0.0.5", clientAddr(r, false))

	r.Header.Del("X-Forwarded-For")
	assert.Equal(t, "10.0.0.5", clientAddr(r, true))
}
