// Package server manages individual WebSocket clients, handling read/write
// pumps and lifecycle control for each connection.
package server

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 256
)

// Client is a live WebSocket connection that has not necessarily registered.
// Registration turns it into a Member; only a Member relays messages.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
	id   string
	addr string
	log  *slog.Logger
}

// NewClient creates a Client with a fresh id for the given connection.
func NewClient(conn *websocket.Conn, hub *Hub, addr string) *Client {
	id := uuid.NewString()
	return &Client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		hub:  hub,
		id:   id,
		addr: addr,
		log:  hub.log.With("client", id, "addr", addr),
	}
}

// ID returns the client's unique identifier.
func (c *Client) ID() string {
	return c.id
}

// Addr returns the client's remote address.
func (c *Client) Addr() string {
	return c.addr
}

// readFrame blocks until a well-formed frame arrives. Malformed frames are
// logged and skipped.
func (c *Client) readFrame() (Frame, error) {
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return Frame{}, err
		}
		f, err := decodeFrame(raw)
		if err != nil {
			c.log.Debug("dropping malformed frame", "err", err)
			continue
		}
		return f, nil
	}
}

// readPump owns the read side of the connection for its whole life: first
// the registration window, then the relay loop of the registered member.
func (c *Client) readPump(registrationTimeout time.Duration) {
	defer func() {
		submit(c.hub, c.hub.leave, c)
		c.closeConnection()
	}()

	member, err := c.awaitRegistration(registrationTimeout)
	if err != nil {
		if errors.Is(err, ErrRegistrationTimeout) {
			c.hub.metrics.registrationTimeouts.Inc()
			c.log.Debug("client timed out before registering, disconnecting", "timeout", registrationTimeout)
			c.writeClose(websocket.CloseNormalClosure, "registration timeout")
			return
		}
		c.handleReadError(err)
		return
	}

	if !submit(c.hub, c.hub.join, member) {
		return
	}
	member.relayLoop()
}

// setupReadConnection configures read deadlines and the pong handler once
// the client has registered.
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Debug("error setting read deadline", "err", err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.log.Debug("error setting read deadline in pong handler", "err", err)
		}
		return nil
	})
}

// handleReadError logs the reason the read side stopped.
func (c *Client) handleReadError(err error) {
	if err == nil {
		return
	}

	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure) {
		c.log.Debug("client disconnected", "err", err)
		return
	}

	if errors.Is(err, io.EOF) || isExpectedCloseError(err) {
		c.log.Debug("client connection closed", "err", err)
		return
	}

	if websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure) {
		c.log.Warn("unexpected websocket close", "err", err)
		return
	}

	c.log.Warn("websocket read error", "err", err)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case message, ok := <-c.send:
		return c.handleMessage(message, ok)
	case <-ticker.C:
		return c.handlePing()
	}
}

// closeConnection closes the socket, logging only unexpected failures.
func (c *Client) closeConnection() {
	if c.conn == nil {
		return
	}
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.log.Debug("error closing connection", "err", err)
	}
}

// handleMessage writes one outgoing frame and returns false if the
// connection should be closed.
func (c *Client) handleMessage(message []byte, ok bool) bool {
	if !ok {
		c.writeClose(websocket.CloseNormalClosure, "")
		return false
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Debug("error setting write deadline", "err", err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Debug("error writing message", "err", err)
		}
		return false
	}
	return true
}

// writeClose sends a close control frame. Failures are expected when the
// peer is already gone.
func (c *Client) writeClose(code int, text string) {
	deadline := time.Now().Add(writeWait)
	if err := c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), deadline); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Debug("error writing close message", "err", err)
		}
	}
}

// handlePing sends a ping message to keep the connection alive
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Debug("error setting write deadline for ping", "err", err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.log.Debug("error writing ping message", "err", err)
		return false
	}
	return true
}
