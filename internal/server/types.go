// Package server defines the event frames exchanged with clients, the
// registration identity and the broadcast envelope, plus small helpers shared
// by the client and hub logic.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Event names used on the wire.
const (
	EventInitInstance  = "initInstance"
	EventMessage       = "message"
	EventNotRegistered = "notRegistered"
)

var (
	// ErrRegistrationTimeout is returned when a client does not send a valid
	// initInstance event within the registration window.
	ErrRegistrationTimeout = errors.New("registration timed out")
	// ErrInvalidRegistration is returned for an initInstance payload that is
	// not an object carrying string room and username fields.
	ErrInvalidRegistration = errors.New("invalid registration payload")
)

// Frame is the JSON text frame carried over the WebSocket in both directions.
// Data is kept raw so payloads pass through the relay untouched.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Identity is what a client declares when it registers.
type Identity struct {
	Room     string `json:"room"`
	Username string `json:"username"`
}

// Envelope wraps a relayed payload together with the sender's identity.
type Envelope struct {
	ClientData  Identity        `json:"clientData"`
	MessageData json.RawMessage `json:"messageData"`
}

// decodeFrame parses an inbound text frame.
func decodeFrame(raw []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	if f.Event == "" {
		return Frame{}, errors.New("decode frame: missing event name")
	}
	return f, nil
}

// decodeIdentity validates the data of an initInstance frame. Room and
// username must both be present as JSON strings; their values are kept as
// sent, including empty strings and surrounding whitespace.
func decodeIdentity(data json.RawMessage) (Identity, error) {
	var fields struct {
		Room     *string `json:"room"`
		Username *string `json:"username"`
	}
	if len(data) == 0 {
		return Identity{}, ErrInvalidRegistration
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidRegistration, err)
	}
	if fields.Room == nil || fields.Username == nil {
		return Identity{}, fmt.Errorf("%w: room and username are required", ErrInvalidRegistration)
	}
	return Identity{Room: *fields.Room, Username: *fields.Username}, nil
}

// encodeEvent builds an outbound frame. A nil data value yields a frame with
// no data field.
func encodeEvent(event string, data any) ([]byte, error) {
	f := Frame{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encode %s data: %w", event, err)
		}
		f.Data = raw
	}
	return json.Marshal(f)
}

// encodeEnvelope builds the message frame delivered to the other members of
// the sender's room.
func encodeEnvelope(sender Identity, payload json.RawMessage) ([]byte, error) {
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	return encodeEvent(EventMessage, Envelope{ClientData: sender, MessageData: payload})
}

var notRegisteredFrame = []byte(`{"event":"` + EventNotRegistered + `"}`)

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
