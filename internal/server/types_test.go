package server

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeIdentity(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    Identity
		wantErr bool
	}{
		{name: "valid", data: `{"room":"lobby","username":"alice"}`, want: Identity{Room: "lobby", Username: "alice"}},
		{name: "keeps whitespace", data: `{"room":" lobby ","username":"alice\n"}`, want: Identity{Room: " lobby ", Username: "alice\n"}},
		{name: "empty strings", data: `{"room":"","username":""}`, want: Identity{}},
		{name: "missing username", data: `{"room":"lobby"}`, wantErr: true},
		{name: "null room", data: `{"room":null,"username":"alice"}`, wantErr: true},
		{name: "numeric username", data: `{"room":"lobby","username":7}`, wantErr: true},
		{name: "not an object", data: `"lobby"`, wantErr: true},
		{name: "empty", data: ``, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeIdentity(json.RawMessage(tt.data))
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidRegistration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeFrame(t *testing.T) {
	f, err := decodeFrame([]byte(`{"event":"message","data":[1,2,3]}`))
	require.NoError(t, err)
	assert.Equal(t, EventMessage, f.Event)
	assert.JSONEq(t, `[1,2,3]`, string(f.Data))

	_, err = decodeFrame([]byte(`{"data":1}`))
	assert.Error(t, err)

	_, err = decodeFrame([]byte(`not json`))
	assert.Error(t, err)
}

func TestEncodeEnvelope(t *testing.T) {
	sender := Identity{Room: "lobby", Username: "alice"}

	raw, err := encodeEnvelope(sender, json.RawMessage(`"hi"`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"message","data":{"clientData":{"room":"lobby","username":"alice"},"messageData":"hi"}}`, string(raw))

	raw, err = encodeEnvelope(sender, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"message","data":{"clientData":{"room":"lobby","username":"alice"},"messageData":null}}`, string(raw))
}

func TestNotRegisteredFrame(t *testing.T) {
	raw, err := encodeEvent(EventNotRegistered, nil)
	require.NoError(t, err)
	assert.JSONEq(t, string(notRegisteredFrame), string(raw))
}
