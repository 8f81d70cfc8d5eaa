package transport

import (
	"encoding/json"
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrProbeTimeout    = errors.New("latency probe timeout")
	ErrAlreadyClosed   = errors.New("already closed")
)

// Envelope is the wire format for named events in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Inbound is a single received event with its local arrival timestamp.
//
// Frames that do not parse as an Envelope surface with an empty Type and the
// raw frame bytes in Data; classification of unknown shapes happens
// downstream, never here.
type Inbound struct {
	Type       string
	Data       json.RawMessage
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// SubscribePayload is the data carried by subscribe/unsubscribe events.
type SubscribePayload struct {
	Events []string `json:"events"`
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL          string        // WebSocket endpoint (e.g., wss://sync.example.com/v1/stream)
	AuthToken    string        // Bearer token, empty = no auth header
	PingTimeout  time.Duration // Max time without ping/pong before the connection is stale
	WriteTimeout time.Duration // Write deadline for sends
	BufferSize   int           // Inbound event channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   1000,
	}
}
