package connection

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/lotwatch/lotsync/internal/model"
)

// Errors
var (
	ErrNotStarted     = errors.New("manager not started")
	ErrUnknownChannel = errors.New("unknown channel")
	ErrNoLiveChannel  = errors.New("no connected channel")
)

// State is the lifecycle state of a channel.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateError        State = "error"
)

// Inbound is an event from any channel, forwarded to the dispatcher.
type Inbound struct {
	ChannelID  string
	EventType  string
	Payload    json.RawMessage
	ReceivedAt time.Time
}

// ChannelInfo is a read-only view of a channel for consumers.
type ChannelInfo struct {
	ID                   string
	EndpointURL          string
	State                State
	LastConnectedAt      time.Time
	ReconnectAttempts    int
	MaxReconnectAttempts int
	Subscriptions        []model.EventType
}

// OpenOptions configures a single channel at Open time.
type OpenOptions struct {
	AuthToken            string
	MaxReconnectAttempts int               // 0 = manager default
	Subscriptions        []model.EventType // Initial subscription set
}

// Alerter receives alerts raised by the manager (retry exhaustion).
type Alerter interface {
	Raise(alert model.Alert)
}

// ManagerConfig configures the Connection Manager.
type ManagerConfig struct {
	MaxReconnectAttempts int           // Retry budget per channel
	ReconnectBaseDelay   time.Duration // First retry delay (doubles per attempt)
	ReconnectMaxDelay    time.Duration // Delay cap
	PingTimeout          time.Duration // Transport stale-connection threshold
	WriteTimeout         time.Duration // Transport write deadline
	ClientBufferSize     int           // Per-channel inbound buffer
	InboundBufferSize    int           // Merged output buffer to the dispatcher

	// OnTransition, when set, observes every channel state transition.
	// Used for tests and audit alongside the structured log.
	OnTransition func(channelID string, from, to State)

	// OnRetryScheduled, when set, observes every scheduled reconnect delay.
	OnRetryScheduled func(channelID string, attempt int, delay time.Duration)
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		MaxReconnectAttempts: 5,
		ReconnectBaseDelay:   1 * time.Second,
		ReconnectMaxDelay:    60 * time.Second,
		PingTimeout:          60 * time.Second,
		WriteTimeout:         5 * time.Second,
		ClientBufferSize:     1000,
		InboundBufferSize:    10000,
	}
}

// ManagerStats provides statistics about the connection manager.
type ManagerStats struct {
	TotalChannels      int
	ConnectedCount     int
	TotalSubscriptions int
}
