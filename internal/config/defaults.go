package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultAPITimeout           = 30 * time.Second
	DefaultMaxRetries           = 3
	DefaultMaxReconnectAttempts = 5
	DefaultReconnectBaseDelay   = 1 * time.Second
	DefaultReconnectMaxDelay    = 60 * time.Second
	DefaultPingTimeout          = 60 * time.Second
	DefaultWriteTimeout         = 5 * time.Second
	DefaultClientBufferSize     = 1000
	DefaultInboundBufferSize    = 10000
	DefaultRetainLimit          = 1000
	DefaultRateWindow           = 5 * time.Second
	DefaultAlertRetainLimit     = 50
	DefaultProbeInterval        = 30 * time.Second
	DefaultProbeTimeout         = 5 * time.Second
	DefaultMetricsPort          = 9090
	DefaultMetricsPath          = "/metrics"
)

func (c *EngineConfig) applyDefaults() {
	// API defaults
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}

	// Connections defaults
	if c.Connections.MaxReconnectAttempts == 0 {
		c.Connections.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.Connections.ReconnectBaseDelay == 0 {
		c.Connections.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Connections.ReconnectMaxDelay == 0 {
		c.Connections.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Connections.PingTimeout == 0 {
		c.Connections.PingTimeout = DefaultPingTimeout
	}
	if c.Connections.WriteTimeout == 0 {
		c.Connections.WriteTimeout = DefaultWriteTimeout
	}
	if c.Connections.ClientBufferSize == 0 {
		c.Connections.ClientBufferSize = DefaultClientBufferSize
	}
	if c.Connections.InboundBufferSize == 0 {
		c.Connections.InboundBufferSize = DefaultInboundBufferSize
	}

	// Dispatch defaults
	if c.Dispatch.RetainLimit == 0 {
		c.Dispatch.RetainLimit = DefaultRetainLimit
	}
	if c.Dispatch.RateWindow == 0 {
		c.Dispatch.RateWindow = DefaultRateWindow
	}

	// Alerts defaults
	if c.Alerts.RetainLimit == 0 {
		c.Alerts.RetainLimit = DefaultAlertRetainLimit
	}

	// Monitor defaults
	if c.Monitor.ProbeInterval == 0 {
		c.Monitor.ProbeInterval = DefaultProbeInterval
	}
	if c.Monitor.ProbeTimeout == 0 {
		c.Monitor.ProbeTimeout = DefaultProbeTimeout
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}
