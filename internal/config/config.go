package config

import "time"

// EngineConfig is the root configuration for a sync engine instance.
type EngineConfig struct {
	Instance    InstanceConfig    `yaml:"instance"`
	API         APIConfig         `yaml:"api"`
	Channels    []ChannelConfig   `yaml:"channels"`
	Connections ConnectionsConfig `yaml:"connections"`
	Dispatch    DispatchConfig    `yaml:"dispatch"`
	Alerts      AlertsConfig      `yaml:"alerts"`
	Monitor     MonitorConfig     `yaml:"monitor"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// InstanceConfig identifies this engine instance.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// APIConfig holds REST snapshot API settings.
type APIConfig struct {
	BaseURL    string        `yaml:"base_url"`
	AuthToken  string        `yaml:"auth_token"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// ChannelConfig describes one push channel to open at startup.
type ChannelConfig struct {
	ID                   string   `yaml:"id"`
	URL                  string   `yaml:"url"`
	AuthToken            string   `yaml:"auth_token"`
	MaxReconnectAttempts int      `yaml:"max_reconnect_attempts"` // 0 = connections default
	Subscriptions        []string `yaml:"subscriptions"`
}

// ConnectionsConfig holds connection manager settings shared by all channels.
type ConnectionsConfig struct {
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	ReconnectBaseDelay   time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay    time.Duration `yaml:"reconnect_max_delay"`
	PingTimeout          time.Duration `yaml:"ping_timeout"`
	WriteTimeout         time.Duration `yaml:"write_timeout"`
	ClientBufferSize     int           `yaml:"client_buffer_size"`
	InboundBufferSize    int           `yaml:"inbound_buffer_size"`
}

// DispatchConfig holds message dispatcher settings.
type DispatchConfig struct {
	RetainLimit int           `yaml:"retain_limit"`
	RateWindow  time.Duration `yaml:"rate_window"`
}

// AlertsConfig holds alert center settings.
type AlertsConfig struct {
	RetainLimit int `yaml:"retain_limit"`
}

// MonitorConfig holds performance monitor settings.
type MonitorConfig struct {
	ProbeInterval time.Duration `yaml:"probe_interval"`
	ProbeTimeout  time.Duration `yaml:"probe_timeout"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}
