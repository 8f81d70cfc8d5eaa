package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *EngineConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}

	if len(c.Channels) == 0 {
		return errors.New("at least one channel is required")
	}
	seen := make(map[string]struct{}, len(c.Channels))
	for i, ch := range c.Channels {
		if err := ch.validate(fmt.Sprintf("channels[%d]", i)); err != nil {
			return err
		}
		if _, dup := seen[ch.ID]; dup {
			return fmt.Errorf("channels[%d]: duplicate id %q", i, ch.ID)
		}
		seen[ch.ID] = struct{}{}
	}

	if c.Connections.MaxReconnectAttempts < 1 {
		return errors.New("connections.max_reconnect_attempts must be >= 1")
	}
	if c.Connections.ReconnectMaxDelay < c.Connections.ReconnectBaseDelay {
		return errors.New("connections.reconnect_max_delay must be >= reconnect_base_delay")
	}

	if c.Dispatch.RetainLimit < 1 {
		return errors.New("dispatch.retain_limit must be >= 1")
	}
	if c.Alerts.RetainLimit < 1 {
		return errors.New("alerts.retain_limit must be >= 1")
	}

	if c.Monitor.ProbeInterval <= 0 {
		return errors.New("monitor.probe_interval must be > 0")
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	return nil
}

func (ch *ChannelConfig) validate(prefix string) error {
	if ch.ID == "" {
		return fmt.Errorf("%s.id is required", prefix)
	}
	if ch.URL == "" {
		return fmt.Errorf("%s.url is required", prefix)
	}
	if !strings.HasPrefix(ch.URL, "ws://") && !strings.HasPrefix(ch.URL, "wss://") {
		return fmt.Errorf("%s.url must use ws:// or wss://, got %q", prefix, ch.URL)
	}
	if ch.MaxReconnectAttempts < 0 {
		return fmt.Errorf("%s.max_reconnect_attempts must be >= 0", prefix)
	}
	return nil
}
