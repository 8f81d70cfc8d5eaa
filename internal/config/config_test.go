package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

const validYAML = `
instance:
  id: test-engine
api:
  base_url: https://api.lotwatch.test/v1
channels:
  - id: main
    url: wss://push.lotwatch.test/socket
    subscriptions:
      - spot_status_update
      - system_alert
`

func TestLoad(t *testing.T) {
	path := writeTempFile(t, validYAML)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "test-engine" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "test-engine")
	}
	if cfg.API.BaseURL != "https://api.lotwatch.test/v1" {
		t.Errorf("API.BaseURL = %q, want %q", cfg.API.BaseURL, "https://api.lotwatch.test/v1")
	}
	if len(cfg.Channels) != 1 {
		t.Fatalf("len(Channels) = %d, want 1", len(cfg.Channels))
	}
	if cfg.Channels[0].ID != "main" {
		t.Errorf("Channels[0].ID = %q, want %q", cfg.Channels[0].ID, "main")
	}
	if len(cfg.Channels[0].Subscriptions) != 2 {
		t.Errorf("len(Subscriptions) = %d, want 2", len(cfg.Channels[0].Subscriptions))
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_PUSH_TOKEN", "secret123")

	yaml := `
instance:
  id: test-engine
api:
  base_url: https://api.lotwatch.test/v1
channels:
  - id: main
    url: wss://push.lotwatch.test/socket
    auth_token: ${TEST_PUSH_TOKEN}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Channels[0].AuthToken != "secret123" {
		t.Errorf("AuthToken = %q, want %q", cfg.Channels[0].AuthToken, "secret123")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	path := writeTempFile(t, validYAML)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Connections.MaxReconnectAttempts != DefaultMaxReconnectAttempts {
		t.Errorf("MaxReconnectAttempts = %d, want %d",
			cfg.Connections.MaxReconnectAttempts, DefaultMaxReconnectAttempts)
	}
	if cfg.Connections.ReconnectBaseDelay != 1*time.Second {
		t.Errorf("ReconnectBaseDelay = %v, want 1s", cfg.Connections.ReconnectBaseDelay)
	}
	if cfg.Dispatch.RetainLimit != DefaultRetainLimit {
		t.Errorf("Dispatch.RetainLimit = %d, want %d", cfg.Dispatch.RetainLimit, DefaultRetainLimit)
	}
	if cfg.Dispatch.RateWindow != 5*time.Second {
		t.Errorf("Dispatch.RateWindow = %v, want 5s", cfg.Dispatch.RateWindow)
	}
	if cfg.Alerts.RetainLimit != 50 {
		t.Errorf("Alerts.RetainLimit = %d, want 50", cfg.Alerts.RetainLimit)
	}
	if cfg.Monitor.ProbeInterval != 30*time.Second {
		t.Errorf("Monitor.ProbeInterval = %v, want 30s", cfg.Monitor.ProbeInterval)
	}
	if cfg.Metrics.Port != DefaultMetricsPort {
		t.Errorf("Metrics.Port = %d, want %d", cfg.Metrics.Port, DefaultMetricsPort)
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want /metrics", cfg.Metrics.Path)
	}
}

func TestLoadAndValidate(t *testing.T) {
	path := writeTempFile(t, validYAML)

	if _, err := LoadAndValidate(path); err != nil {
		t.Fatalf("LoadAndValidate failed: %v", err)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "missing instance id",
			yaml: `
api:
  base_url: https://api.lotwatch.test/v1
channels:
  - id: main
    url: wss://push.lotwatch.test/socket
`,
		},
		{
			name: "missing api base url",
			yaml: `
instance:
  id: test-engine
channels:
  - id: main
    url: wss://push.lotwatch.test/socket
`,
		},
		{
			name: "no channels",
			yaml: `
instance:
  id: test-engine
api:
  base_url: https://api.lotwatch.test/v1
`,
		},
		{
			name: "channel without url",
			yaml: `
instance:
  id: test-engine
api:
  base_url: https://api.lotwatch.test/v1
channels:
  - id: main
`,
		},
		{
			name: "channel url wrong scheme",
			yaml: `
instance:
  id: test-engine
api:
  base_url: https://api.lotwatch.test/v1
channels:
  - id: main
    url: https://push.lotwatch.test/socket
`,
		},
		{
			name: "duplicate channel ids",
			yaml: `
instance:
  id: test-engine
api:
  base_url: https://api.lotwatch.test/v1
channels:
  - id: main
    url: wss://push.lotwatch.test/a
  - id: main
    url: wss://push.lotwatch.test/b
`,
		},
		{
			name: "max delay below base delay",
			yaml: `
instance:
  id: test-engine
api:
  base_url: https://api.lotwatch.test/v1
channels:
  - id: main
    url: wss://push.lotwatch.test/socket
connections:
  reconnect_base_delay: 10s
  reconnect_max_delay: 1s
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTempFile(t, tt.yaml)
			if _, err := LoadAndValidate(path); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file, got nil")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeTempFile(t, "{not: [valid")
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed yaml, got nil")
	}
}
