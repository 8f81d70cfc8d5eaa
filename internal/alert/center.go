package alert

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lotwatch/lotsync/internal/metrics"
	"github.com/lotwatch/lotsync/internal/model"
)

// DefaultRetainLimit caps the alert list.
const DefaultRetainLimit = 50

// CenterConfig configures the Alert Center.
type CenterConfig struct {
	RetainLimit int              // Alert list capacity
	Metrics     *metrics.Metrics // Optional
}

// DefaultCenterConfig returns sensible defaults.
func DefaultCenterConfig() CenterConfig {
	return CenterConfig{RetainLimit: DefaultRetainLimit}
}

// Center holds alerts newest-first with unread accounting.
type Center struct {
	cfg    CenterConfig
	logger *slog.Logger

	mu     sync.RWMutex
	alerts []model.Alert
	unread int
}

// NewCenter creates a new Alert Center.
func NewCenter(cfg CenterConfig, logger *slog.Logger) *Center {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RetainLimit <= 0 {
		cfg.RetainLimit = DefaultRetainLimit
	}

	return &Center{
		cfg:    cfg,
		logger: logger,
	}
}

// Raise adds an alert at the front of the list. Alerts without an ID or
// timestamp get one assigned. The list is truncated to the retain
// limit; truncated unread alerts correct the unread count.
func (c *Center) Raise(alert model.Alert) {
	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now()
	}
	alert.Read = false

	c.mu.Lock()
	c.alerts = append([]model.Alert{alert}, c.alerts...)
	c.unread++

	for len(c.alerts) > c.cfg.RetainLimit {
		victim := c.alerts[len(c.alerts)-1]
		if !victim.Read {
			c.unread--
		}
		c.alerts = c.alerts[:len(c.alerts)-1]
	}
	unread := c.unread
	c.mu.Unlock()

	if m := c.cfg.Metrics; m != nil {
		m.AlertsRaised.WithLabelValues(string(alert.Severity)).Inc()
		m.UnreadAlerts.Set(float64(unread))
	}

	c.logger.Info("alert raised",
		"id", alert.ID, "severity", alert.Severity, "title", alert.Title)
}

// Acknowledge marks one alert read. Idempotent: acknowledging an
// already-read or unknown alert changes nothing.
func (c *Center) Acknowledge(id uuid.UUID) {
	c.mu.Lock()
	for i := range c.alerts {
		if c.alerts[i].ID == id {
			if !c.alerts[i].Read {
				c.alerts[i].Read = true
				c.unread--
			}
			break
		}
	}
	unread := c.unread
	c.mu.Unlock()

	if m := c.cfg.Metrics; m != nil {
		m.UnreadAlerts.Set(float64(unread))
	}
}

// Remove deletes one alert by ID.
func (c *Center) Remove(id uuid.UUID) {
	c.mu.Lock()
	for i := range c.alerts {
		if c.alerts[i].ID == id {
			if !c.alerts[i].Read {
				c.unread--
			}
			c.alerts = append(c.alerts[:i], c.alerts[i+1:]...)
			break
		}
	}
	unread := c.unread
	c.mu.Unlock()

	if m := c.cfg.Metrics; m != nil {
		m.UnreadAlerts.Set(float64(unread))
	}
}

// Clear removes every alert and resets the unread count.
func (c *Center) Clear() {
	c.mu.Lock()
	c.alerts = nil
	c.unread = 0
	c.mu.Unlock()

	if m := c.cfg.Metrics; m != nil {
		m.UnreadAlerts.Set(0)
	}
}

// Alerts returns a copy of the alert list, newest first.
func (c *Center) Alerts() []model.Alert {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]model.Alert, len(c.alerts))
	copy(out, c.alerts)
	return out
}

// UnreadCount returns the number of unread alerts, never negative.
func (c *Center) UnreadCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.unread < 0 {
		return 0
	}
	return c.unread
}
