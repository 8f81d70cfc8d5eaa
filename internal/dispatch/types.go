package dispatch

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/lotwatch/lotsync/internal/metrics"
	"github.com/lotwatch/lotsync/internal/model"
)

// InboundMessage is one retained message in the dispatch log.
type InboundMessage struct {
	ID        uuid.UUID
	ChannelID string
	EventType model.EventType
	Payload   json.RawMessage
	ArrivedAt time.Time
	Processed bool
}

// Reconciler applies state-bearing events to the working set.
type Reconciler interface {
	ApplySpotUpdate(ev model.SpotUpdateEvent)
	ApplyBulkSpotUpdates(evs []model.SpotUpdateEvent)
	ApplyLotCapacityUpdate(agg model.LotAggregate)
}

// Alerter receives server-pushed system alerts.
type Alerter interface {
	Raise(alert model.Alert)
}

// AnalyticsSink receives analytics payloads. Optional.
type AnalyticsSink interface {
	Record(payload json.RawMessage)
}

// RateSink receives the derived ingest rate at each window rollover.
type RateSink interface {
	SetMessageRate(perSecond float64)
}

// DispatcherConfig configures the Message Dispatcher.
type DispatcherConfig struct {
	RetainLimit int           // Retained log capacity
	RateWindow  time.Duration // Elapsed time per rate sample

	Metrics *metrics.Metrics // Optional
}

// DefaultDispatcherConfig returns sensible defaults.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		RetainLimit: 1000,
		RateWindow:  5 * time.Second,
	}
}

// DispatcherStats contains runtime statistics.
type DispatcherStats struct {
	Ingested    int64
	Routed      int64
	ParseErrors int64
	Unknown     int64
	Evicted     int64
}

// bulkPayload is the wire shape of a bulk_spot_updates event.
type bulkPayload struct {
	Updates []model.SpotUpdateEvent `json:"updates"`
}

// lotCapacityPayload is the wire shape of a lot_capacity_update event.
type lotCapacityPayload struct {
	LotID       string `json:"lot_id"`
	Available   int    `json:"available"`
	Occupied    int    `json:"occupied"`
	Reserved    int    `json:"reserved"`
	Maintenance int    `json:"maintenance"`
	Total       int    `json:"total"`
}

func (p lotCapacityPayload) toModel() model.LotAggregate {
	return model.LotAggregate{
		LotID:       p.LotID,
		Available:   p.Available,
		Occupied:    p.Occupied,
		Reserved:    p.Reserved,
		Maintenance: p.Maintenance,
		Total:       p.Total,
	}
}

// alertPayload is the wire shape of a system_alert event.
type alertPayload struct {
	Severity model.Severity      `json:"severity"`
	Title    string              `json:"title"`
	Message  string              `json:"message"`
	AutoHide bool                `json:"auto_hide"`
	Duration time.Duration       `json:"duration,omitempty"`
	Actions  []model.AlertAction `json:"actions,omitempty"`
}

func (p alertPayload) toModel(arrivedAt time.Time) model.Alert {
	severity := p.Severity
	if severity == "" {
		severity = model.SeverityInfo
	}
	return model.Alert{
		ID:        uuid.New(),
		Severity:  severity,
		Title:     p.Title,
		Message:   p.Message,
		Timestamp: arrivedAt,
		AutoHide:  p.AutoHide,
		Duration:  p.Duration,
		Actions:   p.Actions,
	}
}
