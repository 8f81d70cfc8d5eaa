package model

import (
	"time"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// Spot and Lot Types
// -----------------------------------------------------------------------------

// SpotStatus is the occupancy state of a single parking spot.
type SpotStatus string

const (
	StatusAvailable   SpotStatus = "available"
	StatusOccupied    SpotStatus = "occupied"
	StatusReserved    SpotStatus = "reserved"
	StatusMaintenance SpotStatus = "maintenance"
)

// Valid reports whether s is one of the four known spot statuses.
func (s SpotStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusOccupied, StatusReserved, StatusMaintenance:
		return true
	}
	return false
}

// Spot is a single parking spot as held by the reconciler.
type Spot struct {
	ID          string     // Primary key (e.g., "spot-A-117")
	LotID       string     // Owning lot
	Status      SpotStatus // Current occupancy state
	LastUpdated time.Time  // Local arrival time of the last applied update
}

// LotAggregate holds per-lot summary counts derived from member spot statuses.
// The four status counts always sum to Total for spot-derived aggregates.
type LotAggregate struct {
	LotID       string
	Available   int
	Occupied    int
	Reserved    int
	Maintenance int
	Total       int
}

// Sum returns the total of the four status counts.
func (a LotAggregate) Sum() int {
	return a.Available + a.Occupied + a.Reserved + a.Maintenance
}

// SpotUpdateEvent is a single spot status transition pushed by the backend.
type SpotUpdateEvent struct {
	SpotID         string     `json:"spot_id"`
	LotID          string     `json:"lot_id"`
	PreviousStatus SpotStatus `json:"previous_status"`
	NewStatus      SpotStatus `json:"new_status"`
	Timestamp      time.Time  `json:"timestamp"`

	// Optional context
	VehicleID     string `json:"vehicle_id,omitempty"`
	ReservationID string `json:"reservation_id,omitempty"`
	UserID        string `json:"user_id,omitempty"`
}

// -----------------------------------------------------------------------------
// Event Classification
// -----------------------------------------------------------------------------

// EventType classifies an inbound push event.
type EventType string

const (
	EventSpotStatusUpdate  EventType = "spot_status_update"
	EventBulkSpotUpdates   EventType = "bulk_spot_updates"
	EventLotCapacityUpdate EventType = "lot_capacity_update"
	EventSystemAlert       EventType = "system_alert"
	EventAnalyticsUpdate   EventType = "analytics_update"
)

// -----------------------------------------------------------------------------
// Alerts
// -----------------------------------------------------------------------------

// Severity grades a system alert.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
	SeveritySuccess Severity = "success"
)

// AlertAction is an optional action attached to an alert.
type AlertAction struct {
	Label  string `json:"label"`
	Action string `json:"action"`
}

// Alert is a single system alert held by the alert center.
type Alert struct {
	ID        uuid.UUID
	Severity  Severity
	Title     string
	Message   string
	Timestamp time.Time
	AutoHide  bool
	Duration  time.Duration // Only meaningful when AutoHide is set
	Actions   []AlertAction
	Read      bool // Set by Acknowledge; keeps acknowledge idempotent
}

// -----------------------------------------------------------------------------
// Telemetry
// -----------------------------------------------------------------------------

// PerformanceSnapshot is the current rolling view of engine performance.
// A single record updated in place; no history is retained.
type PerformanceSnapshot struct {
	MessageRate             float64   // Messages per second over the last rate window
	AverageLatencyMs        float64   // Rolling average probe round-trip, milliseconds
	LastLatencyCheck        time.Time // When the latency value was last refreshed
	ConnectionUptimeSeconds float64   // Wall-clock time with any channel connected
}
