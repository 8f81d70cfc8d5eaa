package state

import (
	"github.com/lotwatch/lotsync/internal/metrics"
)

// ChangeBufferSize is the default capacity of the change feed.
const ChangeBufferSize = 1000

// ChangeKind classifies a working-set change.
type ChangeKind string

const (
	// ChangeSpotUpdated: one spot's status changed, its lot recomputed.
	ChangeSpotUpdated ChangeKind = "spot_updated"
	// ChangeLotReplaced: a lot aggregate was replaced wholesale.
	ChangeLotReplaced ChangeKind = "lot_replaced"
	// ChangeSnapshotLoaded: the entire working set was replaced.
	ChangeSnapshotLoaded ChangeKind = "snapshot_loaded"
)

// Change describes one working-set change for subscribers.
type Change struct {
	Kind   ChangeKind
	SpotID string // set for spot_updated
	LotID  string // set for spot_updated and lot_replaced
}

// ReconcilerConfig configures the State Reconciler.
type ReconcilerConfig struct {
	ChangeBufferSize int              // Change feed capacity
	Metrics          *metrics.Metrics // Optional
}

// DefaultReconcilerConfig returns sensible defaults.
func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{
		ChangeBufferSize: ChangeBufferSize,
	}
}

// Stats contains reconciler runtime statistics.
type Stats struct {
	SpotsTracked int
	LotsTracked  int
	Applied      int64
	Dropped      int64
	Recomputes   int64
}
