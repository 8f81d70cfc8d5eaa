package state

import (
	"sync"

	"github.com/lotwatch/lotsync/internal/model"
)

// workingSet holds the thread-safe spot and lot tables.
type workingSet struct {
	mu sync.RWMutex

	// All known spots indexed by ID.
	spots map[string]*model.Spot

	// Lot aggregates indexed by lot ID.
	lots map[string]*model.LotAggregate

	// Spot IDs per lot, maintained alongside the spot table.
	members map[string]map[string]struct{}

	// Output channel for subscribers.
	changes chan Change

	applied    int64
	dropped    int64
	recomputes int64
}

func newWorkingSet(changeBuffer int) *workingSet {
	if changeBuffer <= 0 {
		changeBuffer = ChangeBufferSize
	}
	return &workingSet{
		spots:   make(map[string]*model.Spot),
		lots:    make(map[string]*model.LotAggregate),
		members: make(map[string]map[string]struct{}),
		changes: make(chan Change, changeBuffer),
	}
}

// insertSpotLocked adds or replaces a spot and its lot membership.
func (w *workingSet) insertSpotLocked(s model.Spot) {
	if old, ok := w.spots[s.ID]; ok && old.LotID != s.LotID {
		delete(w.members[old.LotID], s.ID)
	}

	sCopy := s
	w.spots[s.ID] = &sCopy

	if w.members[s.LotID] == nil {
		w.members[s.LotID] = make(map[string]struct{})
	}
	w.members[s.LotID][s.ID] = struct{}{}
}

// recomputeLotLocked rescans a lot's member spots and rebuilds its
// aggregate. The four counts always sum to the member count afterwards.
func (w *workingSet) recomputeLotLocked(lotID string) {
	agg := model.LotAggregate{LotID: lotID}
	for spotID := range w.members[lotID] {
		spot, ok := w.spots[spotID]
		if !ok {
			continue
		}
		switch spot.Status {
		case model.StatusAvailable:
			agg.Available++
		case model.StatusOccupied:
			agg.Occupied++
		case model.StatusReserved:
			agg.Reserved++
		case model.StatusMaintenance:
			agg.Maintenance++
		}
		agg.Total++
	}

	w.lots[lotID] = &agg
	w.recomputes++
}

// notifyChange sends a change to subscribers (non-blocking). When the
// feed is full the oldest change is dropped to make room.
func (w *workingSet) notifyChange(change Change) {
	select {
	case w.changes <- change:
	default:
		select {
		case <-w.changes:
			w.changes <- change
		default:
		}
	}
}
