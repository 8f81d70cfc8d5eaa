package state

import (
	"log/slog"
	"sort"
	"time"

	"github.com/lotwatch/lotsync/internal/model"
)

// Reconciler maintains the spot and lot working set.
type Reconciler interface {
	// LoadSnapshot replaces the entire working set. Aggregates for lots
	// with member spots are recomputed from the spots; lots with no
	// members keep the provided values.
	LoadSnapshot(lots []model.LotAggregate, spots []model.Spot)

	// ApplySpotUpdate applies one status change. Updates for unknown
	// spots are dropped and counted.
	ApplySpotUpdate(ev model.SpotUpdateEvent)

	// ApplyBulkSpotUpdates applies all status changes first, then
	// recomputes each affected lot exactly once.
	ApplyBulkSpotUpdates(evs []model.SpotUpdateEvent)

	// ApplyLotCapacityUpdate replaces a lot aggregate wholesale.
	ApplyLotCapacityUpdate(agg model.LotAggregate)

	// Spot returns one spot by ID.
	Spot(id string) (model.Spot, bool)

	// Lot returns one lot aggregate by ID.
	Lot(id string) (model.LotAggregate, bool)

	// Spots returns every tracked spot, ordered by ID.
	Spots() []model.Spot

	// Lots returns every lot aggregate, ordered by lot ID.
	Lots() []model.LotAggregate

	// SubscribeChanges returns the working-set change feed.
	SubscribeChanges() <-chan Change

	// Stats returns current reconciler statistics.
	Stats() Stats
}

// reconciler is the internal implementation.
type reconciler struct {
	cfg    ReconcilerConfig
	logger *slog.Logger
	set    *workingSet
}

// NewReconciler creates a new State Reconciler.
func NewReconciler(cfg ReconcilerConfig, logger *slog.Logger) Reconciler {
	if logger == nil {
		logger = slog.Default()
	}

	return &reconciler{
		cfg:    cfg,
		logger: logger,
		set:    newWorkingSet(cfg.ChangeBufferSize),
	}
}

// LoadSnapshot replaces the working set.
func (r *reconciler) LoadSnapshot(lots []model.LotAggregate, spots []model.Spot) {
	w := r.set

	w.mu.Lock()
	w.spots = make(map[string]*model.Spot, len(spots))
	w.lots = make(map[string]*model.LotAggregate, len(lots))
	w.members = make(map[string]map[string]struct{}, len(lots))

	for _, lot := range lots {
		lotCopy := lot
		w.lots[lot.LotID] = &lotCopy
	}
	for _, spot := range spots {
		w.insertSpotLocked(spot)
	}
	for lotID, ids := range w.members {
		if len(ids) > 0 {
			w.recomputeLotLocked(lotID)
		}
	}
	w.mu.Unlock()

	w.notifyChange(Change{Kind: ChangeSnapshotLoaded})

	r.logger.Info("snapshot loaded", "lots", len(lots), "spots", len(spots))
}

// ApplySpotUpdate applies one status change.
func (r *reconciler) ApplySpotUpdate(ev model.SpotUpdateEvent) {
	w := r.set

	w.mu.Lock()
	lotID, ok := r.applyOneLocked(ev)
	if ok {
		w.recomputeLotLocked(lotID)
	}
	w.mu.Unlock()

	if !ok {
		return
	}

	if m := r.cfg.Metrics; m != nil {
		m.SpotUpdatesApplied.Inc()
		m.LotRecomputes.Inc()
	}
	w.notifyChange(Change{Kind: ChangeSpotUpdated, SpotID: ev.SpotID, LotID: lotID})
}

// ApplyBulkSpotUpdates applies all changes, then recomputes each
// affected lot once.
func (r *reconciler) ApplyBulkSpotUpdates(evs []model.SpotUpdateEvent) {
	if len(evs) == 0 {
		return
	}
	w := r.set

	affected := make(map[string]struct{})
	applied := 0

	w.mu.Lock()
	for _, ev := range evs {
		if lotID, ok := r.applyOneLocked(ev); ok {
			affected[lotID] = struct{}{}
			applied++
		}
	}
	for lotID := range affected {
		w.recomputeLotLocked(lotID)
	}
	w.mu.Unlock()

	if m := r.cfg.Metrics; m != nil {
		m.SpotUpdatesApplied.Add(float64(applied))
		m.LotRecomputes.Add(float64(len(affected)))
	}
	for lotID := range affected {
		w.notifyChange(Change{Kind: ChangeSpotUpdated, LotID: lotID})
	}

	r.logger.Debug("bulk update applied",
		"events", len(evs), "applied", applied, "lots_recomputed", len(affected))
}

// applyOneLocked sets one spot's status. Returns the spot's lot ID and
// whether the update was applied. Caller holds the write lock.
func (r *reconciler) applyOneLocked(ev model.SpotUpdateEvent) (string, bool) {
	w := r.set

	spot, ok := w.spots[ev.SpotID]
	if !ok {
		w.dropped++
		if m := r.cfg.Metrics; m != nil {
			m.SpotUpdatesDropped.Inc()
		}
		r.logger.Debug("update for unknown spot dropped", "spot", ev.SpotID, "lot", ev.LotID)
		return "", false
	}
	if !ev.NewStatus.Valid() {
		w.dropped++
		if m := r.cfg.Metrics; m != nil {
			m.SpotUpdatesDropped.Inc()
		}
		r.logger.Warn("update with invalid status dropped", "spot", ev.SpotID, "status", ev.NewStatus)
		return "", false
	}

	spot.Status = ev.NewStatus
	if !ev.Timestamp.IsZero() {
		spot.LastUpdated = ev.Timestamp
	} else {
		spot.LastUpdated = time.Now()
	}
	w.applied++
	return spot.LotID, true
}

// ApplyLotCapacityUpdate replaces a lot aggregate wholesale.
func (r *reconciler) ApplyLotCapacityUpdate(agg model.LotAggregate) {
	w := r.set

	w.mu.Lock()
	aggCopy := agg
	w.lots[agg.LotID] = &aggCopy
	w.mu.Unlock()

	w.notifyChange(Change{Kind: ChangeLotReplaced, LotID: agg.LotID})

	r.logger.Debug("lot capacity replaced", "lot", agg.LotID, "total", agg.Total)
}

// Spot returns one spot by ID.
func (r *reconciler) Spot(id string) (model.Spot, bool) {
	w := r.set
	w.mu.RLock()
	defer w.mu.RUnlock()

	s, ok := w.spots[id]
	if !ok {
		return model.Spot{}, false
	}
	return *s, true
}

// Lot returns one lot aggregate by ID.
func (r *reconciler) Lot(id string) (model.LotAggregate, bool) {
	w := r.set
	w.mu.RLock()
	defer w.mu.RUnlock()

	agg, ok := w.lots[id]
	if !ok {
		return model.LotAggregate{}, false
	}
	return *agg, true
}

// Spots returns every tracked spot, ordered by ID.
func (r *reconciler) Spots() []model.Spot {
	w := r.set
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]model.Spot, 0, len(w.spots))
	for _, s := range w.spots {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Lots returns every lot aggregate, ordered by lot ID.
func (r *reconciler) Lots() []model.LotAggregate {
	w := r.set
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]model.LotAggregate, 0, len(w.lots))
	for _, agg := range w.lots {
		out = append(out, *agg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LotID < out[j].LotID })
	return out
}

// SubscribeChanges returns the working-set change feed.
func (r *reconciler) SubscribeChanges() <-chan Change {
	return r.set.changes
}

// Stats returns current statistics.
func (r *reconciler) Stats() Stats {
	w := r.set
	w.mu.RLock()
	defer w.mu.RUnlock()

	return Stats{
		SpotsTracked: len(w.spots),
		LotsTracked:  len(w.lots),
		Applied:      w.applied,
		Dropped:      w.dropped,
		Recomputes:   w.recomputes,
	}
}
