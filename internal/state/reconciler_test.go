package state

import (
	"fmt"
	"testing"
	"time"

	"github.com/lotwatch/lotsync/internal/model"
)

func testSnapshot() ([]model.LotAggregate, []model.Spot) {
	lots := []model.LotAggregate{
		{LotID: "l1"},
		{LotID: "l2"},
		{LotID: "empty", Available: 40, Total: 40},
	}
	spots := []model.Spot{
		{ID: "s1", LotID: "l1", Status: model.StatusAvailable},
		{ID: "s2", LotID: "l1", Status: model.StatusOccupied},
		{ID: "s3", LotID: "l1", Status: model.StatusReserved},
		{ID: "s4", LotID: "l2", Status: model.StatusAvailable},
		{ID: "s5", LotID: "l2", Status: model.StatusMaintenance},
	}
	return lots, spots
}

func newTestReconciler(t *testing.T) Reconciler {
	t.Helper()
	r := NewReconciler(DefaultReconcilerConfig(), nil)
	r.LoadSnapshot(testSnapshot())
	return r
}

// checkInvariant verifies each lot's counts sum to its spot membership.
func checkInvariant(t *testing.T, r Reconciler) {
	t.Helper()

	membersByLot := make(map[string]int)
	for _, s := range r.Spots() {
		membersByLot[s.LotID]++
	}
	for _, lot := range r.Lots() {
		members := membersByLot[lot.LotID]
		if members == 0 {
			continue // lots without member spots keep their given values
		}
		if lot.Sum() != members {
			t.Errorf("lot %s: counts sum %d, members %d", lot.LotID, lot.Sum(), members)
		}
		if lot.Total != members {
			t.Errorf("lot %s: total %d, members %d", lot.LotID, lot.Total, members)
		}
	}
}

func TestReconciler_LoadSnapshot(t *testing.T) {
	r := newTestReconciler(t)

	if got := len(r.Spots()); got != 5 {
		t.Fatalf("len(Spots) = %d, want 5", got)
	}
	if got := len(r.Lots()); got != 3 {
		t.Fatalf("len(Lots) = %d, want 3", got)
	}

	l1, ok := r.Lot("l1")
	if !ok {
		t.Fatal("lot l1 not found")
	}
	want := model.LotAggregate{LotID: "l1", Available: 1, Occupied: 1, Reserved: 1, Total: 3}
	if l1 != want {
		t.Errorf("l1 = %+v, want %+v", l1, want)
	}

	// A lot with no member spots keeps the snapshot's aggregate.
	empty, ok := r.Lot("empty")
	if !ok {
		t.Fatal("lot empty not found")
	}
	if empty.Available != 40 || empty.Total != 40 {
		t.Errorf("empty lot = %+v, want given values preserved", empty)
	}

	checkInvariant(t, r)
}

func TestReconciler_ApplySpotUpdate(t *testing.T) {
	r := newTestReconciler(t)

	ts := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	r.ApplySpotUpdate(model.SpotUpdateEvent{
		SpotID:         "s1",
		LotID:          "l1",
		PreviousStatus: model.StatusAvailable,
		NewStatus:      model.StatusOccupied,
		Timestamp:      ts,
	})

	s1, ok := r.Spot("s1")
	if !ok {
		t.Fatal("spot s1 not found")
	}
	if s1.Status != model.StatusOccupied {
		t.Errorf("status = %q, want occupied", s1.Status)
	}
	if !s1.LastUpdated.Equal(ts) {
		t.Errorf("LastUpdated = %v, want %v", s1.LastUpdated, ts)
	}

	l1, _ := r.Lot("l1")
	if l1.Available != 0 || l1.Occupied != 2 {
		t.Errorf("l1 = %+v, want Available=0 Occupied=2", l1)
	}
	checkInvariant(t, r)

	stats := r.Stats()
	if stats.Applied != 1 {
		t.Errorf("Applied = %d, want 1", stats.Applied)
	}
}

func TestReconciler_ApplySpotUpdateIdempotent(t *testing.T) {
	r := newTestReconciler(t)

	ev := model.SpotUpdateEvent{SpotID: "s1", LotID: "l1", NewStatus: model.StatusOccupied}
	r.ApplySpotUpdate(ev)
	r.ApplySpotUpdate(ev)

	l1, _ := r.Lot("l1")
	if l1.Occupied != 2 {
		t.Errorf("Occupied = %d, want 2 (reapply must not double count)", l1.Occupied)
	}
	checkInvariant(t, r)
}

func TestReconciler_UnknownSpotDropped(t *testing.T) {
	r := newTestReconciler(t)

	r.ApplySpotUpdate(model.SpotUpdateEvent{
		SpotID:    "ghost",
		LotID:     "l1",
		NewStatus: model.StatusOccupied,
	})

	stats := r.Stats()
	if stats.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", stats.Dropped)
	}
	if stats.Applied != 0 {
		t.Errorf("Applied = %d, want 0", stats.Applied)
	}

	// Working set untouched.
	l1, _ := r.Lot("l1")
	if l1.Available != 1 {
		t.Errorf("l1.Available = %d, want 1", l1.Available)
	}
	checkInvariant(t, r)
}

func TestReconciler_InvalidStatusDropped(t *testing.T) {
	r := newTestReconciler(t)

	r.ApplySpotUpdate(model.SpotUpdateEvent{
		SpotID:    "s1",
		LotID:     "l1",
		NewStatus: model.SpotStatus("teleporting"),
	})

	stats := r.Stats()
	if stats.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", stats.Dropped)
	}
	s1, _ := r.Spot("s1")
	if s1.Status != model.StatusAvailable {
		t.Errorf("status = %q, want unchanged available", s1.Status)
	}
}

func TestReconciler_BulkRecomputesOncePerLot(t *testing.T) {
	r := newTestReconciler(t)
	before := r.Stats().Recomputes

	r.ApplyBulkSpotUpdates([]model.SpotUpdateEvent{
		{SpotID: "s1", LotID: "l1", NewStatus: model.StatusOccupied},
		{SpotID: "s2", LotID: "l1", NewStatus: model.StatusAvailable},
		{SpotID: "s3", LotID: "l1", NewStatus: model.StatusOccupied},
		{SpotID: "s4", LotID: "l2", NewStatus: model.StatusOccupied},
		{SpotID: "ghost", LotID: "l2", NewStatus: model.StatusOccupied},
	})

	stats := r.Stats()
	// Two affected lots, one recompute each.
	if got := stats.Recomputes - before; got != 2 {
		t.Errorf("recomputes = %d, want 2", got)
	}
	if stats.Applied != 4 {
		t.Errorf("Applied = %d, want 4", stats.Applied)
	}
	if stats.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", stats.Dropped)
	}

	l1, _ := r.Lot("l1")
	want := model.LotAggregate{LotID: "l1", Available: 1, Occupied: 2, Total: 3}
	if l1 != want {
		t.Errorf("l1 = %+v, want %+v", l1, want)
	}
	checkInvariant(t, r)
}

func TestReconciler_LotCapacityReplace(t *testing.T) {
	r := newTestReconciler(t)

	r.ApplyLotCapacityUpdate(model.LotAggregate{
		LotID:     "l1",
		Available: 90,
		Occupied:  10,
		Total:     100,
	})

	l1, _ := r.Lot("l1")
	if l1.Available != 90 || l1.Total != 100 {
		t.Errorf("l1 = %+v, want replaced values", l1)
	}

	// The next spot update recomputes from members again.
	r.ApplySpotUpdate(model.SpotUpdateEvent{SpotID: "s1", LotID: "l1", NewStatus: model.StatusOccupied})
	l1, _ = r.Lot("l1")
	if l1.Total != 3 {
		t.Errorf("l1.Total = %d, want 3 after recompute", l1.Total)
	}
	checkInvariant(t, r)
}

func TestReconciler_ChangeFeed(t *testing.T) {
	r := newTestReconciler(t)
	changes := r.SubscribeChanges()

	// Drain the snapshot notification.
	select {
	case c := <-changes:
		if c.Kind != ChangeSnapshotLoaded {
			t.Fatalf("first change = %q, want snapshot_loaded", c.Kind)
		}
	default:
		t.Fatal("snapshot change not delivered")
	}

	r.ApplySpotUpdate(model.SpotUpdateEvent{SpotID: "s1", LotID: "l1", NewStatus: model.StatusOccupied})

	select {
	case c := <-changes:
		if c.Kind != ChangeSpotUpdated || c.SpotID != "s1" || c.LotID != "l1" {
			t.Errorf("change = %+v, want spot_updated s1/l1", c)
		}
	default:
		t.Fatal("spot change not delivered")
	}

	// Dropped updates never notify.
	r.ApplySpotUpdate(model.SpotUpdateEvent{SpotID: "ghost", NewStatus: model.StatusOccupied})
	select {
	case c := <-changes:
		t.Errorf("unexpected change for dropped update: %+v", c)
	default:
	}
}

func TestReconciler_ChangeFeedDropsOldest(t *testing.T) {
	cfg := DefaultReconcilerConfig()
	cfg.ChangeBufferSize = 2
	r := NewReconciler(cfg, nil)

	spots := make([]model.Spot, 10)
	for i := range spots {
		spots[i] = model.Spot{ID: fmt.Sprintf("s%d", i), LotID: "l1", Status: model.StatusAvailable}
	}
	r.LoadSnapshot([]model.LotAggregate{{LotID: "l1"}}, spots)

	// Overflow the feed; applies must never block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			r.ApplySpotUpdate(model.SpotUpdateEvent{
				SpotID: fmt.Sprintf("s%d", i), LotID: "l1", NewStatus: model.StatusOccupied,
			})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ApplySpotUpdate blocked on a full change feed")
	}

	// The newest change survived the drop-oldest policy.
	var last Change
	for {
		select {
		case c := <-r.SubscribeChanges():
			last = c
			continue
		default:
		}
		break
	}
	if last.SpotID != "s9" {
		t.Errorf("last change = %+v, want newest (s9)", last)
	}
}
