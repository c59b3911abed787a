package workout

import (
	"context"
	"testing"
	"time"

	"github.com/claude/ironsession/internal/models"
	"github.com/google/uuid"
)

func sampleRows(sid uuid.UUID, n int) []models.SetLogRow {
	rows := make([]models.SetLogRow, n)
	for i := range rows {
		rows[i] = models.SetLogRow{SessionID: sid, ExerciseName: "Squat", SetNumber: i + 1, WeightKg: 60, Reps: 10}
	}
	return rows
}

// TestReconcilerConfirmsSuccessfulWrites verifies successful per-set writes
// are not flushed again.
func TestReconcilerConfirmsSuccessfulWrites(t *testing.T) {
	store := newFakeStore(newFakeClock())
	r := NewReconciler(store, 4, time.Second, discardLogger())
	rows := sampleRows(uuid.New(), 3)

	for _, row := range rows {
		r.RecordAsync(row)
	}
	r.Wait()

	n, err := r.FlushUnconfirmed(context.Background(), rows)
	if err != nil || n != 0 {
		t.Errorf("FlushUnconfirmed = %d, %v, want 0, nil", n, err)
	}
	if len(store.bulkCalls) != 0 {
		t.Errorf("bulk calls = %d, want 0", len(store.bulkCalls))
	}
}

// TestReconcilerFlushesOnlyFailures verifies the bulk write carries exactly
// the rows whose per-set write failed, and a second flush writes nothing.
func TestReconcilerFlushesOnlyFailures(t *testing.T) {
	store := newFakeStore(newFakeClock())
	r := NewReconciler(store, 4, time.Second, discardLogger())
	rows := sampleRows(uuid.New(), 4)

	r.RecordAsync(rows[0])
	r.RecordAsync(rows[1])
	r.Wait()
	store.set(&store.failInsert, true)
	r.RecordAsync(rows[2])
	r.RecordAsync(rows[3])
	r.Wait()

	n, err := r.FlushUnconfirmed(context.Background(), rows)
	if err != nil || n != 2 {
		t.Fatalf("FlushUnconfirmed = %d, %v, want 2, nil", n, err)
	}
	flushed := store.bulkCalls[0]
	if len(flushed) != 2 || flushed[0].SetNumber != 3 || flushed[1].SetNumber != 4 {
		t.Errorf("flushed = %+v, want sets 3 and 4", flushed)
	}

	if n, _ := r.FlushUnconfirmed(context.Background(), rows); n != 0 {
		t.Errorf("second flush wrote %d rows", n)
	}
}

// TestReconcilerRaceStoresOnce verifies a flush racing the per-set writes
// still leaves one row per key.
func TestReconcilerRaceStoresOnce(t *testing.T) {
	store := newFakeStore(newFakeClock())
	r := NewReconciler(store, 2, time.Second, discardLogger())
	sid := uuid.New()
	rows := sampleRows(sid, 20)

	for _, row := range rows {
		r.RecordAsync(row)
	}
	if _, err := r.FlushUnconfirmed(context.Background(), rows); err != nil {
		t.Fatal(err)
	}
	r.Wait()

	if got := store.storedSets(sid); got != 20 {
		t.Errorf("stored = %d, want 20", got)
	}
	if len(r.Unconfirmed(rows)) != 0 {
		t.Error("rows left unconfirmed after flush")
	}
}

// TestReconcilerFlushFailureKeepsRows verifies a failed flush confirms nothing.
func TestReconcilerFlushFailureKeepsRows(t *testing.T) {
	store := newFakeStore(newFakeClock())
	store.failInsert = true
	store.failBulk = true
	r := NewReconciler(store, 1, time.Second, discardLogger())
	rows := sampleRows(uuid.New(), 2)
	for _, row := range rows {
		r.RecordAsync(row)
		r.Wait()
	}

	if _, err := r.FlushUnconfirmed(context.Background(), rows); err == nil {
		t.Fatal("expected flush error")
	}
	if got := len(r.Unconfirmed(rows)); got != 2 {
		t.Errorf("unconfirmed = %d, want 2", got)
	}
}

// TestReconcilerReset verifies Reset forgets confirmations.
func TestReconcilerReset(t *testing.T) {
	r := NewReconciler(newFakeStore(newFakeClock()), 1, time.Second, discardLogger())
	rows := sampleRows(uuid.New(), 1)
	r.MarkConfirmed(rows...)
	if !r.IsConfirmed(rows[0]) {
		t.Fatal("MarkConfirmed had no effect")
	}
	r.Reset()
	if r.IsConfirmed(rows[0]) {
		t.Error("Reset kept confirmation")
	}
}
