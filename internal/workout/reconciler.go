package workout

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/claude/ironsession/internal/metrics"
	"github.com/claude/ironsession/internal/models"
	"golang.org/x/sync/errgroup"
)

// Reconciler writes each logged set as soon as it is recorded and remembers
// which keys the store confirmed. Whatever was not confirmed is written in one
// bulk insert at finish. The store ignores duplicate keys, so a row written by
// both paths is stored once.
type Reconciler struct {
	store   SetWriter
	timeout time.Duration
	logger  *slog.Logger

	writes errgroup.Group

	mu        sync.Mutex
	confirmed map[models.SetKey]struct{}
}

// NewReconciler returns a reconciler that runs at most maxInflight per-set
// writes at once, each bounded by timeout.
func NewReconciler(store SetWriter, maxInflight int, timeout time.Duration, logger *slog.Logger) *Reconciler {
	r := &Reconciler{
		store:     store,
		timeout:   timeout,
		logger:    logger,
		confirmed: make(map[models.SetKey]struct{}),
	}
	if maxInflight > 0 {
		r.writes.SetLimit(maxInflight)
	}
	return r
}

// RecordAsync starts a background write of one row and returns immediately.
// When every write slot is busy the row is left for FlushUnconfirmed.
func (r *Reconciler) RecordAsync(row models.SetLogRow) {
	started := r.writes.TryGo(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		inserted, err := r.store.InsertSetLog(ctx, row)
		if err != nil {
			metrics.RecordSetWrite("failed")
			r.logger.Warn("set write failed, will retry at finish",
				"session_id", row.SessionID, "exercise", row.ExerciseName,
				"set", row.SetNumber, "error", err)
			return nil
		}
		if inserted {
			metrics.RecordSetWrite("confirmed")
		} else {
			metrics.RecordSetWrite("duplicate")
		}
		r.MarkConfirmed(row)
		return nil
	})
	if !started {
		metrics.RecordSetWrite("deferred")
		r.logger.Debug("set write deferred to finish",
			"session_id", row.SessionID, "exercise", row.ExerciseName, "set", row.SetNumber)
	}
}

// MarkConfirmed records rows as already durable.
func (r *Reconciler) MarkConfirmed(rows ...models.SetLogRow) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range rows {
		r.confirmed[row.Key()] = struct{}{}
	}
}

// IsConfirmed reports whether the store acknowledged the row.
func (r *Reconciler) IsConfirmed(row models.SetLogRow) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.confirmed[row.Key()]
	return ok
}

// Unconfirmed returns the entries the store has not acknowledged, in order.
func (r *Reconciler) Unconfirmed(entries []models.SetLogRow) []models.SetLogRow {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.SetLogRow
	for _, e := range entries {
		if _, ok := r.confirmed[e.Key()]; !ok {
			out = append(out, e)
		}
	}
	return out
}

// FlushUnconfirmed bulk-inserts exactly the unconfirmed entries and marks them
// confirmed on success. Calling it again after success writes nothing.
func (r *Reconciler) FlushUnconfirmed(ctx context.Context, entries []models.SetLogRow) (int, error) {
	pending := r.Unconfirmed(entries)
	if len(pending) == 0 {
		return 0, nil
	}

	inserted, err := r.store.BulkInsertSetLogs(ctx, pending)
	if err != nil {
		return 0, err
	}
	metrics.RecordFlush(inserted)
	r.MarkConfirmed(pending...)
	return len(pending), nil
}

// Wait blocks until every in-flight write has returned.
func (r *Reconciler) Wait() {
	_ = r.writes.Wait()
}

// Reset forgets every confirmation. Keys carry the session id, so a write
// from a previous session finishing late cannot confirm a new session's row.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	r.confirmed = make(map[models.SetKey]struct{})
	r.mu.Unlock()
}
