package workout

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/claude/ironsession/internal/models"
	"github.com/claude/ironsession/internal/restcache"
)

// RestTimer is the single countdown slot of a session. Its state is an
// absolute expiry instant mirrored to the volatile cache, so remaining time
// is always recomputed from the wall clock and survives a restart.
type RestTimer struct {
	cache  restcache.Cache
	key    string
	logger *slog.Logger

	mu       sync.Mutex
	active   bool
	exercise string
	set      int
	endsAt   time.Time
}

// NewRestTimer returns an inactive timer persisted under key.
func NewRestTimer(cache restcache.Cache, key string, logger *slog.Logger) *RestTimer {
	return &RestTimer{cache: cache, key: key, logger: logger}
}

// Arm starts a countdown of seconds from now, replacing any previous state.
// A cache failure is logged; the in-memory timer is armed regardless.
func (t *RestTimer) Arm(ctx context.Context, now time.Time, exercise string, setNumber, seconds int) models.RestTimerState {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.active = true
	t.exercise = exercise
	t.set = setNumber
	t.endsAt = now.Add(time.Duration(seconds) * time.Second)

	err := t.cache.Set(ctx, t.key, restcache.Entry{
		ExerciseName: exercise,
		SetNumber:    setNumber,
		EndsAt:       t.endsAt,
	})
	if err != nil {
		t.logger.Warn("persisting rest timer", "key", t.key, "error", err)
	}
	return t.stateLocked(now)
}

// Tick recomputes the remaining time. When an active timer reaches zero it is
// disarmed, its cache slot erased, and completed is true exactly once.
func (t *RestTimer) Tick(ctx context.Context, now time.Time) (state models.RestTimerState, completed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.active || Remaining(now, t.endsAt) > 0 {
		return t.stateLocked(now), false
	}

	t.active = false
	if err := t.cache.Clear(ctx, t.key); err != nil {
		t.logger.Warn("clearing rest timer", "key", t.key, "error", err)
	}
	return t.stateLocked(now), true
}

// Load resumes the timer from the cache if its expiry is still in the future
// and discards a stale entry otherwise. Returns true when resumed.
func (t *RestTimer) Load(ctx context.Context, now time.Time) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, err := t.cache.Get(ctx, t.key)
	if err != nil {
		return false, fmt.Errorf("loading rest timer: %w", err)
	}
	if e == nil {
		return false, nil
	}
	if Remaining(now, e.EndsAt) == 0 {
		if err := t.cache.Clear(ctx, t.key); err != nil {
			t.logger.Warn("clearing stale rest timer", "key", t.key, "error", err)
		}
		return false, nil
	}

	t.active = true
	t.exercise = e.ExerciseName
	t.set = e.SetNumber
	t.endsAt = e.EndsAt
	return true, nil
}

// Reset disarms the timer and empties its slot. Used when a session begins
// or ends, never as a user-facing cancel.
func (t *RestTimer) Reset(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.active = false
	t.exercise = ""
	t.set = 0
	t.endsAt = time.Time{}
	if err := t.cache.Clear(ctx, t.key); err != nil {
		t.logger.Warn("clearing rest timer", "key", t.key, "error", err)
	}
}

// ActiveAt reports whether the timer still has time left at now.
func (t *RestTimer) ActiveAt(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active && Remaining(now, t.endsAt) > 0
}

// State returns the observable timer state at now.
func (t *RestTimer) State(now time.Time) models.RestTimerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stateLocked(now)
}

func (t *RestTimer) stateLocked(now time.Time) models.RestTimerState {
	if !t.active {
		return models.RestTimerState{}
	}
	return models.RestTimerState{
		Active:           true,
		ExerciseName:     t.exercise,
		SetNumber:        t.set,
		EndsAt:           t.endsAt,
		RemainingSeconds: Remaining(now, t.endsAt),
	}
}
