package workout

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/claude/ironsession/internal/metrics"
	"github.com/claude/ironsession/internal/models"
	"github.com/claude/ironsession/internal/restcache"
)

// Config tunes a coordinator.
type Config struct {
	TickInterval      time.Duration
	WriteTimeout      time.Duration
	MaxInflightWrites int
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.MaxInflightWrites <= 0 {
		c.MaxInflightWrites = 8
	}
	return c
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock replaces time.Now.
func WithClock(clock Clock) Option {
	return func(c *Coordinator) { c.now = clock }
}

// SetInput is one completed set as reported by the athlete.
type SetInput struct {
	ExerciseName string  `json:"exercise_name"`
	SetNumber    int     `json:"set_number"`
	WeightKg     float64 `json:"weight_kg"`
	Reps         int     `json:"reps"`
	// RestSeconds overrides the prescribed rest when set.
	RestSeconds *int `json:"rest_seconds,omitempty"`
}

// MaxRestSeconds bounds a single rest period.
const MaxRestSeconds = 24 * 60 * 60

// validate rejects input that cannot be stored: counts must fit the INTEGER
// columns and rest must fit in a time.Duration with room to spare.
func (in SetInput) validate() bool {
	switch {
	case in.ExerciseName == "":
		return false
	case in.SetNumber < 1 || in.SetNumber > math.MaxInt32:
		return false
	case in.Reps < 0 || in.Reps > math.MaxInt32:
		return false
	case in.WeightKg < 0 || math.IsNaN(in.WeightKg) || math.IsInf(in.WeightKg, 0):
		return false
	case in.RestSeconds != nil && (*in.RestSeconds < 0 || *in.RestSeconds > MaxRestSeconds):
		return false
	}
	return true
}

// Snapshot is a read-only view of a coordinator for rendering.
type Snapshot struct {
	WorkoutName    string                `json:"workout_name"`
	Session        *models.SessionRow    `json:"session"`
	Prescription   *models.Prescription  `json:"prescription,omitempty"`
	ElapsedSeconds int                   `json:"elapsed_seconds"`
	RestTimer      models.RestTimerState `json:"rest_timer"`
	Sets           []models.SetLogRow    `json:"sets"`
	CanComplete    bool                  `json:"can_complete"`
}

// Coordinator is the sole authority over one athlete's session for one
// workout. Start, Recover and Finish are serialized and may block on the
// store. LogSet and the observers only touch memory and the rest-timer cache.
type Coordinator struct {
	store      Store
	timer      *RestTimer
	reconciler *Reconciler
	events     *broadcaster
	logger     *slog.Logger
	now        Clock
	cfg        Config

	userID      int
	workoutName string

	lifecycle sync.Mutex

	mu           sync.RWMutex
	closed       bool
	recovered    bool
	finishing    bool
	session      *models.SessionRow
	prescription *models.Prescription
	ledger       *Ledger
	lastSetAt    time.Time
	lastRest     int
}

// NewCoordinator returns a coordinator for (userID, workoutName). Recover must
// complete before Start is accepted.
func NewCoordinator(store Store, cache restcache.Cache, userID int, workoutName string, cfg Config, logger *slog.Logger, opts ...Option) *Coordinator {
	cfg = cfg.withDefaults()
	logger = logger.With("user_id", userID, "workout", workoutName)
	c := &Coordinator{
		store:       store,
		timer:       NewRestTimer(cache, restcache.TimerKey(userID, workoutName), logger),
		reconciler:  NewReconciler(store, cfg.MaxInflightWrites, cfg.WriteTimeout, logger),
		events:      newBroadcaster(),
		logger:      logger,
		now:         time.Now,
		cfg:         cfg,
		userID:      userID,
		workoutName: workoutName,
		ledger:      NewLedger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WorkoutName returns the workout this coordinator drives.
func (c *Coordinator) WorkoutName() string { return c.workoutName }

// Start abandons any active session for the pair and creates a new one with
// an empty ledger. Retrying after a failure is safe: a second call abandons
// the session the first one created.
func (c *Coordinator) Start(ctx context.Context) (*models.SessionRow, error) {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.RLock()
	closed, recovered := c.closed, c.recovered
	c.mu.RUnlock()
	if closed {
		return nil, precondition("start", ErrCoordinatorClosed)
	}
	if !recovered {
		return nil, precondition("start", ErrRecoveryPending)
	}

	p, err := c.store.GetPrescription(ctx, c.userID, c.workoutName)
	if err != nil {
		return nil, persistence("start", err)
	}
	if p == nil {
		return nil, precondition("start", ErrPrescriptionNotFound)
	}

	abandoned, err := c.store.AbandonActiveSessions(ctx, c.userID, c.workoutName)
	if err != nil {
		return nil, persistence("start", err)
	}
	s, err := c.store.CreateSession(ctx, c.userID, c.workoutName)
	if err != nil {
		return nil, persistence("start", err)
	}

	c.timer.Reset(ctx)
	c.reconciler.Reset()

	c.mu.Lock()
	c.session = s
	c.prescription = p
	c.ledger = NewLedger()
	c.lastSetAt = time.Time{}
	c.lastRest = 0
	c.finishing = false
	c.mu.Unlock()

	for range abandoned {
		metrics.RecordTransition("abandoned")
	}
	metrics.RecordTransition("started")
	c.logger.Info("session started", "session_id", s.ID, "abandoned", abandoned)

	c.events.publish(Event{
		Type:        EventSessionStarted,
		WorkoutName: c.workoutName,
		SessionID:   s.ID.String(),
		At:          c.now(),
	})
	return s, nil
}

// Recover rehydrates the most recent active session for the pair: its sets
// become the ledger, all marked confirmed, the duration clock resumes from the
// stored start, and the rest timer resumes from the cache if still running.
// Returns false when there is nothing to recover; state is then untouched.
func (c *Coordinator) Recover(ctx context.Context) (bool, error) {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return false, precondition("recover", ErrCoordinatorClosed)
	}

	s, err := c.store.FindActiveSession(ctx, c.userID, c.workoutName)
	if err != nil {
		return false, persistence("recover", err)
	}
	if s == nil {
		c.mu.Lock()
		c.recovered = true
		c.mu.Unlock()
		return false, nil
	}

	p, err := c.store.GetPrescription(ctx, c.userID, c.workoutName)
	if err != nil {
		return false, persistence("recover", err)
	}
	if p == nil {
		c.logger.Warn("recovered session has no prescription", "session_id", s.ID)
		p = &models.Prescription{UserID: c.userID, WorkoutName: c.workoutName}
	}

	// Let in-flight writes land so the reload sees them.
	c.reconciler.Wait()

	rows, err := c.store.ListSetLogs(ctx, s.ID)
	if err != nil {
		return false, persistence("recover", err)
	}

	ledger := NewLedger()
	for _, r := range rows {
		ledger.Append(r)
		c.checkAgainstPrescription(p, ledger, r)
	}

	c.mu.Lock()
	var carried []models.SetLogRow
	if c.session != nil && c.session.ID == s.ID {
		// Sets logged here whose writes have not been confirmed stay in the
		// ledger and are flushed at finish.
		for _, e := range c.ledger.Entries() {
			if ledger.Append(e) {
				carried = append(carried, e)
			}
		}
	} else {
		c.reconciler.Reset()
	}
	c.reconciler.MarkConfirmed(rows...)

	c.session = s
	c.prescription = p
	c.ledger = ledger
	c.finishing = false
	c.recovered = true
	c.lastSetAt, c.lastRest = time.Time{}, 0
	if entries := ledger.entries; len(entries) > 0 {
		last := entries[len(entries)-1]
		c.lastSetAt, c.lastRest = last.CompletedAt, last.RestSecondsPrescribed
	}
	c.mu.Unlock()

	now := c.now()
	resumed, err := c.timer.Load(ctx, now)
	if err != nil {
		c.logger.Warn("rest timer not resumed", "error", err)
	}

	metrics.RecordTransition("recovered")
	c.logger.Info("session recovered", "session_id", s.ID,
		"sets", len(rows), "unconfirmed", len(carried), "rest_resumed", resumed)

	state := c.timer.State(now)
	c.events.publish(Event{
		Type:           EventSessionRecovered,
		WorkoutName:    c.workoutName,
		SessionID:      s.ID.String(),
		At:             now,
		ElapsedSeconds: Elapsed(now, s.StartedAt),
		RestTimer:      &state,
	})
	return true, nil
}

// checkAgainstPrescription logs recovered rows that no longer fit the
// prescription. Recovered data is trusted as-is.
func (c *Coordinator) checkAgainstPrescription(p *models.Prescription, l *Ledger, r models.SetLogRow) {
	ex, ok := p.Exercise(r.ExerciseName)
	switch {
	case !ok:
		c.logger.Warn("recovered set references exercise not in prescription",
			"session_id", r.SessionID, "exercise", r.ExerciseName, "set", r.SetNumber)
	case l.CountFor(r.ExerciseName) > ex.Sets:
		c.logger.Warn("recovered sets exceed prescription",
			"session_id", r.SessionID, "exercise", r.ExerciseName,
			"logged", l.CountFor(r.ExerciseName), "prescribed", ex.Sets)
	}
}

// LogSet appends a completed set to the ledger, hands it to the reconciler and
// arms the rest timer unless rest is zero or every prescribed set is done.
// It is refused while resting and for a set already logged; a refusal has no
// side effects.
func (c *Coordinator) LogSet(ctx context.Context, in SetInput) (models.SetLogRow, error) {
	if !in.validate() {
		metrics.RecordSetLogged("invalid")
		return models.SetLogRow{}, precondition("log set", ErrInvalidSet)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.closed {
		metrics.RecordSetLogged("closed")
		return models.SetLogRow{}, precondition("log set", ErrCoordinatorClosed)
	}
	if c.session == nil {
		metrics.RecordSetLogged("no_session")
		return models.SetLogRow{}, precondition("log set", ErrNoActiveSession)
	}
	if c.finishing {
		metrics.RecordSetLogged("finishing")
		return models.SetLogRow{}, precondition("log set", ErrSessionFinishing)
	}

	if state, completed := c.timer.Tick(ctx, now); completed {
		c.publishRestComplete(now, state)
	}
	if c.timer.ActiveAt(now) {
		metrics.RecordSetLogged("rest_active")
		return models.SetLogRow{}, precondition("log set", ErrRestActive)
	}

	ex, ok := c.prescription.Exercise(in.ExerciseName)
	if !ok {
		metrics.RecordSetLogged("unknown_exercise")
		return models.SetLogRow{}, precondition("log set", ErrUnknownExercise)
	}
	if c.ledger.Has(in.ExerciseName, in.SetNumber) {
		metrics.RecordSetLogged("duplicate")
		return models.SetLogRow{}, precondition("log set", ErrDuplicateSet)
	}
	if in.SetNumber != c.ledger.NextSetNumber(in.ExerciseName) {
		metrics.RecordSetLogged("out_of_order")
		return models.SetLogRow{}, precondition("log set", ErrSetOutOfOrder)
	}

	rest := min(max(ex.RestSeconds, 0), MaxRestSeconds)
	if in.RestSeconds != nil {
		rest = *in.RestSeconds
	}

	row := models.SetLogRow{
		SessionID:             c.session.ID,
		ExerciseName:          in.ExerciseName,
		SetNumber:             in.SetNumber,
		WeightKg:              in.WeightKg,
		Reps:                  in.Reps,
		RestSecondsPrescribed: rest,
		RestRespected:         c.lastSetAt.IsZero() || now.Sub(c.lastSetAt) >= time.Duration(c.lastRest)*time.Second,
		CompletedAt:           now,
	}
	c.ledger.Append(row)
	c.reconciler.RecordAsync(row)
	c.lastSetAt, c.lastRest = now, rest

	var state models.RestTimerState
	if rest > 0 && !c.allPrescribedDoneLocked() {
		state = c.timer.Arm(ctx, now, in.ExerciseName, in.SetNumber, rest)
	}

	metrics.RecordSetLogged("accepted")
	c.logger.Debug("set logged", "session_id", row.SessionID,
		"exercise", row.ExerciseName, "set", row.SetNumber, "rest", rest)

	c.events.publish(Event{
		Type:           EventSetLogged,
		WorkoutName:    c.workoutName,
		SessionID:      row.SessionID.String(),
		At:             now,
		ElapsedSeconds: Elapsed(now, c.session.StartedAt),
		RestTimer:      &state,
		Set:            &row,
	})
	return row, nil
}

func (c *Coordinator) allPrescribedDoneLocked() bool {
	for _, ex := range c.prescription.Exercises {
		if c.ledger.CountFor(ex.ExerciseName) < ex.Sets {
			return false
		}
	}
	return true
}

// CanCompleteWorkout reports whether every prescribed exercise has at least
// its prescribed number of sets and the rest timer is not running.
func (c *Coordinator) CanCompleteWorkout() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.session == nil {
		return false
	}
	return c.allPrescribedDoneLocked() && !c.timer.ActiveAt(c.now())
}

// Finish flushes every unconfirmed set in one bulk write, marks the session
// finished and returns its summary. It does not require CanCompleteWorkout.
// On failure the session stays active with its ledger intact, so a retry
// loses nothing.
// A session the store no longer holds as active is refused with
// ErrSessionSuperseded and left untouched.
func (c *Coordinator) Finish(ctx context.Context) (models.SessionSummary, error) {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	s := c.session
	if s == nil {
		c.mu.Unlock()
		return models.SessionSummary{}, precondition("finish", ErrNoActiveSession)
	}
	c.finishing = true
	entries := c.ledger.Entries()
	c.mu.Unlock()

	fail := func(err error) (models.SessionSummary, error) {
		c.mu.Lock()
		c.finishing = false
		c.mu.Unlock()
		c.logger.Error("finishing session", "session_id", s.ID, "error", err)
		return models.SessionSummary{}, persistence("finish", err)
	}

	now := c.now()
	duration := Elapsed(now, s.StartedAt)

	c.reconciler.Wait()
	flushed, err := c.reconciler.FlushUnconfirmed(ctx, entries)
	if err != nil {
		return fail(err)
	}
	updated, err := c.store.UpdateSessionOnFinish(ctx, s.ID, now, duration, models.StatusFinished)
	if err != nil {
		return fail(err)
	}
	if !updated {
		c.mu.Lock()
		c.finishing = false
		c.mu.Unlock()
		c.logger.Warn("session was closed elsewhere, not finishing", "session_id", s.ID)
		return models.SessionSummary{}, precondition("finish", ErrSessionSuperseded)
	}

	c.timer.Reset(ctx)
	summary := Summarize(s.ID, entries, duration)

	c.mu.Lock()
	c.session = nil
	c.prescription = nil
	c.ledger = NewLedger()
	c.finishing = false
	c.mu.Unlock()
	c.reconciler.Reset()

	metrics.RecordTransition("finished")
	c.logger.Info("session finished", "session_id", s.ID,
		"duration_sec", duration, "sets", summary.TotalSets, "flushed", flushed)

	c.events.publish(Event{
		Type:           EventSessionFinished,
		WorkoutName:    c.workoutName,
		SessionID:      s.ID.String(),
		At:             now,
		ElapsedSeconds: duration,
		Summary:        &summary,
	})
	return summary, nil
}

// Elapsed returns whole seconds since the active session started, or 0.
func (c *Coordinator) Elapsed() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return 0
	}
	return Elapsed(c.now(), c.session.StartedAt)
}

// RestTimer returns the current rest-timer state.
func (c *Coordinator) RestTimer() models.RestTimerState {
	return c.timer.State(c.now())
}

// Sets returns the ledger entries in logging order.
func (c *Coordinator) Sets() []models.SetLogRow {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ledger.Entries()
}

// Snapshot returns a consistent view of the session for rendering.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	snap := Snapshot{
		WorkoutName: c.workoutName,
		RestTimer:   c.timer.State(now),
		Sets:        c.ledger.Entries(),
	}
	if c.session != nil {
		s := *c.session
		snap.Session = &s
		snap.ElapsedSeconds = Elapsed(now, s.StartedAt)
		snap.Prescription = c.prescription
		snap.CanComplete = c.allPrescribedDoneLocked() && !snap.RestTimer.Active
	}
	return snap
}

// Run drives the duration clock and rest timer until ctx is cancelled. Each
// tick recomputes both from their absolute anchors and publishes a tick event.
func (c *Coordinator) Run(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

func (c *Coordinator) tick(ctx context.Context) {
	c.mu.RLock()
	s := c.session
	c.mu.RUnlock()
	if s == nil {
		return
	}

	now := c.now()
	state, completed := c.timer.Tick(ctx, now)
	if completed {
		c.publishRestComplete(now, state)
	}
	c.events.publish(Event{
		Type:           EventTick,
		WorkoutName:    c.workoutName,
		SessionID:      s.ID.String(),
		At:             now,
		ElapsedSeconds: Elapsed(now, s.StartedAt),
		RestTimer:      &state,
	})
}

func (c *Coordinator) publishRestComplete(now time.Time, state models.RestTimerState) {
	c.logger.Debug("rest complete")
	c.events.publish(Event{
		Type:        EventRestComplete,
		WorkoutName: c.workoutName,
		At:          now,
		RestTimer:   &state,
	})
}

// Subscribe returns a channel of coordinator events. Slow readers miss events.
func (c *Coordinator) Subscribe() chan Event { return c.events.subscribe() }

// Unsubscribe stops delivery to ch and closes it.
func (c *Coordinator) Unsubscribe(ch chan Event) { c.events.unsubscribe(ch) }

// Close refuses further Start, Recover and LogSet calls, waits for in-flight
// set writes and ends every subscription. A lifecycle call in progress
// completes first.
func (c *Coordinator) Close() {
	c.lifecycle.Lock()
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.lifecycle.Unlock()

	c.reconciler.Wait()
	c.events.close()
}
