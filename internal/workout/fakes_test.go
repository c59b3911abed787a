package workout

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/claude/ironsession/internal/models"
	"github.com/claude/ironsession/internal/restcache"
	"github.com/google/uuid"
)

var errStoreDown = errors.New("connection refused")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

// fakeStore is an in-memory Store that ignores duplicate set keys the way the
// set_logs primary key does.
type fakeStore struct {
	mu  sync.Mutex
	now func() time.Time

	prescriptions map[string]*models.Prescription
	sessions      []*models.SessionRow
	sets          map[models.SetKey]models.SetLogRow

	failInsert bool
	failBulk   bool
	failCreate bool
	failFind   bool
	failUpdate bool

	insertCalls int
	bulkCalls   [][]models.SetLogRow
}

func newFakeStore(clock *fakeClock) *fakeStore {
	return &fakeStore{
		now:           clock.Now,
		prescriptions: make(map[string]*models.Prescription),
		sets:          make(map[models.SetKey]models.SetLogRow),
	}
}

func (s *fakeStore) prescribe(workout string, exercises ...models.PrescribedExercise) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prescriptions[workout] = &models.Prescription{UserID: 1, WorkoutName: workout, Exercises: exercises}
}

func (s *fakeStore) set(f *bool, v bool) {
	s.mu.Lock()
	*f = v
	s.mu.Unlock()
}

func (s *fakeStore) GetPrescription(_ context.Context, userID int, workoutName string) (*models.Prescription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prescriptions[workoutName]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *fakeStore) CreateSession(_ context.Context, userID int, workoutName string) (*models.SessionRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate {
		return nil, errStoreDown
	}
	row := &models.SessionRow{
		ID:          uuid.New(),
		UserID:      userID,
		WorkoutName: workoutName,
		Status:      models.StatusActive,
		StartedAt:   s.now(),
	}
	s.sessions = append(s.sessions, row)
	cp := *row
	return &cp, nil
}

func (s *fakeStore) AbandonActiveSessions(_ context.Context, userID int, workoutName string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, row := range s.sessions {
		if row.UserID == userID && row.WorkoutName == workoutName && row.Status == models.StatusActive {
			row.Status = models.StatusAbandoned
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) FindActiveSession(ctx context.Context, userID int, workoutName string) (*models.SessionRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFind {
		return nil, errStoreDown
	}
	for i := len(s.sessions) - 1; i >= 0; i-- {
		row := s.sessions[i]
		if row.UserID == userID && row.WorkoutName == workoutName && row.Status == models.StatusActive {
			cp := *row
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) ListSetLogs(_ context.Context, sessionID uuid.UUID) ([]models.SetLogRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SetLogRow
	for k, r := range s.sets {
		if k.SessionID == sessionID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompletedAt.Before(out[j].CompletedAt) })
	return out, nil
}

func (s *fakeStore) InsertSetLog(_ context.Context, r models.SetLogRow) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertCalls++
	if s.failInsert {
		return false, errStoreDown
	}
	if _, ok := s.sets[r.Key()]; ok {
		return false, nil
	}
	s.sets[r.Key()] = r
	return true, nil
}

func (s *fakeStore) BulkInsertSetLogs(_ context.Context, rows []models.SetLogRow) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failBulk {
		return 0, errStoreDown
	}
	s.bulkCalls = append(s.bulkCalls, append([]models.SetLogRow(nil), rows...))
	var n int64
	for _, r := range rows {
		if _, ok := s.sets[r.Key()]; ok {
			continue
		}
		s.sets[r.Key()] = r
		n++
	}
	return n, nil
}

func (s *fakeStore) UpdateSessionOnFinish(_ context.Context, sessionID uuid.UUID, endedAt time.Time, total int, status models.SessionStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpdate {
		return false, errStoreDown
	}
	for _, row := range s.sessions {
		if row.ID == sessionID && row.Status == models.StatusActive {
			row.Status = status
			row.EndedAt = &endedAt
			row.TotalDurationSeconds = &total
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) statusCounts(workout string) map[models.SessionStatus]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[models.SessionStatus]int)
	for _, row := range s.sessions {
		if row.WorkoutName == workout {
			out[row.Status]++
		}
	}
	return out
}

func (s *fakeStore) storedSets(sessionID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.sets {
		if k.SessionID == sessionID {
			n++
		}
	}
	return n
}

// memCache is an in-memory restcache.Cache.
type memCache struct {
	mu      sync.Mutex
	entries map[string]restcache.Entry
	failSet bool
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]restcache.Entry)}
}

func (m *memCache) Get(_ context.Context, key string) (*restcache.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (m *memCache) Set(_ context.Context, key string, e restcache.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet {
		return errors.New("cache unavailable")
	}
	m.entries[key] = e
	return nil
}

func (m *memCache) Clear(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *memCache) Close() error { return nil }

func (m *memCache) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[key]
	return ok
}

var _ Store = (*fakeStore)(nil)
var _ restcache.Cache = (*memCache)(nil)
