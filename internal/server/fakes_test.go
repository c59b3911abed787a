package server

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/claude/ironsession/internal/models"
	"github.com/claude/ironsession/internal/restcache"
	"github.com/claude/ironsession/internal/storage"
	"github.com/claude/ironsession/internal/workout"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const testAPIKey = "secret"

// memStore is an in-memory Repository and workout.Store.
type memStore struct {
	mu            sync.Mutex
	users         map[string]int
	prescriptions map[int]map[string]models.Prescription
	sessions      []*models.SessionRow
	sets          []models.SetLogRow
}

func newMemStore() *memStore {
	return &memStore{
		users:         map[string]int{"local": 1},
		prescriptions: make(map[int]map[string]models.Prescription),
	}
}

func (m *memStore) GetOrCreateUser(_ context.Context, login, _ string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.users[login]; ok {
		return id, nil
	}
	id := len(m.users) + 1
	m.users[login] = id
	return id, nil
}

func (m *memStore) PutPrescription(_ context.Context, p models.Prescription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.prescriptions[p.UserID] == nil {
		m.prescriptions[p.UserID] = make(map[string]models.Prescription)
	}
	m.prescriptions[p.UserID][p.WorkoutName] = p
	return nil
}

func (m *memStore) GetPrescription(_ context.Context, userID int, name string) (*models.Prescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prescriptions[userID][name]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *memStore) ListPrescriptions(_ context.Context, userID int) ([]models.Prescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Prescription
	for _, p := range m.prescriptions[userID] {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WorkoutName < out[j].WorkoutName })
	return out, nil
}

func (m *memStore) CreateSession(_ context.Context, userID int, name string) (*models.SessionRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row := &models.SessionRow{ID: uuid.New(), UserID: userID, WorkoutName: name, Status: models.StatusActive, StartedAt: time.Now()}
	m.sessions = append(m.sessions, row)
	cp := *row
	return &cp, nil
}

func (m *memStore) AbandonActiveSessions(_ context.Context, userID int, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.sessions {
		if s.UserID == userID && s.WorkoutName == name && s.Status == models.StatusActive {
			s.Status = models.StatusAbandoned
			n++
		}
	}
	return n, nil
}

func (m *memStore) FindActiveSession(_ context.Context, userID int, name string) (*models.SessionRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sessions) - 1; i >= 0; i-- {
		s := m.sessions[i]
		if s.UserID == userID && s.WorkoutName == name && s.Status == models.StatusActive {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) ListSetLogs(_ context.Context, id uuid.UUID) ([]models.SetLogRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.SetLogRow
	for _, r := range m.sets {
		if r.SessionID == id {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) insertLocked(r models.SetLogRow) bool {
	for _, e := range m.sets {
		if e.Key() == r.Key() {
			return false
		}
	}
	m.sets = append(m.sets, r)
	return true
}

func (m *memStore) InsertSetLog(_ context.Context, r models.SetLogRow) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(r), nil
}

func (m *memStore) BulkInsertSetLogs(_ context.Context, rows []models.SetLogRow) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, r := range rows {
		if m.insertLocked(r) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) UpdateSessionOnFinish(_ context.Context, id uuid.UUID, endedAt time.Time, total int, status models.SessionStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.ID == id && s.Status == models.StatusActive {
			s.Status, s.EndedAt, s.TotalDurationSeconds = status, &endedAt, &total
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) GetSession(_ context.Context, id uuid.UUID, userID int) (*models.SessionRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.ID == id && s.UserID == userID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, storage.ErrSessionNotFound
}

func (m *memStore) ListSessions(_ context.Context, start, end time.Time, userID int) ([]models.SessionRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.SessionRow
	for _, s := range m.sessions {
		if s.UserID == userID && !s.StartedAt.Before(start) && s.StartedAt.Before(end) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memStore) ListSessionSetLogs(ctx context.Context, id uuid.UUID, userID int) ([]models.SetLogRow, error) {
	if _, err := m.GetSession(ctx, id, userID); err != nil {
		return nil, nil
	}
	return m.ListSetLogs(ctx, id)
}

func (m *memStore) GetTrainingSummary(context.Context, time.Time, time.Time, string, int) ([]storage.TrainingSummaryPeriod, error) {
	return nil, nil
}

func (m *memStore) GetDataStats(_ context.Context, userID int) (*storage.DataStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &storage.DataStats{SessionsByStatus: map[string]int64{}}
	for _, s := range m.sessions {
		if s.UserID == userID {
			stats.TotalSessions++
			stats.SessionsByStatus[string(s.Status)]++
		}
	}
	stats.TotalSets = int64(len(m.sets))
	return stats, nil
}

var (
	_ Repository    = (*memStore)(nil)
	_ workout.Store = (*memStore)(nil)
)

// newTestServer wires a Server to an in-memory store and a miniredis-backed
// rest-timer cache.
func newTestServer(t *testing.T) (*Server, *memStore) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	mr := miniredis.RunT(t)
	cache := restcache.NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test:")
	t.Cleanup(func() { _ = cache.Close() })

	store := newMemStore()
	mgr := workout.NewManager(store, cache, workout.Config{TickInterval: 50 * time.Millisecond}, log)
	t.Cleanup(mgr.Close)

	return New(store, mgr, Config{APIKey: testAPIKey}, log), store
}
