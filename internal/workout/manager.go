package workout

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/claude/ironsession/internal/metrics"
	"github.com/claude/ironsession/internal/models"
	"github.com/claude/ironsession/internal/restcache"
	"golang.org/x/sync/singleflight"
)

type coordinatorKey struct {
	userID  int
	workout string
}

type managedCoordinator struct {
	c      *Coordinator
	cancel context.CancelFunc
}

// Manager owns one coordinator per (athlete, workout). A coordinator is
// recovered and its tick loop started on first access, and it is dropped
// once its session finishes.
type Manager struct {
	store  Store
	cache  restcache.Cache
	cfg    Config
	logger *slog.Logger
	opts   []Option

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	create singleflight.Group

	mu     sync.Mutex
	coords map[coordinatorKey]*managedCoordinator
}

// NewManager returns a manager whose coordinators share store and cache.
func NewManager(store Store, cache restcache.Cache, cfg Config, logger *slog.Logger, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		store:  store,
		cache:  cache,
		cfg:    cfg,
		logger: logger,
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
		coords: make(map[coordinatorKey]*managedCoordinator),
	}
}

// Get returns the coordinator for (userID, workoutName), creating and
// recovering it if needed. A coordinator whose recovery failed is not kept,
// so the next call retries.
func (m *Manager) Get(ctx context.Context, userID int, workoutName string) (*Coordinator, error) {
	key := coordinatorKey{userID, workoutName}
	if c := m.lookup(key); c != nil {
		return c, nil
	}

	v, err, _ := m.create.Do(fmt.Sprintf("%d/%s", userID, workoutName), func() (any, error) {
		if c := m.lookup(key); c != nil {
			return c, nil
		}

		// Recovery outlives the first caller's request.
		c := NewCoordinator(m.store, m.cache, userID, workoutName, m.cfg, m.logger, m.opts...)
		if _, err := c.Recover(context.WithoutCancel(ctx)); err != nil {
			return nil, err
		}

		runCtx, cancel := context.WithCancel(m.ctx)
		m.mu.Lock()
		m.coords[key] = &managedCoordinator{c: c, cancel: cancel}
		n := len(m.coords)
		m.mu.Unlock()
		metrics.SetActiveCoordinators(n)

		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			c.Run(runCtx)
		}()
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Coordinator), nil
}

// Finish finishes the session and drops the coordinator on success.
func (m *Manager) Finish(ctx context.Context, userID int, workoutName string) (models.SessionSummary, error) {
	c, err := m.Get(ctx, userID, workoutName)
	if err != nil {
		return models.SessionSummary{}, err
	}
	summary, err := c.Finish(ctx)
	if err != nil {
		return models.SessionSummary{}, err
	}
	m.evict(coordinatorKey{userID, workoutName}, c)
	return summary, nil
}

// Len returns the number of live coordinators.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.coords)
}

// Close stops every tick loop and waits for in-flight set writes.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()

	m.mu.Lock()
	coords := m.coords
	m.coords = make(map[coordinatorKey]*managedCoordinator)
	m.mu.Unlock()

	for _, mc := range coords {
		mc.c.Close()
	}
	metrics.SetActiveCoordinators(0)
}

func (m *Manager) lookup(key coordinatorKey) *Coordinator {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mc, ok := m.coords[key]; ok {
		return mc.c
	}
	return nil
}

func (m *Manager) evict(key coordinatorKey, c *Coordinator) {
	m.mu.Lock()
	mc, ok := m.coords[key]
	if ok && mc.c == c {
		delete(m.coords, key)
	}
	n := len(m.coords)
	m.mu.Unlock()

	if ok && mc.c == c {
		mc.cancel()
		c.Close()
	}
	metrics.SetActiveCoordinators(n)
}
