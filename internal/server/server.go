package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/claude/ironsession/internal/metrics"
	"github.com/claude/ironsession/internal/models"
	"github.com/claude/ironsession/internal/storage"
	"github.com/claude/ironsession/internal/workout"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Repository is the read/write surface of the record store used by the API
// outside the live session engine.
type Repository interface {
	GetOrCreateUser(ctx context.Context, login, displayName string) (int, error)
	PutPrescription(ctx context.Context, p models.Prescription) error
	GetPrescription(ctx context.Context, userID int, workoutName string) (*models.Prescription, error)
	ListPrescriptions(ctx context.Context, userID int) ([]models.Prescription, error)
	GetSession(ctx context.Context, sessionID uuid.UUID, userID int) (*models.SessionRow, error)
	ListSessions(ctx context.Context, start, end time.Time, userID int) ([]models.SessionRow, error)
	ListSessionSetLogs(ctx context.Context, sessionID uuid.UUID, userID int) ([]models.SetLogRow, error)
	GetTrainingSummary(ctx context.Context, start, end time.Time, bucket string, userID int) ([]storage.TrainingSummaryPeriod, error)
	GetDataStats(ctx context.Context, userID int) (*storage.DataStats, error)
}

var _ Repository = (*storage.DB)(nil)

// Config holds HTTP-layer settings.
type Config struct {
	APIKey            string
	RequestsPerSecond float64
	Burst             int
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	db       Repository
	sessions *workout.Manager
	log      *slog.Logger
	apiKey   string
	limiter  *RateLimiter
	router   chi.Router

	mu    sync.RWMutex
	whois WhoIser
}

// New creates a new Server with all routes configured.
func New(db Repository, sessions *workout.Manager, cfg Config, log *slog.Logger) *Server {
	s := &Server{
		db:       db,
		sessions: sessions,
		log:      log,
		apiKey:   cfg.APIKey,
		router:   chi.NewRouter(),
	}
	if cfg.RequestsPerSecond > 0 {
		s.limiter = NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst)
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// SetTailscale switches identity from the local dev user to tailnet WhoIs.
func (s *Server) SetTailscale(wc WhoIser) {
	s.mu.Lock()
	s.whois = wc
	s.mu.Unlock()
}

// MountMCP serves an MCP handler at /mcp behind the same identity middleware.
func (s *Server) MountMCP(h http.Handler) {
	s.router.With(s.identify).Handle("/mcp", h)
	s.router.With(s.identify).Handle("/mcp/*", h)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	s.router.Handle("/metrics", metrics.Handler())

	s.router.Group(func(r chi.Router) {
		r.Use(s.identify)
		r.Use(RateLimit(s.limiter))

		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/me", s.handleMe)

			r.Get("/prescriptions", s.handleListPrescriptions)
			r.Get("/prescriptions/{workout}", s.handleGetPrescription)
			r.With(APIKeyAuth(s.apiKey)).Put("/prescriptions/{workout}", s.handlePutPrescription)

			r.Route("/sessions/{workout}", func(r chi.Router) {
				r.Get("/", s.handleSnapshot)
				r.Post("/start", s.handleStart)
				r.Post("/recover", s.handleRecover)
				r.Post("/sets", s.handleLogSet)
				r.Post("/finish", s.handleFinish)
				r.Get("/events", s.handleEvents)
				r.Get("/live", s.handleLive)
			})

			r.Get("/history/sessions", s.handleListSessions)
			r.Get("/history/sessions/{id}/sets", s.handleSessionSets)
			r.Get("/history/summary", s.handleTrainingSummary)
			r.Get("/stats", s.handleStats)
		})
	})
}
