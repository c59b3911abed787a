package workout

import (
	"context"
	"time"

	"github.com/claude/ironsession/internal/models"
	"github.com/claude/ironsession/internal/storage"
	"github.com/google/uuid"
)

// SetWriter is the part of the durable store the reconciler writes through.
// Both inserts must ignore rows whose (session, exercise, set number) exists.
type SetWriter interface {
	InsertSetLog(ctx context.Context, r models.SetLogRow) (bool, error)
	BulkInsertSetLogs(ctx context.Context, rows []models.SetLogRow) (int64, error)
}

// Store is the durable record store consumed by the coordinator.
type Store interface {
	SetWriter
	GetPrescription(ctx context.Context, userID int, workoutName string) (*models.Prescription, error)
	CreateSession(ctx context.Context, userID int, workoutName string) (*models.SessionRow, error)
	AbandonActiveSessions(ctx context.Context, userID int, workoutName string) (int64, error)
	FindActiveSession(ctx context.Context, userID int, workoutName string) (*models.SessionRow, error)
	ListSetLogs(ctx context.Context, sessionID uuid.UUID) ([]models.SetLogRow, error)
	UpdateSessionOnFinish(ctx context.Context, sessionID uuid.UUID, endedAt time.Time, totalDurationSeconds int, status models.SessionStatus) (bool, error)
}

var _ Store = (*storage.DB)(nil)
