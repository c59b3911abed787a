package mcp

import (
	"context"
	"time"

	"github.com/claude/ironsession/internal/models"
	"github.com/claude/ironsession/internal/storage"
	"github.com/google/uuid"
)

// DataSource abstracts the data layer for MCP tools. Both *storage.DB (local)
// and HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	FindActiveSession(ctx context.Context, userID int, workoutName string) (*models.SessionRow, error)
	ListSessions(ctx context.Context, start, end time.Time, userID int) ([]models.SessionRow, error)
	GetSession(ctx context.Context, sessionID uuid.UUID, userID int) (*models.SessionRow, error)
	ListSessionSetLogs(ctx context.Context, sessionID uuid.UUID, userID int) ([]models.SetLogRow, error)
	GetTrainingSummary(ctx context.Context, start, end time.Time, bucket string, userID int) ([]storage.TrainingSummaryPeriod, error)
	ListPrescriptions(ctx context.Context, userID int) ([]models.Prescription, error)
	GetDataStats(ctx context.Context, userID int) (*storage.DataStats, error)
}

// Compile-time check: *storage.DB satisfies DataSource.
var _ DataSource = (*storage.DB)(nil)
