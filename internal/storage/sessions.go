package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/claude/ironsession/internal/models"
	"github.com/google/uuid"
)

// ErrSessionNotFound is returned by GetSession when no row matches.
var ErrSessionNotFound = errors.New("session not found")

const sessionColumns = `id, user_id, workout_name, status, started_at, ended_at, total_duration_seconds`

// CreateSession inserts a new active session. The database assigns started_at.
func (db *DB) CreateSession(ctx context.Context, userID int, workoutName string) (*models.SessionRow, error) {
	row := &models.SessionRow{
		ID:          uuid.New(),
		UserID:      userID,
		WorkoutName: workoutName,
		Status:      models.StatusActive,
	}
	err := db.Pool.QueryRow(ctx,
		`INSERT INTO sessions (id, user_id, workout_name, status)
		 VALUES ($1, $2, $3, $4)
		 RETURNING started_at`,
		row.ID, userID, workoutName, string(models.StatusActive),
	).Scan(&row.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return row, nil
}

// AbandonActiveSessions marks every active session for (user, workout) as abandoned.
// Returns the number of sessions that changed state.
func (db *DB) AbandonActiveSessions(ctx context.Context, userID int, workoutName string) (int64, error) {
	tag, err := db.Pool.Exec(ctx,
		`UPDATE sessions SET status = $3
		 WHERE user_id = $1 AND workout_name = $2 AND status = $4`,
		userID, workoutName, string(models.StatusAbandoned), string(models.StatusActive))
	if err != nil {
		return 0, fmt.Errorf("abandoning active sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// FindActiveSession returns the most recent active session for (user, workout),
// or nil when there is none.
func (db *DB) FindActiveSession(ctx context.Context, userID int, workoutName string) (*models.SessionRow, error) {
	row := db.Pool.QueryRow(ctx,
		`SELECT `+sessionColumns+`
		 FROM sessions
		 WHERE user_id = $1 AND workout_name = $2 AND status = $3
		 ORDER BY started_at DESC
		 LIMIT 1`,
		userID, workoutName, string(models.StatusActive))

	s, err := scanSession(row)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying active session: %w", err)
	}
	return s, nil
}

// UpdateSessionOnFinish records the end of a session. Only an active row is
// updated; updated is false when the session was already finished or
// abandoned, and the row is left as it was.
func (db *DB) UpdateSessionOnFinish(ctx context.Context, sessionID uuid.UUID, endedAt time.Time, totalDurationSeconds int, status models.SessionStatus) (bool, error) {
	tag, err := db.Pool.Exec(ctx,
		`UPDATE sessions SET ended_at = $2, total_duration_seconds = $3, status = $4
		 WHERE id = $1 AND status = 'active'`,
		sessionID, endedAt, totalDurationSeconds, string(status))
	if err != nil {
		return false, fmt.Errorf("updating session %s: %w", sessionID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetSession retrieves a single session owned by userID.
func (db *DB) GetSession(ctx context.Context, sessionID uuid.UUID, userID int) (*models.SessionRow, error) {
	row := db.Pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1 AND user_id = $2`,
		sessionID, userID)
	s, err := scanSession(row)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("querying session: %w", err)
	}
	return s, nil
}

// ListSessions returns sessions of every status started in [start, end), newest first.
func (db *DB) ListSessions(ctx context.Context, start, end time.Time, userID int) ([]models.SessionRow, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT `+sessionColumns+`
		 FROM sessions
		 WHERE started_at >= $1 AND started_at < $2 AND user_id = $3
		 ORDER BY started_at DESC`,
		start, end, userID)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var result []models.SessionRow
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}

func scanSession(row interface{ Scan(dest ...any) error }) (*models.SessionRow, error) {
	var s models.SessionRow
	var status string
	if err := row.Scan(&s.ID, &s.UserID, &s.WorkoutName, &status, &s.StartedAt,
		&s.EndedAt, &s.TotalDurationSeconds); err != nil {
		return nil, err
	}
	s.Status = models.SessionStatus(status)
	return &s, nil
}
