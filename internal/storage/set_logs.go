package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/claude/ironsession/internal/models"
	"github.com/google/uuid"
)

const setLogColumns = `session_id, exercise_name, set_number, weight_kg, reps,
	rest_seconds_prescribed, rest_respected, completed_at`

// InsertSetLog inserts one set. Returns true if inserted, false if the
// (session, exercise, set number) key already exists.
func (db *DB) InsertSetLog(ctx context.Context, r models.SetLogRow) (bool, error) {
	tag, err := db.Pool.Exec(ctx,
		`INSERT INTO set_logs (`+setLogColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		 ON CONFLICT DO NOTHING`,
		r.SessionID, r.ExerciseName, r.SetNumber, r.WeightKg, r.Reps,
		r.RestSecondsPrescribed, r.RestRespected, r.CompletedAt)
	if err != nil {
		return false, fmt.Errorf("inserting set log: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// BulkInsertSetLogs batch-inserts sets, skipping keys already present. Returns count inserted.
func (db *DB) BulkInsertSetLogs(ctx context.Context, rows []models.SetLogRow) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	query, args := buildSetLogInsert(rows)
	tag, err := db.Pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("inserting set logs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// buildSetLogInsert renders a multi-row INSERT for rows.
func buildSetLogInsert(rows []models.SetLogRow) (string, []any) {
	const cols = 8
	query := `INSERT INTO set_logs (` + setLogColumns + `) VALUES `
	args := make([]any, 0, len(rows)*cols)
	valueStrings := make([]string, 0, len(rows))

	for i, r := range rows {
		base := i * cols
		valueStrings = append(valueStrings, fmt.Sprintf(
			"($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8,
		))
		args = append(args, r.SessionID, r.ExerciseName, r.SetNumber, r.WeightKg, r.Reps,
			r.RestSecondsPrescribed, r.RestRespected, r.CompletedAt)
	}

	return query + strings.Join(valueStrings, ",") + " ON CONFLICT DO NOTHING", args
}

// ListSetLogs returns every set of a session in completion order.
func (db *DB) ListSetLogs(ctx context.Context, sessionID uuid.UUID) ([]models.SetLogRow, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT `+setLogColumns+`
		 FROM set_logs
		 WHERE session_id = $1
		 ORDER BY completed_at ASC, exercise_name ASC, set_number ASC`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying set logs: %w", err)
	}
	defer rows.Close()

	return scanSetLogs(rows)
}

// ListSessionSetLogs is ListSetLogs restricted to sessions owned by userID.
func (db *DB) ListSessionSetLogs(ctx context.Context, sessionID uuid.UUID, userID int) ([]models.SetLogRow, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT l.session_id, l.exercise_name, l.set_number, l.weight_kg, l.reps,
		        l.rest_seconds_prescribed, l.rest_respected, l.completed_at
		 FROM set_logs l
		 JOIN sessions s ON s.id = l.session_id
		 WHERE l.session_id = $1 AND s.user_id = $2
		 ORDER BY l.completed_at ASC, l.exercise_name ASC, l.set_number ASC`,
		sessionID, userID)
	if err != nil {
		return nil, fmt.Errorf("querying session set logs: %w", err)
	}
	defer rows.Close()

	return scanSetLogs(rows)
}

func scanSetLogs(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]models.SetLogRow, error) {
	var result []models.SetLogRow
	for rows.Next() {
		var r models.SetLogRow
		if err := rows.Scan(&r.SessionID, &r.ExerciseName, &r.SetNumber, &r.WeightKg, &r.Reps,
			&r.RestSecondsPrescribed, &r.RestRespected, &r.CompletedAt); err != nil {
			return nil, fmt.Errorf("scanning set log: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}
