package storage

import (
	"context"
	"fmt"
	"time"
)

// DataStats holds aggregate statistics about a user's sessions.
type DataStats struct {
	TotalSessions     int64             `json:"total_sessions"`
	TotalSets         int64             `json:"total_sets"`
	EarliestSession   *time.Time        `json:"earliest_session"`
	LatestSession     *time.Time        `json:"latest_session"`
	SessionsByStatus  map[string]int64  `json:"sessions_by_status"`
	SessionsByWorkout []WorkoutNameStat `json:"sessions_by_workout"`
}

// WorkoutNameStat holds summary stats for a single workout name.
type WorkoutNameStat struct {
	WorkoutName   string  `json:"workout_name"`
	Finished      int64   `json:"finished"`
	Abandoned     int64   `json:"abandoned"`
	TotalDuration float64 `json:"total_duration_sec"`
}

// GetDataStats returns aggregate statistics for a user's stored sessions.
func (db *DB) GetDataStats(ctx context.Context, userID int) (*DataStats, error) {
	stats := &DataStats{SessionsByStatus: map[string]int64{}}

	err := db.Pool.QueryRow(ctx,
		`SELECT COUNT(*), MIN(started_at), MAX(started_at) FROM sessions WHERE user_id = $1`, userID,
	).Scan(&stats.TotalSessions, &stats.EarliestSession, &stats.LatestSession)
	if err != nil {
		return nil, fmt.Errorf("counting sessions: %w", err)
	}

	err = db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM set_logs l JOIN sessions s ON s.id = l.session_id WHERE s.user_id = $1`, userID,
	).Scan(&stats.TotalSets)
	if err != nil {
		return nil, fmt.Errorf("counting sets: %w", err)
	}

	statusRows, err := db.Pool.Query(ctx,
		`SELECT status, COUNT(*) FROM sessions WHERE user_id = $1 GROUP BY status`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying sessions by status: %w", err)
	}
	defer statusRows.Close()

	for statusRows.Next() {
		var status string
		var n int64
		if err := statusRows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning status count: %w", err)
		}
		stats.SessionsByStatus[status] = n
	}
	if err := statusRows.Err(); err != nil {
		return nil, err
	}

	rows, err := db.Pool.Query(ctx,
		`SELECT workout_name,
		        COUNT(*) FILTER (WHERE status = 'finished'),
		        COUNT(*) FILTER (WHERE status = 'abandoned'),
		        COALESCE(SUM(total_duration_seconds), 0)::float8
		 FROM sessions
		 WHERE user_id = $1
		 GROUP BY workout_name
		 ORDER BY COUNT(*) DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying sessions by workout: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s WorkoutNameStat
		if err := rows.Scan(&s.WorkoutName, &s.Finished, &s.Abandoned, &s.TotalDuration); err != nil {
			return nil, fmt.Errorf("scanning workout stat: %w", err)
		}
		stats.SessionsByWorkout = append(stats.SessionsByWorkout, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}
