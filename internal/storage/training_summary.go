package storage

import (
	"context"
	"fmt"
	"time"
)

// TrainingSummaryPeriod holds finished-session volume for one time period.
type TrainingSummaryPeriod struct {
	Period             string  `json:"period"`
	Sessions           int     `json:"sessions"`
	Sets               int     `json:"sets"`
	TotalReps          int     `json:"total_reps"`
	VolumeKg           float64 `json:"volume_kg"`
	AvgDurationSec     float64 `json:"avg_duration_sec"`
	AvgSetsPerSession  float64 `json:"avg_sets_per_session"`
	RestRespectedRatio float64 `json:"rest_respected_ratio"`
}

// GetTrainingSummary returns per-period totals over finished sessions.
// Abandoned sessions are excluded; their sets remain queryable individually.
func (db *DB) GetTrainingSummary(ctx context.Context, start, end time.Time, bucket string, userID int) ([]TrainingSummaryPeriod, error) {
	rows, err := db.Pool.Query(ctx,
		`WITH per_session AS (
		     SELECT s.id, s.started_at, s.total_duration_seconds,
		            COUNT(l.session_id) AS sets,
		            COALESCE(SUM(l.reps), 0) AS reps,
		            COALESCE(SUM(l.weight_kg * l.reps), 0) AS volume,
		            COUNT(l.session_id) FILTER (WHERE l.rest_respected) AS respected
		     FROM sessions s
		     LEFT JOIN set_logs l ON l.session_id = s.id
		     WHERE s.started_at >= $2 AND s.started_at < $3 AND s.user_id = $4 AND s.status = 'finished'
		     GROUP BY s.id
		 )
		 SELECT date_trunc($1, started_at)::date AS period,
		        COUNT(*)::int,
		        SUM(sets)::int,
		        SUM(reps)::int,
		        SUM(volume)::float8,
		        COALESCE(AVG(total_duration_seconds), 0)::float8,
		        COALESCE(SUM(respected)::float8 / NULLIF(SUM(sets), 0), 0)::float8
		 FROM per_session
		 GROUP BY period
		 ORDER BY period DESC`,
		truncInterval(bucket), start, end, userID)
	if err != nil {
		return nil, fmt.Errorf("querying training summary: %w", err)
	}
	defer rows.Close()

	var result []TrainingSummaryPeriod
	for rows.Next() {
		var periodTime time.Time
		var p TrainingSummaryPeriod
		if err := rows.Scan(&periodTime, &p.Sessions, &p.Sets, &p.TotalReps, &p.VolumeKg,
			&p.AvgDurationSec, &p.RestRespectedRatio); err != nil {
			return nil, fmt.Errorf("scanning training summary: %w", err)
		}
		p.Period = periodTime.Format("2006-01-02")
		if p.Sessions > 0 {
			p.AvgSetsPerSession = float64(p.Sets) / float64(p.Sessions)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// truncInterval converts bucket strings like "1 month" to the interval name
// that date_trunc expects (e.g. "month", "week").
func truncInterval(bucket string) string {
	switch bucket {
	case "1 week":
		return "week"
	case "1 month":
		return "month"
	default:
		return "month"
	}
}
