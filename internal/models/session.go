package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of a training session row.
type SessionStatus string

const (
	StatusActive    SessionStatus = "active"
	StatusFinished  SessionStatus = "finished"
	StatusAbandoned SessionStatus = "abandoned"
)

// SessionRow is a row in the sessions table.
type SessionRow struct {
	ID                   uuid.UUID     `json:"id"`
	UserID               int           `json:"user_id"`
	WorkoutName          string        `json:"workout_name"`
	Status               SessionStatus `json:"status"`
	StartedAt            time.Time     `json:"started_at"`
	EndedAt              *time.Time    `json:"ended_at,omitempty"`
	TotalDurationSeconds *int          `json:"total_duration_seconds,omitempty"`
}

// SetKey is the composite identity of a logged set.
type SetKey struct {
	SessionID    uuid.UUID
	ExerciseName string
	SetNumber    int
}

// SetLogRow is a row in the set_logs table. Rows are immutable once written.
type SetLogRow struct {
	SessionID             uuid.UUID `json:"session_id"`
	ExerciseName          string    `json:"exercise_name"`
	SetNumber             int       `json:"set_number"`
	WeightKg              float64   `json:"weight_kg"`
	Reps                  int       `json:"reps"`
	RestSecondsPrescribed int       `json:"rest_seconds_prescribed"`
	RestRespected         bool      `json:"rest_respected"`
	CompletedAt           time.Time `json:"completed_at"`
}

// Key returns the composite identity of the row.
func (r SetLogRow) Key() SetKey {
	return SetKey{SessionID: r.SessionID, ExerciseName: r.ExerciseName, SetNumber: r.SetNumber}
}

// RestTimerState is the single rest-timer slot kept in the volatile cache.
type RestTimerState struct {
	Active           bool      `json:"active"`
	ExerciseName     string    `json:"exercise_name,omitempty"`
	SetNumber        int       `json:"set_number,omitempty"`
	EndsAt           time.Time `json:"ends_at,omitempty"`
	RemainingSeconds int       `json:"remaining_seconds"`
}

// SessionSummary is derived from the ledger when a session finishes. It is never stored.
type SessionSummary struct {
	SessionID            uuid.UUID `json:"session_id"`
	TotalDurationSeconds int       `json:"total_duration_seconds"`
	TotalSets            int       `json:"total_sets"`
	TotalVolume          float64   `json:"total_volume"`
	ExercisesCompleted   int       `json:"exercises_completed"`
}
