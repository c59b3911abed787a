package workout

import (
	"github.com/claude/ironsession/internal/models"
	"github.com/google/uuid"
)

// Summarize derives the end-of-session summary from the ledger entries.
func Summarize(sessionID uuid.UUID, entries []models.SetLogRow, durationSeconds int) models.SessionSummary {
	s := models.SessionSummary{
		SessionID:            sessionID,
		TotalDurationSeconds: durationSeconds,
		TotalSets:            len(entries),
	}
	exercises := make(map[string]struct{})
	for _, e := range entries {
		s.TotalVolume += e.WeightKg * float64(e.Reps)
		exercises[e.ExerciseName] = struct{}{}
	}
	s.ExercisesCompleted = len(exercises)
	return s
}
