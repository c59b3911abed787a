package workout

import (
	"testing"

	"github.com/claude/ironsession/internal/models"
	"github.com/google/uuid"
)

// TestLedgerDedupAndOrder verifies duplicates are rejected and entries keep
// insertion order.
func TestLedgerDedupAndOrder(t *testing.T) {
	sid := uuid.New()
	l := NewLedger()

	rows := []models.SetLogRow{
		{SessionID: sid, ExerciseName: "Squat", SetNumber: 1},
		{SessionID: sid, ExerciseName: "Lunge", SetNumber: 1},
		{SessionID: sid, ExerciseName: "Squat", SetNumber: 2},
	}
	for _, r := range rows {
		if !l.Append(r) {
			t.Fatalf("Append(%s %d) = false", r.ExerciseName, r.SetNumber)
		}
	}
	if l.Append(models.SetLogRow{SessionID: sid, ExerciseName: "Squat", SetNumber: 1, Reps: 99}) {
		t.Error("duplicate accepted")
	}

	got := l.Entries()
	if len(got) != 3 || l.Len() != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i := range rows {
		if got[i].ExerciseName != rows[i].ExerciseName || got[i].SetNumber != rows[i].SetNumber {
			t.Errorf("entry %d = %s %d, want %s %d", i, got[i].ExerciseName, got[i].SetNumber, rows[i].ExerciseName, rows[i].SetNumber)
		}
	}
	if l.CountFor("Squat") != 2 || l.NextSetNumber("Squat") != 3 {
		t.Errorf("Squat count/next = %d/%d, want 2/3", l.CountFor("Squat"), l.NextSetNumber("Squat"))
	}
	if l.NextSetNumber("Deadlift") != 1 {
		t.Errorf("NextSetNumber for new exercise = %d, want 1", l.NextSetNumber("Deadlift"))
	}
}

// TestLedgerEntriesIsCopy verifies callers cannot mutate the ledger.
func TestLedgerEntriesIsCopy(t *testing.T) {
	l := NewLedger()
	l.Append(models.SetLogRow{ExerciseName: "Squat", SetNumber: 1, Reps: 5})
	e := l.Entries()
	e[0].Reps = 100
	if l.Entries()[0].Reps != 5 {
		t.Error("ledger entry mutated through Entries()")
	}
}

// TestSummarize verifies volume and distinct exercise counting.
func TestSummarize(t *testing.T) {
	sid := uuid.New()
	entries := []models.SetLogRow{
		{ExerciseName: "Squat", SetNumber: 1, WeightKg: 60, Reps: 10},
		{ExerciseName: "Squat", SetNumber: 2, WeightKg: 62.5, Reps: 8},
		{ExerciseName: "Lunge", SetNumber: 1, WeightKg: 0, Reps: 12},
		{ExerciseName: "Curl", SetNumber: 1, WeightKg: 12, Reps: 0},
	}
	s := Summarize(sid, entries, 1800)

	if s.SessionID != sid || s.TotalDurationSeconds != 1800 {
		t.Errorf("id/duration = %v/%d", s.SessionID, s.TotalDurationSeconds)
	}
	if s.TotalSets != 4 {
		t.Errorf("TotalSets = %d, want 4", s.TotalSets)
	}
	if s.TotalVolume != 1100 {
		t.Errorf("TotalVolume = %v, want 1100", s.TotalVolume)
	}
	if s.ExercisesCompleted != 3 {
		t.Errorf("ExercisesCompleted = %d, want 3", s.ExercisesCompleted)
	}

	empty := Summarize(sid, nil, 0)
	if empty.TotalSets != 0 || empty.TotalVolume != 0 || empty.ExercisesCompleted != 0 {
		t.Errorf("empty summary = %+v", empty)
	}
}
