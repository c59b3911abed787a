package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/claude/ironsession/internal/models"
	"github.com/google/uuid"
)

// TestBuildSetLogInsert verifies placeholder numbering and argument order for a
// multi-row insert, and that duplicates are left to ON CONFLICT DO NOTHING.
func TestBuildSetLogInsert(t *testing.T) {
	sid := uuid.New()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	rows := []models.SetLogRow{
		{SessionID: sid, ExerciseName: "Squat", SetNumber: 1, WeightKg: 60, Reps: 10, RestSecondsPrescribed: 90, RestRespected: true, CompletedAt: now},
		{SessionID: sid, ExerciseName: "Squat", SetNumber: 2, WeightKg: 60, Reps: 8, RestSecondsPrescribed: 90, RestRespected: true, CompletedAt: now.Add(2 * time.Minute)},
	}

	query, args := buildSetLogInsert(rows)

	if !strings.Contains(query, "($1,$2,$3,$4,$5,$6,$7,$8),($9,$10,$11,$12,$13,$14,$15,$16)") {
		t.Errorf("unexpected placeholders in query: %s", query)
	}
	if !strings.HasSuffix(query, "ON CONFLICT DO NOTHING") {
		t.Errorf("query must ignore duplicate keys: %s", query)
	}
	if len(args) != 16 {
		t.Fatalf("len(args) = %d, want 16", len(args))
	}
	if args[1] != "Squat" || args[2] != 1 {
		t.Errorf("first row args = %v, want exercise Squat set 1", args[:3])
	}
	if args[10] != 2 || args[12] != 8 {
		t.Errorf("second row set/reps = %v/%v, want 2/8", args[10], args[12])
	}
}

// TestTruncInterval verifies the bucket-to-date_trunc mapping.
func TestTruncInterval(t *testing.T) {
	tests := []struct {
		bucket string
		want   string
	}{
		{"1 week", "week"},
		{"1 month", "month"},
		{"anything else", "month"},
	}

	for _, tt := range tests {
		got := truncInterval(tt.bucket)
		if got != tt.want {
			t.Errorf("truncInterval(%q) = %q, want %q", tt.bucket, got, tt.want)
		}
	}
}
