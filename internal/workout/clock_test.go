package workout

import (
	"testing"
	"time"
)

// TestElapsed verifies elapsed seconds are floored and never negative.
func TestElapsed(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{"at start", start, 0},
		{"sub-second", start.Add(999 * time.Millisecond), 0},
		{"floored", start.Add(61*time.Second + 900*time.Millisecond), 61},
		{"long stall", start.Add(3 * time.Hour), 10800},
		{"clock behind anchor", start.Add(-5 * time.Second), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Elapsed(tt.now, start); got != tt.want {
				t.Errorf("Elapsed = %d, want %d", got, tt.want)
			}
		})
	}
}

// TestRemaining verifies remaining seconds are rounded up and clamp at zero.
func TestRemaining(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		endsAt time.Time
		want   int
	}{
		{"full", now.Add(90 * time.Second), 90},
		{"partial second rounds up", now.Add(89*time.Second + 100*time.Millisecond), 90},
		{"last sliver", now.Add(time.Millisecond), 1},
		{"exactly now", now, 0},
		{"past", now.Add(-30 * time.Second), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Remaining(now, tt.endsAt); got != tt.want {
				t.Errorf("Remaining = %d, want %d", got, tt.want)
			}
		})
	}
}
