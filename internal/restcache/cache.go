// Package restcache keeps the single rest-timer slot of a training session in
// a volatile store that survives process restarts but is not the durable
// record store.
package restcache

import (
	"context"
	"fmt"
	"time"
)

// Entry is the persisted form of an armed rest timer.
type Entry struct {
	ExerciseName string    `json:"exercise_name"`
	SetNumber    int       `json:"set_number"`
	EndsAt       time.Time `json:"ends_at"`
}

// Cache is a last-writer-wins slot store. Get returns nil, nil when the slot is empty.
type Cache interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, key string, e Entry) error
	Clear(ctx context.Context, key string) error
	Close() error
}

// TimerKey returns the slot key for one athlete's workout.
func TimerKey(userID int, workoutName string) string {
	return fmt.Sprintf("rest_timer:%d:%s", userID, workoutName)
}
