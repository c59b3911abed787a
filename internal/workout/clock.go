// Package workout implements the live training session engine: the session
// coordinator, its rest timer and set ledger, and the reconciler that makes
// every logged set durable exactly once.
package workout

import "time"

// Clock returns the current wall-clock time.
type Clock func() time.Time

// Elapsed returns whole seconds since startedAt, floored. It is recomputed
// from the anchor on every call so a stalled ticker never drifts.
func Elapsed(now, startedAt time.Time) int {
	d := now.Sub(startedAt)
	if d <= 0 {
		return 0
	}
	return int(d / time.Second)
}

// Remaining returns the whole seconds left until endsAt, rounded up and never
// negative.
func Remaining(now, endsAt time.Time) int {
	d := endsAt.Sub(now)
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
