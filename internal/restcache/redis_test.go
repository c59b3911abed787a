package restcache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupMiniredis(t *testing.T, now time.Time) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewRedisFromClient(client, "test:")
	c.now = func() time.Time { return now }

	t.Cleanup(func() {
		_ = c.Close()
	})
	return mr, c
}

// TestRedisSetGet verifies a slot round-trips through Redis under the prefix.
func TestRedisSetGet(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	mr, c := setupMiniredis(t, now)
	ctx := context.Background()
	key := TimerKey(1, "Leg Day")

	if err := c.Set(ctx, key, Entry{ExerciseName: "Squat", SetNumber: 1, EndsAt: now.Add(90 * time.Second)}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !mr.Exists("test:" + key) {
		t.Fatal("expected prefixed key in redis")
	}

	got, err := c.Get(ctx, key)
	if err != nil || got == nil {
		t.Fatalf("Get = %v, %v", got, err)
	}
	if got.ExerciseName != "Squat" || !got.EndsAt.Equal(now.Add(90*time.Second)) {
		t.Errorf("entry = %+v", got)
	}
}

// TestRedisExpiresWithTimer verifies the key TTL tracks the remaining rest so
// the slot disappears on its own once the rest is over.
func TestRedisExpiresWithTimer(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	mr, c := setupMiniredis(t, now)
	ctx := context.Background()
	key := TimerKey(1, "Leg Day")

	_ = c.Set(ctx, key, Entry{ExerciseName: "Squat", SetNumber: 1, EndsAt: now.Add(90 * time.Second)})

	ttl := mr.TTL("test:" + key)
	if ttl < 90*time.Second || ttl > 91*time.Second {
		t.Errorf("ttl = %v, want ~91s", ttl)
	}

	mr.FastForward(92 * time.Second)
	if got, err := c.Get(ctx, key); err != nil || got != nil {
		t.Errorf("Get after expiry = %v, %v, want nil, nil", got, err)
	}
}

// TestRedisSetPastClears verifies that writing an already-elapsed timer leaves
// the slot empty rather than storing a key with a non-positive TTL.
func TestRedisSetPastClears(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	mr, c := setupMiniredis(t, now)
	ctx := context.Background()
	key := TimerKey(1, "Leg Day")

	_ = c.Set(ctx, key, Entry{ExerciseName: "Squat", SetNumber: 1, EndsAt: now.Add(time.Minute)})
	if err := c.Set(ctx, key, Entry{ExerciseName: "Squat", SetNumber: 2, EndsAt: now.Add(-time.Second)}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if mr.Exists("test:" + key) {
		t.Error("expected key to be removed")
	}
}

// TestRedisClear verifies Clear removes the slot.
func TestRedisClear(t *testing.T) {
	now := time.Now()
	_, c := setupMiniredis(t, now)
	ctx := context.Background()
	key := TimerKey(3, "Pull")

	_ = c.Set(ctx, key, Entry{ExerciseName: "Row", SetNumber: 1, EndsAt: now.Add(time.Minute)})
	if err := c.Clear(ctx, key); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if got, _ := c.Get(ctx, key); got != nil {
		t.Errorf("Get after Clear = %+v, want nil", got)
	}
}
