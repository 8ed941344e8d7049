package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiterWindow(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewMemoryLimiter(MemoryLimiterConfig{Now: func() time.Time { return now }})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		decision, err := limiter.Allow(ctx, "subject:tech-1:endpoint:jobs:submit", 3, time.Minute)
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !decision.Allowed {
			t.Fatalf("request %d denied under limit", i)
		}
		if decision.Remaining != 3-(i+1) {
			t.Fatalf("remaining = %d after request %d", decision.Remaining, i)
		}
	}

	decision, err := limiter.Allow(ctx, "subject:tech-1:endpoint:jobs:submit", 3, time.Minute)
	if err != nil {
		t.Fatalf("allow over limit: %v", err)
	}
	if decision.Allowed {
		t.Fatalf("fourth request allowed over limit of 3")
	}
	if decision.ResetAt.IsZero() {
		t.Fatalf("denied decision missing reset time")
	}

	// Independent keys do not share buckets.
	other, err := limiter.Allow(ctx, "subject:tech-2:endpoint:jobs:submit", 3, time.Minute)
	if err != nil || !other.Allowed {
		t.Fatalf("other subject throttled: %+v %v", other, err)
	}

	// A new window resets the count.
	now = now.Add(2 * time.Minute)
	decision, err = limiter.Allow(ctx, "subject:tech-1:endpoint:jobs:submit", 3, time.Minute)
	if err != nil || !decision.Allowed {
		t.Fatalf("window rollover did not reset: %+v %v", decision, err)
	}
	if decision.Remaining != 2 {
		t.Fatalf("remaining after rollover = %d, want 2", decision.Remaining)
	}
}

func TestMemoryLimiterZeroLimitDisables(t *testing.T) {
	limiter := NewMemoryLimiter(MemoryLimiterConfig{})
	decision, err := limiter.Allow(context.Background(), "any", 0, time.Minute)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("zero limit should disable limiting")
	}
}
