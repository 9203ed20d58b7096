package handlers

import (
	"testing"
	"time"
)

func TestFixedWindowLimiter(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(2, time.Minute, func() time.Time { return now })

	for i := 0; i < 2; i++ {
		if ok, _ := limiter.Allow("ip:1"); !ok {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}
	ok, retry := limiter.Allow("ip:1")
	if ok {
		t.Fatalf("third attempt should be rejected")
	}
	if retry != time.Minute {
		t.Fatalf("expected retry after 1m, got %s", retry)
	}
	if ok, _ := limiter.Allow("ip:2"); !ok {
		t.Fatalf("other keys must not share the window")
	}

	now = now.Add(time.Minute + time.Second)
	if ok, _ := limiter.Allow("ip:1"); !ok {
		t.Fatalf("window should reset")
	}
}

func TestNewRateLimiterDisabled(t *testing.T) {
	if NewRateLimiter(0, time.Minute, nil) != nil {
		t.Fatalf("expected nil limiter for zero limit")
	}
}
