package memory

import (
	"context"
	"testing"
	"time"

	"watchparty-quiz/internal/domain"
)

func TestResultsCacheExpiresAndInvalidates(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700000000, 0)
	cache := NewResultsCache(time.Second)
	cache.clock = func() time.Time { return now }

	if err := cache.Set(ctx, domain.RoomResults{RoomID: "r1", TotalQuestions: 3}); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, _ := cache.Get(ctx, "r1")
	if !ok || got.TotalQuestions != 3 {
		t.Fatalf("expected cache hit, got ok=%v %+v", ok, got)
	}

	now = now.Add(2 * time.Second)
	if _, ok, _ := cache.Get(ctx, "r1"); ok {
		t.Fatalf("expected entry to expire")
	}

	now = now.Add(-2 * time.Second)
	_ = cache.Set(ctx, domain.RoomResults{RoomID: "r1"})
	_ = cache.Invalidate(ctx, "r1")
	if _, ok, _ := cache.Get(ctx, "r1"); ok {
		t.Fatalf("expected invalidated entry to be gone")
	}
}

func TestResultsCacheDisabledWithZeroTTL(t *testing.T) {
	ctx := context.Background()
	cache := NewResultsCache(0)
	_ = cache.Set(ctx, domain.RoomResults{RoomID: "r1"})
	if _, ok, _ := cache.Get(ctx, "r1"); ok {
		t.Fatalf("expected no caching with zero ttl")
	}
}
