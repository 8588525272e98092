package bidding

import (
	"context"
	"testing"
	"time"
)

func TestMemoryRateLimiter_SlidingWindow(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	l := NewMemoryRateLimiter(5, time.Minute)
	l.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		ok, _ := l.Allow(ctx, "G_BUYER")
		if !ok {
			t.Fatalf("attempt %d: expected allowed", i+1)
		}
		now = now.Add(time.Second)
	}

	if ok, _ := l.Allow(ctx, "G_BUYER"); ok {
		t.Error("expected sixth attempt rejected")
	}
	if ok, _ := l.Allow(ctx, "G_OTHER"); !ok {
		t.Error("expected other key unaffected")
	}

	// Rejections are not recorded, so the first slot frees after the window
	now = now.Add(56 * time.Second)
	if ok, _ := l.Allow(ctx, "G_BUYER"); !ok {
		t.Error("expected attempt allowed once the oldest entry expired")
	}
	if ok, _ := l.Allow(ctx, "G_BUYER"); ok {
		t.Error("expected window full again")
	}
}
