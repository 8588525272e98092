package queue

import (
	"context"
	"testing"

	"github.com/vietddude/bidwatch/internal/core/domain"
)

func TestMemoryQueue_PriorityThenFIFO(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()

	pushes := []struct {
		id       string
		priority int
	}{
		{"listing", 5},
		{"bid-1", 8},
		{"transfer", 10},
		{"bid-2", 8},
		{"other", 1},
		{"ended", 10},
	}
	for _, p := range pushes {
		if err := q.Push(ctx, &domain.ChainEvent{ID: p.id, Priority: p.priority}); err != nil {
			t.Fatalf("push failed: %v", err)
		}
	}

	if n, _ := q.Len(ctx); n != 6 {
		t.Errorf("expected 6 queued, got %d", n)
	}

	got, err := q.Pop(ctx, 4)
	if err != nil {
		t.Fatalf("pop failed: %v", err)
	}
	want := []string{"transfer", "ended", "bid-1", "bid-2"}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, got[i].ID)
		}
	}

	rest, _ := q.Pop(ctx, 10)
	if len(rest) != 2 || rest[0].ID != "listing" || rest[1].ID != "other" {
		t.Errorf("unexpected remainder %v", rest)
	}

	empty, _ := q.Pop(ctx, 10)
	if len(empty) != 0 {
		t.Errorf("expected empty pop, got %d", len(empty))
	}
}
