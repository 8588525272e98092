// Package queue decouples chain event ingestion from processing.
package queue

import (
	"container/heap"
	"context"
	"sync"

	"github.com/vietddude/bidwatch/internal/core/domain"
)

// Queue is a priority queue of chain events. Pop returns the highest
// priority first and preserves insertion order within a priority. Events
// returned together with an error are still owned by the caller.
type Queue interface {
	Push(ctx context.Context, ev *domain.ChainEvent) error
	Pop(ctx context.Context, max int) ([]*domain.ChainEvent, error)
	Len(ctx context.Context) (int, error)
}

type item struct {
	ev  *domain.ChainEvent
	seq uint64
}

type eventHeap []item

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].ev.Priority != h[j].ev.Priority {
		return h[i].ev.Priority > h[j].ev.Priority
	}
	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) { *h = append(*h, x.(item)) }

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = item{}
	*h = old[:n-1]
	return it
}

// MemoryQueue is an in-process Queue.
type MemoryQueue struct {
	mu  sync.Mutex
	h   eventHeap
	seq uint64
}

// NewMemoryQueue creates an empty in-process queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

func (q *MemoryQueue) Push(_ context.Context, ev *domain.ChainEvent) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	heap.Push(&q.h, item{ev: ev, seq: q.seq})
	return nil
}

func (q *MemoryQueue) Pop(_ context.Context, max int) ([]*domain.ChainEvent, error) {
	if max <= 0 {
		max = 1
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*domain.ChainEvent, 0, min(max, q.h.Len()))
	for len(out) < max && q.h.Len() > 0 {
		out = append(out, heap.Pop(&q.h).(item).ev)
	}
	return out, nil
}

func (q *MemoryQueue) Len(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.h.Len(), nil
}
