package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/bidwatch/internal/core/domain"
)

// EventQueue is a durable priority queue of chain events on a sorted set.
// The score is the negated priority so ZPOPMIN yields the highest priority
// first; members carry a zero-padded sequence prefix so equal scores pop in
// insertion order.
type EventQueue struct {
	rdb    *redis.Client
	zkey   string
	seqKey string
	log    *slog.Logger
}

// NewEventQueue creates a queue under <prefix>:events.
func NewEventQueue(client *Client) *EventQueue {
	return &EventQueue{
		rdb:    client.rdb,
		zkey:   client.key("events"),
		seqKey: client.key("events", "seq"),
		log:    slog.Default().With("component", "event-queue"),
	}
}

// Push adds an event to the queue.
func (q *EventQueue) Push(ctx context.Context, ev *domain.ChainEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	seq, err := q.rdb.Incr(ctx, q.seqKey).Result()
	if err != nil {
		return fmt.Errorf("incr failed: %w", err)
	}

	member := fmt.Sprintf("%020d|%s", seq, data)
	if err := q.rdb.ZAdd(ctx, q.zkey, redis.Z{
		Score:  float64(-ev.Priority),
		Member: member,
	}).Err(); err != nil {
		return fmt.Errorf("zadd failed: %w", err)
	}
	return nil
}

// Pop removes and returns up to max events, highest priority first.
func (q *EventQueue) Pop(ctx context.Context, max int) ([]*domain.ChainEvent, error) {
	if max <= 0 {
		max = 1
	}
	results, err := q.rdb.ZPopMin(ctx, q.zkey, int64(max)).Result()
	if err != nil {
		return nil, fmt.Errorf("zpopmin failed: %w", err)
	}

	return decodeMembers(results, q.log), nil
}

// decodeMembers decodes popped members. Members that fail to decode are
// logged and skipped; they are already removed from the set.
func decodeMembers(results []redis.Z, log *slog.Logger) []*domain.ChainEvent {
	events := make([]*domain.ChainEvent, 0, len(results))
	for _, z := range results {
		member, ok := z.Member.(string)
		if !ok {
			log.Warn("Dropping queue member of unexpected type", "type", fmt.Sprintf("%T", z.Member))
			continue
		}
		ev, err := decodeMember(member)
		if err != nil {
			log.Warn("Dropping undecodable queue member", "error", err)
			continue
		}
		events = append(events, ev)
	}
	return events
}

// Len returns the number of queued events.
func (q *EventQueue) Len(ctx context.Context) (int, error) {
	n, err := q.rdb.ZCard(ctx, q.zkey).Result()
	if err != nil {
		return 0, fmt.Errorf("zcard failed: %w", err)
	}
	return int(n), nil
}

func decodeMember(member string) (*domain.ChainEvent, error) {
	_, payload, ok := strings.Cut(member, "|")
	if !ok {
		return nil, fmt.Errorf("invalid queue member: %q", member)
	}
	var ev domain.ChainEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return &ev, nil
}
