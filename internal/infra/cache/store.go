// Package cache defines the key-value store used for short-lived shared
// state, with an in-process implementation. The Redis implementation lives
// in internal/infra/redis.
package cache

import (
	"context"
	"time"
)

// Store is a byte-valued key-value store with optional TTL.
// A ttl <= 0 means no expiry.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
