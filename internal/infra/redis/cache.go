package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheStore implements cache.Store on Redis strings. Keys are used as-is so
// the layout matches other services reading the same cache.
type CacheStore struct {
	rdb *redis.Client
}

// NewCacheStore creates a Redis-backed cache store.
func NewCacheStore(client *Client) *CacheStore {
	return &CacheStore{rdb: client.rdb}
}

func (s *CacheStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (s *CacheStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return s.rdb.Set(ctx, key, value, ttl).Err()
}

func (s *CacheStore) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}
