// Package redisstore holds the redis-backed counters used for request
// rate limiting.
package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Store struct {
	client *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

// NewWithClient wraps an existing client (used by tests).
func NewWithClient(c *redis.Client) *Store {
	return &Store{client: c}
}

func (s *Store) Close() error {
	return s.client.Close()
}

// IncrWindow increments the counter for key's current fixed window and
// returns the new count. The window key expires after the window length.
func (s *Store) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	bucket := time.Now().Unix() / int64(window.Seconds())
	wkey := fmt.Sprintf("rl:%s:%d", key, bucket)

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, wkey)
	pipe.Expire(ctx, wkey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
