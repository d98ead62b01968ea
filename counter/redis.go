package counter

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the counter in a single Redis key. INCR is atomic on the
// server so concurrent increments never collide.
type RedisStore struct {
	rdb redis.Cmdable
	key string
}

func NewRedisStore(rdb redis.Cmdable, key string) *RedisStore {
	return &RedisStore{rdb: rdb, key: key}
}

func (s *RedisStore) Increment(ctx context.Context) (int64, error) {
	v, err := s.rdb.Incr(ctx, s.key).Result()
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", s.key, err)
	}
	return v, nil
}

func (s *RedisStore) Current(ctx context.Context) (int64, error) {
	if err := s.rdb.SetNX(ctx, s.key, 0, 0).Err(); err != nil {
		return 0, fmt.Errorf("init %s: %w", s.key, err)
	}
	v, err := s.rdb.Get(ctx, s.key).Int64()
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", s.key, err)
	}
	return v, nil
}
