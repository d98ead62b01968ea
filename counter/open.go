package counter

import (
	"context"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"counter-pipeline/config"
)

type closeFunc func() error

func (f closeFunc) Close() error { return f() }

// Open connects the counter store selected by cfg.Counter.Backend.
func Open(ctx context.Context, cfg *config.Config) (Store, io.Closer, error) {
	switch cfg.Counter.Backend {
	case config.CounterRedis:
		opts, err := cfg.Counter.RedisOptions()
		if err != nil {
			return nil, nil, err
		}
		rc := redis.NewClient(opts)
		return NewRedisStore(rc, cfg.Counter.Key), rc, nil
	case config.CounterPostgres:
		pool, err := pgxpool.New(ctx, cfg.Counter.PostgresURL)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres pool: %w", err)
		}
		s := NewPostgresStore(pool, cfg.Counter.Key)
		if err := s.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return s, closeFunc(func() error {
			pool.Close()
			return nil
		}), nil
	default:
		return nil, nil, fmt.Errorf("unknown counter backend %q", cfg.Counter.Backend)
	}
}
