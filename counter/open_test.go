package counter

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"counter-pipeline/config"
)

func TestOpenRedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &config.Config{}
	cfg.Counter.Backend = config.CounterRedis
	cfg.Counter.RedisConnectionString = mr.Addr()
	cfg.Counter.Key = "counter:1"

	store, closer, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer closer.Close()

	v, err := store.Increment(context.Background())
	if err != nil || v != 1 {
		t.Fatalf("increment = %d, %v", v, err)
	}
	if got, _ := mr.Get("counter:1"); got != "1" {
		t.Fatalf("unexpected stored value %q", got)
	}
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	cfg := &config.Config{}
	cfg.Counter.Backend = "memcached"
	if _, _, err := Open(context.Background(), cfg); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}
