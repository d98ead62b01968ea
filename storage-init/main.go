package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"counter-pipeline/config"
	"counter-pipeline/counter"
	"counter-pipeline/eventstore"
	"counter-pipeline/queue"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatal(err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	log.Info("storage init starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := initQueue(ctx, cfg); err != nil {
		log.Fatalf("create queue: %v", err)
	}
	if err := initEventStore(ctx, cfg); err != nil {
		log.Fatalf("create event store: %v", err)
	}
	if err := initCounter(ctx, cfg); err != nil {
		log.Fatalf("create counter table: %v", err)
	}

	log.Info("storage init complete")
}

// initQueue resolves the queue, which creates it when absent.
func initQueue(ctx context.Context, cfg *config.Config) error {
	backend, err := queue.Open(ctx, cfg)
	if err != nil {
		return err
	}
	addr, err := queue.NewResolver(backend, cfg.Queue.Name).Resolve(ctx)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"queue": cfg.Queue.Name, "address": addr}).Info("queue ready")
	return nil
}

func initEventStore(ctx context.Context, cfg *config.Config) error {
	_, closer, err := eventstore.Open(ctx, cfg)
	if err != nil {
		return err
	}
	log.WithField("backend", cfg.Storage.Backend).Info("event store ready")
	return closer.Close()
}

// initCounter only has work to do for the postgres counter; Redis keys are
// created on first use.
func initCounter(ctx context.Context, cfg *config.Config) error {
	if cfg.Counter.Backend != config.CounterPostgres {
		return nil
	}
	_, closer, err := counter.Open(ctx, cfg)
	if err != nil {
		return err
	}
	log.Info("counter table ready")
	return closer.Close()
}
