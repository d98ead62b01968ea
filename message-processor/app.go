package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"counter-pipeline/config"
	"counter-pipeline/consumer"
	"counter-pipeline/eventstore"
	"counter-pipeline/queue"
	"counter-pipeline/report"
)

const reportLockKey = "counter-report:lock"

// app holds the wired message processor components.
type app struct {
	consumer  *consumer.Consumer
	scheduler *report.Scheduler
	closers   []io.Closer
}

// newApp wires the consumer and, when reports is set, the report scheduler.
func newApp(ctx context.Context, cfg *config.Config, reports bool) (*app, error) {
	a := &app{}
	if err := a.wire(ctx, cfg, reports); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context, cfg *config.Config, reports bool) error {
	store, storeCloser, err := eventstore.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("event store: %w", err)
	}
	a.closers = append(a.closers, storeCloser)

	backend, err := queue.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("queue: %w", err)
	}
	resolver := queue.NewResolver(backend, cfg.Queue.Name)
	a.consumer = consumer.New(resolver, backend, store, consumer.Config{
		WaitTime:     cfg.Queue.WaitTime,
		MaxMessages:  cfg.Queue.MaxMessages,
		ErrorBackoff: cfg.Queue.ErrorBackoff,
	}, consumer.WithObserver(func(s consumer.State) {
		log.WithField("state", s.String()).Trace("consumer state")
	}))
	if !reports {
		return nil
	}

	awsCfg, err := queue.LoadAWSConfig(ctx, cfg.AWS.Region, cfg.AWS.AccessKeyID, cfg.AWS.SecretAccessKey)
	if err != nil {
		return err
	}
	dispatcher, err := report.NewSESDispatcher(awsCfg, cfg.AWS.Endpoint, cfg.Report.From, cfg.Report.To)
	if err != nil {
		return err
	}

	var opts []report.AggregatorOption
	if cfg.Report.ClusterLock {
		redisOpts, err := cfg.Counter.RedisOptions()
		if err != nil {
			return err
		}
		rc := redis.NewClient(redisOpts)
		a.closers = append(a.closers, rc)
		opts = append(opts, report.WithLocker(report.NewRedisLock(rc, reportLockKey, cfg.Report.LockTTL)))
	}
	agg := report.NewAggregator(store, dispatcher, cfg.Report.Window, opts...)
	a.scheduler, err = report.NewScheduler(agg, cfg.Report.Schedule)
	return err
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
