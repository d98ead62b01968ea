package report

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron"
	log "github.com/sirupsen/logrus"
)

type cycleRunner interface {
	RunCycle(ctx context.Context, now time.Time) (Result, error)
}

// Scheduler triggers report cycles on a cron schedule evaluated in UTC.
// Schedules use the six-field form with seconds or a descriptor such as
// "@hourly".
type Scheduler struct {
	runner cycleRunner
	spec   string
	now    func() time.Time

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

func NewScheduler(runner cycleRunner, spec string) (*Scheduler, error) {
	if _, err := cron.Parse(spec); err != nil {
		return nil, fmt.Errorf("invalid report schedule %q: %w", spec, err)
	}
	return &Scheduler{runner: runner, spec: spec, now: time.Now}, nil
}

// Run blocks until ctx is done, then waits for an in-flight cycle.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.NewWithLocation(time.UTC)
	if err := c.AddFunc(s.spec, func() { s.tick(ctx) }); err != nil {
		return err
	}
	c.Start()
	log.WithField("schedule", s.spec).Info("report scheduler started")
	<-ctx.Done()
	c.Stop()
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.wg.Wait()
	log.Info("report scheduler stopped")
	return nil
}

// RunOnce runs a single cycle immediately.
func (s *Scheduler) RunOnce(ctx context.Context) (Result, error) {
	return s.runner.RunCycle(ctx, s.now())
}

func (s *Scheduler) tick(ctx context.Context) {
	s.mu.Lock()
	if s.stopped || ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	res, err := s.RunOnce(ctx)
	switch {
	case errors.Is(err, ErrCycleInProgress):
		log.Warn("report cycle skipped, previous cycle still running")
	case err != nil:
		log.WithError(err).WithField("reported", res.Reported).Error("report cycle failed")
	case res.Reported:
		log.WithFields(log.Fields{"events": res.Events, "message_id": res.MessageID}).Debug("report cycle tick done")
	}
}
