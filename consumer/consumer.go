// Package consumer moves increment events from the queue into the event
// store with at-least-once semantics.
package consumer

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"counter-pipeline/domain"
	"counter-pipeline/eventstore"
	"counter-pipeline/metrics"
	"counter-pipeline/queue"
)

// ErrQueue marks receive and acknowledge failures.
var ErrQueue = errors.New("queue failure")

const (
	defaultWaitTime     = 20 * time.Second
	defaultMaxMessages  = 1
	defaultErrorBackoff = 5 * time.Second
	tracerName          = "counter-pipeline/consumer"
)

type Config struct {
	WaitTime     time.Duration
	MaxMessages  int
	ErrorBackoff time.Duration
}

type addressResolver interface {
	Resolve(ctx context.Context) (string, error)
}

// Consumer is a single sequential receive loop. A message is deleted from
// the queue only after its record has been written.
type Consumer struct {
	resolver addressResolver
	receiver queue.Receiver
	store    eventstore.Store
	cfg      Config
	now      func() time.Time
	tracer   trace.Tracer
	observe  func(State)
}

type Option func(*Consumer)

// WithObserver reports every state transition to fn.
func WithObserver(fn func(State)) Option {
	return func(c *Consumer) { c.observe = fn }
}

func WithTracer(t trace.Tracer) Option {
	return func(c *Consumer) { c.tracer = t }
}

func WithClock(now func() time.Time) Option {
	return func(c *Consumer) { c.now = now }
}

func New(resolver addressResolver, receiver queue.Receiver, store eventstore.Store, cfg Config, opts ...Option) *Consumer {
	if cfg.WaitTime < 0 {
		cfg.WaitTime = defaultWaitTime
	}
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = defaultMaxMessages
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = defaultErrorBackoff
	}
	c := &Consumer{
		resolver: resolver,
		receiver: receiver,
		store:    store,
		cfg:      cfg,
		now:      time.Now,
		tracer:   otel.Tracer(tracerName),
		observe:  func(State) {},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Run polls until ctx is cancelled. Failures are logged and followed by a
// backoff; Run returns nil on shutdown.
func (c *Consumer) Run(ctx context.Context) error {
	log.WithFields(log.Fields{
		"wait_time":    c.cfg.WaitTime,
		"max_messages": c.cfg.MaxMessages,
	}).Info("consumer started")
	defer log.Info("consumer stopped")

	for {
		if ctx.Err() != nil {
			return nil
		}
		err := c.Poll(ctx)
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return nil
		}
		metrics.ConsumerErrors.WithLabelValues(stageOf(err)).Inc()
		log.WithError(err).WithField("backoff", c.cfg.ErrorBackoff).Error("consumer iteration failed")
		c.observe(ErrorBackoff)
		if !sleep(ctx, c.cfg.ErrorBackoff) {
			return nil
		}
	}
}

// Poll performs one receive and handles the batch in order. The first
// persist or acknowledge failure abandons the rest of the batch, which the
// queue redelivers after its visibility timeout.
func (c *Consumer) Poll(ctx context.Context) error {
	c.observe(Polling)
	addr, err := c.resolver.Resolve(ctx)
	if err != nil {
		return err
	}
	msgs, err := c.receiver.Receive(ctx, addr, c.cfg.MaxMessages, c.cfg.WaitTime)
	if err != nil {
		return domain.NewStageError(ErrQueue, "receive", err)
	}
	for _, m := range msgs {
		if ctx.Err() != nil {
			return nil
		}
		if err := c.handle(ctx, addr, m); err != nil {
			return err
		}
	}
	return nil
}

// handle runs on a context detached from shutdown so a message that reached
// the store is also acknowledged.
func (c *Consumer) handle(ctx context.Context, addr string, m queue.Message) error {
	ctx, span := c.tracer.Start(context.WithoutCancel(ctx), "consumer.handle",
		trace.WithAttributes(attribute.String("messaging.message.id", m.ID)))
	defer span.End()
	start := time.Now()
	metrics.MessagesReceived.Inc()
	c.observe(Received)

	c.observe(Validating)
	ev, err := domain.ParseIncrementEvent([]byte(m.Body))
	if err != nil {
		metrics.MessagesInvalid.Inc()
		span.SetStatus(codes.Error, "invalid message")
		log.WithError(err).WithField("message_id", m.ID).Warn("consumer.message.invalid")
		return nil
	}

	c.observe(Persisting)
	id, err := c.store.Insert(ctx, domain.NewEventRecord(ev, c.now()))
	if err != nil {
		err = domain.NewStageError(domain.ErrPersistence, "persist", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		return err
	}
	span.SetAttributes(attribute.String("event.id", id))

	c.observe(Acknowledging)
	if err := c.receiver.Delete(ctx, addr, m.Receipt); err != nil {
		err = domain.NewStageError(ErrQueue, "acknowledge", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "acknowledge failed")
		return err
	}
	metrics.MessagesPersisted.Inc()
	metrics.ProcessingDuration.Observe(time.Since(start).Seconds())
	log.WithFields(log.Fields{
		"message_id": m.ID,
		"event_id":   id,
		"timestamp":  ev.Timestamp,
	}).Info("consumer.message.persisted")
	return nil
}

func stageOf(err error) string {
	var stageErr *domain.StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage
	}
	if errors.Is(err, domain.ErrResolution) {
		return "resolve"
	}
	return "unknown"
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
