package report

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"counter-pipeline/domain"
	"counter-pipeline/eventstore"
	"counter-pipeline/metrics"
)

// ErrCycleInProgress is returned when another cycle holds the process or
// cluster lock.
var ErrCycleInProgress = errors.New("report cycle already in progress")

const defaultWindow = time.Hour

// Result describes a finished cycle.
type Result struct {
	Reported  bool
	Events    int
	Purged    int
	MessageID string
}

// Aggregator runs the summarize, dispatch, purge cycle over one ingestion
// window. Events are purged only after the report was accepted for delivery.
type Aggregator struct {
	store      eventstore.Store
	dispatcher Dispatcher
	window     time.Duration
	locker     Locker
	tracer     trace.Tracer

	mu sync.Mutex
}

type AggregatorOption func(*Aggregator)

// WithLocker adds a cross-process lock around every cycle.
func WithLocker(l Locker) AggregatorOption {
	return func(a *Aggregator) { a.locker = l }
}

func WithTracer(t trace.Tracer) AggregatorOption {
	return func(a *Aggregator) { a.tracer = t }
}

func NewAggregator(store eventstore.Store, dispatcher Dispatcher, window time.Duration, opts ...AggregatorOption) *Aggregator {
	if window <= 0 {
		window = defaultWindow
	}
	a := &Aggregator{
		store:      store,
		dispatcher: dispatcher,
		window:     window,
		tracer:     otel.Tracer("counter-pipeline/report"),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// RunCycle reports the events ingested in [now-window, now). An empty window
// sends nothing and purges nothing.
func (a *Aggregator) RunCycle(ctx context.Context, now time.Time) (res Result, err error) {
	if !a.mu.TryLock() {
		return Result{}, ErrCycleInProgress
	}
	defer a.mu.Unlock()

	ctx, span := a.tracer.Start(ctx, "report.cycle", trace.WithAttributes(
		attribute.String("report.window_end", now.UTC().Format(time.RFC3339))))
	defer func() {
		if err != nil && !errors.Is(err, ErrCycleInProgress) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "report cycle failed")
		}
		span.End()
	}()

	if a.locker != nil {
		ok, err := a.locker.TryLock(ctx)
		if err != nil {
			metrics.ReportCycles.WithLabelValues("lock_error").Inc()
			return Result{}, err
		}
		if !ok {
			metrics.ReportCycles.WithLabelValues("skipped").Inc()
			return Result{}, ErrCycleInProgress
		}
		defer func() {
			if err := a.locker.Unlock(context.WithoutCancel(ctx)); err != nil {
				log.WithError(err).Warn("report lock release failed")
			}
		}()
	}

	from := now.Add(-a.window)
	recs, err := a.store.ListRange(ctx, from, now)
	if err != nil {
		metrics.ReportCycles.WithLabelValues("query_failed").Inc()
		return Result{}, domain.NewStageError(domain.ErrPersistence, "query", err)
	}
	summary, ok := domain.Summarize(recs, now)
	if !ok {
		metrics.ReportCycles.WithLabelValues("empty").Inc()
		log.WithFields(log.Fields{"from": from, "to": now}).Info("no counter events in window, skipping report")
		return Result{}, nil
	}

	// Past this point the cycle finishes even if the caller shuts down, so
	// a sent report is always followed by its purge.
	ctx = context.WithoutCancel(ctx)
	msg, err := Render(summary)
	if err != nil {
		metrics.ReportCycles.WithLabelValues("dispatch_failed").Inc()
		return Result{Events: len(recs)}, domain.NewStageError(domain.ErrDispatch, "render", err)
	}
	msgID, err := a.dispatcher.Dispatch(ctx, msg)
	if err != nil {
		metrics.ReportCycles.WithLabelValues("dispatch_failed").Inc()
		return Result{Events: len(recs)}, domain.NewStageError(domain.ErrDispatch, "dispatch", err)
	}
	res = Result{Reported: true, Events: len(recs), MessageID: msgID}

	purged, err := a.store.Delete(ctx, domain.IDs(recs))
	res.Purged = purged
	metrics.EventsPurged.Add(float64(purged))
	if err != nil {
		metrics.ReportCycles.WithLabelValues("purge_failed").Inc()
		return res, domain.NewStageError(domain.ErrPersistence, "purge", err)
	}
	metrics.ReportCycles.WithLabelValues("reported").Inc()
	log.WithFields(log.Fields{
		"message_id":   msgID,
		"total_events": len(recs),
		"purged":       purged,
	}).Info("report.cycle.completed")
	return res, nil
}
