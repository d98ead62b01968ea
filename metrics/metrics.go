// Package metrics holds the Prometheus collectors shared by the pipeline.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

var (
	EventsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "counter_events_published_total",
		Help: "Increment events accepted by the queue",
	})
	PublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "counter_events_publish_failures_total",
		Help: "Increment events that could not be handed to the queue",
	})

	MessagesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "consumer_messages_received_total",
		Help: "Queue messages received by the consumer",
	})
	MessagesPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "consumer_messages_persisted_total",
		Help: "Increment events written to the event store",
	})
	MessagesInvalid = promauto.NewCounter(prometheus.CounterOpts{
		Name: "consumer_messages_invalid_total",
		Help: "Messages left on the queue because they are not valid increment events",
	})
	ConsumerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "consumer_errors_total",
		Help: "Poll iterations that ended in error backoff",
	}, []string{"stage"})
	ProcessingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "consumer_processing_duration_seconds",
		Help:    "Time from receipt to acknowledgement of one message",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	ReportCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "report_cycles_total",
		Help: "Aggregation cycles by outcome",
	}, []string{"outcome"})
	EventsPurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "report_events_purged_total",
		Help: "Events removed from the store after a dispatched report",
	})
)

// Serve exposes the default registry on addr until ctx is done.
func Serve(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.WithField("addr", addr).Info("metrics listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Error("metrics server stopped")
	}
}
