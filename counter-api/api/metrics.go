package api

import (
	"time"

	log "github.com/sirupsen/logrus"
)

type counterRequestMetrics struct {
	logger        *log.Logger
	route         string
	start         time.Time
	storeDuration time.Duration
	value         int64
	errorStage    string
}

func newCounterRequestMetrics(logger *log.Logger, route string) *counterRequestMetrics {
	return &counterRequestMetrics{
		logger: logger,
		route:  route,
		start:  time.Now(),
	}
}

func (m *counterRequestMetrics) ObserveStore(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.storeDuration = duration
}

func (m *counterRequestMetrics) SetValue(v int64) {
	m.value = v
}

func (m *counterRequestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

func (m *counterRequestMetrics) Log(status int, err error) {
	if m == nil || m.logger == nil {
		return
	}

	fields := log.Fields{
		"route":    m.route,
		"status":   status,
		"total_ms": durationToMillis(time.Since(m.start)),
		"value":    m.value,
	}
	if m.storeDuration > 0 {
		fields["store_ms"] = durationToMillis(m.storeDuration)
	}
	if m.errorStage != "" {
		fields["error_stage"] = m.errorStage
	}
	if err != nil {
		fields["error"] = err.Error()
	}

	m.logger.WithFields(fields).Info("counter.request.metrics")
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
