package metrics

import (
	"context"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// logSpanProcessor writes finished spans to the debug log. The pipeline has
// no trace collector; spans are for local diagnosis.
type logSpanProcessor struct {
	logger *log.Logger
}

func (p logSpanProcessor) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (p logSpanProcessor) OnEnd(s sdktrace.ReadOnlySpan) {
	if !p.logger.IsLevelEnabled(log.DebugLevel) {
		return
	}
	fields := log.Fields{
		"span":        s.Name(),
		"trace_id":    s.SpanContext().TraceID().String(),
		"duration_ms": float64(s.EndTime().Sub(s.StartTime()).Microseconds()) / 1000,
		"status":      s.Status().Code.String(),
	}
	for _, kv := range s.Attributes() {
		fields[string(kv.Key)] = kv.Value.Emit()
	}
	p.logger.WithFields(fields).Debug("trace.span")
}

func (p logSpanProcessor) Shutdown(context.Context) error { return nil }

func (p logSpanProcessor) ForceFlush(context.Context) error { return nil }

// InitTracing installs a global tracer provider that logs spans through
// logger. The returned function flushes and shuts it down.
func InitTracing(logger *log.Logger) func(context.Context) error {
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(logSpanProcessor{logger: logger}))
	otel.SetTracerProvider(tp)
	return tp.Shutdown
}
