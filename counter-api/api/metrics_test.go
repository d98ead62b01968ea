package api

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
)

func TestCounterRequestMetricsFields(t *testing.T) {
	logger, hook := test.NewNullLogger()

	m := newCounterRequestMetrics(logger, "/counter")
	m.ObserveStore(3 * time.Millisecond)
	m.SetErrorStage("store")
	m.Log(http.StatusInternalServerError, errors.New("boom"))

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatalf("no log entry")
	}
	if entry.Message != "counter.request.metrics" {
		t.Fatalf("unexpected message: %s", entry.Message)
	}
	if entry.Data["route"] != "/counter" || entry.Data["status"] != http.StatusInternalServerError {
		t.Fatalf("unexpected fields %v", entry.Data)
	}
	if entry.Data["store_ms"] != 3.0 {
		t.Fatalf("unexpected store_ms %v", entry.Data["store_ms"])
	}
	if entry.Data["error_stage"] != "store" || entry.Data["error"] != "boom" {
		t.Fatalf("unexpected error fields %v", entry.Data)
	}
}

func TestCounterRequestMetricsIgnoresEmptyValues(t *testing.T) {
	logger, hook := test.NewNullLogger()

	m := newCounterRequestMetrics(logger, "/counter")
	m.ObserveStore(0)
	m.SetErrorStage("")
	m.SetValue(4)
	m.Log(http.StatusOK, nil)

	entry := hook.LastEntry()
	if _, ok := entry.Data["store_ms"]; ok {
		t.Fatalf("store_ms should be omitted")
	}
	if _, ok := entry.Data["error_stage"]; ok {
		t.Fatalf("error_stage should be omitted")
	}
	if entry.Data["value"] != int64(4) {
		t.Fatalf("unexpected value %v", entry.Data["value"])
	}

	var nilMetrics *counterRequestMetrics
	nilMetrics.Log(http.StatusOK, nil)
}

func TestDurationToMillis(t *testing.T) {
	if durationToMillis(-time.Second) != 0 {
		t.Fatalf("negative durations should be zero")
	}
	if durationToMillis(1500*time.Microsecond) != 1.5 {
		t.Fatalf("unexpected conversion")
	}
}
