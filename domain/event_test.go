package domain

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestEncodeProducesWireShape(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 5, 0, 0, time.UTC)
	ev := NewIncrementEvent(ts, map[string]any{"source": "counter-api"})
	body, err := ev.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := `{"eventType":"COUNTER_INCREMENT","timestamp":"2024-03-01T10:05:00Z","metadata":{"source":"counter-api"}}`
	if string(body) != want {
		t.Fatalf("unexpected body %s", body)
	}
}

func TestEncodeEmptyMetadataIsObject(t *testing.T) {
	ev := IncrementEvent{EventType: CounterIncrement, Timestamp: time.Unix(0, 0)}
	body, err := ev.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := `{"eventType":"COUNTER_INCREMENT","timestamp":"1970-01-01T00:00:00Z","metadata":{}}`
	if string(body) != want {
		t.Fatalf("unexpected body %s", body)
	}
}

func TestNewIncrementEventCopiesMetadata(t *testing.T) {
	md := map[string]any{"source": "a"}
	ev := NewIncrementEvent(time.Now(), md)
	md["source"] = "b"
	if ev.Metadata["source"] != "a" {
		t.Fatalf("metadata shared with caller")
	}
}

func TestProperty_EncodeParseRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("parse(encode(ev)) preserves eventType, timestamp and metadata", prop.ForAll(
		func(sec int64, nsec int64, md map[string]string) bool {
			metadata := make(map[string]any, len(md))
			for k, v := range md {
				metadata[k] = v
			}
			ev := NewIncrementEvent(time.Unix(sec, nsec), metadata)
			body, err := ev.Encode()
			if err != nil {
				return false
			}
			got, err := ParseIncrementEvent(body)
			if err != nil {
				return false
			}
			return got.EventType == ev.EventType &&
				got.Timestamp.Equal(ev.Timestamp) &&
				reflect.DeepEqual(got.Metadata, ev.Metadata)
		},
		gen.Int64Range(0, 4102444800),
		gen.Int64Range(0, 999999999),
		gen.MapOf(gen.AlphaString(), gen.AlphaString()),
	))

	properties.TestingRun(t)
}

func TestParseAcceptsProducerFormats(t *testing.T) {
	cases := map[string]time.Time{
		`"2024-03-01T10:05:00.123456Z"`: time.Date(2024, 3, 1, 10, 5, 0, 123456000, time.UTC),
		`"2024-03-01T12:05:00+02:00"`:   time.Date(2024, 3, 1, 10, 5, 0, 0, time.UTC),
		`"2024-03-01T10:05:00"`:         time.Date(2024, 3, 1, 10, 5, 0, 0, time.UTC),
		`"2024-03-01 10:05:00"`:         time.Date(2024, 3, 1, 10, 5, 0, 0, time.UTC),
	}
	for raw, want := range cases {
		body := []byte(`{"eventType":"COUNTER_INCREMENT","timestamp":` + raw + `,"metadata":{}}`)
		ev, err := ParseIncrementEvent(body)
		if err != nil {
			t.Fatalf("parse %s: %v", raw, err)
		}
		if !ev.Timestamp.Equal(want) {
			t.Fatalf("parse %s: got %v want %v", raw, ev.Timestamp, want)
		}
	}
}

func TestParseMissingMetadataYieldsEmptyMap(t *testing.T) {
	for _, body := range []string{
		`{"eventType":"COUNTER_INCREMENT","timestamp":"2024-03-01T10:05:00Z"}`,
		`{"eventType":"COUNTER_INCREMENT","timestamp":"2024-03-01T10:05:00Z","metadata":null}`,
	} {
		ev, err := ParseIncrementEvent([]byte(body))
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if ev.Metadata == nil || len(ev.Metadata) != 0 {
			t.Fatalf("expected empty metadata, got %#v", ev.Metadata)
		}
	}
}

func TestParseRejectsInvalidBodies(t *testing.T) {
	bodies := []string{
		``,
		`not json`,
		`[]`,
		`{}`,
		`{"eventType":"COUNTER_DECREMENT","timestamp":"2024-03-01T10:05:00Z"}`,
		`{"eventType":"COUNTER_INCREMENT"}`,
		`{"eventType":"COUNTER_INCREMENT","timestamp":"yesterday"}`,
		`{"eventType":"COUNTER_INCREMENT","timestamp":"2024-03-01T10:05:00Z","metadata":[1,2]}`,
		`{"eventType":1,"timestamp":"2024-03-01T10:05:00Z"}`,
	}
	for _, body := range bodies {
		_, err := ParseIncrementEvent([]byte(body))
		if err == nil {
			t.Fatalf("expected error for %q", body)
		}
		if !errors.Is(err, ErrInvalidMessage) {
			t.Fatalf("expected ErrInvalidMessage for %q, got %v", body, err)
		}
		var invalid *InvalidMessageError
		if !errors.As(err, &invalid) || invalid.Reason == "" {
			t.Fatalf("expected reason for %q", body)
		}
	}
}
