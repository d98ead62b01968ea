package domain

import (
	"encoding/json"
	"strings"
	"time"
)

const (
	// CounterIncrement is the only event kind emitted by the counter.
	CounterIncrement = "COUNTER_INCREMENT"

	// MessageTypeAttribute names the routing attribute attached to queue messages.
	MessageTypeAttribute = "type"
	// CounterIncrementMessageType is the routing value existing consumers expect verbatim.
	CounterIncrementMessageType = `App\Message\CounterIncrementMessage`
)

// IncrementEvent describes one counter mutation.
type IncrementEvent struct {
	EventType string
	Timestamp time.Time
	Metadata  map[string]any
}

// NewIncrementEvent builds an event stamped with the producer time.
func NewIncrementEvent(at time.Time, metadata map[string]any) IncrementEvent {
	return IncrementEvent{
		EventType: CounterIncrement,
		Timestamp: at.UTC(),
		Metadata:  cloneMetadata(metadata),
	}
}

// wireEvent is the queue body. Field order is part of the contract.
type wireEvent struct {
	EventType string         `json:"eventType"`
	Timestamp string         `json:"timestamp"`
	Metadata  map[string]any `json:"metadata"`
}

// Encode serializes the event into the queue message body.
func (e IncrementEvent) Encode() ([]byte, error) {
	md := e.Metadata
	if md == nil {
		md = map[string]any{}
	}
	return json.Marshal(wireEvent{
		EventType: e.EventType,
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339Nano),
		Metadata:  md,
	})
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// ParseIncrementEvent decodes a queue message body. Any body that is not a
// well-formed COUNTER_INCREMENT event yields an *InvalidMessageError.
func ParseIncrementEvent(body []byte) (IncrementEvent, error) {
	var raw struct {
		EventType *string         `json:"eventType"`
		Timestamp *string         `json:"timestamp"`
		Metadata  json.RawMessage `json:"metadata"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return IncrementEvent{}, &InvalidMessageError{Reason: "malformed body", Err: err}
	}
	if raw.EventType == nil {
		return IncrementEvent{}, &InvalidMessageError{Reason: "missing eventType"}
	}
	if *raw.EventType != CounterIncrement {
		return IncrementEvent{}, &InvalidMessageError{Reason: "unrecognized eventType " + *raw.EventType}
	}
	if raw.Timestamp == nil {
		return IncrementEvent{}, &InvalidMessageError{Reason: "missing timestamp"}
	}
	ts, err := parseTimestamp(*raw.Timestamp)
	if err != nil {
		return IncrementEvent{}, &InvalidMessageError{Reason: "invalid timestamp", Err: err}
	}
	md := map[string]any{}
	if trimmed := strings.TrimSpace(string(raw.Metadata)); trimmed != "" && trimmed != "null" {
		if err := json.Unmarshal(raw.Metadata, &md); err != nil {
			return IncrementEvent{}, &InvalidMessageError{Reason: "metadata is not an object", Err: err}
		}
	}
	return IncrementEvent{EventType: *raw.EventType, Timestamp: ts, Metadata: md}, nil
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var firstErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

func cloneMetadata(md map[string]any) map[string]any {
	out := make(map[string]any, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}
