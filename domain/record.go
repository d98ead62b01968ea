package domain

import "time"

// EventRecord is an increment event as persisted by the consumer.
type EventRecord struct {
	ID        string
	EventType string
	// Timestamp is the producer time carried by the message.
	Timestamp time.Time
	// CreatedAt is the ingestion time assigned by the consumer.
	CreatedAt time.Time
	Metadata  map[string]any
}

// NewEventRecord stamps a validated event with its ingestion time. The ID is
// left empty; stores assign it.
func NewEventRecord(ev IncrementEvent, ingestedAt time.Time) EventRecord {
	return EventRecord{
		EventType: ev.EventType,
		Timestamp: ev.Timestamp.UTC(),
		CreatedAt: ingestedAt.UTC(),
		Metadata:  cloneMetadata(ev.Metadata),
	}
}

// IDs returns the identifiers of the given records in order.
func IDs(records []EventRecord) []string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	return ids
}
