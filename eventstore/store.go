// Package eventstore persists consumed increment events and serves the
// ingestion-time range queries of the report cycle.
package eventstore

import (
	"context"
	"sort"
	"time"

	"counter-pipeline/domain"
)

// Store is the durable event log. It does not deduplicate: a redelivered
// message is stored again under a new ID.
type Store interface {
	// Insert stores rec and returns the assigned ID.
	Insert(ctx context.Context, rec domain.EventRecord) (string, error)
	// ListRange returns records with from <= CreatedAt < to, oldest first.
	ListRange(ctx context.Context, from, to time.Time) ([]domain.EventRecord, error)
	// Delete removes the given records and reports how many were removed.
	Delete(ctx context.Context, ids []string) (int, error)
}

func sortByCreatedAt(recs []domain.EventRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].ID < recs[j].ID
		}
		return recs[i].CreatedAt.Before(recs[j].CreatedAt)
	})
}
