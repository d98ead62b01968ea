package eventstore

import (
	"context"
	"fmt"
	"io"

	"counter-pipeline/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open builds the event store selected by cfg.Storage.Backend and makes sure
// its table or schema exists. The returned closer releases local resources.
func Open(ctx context.Context, cfg *config.Config) (Store, io.Closer, error) {
	switch cfg.Storage.Backend {
	case config.EventStoreTables:
		s, err := NewTableStore(cfg.Storage.ConnectionString, cfg.Storage.EventsTable)
		if err != nil {
			return nil, nil, err
		}
		if err := s.EnsureTable(ctx); err != nil {
			return nil, nil, fmt.Errorf("create table %s: %w", cfg.Storage.EventsTable, err)
		}
		return s, nopCloser{}, nil
	case config.EventStoreSQLite:
		s, err := OpenSQLite(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unknown event store backend %q", cfg.Storage.Backend)
	}
}
