package eventstore

import (
	"context"
	"path/filepath"
	"testing"

	"counter-pipeline/config"
)

func TestOpenSQLiteBackend(t *testing.T) {
	cfg := &config.Config{}
	cfg.Storage.Backend = config.EventStoreSQLite
	cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "events.db")

	store, closer, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer closer.Close()
	if _, ok := store.(*SQLiteStore); !ok {
		t.Fatalf("expected sqlite store, got %T", store)
	}
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	cfg := &config.Config{}
	cfg.Storage.Backend = "mongo"
	if _, _, err := Open(context.Background(), cfg); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestOpenTablesNeedsConnectionString(t *testing.T) {
	cfg := &config.Config{}
	cfg.Storage.Backend = config.EventStoreTables
	cfg.Storage.EventsTable = "counterevents"
	if _, _, err := Open(context.Background(), cfg); err == nil {
		t.Fatalf("expected error without a connection string")
	}
}
