package eventstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	_ "github.com/mattn/go-sqlite3"

	"counter-pipeline/domain"
)

const createEventsSQL = `
CREATE TABLE IF NOT EXISTS counter_events (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	event_type TEXT    NOT NULL,
	timestamp  INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	metadata   TEXT    NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_counter_events_created_at ON counter_events (created_at);
`

// sqliteDeleteChunk stays below the bound-parameter limit of older SQLite builds.
const sqliteDeleteChunk = 500

// SQLiteStore keeps events in a local SQLite file. Times are stored as Unix
// nanoseconds.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and its schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, createEventsSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Insert(ctx context.Context, rec domain.EventRecord) (string, error) {
	md := rec.Metadata
	if md == nil {
		md = map[string]any{}
	}
	mdJSON, err := sonic.ConfigStd.MarshalToString(md)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO counter_events (event_type, timestamp, created_at, metadata) VALUES (?, ?, ?, ?)",
		rec.EventType, rec.Timestamp.UnixNano(), rec.CreatedAt.UnixNano(), mdJSON)
	if err != nil {
		return "", fmt.Errorf("insert event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("insert event: %w", err)
	}
	return strconv.FormatInt(id, 10), nil
}

func (s *SQLiteStore) ListRange(ctx context.Context, from, to time.Time) ([]domain.EventRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, event_type, timestamp, created_at, metadata FROM counter_events
		WHERE created_at >= ? AND created_at < ? ORDER BY created_at, id`,
		from.UnixNano(), to.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var recs []domain.EventRecord
	for rows.Next() {
		var (
			id                int64
			eventType, mdJSON string
			ts, created       int64
		)
		if err := rows.Scan(&id, &eventType, &ts, &created, &mdJSON); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		md := map[string]any{}
		if err := sonic.ConfigStd.UnmarshalFromString(mdJSON, &md); err != nil {
			return nil, fmt.Errorf("event %d metadata: %w", id, err)
		}
		recs = append(recs, domain.EventRecord{
			ID:        strconv.FormatInt(id, 10),
			EventType: eventType,
			Timestamp: time.Unix(0, ts).UTC(),
			CreatedAt: time.Unix(0, created).UTC(),
			Metadata:  md,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	return recs, nil
}

// Delete removes all ids in one transaction. Unknown ids are ignored.
func (s *SQLiteStore) Delete(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid event id %q: %w", id, err)
		}
		args = append(args, n)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var deleted int64
	for start := 0; start < len(args); start += sqliteDeleteChunk {
		chunk := args[start:min(start+sqliteDeleteChunk, len(args))]
		query := "DELETE FROM counter_events WHERE id IN (?" + strings.Repeat(",?", len(chunk)-1) + ")"
		res, err := tx.ExecContext(ctx, query, chunk...)
		if err != nil {
			return 0, fmt.Errorf("delete events: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("delete events: %w", err)
		}
		deleted += n
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return int(deleted), nil
}
