package counter

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// executor is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type executor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	createCounterTableSQL = `
		CREATE TABLE IF NOT EXISTS counters (
			name       TEXT PRIMARY KEY,
			value      BIGINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	incrementCounterSQL = `
		INSERT INTO counters (name, value)
		VALUES ($1, 1)
		ON CONFLICT (name) DO UPDATE
		SET value = counters.value + 1, updated_at = NOW()
		RETURNING value
	`
	initCounterSQL = `
		INSERT INTO counters (name, value)
		VALUES ($1, 0)
		ON CONFLICT (name) DO NOTHING
	`
	selectCounterSQL = `SELECT value FROM counters WHERE name = $1`
)

// PostgresStore keeps the counter as one row. The upsert takes the row lock,
// which serializes concurrent increments.
type PostgresStore struct {
	db   executor
	name string
}

func NewPostgresStore(db executor, name string) *PostgresStore {
	return &PostgresStore{db: db, name: name}
}

// EnsureSchema creates the counters table when it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createCounterTableSQL); err != nil {
		return fmt.Errorf("create counters table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Increment(ctx context.Context) (int64, error) {
	var v int64
	if err := s.db.QueryRow(ctx, incrementCounterSQL, s.name).Scan(&v); err != nil {
		return 0, fmt.Errorf("increment counter %s: %w", s.name, err)
	}
	return v, nil
}

func (s *PostgresStore) Current(ctx context.Context) (int64, error) {
	if _, err := s.db.Exec(ctx, initCounterSQL, s.name); err != nil {
		return 0, fmt.Errorf("init counter %s: %w", s.name, err)
	}
	var v int64
	if err := s.db.QueryRow(ctx, selectCounterSQL, s.name).Scan(&v); err != nil {
		return 0, fmt.Errorf("select counter %s: %w", s.name, err)
	}
	return v, nil
}
