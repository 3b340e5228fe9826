// Package store is the repository layer over PostgreSQL. One file per
// aggregate: cities, meetings, agenda items, matters. All multi-worker
// coordination goes through the database; the store holds no state beyond
// the connection pool.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// DBTX is the subset of *sql.DB / *sql.Tx the store needs, so the same
// methods work inside and outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store exposes repository methods over a database handle.
type Store struct {
	q  DBTX
	db *sql.DB // nil when the store is transaction-scoped
}

// New creates a store over a connection pool.
func New(db *sql.DB) *Store {
	return &Store{q: db, db: db}
}

// WithTx runs fn against a transaction-scoped store. The transaction is
// committed when fn returns nil and rolled back otherwise.
func (s *Store) WithTx(ctx context.Context, fn func(*Store) error) error {
	if s.db == nil {
		return fmt.Errorf("store is already transaction-scoped")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&Store{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// jsonb marshals v for a jsonb column, mapping nil slices onto empty arrays.
func jsonb(v any) ([]byte, error) {
	if ss, ok := v.([]string); ok && ss == nil {
		return []byte("[]"), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshaling jsonb: %w", err)
	}
	return b, nil
}

// scanJSON unmarshals a jsonb column into dst, tolerating NULL.
func scanJSON(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("unmarshaling jsonb: %w", err)
	}
	return nil
}
