package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/wlsync/internal/state"
)

// StateRepository implements [state.Store] over the state table, so that a web process and
// a separate worker process observe the same progress, stop flags and task handles.
type StateRepository struct {
	db *sql.DB
	mu sync.Mutex // serializes Update within this process
}

var _ state.Store = (*StateRepository)(nil)

// NewStateRepository creates a new StateRepository with the given database connection
func NewStateRepository(db *sql.DB) *StateRepository {
	return &StateRepository{db: db}
}

// Get returns the stored value for key
func (r *StateRepository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx, `SELECT value FROM state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query state %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key
func (r *StateRepository) Set(ctx context.Context, key string, value []byte) error {
	return upsertState(ctx, r.db, key, value)
}

// Update applies fn to the stored value inside one transaction
func (r *StateRepository) Update(ctx context.Context, key string, fn func([]byte, bool) ([]byte, error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var old []byte
	ok := true
	err = tx.QueryRowContext(ctx, `SELECT value FROM state WHERE key = ?`, key).Scan(&old)
	if err == sql.ErrNoRows {
		ok = false
	} else if err != nil {
		return fmt.Errorf("failed to query state %s: %w", key, err)
	}

	next, err := fn(old, ok)
	if err != nil {
		return err
	}

	if next == nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM state WHERE key = ?`, key); err != nil {
			return fmt.Errorf("failed to delete state %s: %w", key, err)
		}
	} else if err := upsertState(ctx, tx, key, next); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit state %s: %w", key, err)
	}
	return nil
}

// Delete removes key
func (r *StateRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM state WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete state %s: %w", key, err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertState(ctx context.Context, db execer, key string, value []byte) error {
	query := `
		INSERT INTO state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := db.ExecContext(ctx, query, key, value, time.Now()); err != nil {
		return fmt.Errorf("failed to write state %s: %w", key, err)
	}
	return nil
}
