// Package store handles SQLite persistence of sessions, their items and training history.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lowaak/dojo-trainer/internal/quiz"
	"github.com/lowaak/dojo-trainer/internal/training"

	_ "modernc.org/sqlite" // SQLite driver.
)

var (
	// ErrSessionNotFound is returned when a session id or name does not exist
	ErrSessionNotFound = errors.New("session not found")
	// ErrItemNotFound is returned when an item id does not exist
	ErrItemNotFound = errors.New("item not found")
	// ErrDuplicateSession is returned when a session name is already taken
	ErrDuplicateSession = errors.New("session name already exists")
)

var (
	_ training.SessionLoader = (*Store)(nil)
	_ training.ItemLoader    = (*Store)(nil)
	_ training.HistoryStore  = (*Store)(nil)
	_ quiz.AliasStore        = (*Store)(nil)
)

// Store wraps SQLite access for the training data.
type Store struct {
	db *sql.DB
}

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open opens or creates the SQLite database at path and applies migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Pragmas are per connection; a single connection keeps them in force.
	db.SetMaxOpenConns(1)

	if err := applyPragmas(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			randomize_order INTEGER NOT NULL DEFAULT 0,
			feet_together INTEGER NOT NULL DEFAULT 0,
			practice_type TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS session_timing (
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			category TEXT NOT NULL,
			use_timer INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			PRIMARY KEY (session_id, category)
		);`,
		`CREATE TABLE IF NOT EXISTS items (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			category TEXT NOT NULL,
			name TEXT NOT NULL,
			order_index INTEGER NOT NULL,
			selected INTEGER NOT NULL,
			belt_level TEXT NOT NULL DEFAULT '',
			time_to_complete_ms INTEGER NOT NULL DEFAULT 0,
			strike_type TEXT NOT NULL DEFAULT '',
			preferred_stance TEXT NOT NULL DEFAULT '',
			repetitions INTEGER NOT NULL DEFAULT 0,
			time_per_move_ms INTEGER NOT NULL DEFAULT 0,
			requires_both_sides INTEGER NOT NULL DEFAULT 0,
			left_completed INTEGER NOT NULL DEFAULT 0,
			right_completed INTEGER NOT NULL DEFAULT 0,
			kata_number INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS technique_aliases (
			item_id TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
			alias TEXT NOT NULL,
			PRIMARY KEY (item_id, alias)
		);`,
		`CREATE TABLE IF NOT EXISTS history_sessions (
			id TEXT PRIMARY KEY,
			session_name TEXT NOT NULL,
			completed_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS history_records (
			id TEXT PRIMARY KEY,
			history_id TEXT NOT NULL REFERENCES history_sessions(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			item_name TEXT NOT NULL,
			category TEXT NOT NULL,
			elapsed_seconds REAL NOT NULL,
			known INTEGER NOT NULL,
			completed_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_items_session_category ON items(session_id, category, order_index);`,
		`CREATE INDEX IF NOT EXISTS idx_history_sessions_completed_at ON history_sessions(completed_at);`,
		`CREATE INDEX IF NOT EXISTS idx_history_records_history ON history_records(history_id, position);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// withTx runs fn inside a transaction, rolling back when fn or the commit fails
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func closeRows(rows *sql.Rows) {
	if cerr := rows.Close(); cerr != nil {
		// Best-effort rows close.
		_ = cerr
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// timeLayout is fixed width so stored timestamps sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
