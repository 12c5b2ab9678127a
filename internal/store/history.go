package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lowaak/dojo-trainer/internal/training"
)

// HistorySession is one finished session with its records in completion order
type HistorySession struct {
	ID          string
	SessionName string
	CompletedAt time.Time
	Records     []training.Record
}

// TotalElapsed sums the elapsed seconds of every record
func (h HistorySession) TotalElapsed() time.Duration {
	var total float64
	for _, r := range h.Records {
		total += r.ElapsedSeconds
	}
	return time.Duration(total * float64(time.Second))
}

// AppendHistory implements training.HistoryStore. All records are written in one
// transaction under a single history session entry.
func (s *Store) AppendHistory(ctx context.Context, sessionName string, records []training.Record) error {
	if len(records) == 0 {
		return nil
	}
	completedAt := records[len(records)-1].CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now()
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		historyID := uuid.NewString()
		_, err := tx.ExecContext(ctx,
			`INSERT INTO history_sessions (id, session_name, completed_at) VALUES (?, ?, ?)`,
			historyID, sessionName, completedAt.UTC().Format(timeLayout))
		if err != nil {
			return fmt.Errorf("insert history session: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO history_records (id, history_id, position, item_name, category, elapsed_seconds, known, completed_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, r := range records {
			id := r.ID
			if id == "" {
				id = uuid.NewString()
			}
			if _, err := stmt.ExecContext(ctx, id, historyID, i, r.ItemName, string(r.Category),
				r.ElapsedSeconds, boolInt(r.Known), r.CompletedAt.UTC().Format(timeLayout)); err != nil {
				return fmt.Errorf("insert history record %q: %w", r.ItemName, err)
			}
		}
		return nil
	})
}

// ListHistory returns the most recent finished sessions, newest first.
// limit <= 0 returns all of them.
func (s *Store) ListHistory(ctx context.Context, limit int) ([]HistorySession, error) {
	query := `SELECT id, session_name, completed_at FROM history_sessions ORDER BY completed_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}

	var sessions []HistorySession
	for rows.Next() {
		var (
			h           HistorySession
			completedAt string
		)
		if err := rows.Scan(&h.ID, &h.SessionName, &completedAt); err != nil {
			closeRows(rows)
			return nil, err
		}
		parsed, err := time.Parse(timeLayout, completedAt)
		if err != nil {
			closeRows(rows)
			return nil, err
		}
		h.CompletedAt = parsed
		sessions = append(sessions, h)
	}
	err = rows.Err()
	closeRows(rows)
	if err != nil {
		return nil, err
	}

	for i := range sessions {
		records, err := s.historyRecords(ctx, sessions[i].ID)
		if err != nil {
			return nil, err
		}
		sessions[i].Records = records
	}
	return sessions, nil
}

func (s *Store) historyRecords(ctx context.Context, historyID string) ([]training.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, item_name, category, elapsed_seconds, known, completed_at
		 FROM history_records WHERE history_id = ? ORDER BY position ASC`, historyID)
	if err != nil {
		return nil, fmt.Errorf("load history records: %w", err)
	}
	defer closeRows(rows)

	records := make([]training.Record, 0)
	for rows.Next() {
		var (
			r           training.Record
			category    string
			known       int
			completedAt string
		)
		if err := rows.Scan(&r.ID, &r.ItemName, &category, &r.ElapsedSeconds, &known, &completedAt); err != nil {
			return nil, err
		}
		r.Category = training.Category(category)
		r.Known = known != 0
		parsed, err := time.Parse(timeLayout, completedAt)
		if err != nil {
			return nil, err
		}
		r.CompletedAt = parsed
		records = append(records, r)
	}
	return records, rows.Err()
}
