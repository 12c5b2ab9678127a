package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lowaak/dojo-trainer/internal/training"
)

// SessionSummary is one row of the session list
type SessionSummary struct {
	ID            string
	Name          string
	PracticeType  training.PracticeType
	SelectedItems int
	TotalItems    int
	CreatedAt     time.Time
}

// CreateSession stores a new session definition. An empty ID is assigned a new uuid.
func (s *Store) CreateSession(ctx context.Context, def training.SessionDefinition) (training.SessionDefinition, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		def, err = insertSession(ctx, tx, def)
		return err
	})
	return def, err
}

func insertSession(ctx context.Context, q querier, def training.SessionDefinition) (training.SessionDefinition, error) {
	def.Name = strings.TrimSpace(def.Name)
	if def.Name == "" {
		return def, errors.New("session name is empty")
	}
	if def.ID == "" {
		def.ID = uuid.NewString()
	}

	var exists int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE name = ?`, def.Name).Scan(&exists)
	if err != nil {
		return def, fmt.Errorf("check session name: %w", err)
	}
	if exists > 0 {
		return def, fmt.Errorf("%w: %q", ErrDuplicateSession, def.Name)
	}

	_, err = q.ExecContext(ctx,
		`INSERT INTO sessions (id, name, randomize_order, feet_together, practice_type, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		def.ID, def.Name, boolInt(def.RandomizeOrder), boolInt(def.FeetTogetherMode),
		def.PracticeType.String(), time.Now().UTC().Format(timeLayout))
	if err != nil {
		return def, fmt.Errorf("insert session: %w", err)
	}

	for category, timing := range def.Timing {
		if !category.Valid() {
			return def, fmt.Errorf("session %q timing: %w: %q", def.Name, training.ErrUnknownCategory, category)
		}
		if err := upsertTiming(ctx, q, def.ID, category, timing); err != nil {
			return def, err
		}
	}
	return def, nil
}

func upsertTiming(ctx context.Context, q querier, sessionID string, category training.Category, timing training.Timing) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO session_timing (session_id, category, use_timer, duration_ms) VALUES (?, ?, ?, ?)
		 ON CONFLICT(session_id, category) DO UPDATE SET use_timer = excluded.use_timer, duration_ms = excluded.duration_ms`,
		sessionID, string(category), boolInt(timing.UseTimer), timing.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("save %s timing: %w", category, err)
	}
	return nil
}

// SetTiming changes the timer policy of one category of a session
func (s *Store) SetTiming(ctx context.Context, sessionID string, category training.Category, timing training.Timing) error {
	if !category.Valid() {
		return fmt.Errorf("%w: %q", training.ErrUnknownCategory, category)
	}
	if timing.Duration < 0 {
		return fmt.Errorf("negative duration %v", timing.Duration)
	}
	if _, err := s.LoadSession(ctx, sessionID); err != nil {
		return err
	}
	return upsertTiming(ctx, s.db, sessionID, category, timing)
}

// LoadSession implements training.SessionLoader
func (s *Store) LoadSession(ctx context.Context, sessionID string) (training.SessionDefinition, error) {
	return loadSession(ctx, s.db, `id = ?`, sessionID)
}

// FindSessionByName loads a session by its unique name
func (s *Store) FindSessionByName(ctx context.Context, name string) (training.SessionDefinition, error) {
	return loadSession(ctx, s.db, `name = ?`, strings.TrimSpace(name))
}

func loadSession(ctx context.Context, q querier, where string, arg any) (training.SessionDefinition, error) {
	var (
		def          training.SessionDefinition
		randomize    int
		feetTogether int
		practice     string
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, name, randomize_order, feet_together, practice_type FROM sessions WHERE `+where, arg).
		Scan(&def.ID, &def.Name, &randomize, &feetTogether, &practice)
	if errors.Is(err, sql.ErrNoRows) {
		return def, fmt.Errorf("%w: %v", ErrSessionNotFound, arg)
	}
	if err != nil {
		return def, fmt.Errorf("load session: %w", err)
	}
	def.RandomizeOrder = randomize != 0
	def.FeetTogetherMode = feetTogether != 0
	def.PracticeType, err = training.ParsePracticeType(practice)
	if err != nil {
		return def, fmt.Errorf("session %q: %w", def.Name, err)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT category, use_timer, duration_ms FROM session_timing WHERE session_id = ?`, def.ID)
	if err != nil {
		return def, fmt.Errorf("load timing: %w", err)
	}
	defer closeRows(rows)

	def.Timing = make(map[training.Category]training.Timing)
	for rows.Next() {
		var (
			category   string
			useTimer   int
			durationMs int64
		)
		if err := rows.Scan(&category, &useTimer, &durationMs); err != nil {
			return def, err
		}
		def.Timing[training.Category(category)] = training.Timing{
			UseTimer: useTimer != 0,
			Duration: time.Duration(durationMs) * time.Millisecond,
		}
	}
	return def, rows.Err()
}

// ListSessions returns every session ordered by name
func (s *Store) ListSessions(ctx context.Context) ([]SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.id, s.name, s.practice_type, s.created_at,
			COALESCE(SUM(i.selected), 0), COUNT(i.id)
		 FROM sessions s
		 LEFT JOIN items i ON i.session_id = s.id
		 GROUP BY s.id
		 ORDER BY s.name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer closeRows(rows)

	var result []SessionSummary
	for rows.Next() {
		var (
			sum       SessionSummary
			practice  string
			createdAt string
		)
		if err := rows.Scan(&sum.ID, &sum.Name, &practice, &createdAt, &sum.SelectedItems, &sum.TotalItems); err != nil {
			return nil, err
		}
		sum.PracticeType, _ = training.ParsePracticeType(practice)
		parsed, err := time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, err
		}
		sum.CreatedAt = parsed
		result = append(result, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteSession removes a session with its items. History is kept.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return nil
}
