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

const itemColumns = `id, category, name, order_index, selected, belt_level, time_to_complete_ms,
	strike_type, preferred_stance, repetitions, time_per_move_ms, requires_both_sides,
	left_completed, right_completed, kata_number`

// LoadSelectedItems implements training.ItemLoader. The returned list is
// renumbered so its OrderIndex values run 0..N-1.
func (s *Store) LoadSelectedItems(ctx context.Context, sessionID string, category training.Category) ([]training.Item, error) {
	items, err := s.LoadItems(ctx, sessionID, category)
	if err != nil {
		return nil, err
	}
	selected := training.SelectedInOrder(items)
	training.Renumber(selected)
	return selected, nil
}

// LoadItems returns every item of a category, selected or not, ordered by OrderIndex
func (s *Store) LoadItems(ctx context.Context, sessionID string, category training.Category) ([]training.Item, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("%w: %q", training.ErrUnknownCategory, category)
	}
	return loadItems(ctx, s.db, sessionID, category)
}

func loadItems(ctx context.Context, q querier, sessionID string, category training.Category) ([]training.Item, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE session_id = ? AND category = ? ORDER BY order_index ASC, name ASC`,
		sessionID, string(category))
	if err != nil {
		return nil, fmt.Errorf("load %s items: %w", category, err)
	}
	items, err := scanItems(rows)
	closeRows(rows)
	if err != nil {
		return nil, err
	}

	if category == training.CategoryTechnique && len(items) > 0 {
		if err := loadAliases(ctx, q, items); err != nil {
			return nil, err
		}
	}
	return items, nil
}

func scanItems(rows *sql.Rows) ([]training.Item, error) {
	items := make([]training.Item, 0)
	for rows.Next() {
		var (
			it                                       training.Item
			category, belt, strikeType, stance       string
			selected, bothSides, leftDone, rightDone int
			timeToCompleteMs, timePerMoveMs          int64
			repetitions, kataNumber                  int
		)
		if err := rows.Scan(&it.ID, &category, &it.Name, &it.OrderIndex, &selected, &belt, &timeToCompleteMs,
			&strikeType, &stance, &repetitions, &timePerMoveMs, &bothSides, &leftDone, &rightDone, &kataNumber); err != nil {
			return nil, err
		}
		it.Category = training.Category(category)
		it.Selected = selected != 0
		switch it.Category {
		case training.CategoryTechnique:
			it.Technique = &training.TechniqueDetails{
				BeltLevel:      belt,
				TimeToComplete: time.Duration(timeToCompleteMs) * time.Millisecond,
			}
		case training.CategoryStrike:
			it.Strike = &training.StrikeDetails{
				Type:              strikeType,
				PreferredStance:   stance,
				Repetitions:       repetitions,
				TimePerMove:       time.Duration(timePerMoveMs) * time.Millisecond,
				RequiresBothSides: bothSides != 0,
				LeftCompleted:     leftDone != 0,
				RightCompleted:    rightDone != 0,
			}
		case training.CategoryBlock:
			it.Block = &training.BlockDetails{Repetitions: repetitions, BeltLevel: belt}
		case training.CategoryKata:
			it.Kata = &training.KataDetails{KataNumber: kataNumber}
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func loadAliases(ctx context.Context, q querier, items []training.Item) error {
	byID := make(map[string]*training.Item, len(items))
	placeholders := make([]string, 0, len(items))
	args := make([]any, 0, len(items))
	for i := range items {
		byID[items[i].ID] = &items[i]
		placeholders = append(placeholders, "?")
		args = append(args, items[i].ID)
	}
	rows, err := q.QueryContext(ctx,
		`SELECT item_id, alias FROM technique_aliases WHERE item_id IN (`+strings.Join(placeholders, ",")+`) ORDER BY rowid`,
		args...)
	if err != nil {
		return fmt.Errorf("load aliases: %w", err)
	}
	defer closeRows(rows)
	for rows.Next() {
		var id, alias string
		if err := rows.Scan(&id, &alias); err != nil {
			return err
		}
		if it := byID[id]; it != nil && it.Technique != nil {
			it.Technique.Aliases = append(it.Technique.Aliases, alias)
		}
	}
	return rows.Err()
}

// SaveItem inserts or updates an item of a session. A new item without an ID is
// given one and appended to the end of its group, selected or not.
func (s *Store) SaveItem(ctx context.Context, sessionID string, item training.Item) (training.Item, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		item, err = saveItem(ctx, tx, sessionID, item)
		if err != nil {
			return err
		}
		ordered, err := renumberCategory(ctx, tx, sessionID, item.Category)
		if err != nil {
			return err
		}
		for _, it := range ordered {
			if it.ID == item.ID {
				item.OrderIndex = it.OrderIndex
			}
		}
		return nil
	})
	return item, err
}

func saveItem(ctx context.Context, q querier, sessionID string, item training.Item) (training.Item, error) {
	item.Name = strings.TrimSpace(item.Name)
	if item.ID == "" {
		item.ID = uuid.NewString()
		var next int
		err := q.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(order_index) + 1, 0) FROM items WHERE session_id = ? AND category = ?`,
			sessionID, string(item.Category)).Scan(&next)
		if err != nil {
			return item, fmt.Errorf("next order index: %w", err)
		}
		item.OrderIndex = next
	}
	if err := item.Validate(); err != nil {
		return item, err
	}

	var (
		belt, strikeType, stance        string
		timeToCompleteMs, timePerMoveMs int64
		repetitions, kataNumber         int
		bothSides, leftDone, rightDone  bool
	)
	if t := item.Technique; t != nil {
		belt = t.BeltLevel
		timeToCompleteMs = t.TimeToComplete.Milliseconds()
	}
	if st := item.Strike; st != nil {
		strikeType, stance = st.Type, st.PreferredStance
		repetitions = st.Repetitions
		timePerMoveMs = st.TimePerMove.Milliseconds()
		bothSides, leftDone, rightDone = st.RequiresBothSides, st.LeftCompleted, st.RightCompleted
	}
	if b := item.Block; b != nil {
		repetitions, belt = b.Repetitions, b.BeltLevel
	}
	if k := item.Kata; k != nil {
		kataNumber = k.KataNumber
	}

	_, err := q.ExecContext(ctx,
		`INSERT INTO items (id, session_id, category, name, order_index, selected, belt_level, time_to_complete_ms,
			strike_type, preferred_stance, repetitions, time_per_move_ms, requires_both_sides,
			left_completed, right_completed, kata_number)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, order_index = excluded.order_index, selected = excluded.selected,
			belt_level = excluded.belt_level, time_to_complete_ms = excluded.time_to_complete_ms,
			strike_type = excluded.strike_type, preferred_stance = excluded.preferred_stance,
			repetitions = excluded.repetitions, time_per_move_ms = excluded.time_per_move_ms,
			requires_both_sides = excluded.requires_both_sides, left_completed = excluded.left_completed,
			right_completed = excluded.right_completed, kata_number = excluded.kata_number`,
		item.ID, sessionID, string(item.Category), item.Name, item.OrderIndex, boolInt(item.Selected),
		belt, timeToCompleteMs, strikeType, stance, repetitions, timePerMoveMs,
		boolInt(bothSides), boolInt(leftDone), boolInt(rightDone), kataNumber)
	if err != nil {
		return item, fmt.Errorf("save item %q: %w", item.Name, err)
	}

	for _, alias := range item.Aliases() {
		if err := insertAlias(ctx, q, item.ID, alias); err != nil {
			return item, err
		}
	}
	return item, nil
}

// SetSelected includes or excludes an item from play. A newly selected item is
// played after the items already selected.
func (s *Store) SetSelected(ctx context.Context, itemID string, selected bool) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var sessionID, category string
		err := tx.QueryRowContext(ctx, `SELECT session_id, category FROM items WHERE id = ?`, itemID).
			Scan(&sessionID, &category)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
		}
		if err != nil {
			return fmt.Errorf("set selected: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE items SET selected = ? WHERE id = ?`, boolInt(selected), itemID); err != nil {
			return fmt.Errorf("set selected: %w", err)
		}
		_, err = renumberCategory(ctx, tx, sessionID, training.Category(category))
		return err
	})
}

// renumberCategory rewrites a category's order indexes so the selected items
// hold 0..S-1 and the deselected ones follow. Returns the items in their new order.
func renumberCategory(ctx context.Context, q querier, sessionID string, category training.Category) ([]training.Item, error) {
	items, err := loadItems(ctx, q, sessionID, category)
	if err != nil {
		return nil, err
	}
	return writeOrder(ctx, q, items, training.SelectedFirst(items))
}

// writeOrder stores the order indexes of ordered that differ from before
func writeOrder(ctx context.Context, q querier, before, ordered []training.Item) ([]training.Item, error) {
	previous := make(map[string]int, len(before))
	for _, it := range before {
		previous[it.ID] = it.OrderIndex
	}
	for _, it := range ordered {
		if idx, ok := previous[it.ID]; ok && idx == it.OrderIndex {
			continue
		}
		if _, err := q.ExecContext(ctx, `UPDATE items SET order_index = ? WHERE id = ?`, it.OrderIndex, it.ID); err != nil {
			return nil, fmt.Errorf("reorder %q: %w", it.Name, err)
		}
	}
	return ordered, nil
}

// Reorder moves the item at position from to position to within a category.
// Positions count the category as LoadItems returns it. Selected items stay
// ahead of deselected ones, so an item only moves within its own group.
func (s *Store) Reorder(ctx context.Context, sessionID string, category training.Category, from, to int) ([]training.Item, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("%w: %q", training.ErrUnknownCategory, category)
	}
	var result []training.Item
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		items, err := loadItems(ctx, tx, sessionID, category)
		if err != nil {
			return err
		}
		moved, err := training.Move(items, from, to)
		if err != nil {
			return err
		}
		result, err = writeOrder(ctx, tx, items, training.SelectedFirst(moved))
		return err
	})
	return result, err
}

// AddTechniqueAlias stores an alternate spoken name for a technique
func (s *Store) AddTechniqueAlias(ctx context.Context, techniqueID, alias string) error {
	alias = strings.ToLower(strings.Join(strings.Fields(alias), " "))
	if alias == "" {
		return errors.New("alias is empty")
	}
	var category string
	err := s.db.QueryRowContext(ctx, `SELECT category FROM items WHERE id = ?`, techniqueID).Scan(&category)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrItemNotFound, techniqueID)
	}
	if err != nil {
		return fmt.Errorf("load technique: %w", err)
	}
	if training.Category(category) != training.CategoryTechnique {
		return fmt.Errorf("item %s is a %s, aliases are only kept for techniques", techniqueID, category)
	}
	return insertAlias(ctx, s.db, techniqueID, alias)
}

func insertAlias(ctx context.Context, q querier, itemID, alias string) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO technique_aliases (item_id, alias) VALUES (?, ?) ON CONFLICT DO NOTHING`, itemID, alias)
	if err != nil {
		return fmt.Errorf("save alias %q: %w", alias, err)
	}
	return nil
}
