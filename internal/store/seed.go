package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lowaak/dojo-trainer/internal/training"
)

// DefaultSessionName is the session created by Seed
const DefaultSessionName = "Kihon Basics"

type catalogEntry struct {
	category training.Category
	item     training.Item
}

func technique(name, belt string, aliases ...string) catalogEntry {
	return catalogEntry{training.CategoryTechnique, training.Item{
		Name: name, Selected: true,
		Technique: &training.TechniqueDetails{BeltLevel: belt, TimeToComplete: 20 * time.Second, Aliases: aliases},
	}}
}

func exercise(name string) catalogEntry {
	return catalogEntry{training.CategoryExercise, training.Item{Name: name, Selected: true}}
}

func kata(name string, number int) catalogEntry {
	return catalogEntry{training.CategoryKata, training.Item{
		Name: name, Selected: true, Kata: &training.KataDetails{KataNumber: number},
	}}
}

func kick(name string) catalogEntry {
	return catalogEntry{training.CategoryKick, training.Item{Name: name, Selected: true}}
}

func block(name, belt string) catalogEntry {
	return catalogEntry{training.CategoryBlock, training.Item{
		Name: name, Selected: true, Block: &training.BlockDetails{Repetitions: 10, BeltLevel: belt},
	}}
}

func strike(name, kind, stance string, bothSides bool) catalogEntry {
	return catalogEntry{training.CategoryStrike, training.Item{
		Name: name, Selected: true,
		Strike: &training.StrikeDetails{
			Type: kind, PreferredStance: stance, Repetitions: 10,
			TimePerMove: 2 * time.Second, RequiresBothSides: bothSides,
		},
	}}
}

// catalog is the predefined item set a fresh database starts with
var catalog = []catalogEntry{
	technique("Age Uke", "white", "rising block"),
	technique("Gedan Barai", "white", "down block", "downward sweep"),
	technique("Soto Uke", "yellow", "outside block"),
	technique("Uchi Uke", "yellow", "inside block"),
	technique("Shuto Uke", "orange", "knife hand block"),
	exercise("Push ups"),
	exercise("Squats"),
	exercise("Burpees"),
	kata("Heian Shodan", 1),
	kata("Heian Nidan", 2),
	kata("Heian Sandan", 3),
	kick("Mae Geri"),
	kick("Mawashi Geri"),
	kick("Yoko Geri Kekomi"),
	block("Age Uke", "white"),
	block("Soto Uke", "yellow"),
	strike("Oi Zuki", "punch", "zenkutsu dachi", true),
	strike("Gyaku Zuki", "punch", "zenkutsu dachi", true),
	strike("Empi Uchi", "elbow", "kiba dachi", false),
}

// Seed creates the default session from the predefined catalog when the
// database has no sessions yet. It reports whether anything was written.
func (s *Store) Seed(ctx context.Context) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&count); err != nil {
		return false, fmt.Errorf("count sessions: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	def := training.SessionDefinition{
		Name:         DefaultSessionName,
		PracticeType: training.PracticeSoundOff,
		Timing: map[training.Category]training.Timing{
			training.CategoryTechnique: {UseTimer: true, Duration: 30 * time.Second},
			training.CategoryExercise:  {UseTimer: true, Duration: 60 * time.Second},
			training.CategoryKata:      {UseTimer: false, Duration: 90 * time.Second},
			training.CategoryKick:      {UseTimer: true, Duration: 30 * time.Second},
			training.CategoryBlock:     {UseTimer: false, Duration: 30 * time.Second},
			training.CategoryStrike:    {UseTimer: false, Duration: 30 * time.Second},
		},
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		created, err := insertSession(ctx, tx, def)
		if err != nil {
			return err
		}
		for _, entry := range catalog {
			it := entry.item.Clone()
			it.Category = entry.category
			if _, err := saveItem(ctx, tx, created.ID, it); err != nil {
				return err
			}
		}
		for _, category := range training.SequenceOrder {
			if _, err := renumberCategory(ctx, tx, created.ID, category); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("seed: %w", err)
	}
	return true, nil
}
