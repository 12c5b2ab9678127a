package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/lowaak/dojo-trainer/internal/training"
)

// duration decodes TOML strings such as "30s" or "1m30s"
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = duration(parsed)
	return nil
}

// SessionFile is the TOML layout of an importable session
type SessionFile struct {
	Name         string                `toml:"name"`
	Randomize    bool                  `toml:"randomize"`
	FeetTogether bool                  `toml:"feet_together"`
	Practice     string                `toml:"practice"`
	Timing       map[string]timingFile `toml:"timing"`

	Techniques []itemFile `toml:"technique"`
	Exercises  []itemFile `toml:"exercise"`
	Katas      []itemFile `toml:"kata"`
	Kicks      []itemFile `toml:"kick"`
	Blocks     []itemFile `toml:"block"`
	Strikes    []itemFile `toml:"strike"`
}

type timingFile struct {
	UseTimer bool     `toml:"use_timer"`
	Duration duration `toml:"duration"`
}

type itemFile struct {
	Name           string   `toml:"name"`
	Selected       *bool    `toml:"selected"`
	Belt           string   `toml:"belt"`
	Aliases        []string `toml:"aliases"`
	TimeToComplete duration `toml:"time_to_complete"`
	Type           string   `toml:"type"`
	Stance         string   `toml:"stance"`
	Repetitions    int      `toml:"repetitions"`
	TimePerMove    duration `toml:"time_per_move"`
	BothSides      bool     `toml:"both_sides"`
	Number         int      `toml:"number"`
}

// ParseSessionFile decodes TOML session text
func ParseSessionFile(data string) (SessionFile, error) {
	var f SessionFile
	md, err := toml.Decode(data, &f)
	if err != nil {
		return SessionFile{}, fmt.Errorf("decode session file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return SessionFile{}, fmt.Errorf("decode session file: unknown keys %v", undecoded)
	}
	return f, nil
}

// Definition converts the file into a session definition and its items per category
func (f SessionFile) Definition() (training.SessionDefinition, map[training.Category][]training.Item, error) {
	practice, err := training.ParsePracticeType(f.Practice)
	if err != nil {
		return training.SessionDefinition{}, nil, err
	}
	def := training.SessionDefinition{
		Name:             f.Name,
		RandomizeOrder:   f.Randomize,
		FeetTogetherMode: f.FeetTogether,
		PracticeType:     practice,
		Timing:           make(map[training.Category]training.Timing, len(f.Timing)),
	}
	for key, t := range f.Timing {
		category, err := training.ParseCategory(key)
		if err != nil {
			return def, nil, fmt.Errorf("timing %q: %w", key, err)
		}
		def.Timing[category] = training.Timing{UseTimer: t.UseTimer, Duration: time.Duration(t.Duration)}
	}

	items := map[training.Category][]training.Item{
		training.CategoryTechnique: convertItems(training.CategoryTechnique, f.Techniques),
		training.CategoryExercise:  convertItems(training.CategoryExercise, f.Exercises),
		training.CategoryKata:      convertItems(training.CategoryKata, f.Katas),
		training.CategoryKick:      convertItems(training.CategoryKick, f.Kicks),
		training.CategoryBlock:     convertItems(training.CategoryBlock, f.Blocks),
		training.CategoryStrike:    convertItems(training.CategoryStrike, f.Strikes),
	}
	return def, items, nil
}

func convertItems(category training.Category, files []itemFile) []training.Item {
	items := make([]training.Item, 0, len(files))
	for i, f := range files {
		it := training.Item{
			Category:   category,
			Name:       f.Name,
			OrderIndex: i,
			Selected:   f.Selected == nil || *f.Selected,
		}
		switch category {
		case training.CategoryTechnique:
			it.Technique = &training.TechniqueDetails{
				BeltLevel:      f.Belt,
				TimeToComplete: time.Duration(f.TimeToComplete),
				Aliases:        f.Aliases,
			}
		case training.CategoryStrike:
			it.Strike = &training.StrikeDetails{
				Type:              f.Type,
				PreferredStance:   f.Stance,
				Repetitions:       f.Repetitions,
				TimePerMove:       time.Duration(f.TimePerMove),
				RequiresBothSides: f.BothSides,
			}
		case training.CategoryBlock:
			it.Block = &training.BlockDetails{Repetitions: f.Repetitions, BeltLevel: f.Belt}
		case training.CategoryKata:
			it.Kata = &training.KataDetails{KataNumber: f.Number}
		}
		items = append(items, it)
	}
	return items
}

// ImportSession writes a parsed session file in one transaction
func (s *Store) ImportSession(ctx context.Context, f SessionFile) (training.SessionDefinition, error) {
	def, items, err := f.Definition()
	if err != nil {
		return def, err
	}
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		def, err = insertSession(ctx, tx, def)
		if err != nil {
			return err
		}
		for _, category := range training.SequenceOrder {
			for _, it := range items[category] {
				if _, err := saveItem(ctx, tx, def.ID, it); err != nil {
					return err
				}
			}
			if _, err := renumberCategory(ctx, tx, def.ID, category); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return def, fmt.Errorf("import session %q: %w", f.Name, err)
	}
	return def, nil
}

// ImportSessionFile reads a TOML session file from disk and imports it
func (s *Store) ImportSessionFile(ctx context.Context, path string) (training.SessionDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return training.SessionDefinition{}, fmt.Errorf("read session file: %w", err)
	}
	f, err := ParseSessionFile(string(data))
	if err != nil {
		return training.SessionDefinition{}, err
	}
	return s.ImportSession(ctx, f)
}
