package training

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
)

// PracticeType changes only the wording of announcements
type PracticeType int

const (
	PracticeSoundOff PracticeType = iota
	PracticeHardWithVocalization
)

func (p PracticeType) String() string {
	switch p {
	case PracticeSoundOff:
		return "sound-off"
	case PracticeHardWithVocalization:
		return "hard-with-vocalization"
	default:
		return "unknown"
	}
}

// ParsePracticeType converts a stored or user supplied name to a PracticeType
func ParsePracticeType(s string) (PracticeType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sound-off", "sound_off", "soundoff":
		return PracticeSoundOff, nil
	case "hard-with-vocalization", "hard_with_vocalization", "vocalization", "hard":
		return PracticeHardWithVocalization, nil
	default:
		return PracticeSoundOff, fmt.Errorf("unknown practice type %q", s)
	}
}

// Timing is the per-category timer policy
type Timing struct {
	UseTimer bool
	Duration time.Duration
}

// SessionDefinition is the stored, authoring-time description of a session
type SessionDefinition struct {
	ID               string
	Name             string
	RandomizeOrder   bool
	FeetTogetherMode bool
	PracticeType     PracticeType
	Timing           map[Category]Timing
}

// SessionConfiguration is the immutable snapshot one Player plays.
// Item lists are deep copies, filtered to selected items and sorted by OrderIndex.
type SessionConfiguration struct {
	ID               string
	Name             string
	RandomizeOrder   bool
	FeetTogetherMode bool
	PracticeType     PracticeType

	lists  [categoryCount][]Item
	timing [categoryCount]Timing
}

// NewSessionConfiguration resolves a definition and its items into a playable snapshot.
// When the definition asks for randomization, techniques, exercises and katas are
// shuffled once with rng and renumbered. rng may be nil when randomization is off.
func NewSessionConfiguration(def SessionDefinition, items map[Category][]Item, rng *rand.Rand) (*SessionConfiguration, error) {
	cfg := &SessionConfiguration{
		ID:               def.ID,
		Name:             def.Name,
		RandomizeOrder:   def.RandomizeOrder,
		FeetTogetherMode: def.FeetTogetherMode,
		PracticeType:     def.PracticeType,
	}

	for category, timing := range def.Timing {
		idx := category.Index()
		if idx < 0 {
			return nil, fmt.Errorf("session %q timing: %w: %q", def.Name, ErrUnknownCategory, category)
		}
		if timing.Duration < 0 {
			return nil, fmt.Errorf("session %q: negative %s duration %v", def.Name, category, timing.Duration)
		}
		cfg.timing[idx] = timing
	}

	for category, list := range items {
		idx := category.Index()
		if idx < 0 {
			return nil, fmt.Errorf("session %q items: %w: %q", def.Name, ErrUnknownCategory, category)
		}
		selected := SelectedInOrder(list)
		for i := range selected {
			selected[i].Category = category
			if err := selected[i].Validate(); err != nil {
				return nil, err
			}
		}
		cfg.lists[idx] = selected
	}

	if def.RandomizeOrder {
		if rng == nil {
			rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed))
		}
		for _, info := range AllCategories {
			if info.Randomizable {
				Shuffle(cfg.lists[info.ID.Index()], rng)
			}
		}
	} else {
		for i := range cfg.lists {
			Renumber(cfg.lists[i])
		}
	}

	return cfg, nil
}

// Items returns a copy of the selected, ordered items of one category
func (c *SessionConfiguration) Items(category Category) []Item {
	idx := category.Index()
	if idx < 0 {
		return nil
	}
	result := make([]Item, 0, len(c.lists[idx]))
	for _, it := range c.lists[idx] {
		result = append(result, it.Clone())
	}
	return result
}

// Count returns the number of items in a category
func (c *SessionConfiguration) Count(category Category) int {
	idx := category.Index()
	if idx < 0 {
		return 0
	}
	return len(c.lists[idx])
}

// Timing returns the timer policy for a category
func (c *SessionConfiguration) Timing(category Category) Timing {
	idx := category.Index()
	if idx < 0 {
		return Timing{}
	}
	return c.timing[idx]
}

// TotalSteps is the sum of the six list lengths
func (c *SessionConfiguration) TotalSteps() int {
	total := 0
	for _, list := range c.lists {
		total += len(list)
	}
	return total
}

// IsEmpty reports whether no category has a selected item
func (c *SessionConfiguration) IsEmpty() bool {
	return c.TotalSteps() == 0
}
