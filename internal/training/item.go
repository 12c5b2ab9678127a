package training

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"sort"
	"time"
)

// Item is one orderable entry of a category list.
// Exactly one of the detail pointers matching Category may be set; the others stay nil.
type Item struct {
	ID         string
	Category   Category
	Name       string
	OrderIndex int
	Selected   bool

	Technique *TechniqueDetails
	Strike    *StrikeDetails
	Block     *BlockDetails
	Kata      *KataDetails
}

// TechniqueDetails holds the technique specific attributes
type TechniqueDetails struct {
	BeltLevel      string
	TimeToComplete time.Duration
	// Aliases are alternate spoken names accepted by the speech matcher
	Aliases []string
}

// StrikeDetails holds the strike specific attributes
type StrikeDetails struct {
	Type              string
	PreferredStance   string
	Repetitions       int
	TimePerMove       time.Duration
	RequiresBothSides bool
	LeftCompleted     bool
	RightCompleted    bool
}

// BlockDetails holds the block specific attributes
type BlockDetails struct {
	Repetitions int
	BeltLevel   string
}

// KataDetails holds the kata specific attributes
type KataDetails struct {
	KataNumber int
}

// Clone returns a deep copy so a session never shares mutable state with the catalog
func (it Item) Clone() Item {
	out := it
	if it.Technique != nil {
		t := *it.Technique
		t.Aliases = slices.Clone(it.Technique.Aliases)
		out.Technique = &t
	}
	if it.Strike != nil {
		s := *it.Strike
		out.Strike = &s
	}
	if it.Block != nil {
		b := *it.Block
		out.Block = &b
	}
	if it.Kata != nil {
		k := *it.Kata
		out.Kata = &k
	}
	return out
}

// Aliases returns the alternate spoken names of a technique, nil for other categories
func (it Item) Aliases() []string {
	if it.Technique == nil {
		return nil
	}
	return it.Technique.Aliases
}

// RequiresBothSides reports whether a strike must be repeated on the left and right side
func (it Item) RequiresBothSides() bool {
	return it.Strike != nil && it.Strike.RequiresBothSides
}

// Validate checks the invariants of a single item
func (it Item) Validate() error {
	if !it.Category.Valid() {
		return fmt.Errorf("item %q: %w: %q", it.Name, ErrUnknownCategory, it.Category)
	}
	if it.Name == "" {
		return fmt.Errorf("item %s: name is empty", it.ID)
	}
	if it.OrderIndex < 0 {
		return fmt.Errorf("item %q: negative order index %d", it.Name, it.OrderIndex)
	}
	return nil
}

// SortByOrder sorts items in place by OrderIndex. Equal indexes keep their relative order.
func SortByOrder(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].OrderIndex < items[j].OrderIndex
	})
}

// SelectedInOrder returns deep copies of the selected items, sorted by OrderIndex
func SelectedInOrder(items []Item) []Item {
	result := make([]Item, 0, len(items))
	for _, it := range items {
		if it.Selected {
			result = append(result, it.Clone())
		}
	}
	SortByOrder(result)
	return result
}

// Renumber reassigns OrderIndex to match slice position, giving 0..N-1
func Renumber(items []Item) {
	for i := range items {
		items[i].OrderIndex = i
	}
}

// SelectedFirst returns copies of items with the selected ones first, then the rest,
// each group keeping its relative order, renumbered 0..N-1. The selected items
// therefore hold OrderIndex 0..S-1.
func SelectedFirst(items []Item) []Item {
	result := make([]Item, 0, len(items))
	for _, it := range items {
		if it.Selected {
			result = append(result, it.Clone())
		}
	}
	for _, it := range items {
		if !it.Selected {
			result = append(result, it.Clone())
		}
	}
	Renumber(result)
	return result
}

// Move relocates the item at position from to position to and renumbers the list.
// The input slice is not modified.
func Move(items []Item, from, to int) ([]Item, error) {
	if from < 0 || from >= len(items) {
		return nil, fmt.Errorf("move: source position %d out of range [0,%d)", from, len(items))
	}
	if to < 0 || to >= len(items) {
		return nil, fmt.Errorf("move: target position %d out of range [0,%d)", to, len(items))
	}
	result := make([]Item, 0, len(items))
	for _, it := range items {
		result = append(result, it.Clone())
	}
	moved := result[from]
	result = slices.Delete(result, from, from+1)
	result = slices.Insert(result, to, moved)
	Renumber(result)
	return result, nil
}

// Shuffle permutes items in place using rng and renumbers them to their new positions
func Shuffle(items []Item, rng *rand.Rand) {
	rng.Shuffle(len(items), func(i, j int) {
		items[i], items[j] = items[j], items[i]
	})
	Renumber(items)
}
