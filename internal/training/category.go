package training

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownCategory is returned when a category name or tag is not one of the six item kinds
var ErrUnknownCategory = errors.New("unknown category")

// Category identifies one of the six item kinds a session is built from
type Category string

const (
	CategoryTechnique Category = "technique"
	CategoryExercise  Category = "exercise"
	CategoryKata      Category = "kata"
	CategoryKick      Category = "kick"
	CategoryBlock     Category = "block"
	CategoryStrike    Category = "strike"
)

const categoryCount = 6

// SequenceOrder is the order categories are played in.
// Every step offset in a session is computed against this order.
var SequenceOrder = [categoryCount]Category{
	CategoryTechnique,
	CategoryExercise,
	CategoryKata,
	CategoryKick,
	CategoryBlock,
	CategoryStrike,
}

// CategoryInfo holds display metadata for a category
type CategoryInfo struct {
	ID          Category
	DisplayName string
	// Randomizable categories are shuffled once at session start when the session asks for it
	Randomizable bool
	// SubFlow categories replace the timer/pause policy with a repetition loop
	SubFlow bool
}

// AllCategories lists every category in sequence order
var AllCategories = []CategoryInfo{
	{ID: CategoryTechnique, DisplayName: "Techniques", Randomizable: true},
	{ID: CategoryExercise, DisplayName: "Exercises", Randomizable: true},
	{ID: CategoryKata, DisplayName: "Katas", Randomizable: true},
	{ID: CategoryKick, DisplayName: "Kicks"},
	{ID: CategoryBlock, DisplayName: "Blocks", SubFlow: true},
	{ID: CategoryStrike, DisplayName: "Strikes", SubFlow: true},
}

// GetCategoryInfo returns the info for a given category
func GetCategoryInfo(c Category) (CategoryInfo, bool) {
	for _, info := range AllCategories {
		if info.ID == c {
			return info, true
		}
	}
	return CategoryInfo{}, false
}

// ParseCategory converts a user supplied name (case-insensitive, singular or plural) to a Category
func ParseCategory(s string) (Category, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.TrimSuffix(name, "s")
	c := Category(name)
	if c.Index() < 0 {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
	return c, nil
}

// Index returns the position of the category in SequenceOrder, or -1 if unknown
func (c Category) Index() int {
	for i, seq := range SequenceOrder {
		if seq == c {
			return i
		}
	}
	return -1
}

// Valid reports whether c is one of the six categories
func (c Category) Valid() bool {
	return c.Index() >= 0
}

func (c Category) String() string {
	return string(c)
}

// DisplayName returns the plural, human readable name for the category
func (c Category) DisplayName() string {
	if info, ok := GetCategoryInfo(c); ok {
		return info.DisplayName
	}
	return string(c)
}
