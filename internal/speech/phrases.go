package speech

import (
	"fmt"

	"github.com/lowaak/dojo-trainer/internal/training"
)

// Phrases builds announcement text. Practice type changes only the wording.
type Phrases struct {
	practice training.PracticeType
}

// PhrasesFor returns the wording for a practice type
func PhrasesFor(practice training.PracticeType) Phrases {
	return Phrases{practice: practice}
}

// Ready is the one-off cue before the first step
func (p Phrases) Ready() string {
	if p.practice == training.PracticeHardWithVocalization {
		return "Get ready. Full power, kiai on every move."
	}
	return "Get ready."
}

// Item announces the item a step is about
func (p Phrases) Item(category training.Category, name string) string {
	info, ok := training.GetCategoryInfo(category)
	if !ok {
		return name
	}
	return fmt.Sprintf("%s: %s", singular(info.DisplayName), name)
}

// Move is said once per repetition of a strike or block
func (p Phrases) Move() string {
	if p.practice == training.PracticeHardWithVocalization {
		return "Move! Kiai!"
	}
	return "Move"
}

// SwitchSides is said when a two-sided strike moves to the other side
func (p Phrases) SwitchSides(side string) string {
	return fmt.Sprintf("Switch sides. %s side.", side)
}

// Complete is said when the session ends
func (p Phrases) Complete() string {
	if p.practice == training.PracticeHardWithVocalization {
		return "Training complete. Osu!"
	}
	return "Training complete."
}

func singular(plural string) string {
	if n := len(plural); n > 1 && plural[n-1] == 's' {
		return plural[:n-1]
	}
	return plural
}
