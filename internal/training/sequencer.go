package training

import "time"

// Step is one item placed at a position of the session's linear sequence
type Step struct {
	Index    int
	Category Category
	Item     Item
	UseTimer bool
	Duration time.Duration
}

// Sequencer maps a linear step index onto the six category lists concatenated in SequenceOrder.
// Empty categories occupy no indexes and are skipped without special cases.
type Sequencer struct {
	cfg *SessionConfiguration
	// offsets[i] is the first step index of SequenceOrder[i]; offsets[categoryCount] is the total
	offsets [categoryCount + 1]int
}

// NewSequencer precomputes the prefix sums of the configuration's list lengths
func NewSequencer(cfg *SessionConfiguration) *Sequencer {
	if cfg == nil {
		panic("Sequencer: configuration cannot be nil")
	}
	s := &Sequencer{cfg: cfg}
	for i, list := range cfg.lists {
		s.offsets[i+1] = s.offsets[i] + len(list)
	}
	return s
}

// Total returns the number of steps in the session
func (s *Sequencer) Total() int {
	return s.offsets[categoryCount]
}

// Offset returns the step index of the first item of a category
func (s *Sequencer) Offset(category Category) int {
	idx := category.Index()
	if idx < 0 {
		return s.Total()
	}
	return s.offsets[idx]
}

// At resolves a step index. The second return value is false once index reaches Total,
// which is the normal end-of-session signal rather than an error.
func (s *Sequencer) At(index int) (Step, bool) {
	if index < 0 || index >= s.Total() {
		return Step{}, false
	}
	for i := 0; i < categoryCount; i++ {
		if index >= s.offsets[i+1] {
			continue
		}
		category := SequenceOrder[i]
		timing := s.cfg.timing[i]
		return Step{
			Index:    index,
			Category: category,
			Item:     s.cfg.lists[i][index-s.offsets[i]].Clone(),
			UseTimer: timing.UseTimer,
			Duration: timing.Duration,
		}, true
	}
	return Step{}, false
}

// Steps returns every step in order
func (s *Sequencer) Steps() []Step {
	steps := make([]Step, 0, s.Total())
	for i := 0; i < s.Total(); i++ {
		step, _ := s.At(i)
		steps = append(steps, step)
	}
	return steps
}
