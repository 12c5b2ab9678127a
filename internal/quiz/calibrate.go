package quiz

import (
	"context"
	"fmt"
	"strings"

	"github.com/lowaak/dojo-trainer/internal/matcher"
	"github.com/lowaak/dojo-trainer/internal/training"
)

// AliasStore persists a new spoken alias for a technique
type AliasStore interface {
	AddTechniqueAlias(ctx context.Context, techniqueID, alias string) error
}

// CalibrationResult describes what Calibrate did
type CalibrationResult int

const (
	// AlreadyRecognized means the heard text already matches the technique exactly
	AlreadyRecognized CalibrationResult = iota
	// AliasAdded means the heard text was stored as a new alias
	AliasAdded
)

// ConflictError is returned when the heard text is closer to another technique
type ConflictError struct {
	Heard string
	Other string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%q is closer to %q", e.Heard, e.Other)
}

// Calibrator teaches the matcher how the user's recognizer hears technique names
type Calibrator struct {
	store   AliasStore
	matcher matcher.Matcher
}

// NewCalibrator creates a Calibrator. A negative threshold uses the matcher default.
func NewCalibrator(store AliasStore, threshold int) *Calibrator {
	if store == nil {
		panic("Calibrator: store cannot be nil")
	}
	return &Calibrator{store: store, matcher: matcher.New(threshold)}
}

// Calibrate records heard as an alias of target unless it is already an exact
// match. techniques is the full list the quiz matches against and is used to
// refuse an alias that would be claimed by a different technique.
func (c *Calibrator) Calibrate(ctx context.Context, target training.Item, techniques []training.Item, heard string) (CalibrationResult, error) {
	heard = strings.ToLower(strings.Join(strings.Fields(heard), " "))
	if heard == "" {
		return AlreadyRecognized, fmt.Errorf("calibrate %q: nothing heard", target.Name)
	}

	candidates := make([]matcher.Candidate, len(techniques))
	for i, it := range techniques {
		candidates[i] = matcher.Candidate{Name: it.Name, Aliases: it.Aliases()}
	}
	if m, ok := c.matcher.FindClosestMatch(heard, candidates, true); ok {
		if techniques[m.Index].ID != target.ID {
			return AlreadyRecognized, &ConflictError{Heard: heard, Other: techniques[m.Index].Name}
		}
		if m.Distance == 0 {
			return AlreadyRecognized, nil
		}
	}

	if err := c.store.AddTechniqueAlias(ctx, target.ID, heard); err != nil {
		return AlreadyRecognized, fmt.Errorf("calibrate %q: %w", target.Name, err)
	}
	return AliasAdded, nil
}
