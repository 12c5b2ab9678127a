package player

import (
	"time"

	"github.com/lowaak/dojo-trainer/internal/training"
)

// Phase is the state machine's position
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAnnouncing
	PhaseCountingDown
	PhasePaused
	PhaseInStrikeFlow
	PhaseInBlockFlow
	PhaseWaitingForUserAdvance
	PhaseComplete
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseAnnouncing:
		return "Announcing"
	case PhaseCountingDown:
		return "CountingDown"
	case PhasePaused:
		return "Paused"
	case PhaseInStrikeFlow:
		return "InStrikeFlow"
	case PhaseInBlockFlow:
		return "InBlockFlow"
	case PhaseWaitingForUserAdvance:
		return "WaitingForUserAdvance"
	case PhaseComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Active reports whether a session is in progress in this phase
func (p Phase) Active() bool {
	return p != PhaseIdle && p != PhaseComplete
}

// StrikeSide is the side a strike is being practised on
type StrikeSide int

const (
	SideLeft StrikeSide = iota
	SideRight
)

func (s StrikeSide) String() string {
	if s == SideRight {
		return "Right"
	}
	return "Left"
}

// State is an immutable snapshot of the player, published after every transition
type State struct {
	Phase       Phase
	SessionName string
	StepIndex   int
	TotalSteps  int
	// Step is the current step; HasStep is false before step 0 and after completion
	Step    training.Step
	HasStep bool

	CountdownRemaining time.Duration
	StrikeSide         StrikeSide
	StrikeRepetition   int
	BlockRepetition    int
	RepetitionCap      int
	StepStartedAt      time.Time

	History []training.Record
	// Saved is true once the history has been persisted
	Saved bool
	// SaveErr is set when persisting the history failed; RetrySave clears it on success
	SaveErr error
	// Cancelled is true when the session was stopped before completing
	Cancelled bool
}

// CountdownSeconds returns the remaining countdown rounded up to whole seconds
func (s State) CountdownSeconds() int {
	if s.CountdownRemaining <= 0 {
		return 0
	}
	return int((s.CountdownRemaining + time.Second - 1) / time.Second)
}
