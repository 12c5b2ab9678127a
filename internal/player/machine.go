package player

import (
	"time"

	"github.com/lowaak/dojo-trainer/internal/matcher"
	"github.com/lowaak/dojo-trainer/internal/speech"
	"github.com/lowaak/dojo-trainer/internal/training"
)

type effectKind int

const (
	effectAnnounce effectKind = iota
	effectSendStep
	effectSendCompletion
	effectStartTicker
	effectStopTicker
	effectPublish
	effectFinalize
)

// effect is a side effect requested by a transition. The runtime applies them in order.
type effect struct {
	kind       effectKind
	text       string
	stepIndex  int
	totalSteps int
	state      State
}

// machine holds the state of one session and implements every transition.
// It performs no I/O: transitions return the effects the runtime must carry out.
// It is owned by the player loop goroutine.
type machine struct {
	name           string
	seq            *training.Sequencer
	phrases        speech.Phrases
	recorder       *training.Recorder
	matcher        matcher.Matcher
	repetitionCap  int
	readyCountdown time.Duration
	tickEvery      time.Duration

	phase         Phase
	stepIndex     int
	step          training.Step
	hasStep       bool
	countdown     time.Duration
	strikeSide    StrikeSide
	strikeReps    int
	blockReps     int
	stepStartedAt time.Time
	cancelled     bool

	effects []effect
}

type machineConfig struct {
	repetitionCap  int
	readyCountdown time.Duration
	tick           time.Duration
	matcher        matcher.Matcher
}

func newMachine(cfg *training.SessionConfiguration, mc machineConfig) *machine {
	return &machine{
		name:           cfg.Name,
		seq:            training.NewSequencer(cfg),
		phrases:        speech.PhrasesFor(cfg.PracticeType),
		recorder:       training.NewRecorder(),
		matcher:        mc.matcher,
		repetitionCap:  mc.repetitionCap,
		readyCountdown: mc.readyCountdown,
		tickEvery:      mc.tick,
		phase:          PhaseIdle,
	}
}

func (m *machine) snapshot() State {
	s := State{
		Phase:              m.phase,
		SessionName:        m.name,
		StepIndex:          m.stepIndex,
		TotalSteps:         m.seq.Total(),
		HasStep:            m.hasStep,
		CountdownRemaining: m.countdown,
		StrikeSide:         m.strikeSide,
		StrikeRepetition:   m.strikeReps,
		BlockRepetition:    m.blockReps,
		RepetitionCap:      m.repetitionCap,
		StepStartedAt:      m.stepStartedAt,
		History:            m.recorder.Records(),
		Saved:              m.recorder.Saved(),
		Cancelled:          m.cancelled,
	}
	if m.hasStep {
		s.Step = m.step
		s.Step.Item = m.step.Item.Clone()
	}
	return s
}

func (m *machine) emit(e effect) {
	m.effects = append(m.effects, e)
}

func (m *machine) announce(text string) {
	m.emit(effect{kind: effectAnnounce, text: text})
}

func (m *machine) publish() {
	m.emit(effect{kind: effectPublish, state: m.snapshot()})
}

func (m *machine) flush() []effect {
	out := m.effects
	m.effects = nil
	return out
}

// start plays the ready cue once and arms its countdown. A session without
// steps completes immediately.
func (m *machine) start(now time.Time) []effect {
	if m.phase != PhaseIdle {
		return nil
	}
	if m.seq.Total() == 0 {
		m.complete()
		return m.flush()
	}
	m.phase = PhaseAnnouncing
	m.countdown = m.readyCountdown
	m.announce(m.phrases.Ready())
	if m.countdown <= 0 {
		m.countdown = 0
		m.enterStep(0, now)
	} else {
		m.emit(effect{kind: effectStartTicker})
	}
	return m.flush()
}

// tick advances the ready countdown or the step countdown. Other phases ignore ticks.
func (m *machine) tick(now time.Time) []effect {
	switch m.phase {
	case PhaseAnnouncing:
		m.countdown -= m.tickEvery
		if m.countdown <= 0 {
			m.countdown = 0
			m.enterStep(0, now)
		}
	case PhaseCountingDown:
		m.countdown -= m.tickEvery
		if m.countdown <= 0 {
			m.countdown = 0
			m.completeStep(now)
		}
	default:
		return nil
	}
	return m.flush()
}

// next handles a manual or remote advance. The bool is false when the phase ignores it.
func (m *machine) next(now time.Time) ([]effect, bool) {
	switch m.phase {
	case PhaseAnnouncing:
		m.countdown = 0
		m.enterStep(0, now)
	case PhaseCountingDown, PhasePaused:
		m.completeStep(now)
	case PhaseWaitingForUserAdvance:
		m.advanceRepetition(now)
	default:
		return nil, false
	}
	return m.flush(), true
}

// stopTimer force-completes a counting step with whatever time has elapsed
func (m *machine) stopTimer(now time.Time) ([]effect, bool) {
	if m.phase != PhaseCountingDown {
		return nil, false
	}
	m.completeStep(now)
	return m.flush(), true
}

// transcript completes the current technique when text matches its name or one of its aliases
func (m *machine) transcript(text string, now time.Time) ([]effect, bool) {
	if !m.hasStep || m.step.Category != training.CategoryTechnique {
		return nil, false
	}
	if m.phase != PhaseCountingDown && m.phase != PhasePaused {
		return nil, false
	}
	candidates := []matcher.Candidate{{Name: m.step.Item.Name, Aliases: m.step.Item.Aliases()}}
	if _, ok := m.matcher.FindClosestMatch(text, candidates, true); !ok {
		return nil, false
	}
	m.completeStep(now)
	return m.flush(), true
}

// cancel abandons the session without recording or persisting anything further
func (m *machine) cancel() []effect {
	if !m.phase.Active() {
		return nil
	}
	m.phase = PhaseIdle
	m.cancelled = true
	m.hasStep = false
	m.step = training.Step{}
	m.countdown = 0
	m.emit(effect{kind: effectStopTicker})
	return m.flush()
}

func (m *machine) enterStep(index int, now time.Time) {
	step, ok := m.seq.At(index)
	if !ok {
		m.complete()
		return
	}

	m.stepIndex = index
	m.step = step
	m.hasStep = true
	m.stepStartedAt = now
	m.countdown = 0
	m.strikeSide = SideLeft
	m.strikeReps = 0
	m.blockReps = 0

	m.emit(effect{kind: effectSendStep, text: step.Item.Name, stepIndex: index, totalSteps: m.seq.Total()})
	m.announce(m.phrases.Item(step.Category, step.Item.Name))

	switch step.Category {
	case training.CategoryStrike:
		m.emit(effect{kind: effectStopTicker})
		m.phase = PhaseInStrikeFlow
		m.publish()
		m.nextStrikeRepetition()
	case training.CategoryBlock:
		m.emit(effect{kind: effectStopTicker})
		m.phase = PhaseInBlockFlow
		m.publish()
		m.nextBlockRepetition()
	default:
		if step.UseTimer {
			m.phase = PhaseCountingDown
			m.countdown = step.Duration
			m.emit(effect{kind: effectStartTicker})
		} else {
			m.phase = PhasePaused
			m.emit(effect{kind: effectStopTicker})
		}
	}
}

func (m *machine) nextStrikeRepetition() {
	m.strikeReps++
	m.announce(m.phrases.Move())
	m.phase = PhaseWaitingForUserAdvance
}

func (m *machine) nextBlockRepetition() {
	m.blockReps++
	m.announce(m.phrases.Move())
	m.phase = PhaseWaitingForUserAdvance
}

func (m *machine) advanceRepetition(now time.Time) {
	switch m.step.Category {
	case training.CategoryStrike:
		if m.strikeReps < m.repetitionCap {
			m.phase = PhaseInStrikeFlow
			m.nextStrikeRepetition()
			return
		}
		m.markSideCompleted()
		if m.switchSidesIfNeeded() {
			return
		}
		m.completeStep(now)
	case training.CategoryBlock:
		if m.blockReps < m.repetitionCap {
			m.phase = PhaseInBlockFlow
			m.nextBlockRepetition()
			return
		}
		m.completeStep(now)
	default:
		m.completeStep(now)
	}
}

func (m *machine) markSideCompleted() {
	if m.step.Item.Strike == nil {
		return
	}
	if m.strikeSide == SideLeft {
		m.step.Item.Strike.LeftCompleted = true
	} else {
		m.step.Item.Strike.RightCompleted = true
	}
}

// switchSidesIfNeeded restarts the repetition loop on the right side of a
// two-sided strike whose left side just reached the cap
func (m *machine) switchSidesIfNeeded() bool {
	if !m.step.Item.RequiresBothSides() || m.strikeSide != SideLeft {
		return false
	}
	m.strikeSide = SideRight
	m.strikeReps = 0
	m.announce(m.phrases.SwitchSides(m.strikeSide.String()))
	m.phase = PhaseInStrikeFlow
	m.publish()
	m.nextStrikeRepetition()
	return true
}

func (m *machine) completeStep(now time.Time) {
	m.recorder.Record(m.step.Item, m.step.Category, now.Sub(m.stepStartedAt), true, now)
	m.countdown = 0
	m.enterStep(m.stepIndex+1, now)
}

func (m *machine) complete() {
	total := m.seq.Total()
	m.phase = PhaseComplete
	m.stepIndex = total
	m.hasStep = false
	m.step = training.Step{}
	m.countdown = 0
	m.strikeReps = 0
	m.blockReps = 0
	m.emit(effect{kind: effectStopTicker})
	m.announce(m.phrases.Complete())
	m.emit(effect{kind: effectSendCompletion, totalSteps: total})
	m.emit(effect{kind: effectFinalize})
}
