// Package player runs a training session: it walks the session's steps, applies
// each category's timer or repetition policy, records history and relays progress
// to the remote device.
package player

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/lowaak/dojo-trainer/internal/events"
	"github.com/lowaak/dojo-trainer/internal/go_func_utils"
	"github.com/lowaak/dojo-trainer/internal/matcher"
	"github.com/lowaak/dojo-trainer/internal/remote"
	"github.com/lowaak/dojo-trainer/internal/speech"
	"github.com/lowaak/dojo-trainer/internal/training"
)

var (
	// ErrSessionActive is returned by Start while another session is playing
	ErrSessionActive = errors.New("a session is already playing")
	// ErrNothingToSave is returned by RetrySave when no finished session is held
	ErrNothingToSave = errors.New("no finished session to save")
	// ErrUnsavedHistory is returned by Start while the last finished session's
	// history has not been saved. RetrySave it, or Cancel to discard it.
	ErrUnsavedHistory = errors.New("history of the last session is not saved")
	// ErrShutdown is returned once the player has been shut down
	ErrShutdown = errors.New("player shut down")
)

// Default option values
const (
	DefaultReadyCountdown = 10 * time.Second
	DefaultRepetitionCap  = 10
	DefaultTick           = 1 * time.Second
	DefaultSaveTimeout    = 10 * time.Second
)

// RemoteNotifier is the part of the remote notifier the player drives
type RemoteNotifier interface {
	SendStepName(name string, stepIndex, totalSteps int)
	SendCompletion(totalSteps int)
	OnRemoteAdvance(cb func()) func()
}

var _ RemoteNotifier = (*remote.Notifier)(nil)

// Dependencies are the player's collaborators. Sessions, Items and Announcer are required.
type Dependencies struct {
	Sessions   training.SessionLoader
	Items      training.ItemLoader
	History    training.HistoryStore
	Announcer  speech.Announcer
	Recognizer speech.Recognizer
	Remote     RemoteNotifier
}

// Options tune the player. Zero values select the defaults, except MatchThreshold.
type Options struct {
	// ReadyCountdown is the pre-session countdown. Negative disables it.
	ReadyCountdown time.Duration
	RepetitionCap  int
	Tick           time.Duration
	// MatchThreshold is the transcript distance threshold. 0 accepts exact matches only,
	// negative uses matcher.DefaultThreshold.
	MatchThreshold int
	SaveTimeout    time.Duration
	Clock          Clock
	NewTicker      func(d time.Duration) Ticker
	Rand           *rand.Rand
}

func (o Options) withDefaults() Options {
	if o.ReadyCountdown == 0 {
		o.ReadyCountdown = DefaultReadyCountdown
	} else if o.ReadyCountdown < 0 {
		o.ReadyCountdown = 0
	}
	if o.RepetitionCap <= 0 {
		o.RepetitionCap = DefaultRepetitionCap
	}
	if o.Tick <= 0 {
		o.Tick = DefaultTick
	}
	if o.MatchThreshold < 0 {
		o.MatchThreshold = matcher.DefaultThreshold
	}
	if o.SaveTimeout <= 0 {
		o.SaveTimeout = DefaultSaveTimeout
	}
	if o.Clock == nil {
		o.Clock = SystemClock
	}
	if o.NewTicker == nil {
		o.NewTicker = NewTimeTicker
	}
	if o.Rand == nil {
		now := uint64(time.Now().UnixNano())
		o.Rand = rand.New(rand.NewPCG(now, now>>17))
	}
	return o
}

type intentKind int

const (
	intentStart intentKind = iota
	intentNext
	intentStopTimer
	intentTranscript
	intentCancel
	intentRetrySave
)

func (k intentKind) String() string {
	switch k {
	case intentStart:
		return "start"
	case intentNext:
		return "next"
	case intentStopTimer:
		return "stop timer"
	case intentTranscript:
		return "transcript"
	case intentCancel:
		return "cancel"
	case intentRetrySave:
		return "retry save"
	default:
		return "unknown"
	}
}

// intent is one event fed into the serialized loop
type intent struct {
	kind    intentKind
	machine *machine
	text    string
	ctx     context.Context
	reply   chan error
}

// Player serializes ticks, user actions, remote commands and transcripts into one
// goroutine that owns the session state machine. Each transition publishes a State.
type Player struct {
	deps   Dependencies
	opts   Options
	logger *log.Logger

	mu    sync.RWMutex
	state State

	randMu     sync.Mutex
	stateEvent *events.ChannelEvent[State]

	intents      chan intent
	doneChan     chan struct{}
	wg           sync.WaitGroup
	shutdownOnce sync.Once

	// owned by the loop goroutine
	machine          *machine
	ticker           Ticker
	saveErr          error
	unregisterRemote func()
	listening        bool
}

// NewPlayer creates a Player and starts its loop
func NewPlayer(deps Dependencies, opts Options, logger *log.Logger) *Player {
	if deps.Sessions == nil {
		panic("Player: session loader cannot be nil")
	}
	if deps.Items == nil {
		panic("Player: item loader cannot be nil")
	}
	if deps.Announcer == nil {
		panic("Player: announcer cannot be nil")
	}
	if logger == nil {
		panic("Player: logger cannot be nil")
	}
	opts = opts.withDefaults()

	p := &Player{
		deps:       deps,
		opts:       opts,
		logger:     logger,
		state:      State{Phase: PhaseIdle, RepetitionCap: opts.RepetitionCap},
		stateEvent: events.NewChannelEvent[State](true),
		intents:    make(chan intent, 16),
		doneChan:   make(chan struct{}),
		ticker:     opts.NewTicker(opts.Tick),
	}
	p.stateEvent.Notify(p.state)

	go_func_utils.SafeGoWG(logger, &p.wg, p.runLoop)
	return p
}

// Start loads a session and begins playing it. Failing to load the session
// definition aborts with an error. Failing to load its items, or a session with
// no selected items, completes immediately with an empty history.
func (p *Player) Start(ctx context.Context, sessionID string) error {
	if p.State().Phase.Active() {
		return ErrSessionActive
	}

	def, err := p.deps.Sessions.LoadSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("player: load session %q: %w", sessionID, err)
	}

	cfg := p.resolveConfiguration(ctx, def)
	m := newMachine(cfg, machineConfig{
		repetitionCap:  p.opts.RepetitionCap,
		readyCountdown: p.opts.ReadyCountdown,
		tick:           p.opts.Tick,
		matcher:        matcher.New(p.opts.MatchThreshold),
	})

	reply := make(chan error, 1)
	select {
	case p.intents <- intent{kind: intentStart, machine: m, reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	case <-p.doneChan:
		return ErrShutdown
	}
	select {
	case err := <-reply:
		return err
	case <-p.doneChan:
		return ErrShutdown
	}
}

func (p *Player) resolveConfiguration(ctx context.Context, def training.SessionDefinition) *training.SessionConfiguration {
	items, err := training.LoadItems(ctx, p.deps.Items, def.ID)
	if err != nil {
		p.logger.Printf("Player: Loading items for %q failed, session will complete empty: %v", def.Name, err)
		items = nil
	}

	p.randMu.Lock()
	cfg, err := training.NewSessionConfiguration(def, items, p.opts.Rand)
	p.randMu.Unlock()
	if err != nil {
		p.logger.Printf("Player: Session %q is invalid, session will complete empty: %v", def.Name, err)
		cfg, _ = training.NewSessionConfiguration(training.SessionDefinition{
			ID:           def.ID,
			Name:         def.Name,
			PracticeType: def.PracticeType,
		}, nil, nil)
	}
	return cfg
}

// Next advances the current step: it completes a paused or counting step, counts
// a strike or block repetition, or skips the ready countdown
func (p *Player) Next() {
	p.enqueue(intent{kind: intentNext})
}

// StopTimer force-completes a counting step early
func (p *Player) StopTimer() {
	p.enqueue(intent{kind: intentStopTimer})
}

// Transcript feeds recognized speech. A match with the current technique acts as Next.
func (p *Player) Transcript(text string) {
	p.enqueue(intent{kind: intentTranscript, text: text})
}

// Cancel stops the active session: the timer, speech recognition and remote
// notifications stop and nothing further is recorded. On a finished session whose
// history could not be saved, Cancel discards that history.
func (p *Player) Cancel() {
	p.enqueue(intent{kind: intentCancel})
}

// RetrySave persists the history of the last finished session again after a failure
func (p *Player) RetrySave(ctx context.Context) error {
	reply := make(chan error, 1)
	select {
	case p.intents <- intent{kind: intentRetrySave, ctx: ctx, reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	case <-p.doneChan:
		return ErrShutdown
	}
	select {
	case err := <-reply:
		return err
	case <-p.doneChan:
		return ErrShutdown
	}
}

// State returns the most recently published snapshot
func (p *Player) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// ListenToState registers a channel for state snapshots. The current state is sent immediately.
// Returns a deregistration function.
func (p *Player) ListenToState(ch chan<- State) func() {
	return p.stateEvent.Listen(ch)
}

// Shutdown cancels any active session and stops the loop.
// Safe to call multiple times - only the first call has effect.
func (p *Player) Shutdown() {
	p.shutdownOnce.Do(func() {
		p.logger.Printf("Player: Shutting down")
		close(p.doneChan)
		p.wg.Wait()
		p.stateEvent.Close()
		p.logger.Printf("Player: Shutdown complete")
	})
}

func (p *Player) enqueue(in intent) {
	select {
	case <-p.doneChan:
		p.logger.Printf("Player: Dropping %s, player shut down", in.kind)
		return
	default:
	}
	select {
	case p.intents <- in:
	case <-p.doneChan:
		p.logger.Printf("Player: Dropping %s, player shut down", in.kind)
	}
}

func (p *Player) runLoop() {
	defer p.logger.Printf("Player: Goroutine exiting")
	for {
		select {
		case <-p.doneChan:
			if p.machine != nil {
				p.apply(p.machine.cancel())
			}
			p.detachSession()
			p.ticker.Stop()
			return

		case in := <-p.intents:
			p.handleIntent(in)

		case <-p.ticker.C():
			if p.machine == nil {
				continue
			}
			p.apply(p.machine.tick(p.opts.Clock.Now()))
		}
	}
}

func (p *Player) handleIntent(in intent) {
	now := p.opts.Clock.Now()

	if in.kind == intentStart {
		in.reply <- p.startSession(in.machine, now)
		return
	}

	if p.machine == nil {
		p.logger.Printf("Player: Ignoring %s, no session", in.kind)
		if in.reply != nil {
			in.reply <- ErrNothingToSave
		}
		return
	}

	phase := p.machine.phase
	switch in.kind {
	case intentNext:
		effects, ok := p.machine.next(now)
		if !ok {
			p.logger.Printf("Player: Next ignored in %s", phase)
			return
		}
		p.apply(effects)

	case intentStopTimer:
		effects, ok := p.machine.stopTimer(now)
		if !ok {
			p.logger.Printf("Player: Stop timer ignored in %s", phase)
			return
		}
		p.apply(effects)

	case intentTranscript:
		current := p.machine.step.Item.Name
		effects, ok := p.machine.transcript(in.text, now)
		if !ok {
			p.logger.Printf("Player: Transcript %q did not match the current step", in.text)
			return
		}
		p.logger.Printf("Player: Transcript %q matched %q", in.text, current)
		p.apply(effects)

	case intentCancel:
		if p.hasUnsavedHistory() {
			p.discardUnsaved()
			return
		}
		effects := p.machine.cancel()
		if effects == nil {
			p.logger.Printf("Player: Cancel ignored in %s", phase)
			return
		}
		p.logger.Printf("Player: Session %q cancelled at step %d", p.machine.name, p.machine.stepIndex)
		p.detachSession()
		p.apply(effects)

	case intentRetrySave:
		if p.machine.phase != PhaseComplete {
			in.reply <- ErrNothingToSave
			return
		}
		ctx := in.ctx
		if ctx == nil {
			ctx = context.Background()
		}
		err := p.finalize(ctx)
		p.publish(p.machine.snapshot())
		in.reply <- err
	}
}

func (p *Player) startSession(m *machine, now time.Time) error {
	if p.machine != nil && p.machine.phase.Active() {
		return ErrSessionActive
	}
	if p.hasUnsavedHistory() {
		p.logger.Printf("Player: Not starting %q, %d records of %q are not saved", m.name, p.machine.recorder.Len(), p.machine.name)
		return ErrUnsavedHistory
	}
	p.machine = m
	p.saveErr = nil
	p.logger.Printf("Player: Starting session %q with %d steps", m.name, m.seq.Total())
	p.attachSession()
	p.apply(m.start(now))
	return nil
}

// hasUnsavedHistory reports whether the last session finished but its history
// failed to reach the store
func (p *Player) hasUnsavedHistory() bool {
	return p.machine != nil && p.deps.History != nil &&
		p.machine.phase == PhaseComplete && !p.machine.recorder.Saved()
}

func (p *Player) discardUnsaved() {
	p.logger.Printf("Player: Discarding %d unsaved records of %q", p.machine.recorder.Len(), p.machine.name)
	p.machine = nil
	p.saveErr = nil
	p.publish(State{Phase: PhaseIdle, RepetitionCap: p.opts.RepetitionCap, Cancelled: true})
}

// attachSession connects the remote advance signal and speech recognition to the loop
func (p *Player) attachSession() {
	if p.deps.Remote != nil {
		p.unregisterRemote = p.deps.Remote.OnRemoteAdvance(p.Next)
	}
	if p.deps.Recognizer != nil {
		if err := p.deps.Recognizer.StartListening(p.Transcript); err != nil {
			p.logger.Printf("Player: Speech recognition unavailable: %v", err)
		} else {
			p.listening = true
		}
	}
}

func (p *Player) detachSession() {
	if p.unregisterRemote != nil {
		p.unregisterRemote()
		p.unregisterRemote = nil
	}
	if p.listening {
		p.deps.Recognizer.StopListening()
		p.listening = false
	}
}

// apply carries out the effects of one transition and publishes the resulting state
func (p *Player) apply(effects []effect) {
	for _, e := range effects {
		switch e.kind {
		case effectAnnounce:
			p.deps.Announcer.Speak(e.text)
		case effectSendStep:
			p.logger.Printf("Player: Step %d/%d %q", e.stepIndex+1, e.totalSteps, e.text)
			if p.deps.Remote != nil {
				p.deps.Remote.SendStepName(e.text, e.stepIndex, e.totalSteps)
			}
		case effectSendCompletion:
			if p.deps.Remote != nil {
				p.deps.Remote.SendCompletion(e.totalSteps)
			}
		case effectStartTicker:
			p.ticker.Reset(p.opts.Tick)
		case effectStopTicker:
			p.ticker.Stop()
		case effectPublish:
			p.publish(e.state)
		case effectFinalize:
			p.detachSession()
			p.logger.Printf("Player: Session %q complete, %d records", p.machine.name, p.machine.recorder.Len())
			_ = p.finalize(context.Background())
		}
	}
	if p.machine != nil {
		p.publish(p.machine.snapshot())
	}
}

func (p *Player) finalize(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.opts.SaveTimeout)
	defer cancel()
	err := p.machine.recorder.Finalize(ctx, p.deps.History, p.machine.name)
	if err != nil {
		p.logger.Printf("Player: Saving history of %q failed: %v", p.machine.name, err)
	}
	p.saveErr = err
	return err
}

func (p *Player) publish(state State) {
	state.SaveErr = p.saveErr
	p.mu.Lock()
	p.state = state
	p.mu.Unlock()
	p.stateEvent.Notify(state)
}
