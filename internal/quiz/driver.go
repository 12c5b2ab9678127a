// Package quiz implements the listening quiz: the user names techniques aloud in
// any order and every recognized name is ticked off without manual advancing.
package quiz

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/lowaak/dojo-trainer/internal/events"
	"github.com/lowaak/dojo-trainer/internal/matcher"
	"github.com/lowaak/dojo-trainer/internal/speech"
	"github.com/lowaak/dojo-trainer/internal/training"
)

// ErrFinished is returned when a finished quiz is used again
var ErrFinished = errors.New("quiz already finished")

// Progress is published after every match and when the quiz finishes
type Progress struct {
	Pending []string
	Known   []string
	// LastHeard is the most recent transcript, matched or not
	LastHeard string
	Done      bool
}

// Dependencies are the quiz collaborators. Recognizer and History may be nil.
type Dependencies struct {
	Recognizer speech.Recognizer
	Announcer  speech.Announcer
	History    training.HistoryStore
	Now        func() time.Time
}

// Driver matches a transcript stream against the techniques still pending.
// Methods are safe for concurrent use; recognizer callbacks may arrive on any goroutine.
type Driver struct {
	deps        Dependencies
	logger      *log.Logger
	matcher     matcher.Matcher
	sessionName string

	mu        sync.Mutex
	pending   []training.Item
	known     []string
	lastHeard string
	recorder  *training.Recorder
	lastMark  time.Time
	listening bool
	finished  bool

	progress *events.ChannelEvent[Progress]
}

// NewDriver creates a quiz over the techniques of cfg. A negative threshold uses the matcher default.
func NewDriver(cfg *training.SessionConfiguration, deps Dependencies, threshold int, logger *log.Logger) *Driver {
	if cfg == nil {
		panic("QuizDriver: configuration cannot be nil")
	}
	if logger == nil {
		panic("QuizDriver: logger cannot be nil")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	d := &Driver{
		deps:        deps,
		logger:      logger,
		matcher:     matcher.New(threshold),
		sessionName: cfg.Name,
		pending:     cfg.Items(training.CategoryTechnique),
		recorder:    training.NewRecorder(),
		progress:    events.NewChannelEvent[Progress](true),
	}
	d.lastMark = deps.Now()
	d.progress.Notify(d.buildProgress())
	return d
}

// Start begins listening. A recognizer that fails to start is logged and the quiz
// continues with transcripts supplied through HandleTranscript.
func (d *Driver) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.finished || d.listening || d.deps.Recognizer == nil {
		return
	}
	if err := d.deps.Recognizer.StartListening(func(text string) { d.HandleTranscript(text) }); err != nil {
		d.logger.Printf("QuizDriver: Speech recognition unavailable: %v", err)
		return
	}
	d.listening = true
	d.logger.Printf("QuizDriver: Listening for %d techniques", len(d.pending))
}

// HandleTranscript ticks off the closest pending technique within the threshold.
// It returns the matched technique and whether one matched.
func (d *Driver) HandleTranscript(text string) (training.Item, bool) {
	d.mu.Lock()
	if d.finished {
		d.mu.Unlock()
		return training.Item{}, false
	}
	d.lastHeard = text

	candidates := make([]matcher.Candidate, len(d.pending))
	for i, it := range d.pending {
		candidates[i] = matcher.Candidate{Name: it.Name, Aliases: it.Aliases()}
	}
	m, ok := d.matcher.FindClosestMatch(text, candidates, true)
	if !ok {
		progress := d.buildProgress()
		d.mu.Unlock()
		d.logger.Printf("QuizDriver: %q matched nothing pending", text)
		d.progress.Notify(progress)
		return training.Item{}, false
	}

	item := d.pending[m.Index]
	d.pending = append(d.pending[:m.Index:m.Index], d.pending[m.Index+1:]...)
	d.known = append(d.known, item.Name)
	now := d.deps.Now()
	d.recorder.Record(item, training.CategoryTechnique, now.Sub(d.lastMark), true, now)
	d.lastMark = now
	progress := d.buildProgress()
	d.mu.Unlock()

	d.logger.Printf("QuizDriver: %q matched %q (distance %d)", text, item.Name, m.Distance)
	if d.deps.Announcer != nil {
		d.deps.Announcer.Speak(item.Name)
	}
	d.progress.Notify(progress)
	return item, true
}

// Pending returns the techniques not yet named
func (d *Driver) Pending() []training.Item {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]training.Item, len(d.pending))
	copy(out, d.pending)
	return out
}

// Finish stops listening, records every technique still pending as unknown and
// persists the quiz history as one unit. It may be called again after a save failure.
func (d *Driver) Finish(ctx context.Context) ([]training.Record, error) {
	d.mu.Lock()
	if !d.finished {
		d.finished = true
		if d.listening {
			d.deps.Recognizer.StopListening()
			d.listening = false
		}
		now := d.deps.Now()
		for _, it := range d.pending {
			d.recorder.Record(it, training.CategoryTechnique, 0, false, now)
		}
		d.pending = nil
	}
	err := d.recorder.Finalize(ctx, d.deps.History, d.sessionName)
	records := d.recorder.Records()
	progress := d.buildProgress()
	d.mu.Unlock()

	if err != nil {
		d.logger.Printf("QuizDriver: Saving quiz history failed: %v", err)
	}
	d.progress.Notify(progress)
	return records, err
}

// ListenToProgress registers a channel for progress updates. Returns a deregistration function.
func (d *Driver) ListenToProgress(ch chan<- Progress) func() {
	return d.progress.Listen(ch)
}

// buildProgress MUST be called with mu held
func (d *Driver) buildProgress() Progress {
	p := Progress{
		Pending:   make([]string, 0, len(d.pending)),
		Known:     append([]string(nil), d.known...),
		LastHeard: d.lastHeard,
		Done:      d.finished,
	}
	for _, it := range d.pending {
		p.Pending = append(p.Pending, it.Name)
	}
	return p
}
