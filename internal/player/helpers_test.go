package player

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/lowaak/dojo-trainer/internal/matcher"
	"github.com/lowaak/dojo-trainer/internal/training"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

func technique(name string, order int, aliases ...string) training.Item {
	return training.Item{
		ID: fmt.Sprintf("technique-%d", order), Name: name, OrderIndex: order, Selected: true,
		Technique: &training.TechniqueDetails{Aliases: aliases},
	}
}

func strike(name string, order int, bothSides bool) training.Item {
	return training.Item{
		ID: fmt.Sprintf("strike-%d", order), Name: name, OrderIndex: order, Selected: true,
		Strike: &training.StrikeDetails{RequiresBothSides: bothSides, Repetitions: 10},
	}
}

func block(name string, order int) training.Item {
	return training.Item{
		ID: fmt.Sprintf("block-%d", order), Name: name, OrderIndex: order, Selected: true,
		Block: &training.BlockDetails{Repetitions: 10},
	}
}

func plain(category training.Category, name string, order int) training.Item {
	return training.Item{
		ID: fmt.Sprintf("%s-%d", category, order), Name: name, OrderIndex: order, Selected: true,
	}
}

func newTestConfig(t *testing.T, timing map[training.Category]training.Timing, items map[training.Category][]training.Item) *training.SessionConfiguration {
	t.Helper()
	cfg, err := training.NewSessionConfiguration(training.SessionDefinition{
		ID:     "s1",
		Name:   "Evening",
		Timing: timing,
	}, items, nil)
	require.NoError(t, err)
	return cfg
}

func newTestMachine(cfg *training.SessionConfiguration, ready time.Duration) *machine {
	return newMachine(cfg, machineConfig{
		repetitionCap:  DefaultRepetitionCap,
		readyCountdown: ready,
		tick:           time.Second,
		matcher:        matcher.New(matcher.DefaultThreshold),
	})
}

func countKind(effects []effect, kind effectKind) int {
	n := 0
	for _, e := range effects {
		if e.kind == kind {
			n++
		}
	}
	return n
}

func announced(effects []effect) []string {
	var out []string
	for _, e := range effects {
		if e.kind == effectAnnounce {
			out = append(out, e.text)
		}
	}
	return out
}

// fakeClock is advanced by the test
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// fakeTicker never fires on its own; the test delivers ticks on ch
type fakeTicker struct {
	ch      chan time.Time
	mu      sync.Mutex
	running bool
}

func newFakeTicker() *fakeTicker {
	return &fakeTicker{ch: make(chan time.Time)}
}

func (f *fakeTicker) C() <-chan time.Time { return f.ch }

func (f *fakeTicker) Reset(time.Duration) {
	f.mu.Lock()
	f.running = true
	f.mu.Unlock()
}

func (f *fakeTicker) Stop() {
	f.mu.Lock()
	f.running = false
	f.mu.Unlock()
}

func (f *fakeTicker) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

// memoryStore serves one session and records history appends
type memoryStore struct {
	mu        sync.Mutex
	def       training.SessionDefinition
	items     map[training.Category][]training.Item
	loadErr   error
	itemsErr  error
	appendErr error
	appended  [][]training.Record
}

func (s *memoryStore) LoadSession(_ context.Context, id string) (training.SessionDefinition, error) {
	if s.loadErr != nil {
		return training.SessionDefinition{}, s.loadErr
	}
	if id != s.def.ID {
		return training.SessionDefinition{}, errors.New("session not found")
	}
	return s.def, nil
}

func (s *memoryStore) LoadSelectedItems(_ context.Context, _ string, category training.Category) ([]training.Item, error) {
	if s.itemsErr != nil {
		return nil, s.itemsErr
	}
	return s.items[category], nil
}

func (s *memoryStore) AppendHistory(_ context.Context, _ string, records []training.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	s.appended = append(s.appended, records)
	return nil
}

func (s *memoryStore) setAppendErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendErr = err
}

func (s *memoryStore) appendCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.appended)
}

// recordingAnnouncer keeps everything spoken
type recordingAnnouncer struct {
	mu     sync.Mutex
	spoken []string
}

func (a *recordingAnnouncer) Speak(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.spoken = append(a.spoken, text)
}

func (a *recordingAnnouncer) Spoken() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.spoken...)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type harness struct {
	player    *Player
	store     *memoryStore
	clock     *fakeClock
	ticker    *fakeTicker
	announcer *recordingAnnouncer
	logs      *syncBuffer
}

func newHarness(t *testing.T, store *memoryStore, deps Dependencies, ready time.Duration) *harness {
	t.Helper()
	return newHarnessWithOptions(t, store, deps, Options{
		ReadyCountdown: ready,
		MatchThreshold: matcher.DefaultThreshold,
	})
}

// newHarnessWithOptions wires store and fakes into a player built with opts.
// Clock and NewTicker are always replaced by the fakes.
func newHarnessWithOptions(t *testing.T, store *memoryStore, deps Dependencies, opts Options) *harness {
	t.Helper()
	h := &harness{
		store:     store,
		clock:     &fakeClock{now: t0},
		ticker:    newFakeTicker(),
		announcer: &recordingAnnouncer{},
		logs:      &syncBuffer{},
	}
	deps.Sessions = store
	deps.Items = store
	deps.History = store
	deps.Announcer = h.announcer
	opts.Clock = h.clock
	opts.NewTicker = func(time.Duration) Ticker { return h.ticker }
	h.player = NewPlayer(deps, opts, log.New(h.logs, "", 0))
	t.Cleanup(h.player.Shutdown)
	return h
}

// tick advances the fake clock by one second and hands the tick to the loop
func (h *harness) tick(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		now := h.clock.Advance(time.Second)
		select {
		case h.ticker.ch <- now:
		case <-time.After(time.Second):
			t.Fatal("Timeout delivering tick")
		}
	}
}

func (h *harness) waitFor(t *testing.T, what string, cond func(State) bool) State {
	t.Helper()
	require.Eventually(t, func() bool { return cond(h.player.State()) }, time.Second, 5*time.Millisecond, what)
	return h.player.State()
}
