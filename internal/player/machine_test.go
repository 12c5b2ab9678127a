package player

import (
	"testing"
	"time"

	"github.com/lowaak/dojo-trainer/internal/training"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func timed(d time.Duration) training.Timing {
	return training.Timing{UseTimer: true, Duration: d}
}

func TestMachine_TimerStepAutoCompletesAfterDuration(t *testing.T) {
	cfg := newTestConfig(t,
		map[training.Category]training.Timing{training.CategoryTechnique: timed(5 * time.Second)},
		map[training.Category][]training.Item{training.CategoryTechnique: {technique("Jab", 0)}})
	m := newTestMachine(cfg, -1)

	m.start(t0)
	require.Equal(t, PhaseCountingDown, m.phase)
	assert.Equal(t, 5*time.Second, m.countdown)

	now := t0
	for i := 0; i < 4; i++ {
		now = now.Add(time.Second)
		m.tick(now)
		require.Equal(t, PhaseCountingDown, m.phase, "tick %d", i+1)
	}
	now = now.Add(time.Second)
	effects := m.tick(now)

	assert.Equal(t, PhaseComplete, m.phase)
	records := m.recorder.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "Jab", records[0].ItemName)
	assert.InDelta(t, 5.0, records[0].ElapsedSeconds, 0.001)
	assert.Equal(t, 1, countKind(effects, effectFinalize))
	assert.Equal(t, 1, countKind(effects, effectSendCompletion))
}

func TestMachine_PausedStepNeverAutoCompletes(t *testing.T) {
	cfg := newTestConfig(t, nil,
		map[training.Category][]training.Item{training.CategoryKata: {plain(training.CategoryKata, "Heian Shodan", 0)}})
	m := newTestMachine(cfg, -1)

	m.start(t0)
	require.Equal(t, PhasePaused, m.phase)

	now := t0
	for i := 0; i < 120; i++ {
		now = now.Add(time.Second)
		assert.Nil(t, m.tick(now))
	}
	assert.Equal(t, PhasePaused, m.phase)
	assert.Equal(t, 0, m.recorder.Len())

	_, ok := m.next(now)
	require.True(t, ok)
	assert.Equal(t, PhaseComplete, m.phase)
	require.Equal(t, 1, m.recorder.Len())
	assert.InDelta(t, 120.0, m.recorder.Records()[0].ElapsedSeconds, 0.001)
}

func TestMachine_BlockCompletesAfterTenNexts(t *testing.T) {
	cfg := newTestConfig(t, nil,
		map[training.Category][]training.Item{training.CategoryBlock: {block("Age Uke", 0)}})
	m := newTestMachine(cfg, -1)

	effects := m.start(t0)
	require.Equal(t, PhaseWaitingForUserAdvance, m.phase)
	assert.Equal(t, 1, m.blockReps)
	assert.Equal(t, PhaseInBlockFlow, firstPublished(t, effects).Phase)

	for i := 0; i < 9; i++ {
		_, ok := m.next(t0.Add(time.Duration(i+1) * time.Second))
		require.True(t, ok)
		require.Equal(t, PhaseWaitingForUserAdvance, m.phase, "next %d", i+1)
	}
	assert.Equal(t, 10, m.blockReps)
	assert.Equal(t, 0, m.recorder.Len())

	m.next(t0.Add(10 * time.Second))
	assert.Equal(t, PhaseComplete, m.phase)
	assert.Equal(t, 1, m.recorder.Len())
}

func TestMachine_TwoSidedStrikeNeedsTwentyNexts(t *testing.T) {
	cfg := newTestConfig(t, nil,
		map[training.Category][]training.Item{training.CategoryStrike: {strike("Gyaku Zuki", 0, true)}})
	m := newTestMachine(cfg, -1)

	m.start(t0)
	require.Equal(t, SideLeft, m.strikeSide)

	var spoken []string
	for i := 1; i <= 19; i++ {
		effects, ok := m.next(t0.Add(time.Duration(i) * time.Second))
		require.True(t, ok)
		require.NotEqual(t, PhaseComplete, m.phase, "completed early after %d nexts", i)
		spoken = append(spoken, announced(effects)...)
		if i == 10 {
			assert.Equal(t, SideRight, m.strikeSide)
			assert.Equal(t, 1, m.strikeReps)
			assert.True(t, m.step.Item.Strike.LeftCompleted)
		}
	}
	assert.Contains(t, spoken, "Switch sides. Right side.")
	assert.Equal(t, 10, m.strikeReps)

	m.next(t0.Add(20 * time.Second))
	assert.Equal(t, PhaseComplete, m.phase)
	records := m.recorder.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "Gyaku Zuki", records[0].ItemName)
	assert.Equal(t, training.CategoryStrike, records[0].Category)
	assert.InDelta(t, 20.0, records[0].ElapsedSeconds, 0.001)
}

func TestMachine_OneSidedStrikeNeedsTenNexts(t *testing.T) {
	cfg := newTestConfig(t, nil,
		map[training.Category][]training.Item{training.CategoryStrike: {strike("Oi Zuki", 0, false)}})
	m := newTestMachine(cfg, -1)
	m.start(t0)

	for i := 0; i < 9; i++ {
		m.next(t0)
	}
	assert.Equal(t, PhaseWaitingForUserAdvance, m.phase)
	m.next(t0)
	assert.Equal(t, PhaseComplete, m.phase)
	assert.Equal(t, SideLeft, m.strikeSide)
}

func TestMachine_StrikeIgnoresTimer(t *testing.T) {
	cfg := newTestConfig(t,
		map[training.Category]training.Timing{training.CategoryStrike: timed(3 * time.Second)},
		map[training.Category][]training.Item{training.CategoryStrike: {strike("Oi Zuki", 0, false)}})
	m := newTestMachine(cfg, -1)
	m.start(t0)

	for i := 0; i < 10; i++ {
		assert.Nil(t, m.tick(t0.Add(time.Duration(i+1)*time.Second)))
	}
	assert.Equal(t, PhaseWaitingForUserAdvance, m.phase)
}

func TestMachine_EndToEndTwoTimedTechniques(t *testing.T) {
	cfg := newTestConfig(t,
		map[training.Category]training.Timing{training.CategoryTechnique: timed(5 * time.Second)},
		map[training.Category][]training.Item{training.CategoryTechnique: {technique("A", 0), technique("B", 1)}})
	m := newTestMachine(cfg, 10*time.Second)

	var all []effect
	all = append(all, m.start(t0)...)
	require.Equal(t, PhaseAnnouncing, m.phase)

	now := t0
	for m.phase != PhaseComplete {
		now = now.Add(time.Second)
		all = append(all, m.tick(now)...)
		require.True(t, now.Sub(t0) <= 30*time.Second, "session did not complete")
	}

	records := m.recorder.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "A", records[0].ItemName)
	assert.Equal(t, "B", records[1].ItemName)
	assert.InDelta(t, 10.0, records[0].ElapsedSeconds+records[1].ElapsedSeconds, 0.001)
	assert.Equal(t, 20*time.Second, now.Sub(t0))
	assert.Equal(t, 2, countKind(all, effectSendStep))
	assert.Equal(t, 1, countKind(all, effectSendCompletion))
	assert.Equal(t, "Get ready.", announced(all)[0])
	assert.Equal(t, 2, m.stepIndex)
}

func TestMachine_CategoryOrderAcrossSession(t *testing.T) {
	cfg := newTestConfig(t, nil, map[training.Category][]training.Item{
		training.CategoryStrike:    {strike("Oi Zuki", 0, false)},
		training.CategoryKick:      {plain(training.CategoryKick, "Mae Geri", 0)},
		training.CategoryTechnique: {technique("Jab", 0)},
	})
	m := newTestMachine(cfg, -1)

	var sent []string
	collect := func(effects []effect) {
		for _, e := range effects {
			if e.kind == effectSendStep {
				sent = append(sent, e.text)
			}
		}
	}
	collect(m.start(t0))
	for m.phase != PhaseComplete {
		effects, ok := m.next(t0)
		require.True(t, ok)
		collect(effects)
	}
	assert.Equal(t, []string{"Jab", "Mae Geri", "Oi Zuki"}, sent)
	assert.Equal(t, 3, m.recorder.Len())
}

func TestMachine_EmptySessionCompletesImmediately(t *testing.T) {
	cfg := newTestConfig(t, nil, nil)
	m := newTestMachine(cfg, 10*time.Second)

	effects := m.start(t0)
	assert.Equal(t, PhaseComplete, m.phase)
	assert.Equal(t, 0, m.recorder.Len())
	assert.Equal(t, 1, countKind(effects, effectFinalize))

	_, ok := m.next(t0)
	assert.False(t, ok)
}

func TestMachine_NextSkipsReadyCountdown(t *testing.T) {
	cfg := newTestConfig(t, nil,
		map[training.Category][]training.Item{training.CategoryTechnique: {technique("Jab", 0)}})
	m := newTestMachine(cfg, 10*time.Second)
	m.start(t0)
	require.Equal(t, PhaseAnnouncing, m.phase)

	m.next(t0.Add(2 * time.Second))
	assert.Equal(t, PhasePaused, m.phase)
	assert.Equal(t, t0.Add(2*time.Second), m.stepStartedAt)
	assert.Equal(t, 0, m.recorder.Len())
}

func TestMachine_StopTimer(t *testing.T) {
	cfg := newTestConfig(t,
		map[training.Category]training.Timing{training.CategoryTechnique: timed(30 * time.Second)},
		map[training.Category][]training.Item{
			training.CategoryTechnique: {technique("Jab", 0)},
			training.CategoryExercise:  {plain(training.CategoryExercise, "Push ups", 0)},
		})
	m := newTestMachine(cfg, -1)
	m.start(t0)

	m.tick(t0.Add(time.Second))
	m.tick(t0.Add(2 * time.Second))
	_, ok := m.stopTimer(t0.Add(2500 * time.Millisecond))
	require.True(t, ok)
	require.Equal(t, 1, m.recorder.Len())
	assert.InDelta(t, 2.5, m.recorder.Records()[0].ElapsedSeconds, 0.001)

	// the exercise step has no timer
	require.Equal(t, PhasePaused, m.phase)
	_, ok = m.stopTimer(t0.Add(3 * time.Second))
	assert.False(t, ok)
	assert.Equal(t, PhasePaused, m.phase)
}

func TestMachine_TranscriptMatchesTechniqueAndAliases(t *testing.T) {
	cfg := newTestConfig(t, nil, map[training.Category][]training.Item{
		training.CategoryTechnique: {technique("Gedan Barai", 0, "down block"), technique("Jab", 1)},
		training.CategoryKata:      {plain(training.CategoryKata, "Heian Nidan", 0)},
	})
	m := newTestMachine(cfg, -1)
	m.start(t0)

	_, ok := m.transcript("something completely different", t0)
	assert.False(t, ok)

	_, ok = m.transcript("Down Block", t0.Add(time.Second))
	require.True(t, ok)
	assert.Equal(t, "Jab", m.step.Item.Name)

	_, ok = m.transcript("jabb", t0.Add(2*time.Second))
	require.True(t, ok)
	assert.Equal(t, training.CategoryKata, m.step.Category)

	// transcripts only complete techniques
	_, ok = m.transcript("Heian Nidan", t0.Add(3*time.Second))
	assert.False(t, ok)
	assert.Equal(t, 2, m.recorder.Len())
}

func TestMachine_CancelStopsSession(t *testing.T) {
	cfg := newTestConfig(t,
		map[training.Category]training.Timing{training.CategoryTechnique: timed(5 * time.Second)},
		map[training.Category][]training.Item{training.CategoryTechnique: {technique("Jab", 0)}})
	m := newTestMachine(cfg, -1)
	m.start(t0)

	effects := m.cancel()
	assert.Equal(t, 1, countKind(effects, effectStopTicker))
	assert.Equal(t, 0, countKind(effects, effectFinalize))
	assert.Equal(t, PhaseIdle, m.phase)
	assert.True(t, m.snapshot().Cancelled)

	assert.Nil(t, m.tick(t0.Add(10*time.Second)))
	_, ok := m.next(t0)
	assert.False(t, ok)
	assert.Nil(t, m.cancel())
}

func TestMachine_SnapshotIsIsolated(t *testing.T) {
	cfg := newTestConfig(t, nil,
		map[training.Category][]training.Item{training.CategoryStrike: {strike("Oi Zuki", 0, true)}})
	m := newTestMachine(cfg, -1)
	m.start(t0)

	snap := m.snapshot()
	snap.Step.Item.Strike.LeftCompleted = true
	assert.False(t, m.step.Item.Strike.LeftCompleted)
}

func firstPublished(t *testing.T, effects []effect) State {
	t.Helper()
	for _, e := range effects {
		if e.kind == effectPublish {
			return e.state
		}
	}
	t.Fatal("no intermediate state published")
	return State{}
}
