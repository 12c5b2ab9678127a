package speech

import (
	"bytes"
	"log"
	"testing"
	"time"

	"github.com/lowaak/dojo-trainer/internal/training"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhrases_PracticeTypeChangesWording(t *testing.T) {
	quiet := PhrasesFor(training.PracticeSoundOff)
	loud := PhrasesFor(training.PracticeHardWithVocalization)

	assert.Equal(t, "Move", quiet.Move())
	assert.Contains(t, loud.Move(), "Kiai")
	assert.NotEqual(t, quiet.Ready(), loud.Ready())
	assert.NotEqual(t, quiet.Complete(), loud.Complete())
	assert.Equal(t, "Technique: Jab", quiet.Item(training.CategoryTechnique, "Jab"))
	assert.Equal(t, "Kata: Heian Nidan", loud.Item(training.CategoryKata, "Heian Nidan"))
	assert.Equal(t, "Switch sides. Right side.", quiet.SwitchSides("Right"))
}

func TestLogAnnouncer_PublishesSpokenText(t *testing.T) {
	var buf bytes.Buffer
	a := NewLogAnnouncer(log.New(&buf, "", 0))
	ch := make(chan string, 2)
	defer a.ListenToSpoken(ch)()

	a.Speak("Get ready.")

	select {
	case got := <-ch:
		assert.Equal(t, "Get ready.", got)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for announcement")
	}
	assert.Contains(t, buf.String(), "Get ready.")
}

func TestManualRecognizer_Lifecycle(t *testing.T) {
	r := NewManualRecognizer()
	assert.ErrorIs(t, r.Feed("jab"), ErrNotListening)

	var got []string
	require.NoError(t, r.StartListening(func(s string) { got = append(got, s) }))
	assert.True(t, r.IsListening())
	assert.ErrorIs(t, r.StartListening(func(string) {}), ErrAlreadyListening)

	require.NoError(t, r.Feed("  jab "))
	require.NoError(t, r.Feed("   "))
	r.StopListening()
	assert.False(t, r.IsListening())
	assert.ErrorIs(t, r.Feed("cross"), ErrNotListening)

	assert.Equal(t, []string{"jab"}, got)
}
