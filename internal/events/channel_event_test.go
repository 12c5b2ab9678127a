package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stepSnapshot struct {
	Index int
	Name  string
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for event")
	}
	var zero T
	return zero
}

func assertNothing[T any](t *testing.T, ch <-chan T) {
	t.Helper()
	select {
	case v := <-ch:
		t.Errorf("Unexpected value received: %v", v)
	default:
	}
}

func TestChannelEvent_ListenNotify(t *testing.T) {
	event := NewChannelEvent[stepSnapshot](false)
	ch := make(chan stepSnapshot, 10)
	unregister := event.Listen(ch)
	assert.Equal(t, 1, event.ListenerCount())

	event.Notify(stepSnapshot{Index: 0, Name: "Jab"})
	event.Notify(stepSnapshot{Index: 1, Name: "Cross"})

	assert.Equal(t, "Jab", receive(t, ch).Name)
	assert.Equal(t, "Cross", receive(t, ch).Name)

	unregister()
	assert.Equal(t, 0, event.ListenerCount())
	event.Notify(stepSnapshot{Index: 2, Name: "Hook"})
	assertNothing(t, ch)
}

func TestChannelEvent_ReplaysLastState(t *testing.T) {
	event := NewChannelEvent[stepSnapshot](true)

	early := make(chan stepSnapshot, 10)
	unregisterEarly := event.Listen(early)
	defer unregisterEarly()
	assertNothing(t, early)

	_, ok := event.Last()
	assert.False(t, ok)

	event.Notify(stepSnapshot{Index: 3, Name: "Mae Geri"})
	assert.Equal(t, 3, receive(t, early).Index)

	late := make(chan stepSnapshot, 10)
	unregisterLate := event.Listen(late)
	defer unregisterLate()
	assert.Equal(t, "Mae Geri", receive(t, late).Name)

	last, ok := event.Last()
	require.True(t, ok)
	assert.Equal(t, 3, last.Index)
}

func TestChannelEvent_NoReplayWhenDisabled(t *testing.T) {
	event := NewChannelEvent[string](false)
	event.Notify("nextMove")

	ch := make(chan string, 1)
	defer event.Listen(ch)()
	assertNothing(t, ch)

	_, ok := event.Last()
	assert.False(t, ok)
}

func TestChannelEvent_FullChannelSkipped(t *testing.T) {
	event := NewChannelEvent[string](false)
	ch := make(chan string, 1)
	defer event.Listen(ch)()

	ch <- "blocking"
	event.Notify("step")
	assert.Equal(t, 1, len(ch))

	<-ch
	event.Notify("complete")
	assert.Equal(t, "complete", receive(t, ch))
}

func TestChannelEvent_Close(t *testing.T) {
	event := NewChannelEvent[string](true)
	ch := make(chan string, 2)
	event.Listen(ch)

	event.Close()
	assert.Equal(t, 0, event.ListenerCount())

	event.Notify("after close")
	assertNothing(t, ch)

	unregister := event.Listen(make(chan string, 1))
	assert.Equal(t, 0, event.ListenerCount())
	unregister()
}

func TestChannelEvent_NilChannelPanics(t *testing.T) {
	event := NewChannelEvent[string](false)
	assert.Panics(t, func() { event.Listen(nil) })
}

func TestChannelEvent_ConcurrentNotify(t *testing.T) {
	event := NewChannelEvent[int](false)
	channels := make([]chan int, 5)
	for i := range channels {
		channels[i] = make(chan int, 100)
		defer event.Listen(channels[i])()
	}

	var wg sync.WaitGroup
	wg.Add(10)
	for i := 0; i < 10; i++ {
		go func(v int) {
			defer wg.Done()
			event.Notify(v)
		}(i)
	}
	wg.Wait()

	for _, ch := range channels {
		assert.Equal(t, 10, len(ch))
	}
}
