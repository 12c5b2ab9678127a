package remote

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer lets the test read the log while notifier goroutines write to it
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

func newTestLogger() (*log.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	return log.New(buf, "", 0), buf
}

func TestParseCommand(t *testing.T) {
	cases := map[string]Command{
		"nextMove":               CommandNextMove,
		" startTraining\n":       CommandStartTraining,
		`"endTraining"`:          CommandEndTraining,
		`{"command":"nextMove"}`: CommandNextMove,
		"nextMove\x00":           CommandNextMove,
	}
	for in, want := range cases {
		got, err := ParseCommand([]byte(in))
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseCommand([]byte("jump"))
	assert.Error(t, err)
	_, err = ParseCommand([]byte(`{"command":`))
	assert.Error(t, err)
}

func TestMessage_WireFormat(t *testing.T) {
	data, err := Message{Type: MessageStep, Name: "Jab", StepIndex: 1, TotalSteps: 4}.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"step","name":"Jab","stepIndex":1,"totalSteps":4}`, string(data))

	m, err := DecodeMessage([]byte(`{"type":"completion","stepIndex":4,"totalSteps":4}`))
	require.NoError(t, err)
	assert.Equal(t, MessageCompletion, m.Type)

	_, err = DecodeMessage([]byte(`{"type":"bogus"}`))
	assert.Error(t, err)
}

func TestNotifier_SendsAreDelivered(t *testing.T) {
	logger, _ := newTestLogger()
	lb := NewLoopback()
	delivered := make(chan Message, 4)
	lb.OnSend(func(m Message) { delivered <- m })

	n := NewNotifier(lb, logger, time.Second)
	defer n.Close()

	n.SendStepName("Jab", 0, 2)
	select {
	case m := <-delivered:
		assert.Equal(t, Message{Type: MessageStep, Name: "Jab", StepIndex: 0, TotalSteps: 2}, m)
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for step message")
	}

	n.SendCompletion(2)
	select {
	case m := <-delivered:
		assert.Equal(t, MessageCompletion, m.Type)
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for completion message")
	}
}

func TestNotifier_SendErrorsAreSwallowed(t *testing.T) {
	logger, buf := newTestLogger()
	lb := NewLoopback()
	lb.SetSendError(errors.New("watch unreachable"))

	n := NewNotifier(lb, logger, time.Second)
	defer n.Close()
	n.SendStepName("Jab", 0, 1)

	assert.Eventually(t, func() bool {
		return strings.Contains(buf.String(), "watch unreachable")
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, lb.Sent())
}

func TestNotifier_PreservesSendOrder(t *testing.T) {
	logger, _ := newTestLogger()
	lb := NewLoopback()
	const steps = 20
	delivered := make(chan Message, steps+1)
	lb.OnSend(func(m Message) { delivered <- m })

	n := NewNotifier(lb, logger, time.Second)
	defer n.Close()

	for i := 0; i < steps; i++ {
		n.SendStepName("Jab", i, steps)
	}
	n.SendCompletion(steps)

	for i := 0; i <= steps; i++ {
		select {
		case m := <-delivered:
			if i < steps {
				require.Equal(t, MessageStep, m.Type, "message %d", i)
				assert.Equal(t, i, m.StepIndex)
			} else {
				assert.Equal(t, MessageCompletion, m.Type)
			}
		case <-time.After(time.Second):
			t.Fatalf("Timeout waiting for message %d", i)
		}
	}
}

func TestNotifier_SendsOneAtATime(t *testing.T) {
	logger, _ := newTestLogger()
	ct := &countingTransport{}
	n := NewNotifier(ct, logger, time.Second)

	for i := 0; i < 10; i++ {
		n.SendStepName("Jab", i, 10)
	}
	assert.Eventually(t, func() bool { return ct.calls.Load() == 10 }, time.Second, 5*time.Millisecond)
	n.Close()
	assert.Equal(t, int32(1), ct.maxActive.Load())
}

func TestNotifier_FullQueueDropsNewest(t *testing.T) {
	logger, buf := newTestLogger()
	slow := &blockingTransport{release: make(chan struct{})}
	n := NewNotifier(slow, logger, time.Second)

	start := time.Now()
	for i := 0; i < sendQueueSize+5; i++ {
		n.SendStepName("Jab", i, sendQueueSize+5)
	}
	assert.Less(t, time.Since(start), 20*time.Millisecond)
	assert.Contains(t, buf.String(), "queue full, dropping step message")

	close(slow.release)
	n.Close()
}

func TestNotifier_SendDoesNotBlockOnSlowTransport(t *testing.T) {
	logger, _ := newTestLogger()
	slow := &blockingTransport{release: make(chan struct{})}
	n := NewNotifier(slow, logger, 50*time.Millisecond)

	start := time.Now()
	for i := 0; i < 5; i++ {
		n.SendStepName("Jab", i, 5)
	}
	assert.Less(t, time.Since(start), 20*time.Millisecond)

	n.Close()
	close(slow.release)
}

func TestNotifier_RemoteAdvance(t *testing.T) {
	logger, _ := newTestLogger()
	lb := NewLoopback()
	n := NewNotifier(lb, logger, time.Second)
	defer n.Close()

	advanced := make(chan struct{}, 4)
	unregister := n.OnRemoteAdvance(func() { advanced <- struct{}{} })

	lb.Inject(CommandStartTraining)
	lb.Inject(CommandNextMove)

	select {
	case <-advanced:
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for advance")
	}

	unregister()
	lb.Inject(CommandNextMove)
	select {
	case <-advanced:
		t.Fatal("advance delivered after unregister")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNotifier_DropsSendsAfterClose(t *testing.T) {
	logger, buf := newTestLogger()
	lb := NewLoopback()
	n := NewNotifier(lb, logger, time.Second)
	n.Close()
	n.Close()

	n.SendStepName("Jab", 0, 1)
	assert.Empty(t, lb.Sent())
	assert.Contains(t, buf.String(), "dropping step message")
}

func TestLoopback_ClosedSendFails(t *testing.T) {
	lb := NewLoopback()
	lb.Close()
	assert.ErrorIs(t, lb.Send(context.Background(), Message{Type: MessageStep}), ErrTransportClosed)
}

type blockingTransport struct {
	release chan struct{}
}

func (b *blockingTransport) Send(ctx context.Context, _ Message) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.release:
		return nil
	}
}

func (b *blockingTransport) Listen(chan<- Command) func() { return func() {} }

// countingTransport records how many sends overlap
type countingTransport struct {
	active    atomic.Int32
	maxActive atomic.Int32
	calls     atomic.Int32
}

func (c *countingTransport) Send(context.Context, Message) error {
	now := c.active.Add(1)
	for {
		prev := c.maxActive.Load()
		if now <= prev || c.maxActive.CompareAndSwap(prev, now) {
			break
		}
	}
	time.Sleep(time.Millisecond)
	c.active.Add(-1)
	c.calls.Add(1)
	return nil
}

func (c *countingTransport) Listen(chan<- Command) func() { return func() {} }
