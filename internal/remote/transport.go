package remote

import (
	"context"
	"sync"

	"github.com/lowaak/dojo-trainer/internal/events"
)

// Transport is a best-effort link to the remote device. Send gives no delivery
// guarantee. Listen registers a channel that receives inbound commands and
// returns a function that removes it.
type Transport interface {
	Send(ctx context.Context, msg Message) error
	Listen(ch chan<- Command) func()
}

// Loopback is an in-memory Transport. Sent messages are kept for inspection and
// commands are injected with Inject. Used when no wrist is configured and in tests.
type Loopback struct {
	mu       sync.Mutex
	sent     []Message
	sendErr  error
	closed   bool
	commands *events.ChannelEvent[Command]
	onSend   func(Message)
}

var _ Transport = (*Loopback)(nil)

// NewLoopback creates an open Loopback
func NewLoopback() *Loopback {
	return &Loopback{commands: events.NewChannelEvent[Command](false)}
}

// Send implements Transport
func (l *Loopback) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrTransportClosed
	}
	if l.sendErr != nil {
		err := l.sendErr
		l.mu.Unlock()
		return err
	}
	l.sent = append(l.sent, msg)
	onSend := l.onSend
	l.mu.Unlock()

	if onSend != nil {
		onSend(msg)
	}
	return nil
}

// Listen implements Transport
func (l *Loopback) Listen(ch chan<- Command) func() {
	return l.commands.Listen(ch)
}

// Inject delivers cmd to every listener as if the remote device had sent it
func (l *Loopback) Inject(cmd Command) {
	l.commands.Notify(cmd)
}

// SetSendError makes every following Send fail with err. nil restores delivery.
func (l *Loopback) SetSendError(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sendErr = err
}

// OnSend installs a hook called after each delivered message
func (l *Loopback) OnSend(fn func(Message)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onSend = fn
}

// Sent returns a copy of every delivered message in send order
func (l *Loopback) Sent() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Message, len(l.sent))
	copy(out, l.sent)
	return out
}

// Close makes further sends fail with ErrTransportClosed
func (l *Loopback) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	l.commands.Close()
}
