package remote

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/lowaak/dojo-trainer/internal/events"
	"github.com/lowaak/dojo-trainer/internal/go_func_utils"
)

const (
	defaultSendTimeout = 3 * time.Second
	sendQueueSize      = 32
)

// Notifier sends progress to the remote device without ever blocking the caller
// and fans inbound commands out to registered callbacks. Messages reach the
// transport one at a time in the order they were sent; when the queue is full
// the newest message is dropped.
type Notifier struct {
	transport   Transport
	logger      *log.Logger
	sendTimeout time.Duration
	queue       chan Message

	commands *events.CallbackEvent[Command]

	mu     sync.Mutex
	closed bool

	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	stopListen func()
}

// NewNotifier creates a Notifier and starts forwarding inbound commands from transport.
// A sendTimeout <= 0 uses the default.
func NewNotifier(transport Transport, logger *log.Logger, sendTimeout time.Duration) *Notifier {
	if transport == nil {
		panic("Notifier: transport cannot be nil")
	}
	if logger == nil {
		panic("Notifier: logger cannot be nil")
	}
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	n := &Notifier{
		transport:   transport,
		logger:      logger,
		sendTimeout: sendTimeout,
		queue:       make(chan Message, sendQueueSize),
		commands:    events.NewCallbackEvent[Command](false),
		ctx:         ctx,
		cancel:      cancel,
	}

	inbound := make(chan Command, 16)
	n.stopListen = transport.Listen(inbound)
	go_func_utils.SafeGoWG(logger, &n.wg, func() {
		n.forwardCommands(inbound)
	})
	go_func_utils.SafeGoWG(logger, &n.wg, n.sendLoop)
	return n
}

func (n *Notifier) sendLoop() {
	defer n.logger.Printf("RemoteNotifier: exiting send loop")
	for {
		select {
		case <-n.ctx.Done():
			return
		case msg := <-n.queue:
			ctx, cancel := context.WithTimeout(n.ctx, n.sendTimeout)
			if err := n.transport.Send(ctx, msg); err != nil {
				n.logger.Printf("RemoteNotifier: send %s failed: %v", msg.Type, err)
			}
			cancel()
		}
	}
}

func (n *Notifier) forwardCommands(inbound <-chan Command) {
	defer n.logger.Printf("RemoteNotifier: exiting command loop")
	for {
		select {
		case <-n.ctx.Done():
			return
		case cmd := <-inbound:
			n.logger.Printf("RemoteNotifier: received %s", cmd)
			n.commands.Notify(cmd)
		}
	}
}

// SendStepName tells the remote device which item is current
func (n *Notifier) SendStepName(name string, stepIndex, totalSteps int) {
	n.send(Message{Type: MessageStep, Name: name, StepIndex: stepIndex, TotalSteps: totalSteps})
}

// SendCompletion tells the remote device the session finished
func (n *Notifier) SendCompletion(totalSteps int) {
	n.send(Message{Type: MessageCompletion, StepIndex: totalSteps, TotalSteps: totalSteps})
}

func (n *Notifier) send(msg Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		n.logger.Printf("RemoteNotifier: closed, dropping %s message", msg.Type)
		return
	}
	select {
	case n.queue <- msg:
	default:
		n.logger.Printf("RemoteNotifier: queue full, dropping %s message", msg.Type)
	}
}

// OnRemoteAdvance calls cb for every nextMove command. Returns a deregistration function.
func (n *Notifier) OnRemoteAdvance(cb func()) func() {
	if cb == nil {
		panic("Notifier: advance callback cannot be nil")
	}
	return n.commands.Listen(func(cmd Command) {
		if cmd == CommandNextMove {
			cb()
		}
	})
}

// OnCommand calls cb for every inbound command. Returns a deregistration function.
func (n *Notifier) OnCommand(cb func(Command)) func() {
	return n.commands.Listen(cb)
}

// Close stops sending, cancels the in-flight send, drops queued messages and stops the command loop
func (n *Notifier) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	n.mu.Unlock()

	n.stopListen()
	n.cancel()
	n.wg.Wait()
	n.commands.Close()
	n.logger.Println("RemoteNotifier: closed")
}
