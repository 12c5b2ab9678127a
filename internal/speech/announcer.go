package speech

import (
	"context"
	"log"
	"os/exec"
	"sync"
	"time"

	"github.com/lowaak/dojo-trainer/internal/events"
	"github.com/lowaak/dojo-trainer/internal/go_func_utils"
)

// LogAnnouncer writes every announcement to the log and republishes it to listeners,
// which the UI uses to show the last spoken line
type LogAnnouncer struct {
	logger *log.Logger
	spoken *events.ChannelEvent[string]
}

// NewLogAnnouncer creates a LogAnnouncer
func NewLogAnnouncer(logger *log.Logger) *LogAnnouncer {
	if logger == nil {
		panic("LogAnnouncer: logger cannot be nil")
	}
	return &LogAnnouncer{
		logger: logger,
		spoken: events.NewChannelEvent[string](true),
	}
}

// Speak implements Announcer
func (a *LogAnnouncer) Speak(text string) {
	a.logger.Printf("Announcer: %q", text)
	a.spoken.Notify(text)
}

// ListenToSpoken registers a channel to receive every announcement
func (a *LogAnnouncer) ListenToSpoken(ch chan<- string) func() {
	return a.spoken.Listen(ch)
}

// CommandAnnouncer hands announcements to an external text-to-speech program
// such as espeak or say. Utterances are played one at a time in order; when the
// queue is full the newest text is dropped.
type CommandAnnouncer struct {
	logger  *log.Logger
	command string
	args    []string
	timeout time.Duration
	queue   chan string
	next    Announcer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCommandAnnouncer starts the playback goroutine. The text is appended as the last argument.
// next, if not nil, also receives every announcement.
func NewCommandAnnouncer(logger *log.Logger, command string, args []string, next Announcer) *CommandAnnouncer {
	if logger == nil {
		panic("CommandAnnouncer: logger cannot be nil")
	}
	ctx, cancel := context.WithCancel(context.Background())
	a := &CommandAnnouncer{
		logger:  logger,
		command: command,
		args:    args,
		timeout: 15 * time.Second,
		queue:   make(chan string, 16),
		next:    next,
		ctx:     ctx,
		cancel:  cancel,
	}
	go_func_utils.SafeGoWG(logger, &a.wg, a.playLoop)
	return a
}

// Speak implements Announcer
func (a *CommandAnnouncer) Speak(text string) {
	if a.next != nil {
		a.next.Speak(text)
	}
	select {
	case a.queue <- text:
	default:
		a.logger.Printf("CommandAnnouncer: queue full, dropping %q", text)
	}
}

// Shutdown stops playback and waits for the current utterance to be cancelled
func (a *CommandAnnouncer) Shutdown() {
	a.cancel()
	a.wg.Wait()
}

func (a *CommandAnnouncer) playLoop() {
	for {
		select {
		case <-a.ctx.Done():
			return
		case text := <-a.queue:
			ctx, cancel := context.WithTimeout(a.ctx, a.timeout)
			args := append(append([]string{}, a.args...), text)
			if err := exec.CommandContext(ctx, a.command, args...).Run(); err != nil {
				a.logger.Printf("CommandAnnouncer: %s failed: %v", a.command, err)
			}
			cancel()
		}
	}
}
