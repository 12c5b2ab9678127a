package player

import "time"

// Clock supplies the timestamps used for elapsed-time measurement
type Clock interface {
	Now() time.Time
}

// Ticker delivers periodic ticks. It mirrors the subset of *time.Ticker the player uses.
type Ticker interface {
	C() <-chan time.Time
	Reset(d time.Duration)
	Stop()
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock
var SystemClock Clock = systemClock{}

type timeTicker struct {
	t *time.Ticker
}

// NewTimeTicker returns a stopped Ticker backed by time.Ticker
func NewTimeTicker(d time.Duration) Ticker {
	t := time.NewTicker(d)
	t.Stop()
	return &timeTicker{t: t}
}

func (t *timeTicker) C() <-chan time.Time   { return t.t.C }
func (t *timeTicker) Reset(d time.Duration) { t.t.Reset(d) }
func (t *timeTicker) Stop()                 { t.t.Stop() }
