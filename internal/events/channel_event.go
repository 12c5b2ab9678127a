package events

// ChannelEvent fans values out to registered channels.
// Sends never block: a listener whose buffer is full misses that value.
type ChannelEvent[T any] struct {
	reg *registry[T, chan<- T]
}

// NewChannelEvent creates a ChannelEvent.
// With sendLastEventOnListen set, a new listener immediately receives the most recent value.
func NewChannelEvent[T any](sendLastEventOnListen bool) *ChannelEvent[T] {
	return &ChannelEvent[T]{reg: newRegistry[T, chan<- T](sendLastEventOnListen)}
}

// Listen registers ch and returns a function that removes it again.
// Listening on a closed event is a no-op.
func (e *ChannelEvent[T]) Listen(ch chan<- T) func() {
	if ch == nil {
		panic("channel cannot be nil")
	}
	id, last, replay, ok := e.reg.add(ch)
	if !ok {
		return func() {}
	}
	if replay {
		select {
		case ch <- last:
		default:
		}
	}
	return func() { e.reg.remove(id) }
}

// Notify sends value to every registered channel
func (e *ChannelEvent[T]) Notify(value T) {
	for _, ch := range e.reg.snapshot(value) {
		select {
		case ch <- value:
		default:
		}
	}
}

// Last returns the most recently notified value when replay is enabled
func (e *ChannelEvent[T]) Last() (T, bool) {
	return e.reg.lastValue()
}

// Close drops every listener; later Notify and Listen calls do nothing
func (e *ChannelEvent[T]) Close() {
	e.reg.close()
}

// ListenerCount returns the current number of registered listeners
func (e *ChannelEvent[T]) ListenerCount() int {
	return e.reg.count()
}
