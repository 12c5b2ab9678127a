package events

// CallbackEvent calls registered functions synchronously on Notify
type CallbackEvent[T any] struct {
	reg *registry[T, func(T)]
}

// NewCallbackEvent creates a CallbackEvent.
// With sendLastEventOnListen set, a new callback is invoked with the most recent value on Listen.
func NewCallbackEvent[T any](sendLastEventOnListen bool) *CallbackEvent[T] {
	return &CallbackEvent[T]{reg: newRegistry[T, func(T)](sendLastEventOnListen)}
}

// Listen registers callback and returns a function that removes it again.
// The replayed value, if any, is delivered outside the lock.
func (e *CallbackEvent[T]) Listen(callback func(T)) func() {
	if callback == nil {
		panic("callback cannot be nil")
	}
	id, last, replay, ok := e.reg.add(callback)
	if !ok {
		return func() {}
	}
	if replay {
		callback(last)
	}
	return func() { e.reg.remove(id) }
}

// Notify invokes every registered callback with value
func (e *CallbackEvent[T]) Notify(value T) {
	for _, callback := range e.reg.snapshot(value) {
		callback(value)
	}
}

// Close drops every callback; later Notify and Listen calls do nothing
func (e *CallbackEvent[T]) Close() {
	e.reg.close()
}

// ListenerCount returns the current number of registered callbacks
func (e *CallbackEvent[T]) ListenerCount() int {
	return e.reg.count()
}
