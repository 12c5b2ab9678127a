package events

import "sync"

// registry is the listener bookkeeping shared by ChannelEvent and CallbackEvent.
// It remembers the last notified value when replay is enabled.
type registry[T any, L any] struct {
	mu        sync.RWMutex
	listeners map[uint64]L
	nextID    uint64
	replay    bool
	last      T
	hasLast   bool
	closed    bool
}

func newRegistry[T any, L any](replay bool) *registry[T, L] {
	return &registry[T, L]{
		listeners: make(map[uint64]L),
		replay:    replay,
	}
}

// add stores l and returns its id plus the value to replay, if any.
// A closed registry accepts no listeners and returns ok=false.
func (r *registry[T, L]) add(l L) (id uint64, replayValue T, shouldReplay bool, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, replayValue, false, false
	}
	id = r.nextID
	r.nextID++
	r.listeners[id] = l
	if r.replay && r.hasLast {
		return id, r.last, true, true
	}
	return id, replayValue, false, true
}

func (r *registry[T, L]) remove(id uint64) {
	r.mu.Lock()
	delete(r.listeners, id)
	r.mu.Unlock()
}

// snapshot records value (when replaying) and returns a copy of the listeners to call outside the lock
func (r *registry[T, L]) snapshot(value T) []L {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	if r.replay {
		r.last = value
		r.hasLast = true
	}
	out := make([]L, 0, len(r.listeners))
	for _, l := range r.listeners {
		out = append(out, l)
	}
	return out
}

func (r *registry[T, L]) lastValue() (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last, r.hasLast
}

func (r *registry[T, L]) close() {
	r.mu.Lock()
	r.closed = true
	r.listeners = make(map[uint64]L)
	r.mu.Unlock()
}

func (r *registry[T, L]) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listeners)
}
