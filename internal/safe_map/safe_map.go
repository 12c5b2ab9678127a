// Package safe_map provides a generic map guarded by a read/write mutex.
package safe_map

import "sync"

// SafeMap is a map that may be used from multiple goroutines
type SafeMap[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]V
}

// NewSafeMap creates an empty SafeMap
func NewSafeMap[K comparable, V any]() *SafeMap[K, V] {
	return &SafeMap[K, V]{m: make(map[K]V)}
}

// Load returns the value stored for key
func (s *SafeMap[K, V]) Load(key K) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok
}

// Store sets the value for key
func (s *SafeMap[K, V]) Store(key K, value V) {
	s.mu.Lock()
	s.m[key] = value
	s.mu.Unlock()
}

// Delete removes key
func (s *SafeMap[K, V]) Delete(key K) {
	s.mu.Lock()
	delete(s.m, key)
	s.mu.Unlock()
}

// Clear removes every entry
func (s *SafeMap[K, V]) Clear() {
	s.mu.Lock()
	s.m = make(map[K]V)
	s.mu.Unlock()
}

// Len returns the number of entries
func (s *SafeMap[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
