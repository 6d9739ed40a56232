// ABOUTME: Turn-scoped key/value store shared across the middleware chain
// ABOUTME: Components use private key types so their entries cannot collide

package turn

import (
	"sync"
)

// State holds values for the duration of one turn. Keys should be values of
// unexported types (as with context.Context keys) so unrelated components
// cannot clobber each other.
type State struct {
	mu     sync.RWMutex
	values map[any]any
}

func newState() *State {
	return &State{values: make(map[any]any)}
}

// Get returns the value for key.
func (s *State) Get(key any) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores value under key, replacing any previous value.
func (s *State) Set(key, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Has reports whether key is present.
func (s *State) Has(key any) bool {
	_, ok := s.Get(key)
	return ok
}

// Delete removes key.
func (s *State) Delete(key any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// Value returns the value stored under key if it has type T.
func Value[T any](s *State, key any) (T, bool) {
	var zero T
	v, ok := s.Get(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}
