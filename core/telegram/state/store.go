package state

import "sync"

// Store is an in-memory conversation store. State is lost on restart.
type Store struct {
	mu     sync.RWMutex
	states map[Key]State
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{states: make(map[Key]State)}
}

// Get returns the active state for k.
func (s *Store) Get(k Key) (State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[k]
	return st, ok
}

// Set replaces the state for k; a nil state clears the conversation.
func (s *Store) Set(k Key, st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st == nil {
		delete(s.states, k)
		return
	}
	s.states[k] = st
}

// Clear removes the conversation for k.
func (s *Store) Clear(k Key) {
	s.Set(k, nil)
}

// Len reports the number of active conversations.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}
