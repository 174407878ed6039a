package client

import (
	"sync"
)

// State is the panel state snapshot handed to renderers.
type State struct {
	Cards   []Card
	Credits int
	HasMore bool
}

// Store holds panel state behind a single mutation entry point.
// All writes go through Update so card mutations and credit deltas
// stay consistent with each other.
type Store struct {
	mu        sync.RWMutex
	state     State
	listeners []func(State)
}

func NewStore() *Store {
	return &Store{}
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyState(s.state)
}

// Update applies a mutation atomically and notifies listeners with the
// resulting snapshot.
func (s *Store) Update(mutate func(*State)) {
	s.mu.Lock()
	mutate(&s.state)
	snapshot := copyState(s.state)
	listeners := make([]func(State), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
}

// Subscribe registers a listener invoked after every update.
func (s *Store) Subscribe(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Credits returns the current local credit balance.
func (s *Store) Credits() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Credits
}

// ActiveSessions returns session ids of cards that still need polling.
func (s *Store) ActiveSessions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for i := range s.state.Cards {
		c := &s.state.Cards[i]
		if c.SessionID != "" && !c.IsTerminal() {
			ids = append(ids, c.SessionID)
		}
	}
	return ids
}

func copyState(st State) State {
	out := State{
		Cards:   make([]Card, len(st.Cards)),
		Credits: st.Credits,
		HasMore: st.HasMore,
	}
	copy(out.Cards, st.Cards)

	for i := range out.Cards {
		if len(st.Cards[i].Progress) > 0 {
			out.Cards[i].Progress = append([]int(nil), st.Cards[i].Progress...)
		}
		if len(st.Cards[i].URLs) > 0 {
			out.Cards[i].URLs = append([]string(nil), st.Cards[i].URLs...)
		}
	}
	return out
}
