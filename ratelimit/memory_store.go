package ratelimit

import (
	"context"
	"sync"
)

// MemoryStateStore keeps bucket state in process memory. Suitable for a
// single instance; multi-instance deployments should back the policy with
// a shared store so throttle windows are honored fleet-wide.
type MemoryStateStore struct {
	mu     sync.Mutex
	states map[Key]State
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: map[Key]State{}}
}

func (s *MemoryStateStore) Get(_ context.Context, key Key) (State, error) {
	if s == nil {
		return State{}, ErrStateNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[normalizeKey(key)]
	if !ok {
		return State{}, ErrStateNotFound
	}
	return state, nil
}

func (s *MemoryStateStore) Upsert(_ context.Context, state State) error {
	if s == nil {
		return ErrStateNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	state.Key = normalizeKey(state.Key)
	s.states[state.Key] = state
	return nil
}

var _ StateStore = (*MemoryStateStore)(nil)
