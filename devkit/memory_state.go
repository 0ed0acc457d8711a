package devkit

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-rewards/core"
)

// MemoryStringState stands in for the host's persisted key/value state.
type MemoryStringState struct {
	mu      sync.Mutex
	entries map[string]string
}

func NewMemoryStringState() *MemoryStringState {
	return &MemoryStringState{entries: map[string]string{}}
}

func (s *MemoryStringState) GetString(_ context.Context, key string) (string, error) {
	if s == nil {
		return "", fmt.Errorf("devkit: memory state is nil")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("devkit: state key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[key], nil
}

func (s *MemoryStringState) SetString(_ context.Context, key string, value string) error {
	if s == nil {
		return fmt.Errorf("devkit: memory state is nil")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("devkit: state key is required")
	}
	s.mu.Lock()
	s.entries[key] = value
	s.mu.Unlock()
	return nil
}

var _ core.StringStateStore = (*MemoryStringState)(nil)
