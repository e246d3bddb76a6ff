// Package cadence decides when a topic is due to run again.
package cadence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"trender/internal/types"
)

// Store persists the last successful run time of each topic.
type Store interface {
	LastRun(ctx context.Context, topicKey string) (time.Time, bool, error)
	SetLastRun(ctx context.Context, topicKey string, at time.Time) error
}

type State int

const (
	StateDisabled State = iota
	StateNeverRun
	StateDue
	StateCoolingDown
)

func (s State) String() string {
	switch s {
	case StateDisabled:
		return "disabled"
	case StateNeverRun:
		return "never_run"
	case StateDue:
		return "due"
	case StateCoolingDown:
		return "cooling_down"
	}
	return "unknown"
}

func (s State) Due() bool {
	return s == StateNeverRun || s == StateDue
}

type Manager struct {
	store Store
}

func NewManager(store Store) *Manager {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Manager{store: store}
}

func (m *Manager) State(ctx context.Context, topic types.TopicConfig, now time.Time) (State, error) {
	if !topic.Enabled {
		return StateDisabled, nil
	}

	last, ok, err := m.store.LastRun(ctx, topic.TopicKey)
	if err != nil {
		return StateDisabled, fmt.Errorf("failed to read last run of %s: %w", topic.TopicKey, err)
	}
	if !ok {
		return StateNeverRun, nil
	}
	if now.Sub(last) >= topic.Cadence() {
		return StateDue, nil
	}
	return StateCoolingDown, nil
}

func (m *Manager) IsDue(ctx context.Context, topic types.TopicConfig, now time.Time) (bool, error) {
	state, err := m.State(ctx, topic, now)
	if err != nil {
		return false, err
	}
	return state.Due(), nil
}

// MarkRun records now as the topic's last run. Disabled topics are left alone.
func (m *Manager) MarkRun(ctx context.Context, topic types.TopicConfig, now time.Time) error {
	if !topic.Enabled {
		return nil
	}
	if err := m.store.SetLastRun(ctx, topic.TopicKey, now); err != nil {
		return fmt.Errorf("failed to mark run of %s: %w", topic.TopicKey, err)
	}
	return nil
}

// NextRun returns when the topic becomes due; the zero time means now.
func (m *Manager) NextRun(ctx context.Context, topic types.TopicConfig) (time.Time, error) {
	last, ok, err := m.store.LastRun(ctx, topic.TopicKey)
	if err != nil || !ok {
		return time.Time{}, err
	}
	return last.Add(topic.Cadence()), nil
}

type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]time.Time)}
}

func (s *MemoryStore) LastRun(ctx context.Context, topicKey string) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	at, ok := s.runs[topicKey]
	return at, ok, nil
}

func (s *MemoryStore) SetLastRun(ctx context.Context, topicKey string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[topicKey] = at
	return nil
}
