package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/flowtalk/pkg/domain"
)

// Store implements ports.FlowStore in memory.
// Safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	flows map[string]*domain.Flow
}

// NewStore creates a store seeded with flows.
func NewStore(flows map[string]*domain.Flow) *Store {
	s := &Store{flows: make(map[string]*domain.Flow, len(flows))}
	for name, f := range flows {
		s.flows[name] = f
	}
	return s
}

// Load returns the flow saved under name. Flows are shared, not copied:
// the engine treats them as read-only.
func (s *Store) Load(_ context.Context, name string) (*domain.Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.flows[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrFlowNotFound, name)
	}
	return f, nil
}

// Save stores flow under name, replacing any previous one.
func (s *Store) Save(_ context.Context, name string, flow *domain.Flow) error {
	if name == "" {
		return fmt.Errorf("flow name cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flows[name] = flow
	return nil
}

// List returns the stored names in lexical order.
func (s *Store) List(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.flows))
	for name := range s.flows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes name.
func (s *Store) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.flows, name)
	return nil
}
