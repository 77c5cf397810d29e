package runtime

import (
	"context"
	"errors"
	"sync"

	"github.com/aretw0/flowtalk/pkg/domain"
)

// continuation is the walk over the graph. It is driven only through advance
// and suspends solely at hook queries (IsComplete, IsReady) and resolution.
// State is committed after those queries return, so readers never see a
// half-applied move. Once exhausted it stays exhausted.
type continuation struct {
	mu          sync.RWMutex
	current     *domain.Step
	breadcrumbs []*domain.Step
	exhausted   bool

	resolve func(ctx context.Context, id string) (*domain.Step, error)
}

func newContinuation(start *domain.Step, resolve func(context.Context, string) (*domain.Step, error)) *continuation {
	return &continuation{
		current: start,
		resolve: resolve,
	}
}

// advance moves the walk one step.
//
// Without a target, an incomplete current step yields itself (no movement).
// A complete one is pushed to the breadcrumbs and the first outgoing
// candidate, in edge order, whose IsReady is true becomes current; if none
// is, the walk is exhausted and advance yields nil.
//
// With a target, the current step is pushed and the target becomes current
// regardless of edges. A target absent from the graph moves nothing and
// yields nil without exhausting the walk.
func (m *continuation) advance(ctx context.Context, target string) (*domain.Step, error) {
	from, exhausted := m.position()
	if exhausted || from == nil {
		m.finish()
		return nil, nil
	}

	if target != "" {
		next, err := m.resolve(ctx, target)
		if errors.Is(err, domain.ErrUnknownVertex) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		m.commit(from, next)
		return next, nil
	}

	complete, err := from.Hook.IsComplete(ctx, false)
	if err != nil {
		return nil, err
	}
	if !complete {
		return from, nil
	}

	next, err := m.firstReady(ctx, from.Edges.Outgoing)
	if err != nil {
		return nil, err
	}
	m.commit(from, next)
	return next, nil
}

// firstReady evaluates candidates strictly in sequence: IsReady may have side
// effects and declaration order decides ties.
func (m *continuation) firstReady(ctx context.Context, edges []domain.Edge) (*domain.Step, error) {
	for _, e := range edges {
		candidate, err := m.resolve(ctx, e.End)
		if errors.Is(err, domain.ErrUnknownVertex) {
			continue
		}
		if err != nil {
			return nil, err
		}

		ready, err := candidate.Hook.IsReady(ctx)
		if err != nil {
			return nil, err
		}
		if ready {
			return candidate, nil
		}
	}
	return nil, nil
}

func (m *continuation) commit(from, next *domain.Step) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.breadcrumbs = append(m.breadcrumbs, from)
	m.current = next
	if next == nil {
		m.exhausted = true
	}
}

func (m *continuation) finish() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exhausted = true
}

// pop moves the most recent breadcrumb back to current.
func (m *continuation) pop() (*domain.Step, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.breadcrumbs)
	if n == 0 {
		return nil, false
	}
	step := m.breadcrumbs[n-1]
	m.breadcrumbs[n-1] = nil
	m.breadcrumbs = m.breadcrumbs[:n-1]
	m.current = step
	return step, true
}

func (m *continuation) position() (*domain.Step, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current, m.exhausted
}

func (m *continuation) isExhausted() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.exhausted
}

// history returns a copy of the breadcrumbs, oldest first.
func (m *continuation) history() []*domain.Step {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Step, len(m.breadcrumbs))
	copy(out, m.breadcrumbs)
	return out
}
