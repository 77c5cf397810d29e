package session

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/flowtalk/internal/logging"
	"github.com/aretw0/flowtalk/internal/runtime"
	"github.com/aretw0/flowtalk/pkg/domain"
	"github.com/aretw0/flowtalk/pkg/modules"
	"github.com/aretw0/flowtalk/pkg/ports"
	"github.com/google/uuid"
)

// DefaultLockTTL bounds how long a crashed replica can hold a session.
const DefaultLockTTL = 30 * time.Second

// Session is one live conversation.
type Session struct {
	ID           string
	Flow         string
	Board        *modules.Board
	Conversation *runtime.Conversation
	CreatedAt    time.Time
}

// Lifecycle is told when sessions open and close.
type Lifecycle interface {
	Opened(id string)
	Closed(id string)
}

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates session access, ensuring safe concurrent operations.
// It uses reference counting to garbage collect unused locks.
type Manager struct {
	loader ports.FlowLoader

	mu       sync.Mutex
	sessions map[string]*Session
	locks    map[string]*lockEntry

	locker    ports.DistributedLocker
	lockTTL   time.Duration
	logger    *slog.Logger
	observers []func(id string) domain.Observer
	lifecycle Lifecycle
	runtime   []runtime.Option
	eval      *modules.Evaluator
	now       func() time.Time
	newID     func() string
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Manager and its conversations.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithSessionObserver subscribes an observer built for each new session.
func WithSessionObserver(fn func(id string) domain.Observer) Option {
	return func(m *Manager) {
		m.observers = append(m.observers, fn)
	}
}

// WithObserver subscribes o to every session.
func WithObserver(o domain.Observer) Option {
	return WithSessionObserver(func(string) domain.Observer { return o })
}

// WithLifecycle reports session creation and deletion to l.
func WithLifecycle(l Lifecycle) Option {
	return func(m *Manager) {
		m.lifecycle = l
	}
}

// WithRuntimeOptions passes extra options to every conversation.
func WithRuntimeOptions(opts ...runtime.Option) Option {
	return func(m *Manager) {
		m.runtime = append(m.runtime, opts...)
	}
}

// WithIDGenerator replaces the uuid session ids.
func WithIDGenerator(fn func() string) Option {
	return func(m *Manager) {
		m.newID = fn
	}
}

// NewManager creates a session manager loading flows (and subroutine
// sources) through loader.
func NewManager(loader ports.FlowLoader, opts ...Option) *Manager {
	m := &Manager{
		loader:   loader,
		sessions: make(map[string]*Session),
		locks:    make(map[string]*lockEntry),
		lockTTL:  DefaultLockTTL,
		logger:   logging.NewNop(),
		eval:     modules.NewEvaluator(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create loads the named flow and starts a conversation over it.
// A flow without a ready start still yields a session; the start error
// surfaces from the conversation's navigation calls.
func (m *Manager) Create(ctx context.Context, flowName string) (*Session, error) {
	flow, err := m.loader.Load(ctx, flowName)
	if err != nil {
		return nil, fmt.Errorf("load flow %q: %w", flowName, err)
	}

	id := m.newID()
	board := modules.NewBoard()
	reg := modules.Builtins(board)

	opts := []runtime.Option{
		runtime.WithModuleResolver(reg),
		runtime.WithLoader(m.loader),
		runtime.WithLogger(m.logger.With("session_id", id)),
	}
	for _, fn := range m.observers {
		opts = append(opts, runtime.WithObserver(fn(id)))
	}
	opts = append(opts, m.runtime...)

	s := &Session{ID: id, Flow: flowName, Board: board, CreatedAt: m.now()}
	err = m.WithLock(ctx, id, func(ctx context.Context) error {
		conv, err := runtime.New(ctx, flow, opts...)
		if err != nil {
			return err
		}
		s.Conversation = conv
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	if m.lifecycle != nil {
		m.lifecycle.Opened(id)
	}
	m.logger.InfoContext(ctx, "session created", "session_id", id, "flow", flowName)
	return s, nil
}

// Get returns a session without locking it. Use Do to navigate.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	return s, nil
}

// Do runs fn with exclusive access to the session.
func (m *Manager) Do(ctx context.Context, id string, fn func(ctx context.Context, s *Session) error) error {
	return m.WithLock(ctx, id, func(ctx context.Context) error {
		s, err := m.Get(id)
		if err != nil {
			return err
		}
		return fn(ctx, s)
	})
}

// Delete drops the session. Deleting an unknown session is an error.
func (m *Manager) Delete(ctx context.Context, id string) error {
	return m.WithLock(ctx, id, func(ctx context.Context) error {
		m.mu.Lock()
		_, ok := m.sessions[id]
		delete(m.sessions, id)
		m.mu.Unlock()
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
		}
		if m.lifecycle != nil {
			m.lifecycle.Closed(id)
		}
		m.logger.InfoContext(ctx, "session deleted", "session_id", id)
		return nil
	})
}

// List returns the live session ids in lexical order.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller must lock entry.mu, and call release(id) after unlocking.
func (m *Manager) acquire(id string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.locks[id]
	if !ok {
		entry = &lockEntry{}
		m.locks[id] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry at zero.
func (m *Manager) release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.locks[id]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, id)
	}
}

// WithLock executes fn while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, id string, fn func(context.Context) error) error {
	entry := m.acquire(id)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(id)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, id, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("failed to release distributed lock (will expire via TTL)",
					"session_id", id,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// lockCount is the number of live lock entries.
func (m *Manager) lockCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
