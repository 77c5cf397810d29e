package session_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/flowtalk/internal/testutils"
	"github.com/aretw0/flowtalk/pkg/adapters/memory"
	"github.com/aretw0/flowtalk/pkg/adapters/redis"
	"github.com/aretw0/flowtalk/pkg/domain"
	"github.com/aretw0/flowtalk/pkg/modules"
	"github.com/aretw0/flowtalk/pkg/schema"
	"github.com/aretw0/flowtalk/pkg/session"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const greeting = `
vertices:
  hello:
    kind: entry
    text: Hello!
    props:
      module: message
      auto: true
  name:
    text: What is your name?
    props:
      module: prompt
  bye:
    text: Bye ${name}.
    props:
      module: message
edges:
  - start: hello
    end: name
  - start: name
    end: bye
`

func newStore(t *testing.T) *memory.Store {
	t.Helper()
	flow, err := schema.Decode([]byte(greeting), schema.FormatYAML)
	require.NoError(t, err)
	return memory.NewStore(map[string]*domain.Flow{"greeting": flow})
}

type lifecycle struct {
	mu     sync.Mutex
	opened []string
	closed []string
}

func (l *lifecycle) Opened(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.opened = append(l.opened, id)
}

func (l *lifecycle) Closed(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = append(l.closed, id)
}

func TestManager_Lifecycle(t *testing.T) {
	ctx := context.Background()
	rec := &testutils.Recorder{}
	life := &lifecycle{}
	var observed []string
	mgr := session.NewManager(newStore(t),
		session.WithObserver(rec),
		session.WithLifecycle(life),
		session.WithSessionObserver(func(id string) domain.Observer {
			observed = append(observed, id)
			return domain.NewObserver(func(string, *domain.Step) {})
		}),
	)

	s, err := mgr.Create(ctx, "greeting")
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "greeting", s.Flow)
	assert.Equal(t, "hello", s.Conversation.Current().ID)
	assert.Equal(t, []string{s.ID}, observed)
	assert.Equal(t, testutils.Event{Action: domain.ActionStart, StepID: "hello"}, rec.Last())

	got, err := mgr.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.Equal(t, []string{s.ID}, mgr.List())

	err = mgr.Do(ctx, s.ID, func(ctx context.Context, s *session.Session) error {
		step, err := s.Conversation.Continue(ctx, "")
		if err != nil {
			return err
		}
		assert.Equal(t, "name", domain.StepID(step))
		return nil
	})
	require.NoError(t, err)

	err = mgr.Do(ctx, s.ID, func(ctx context.Context, s *session.Session) error {
		if err := modules.Submit(ctx, s.Conversation.Active(ctx), "Ada"); err != nil {
			return err
		}
		_, err := s.Conversation.Continue(ctx, "")
		return err
	})
	require.NoError(t, err)
	answer, _ := s.Board.Get("name")
	assert.Equal(t, "Ada", answer)
	assert.Equal(t, "bye", s.Conversation.Current().ID)

	require.NoError(t, mgr.Delete(ctx, s.ID))
	assert.Empty(t, mgr.List())
	assert.Equal(t, []string{s.ID}, life.opened)
	assert.Equal(t, []string{s.ID}, life.closed)

	t.Run("Deleted Session Is Gone", func(t *testing.T) {
		_, err := mgr.Get(s.ID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
		assert.ErrorIs(t, mgr.Delete(ctx, s.ID), domain.ErrSessionNotFound)
		err = mgr.Do(ctx, s.ID, func(context.Context, *session.Session) error { return nil })
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})
}

func TestManager_UnknownFlow(t *testing.T) {
	mgr := session.NewManager(newStore(t))
	_, err := mgr.Create(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrFlowNotFound)
	assert.Empty(t, mgr.List())
}

func TestManager_SessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	n := 0
	mgr := session.NewManager(newStore(t), session.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("s%d", n)
	}))

	a, err := mgr.Create(ctx, "greeting")
	require.NoError(t, err)
	b, err := mgr.Create(ctx, "greeting")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, mgr.List())

	a.Board.Set("name", "Ada")
	_, ok := b.Board.Get("name")
	assert.False(t, ok, "each session owns its board")
}

func TestManager_SerializesCalls(t *testing.T) {
	ctx := context.Background()
	mgr := session.NewManager(newStore(t))
	s, err := mgr.Create(ctx, "greeting")
	require.NoError(t, err)

	const workers = 50
	inside := 0
	counter := 0
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := mgr.Do(ctx, s.ID, func(context.Context, *session.Session) error {
				inside++
				defer func() { inside-- }()
				if inside != 1 {
					return fmt.Errorf("%d callers inside the session", inside)
				}
				counter++
				time.Sleep(time.Millisecond)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, workers, counter)
}

func TestManager_DistributedLock(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	locker := redis.NewLocker(client, "flowtalk:")

	mgr := session.NewManager(newStore(t),
		session.WithLocker(locker),
		session.WithLockTTL(time.Second),
		session.WithIDGenerator(func() string { return "fixed" }),
	)
	s, err := mgr.Create(ctx, "greeting")
	require.NoError(t, err)

	err = mgr.Do(ctx, s.ID, func(context.Context, *session.Session) error {
		assert.True(t, mr.Exists("flowtalk:lock:fixed"), "lock is held during the call")
		return nil
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists("flowtalk:lock:fixed"), "lock is released afterwards")

	t.Run("Held Elsewhere", func(t *testing.T) {
		unlock, err := locker.Lock(ctx, "fixed", time.Minute)
		require.NoError(t, err)
		defer func() { _ = unlock(ctx) }()

		short, cancel := context.WithTimeout(ctx, 120*time.Millisecond)
		defer cancel()
		err = mgr.Do(short, s.ID, func(context.Context, *session.Session) error { return nil })
		assert.ErrorIs(t, err, redis.ErrLockAcquire)
	})
}
