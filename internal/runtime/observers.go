package runtime

import (
	"sync"

	"github.com/aretw0/flowtalk/pkg/domain"
)

// observerSet is owned by the root conversation and shared by reference with
// every nested conversation, so all of them fan out to the same subscribers.
type observerSet struct {
	mu   sync.Mutex
	list []domain.Observer
}

// add registers o once. It reports whether o was new.
func (s *observerSet) add(o domain.Observer) bool {
	if o == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.list {
		if existing == o {
			return false
		}
	}
	s.list = append(s.list, o)
	return true
}

// remove deregisters o. It reports whether o was present.
func (s *observerSet) remove(o domain.Observer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.list {
		if existing == o {
			s.list = append(s.list[:i:i], s.list[i+1:]...)
			return true
		}
	}
	return false
}

func (s *observerSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.list)
}

// notify calls every observer in subscription order. The list is snapshotted
// first so an observer may unsubscribe itself while being notified.
func (s *observerSet) notify(action string, step *domain.Step) {
	s.mu.Lock()
	snapshot := make([]domain.Observer, len(s.list))
	copy(snapshot, s.list)
	s.mu.Unlock()

	for _, o := range snapshot {
		o.Notify(action, step)
	}
}
