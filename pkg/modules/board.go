package modules

import (
	"maps"
	"sync"
)

// Board holds the answers collected during a conversation, keyed by vertex id.
type Board struct {
	mu      sync.RWMutex
	answers map[string]any
}

// NewBoard returns an empty board.
func NewBoard() *Board {
	return &Board{answers: make(map[string]any)}
}

func (b *Board) Set(id string, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.answers[id] = value
}

func (b *Board) Get(id string) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.answers[id]
	return v, ok
}

func (b *Board) Delete(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.answers, id)
}

// Snapshot returns a copy of all answers.
func (b *Board) Snapshot() map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return maps.Clone(b.answers)
}
