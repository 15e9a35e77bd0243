package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs hands out request ids "req-1", "req-2", ... so that
// response envelopes and problem bodies are stable in tests.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SequentialIDs struct {
	mu  sync.Mutex
	seq int64
}

// NewSequentialIDs creates a generator whose first id is "req-1".
func NewSequentialIDs() *SequentialIDs {
	return &SequentialIDs{}
}

// NewID returns the next id.
func (g *SequentialIDs) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("req-%d", g.seq)
}

// Issued returns how many ids were handed out.
func (g *SequentialIDs) Issued() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seq
}

// Reset starts over at "req-1".
func (g *SequentialIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq = 0
}
