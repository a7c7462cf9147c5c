package testutil

import (
	"fmt"
	"sync"
)

// SequentialKeyGenerator generates predictable remote document keys:
// "<prefix>-1", "<prefix>-2", ...
//
// Implements replication.KeyGenerator.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequentialKeyGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialKeyGenerator creates a generator. An empty prefix defaults
// to "test-key".
func NewSequentialKeyGenerator(prefix string) *SequentialKeyGenerator {
	if prefix == "" {
		prefix = "test-key"
	}
	return &SequentialKeyGenerator{prefix: prefix}
}

// NewKey returns the next key in sequence.
func (g *SequentialKeyGenerator) NewKey() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
