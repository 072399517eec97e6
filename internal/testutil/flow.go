package testutil

import (
	"fmt"
	"sync"
)

// ReplicaIDGenerator hands out predictable replica ids: prefix-1,
// prefix-2, ... It implements engine.IDGenerator, so a scenario run twice
// produces byte-identical updates.
//
// Thread-safety: safe for concurrent use.
type ReplicaIDGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewReplicaIDGenerator creates a generator. An empty prefix means "replica".
func NewReplicaIDGenerator(prefix string) *ReplicaIDGenerator {
	if prefix == "" {
		prefix = "replica"
	}
	return &ReplicaIDGenerator{prefix: prefix}
}

// Generate returns the next replica id.
func (g *ReplicaIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
