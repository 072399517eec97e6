package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReplicaIDGenerator_Sequence(t *testing.T) {
	gen := NewReplicaIDGenerator("site")

	assert.Equal(t, "site-1", gen.Generate())
	assert.Equal(t, "site-2", gen.Generate())
	assert.Equal(t, "site-3", gen.Generate())
}

func TestReplicaIDGenerator_DefaultPrefix(t *testing.T) {
	gen := NewReplicaIDGenerator("")
	assert.Equal(t, "replica-1", gen.Generate())
}

func TestReplicaIDGenerator_ThreadSafe(t *testing.T) {
	gen := NewReplicaIDGenerator("r")

	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				id := gen.Generate()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 1000)
}
