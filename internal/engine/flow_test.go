package engine

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDv7Generator_ValidFormat(t *testing.T) {
	id := UUIDv7Generator{}.Generate()

	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
	assert.Regexp(t, `^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`, id)
}

func TestUUIDv7Generator_UniqueAcrossGoroutines(t *testing.T) {
	gen := UUIDv7Generator{}
	const goroutines = 100

	ids := make(chan string, goroutines)
	var wg sync.WaitGroup
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- gen.Generate()
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		require.False(t, seen[id], "duplicate id generated")
		seen[id] = true
	}
	assert.Len(t, seen, goroutines)
}

func TestFixedGenerator_Sequential(t *testing.T) {
	gen := NewFixedGenerator("replica-a", "replica-b")
	assert.Equal(t, "replica-a", gen.Generate())
	assert.Equal(t, "replica-b", gen.Generate())
	assert.PanicsWithValue(t, "FixedGenerator: all ids exhausted", func() { gen.Generate() })
}

func TestNew_DefaultReplicaIsUUIDv7(t *testing.T) {
	e := New("doc")
	parsed, err := uuid.Parse(e.ReplicaID())
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestNew_WithIDGenerator(t *testing.T) {
	gen := NewFixedGenerator("r1", "r2")
	assert.Equal(t, "r1", New("doc", WithIDGenerator(gen)).ReplicaID())
	assert.Equal(t, "r2", New("doc", WithIDGenerator(gen)).ReplicaID())
	assert.Equal(t, "fixed", New("doc", WithIDGenerator(gen), WithReplicaID("fixed")).ReplicaID())
}
