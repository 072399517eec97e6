package testutil

import (
	"fmt"
	"sync"
)

// TimestampClock hands out block timestamps for tests.
//
// Timestamps are compared as strings when ordering siblings, so every value
// has the same width: Next on a clock started at base returns base+1, base+2,
// ... zero-padded to 13 digits, the width of a Unix-millisecond timestamp.
//
// Thread-safety: all methods are safe for concurrent use.
type TimestampClock struct {
	mu   sync.Mutex
	base int64
	seq  int64
}

// NewTimestampClock creates a clock whose first timestamp is base+1.
func NewTimestampClock(base int64) *TimestampClock {
	return &TimestampClock{base: base}
}

// Next advances the clock and returns the new timestamp.
func (c *TimestampClock) Next() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return format(c.base + c.seq)
}

func format(ms int64) string {
	return fmt.Sprintf("%013d", ms)
}
