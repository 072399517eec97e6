package substrate

import "sync/atomic"

// Clock is a Lamport clock stamping every operation a replica produces.
//
// Every value it hands out is strictly greater than every clock value the
// replica has produced or observed, so an operation's clock is always greater
// than the clocks of everything it causally depends on.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
// The Doc's single-writer design means only one goroutine typically calls Next.
type Clock struct {
	seq atomic.Uint64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next clock value.
func (c *Clock) Next() uint64 {
	return c.seq.Add(1)
}

// Reserve hands out n consecutive clock values and returns the first.
// Text insert runs use one value per UTF-16 unit.
func (c *Clock) Reserve(n int) uint64 {
	if n < 1 {
		n = 1
	}
	return c.seq.Add(uint64(n)) - uint64(n) + 1
}

// Observe advances the clock to at least seen.
func (c *Clock) Observe(seen uint64) {
	for {
		cur := c.seq.Load()
		if seen <= cur || c.seq.CompareAndSwap(cur, seen) {
			return
		}
	}
}

// Current returns the current value without incrementing.
func (c *Clock) Current() uint64 {
	return c.seq.Load()
}

// Reset sets the clock back to a saved value. Used on transaction rollback.
func (c *Clock) Reset(v uint64) {
	c.seq.Store(v)
}
