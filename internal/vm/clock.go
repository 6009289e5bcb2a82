package vm

import "sync/atomic"

// Clock is the monotonic step counter for a run.
//
// Every executed instruction is stamped with a strictly increasing seq
// number from this clock. This ensures:
// - Deterministic ordering of journaled steps
// - A recorded run reads back in exactly the order it executed
//
// Thread-safety: Clock is safe for concurrent reads (atomic
// operations), though the machine's synchronous loop means only one
// goroutine calls Next().
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
