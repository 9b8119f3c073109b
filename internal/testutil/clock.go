package testutil

import "sync/atomic"

// DeterministicClock is a logical seq source for tests that can be rewound,
// so a scenario run twice journals identical seq values. It satisfies
// journal.Sequencer and is safe for concurrent use.
type DeterministicClock struct {
	seq atomic.Int64
}

// NewDeterministicClock returns a clock whose first Next is 1.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{}
}

func (c *DeterministicClock) Next() int64 {
	return c.seq.Add(1)
}

// Current is the last seq handed out, 0 before the first Next.
func (c *DeterministicClock) Current() int64 {
	return c.seq.Load()
}

// Rewind makes the next call to Next return seq+1.
func (c *DeterministicClock) Rewind(seq int64) {
	c.seq.Store(seq)
}

// Reset is Rewind(0).
func (c *DeterministicClock) Reset() {
	c.Rewind(0)
}
