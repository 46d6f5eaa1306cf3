package testutil

import (
	"sync"
	"time"
)

// SteppingClock is a thread-safe fake wall clock for tests.
//
// Every call to Now returns the current instant and then advances it by
// Step, so consecutive report names differ and golden output stays stable.
type SteppingClock struct {
	mu    sync.Mutex
	start time.Time
	now   time.Time
	step  time.Duration
}

// NewSteppingClock creates a clock starting at start and advancing by step
// per call. A zero step freezes the clock.
func NewSteppingClock(start time.Time, step time.Duration) *SteppingClock {
	return &SteppingClock{start: start, now: start, step: step}
}

// Epoch is the instant fixtures start from: 2025-01-02 03:04:05 UTC.
var Epoch = time.Date(2025, time.January, 2, 3, 4, 5, 0, time.UTC)

// Now returns the current instant and advances the clock.
func (c *SteppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// Peek returns the current instant without advancing.
func (c *SteppingClock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Reset returns the clock to its start instant.
func (c *SteppingClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.start
}
