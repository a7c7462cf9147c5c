package testutil

import "sync"

// StepClock provides a thread-safe deterministic wall clock for tests.
//
// Every call to NowMillis returns the previous value plus Step, starting at
// Start+Step. Entries created in sequence therefore get strictly increasing,
// predictable CreatedAt values.
//
// Implements store.Clock.
type StepClock struct {
	mu   sync.Mutex
	now  int64
	step int64
}

// NewStepClock creates a clock whose first reading is start+step.
func NewStepClock(start, step int64) *StepClock {
	return &StepClock{now: start, step: step}
}

// NowMillis advances the clock and returns the new reading.
func (c *StepClock) NowMillis() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += c.step
	return c.now
}

// Current returns the last reading without advancing.
func (c *StepClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Reset rewinds the clock to start.
func (c *StepClock) Reset(start int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = start
}
