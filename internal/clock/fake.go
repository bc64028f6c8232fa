package clock

import "time"

// FakeClock is a Clock whose current time only moves when the test tells it
// to. Sweeps that window on created_at can be pushed past their cutoffs
// without sleeping.
type FakeClock struct {
	now time.Time
}

func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start.UTC()}
}

func (c *FakeClock) Now() time.Time {
	return c.now
}

// Advance moves the clock forward (or, with a negative d, backward).
func (c *FakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}
