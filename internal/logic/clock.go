package logic

// TicksPerDay is the default rollover count: one tick per minute.
const TicksPerDay = 1440

// CycleClock counts ticks since the last day boundary.
// Not safe for concurrent use; the scheduler owns it.
type CycleClock struct {
	perDay    int
	ticks     int
	rollovers uint64
}

// NewCycleClock creates a clock that rolls over every perDay ticks.
// perDay values below 1 are treated as 1.
func NewCycleClock(perDay int) *CycleClock {
	if perDay < 1 {
		perDay = 1
	}
	return &CycleClock{perDay: perDay}
}

// Advance counts one tick. It returns true exactly when the count reaches
// the rollover value, in which case the count is reset to zero.
func (c *CycleClock) Advance() bool {
	c.ticks++
	if c.ticks < c.perDay {
		return false
	}
	c.ticks = 0
	c.rollovers++
	return true
}

// Ticks returns the ticks elapsed since the last rollover.
func (c *CycleClock) Ticks() int {
	return c.ticks
}

// PerDay returns the rollover count.
func (c *CycleClock) PerDay() int {
	return c.perDay
}

// Rollovers returns the number of rollovers since creation.
func (c *CycleClock) Rollovers() uint64 {
	return c.rollovers
}
