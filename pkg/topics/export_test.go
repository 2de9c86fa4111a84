package topics

import "time"

// SetClock replaces the clock used for timestamps.
func (c *Cache) SetClock(clock func() time.Time) { c.clock = clock }

func (g *Generator) SetClock(clock func() time.Time) { g.clock = clock }
