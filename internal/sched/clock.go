package sched

import "time"

// Clock supplies loop time in milliseconds. Loop time starts near zero
// at process start and only moves forward; it is the timebase for every
// interval decision the daemon makes, including the wire heartbeat.
type Clock interface {
	NowMS() uint64
}

// WallClock derives loop time from the monotonic wall clock.
type WallClock struct {
	start time.Time
}

// NewWallClock starts counting from now.
func NewWallClock() *WallClock {
	return &WallClock{start: time.Now()}
}

// NowMS returns milliseconds since the clock was created.
func (c *WallClock) NowMS() uint64 {
	return uint64(time.Since(c.start).Milliseconds())
}

// ManualClock is a hand-driven Clock for deterministic tests.
type ManualClock struct {
	now uint64
}

// NewManualClock starts at ms.
func NewManualClock(ms uint64) *ManualClock {
	return &ManualClock{now: ms}
}

// NowMS returns the current hand-set time.
func (c *ManualClock) NowMS() uint64 {
	return c.now
}

// Advance moves the clock forward by ms.
func (c *ManualClock) Advance(ms uint64) {
	c.now += ms
}
