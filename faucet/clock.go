package faucet

import "time"

// =============================================================================
// CLOCK - Injected time source
// =============================================================================
// The day index is the quota-reset clock: wall-clock seconds divided by
// seconds-per-day. Time is injected so the rollover logic is deterministic
// under simulated clocks in tests.

// SecondsPerDay is the length of a quota day.
const SecondsPerDay = 86_400

// DayIndex identifies a quota day. Day 0 began at the Unix epoch.
type DayIndex int64

// Clock supplies the current time to the engine.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// DayOf returns the day index containing t.
func DayOf(t time.Time) DayIndex {
	return DayIndex(t.Unix() / SecondsPerDay)
}
