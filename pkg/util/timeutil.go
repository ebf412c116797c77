package util

import "time"

// NowUTC is the default clock of the engine and the tracking service. Tests
// swap in fixed clocks instead.
func NowUTC() time.Time {
	return time.Now().UTC()
}
