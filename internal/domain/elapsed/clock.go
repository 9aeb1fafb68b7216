package elapsed

import "time"

// Clock supplies the current instant. Implementations must report wall-clock
// time so that a suspended process catches up on resume instead of drifting.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the operating system's wall clock.
type SystemClock struct{}

// Now returns the current time with the monotonic reading stripped.
func (SystemClock) Now() time.Time {
	return time.Now().Round(0)
}

// FixedClock always reports the same instant. Used by the elapsed command and tests.
type FixedClock time.Time

func (c FixedClock) Now() time.Time {
	return time.Time(c)
}
