package pricing

import "time"

// Clock returns the current time. Components take a Clock instead of calling
// time.Now so tests can pin time.
type Clock func() time.Time

// SystemClock reports the wall clock in UTC.
func SystemClock() time.Time {
	return time.Now().UTC()
}

// FixedClock always reports t.
func FixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}
