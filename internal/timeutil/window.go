// Package timeutil is the single source of truth for "now" and window
// arithmetic. Every time-sensitive decision in the service is computed from
// UTC instants; a configurable local time zone matters only when calendar-day
// boundaries are reported to humans.
package timeutil

import "time"

// Clock supplies the current instant. Only SystemClock touches the wall
// clock; everything downstream takes explicit instants and stays
// deterministic under test.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the system clock in UTC.
type SystemClock struct{}

// Now returns the current instant in UTC.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// FixedClock returns a constant instant. Test helper.
type FixedClock struct {
	Instant time.Time
}

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time {
	return c.Instant.UTC()
}

// Window is a closed-open interval [Start, End). A value v falls inside when
// v >= Start && v < End.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether the instant falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Duration returns the window length.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// RollingWindow returns the trailing window of the given number of hours
// ending at now. The upper bound is now itself; comparisons against the
// window use >= start and < end.
func RollingWindow(now time.Time, hours int) Window {
	now = now.UTC()
	return Window{
		Start: now.Add(-time.Duration(hours) * time.Hour),
		End:   now,
	}
}

// LocalDayBounds returns the calendar-day bounds containing now in the given
// zone, converted back to UTC instants. Used for day-oriented reporting only;
// the rolling-window guard never consults local time.
func LocalDayBounds(now time.Time, loc *time.Location) Window {
	local := now.In(loc)
	startLocal := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	endLocal := startLocal.AddDate(0, 0, 1)
	return Window{
		Start: startLocal.UTC(),
		End:   endLocal.UTC(),
	}
}

// DayBucketUTC truncates an instant to its UTC calendar day start. This is
// the bucket key storage uses for its one-row-per-day uniqueness backstop; it
// deliberately differs from the rolling-window guard and the two can disagree
// near midnight UTC.
func DayBucketUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
