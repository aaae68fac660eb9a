package clock

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Timer is a handle to a scheduled callback.
type Timer = clockwork.Timer

// Clock abstracts time operations for testability.
type Clock interface {
	Now() time.Time
	// AfterFunc runs f in its own goroutine once d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer
}

// Real is a Clock backed by the system clock.
type Real struct{}

// Now returns the current time.
func (Real) Now() time.Time { return time.Now() }

// AfterFunc schedules f on the system clock.
func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return clockwork.NewRealClock().AfterFunc(d, f)
}

// Mock is a Clock whose time only moves when Advance is called.
type Mock struct {
	*clockwork.FakeClock
}

// NewMock returns a Mock clock starting at t.
func NewMock(t time.Time) Mock {
	return Mock{FakeClock: clockwork.NewFakeClockAt(t)}
}
