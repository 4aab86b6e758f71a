package window

import "time"

// Policy decides whether a job is allowed to execute at a given instant,
// independent of whether its schedule says it is due.
// Implementations must be pure: no mutable state, no blocking.
type Policy interface {
	Allowed(now time.Time) bool
}

// BusinessHours allows execution only during business hours in a fixed
// civil timezone, and never on Sundays. The timezone is part of the policy
// because the hours are defined against a fixed locale, not the host clock.
type BusinessHours struct {
	// Open and Close bound the allowed local hours as [Open, Close).
	Open  int
	Close int

	// Location is the civil timezone the hours are evaluated in.
	Location *time.Location
}

// NewBusinessHours returns the default business window: 06:00-20:00 local
// time in the given timezone, closed all day Sunday.
func NewBusinessHours(loc *time.Location) BusinessHours {
	return BusinessHours{
		Open:     6,
		Close:    20,
		Location: loc,
	}
}

// Allowed reports whether now falls inside the business window.
func (b BusinessHours) Allowed(now time.Time) bool {
	local := now.In(b.Location)

	if local.Weekday() == time.Sunday {
		return false
	}

	hour := local.Hour()
	return hour >= b.Open && hour < b.Close
}

// Always allows execution at any instant. Jobs that rely entirely on their
// recurrence rule for timing (e.g. the twice-daily summary) use this policy.
type Always struct{}

// Allowed always returns true.
func (Always) Allowed(time.Time) bool {
	return true
}
