package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Rule decides whether a job is due at now, given the instant it last ran.
// A zero lastRun means the job has never run. Every implementation must be a
// pure function of its inputs so the scheduler can be tested with a fake
// clock.
type Rule interface {
	Due(now, lastRun time.Time) bool
}

// Interval fires every fixed duration, anchored to the previous run. A job
// that has never run is due immediately, so the first tick after startup
// runs it once.
type Interval struct {
	Every time.Duration
}

// Due reports whether the interval has elapsed since the last run.
func (r Interval) Due(now, lastRun time.Time) bool {
	if lastRun.IsZero() {
		return true
	}
	return now.Sub(lastRun) >= r.Every
}

func (r Interval) String() string {
	return fmt.Sprintf("every %s", r.Every)
}

// TimeOfDay is a wall-clock time within a day.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Weekly fires at fixed wall-clock times on fixed weekdays, evaluated in a
// fixed civil timezone. Each configured time fires at most once per day: a
// run at 11:30 does not consume the 17:30 slot.
type Weekly struct {
	Days     []time.Weekday
	Times    []TimeOfDay
	Location *time.Location
}

// Due reports whether now has crossed a configured time today that the last
// run has not already consumed.
func (r Weekly) Due(now, lastRun time.Time) bool {
	local := now.In(r.Location)

	if !r.onDay(local.Weekday()) {
		return false
	}

	// Latest configured time today that now has already reached.
	var crossed time.Time
	for _, tod := range r.Times {
		occ := time.Date(local.Year(), local.Month(), local.Day(),
			tod.Hour, tod.Minute, 0, 0, r.Location)
		if !occ.After(local) && occ.After(crossed) {
			crossed = occ
		}
	}

	if crossed.IsZero() {
		return false
	}

	return lastRun.IsZero() || lastRun.Before(crossed)
}

func (r Weekly) onDay(day time.Weekday) bool {
	for _, d := range r.Days {
		if d == day {
			return true
		}
	}
	return false
}

func (r Weekly) String() string {
	days := make([]string, len(r.Days))
	for i, d := range r.Days {
		days[i] = d.String()
	}
	times := make([]string, len(r.Times))
	for i, t := range r.Times {
		times[i] = t.String()
	}
	return fmt.Sprintf("at %s on %s", strings.Join(times, ","), strings.Join(days, ","))
}

// ParseTimeOfDay parses "HH:MM" (24h clock).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q, expected HH:MM", s)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return TimeOfDay{}, fmt.Errorf("invalid hour in %q", s)
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid minute in %q", s)
	}

	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// ParseWeekday parses a weekday name, short or long form, case-insensitive.
func ParseWeekday(s string) (time.Weekday, error) {
	day, ok := weekdayNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("invalid weekday %q", s)
	}
	return day, nil
}
