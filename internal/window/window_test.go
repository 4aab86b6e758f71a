package window

import (
	"testing"
	"time"
)

func mustLoadLocation(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("LoadLocation(%q) unexpected error: %v", name, err)
	}
	return loc
}

// TestBusinessHours_SundayAlwaysClosed verifies Sundays are disallowed at any hour.
func TestBusinessHours_SundayAlwaysClosed(t *testing.T) {
	loc := mustLoadLocation(t, "America/Fortaleza")
	policy := NewBusinessHours(loc)

	// 2024-01-07 is a Sunday.
	for hour := 0; hour < 24; hour++ {
		now := time.Date(2024, 1, 7, hour, 0, 0, 0, loc)
		if policy.Allowed(now) {
			t.Errorf("expected Sunday %02d:00 to be disallowed", hour)
		}
	}
}

// TestBusinessHours_WeekdayHours verifies the [6,20) hour window on non-Sundays.
func TestBusinessHours_WeekdayHours(t *testing.T) {
	loc := mustLoadLocation(t, "America/Fortaleza")
	policy := NewBusinessHours(loc)

	tests := []struct {
		hour    int
		allowed bool
	}{
		{0, false},
		{5, false},
		{6, true},
		{12, true},
		{19, true},
		{20, false},
		{23, false},
	}

	for _, tt := range tests {
		// 2024-01-09 is a Tuesday.
		now := time.Date(2024, 1, 9, tt.hour, 30, 0, 0, loc)
		if got := policy.Allowed(now); got != tt.allowed {
			t.Errorf("Allowed(Tuesday %02d:30) = %v, want %v", tt.hour, got, tt.allowed)
		}
	}
}

// TestBusinessHours_EvaluatesInPolicyTimezone verifies the window is checked
// against the policy's timezone, not the timezone attached to the input.
func TestBusinessHours_EvaluatesInPolicyTimezone(t *testing.T) {
	fortaleza := mustLoadLocation(t, "America/Fortaleza")
	policy := NewBusinessHours(fortaleza)

	// 08:00 UTC on a Tuesday is 05:00 in Fortaleza (UTC-3): outside the window.
	now := time.Date(2024, 1, 9, 8, 0, 0, 0, time.UTC)
	if policy.Allowed(now) {
		t.Error("expected 05:00 local to be disallowed even though 08:00 UTC is in range")
	}

	// 22:00 UTC on a Tuesday is 19:00 in Fortaleza: inside the window.
	now = time.Date(2024, 1, 9, 22, 0, 0, 0, time.UTC)
	if !policy.Allowed(now) {
		t.Error("expected 19:00 local to be allowed even though 22:00 UTC is out of range")
	}
}

// TestBusinessHours_SaturdayOpen verifies Saturday is a working day.
func TestBusinessHours_SaturdayOpen(t *testing.T) {
	loc := mustLoadLocation(t, "America/Fortaleza")
	policy := NewBusinessHours(loc)

	// 2024-01-06 is a Saturday.
	now := time.Date(2024, 1, 6, 10, 0, 0, 0, loc)
	if !policy.Allowed(now) {
		t.Error("expected Saturday 10:00 to be allowed")
	}
}

// TestAlways verifies the Always policy never blocks.
func TestAlways(t *testing.T) {
	policy := Always{}

	sunday := time.Date(2024, 1, 7, 3, 0, 0, 0, time.UTC)
	if !policy.Allowed(sunday) {
		t.Error("expected Always to allow Sunday 03:00")
	}
}
