package reminder

import (
	"testing"
	"time"
)

func TestNextOccurrence_Monotonic(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, time.July, 30, 9, 0, 0, 0, time.UTC)
	rules := []string{"daily", "weekly", "monthly", "weekdays", "每天", "8:00"}

	for _, rule := range rules {
		next, ok := NextOccurrence(base, rule)
		if !ok {
			t.Fatalf("rule %q should resolve", rule)
		}
		if !next.After(base) {
			t.Errorf("rule %q: next %v is not after base %v", rule, next, base)
		}
	}
}

func TestNextOccurrence_WeekdaysIsMonFri(t *testing.T) {
	t.Parallel()

	// Iterate a base for every weekday of one week and confirm the result
	// always lands Monday-Friday.
	base := time.Date(2026, time.July, 27, 9, 0, 0, 0, time.UTC) // a Monday
	for i := range 7 {
		day := base.Add(time.Duration(i) * 24 * time.Hour)
		next, ok := NextOccurrence(day, "weekdays")
		if !ok {
			t.Fatalf("weekdays rule should resolve for base %v", day)
		}
		wd := next.Weekday()
		if wd == time.Saturday || wd == time.Sunday {
			t.Errorf("base %v (%s) -> next %v landed on %s, want Mon-Fri", day, day.Weekday(), next, wd)
		}
	}
}

func TestNextOccurrence_UnrecognizedRule(t *testing.T) {
	t.Parallel()

	_, ok := NextOccurrence(time.Now(), "never heard of it")
	if ok {
		t.Fatal("unrecognized rule should return ok=false")
	}
}

func TestNextOccurrence_ClockTimeRollsToTomorrowIfPassed(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, time.July, 30, 20, 0, 0, 0, time.UTC)
	next, ok := NextOccurrence(base, "8:00")
	if !ok {
		t.Fatal("clock-time rule should resolve")
	}
	if next.Day() == base.Day() {
		t.Fatalf("8:00 has already passed on %v, next occurrence should roll to the next day", base)
	}
}
