// Package reminder implements the reminder store and recurrence-rule
// computation for scheduled TTS pushes; the delivery loop that consumes them
// lives in package scheduler.
//
// The scheduler is single-process: it issues no row-level locking when
// scanning due reminders, so a second concurrent replica would double-deliver.
// A production multi-replica deployment would need SELECT ... FOR UPDATE SKIP
// LOCKED or an advisory lock; that is intentionally not built here.
package reminder

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var clockPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)

// NextOccurrence computes the next firing time for a recurring reminder.
// Returns (time, false) for an unrecognized rule — the caller logs and does
// not reschedule.
func NextOccurrence(base time.Time, rule string) (time.Time, bool) {
	normalized := strings.ToLower(strings.TrimSpace(rule))

	switch normalized {
	case "daily", "每天":
		return base.Add(24 * time.Hour), true
	case "weekly", "每周":
		return base.Add(7 * 24 * time.Hour), true
	case "monthly", "每月":
		return base.Add(30 * 24 * time.Hour), true
	case "weekdays", "工作日":
		next := base.Add(24 * time.Hour)
		for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
			next = next.Add(24 * time.Hour)
		}
		return next, true
	}

	if m := clockPattern.FindStringSubmatch(normalized); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
			return time.Time{}, false
		}
		candidate := time.Date(base.Year(), base.Month(), base.Day(), hour, minute, 0, 0, base.Location())
		if !candidate.After(base) {
			candidate = candidate.Add(24 * time.Hour)
		}
		return candidate, true
	}

	return time.Time{}, false
}
