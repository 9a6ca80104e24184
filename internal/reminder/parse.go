package reminder

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	dailyPattern     = regexp.MustCompile(`每天|每日|daily`)
	dailyTimePattern = regexp.MustCompile(`(\d{1,2})\s*[点時时](?:\d{1,2}\s*分)?`)
	weeklyPattern    = regexp.MustCompile(`每周|每週|每星期|weekly`)
	monthlyPattern   = regexp.MustCompile(`每月|每个月|monthly`)
	weekdaysPattern  = regexp.MustCompile(`工作日|weekdays?`)
)

// ParseRecurrenceFromText extracts a recurrence rule from free-form natural
// language (e.g. "每天8点提醒我吃药" yields "08:00", "weekly standup" yields
// "weekly"), so the LLM's "remind" intent can be scheduled without a separate
// structured-reminder UI. A daily phrase with an "N点" clock hour yields that
// hour as "HH:00". Returns "" when the text names no recognized recurrence;
// English "every day" and "at 8" are not recognized.
func ParseRecurrenceFromText(text string) string {
	lower := strings.ToLower(text)

	if dailyPattern.MatchString(lower) {
		if m := dailyTimePattern.FindStringSubmatch(lower); m != nil {
			hour, err := strconv.Atoi(m[1])
			if err == nil {
				return fmt.Sprintf("%02d:00", hour)
			}
		}
		return "daily"
	}

	if weeklyPattern.MatchString(lower) {
		return "weekly"
	}

	if monthlyPattern.MatchString(lower) {
		return "monthly"
	}

	if weekdaysPattern.MatchString(lower) {
		return "weekdays"
	}

	return ""
}
