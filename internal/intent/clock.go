package intent

import (
	"regexp"
	"strconv"
	"strings"
)

var clockPat = regexp.MustCompile(`(?i)^(\d{1,2})(?::(\d{2}))?\s*(am|pm)?$`)

// to24Hour converts a 12-hour clock reading to a 24-hour one.
// "12 am" is midnight (0), "12 pm" is noon (12).
func to24Hour(hour int, meridiem string) int {
	switch strings.ToLower(meridiem) {
	case "pm":
		if hour != 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	return hour
}

// parseClockString parses strings like "2pm", "2:30 PM" and "14:30".
// Returns (hour, minute, ok).
func parseClockString(s string) (int, int, bool) {
	m := clockPat.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, 0, false
	}
	hour, err := strconv.Atoi(m[1])
	if err != nil || hour > 23 {
		return 0, 0, false
	}
	minute := 0
	if m[2] != "" {
		minute, err = strconv.Atoi(m[2])
		if err != nil || minute > 59 {
			return 0, 0, false
		}
	}
	if m[3] != "" {
		if hour < 1 || hour > 12 {
			return 0, 0, false
		}
		hour = to24Hour(hour, m[3])
	}
	return hour, minute, true
}
