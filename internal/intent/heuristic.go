package intent

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"meetly/internal/domain"
)

var (
	atTimePat   = regexp.MustCompile(`(?i)\bat\s+(\d{1,2})(?::(\d{2}))?\s*(am|pm)?\b`)
	bareTimePat = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`)
	onDatePat   = regexp.MustCompile(`(?i)\bon\s+(January|February|March|April|May|June|July|August|September|October|November|December)\s+(\d{1,2})(?:st|nd|rd|th)?\b`)
	hourDurPat  = regexp.MustCompile(`(?i)\b(\d+)\s*hours?\b`)
	minDurPat   = regexp.MustCompile(`(?i)\bfor\s+(\d+)\s*min(?:ute)?s?\b`)
	withPat     = regexp.MustCompile(`(?i)\bwith\s+(.+)$`)
	aboutPat    = regexp.MustCompile(`(?i)\babout\s+(.+)$`)
	discussPat  = regexp.MustCompile(`(?i)\bto\s+discuss\s+(.+)$`)
)

// HeuristicParser extracts a meeting request with pattern rules. It is the
// fallback when the language-model path is unavailable or returns garbage.
type HeuristicParser struct {
	DefaultDurationMin int
}

func NewHeuristicParser(defaultDurationMin int) *HeuristicParser {
	if defaultDurationMin <= 0 {
		defaultDurationMin = 30
	}
	return &HeuristicParser{DefaultDurationMin: defaultDurationMin}
}

func (p *HeuristicParser) Parse(ctx context.Context, utterance string, now time.Time) (*domain.MeetingRequest, error) {
	req := &domain.MeetingRequest{
		DurationMin:  p.DefaultDurationMin,
		MissingIndex: -1,
	}

	req.Date = parseDate(utterance, now)

	if hour, minute, ok := parseTime(utterance); ok {
		req.Hour, req.Minute = hour, minute
	} else {
		// Default to the top of the next hour.
		next := now.Add(time.Hour)
		req.Hour, req.Minute = next.Hour(), 0
	}

	if m := hourDurPat.FindStringSubmatch(utterance); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			req.DurationMin = n * 60
		}
	} else if m := minDurPat.FindStringSubmatch(utterance); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			req.DurationMin = n
		}
	}

	if m := withPat.FindStringSubmatch(utterance); m != nil {
		req.Participants = splitNames(cutAtStopWord(m[1]))
	}
	req.Emails = make([]string, len(req.Participants))

	switch {
	case titlePhrase(utterance) != "":
		req.Title = "Meeting about " + titlePhrase(utterance)
	case len(req.Participants) > 0:
		req.Title = "Meeting with " + strings.Join(req.Participants, ", ")
	default:
		req.Title = "Meeting"
	}

	if len(req.Participants) == 0 {
		return nil, ErrInsufficient
	}
	return req, nil
}

// ExtractClock finds a time-of-day mention anywhere in s ("at 3pm", "2:30 pm").
func ExtractClock(s string) (hour, minute int, ok bool) {
	return parseTime(s)
}

// ExtractDate reports an explicit date mention in s: "tomorrow", "today",
// or "on <Month> <Day>". ok is false when no date was named.
func ExtractDate(s string, now time.Time) (time.Time, bool) {
	lower := strings.ToLower(s)
	if strings.Contains(lower, "tomorrow") || strings.Contains(lower, "today") || onDatePat.MatchString(s) {
		return parseDate(s, now), true
	}
	return time.Time{}, false
}

func parseDate(utterance string, now time.Time) time.Time {
	lower := strings.ToLower(utterance)
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch {
	case strings.Contains(lower, "tomorrow"):
		return day.AddDate(0, 0, 1)
	case strings.Contains(lower, "today"):
		return day
	}
	if m := onDatePat.FindStringSubmatch(utterance); m != nil {
		month, ok := parseMonth(m[1])
		dom, err := strconv.Atoi(m[2])
		if ok && err == nil {
			return time.Date(now.Year(), month, dom, 0, 0, 0, 0, now.Location())
		}
	}
	return day
}

var months = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
}

func parseMonth(name string) (time.Month, bool) {
	m, ok := months[strings.ToLower(name)]
	return m, ok
}

func parseTime(utterance string) (int, int, bool) {
	for _, pat := range []*regexp.Regexp{atTimePat, bareTimePat} {
		m := pat.FindStringSubmatch(utterance)
		if m == nil {
			continue
		}
		hour, err := strconv.Atoi(m[1])
		if err != nil || hour > 23 {
			continue
		}
		minute := 0
		if m[2] != "" {
			minute, err = strconv.Atoi(m[2])
			if err != nil || minute > 59 {
				continue
			}
		}
		if m[3] != "" {
			if hour < 1 || hour > 12 {
				continue
			}
			hour = to24Hour(hour, m[3])
		}
		return hour, minute, true
	}
	return 0, 0, false
}

// cutAtStopWord trims a "with ..." capture at the first token that starts a
// different clause (date, time, duration, topic).
func cutAtStopWord(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		lw := strings.ToLower(strings.Trim(w, ",."))
		if lw != "" && lw[0] >= '0' && lw[0] <= '9' {
			// A bare time or duration ("5pm", "45") ends the name list.
			return strings.Join(words[:i], " ")
		}
		switch lw {
		case "tomorrow", "today", "at", "on", "for", "about":
			return strings.Join(words[:i], " ")
		case "to":
			if i+1 < len(words) && strings.EqualFold(strings.Trim(words[i+1], ",."), "discuss") {
				return strings.Join(words[:i], " ")
			}
		}
	}
	return strings.Join(words, " ")
}

var andPat = regexp.MustCompile(`(?i)\s+and\s+`)

// splitNames splits "Alice, Bob and Carol" into individual trimmed names.
func splitNames(s string) []string {
	s = andPat.ReplaceAllString(s, ",")
	parts := strings.Split(s, ",")
	var names []string
	for _, p := range parts {
		p = strings.Trim(strings.TrimSpace(p), ".?!")
		if p != "" {
			names = append(names, p)
		}
	}
	return names
}

func titlePhrase(utterance string) string {
	for _, pat := range []*regexp.Regexp{aboutPat, discussPat} {
		if m := pat.FindStringSubmatch(utterance); m != nil {
			phrase := cutAtStopWord(m[1])
			phrase = strings.Trim(strings.TrimSpace(phrase), ".?!")
			if phrase != "" {
				return phrase
			}
		}
	}
	return ""
}
