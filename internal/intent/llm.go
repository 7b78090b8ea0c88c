package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"meetly/internal/domain"
)

const parseInstruction = `You extract meeting details from a user message.
Reply with a single JSON object and nothing else:
{"title": string, "date": "YYYY-MM-DD" or "today" or "tomorrow", "time": "H:MM am/pm" or "HH:MM", "duration": minutes as a number, "participants": [names]}
Omit nothing; use sensible defaults when the message is silent on a field.`

// LLMParser asks a text-completion provider to extract meeting details.
// The reply has no guaranteed schema, so the JSON is dug out of whatever
// text surrounds it and parsed defensively.
type LLMParser struct {
	completer          domain.Completer
	defaultDurationMin int
}

func NewLLMParser(completer domain.Completer, defaultDurationMin int) *LLMParser {
	if defaultDurationMin <= 0 {
		defaultDurationMin = 30
	}
	return &LLMParser{completer: completer, defaultDurationMin: defaultDurationMin}
}

// flexInt unmarshals from both JSON numbers and numeric strings. Models
// return either.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexInt(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "minutes"))
	var v int
	if _, err := fmt.Sscanf(s, "%d", &v); err != nil {
		return err
	}
	*f = flexInt(v)
	return nil
}

type llmReply struct {
	Title        string   `json:"title"`
	Date         string   `json:"date"`
	Time         string   `json:"time"`
	Duration     flexInt  `json:"duration"`
	Participants []string `json:"participants"`
}

func (p *LLMParser) Parse(ctx context.Context, utterance string, now time.Time) (*domain.MeetingRequest, error) {
	reply, err := p.completer.Complete(ctx, domain.CompletionRequest{
		System:      parseInstruction,
		Prompt:      utterance,
		MaxTokens:   300,
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("completion: %w", err)
	}

	var parsed llmReply
	raw := extractJSON(reply)
	if raw == "" {
		return nil, fmt.Errorf("no JSON object in completion reply")
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("malformed JSON in completion reply: %w", err)
	}
	if parsed.Participants == nil {
		return nil, fmt.Errorf("completion reply omitted participants")
	}

	req := &domain.MeetingRequest{
		Title:        parsed.Title,
		DurationMin:  int(parsed.Duration),
		Participants: parsed.Participants,
		Emails:       make([]string, len(parsed.Participants)),
		MissingIndex: -1,
	}
	if req.Title == "" {
		req.Title = "Meeting"
	}
	if req.DurationMin <= 0 {
		req.DurationMin = p.defaultDurationMin
	}

	req.Date = resolveDate(parsed.Date, now)
	if hour, minute, ok := parseClockString(parsed.Time); ok {
		req.Hour, req.Minute = hour, minute
	} else {
		next := now.Add(time.Hour)
		req.Hour, req.Minute = next.Hour(), 0
	}
	return req, nil
}

func resolveDate(s string, now time.Time) time.Time {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "today":
		return day
	case "tomorrow":
		return day.AddDate(0, 0, 1)
	}
	for _, layout := range []string{"2006-01-02", "January 2, 2006", "January 2"} {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			year := t.Year()
			if year == 0 {
				year = now.Year()
			}
			return time.Date(year, t.Month(), t.Day(), 0, 0, 0, 0, now.Location())
		}
	}
	return day
}

// extractJSON digs the first top-level JSON object out of a model reply,
// tolerating code fences and surrounding prose.
func extractJSON(content string) string {
	content = strings.TrimSpace(content)

	// Strip markdown code fences if present.
	if strings.HasPrefix(content, "```") {
		lines := strings.Split(content, "\n")
		if len(lines) >= 3 && strings.HasPrefix(lines[len(lines)-1], "```") {
			content = strings.TrimSpace(strings.Join(lines[1:len(lines)-1], "\n"))
		}
	}

	if strings.HasPrefix(content, "{") && json.Valid([]byte(content)) {
		return content
	}

	if start, end := findJSONBounds(content); start >= 0 && end > start {
		return content[start:end]
	}
	return ""
}

// findJSONBounds locates the first top-level JSON object in s.
// Returns the start index and end+1 index, or (-1, -1) if not found.
func findJSONBounds(s string) (int, int) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return -1, -1
	}

	depth := 0
	inStr := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inStr {
			if ch == '\\' {
				i++ // skip escaped character
				continue
			}
			if ch == '"' {
				inStr = false
			}
			continue
		}
		switch ch {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return start, i + 1
			}
		}
	}
	return -1, -1
}
