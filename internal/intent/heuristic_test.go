package intent

import (
	"context"
	"errors"
	"testing"
	"time"
)

var testNow = time.Date(2025, time.March, 10, 14, 20, 0, 0, time.UTC) // a Monday

func TestParseTomorrow(t *testing.T) {
	p := NewHeuristicParser(30)
	req, err := p.Parse(context.Background(), "Schedule a meeting with Dana tomorrow at 2pm", testNow)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := time.Date(2025, time.March, 11, 0, 0, 0, 0, time.UTC)
	if !req.Date.Equal(want) {
		t.Errorf("date = %v, want %v", req.Date, want)
	}
	if req.Hour != 14 || req.Minute != 0 {
		t.Errorf("time = %d:%02d, want 14:00", req.Hour, req.Minute)
	}
}

func TestParseTimeLiterals(t *testing.T) {
	cases := []struct {
		in         string
		hour, min  int
	}{
		{"meet with Bob at 9am", 9, 0},
		{"meet with Bob at 9:45 AM", 9, 45},
		{"meet with Bob at 12 pm", 12, 0},
		{"meet with Bob at 12am", 0, 0},
		{"meet with Bob 5pm today", 17, 0},
		{"meet with Bob at 5 PM", 17, 0},
	}
	p := NewHeuristicParser(30)
	for _, c := range cases {
		req, err := p.Parse(context.Background(), c.in, testNow)
		if err != nil {
			t.Fatalf("Parse(%q): %v", c.in, err)
		}
		if req.Hour != c.hour || req.Minute != c.min {
			t.Errorf("Parse(%q) time = %d:%02d, want %d:%02d", c.in, req.Hour, req.Minute, c.hour, c.min)
		}
	}
}

func TestParseDefaultTimeIsNextHour(t *testing.T) {
	p := NewHeuristicParser(30)
	req, err := p.Parse(context.Background(), "set up a meeting with Dana today", testNow)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if req.Hour != 15 || req.Minute != 0 {
		t.Errorf("time = %d:%02d, want 15:00", req.Hour, req.Minute)
	}
}

func TestParseParticipants(t *testing.T) {
	p := NewHeuristicParser(30)
	req, err := p.Parse(context.Background(), "meeting with Alice, Bob and Carol tomorrow at 10am", testNow)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []string{"Alice", "Bob", "Carol"}
	if len(req.Participants) != len(want) {
		t.Fatalf("participants = %v, want %v", req.Participants, want)
	}
	for i := range want {
		if req.Participants[i] != want[i] {
			t.Errorf("participants[%d] = %q, want %q", i, req.Participants[i], want[i])
		}
	}
	if len(req.Emails) != 3 {
		t.Errorf("emails len = %d, want 3", len(req.Emails))
	}
}

func TestParseDuration(t *testing.T) {
	p := NewHeuristicParser(30)

	req, _ := p.Parse(context.Background(), "2 hour meeting with Dana at 3pm", testNow)
	if req.DurationMin != 120 {
		t.Errorf("duration = %d, want 120", req.DurationMin)
	}

	req, _ = p.Parse(context.Background(), "meeting with Dana at 3pm for 45 minutes", testNow)
	if req.DurationMin != 45 {
		t.Errorf("duration = %d, want 45", req.DurationMin)
	}

	req, _ = p.Parse(context.Background(), "meeting with Dana at 3pm", testNow)
	if req.DurationMin != 30 {
		t.Errorf("duration = %d, want default 30", req.DurationMin)
	}
}

func TestParseTitle(t *testing.T) {
	p := NewHeuristicParser(30)

	req, _ := p.Parse(context.Background(), "meeting with Dana tomorrow about the Q3 budget", testNow)
	if req.Title != "Meeting about the Q3 budget" {
		t.Errorf("title = %q", req.Title)
	}

	req, _ = p.Parse(context.Background(), "meeting with Dana to discuss hiring at 4pm", testNow)
	if req.Title != "Meeting about hiring" {
		t.Errorf("title = %q", req.Title)
	}

	req, _ = p.Parse(context.Background(), "meeting with Alice and Bob at 4pm", testNow)
	if req.Title != "Meeting with Alice, Bob" {
		t.Errorf("title = %q", req.Title)
	}
}

func TestParseOnMonthDay(t *testing.T) {
	p := NewHeuristicParser(30)
	req, err := p.Parse(context.Background(), "meeting with Dana on March 25 at 11am", testNow)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := time.Date(2025, time.March, 25, 0, 0, 0, 0, time.UTC)
	if !req.Date.Equal(want) {
		t.Errorf("date = %v, want %v", req.Date, want)
	}
}

func TestParseInsufficient(t *testing.T) {
	p := NewHeuristicParser(30)
	_, err := p.Parse(context.Background(), "schedule something at 3pm", testNow)
	if !errors.Is(err, ErrInsufficient) {
		t.Fatalf("err = %v, want ErrInsufficient", err)
	}
}

func TestTwelveHourConversion(t *testing.T) {
	if got := to24Hour(12, "am"); got != 0 {
		t.Errorf("12 am = %d, want 0", got)
	}
	if got := to24Hour(12, "pm"); got != 12 {
		t.Errorf("12 pm = %d, want 12", got)
	}
	if got := to24Hour(5, "pm"); got != 17 {
		t.Errorf("5 pm = %d, want 17", got)
	}
	if got := to24Hour(5, "AM"); got != 5 {
		t.Errorf("5 AM = %d, want 5", got)
	}
}
