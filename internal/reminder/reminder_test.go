package reminder

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"meetly/internal/domain"
)

type stubStore struct {
	domain.Store
	meetings []*domain.ScheduledMeeting
}

func (s *stubStore) MeetingsForDay(ctx context.Context, day time.Time) ([]*domain.ScheduledMeeting, error) {
	return s.meetings, nil
}

type captureBus struct {
	domain.MessageBus
	sent []domain.OutboundMessage
}

func (b *captureBus) SendOutbound(msg domain.OutboundMessage) {
	b.sent = append(b.sent, msg)
}

func TestRunOnceGroupsByChat(t *testing.T) {
	start := time.Date(2025, 3, 11, 14, 0, 0, 0, time.UTC)
	store := &stubStore{meetings: []*domain.ScheduledMeeting{
		{ID: "1", Title: "Standup", Start: start, End: start.Add(time.Hour), Channel: "web", ChatID: "a"},
		{ID: "2", Title: "Review", Start: start.Add(2 * time.Hour), End: start.Add(3 * time.Hour), Channel: "web", ChatID: "a"},
		{ID: "3", Title: "1:1", Start: start, End: start.Add(time.Hour), Channel: "telegram", ChatID: "42"},
	}}
	bus := &captureBus{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := New(store, bus, "", time.UTC, logger)
	r.RunOnce(context.Background(), start)

	if len(bus.sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(bus.sent))
	}
	if !strings.Contains(bus.sent[0].Content, "2 meetings") {
		t.Errorf("web summary = %q", bus.sent[0].Content)
	}
	if bus.sent[1].Channel != "telegram" || bus.sent[1].ChatID != "42" {
		t.Errorf("second message routed to %s/%s", bus.sent[1].Channel, bus.sent[1].ChatID)
	}
}

func TestSummaryFormat(t *testing.T) {
	start := time.Date(2025, 3, 11, 14, 0, 0, 0, time.UTC)
	got := Summary([]*domain.ScheduledMeeting{
		{Title: "Roadmap sync", Start: start, MeetLink: "https://meet.google.com/abc-defg-hij"},
	})
	if !strings.Contains(got, "1 meeting today") {
		t.Errorf("summary = %q", got)
	}
	if !strings.Contains(got, "Roadmap sync at 2:00 PM") {
		t.Errorf("summary = %q", got)
	}
	if !strings.Contains(got, "meet.google.com") {
		t.Errorf("summary missing link: %q", got)
	}
}

func TestRunOnceNoMeetingsSendsNothing(t *testing.T) {
	bus := &captureBus{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := New(&stubStore{}, bus, "", time.UTC, logger)
	r.RunOnce(context.Background(), time.Now())
	if len(bus.sent) != 0 {
		t.Errorf("sent %d messages, want 0", len(bus.sent))
	}
}
