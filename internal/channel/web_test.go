package channel

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"meetly/internal/config"
	"meetly/internal/domain"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// captureBus is a minimal MessageBus that calls onPublish for each Publish.
type captureBus struct {
	onPublish func(domain.InboundMessage)
	inbound   chan domain.InboundMessage
	handlers  map[string]func(domain.OutboundMessage)
}

func newCaptureBus(onPublish func(domain.InboundMessage)) *captureBus {
	return &captureBus{
		onPublish: onPublish,
		inbound:   make(chan domain.InboundMessage, 10),
		handlers:  make(map[string]func(domain.OutboundMessage)),
	}
}

func (c *captureBus) Publish(msg domain.InboundMessage) {
	if c.onPublish != nil {
		c.onPublish(msg)
	}
	select {
	case c.inbound <- msg:
	default:
	}
}

func (c *captureBus) Subscribe() <-chan domain.InboundMessage { return c.inbound }
func (c *captureBus) SendOutbound(msg domain.OutboundMessage) {}
func (c *captureBus) OnOutbound(channelName string, handler func(domain.OutboundMessage)) {
	c.handlers[channelName] = handler
}
func (c *captureBus) Close() {}

func TestHandleSend_EmptyMessage_Returns400(t *testing.T) {
	w := NewWeb(WebConfig{Logger: quietLogger(), Config: &config.Config{}})
	w.SetBus(newCaptureBus(nil))

	form := url.Values{"message": {""}}
	req := httptest.NewRequest(http.MethodPost, "/chat/send", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	w.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty message, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("expected JSON content-type, got %s", ct)
	}
}

func TestHandleSend_RepliesWithEngineResponse(t *testing.T) {
	w := NewWeb(WebConfig{Logger: quietLogger(), Config: &config.Config{}})

	// Echo the engine's side of the bus: every inbound message produces one
	// outbound reply for the same chat.
	bus := newCaptureBus(nil)
	bus.onPublish = func(msg domain.InboundMessage) {
		go bus.handlers["web"](domain.OutboundMessage{
			Channel: "web",
			ChatID:  msg.ChatID,
			Content: "Booked it!",
		})
	}
	w.SetBus(bus)

	form := url.Values{"message": {"schedule a meeting with Dana tomorrow at 2pm"}}
	req := httptest.NewRequest(http.MethodPost, "/chat/send", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	w.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Booked it!") {
		t.Errorf("body = %s", rec.Body.String())
	}
	// The handler set a session cookie for the new visitor.
	found := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName && c.Value != "" {
			found = true
		}
	}
	if !found {
		t.Error("no session cookie set")
	}
}

func TestHandleSend_TypingEventDoesNotResolveRequest(t *testing.T) {
	w := NewWeb(WebConfig{Logger: quietLogger(), Config: &config.Config{}})

	bus := newCaptureBus(nil)
	bus.onPublish = func(msg domain.InboundMessage) {
		go func() {
			bus.handlers["web"](domain.OutboundMessage{Channel: "web", ChatID: msg.ChatID, Typing: true})
			bus.handlers["web"](domain.OutboundMessage{Channel: "web", ChatID: msg.ChatID, Content: "final answer"})
		}()
	}
	w.SetBus(bus)

	form := url.Values{"message": {"hello"}}
	req := httptest.NewRequest(http.MethodPost, "/chat/send", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	w.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "final answer") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestStatus_ReturnsJSON(t *testing.T) {
	w := NewWeb(WebConfig{Logger: quietLogger(), Config: &config.Config{}, Version: "1.0.0"})
	w.SetBus(newCaptureBus(nil))

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	w.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	ct := rec.Header().Get("Content-Type")
	if ct != "application/json" && !strings.HasPrefix(ct, "application/json;") {
		t.Errorf("expected application/json, got %s", ct)
	}
	if !strings.Contains(rec.Body.String(), "ok") {
		t.Errorf("body should contain status: %s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "1.0.0") {
		t.Errorf("body should contain version: %s", rec.Body.String())
	}
}

func TestHomeAndDemoRender(t *testing.T) {
	w := NewWeb(WebConfig{Logger: quietLogger(), Config: &config.Config{}})
	w.SetBus(newCaptureBus(nil))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	w.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("home: expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Meetly", "Pricing", "/demo"} {
		if !strings.Contains(body, want) {
			t.Errorf("home page missing %q", want)
		}
	}

	req = httptest.NewRequest(http.MethodGet, "/demo", nil)
	rec = httptest.NewRecorder()
	w.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("demo: expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "/chat/stream") {
		t.Error("demo page does not wire the event stream")
	}
}

// feedStore serves a fixed meeting list for the ICS endpoint.
type feedStore struct {
	domain.Store
	meetings []*domain.ScheduledMeeting
}

func (s *feedStore) MeetingsForChat(ctx context.Context, channel, chatID string) ([]*domain.ScheduledMeeting, error) {
	return s.meetings, nil
}

func TestMeetingsICSFeed(t *testing.T) {
	store := &feedStore{meetings: []*domain.ScheduledMeeting{{
		ID:           "m1",
		Title:        "Meeting with Dana",
		Start:        time.Date(2025, time.March, 11, 14, 0, 0, 0, time.UTC),
		End:          time.Date(2025, time.March, 11, 14, 30, 0, 0, time.UTC),
		Participants: []string{"Dana"},
		Emails:       []string{"dana@example.com"},
		MeetLink:     "https://meet.google.com/abc-defg-hij",
	}}}
	w := NewWeb(WebConfig{Logger: quietLogger(), Config: &config.Config{}, Store: store})
	w.SetBus(newCaptureBus(nil))

	req := httptest.NewRequest(http.MethodGet, "/meetings.ics", nil)
	rec := httptest.NewRecorder()
	w.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("content-type = %s", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "BEGIN:VCALENDAR") || !strings.Contains(body, "Meeting with Dana") {
		t.Errorf("feed body = %s", body)
	}
}

func TestICSFeedWithoutStoreIs404(t *testing.T) {
	w := NewWeb(WebConfig{Logger: quietLogger(), Config: &config.Config{}})
	w.SetBus(newCaptureBus(nil))

	req := httptest.NewRequest(http.MethodGet, "/meetings.ics", nil)
	rec := httptest.NewRecorder()
	w.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestConfigAPI(t *testing.T) {
	cfg := config.Defaults()
	w := NewWeb(WebConfig{Logger: quietLogger(), Config: cfg})
	w.SetBus(newCaptureBus(nil))

	req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	rec := httptest.NewRecorder()
	w.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get config: %d: %s", rec.Code, rec.Body.String())
	}

	body := strings.NewReader(`{"path": "calendar.workdayStartHour", "value": 8}`)
	req = httptest.NewRequest(http.MethodPut, "/api/config", body)
	rec = httptest.NewRecorder()
	w.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("update config: %d: %s", rec.Code, rec.Body.String())
	}
	if cfg.Calendar.WorkdayStart != 8 {
		t.Errorf("workday start = %d, want 8", cfg.Calendar.WorkdayStart)
	}
}
