package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"meetly/internal/domain"
)

// Client talks to a Google-Calendar-style events API.
type Client struct {
	apiBase    string
	apiKey     string
	calendarID string
	timezone   string
	client     *http.Client
	logger     *slog.Logger
}

type ClientConfig struct {
	APIBase    string
	APIKey     string
	CalendarID string
	Timezone   string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.APIBase == "" {
		cfg.APIBase = "https://www.googleapis.com/calendar/v3"
	}
	if cfg.CalendarID == "" {
		cfg.CalendarID = "primary"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		apiBase:    strings.TrimRight(cfg.APIBase, "/"),
		apiKey:     cfg.APIKey,
		calendarID: cfg.CalendarID,
		timezone:   cfg.Timezone,
		client:     cfg.HTTPClient,
		logger:     cfg.Logger,
	}
}

type apiEventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

type apiEvent struct {
	ID             string          `json:"id,omitempty"`
	Summary        string          `json:"summary,omitempty"`
	Description    string          `json:"description,omitempty"`
	Start          apiEventTime    `json:"start"`
	End            apiEventTime    `json:"end"`
	Attendees      []apiAttendee   `json:"attendees,omitempty"`
	HTMLLink       string          `json:"htmlLink,omitempty"`
	HangoutLink    string          `json:"hangoutLink,omitempty"`
	ConferenceData *conferenceData `json:"conferenceData,omitempty"`
}

type apiAttendee struct {
	Email string `json:"email"`
}

type conferenceData struct {
	CreateRequest *conferenceCreateRequest `json:"createRequest,omitempty"`
	EntryPoints   []conferenceEntryPoint   `json:"entryPoints,omitempty"`
}

type conferenceCreateRequest struct {
	RequestID             string                `json:"requestId"`
	ConferenceSolutionKey conferenceSolutionKey `json:"conferenceSolutionKey"`
}

type conferenceSolutionKey struct {
	Type string `json:"type"`
}

type conferenceEntryPoint struct {
	EntryPointType string `json:"entryPointType"`
	URI            string `json:"uri"`
}

type apiEventList struct {
	Items []apiEvent `json:"items"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

func (c *Client) EventsForDay(ctx context.Context, day time.Time) ([]domain.Event, error) {
	loc := day.Location()
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	q := url.Values{}
	q.Set("timeMin", dayStart.Format(time.RFC3339))
	q.Set("timeMax", dayEnd.Format(time.RFC3339))
	q.Set("singleEvents", "true")
	q.Set("orderBy", "startTime")

	endpoint := fmt.Sprintf("%s/calendars/%s/events?%s", c.apiBase, url.PathEscape(c.calendarID), q.Encode())
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calendar list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("calendar list %d: %s", resp.StatusCode, string(body))
	}

	var list apiEventList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decode event list: %w", err)
	}

	events := make([]domain.Event, 0, len(list.Items))
	for _, item := range list.Items {
		start, ok1 := parseEventTime(item.Start, loc)
		end, ok2 := parseEventTime(item.End, loc)
		if !ok1 || !ok2 {
			continue
		}
		events = append(events, domain.Event{
			ID:    item.ID,
			Title: item.Summary,
			Start: start,
			End:   end,
		})
	}
	return events, nil
}

func (c *Client) Insert(ctx context.Context, in domain.EventInput) (*domain.CreatedEvent, error) {
	tz := c.timezone
	if tz == "" {
		tz = in.Start.Location().String()
	}

	ev := apiEvent{
		Summary:     in.Title,
		Description: in.Description,
		Start:       apiEventTime{DateTime: in.Start.Format(time.RFC3339), TimeZone: tz},
		End:         apiEventTime{DateTime: in.End.Format(time.RFC3339), TimeZone: tz},
		ConferenceData: &conferenceData{
			CreateRequest: &conferenceCreateRequest{
				RequestID:             uuid.NewString(),
				ConferenceSolutionKey: conferenceSolutionKey{Type: "hangoutsMeet"},
			},
		},
	}
	for _, email := range in.Attendees {
		ev.Attendees = append(ev.Attendees, apiAttendee{Email: email})
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}

	q := url.Values{}
	q.Set("sendUpdates", "all")
	q.Set("conferenceDataVersion", "1")
	endpoint := fmt.Sprintf("%s/calendars/%s/events?%s", c.apiBase, url.PathEscape(c.calendarID), q.Encode())

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &domain.InsertError{Kind: domain.InsertUnknown, Message: fmt.Sprintf("calendar insert: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, classifyInsertError(resp.StatusCode, respBody)
	}

	var created apiEvent
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, &domain.InsertError{Kind: domain.InsertUnknown, Message: fmt.Sprintf("decode created event: %v", err)}
	}

	out := &domain.CreatedEvent{
		ID:       created.ID,
		HTMLLink: created.HTMLLink,
		MeetLink: created.HangoutLink,
	}
	if out.MeetLink == "" && created.ConferenceData != nil {
		for _, ep := range created.ConferenceData.EntryPoints {
			if ep.EntryPointType == "video" {
				out.MeetLink = ep.URI
				break
			}
		}
	}
	return out, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// classifyInsertError maps an API failure onto an insert-error kind so the
// engine can tell attendee problems apart from everything else.
func classifyInsertError(status int, body []byte) *domain.InsertError {
	var ae apiError
	_ = json.Unmarshal(body, &ae)

	msg := ae.Error.Message
	if msg == "" {
		msg = string(body)
	}
	lower := strings.ToLower(msg)
	for _, e := range ae.Error.Errors {
		lower += " " + strings.ToLower(e.Reason)
	}

	kind := domain.InsertUnknown
	switch {
	case strings.Contains(lower, "attendee"):
		kind = domain.InsertAttendee
	case status == http.StatusUnauthorized:
		kind = domain.InsertAuth
	case status == http.StatusForbidden && (strings.Contains(lower, "quota") || strings.Contains(lower, "ratelimit") || strings.Contains(lower, "rate limit")):
		kind = domain.InsertQuota
	case status == http.StatusForbidden:
		kind = domain.InsertAuth
	case status == http.StatusBadRequest:
		kind = domain.InsertInvalid
	}
	return &domain.InsertError{Kind: kind, Message: fmt.Sprintf("calendar insert %d: %s", status, msg)}
}

func parseEventTime(t apiEventTime, loc *time.Location) (time.Time, bool) {
	if t.DateTime != "" {
		parsed, err := time.Parse(time.RFC3339, t.DateTime)
		if err != nil {
			return time.Time{}, false
		}
		return parsed.In(loc), true
	}
	if t.Date != "" {
		parsed, err := time.ParseInLocation("2006-01-02", t.Date, loc)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	}
	return time.Time{}, false
}

// PlaceholderMeetLink fabricates a meet-style link for providers that do not
// return conferencing data.
func PlaceholderMeetLink() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("https://meet.google.com/%s-%s-%s", id[0:3], id[3:7], id[7:10])
}
