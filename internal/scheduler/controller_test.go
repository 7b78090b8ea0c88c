package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"meetly/internal/calendar"
	"meetly/internal/domain"
	"meetly/internal/intent"
	"meetly/internal/replies"
)

var testNow = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

type stubDirectory struct {
	emails    map[string]string
	created   map[string]string
	searchErr error
	createErr error
}

func newStubDirectory(emails map[string]string) *stubDirectory {
	if emails == nil {
		emails = make(map[string]string)
	}
	return &stubDirectory{emails: emails, created: make(map[string]string)}
}

func (d *stubDirectory) Search(ctx context.Context, name string) ([]domain.Contact, error) {
	if d.searchErr != nil {
		return nil, d.searchErr
	}
	if email, ok := d.emails[name]; ok {
		return []domain.Contact{{Name: name, Email: email}}, nil
	}
	return nil, nil
}

func (d *stubDirectory) Create(ctx context.Context, name, email string) error {
	if d.createErr != nil {
		return d.createErr
	}
	d.created[name] = email
	d.emails[name] = email
	return nil
}

type stubCal struct {
	events    []domain.Event
	insertErr error
	inserted  []domain.EventInput
	meetLink  string
}

func (c *stubCal) EventsForDay(ctx context.Context, day time.Time) ([]domain.Event, error) {
	return c.events, nil
}

func (c *stubCal) Insert(ctx context.Context, in domain.EventInput) (*domain.CreatedEvent, error) {
	c.inserted = append(c.inserted, in)
	if c.insertErr != nil {
		return nil, c.insertErr
	}
	return &domain.CreatedEvent{ID: "ev1", MeetLink: c.meetLink}, nil
}

type stubNotifier struct {
	calls int
	err   error
}

func (n *stubNotifier) RequestDocuments(ctx context.Context, m *domain.ScheduledMeeting) error {
	n.calls++
	return n.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestController(dir *stubDirectory, cal *stubCal, notifier *stubNotifier) *Controller {
	logger := testLogger()
	return NewController(ControllerConfig{
		Parser:    intent.NewHeuristicParser(30),
		Directory: dir,
		Checker:   calendar.NewChecker(cal, calendar.CheckerConfig{}),
		Calendar:  cal,
		Notifier:  notifier,
		Replies:   replies.Builtin(),
		Sessions:  NewManager(nil, logger),
		Logger:    logger,
		Now:       func() time.Time { return testNow },
	})
}

func newTestSession(t *testing.T, c *Controller) *Session {
	t.Helper()
	s, err := c.Sessions().GetOrCreate(context.Background(), "test", "chat1")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	return s
}

func TestBookHappyPath(t *testing.T) {
	dir := newStubDirectory(map[string]string{"Dana": "dana@example.com"})
	cal := &stubCal{meetLink: "https://meet.google.com/abc-defg-hij"}
	c := newTestController(dir, cal, &stubNotifier{})
	s := newTestSession(t, c)

	msgs := c.HandleTurn(context.Background(), s, "Schedule a meeting with Dana tomorrow at 2pm")
	if len(msgs) != 2 {
		t.Fatalf("got %d replies: %v", len(msgs), msgs)
	}
	if !strings.Contains(msgs[0], "Tuesday, March 11, 2025") {
		t.Errorf("confirmation missing long date: %q", msgs[0])
	}
	if !strings.Contains(msgs[0], "2:00 PM") {
		t.Errorf("confirmation missing time: %q", msgs[0])
	}
	if !strings.Contains(msgs[0], "dana@example.com") {
		t.Errorf("confirmation missing email: %q", msgs[0])
	}
	if len(cal.inserted) != 1 {
		t.Fatalf("insert calls = %d, want 1", len(cal.inserted))
	}
	if len(s.Scheduled) != 1 {
		t.Fatalf("scheduled = %d", len(s.Scheduled))
	}
	m := s.Scheduled[0]
	if m.Participants[0] != "Dana" || m.Emails[0] != "dana@example.com" {
		t.Errorf("meeting = %+v", m)
	}
	if s.Current != m {
		t.Error("current meeting not set for document offer")
	}
	if s.State != StateIdle || s.Pending != nil {
		t.Errorf("state = %v, pending = %v", s.State, s.Pending)
	}
}

func TestMissingSecondEmailHaltsBeforeInsert(t *testing.T) {
	dir := newStubDirectory(map[string]string{
		"Alice": "alice@example.com",
		"Carol": "carol@example.com",
	})
	cal := &stubCal{}
	c := newTestController(dir, cal, &stubNotifier{})
	s := newTestSession(t, c)

	msgs := c.HandleTurn(context.Background(), s, "schedule a meeting with Alice, Bob and Carol tomorrow at 10am")
	if len(cal.inserted) != 0 {
		t.Fatalf("insert calls = %d, want 0", len(cal.inserted))
	}
	if s.State != StateAwaitingNewContactEmail {
		t.Fatalf("state = %v", s.State)
	}
	if s.Pending == nil || s.Pending.MissingIndex != 1 {
		t.Fatalf("missing index = %v, want 1", s.Pending)
	}
	if s.NewContactName != "Bob" {
		t.Errorf("asked about %q, want Bob", s.NewContactName)
	}
	if len(msgs) != 1 || !strings.Contains(msgs[0], "Bob") {
		t.Errorf("replies = %v", msgs)
	}
	// Resolved addresses kept their input positions.
	if s.Pending.Emails[0] != "alice@example.com" || s.Pending.Emails[2] != "carol@example.com" {
		t.Errorf("emails = %v", s.Pending.Emails)
	}
}

func TestDanaScenario(t *testing.T) {
	dir := newStubDirectory(nil)
	cal := &stubCal{}
	c := newTestController(dir, cal, &stubNotifier{})
	s := newTestSession(t, c)

	msgs := c.HandleTurn(context.Background(), s, "Schedule a meeting with Dana tomorrow at 2pm")
	if len(msgs) != 1 {
		t.Fatalf("got %d replies, want exactly 1: %v", len(msgs), msgs)
	}
	if !strings.Contains(msgs[0], "Dana") || !strings.Contains(strings.ToLower(msgs[0]), "email") {
		t.Errorf("reply = %q", msgs[0])
	}
	if len(cal.inserted) != 0 {
		t.Errorf("insert calls = %d, want 0", len(cal.inserted))
	}
}

func TestInvalidEmailRepromptsSamePerson(t *testing.T) {
	dir := newStubDirectory(nil)
	cal := &stubCal{}
	c := newTestController(dir, cal, &stubNotifier{})
	s := newTestSession(t, c)

	c.HandleTurn(context.Background(), s, "Schedule a meeting with Dana tomorrow at 2pm")

	msgs := c.HandleTurn(context.Background(), s, "not-an-email")
	if s.State != StateAwaitingNewContactEmail || s.NewContactName != "Dana" {
		t.Fatalf("state advanced: %v / %q", s.State, s.NewContactName)
	}
	if len(msgs) != 1 || !strings.Contains(msgs[0], "Dana") {
		t.Errorf("reply = %v", msgs)
	}
	if len(cal.inserted) != 0 {
		t.Errorf("insert calls = %d", len(cal.inserted))
	}

	msgs = c.HandleTurn(context.Background(), s, "a@b.co")
	if dir.created["Dana"] != "a@b.co" {
		t.Errorf("contact not created: %v", dir.created)
	}
	if len(cal.inserted) != 1 {
		t.Fatalf("insert calls = %d, want 1", len(cal.inserted))
	}
	if s.State != StateIdle {
		t.Errorf("state = %v", s.State)
	}
	if len(msgs) == 0 || !strings.Contains(msgs[0], "Done!") {
		t.Errorf("replies = %v", msgs)
	}
}

func TestConflictSuggestsAndOverrides(t *testing.T) {
	dir := newStubDirectory(map[string]string{"Dana": "dana@example.com"})
	cal := &stubCal{events: []domain.Event{{
		Title: "Standup",
		Start: time.Date(2025, time.March, 11, 14, 0, 0, 0, time.UTC),
		End:   time.Date(2025, time.March, 11, 15, 0, 0, 0, time.UTC),
	}}}
	c := newTestController(dir, cal, &stubNotifier{})
	s := newTestSession(t, c)

	msgs := c.HandleTurn(context.Background(), s, "Schedule a meeting with Dana tomorrow at 2pm")
	if len(cal.inserted) != 0 {
		t.Fatalf("insert before override: %d", len(cal.inserted))
	}
	if s.State != StateAwaitingConflictChoice {
		t.Fatalf("state = %v", s.State)
	}
	if !strings.Contains(msgs[0], "overlapping") {
		t.Errorf("conflict message = %q", msgs[0])
	}

	msgs = c.HandleTurn(context.Background(), s, "book it anyway")
	if len(cal.inserted) != 1 {
		t.Fatalf("insert calls = %d, want 1", len(cal.inserted))
	}
	if !strings.Contains(msgs[0], "Done!") {
		t.Errorf("replies = %v", msgs)
	}
	if !s.Scheduled[0].Start.Equal(time.Date(2025, time.March, 11, 14, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %v", s.Scheduled[0].Start)
	}
}

func TestConflictRescheduleWithNewTime(t *testing.T) {
	dir := newStubDirectory(map[string]string{"Dana": "dana@example.com"})
	cal := &stubCal{events: []domain.Event{{
		Start: time.Date(2025, time.March, 11, 14, 0, 0, 0, time.UTC),
		End:   time.Date(2025, time.March, 11, 15, 0, 0, 0, time.UTC),
	}}}
	c := newTestController(dir, cal, &stubNotifier{})
	s := newTestSession(t, c)

	c.HandleTurn(context.Background(), s, "Schedule a meeting with Dana tomorrow at 2pm")
	msgs := c.HandleTurn(context.Background(), s, "make it 4pm instead")

	if len(cal.inserted) != 1 {
		t.Fatalf("insert calls = %d, want 1", len(cal.inserted))
	}
	if got := cal.inserted[0].Start; !got.Equal(time.Date(2025, time.March, 11, 16, 0, 0, 0, time.UTC)) {
		t.Errorf("rescheduled start = %v, want 16:00", got)
	}
	if !strings.Contains(msgs[0], "4:00 PM") {
		t.Errorf("confirmation = %q", msgs[0])
	}
}

func TestPastTimeRejectedThenOverridden(t *testing.T) {
	dir := newStubDirectory(map[string]string{"Dana": "dana@example.com"})
	cal := &stubCal{}
	c := newTestController(dir, cal, &stubNotifier{})
	s := newTestSession(t, c)

	// testNow is 9:00; 8am today is in the past.
	msgs := c.HandleTurn(context.Background(), s, "schedule a meeting with Dana today at 8am")
	if len(cal.inserted) != 0 {
		t.Fatalf("insert for past time: %d", len(cal.inserted))
	}
	if !strings.Contains(msgs[0], "8:00 AM") || !strings.Contains(msgs[0], "passed") {
		t.Errorf("past-time message = %q", msgs[0])
	}
	if s.State != StateAwaitingConflictChoice {
		t.Fatalf("state = %v", s.State)
	}

	c.HandleTurn(context.Background(), s, "yes, book it anyway")
	if len(cal.inserted) != 1 {
		t.Fatalf("insert calls = %d, want 1", len(cal.inserted))
	}
}

func TestAttendeeInsertErrorReentersEmailFlow(t *testing.T) {
	dir := newStubDirectory(map[string]string{"Dana": "bad@example.com"})
	cal := &stubCal{insertErr: &domain.InsertError{Kind: domain.InsertAttendee, Message: "invalid attendee"}}
	c := newTestController(dir, cal, &stubNotifier{})
	s := newTestSession(t, c)

	msgs := c.HandleTurn(context.Background(), s, "Schedule a meeting with Dana tomorrow at 2pm")
	if s.State != StateAwaitingEmail {
		t.Fatalf("state = %v", s.State)
	}
	if s.Pending == nil || s.Pending.MissingIndex != 0 {
		t.Fatalf("pending = %+v", s.Pending)
	}
	if !strings.Contains(msgs[0], "Dana") {
		t.Errorf("reply = %q", msgs[0])
	}

	cal.insertErr = nil
	msgs = c.HandleTurn(context.Background(), s, "dana@corrected.com")
	if len(cal.inserted) != 2 {
		t.Fatalf("insert calls = %d, want 2", len(cal.inserted))
	}
	if got := cal.inserted[1].Attendees[0]; got != "dana@corrected.com" {
		t.Errorf("retried with %q", got)
	}
	if !strings.Contains(msgs[0], "Done!") {
		t.Errorf("replies = %v", msgs)
	}
}

func TestNonAttendeeInsertErrorApologizesAndKeepsDraft(t *testing.T) {
	dir := newStubDirectory(map[string]string{"Dana": "dana@example.com"})
	cal := &stubCal{insertErr: &domain.InsertError{Kind: domain.InsertQuota, Message: "rate limited"}}
	c := newTestController(dir, cal, &stubNotifier{})
	s := newTestSession(t, c)

	msgs := c.HandleTurn(context.Background(), s, "Schedule a meeting with Dana tomorrow at 2pm")
	if s.State != StateIdle {
		t.Fatalf("state = %v, want idle", s.State)
	}
	if s.Pending == nil {
		t.Fatal("draft was discarded")
	}
	if !strings.Contains(strings.ToLower(msgs[0]), "sorry") {
		t.Errorf("reply = %q", msgs[0])
	}

	cal.insertErr = nil
	msgs = c.HandleTurn(context.Background(), s, "try again")
	if len(cal.inserted) != 2 {
		t.Fatalf("insert calls = %d, want 2", len(cal.inserted))
	}
	if !strings.Contains(msgs[0], "Done!") {
		t.Errorf("replies = %v", msgs)
	}
}

func TestDocumentRequestFlow(t *testing.T) {
	dir := newStubDirectory(map[string]string{"Dana": "dana@example.com"})
	cal := &stubCal{}
	notifier := &stubNotifier{}
	c := newTestController(dir, cal, notifier)
	s := newTestSession(t, c)

	c.HandleTurn(context.Background(), s, "Schedule a meeting with Dana tomorrow at 2pm")
	if s.Current == nil {
		t.Fatal("no current meeting after booking")
	}

	msgs := c.HandleTurn(context.Background(), s, "yes please, send the document request")
	if notifier.calls != 1 {
		t.Fatalf("notifier calls = %d, want 1", notifier.calls)
	}
	if s.Current != nil {
		t.Error("current meeting not cleared")
	}
	if !strings.Contains(msgs[0], "documents") {
		t.Errorf("reply = %q", msgs[0])
	}
	if !s.Scheduled[0].DocRequestSent {
		t.Error("doc request flag not set")
	}
}

func TestDocumentOfferDeclined(t *testing.T) {
	dir := newStubDirectory(map[string]string{"Dana": "dana@example.com"})
	notifier := &stubNotifier{}
	c := newTestController(dir, &stubCal{}, notifier)
	s := newTestSession(t, c)

	c.HandleTurn(context.Background(), s, "Schedule a meeting with Dana tomorrow at 2pm")
	c.HandleTurn(context.Background(), s, "no")
	if notifier.calls != 0 {
		t.Errorf("notifier calls = %d, want 0", notifier.calls)
	}
	if s.Current != nil {
		t.Error("current meeting not cleared after decline")
	}
}

func TestDirectorySearchFailureIsNotFatal(t *testing.T) {
	dir := newStubDirectory(nil)
	dir.searchErr = errors.New("directory down")
	cal := &stubCal{}
	c := newTestController(dir, cal, &stubNotifier{})
	s := newTestSession(t, c)

	msgs := c.HandleTurn(context.Background(), s, "Schedule a meeting with Dana tomorrow at 2pm")
	// Failure surfaces as "not found", asking for the email.
	if s.State != StateAwaitingNewContactEmail {
		t.Fatalf("state = %v", s.State)
	}
	if len(msgs) != 1 {
		t.Errorf("replies = %v", msgs)
	}
}

func TestCannedReplies(t *testing.T) {
	c := newTestController(newStubDirectory(nil), &stubCal{}, &stubNotifier{})
	s := newTestSession(t, c)

	msgs := c.HandleTurn(context.Background(), s, "hello")
	if len(msgs) != 1 || !strings.Contains(strings.ToLower(msgs[0]), "schedule") {
		t.Errorf("greeting = %v", msgs)
	}

	msgs = c.HandleTurn(context.Background(), s, "thanks!")
	if len(msgs) != 1 {
		t.Errorf("thanks = %v", msgs)
	}
}

func TestSlashCommands(t *testing.T) {
	dir := newStubDirectory(map[string]string{"Dana": "dana@example.com"})
	c := newTestController(dir, &stubCal{}, &stubNotifier{})
	s := newTestSession(t, c)

	msgs := c.HandleTurn(context.Background(), s, "/help")
	if len(msgs) != 1 || !strings.Contains(msgs[0], "/meetings") {
		t.Errorf("help = %v", msgs)
	}

	msgs = c.HandleTurn(context.Background(), s, "/meetings")
	if !strings.Contains(msgs[0], "No meetings") {
		t.Errorf("empty meetings = %v", msgs)
	}

	c.HandleTurn(context.Background(), s, "Schedule a meeting with Dana tomorrow at 2pm")
	msgs = c.HandleTurn(context.Background(), s, "/meetings")
	if !strings.Contains(msgs[0], "Meeting with Dana") {
		t.Errorf("meetings = %v", msgs)
	}

	msgs = c.HandleTurn(context.Background(), s, "/new")
	if len(s.Scheduled) != 0 || s.Pending != nil {
		t.Error("session not reset")
	}
	if len(msgs) != 1 {
		t.Errorf("new = %v", msgs)
	}
}

func TestPlaceholderLinkWhenProviderReturnsNone(t *testing.T) {
	dir := newStubDirectory(map[string]string{"Dana": "dana@example.com"})
	cal := &stubCal{} // meetLink empty
	c := newTestController(dir, cal, &stubNotifier{})
	s := newTestSession(t, c)

	c.HandleTurn(context.Background(), s, "Schedule a meeting with Dana tomorrow at 2pm")
	if len(s.Scheduled) != 1 {
		t.Fatal("not booked")
	}
	if !strings.HasPrefix(s.Scheduled[0].MeetLink, "https://meet.google.com/") {
		t.Errorf("placeholder link = %q", s.Scheduled[0].MeetLink)
	}
}
