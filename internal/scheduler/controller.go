package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"meetly/internal/calendar"
	"meetly/internal/domain"
	"meetly/internal/intent"
	"meetly/internal/notify"
	"meetly/internal/replies"
)

var emailPat = regexp.MustCompile(`\S+@\S+\.\S+`)

// Controller sequences intent parsing, contact resolution, availability
// checks and calendar inserts into a turn-based dialogue.
type Controller struct {
	parser    intent.Parser
	directory domain.Directory
	checker   *calendar.Checker
	calendar  domain.Calendar
	store     domain.Store
	notifier  notify.Notifier
	replies   *replies.Pack
	sessions  *Manager
	logger    *slog.Logger
	now       func() time.Time
}

type ControllerConfig struct {
	Parser    intent.Parser
	Directory domain.Directory
	Checker   *calendar.Checker
	Calendar  domain.Calendar
	Store     domain.Store // optional
	Notifier  notify.Notifier
	Replies   *replies.Pack
	Sessions  *Manager
	Logger    *slog.Logger
	Now       func() time.Time // defaults to time.Now
}

func NewController(cfg ControllerConfig) *Controller {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Replies == nil {
		cfg.Replies = replies.Builtin()
	}
	return &Controller{
		parser:    cfg.Parser,
		directory: cfg.Directory,
		checker:   cfg.Checker,
		calendar:  cfg.Calendar,
		store:     cfg.Store,
		notifier:  cfg.Notifier,
		replies:   cfg.Replies,
		sessions:  cfg.Sessions,
		logger:    cfg.Logger,
		now:       cfg.Now,
	}
}

func (c *Controller) Sessions() *Manager { return c.sessions }

// HandleTurn processes one user turn against the session state machine and
// returns the assistant's replies. Callers hold the session lock; state is
// only ever mutated here, one turn at a time.
func (c *Controller) HandleTurn(ctx context.Context, s *Session, input string) []string {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil
	}

	if msgs, handled := c.handleCommand(ctx, s, input); handled {
		return msgs
	}

	lower := strings.ToLower(input)

	// A reported conflict or past time waits for an override or a new time.
	if s.State == StateAwaitingConflictChoice && s.Pending != nil {
		if affirms(lower, "proceed", "original", "anyway", "yes") {
			req := s.Pending
			req.ConflictOverridden = true
			s.State = StateIdle
			return c.book(ctx, s, req)
		}
		if hour, minute, ok := intent.ExtractClock(input); ok {
			req := s.Pending
			req.Hour, req.Minute = hour, minute
			if d, ok := intent.ExtractDate(input, c.now()); ok {
				req.Date = d
			}
			req.ConflictOverridden = false
			s.State = StateIdle
			return c.book(ctx, s, req)
		}
		return []string{"Reply with a new time like \"3pm\", or say \"proceed anyway\" to book the original slot."}
	}

	// A brand-new contact's email was requested.
	if s.State == StateAwaitingNewContactEmail && s.Pending != nil {
		email := emailPat.FindString(input)
		if email == "" {
			return []string{fmt.Sprintf("That doesn't look like a valid email address. What is %s's email?", s.NewContactName)}
		}
		if err := c.directory.Create(ctx, s.NewContactName, email); err != nil {
			// The booking can still proceed with the address in hand.
			c.logger.Warn("cannot create contact", "name", s.NewContactName, "error", err)
		}
		req := s.Pending
		if req.MissingIndex >= 0 && req.MissingIndex < len(req.Emails) {
			req.Emails[req.MissingIndex] = email
		}
		req.MissingIndex = -1
		s.NewContactName = ""
		s.State = StateIdle
		return c.book(ctx, s, req)
	}

	// A corrected email for a participant the calendar rejected.
	if s.State == StateAwaitingEmail && s.Pending != nil {
		req := s.Pending
		name := ""
		if req.MissingIndex >= 0 && req.MissingIndex < len(req.Participants) {
			name = req.Participants[req.MissingIndex]
		}
		email := emailPat.FindString(input)
		if email == "" {
			return []string{fmt.Sprintf("That doesn't look like a valid email address. What is %s's email?", name)}
		}
		if req.MissingIndex >= 0 && req.MissingIndex < len(req.Emails) {
			req.Emails[req.MissingIndex] = email
		}
		req.MissingIndex = -1
		s.State = StateIdle
		return c.book(ctx, s, req)
	}

	// Post-booking document offer.
	if s.Current != nil {
		if affirms(lower, "yes", "document", "send", "please do") {
			return c.requestDocuments(ctx, s)
		}
		if lower == "no" || affirms(lower, "not now", "no thanks", "skip") {
			s.Current = nil
			return []string{"No problem. Anything else I can schedule for you?"}
		}
	}

	// A failed insert leaves the draft retriable.
	if s.Pending != nil && s.State == StateIdle && affirms(lower, "try again", "retry") {
		return c.book(ctx, s, s.Pending)
	}

	if looksLikeSchedulingRequest(lower) {
		req, err := c.parser.Parse(ctx, input, c.now())
		if err != nil {
			if errors.Is(err, intent.ErrInsufficient) {
				return []string{"I'd love to help with that. Who should I invite, and when? For example: \"Schedule a meeting with Dana tomorrow at 2pm\"."}
			}
			c.logger.Error("intent parsing failed", "error", err)
			return []string{"Sorry, I had trouble understanding that request. Could you rephrase it?"}
		}
		return c.book(ctx, s, req)
	}

	reply := c.replies.Lookup(input, s.ReplySeq)
	s.ReplySeq++
	return []string{reply}
}

func (c *Controller) requestDocuments(ctx context.Context, s *Session) []string {
	meeting := s.Current
	s.Current = nil

	if err := c.notifier.RequestDocuments(ctx, meeting); err != nil {
		c.logger.Error("document request failed", "meeting", meeting.ID, "error", err)
		return []string{"I couldn't reach everyone for documents just now, but the meeting is booked."}
	}
	meeting.DocRequestSent = true
	if c.store != nil {
		if err := c.store.MarkDocRequestSent(ctx, meeting.ID); err != nil {
			c.logger.Warn("cannot flag document request", "meeting", meeting.ID, "error", err)
		}
	}
	return []string{fmt.Sprintf("Done, I've asked the participants of %q for documents and agenda items.", meeting.Title)}
}

// affirms reports whether the input contains any of the given cues.
func affirms(lower string, cues ...string) bool {
	for _, cue := range cues {
		if strings.Contains(lower, cue) {
			return true
		}
	}
	return false
}

func looksLikeSchedulingRequest(lower string) bool {
	if strings.Contains(lower, "meeting") || strings.Contains(lower, "schedule") || strings.Contains(lower, "appointment") {
		return true
	}
	return strings.Contains(lower, "with") && strings.Contains(lower, " at ")
}
