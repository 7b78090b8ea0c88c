package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"meetly/internal/calendar"
	"meetly/internal/domain"
)

// book runs the meeting-creation workflow for a draft. It either returns a
// confirmation or stashes the draft on the session and asks a clarifying
// question. Precedence: past-time check, conflict check, email resolution,
// calendar insert.
func (c *Controller) book(ctx context.Context, s *Session, req *domain.MeetingRequest) []string {
	start, end := req.Start(), req.End()
	now := c.now()

	if !req.ConflictOverridden && calendar.InPast(start, now) {
		s.Pending = req
		s.State = StateAwaitingConflictChoice
		return []string{fmt.Sprintf(
			"That time (%s at %s) has already passed. Would you like to pick a different time, or book it anyway?",
			calendar.FormatDate(start), calendar.FormatClock(start),
		)}
	}

	if !req.ConflictOverridden {
		avail, err := c.checker.Check(ctx, start, end, now)
		if err != nil {
			// Availability is best-effort; book without it rather than failing the turn.
			c.logger.Warn("availability check failed, proceeding", "error", err)
		} else if avail.HasConflict {
			s.Pending = req
			s.State = StateAwaitingConflictChoice
			return []string{conflictMessage(start, avail.Suggested)}
		}
	}

	c.resolveEmails(ctx, req)
	if idx := req.FirstMissing(); idx >= 0 {
		req.MissingIndex = idx
		s.Pending = req
		s.State = StateAwaitingNewContactEmail
		s.NewContactName = req.Participants[idx]
		return []string{fmt.Sprintf(
			"I couldn't find %s in your contacts. What's their email address? I'll add them as a new contact.",
			req.Participants[idx],
		)}
	}

	created, err := c.calendar.Insert(ctx, domain.EventInput{
		Title:       req.Title,
		Description: "Scheduled via Meetly with " + strings.Join(req.Participants, ", "),
		Start:       start,
		End:         end,
		Attendees:   req.Emails,
	})
	if err != nil {
		return c.insertFailed(s, req, err)
	}

	link := created.MeetLink
	if link == "" {
		link = calendar.PlaceholderMeetLink()
	}

	meeting := &domain.ScheduledMeeting{
		ID:           uuid.NewString(),
		Title:        req.Title,
		Start:        start,
		End:          end,
		Participants: req.Participants,
		Emails:       req.Emails,
		MeetLink:     link,
		Channel:      s.Channel,
		ChatID:       s.ChatID,
		CreatedAt:    now,
	}
	if c.store != nil {
		if err := c.store.SaveMeeting(ctx, meeting); err != nil {
			c.logger.Warn("cannot persist meeting", "id", meeting.ID, "error", err)
		}
	}

	s.Scheduled = append(s.Scheduled, meeting)
	s.Current = meeting
	s.Pending = nil
	s.NewContactName = ""
	s.State = StateIdle

	c.logger.Info("meeting booked",
		"id", meeting.ID,
		"title", meeting.Title,
		"start", meeting.Start,
		"participants", len(meeting.Participants),
	)

	return []string{
		fmt.Sprintf("Done! I've scheduled %q for %s at %s and sent invitations to %s.\nJoin link: %s",
			meeting.Title, calendar.FormatDate(start), calendar.FormatClock(start),
			strings.Join(meeting.Emails, ", "), meeting.MeetLink),
		"Would you like me to request documents or agenda items from the participants?",
	}
}

// insertFailed sorts a calendar failure into the two user-visible paths.
// Only attendee-attributable failures re-enter the email flow; everything
// else gets an apology and the draft stays retriable.
func (c *Controller) insertFailed(s *Session, req *domain.MeetingRequest, err error) []string {
	kind := domain.InsertKind(err)
	c.logger.Error("calendar insert failed", "kind", kind, "error", err)

	if kind == domain.InsertAttendee && len(req.Participants) > 0 {
		req.MissingIndex = 0
		s.Pending = req
		s.State = StateAwaitingEmail
		return []string{fmt.Sprintf(
			"The calendar rejected the invitation for %s. Could you double-check their email address and send it again?",
			req.Participants[0],
		)}
	}

	s.Pending = req
	s.State = StateIdle
	return []string{
		"Sorry, I couldn't create the calendar event just now. Your meeting details are saved; say \"try again\" in a moment and I'll retry.",
	}
}

// resolveEmails fills unresolved addresses with a parallel directory fan-out.
// Each goroutine writes only its own index, so result order matches input
// order regardless of completion order.
func (c *Controller) resolveEmails(ctx context.Context, req *domain.MeetingRequest) {
	var wg sync.WaitGroup
	for i := range req.Participants {
		if req.Emails[i] != "" {
			continue
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			contacts, err := c.directory.Search(ctx, req.Participants[i])
			if err != nil {
				c.logger.Warn("contact search failed", "name", req.Participants[i], "error", err)
				return
			}
			if len(contacts) > 0 && contacts[0].Email != "" {
				req.Emails[i] = contacts[0].Email
			}
		}(i)
	}
	wg.Wait()
}

func conflictMessage(start time.Time, suggested []time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You already have an event overlapping %s at %s.",
		calendar.FormatDate(start), calendar.FormatClock(start))
	if len(suggested) > 0 {
		b.WriteString(" Here are some free alternatives:\n")
		for _, t := range suggested {
			fmt.Fprintf(&b, "• %s\n", calendar.FormatClock(t))
		}
		b.WriteString("Reply with a new time, or say \"proceed anyway\" to keep the original.")
	} else {
		b.WriteString(" I couldn't find a free slot that day. Reply with a new time, or say \"proceed anyway\" to keep the original.")
	}
	return b.String()
}
