package scheduler

import (
	"context"
	"fmt"
	"strings"

	"meetly/internal/calendar"
)

const helpText = `Here's what I can do:
/help - show this message
/new - start a fresh conversation
/meetings - list the meetings booked in this chat
/status - show where we are in the current request

Or just talk to me: "Schedule a meeting with Dana tomorrow at 2pm".`

// handleCommand intercepts slash commands before normal dispatch.
func (c *Controller) handleCommand(ctx context.Context, s *Session, input string) ([]string, bool) {
	if !strings.HasPrefix(input, "/") {
		return nil, false
	}
	cmd := strings.ToLower(strings.Fields(input)[0])

	switch cmd {
	case "/help", "/start":
		return []string{helpText}, true

	case "/new", "/clear":
		if err := c.sessions.Clear(ctx, s); err != nil {
			c.logger.Error("cannot clear session", "key", s.Key, "error", err)
			return []string{"I couldn't fully reset the conversation, but let's start over anyway."}, true
		}
		return []string{"Fresh start! What would you like to schedule?"}, true

	case "/meetings":
		return []string{c.meetingList(s)}, true

	case "/status":
		return []string{c.statusLine(s)}, true
	}

	return []string{fmt.Sprintf("I don't know the command %s. Try /help.", cmd)}, true
}

func (c *Controller) meetingList(s *Session) string {
	if len(s.Scheduled) == 0 {
		return "No meetings booked in this chat yet."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You have %d meeting(s) booked:\n", len(s.Scheduled))
	for _, m := range s.Scheduled {
		fmt.Fprintf(&b, "• %s on %s at %s", m.Title, calendar.FormatDate(m.Start), calendar.FormatClock(m.Start))
		if m.MeetLink != "" {
			b.WriteString("\n  " + m.MeetLink)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (c *Controller) statusLine(s *Session) string {
	switch s.State {
	case StateAwaitingConflictChoice:
		return "I'm waiting to hear whether to book the conflicting time anyway or pick a new one."
	case StateAwaitingNewContactEmail:
		return fmt.Sprintf("I'm waiting for %s's email address.", s.NewContactName)
	case StateAwaitingEmail:
		name := ""
		if s.Pending != nil && s.Pending.MissingIndex >= 0 && s.Pending.MissingIndex < len(s.Pending.Participants) {
			name = s.Pending.Participants[s.Pending.MissingIndex]
		}
		return fmt.Sprintf("I'm waiting for a corrected email address for %s.", name)
	}
	if s.Pending != nil {
		return "There's a saved meeting draft; say \"try again\" to retry booking it."
	}
	return "All quiet. Ask me to schedule something!"
}
