package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"meetly/internal/domain"
)

// Notifier asks meeting participants for documents or an agenda ahead of
// a booked meeting.
type Notifier interface {
	RequestDocuments(ctx context.Context, meeting *domain.ScheduledMeeting) error
}

// SendGridNotifier emails every participant with a resolved address.
type SendGridNotifier struct {
	apiKey      string
	fromName    string
	fromAddress string
	logger      *slog.Logger
}

func NewSendGridNotifier(apiKey, fromName, fromAddress string, logger *slog.Logger) *SendGridNotifier {
	if fromName == "" {
		fromName = "Meetly"
	}
	return &SendGridNotifier{
		apiKey:      apiKey,
		fromName:    fromName,
		fromAddress: fromAddress,
		logger:      logger,
	}
}

func (n *SendGridNotifier) RequestDocuments(ctx context.Context, meeting *domain.ScheduledMeeting) error {
	subject := fmt.Sprintf("Documents requested for %q", meeting.Title)
	when := meeting.Start.Format("Monday, January 2, 2006 at 3:04 PM")

	var failed []string
	for i, email := range meeting.Emails {
		if email == "" {
			continue
		}
		name := email
		if i < len(meeting.Participants) {
			name = meeting.Participants[i]
		}

		plain := fmt.Sprintf("Hi %s,\n\nPlease share any documents or agenda items for %q on %s.\n\nThanks,\n%s",
			name, meeting.Title, when, n.fromName)
		html := fmt.Sprintf("<p>Hi %s,</p><p>Please share any documents or agenda items for <strong>%s</strong> on %s.</p><p>Thanks,<br>%s</p>",
			name, meeting.Title, when, n.fromName)

		from := mail.NewEmail(n.fromName, n.fromAddress)
		to := mail.NewEmail(name, email)
		message := mail.NewSingleEmail(from, subject, to, plain, html)

		resp, err := sendgrid.NewSendClient(n.apiKey).Send(message)
		if err != nil {
			n.logger.Error("document request email failed", "to", email, "error", err)
			failed = append(failed, email)
			continue
		}
		if resp.StatusCode >= 400 {
			n.logger.Error("sendgrid returned error status", "to", email, "status", resp.StatusCode, "body", resp.Body)
			failed = append(failed, email)
			continue
		}
		n.logger.Info("document request email sent", "to", email, "meeting", meeting.ID)
	}

	if len(failed) > 0 {
		return fmt.Errorf("document request failed for: %s", strings.Join(failed, ", "))
	}
	return nil
}

// LogNotifier is the no-op fallback used when email is not configured.
// It only records the request.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n *LogNotifier) RequestDocuments(ctx context.Context, meeting *domain.ScheduledMeeting) error {
	n.Logger.Info("document request (email disabled)",
		"meeting", meeting.ID,
		"title", meeting.Title,
		"participants", strings.Join(meeting.Participants, ", "),
	)
	return nil
}
