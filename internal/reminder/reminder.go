package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"meetly/internal/domain"
)

// Reminder sends each chat a morning summary of its meetings for the day.
type Reminder struct {
	store  domain.Store
	bus    domain.MessageBus
	cron   *cron.Cron
	spec   string
	logger *slog.Logger
}

func New(store domain.Store, bus domain.MessageBus, spec string, loc *time.Location, logger *slog.Logger) *Reminder {
	if spec == "" {
		spec = "0 8 * * *"
	}
	if loc == nil {
		loc = time.Local
	}
	return &Reminder{
		store:  store,
		bus:    bus,
		cron:   cron.New(cron.WithLocation(loc)),
		spec:   spec,
		logger: logger,
	}
}

func (r *Reminder) Start() error {
	_, err := r.cron.AddFunc(r.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		r.RunOnce(ctx, time.Now())
	})
	if err != nil {
		return fmt.Errorf("schedule reminder job: %w", err)
	}
	r.cron.Start()
	r.logger.Info("reminder job scheduled", "spec", r.spec)
	return nil
}

func (r *Reminder) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}

// RunOnce sends today's reminders. Split out from the cron closure so the
// summary logic is testable without waiting for a tick.
func (r *Reminder) RunOnce(ctx context.Context, now time.Time) {
	meetings, err := r.store.MeetingsForDay(ctx, now)
	if err != nil {
		r.logger.Error("reminder: cannot list meetings", "error", err)
		return
	}
	if len(meetings) == 0 {
		return
	}

	type chatKey struct{ channel, chatID string }
	byChat := make(map[chatKey][]*domain.ScheduledMeeting)
	var order []chatKey
	for _, m := range meetings {
		k := chatKey{m.Channel, m.ChatID}
		if _, seen := byChat[k]; !seen {
			order = append(order, k)
		}
		byChat[k] = append(byChat[k], m)
	}

	for _, k := range order {
		r.bus.SendOutbound(domain.OutboundMessage{
			Channel: k.channel,
			ChatID:  k.chatID,
			Content: Summary(byChat[k]),
		})
	}
	r.logger.Info("reminders sent", "chats", len(order), "meetings", len(meetings))
}

// Summary renders the reminder text for one chat's meetings.
func Summary(meetings []*domain.ScheduledMeeting) string {
	var b strings.Builder
	if len(meetings) == 1 {
		b.WriteString("Good morning! You have 1 meeting today:\n")
	} else {
		fmt.Fprintf(&b, "Good morning! You have %d meetings today:\n", len(meetings))
	}
	for _, m := range meetings {
		fmt.Fprintf(&b, "• %s at %s", m.Title, m.Start.Format("3:04 PM"))
		if m.MeetLink != "" {
			b.WriteString(" - " + m.MeetLink)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
