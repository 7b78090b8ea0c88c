package calendar

import (
	"bytes"
	"fmt"
	"time"

	"github.com/emersion/go-ical"

	"meetly/internal/domain"
)

// EncodeICS renders booked meetings as an iCalendar document.
func EncodeICS(meetings []*domain.ScheduledMeeting) ([]byte, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//Meetly//Scheduler//EN")

	for _, m := range meetings {
		ev := ical.NewEvent()
		ev.Props.SetText(ical.PropUID, m.ID+"@meetly")
		ev.Props.SetText(ical.PropSummary, m.Title)
		if m.MeetLink != "" {
			ev.Props.SetText(ical.PropDescription, "Join: "+m.MeetLink)
			ev.Props.SetText(ical.PropLocation, m.MeetLink)
		}
		ev.Props.SetDateTime(ical.PropDateTimeStamp, m.CreatedAt.UTC())
		ev.Props.SetDateTime(ical.PropDateTimeStart, m.Start)
		ev.Props.SetDateTime(ical.PropDateTimeEnd, m.End)
		cal.Children = append(cal.Children, ev.Component)
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("encode ics: %w", err)
	}
	return buf.Bytes(), nil
}

// FormatDate renders a meeting date the way confirmation messages show it,
// e.g. "Tuesday, March 11, 2025".
func FormatDate(t time.Time) string {
	return t.Format("Monday, January 2, 2006")
}

// FormatClock renders a time of day as "2:00 PM".
func FormatClock(t time.Time) string {
	return t.Format("3:04 PM")
}
