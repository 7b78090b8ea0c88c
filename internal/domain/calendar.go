package domain

import (
	"context"
	"errors"
	"time"
)

// Event is a busy interval on the calendar. Intervals are half-open:
// an event occupies [Start, End).
type Event struct {
	ID    string
	Title string
	Start time.Time
	End   time.Time
}

// Availability is the outcome of a conflict check.
type Availability struct {
	HasConflict bool
	Suggested   []time.Time
}

// EventInput is the payload for creating a calendar event.
type EventInput struct {
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	Attendees   []string
}

// CreatedEvent is what the calendar returns after a successful insert.
type CreatedEvent struct {
	ID       string
	HTMLLink string
	MeetLink string
}

// Calendar is the external calendar boundary.
type Calendar interface {
	EventsForDay(ctx context.Context, day time.Time) ([]Event, error)
	Insert(ctx context.Context, in EventInput) (*CreatedEvent, error)
}

// InsertErrorKind classifies calendar insert failures so the engine can
// decide whether a failure is worth bouncing back to the user as a
// participant problem or just apologizing for.
type InsertErrorKind int

const (
	InsertUnknown InsertErrorKind = iota
	InsertAttendee
	InsertAuth
	InsertQuota
	InsertInvalid
)

type InsertError struct {
	Kind    InsertErrorKind
	Message string
}

func (e *InsertError) Error() string { return e.Message }

// InsertKind extracts the failure kind from err, InsertUnknown when err is
// not an InsertError.
func InsertKind(err error) InsertErrorKind {
	var ie *InsertError
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return InsertUnknown
}
