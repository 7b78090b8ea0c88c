package domain

import "time"

// MeetingRequest is a draft meeting distilled from one user utterance.
// Participants and Emails are parallel slices; an empty email string means
// the address is still unresolved. MissingIndex points at the participant
// the engine is currently asking the user about, -1 when none.
type MeetingRequest struct {
	Title              string
	Date               time.Time
	Hour               int
	Minute             int
	DurationMin        int
	Participants       []string
	Emails             []string
	MissingIndex       int
	ConflictOverridden bool
}

func (r *MeetingRequest) Start() time.Time {
	return time.Date(r.Date.Year(), r.Date.Month(), r.Date.Day(), r.Hour, r.Minute, 0, 0, r.Date.Location())
}

func (r *MeetingRequest) End() time.Time {
	return r.Start().Add(time.Duration(r.DurationMin) * time.Minute)
}

// AllResolved reports whether every participant has an email address.
func (r *MeetingRequest) AllResolved() bool {
	for _, e := range r.Emails {
		if e == "" {
			return false
		}
	}
	return true
}

// FirstMissing returns the index of the first participant without an email,
// or -1 when all are resolved.
func (r *MeetingRequest) FirstMissing() int {
	for i, e := range r.Emails {
		if e == "" {
			return i
		}
	}
	return -1
}

// ScheduledMeeting is a successfully booked meeting.
type ScheduledMeeting struct {
	ID             string
	Title          string
	Start          time.Time
	End            time.Time
	Participants   []string
	Emails         []string
	MeetLink       string
	DocRequestSent bool
	Channel        string
	ChatID         string
	CreatedAt      time.Time
}
