package calendar

import (
	"context"
	"fmt"
	"time"

	"meetly/internal/domain"
)

// Checker finds conflicts for a proposed window and computes alternative
// free slots within working hours.
type Checker struct {
	cal            domain.Calendar
	workdayStart   int
	workdayEnd     int
	slotStep       time.Duration
	maxSuggestions int
}

type CheckerConfig struct {
	WorkdayStart   int // hour, local
	WorkdayEnd     int // hour, local
	SlotStepMin    int
	MaxSuggestions int
}

func NewChecker(cal domain.Calendar, cfg CheckerConfig) *Checker {
	if cfg.WorkdayStart <= 0 {
		cfg.WorkdayStart = 9
	}
	if cfg.WorkdayEnd <= cfg.WorkdayStart {
		cfg.WorkdayEnd = 18
	}
	if cfg.SlotStepMin <= 0 {
		cfg.SlotStepMin = 30
	}
	if cfg.MaxSuggestions <= 0 {
		cfg.MaxSuggestions = 3
	}
	return &Checker{
		cal:            cal,
		workdayStart:   cfg.WorkdayStart,
		workdayEnd:     cfg.WorkdayEnd,
		slotStep:       time.Duration(cfg.SlotStepMin) * time.Minute,
		maxSuggestions: cfg.MaxSuggestions,
	}
}

// Overlaps reports whether [start, end) overlaps [eventStart, eventEnd).
// Touching boundaries do not overlap.
func Overlaps(start, end, eventStart, eventEnd time.Time) bool {
	return start.Before(eventEnd) && end.After(eventStart)
}

// InPast reports whether the proposed start is strictly before now.
// This check is independent of conflict detection.
func InPast(start, now time.Time) bool {
	return start.Before(now)
}

// Check fetches the day's events and reports whether the proposed window
// conflicts, suggesting up to maxSuggestions alternative start times.
func (c *Checker) Check(ctx context.Context, start, end, now time.Time) (*domain.Availability, error) {
	events, err := c.cal.EventsForDay(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	avail := &domain.Availability{}
	for _, ev := range events {
		if Overlaps(start, end, ev.Start, ev.End) {
			avail.HasConflict = true
			break
		}
	}
	if avail.HasConflict {
		avail.Suggested = c.freeSlots(events, start, end.Sub(start), now)
	}
	return avail, nil
}

// freeSlots walks the working day in fixed steps, jumping to a blocking
// event's end instead of stepping past it, and collects conflict-free
// start times for the requested duration.
func (c *Checker) freeSlots(events []domain.Event, day time.Time, duration time.Duration, now time.Time) []time.Time {
	loc := day.Location()
	cursor := time.Date(day.Year(), day.Month(), day.Day(), c.workdayStart, 0, 0, 0, loc)
	if now.After(cursor) {
		cursor = now
	}
	dayEnd := time.Date(day.Year(), day.Month(), day.Day(), c.workdayEnd, 0, 0, 0, loc)

	var slots []time.Time
	for cursor.Add(duration).Before(dayEnd) || cursor.Add(duration).Equal(dayEnd) {
		if len(slots) >= c.maxSuggestions {
			break
		}
		blocked := false
		for _, ev := range events {
			if Overlaps(cursor, cursor.Add(duration), ev.Start, ev.End) {
				blocked = true
				cursor = ev.End
				break
			}
		}
		if blocked {
			continue
		}
		slots = append(slots, cursor)
		cursor = cursor.Add(c.slotStep)
	}
	return slots
}
