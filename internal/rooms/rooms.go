// Package rooms computes room availability from a flat list of bookings.
//
// Build groups events per room feed, merges overlapping or nearly adjacent
// bookings into usages, finds the free holes between them and assembles an
// agenda of rooms that are free now plus upcoming free windows. It does no
// I/O and keeps no state between calls.
package rooms

import (
	"fmt"
	"time"

	"github.com/cpuguy83/roombar/internal/calendar"
)

// DefaultMinDelay is the merge tolerance and the shortest reported hole.
const DefaultMinDelay = 5 * time.Minute

// Status describes whether a room is free right now.
type Status int

const (
	// Busy means the room is in use now, or its next booking is more than
	// a day boundary away and there is nothing to count down to.
	Busy Status = iota
	// FreeUntil means the room is free until FreeTo, later today.
	FreeUntil
	// FreeIndefinitely means the room has no known bookings at all.
	FreeIndefinitely
)

func (s Status) String() string {
	switch s {
	case Busy:
		return "busy"
	case FreeUntil:
		return "free-until"
	case FreeIndefinitely:
		return "free"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Room is the per-feed aggregate.
type Room struct {
	ID              string
	Name            string
	BackgroundColor string
	ForegroundColor string

	// Events are the raw bookings in the order they were received.
	Events []calendar.Event

	// Aggregated are the disjoint busy intervals, ascending by start.
	Aggregated []Usage

	// Holes are the free windows between consecutive usages.
	Holes []Hole

	Status Status

	// FreeTo is only meaningful when Status is FreeUntil.
	FreeTo time.Time
}

// IsFree reports whether the room is free now.
func (r *Room) IsFree() bool {
	return r.Status != Busy
}

// Usage is one merged busy interval of a room.
type Usage struct {
	Start  time.Time
	End    time.Time
	Events []calendar.Event
	RoomID string
}

// Feed returns the room feed of the first underlying event.
func (u *Usage) Feed() calendar.RoomFeed {
	if len(u.Events) == 0 {
		return calendar.RoomFeed{ID: u.RoomID}
	}
	return u.Events[0].Feed
}

// Hole is a free window in a room.
type Hole struct {
	Start time.Time
	End   time.Time

	// MoreDays is set when Start and End fall on different local days.
	MoreDays bool

	Name            string
	RoomID          string
	BackgroundColor string
	ForegroundColor string

	// TillDayEnd marks the evening half of a split hole.
	TillDayEnd bool
	// FromMorning marks the morning half of a split hole.
	FromMorning bool
}

// Duration returns the length of the hole.
func (h Hole) Duration() time.Duration {
	return h.End.Sub(h.Start)
}

// Badge is the countdown shown next to the tray icon.
type Badge struct {
	Minutes int
	// Valid is false when the badge is cleared.
	Valid bool
}

func (b Badge) String() string {
	if !b.Valid {
		return ""
	}
	return fmt.Sprintf("%d", b.Minutes)
}

// Clock is a wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM".
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return Clock{}, fmt.Errorf("parse clock %q: %w", s, err)
	}
	return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// On returns the instant of c on the calendar day of t in loc.
func (c Clock) On(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), c.Hour, c.Minute, 0, 0, loc)
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Options tunes Build.
type Options struct {
	// MinDelay is the merge tolerance and the minimum hole length.
	// Zero means DefaultMinDelay.
	MinDelay time.Duration

	// DayStart and DayEnd bound the two halves of a hole that spans a day
	// boundary. Zero values mean 08:00 and 18:00.
	DayStart Clock
	DayEnd   Clock

	// Location defines day boundaries. Nil means time.Local.
	Location *time.Location

	// Now returns the current instant. Nil means time.Now.
	Now func() time.Time

	// Rooms are feeds known ahead of time. A known room without bookings
	// is reported as free indefinitely.
	Rooms []calendar.RoomFeed

	// DropEnded discards bookings that ended at or before now. Set it when
	// rebuilding from events fetched earlier.
	DropEnded bool
}

func (o Options) withDefaults() Options {
	if o.MinDelay <= 0 {
		o.MinDelay = DefaultMinDelay
	}
	if o.DayStart == (Clock{}) {
		o.DayStart = Clock{Hour: 8}
	}
	if o.DayEnd == (Clock{}) {
		o.DayEnd = Clock{Hour: 18}
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	return Clock{}.On(t, loc)
}

func sameDay(a, b time.Time, loc *time.Location) bool {
	a, b = a.In(loc), b.In(loc)
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
