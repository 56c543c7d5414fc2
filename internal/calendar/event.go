// Package calendar provides room feed sources and event types.
package calendar

import (
	"context"
	"time"
)

// RoomFeed identifies the room a calendar belongs to.
type RoomFeed struct {
	// ID uniquely identifies the room (mailbox, collection path, calendar ID).
	ID string `json:"id"`

	// Title is the display name of the room.
	Title string `json:"title"`

	BackgroundColor string `json:"backgroundColor,omitempty"`
	ForegroundColor string `json:"foregroundColor,omitempty"`
}

// Event represents a booking of a room.
type Event struct {
	// UID is the unique identifier for this event.
	UID string

	// Summary is the event title.
	Summary string

	// Location is the event location as given by the feed.
	Location string

	// Organizer is the email of the event organizer.
	Organizer string

	// Start is when the event begins.
	Start time.Time

	// End is when the event ends.
	End time.Time

	// AllDay indicates this is an all-day event.
	AllDay bool

	// Feed is the room this event occupies.
	Feed RoomFeed
}

// Duration returns the duration of the event.
func (e *Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// IsOngoing returns true if the event is currently happening.
func (e *Event) IsOngoing(now time.Time) bool {
	return now.After(e.Start) && now.Before(e.End)
}

// StartMillis returns the start as epoch milliseconds.
func (e *Event) StartMillis() int64 {
	return e.Start.UnixMilli()
}

// EndMillis returns the end as epoch milliseconds.
func (e *Event) EndMillis() int64 {
	return e.End.UnixMilli()
}

// FromMillis converts an epoch-millisecond timestamp to a time in loc.
// A nil loc means time.Local.
func FromMillis(ms int64, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.UnixMilli(ms).In(loc)
}

// isEffectivelyAllDay reports whether start and end both sit on local
// midnight and the range covers at least one day.
func isEffectivelyAllDay(start, end time.Time) bool {
	if !end.After(start) {
		return false
	}
	return isLocalMidnight(start) && isLocalMidnight(end)
}

func isLocalMidnight(t time.Time) bool {
	l := t.In(time.Local)
	return l.Hour() == 0 && l.Minute() == 0 && l.Second() == 0 && l.Nanosecond() == 0
}

// Source is the interface that room feed sources must implement.
type Source interface {
	// Name returns the display name of this source.
	Name() string

	// Fetch retrieves events from now until end. Every returned event
	// must carry a populated Feed.
	Fetch(ctx context.Context, end time.Time) ([]Event, error)
}

// FeedSource is implemented by sources that know their rooms, so rooms
// without bookings can be reported as free. Feeds must only list rooms whose
// bookings the last Fetch actually read; a room that could not be read is
// left out rather than shown as free.
type FeedSource interface {
	Feeds() []RoomFeed
}

// Booker is implemented by sources that can reserve one of their rooms on
// the signed-in user's calendar.
type Booker interface {
	Book(ctx context.Context, roomID string, start, end time.Time, summary string) error
}
