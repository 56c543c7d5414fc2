package rooms

import (
	"errors"

	"github.com/cpuguy83/roombar/internal/calendar"
)

var (
	ErrMissingFeed    = errors.New("event has no room feed id")
	ErrMissingTime    = errors.New("event has no start or end")
	ErrEndBeforeStart = errors.New("event ends before it starts")
)

// Rejection records an event that was left out of aggregation.
type Rejection struct {
	Event calendar.Event
	Err   error
}

// Grouping is the result of Group.
type Grouping struct {
	Rooms map[string]*Room
	// Order lists room IDs in first-seen order.
	Order    []string
	Rejected []Rejection
}

// Skipped returns the number of malformed events.
func (g *Grouping) Skipped() int {
	return len(g.Rejected)
}

// Group partitions events by Feed.ID. Known feeds are registered first so
// rooms without any booking still show up. Malformed events are skipped and
// recorded; they never end up in any room.
func Group(events []calendar.Event, known ...calendar.RoomFeed) Grouping {
	g := Grouping{Rooms: make(map[string]*Room)}

	for _, feed := range known {
		if feed.ID == "" {
			continue
		}
		g.room(feed)
	}

	for _, e := range events {
		if err := validate(e); err != nil {
			g.Rejected = append(g.Rejected, Rejection{Event: e, Err: err})
			continue
		}
		room := g.room(e.Feed)
		room.Events = append(room.Events, e)
	}

	return g
}

func (g *Grouping) room(feed calendar.RoomFeed) *Room {
	if room, ok := g.Rooms[feed.ID]; ok {
		return room
	}
	room := &Room{
		ID:              feed.ID,
		Name:            feed.Title,
		BackgroundColor: feed.BackgroundColor,
		ForegroundColor: feed.ForegroundColor,
	}
	g.Rooms[feed.ID] = room
	g.Order = append(g.Order, feed.ID)
	return room
}

func validate(e calendar.Event) error {
	switch {
	case e.Feed.ID == "":
		return ErrMissingFeed
	case e.Start.IsZero() || e.End.IsZero():
		return ErrMissingTime
	case e.End.Before(e.Start):
		return ErrEndBeforeStart
	}
	return nil
}
