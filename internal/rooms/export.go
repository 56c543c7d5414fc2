package rooms

import (
	"fmt"

	"github.com/cpuguy83/roombar/internal/calendar"
)

// Event returns the hole as a calendar event in the room's feed, suitable
// for calendar.WriteICS.
func (h Hole) Event() calendar.Event {
	return calendar.Event{
		UID:     fmt.Sprintf("free-%s-%d@roombar", h.RoomID, h.Start.Unix()),
		Summary: "Free: " + h.Name,
		Start:   h.Start,
		End:     h.End,
		Feed: calendar.RoomFeed{
			ID:              h.RoomID,
			Title:           h.Name,
			BackgroundColor: h.BackgroundColor,
			ForegroundColor: h.ForegroundColor,
		},
	}
}

// FreeEvents returns the agenda's free windows that have not ended, as
// calendar events.
func (a *Agenda) FreeEvents() []calendar.Event {
	var events []calendar.Event
	for _, h := range a.Future {
		if h.End.After(a.Now) {
			events = append(events, h.Event())
		}
	}
	return events
}
