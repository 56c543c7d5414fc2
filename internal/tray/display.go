package tray

import (
	"fmt"
	"strings"
	"time"

	"github.com/cpuguy83/roombar/internal/rooms"
)

// maxTooltipRooms caps the free rooms listed in the tooltip.
const maxTooltipRooms = 3

// Display is what the tray shows for one agenda.
type Display struct {
	State State
	// Title is the badge text, empty when the badge is cleared.
	Title   string
	Tooltip string
}

// DisplayFor derives the tray display from an agenda. stale is set when
// the last sync failed or is too old to trust.
func DisplayFor(a rooms.Agenda, stale bool) Display {
	d := Display{State: StateBusy}
	if len(a.CurrentlyFree) > 0 {
		d.State = StateFree
	}
	if a.Badge.Valid {
		d.Title = fmt.Sprintf("%dm", a.Badge.Minutes)
	}

	var lines []string
	if stale {
		d.State = StateStale
		lines = append(lines, "Room data may be out of date")
	}

	switch {
	case len(a.Rooms) == 0:
		lines = append(lines, "No rooms")
	case len(a.CurrentlyFree) == 0:
		lines = append(lines, "All rooms busy")
	default:
		for i, r := range a.CurrentlyFree {
			if i == maxTooltipRooms {
				lines = append(lines, fmt.Sprintf("and %d more", len(a.CurrentlyFree)-i))
				break
			}
			lines = append(lines, freeLine(r, a.Now.Location()))
		}
	}

	d.Tooltip = strings.Join(lines, "\n")
	return d
}

// freeLine renders FreeTo in loc, the zone the agenda was built in.
func freeLine(r *rooms.Room, loc *time.Location) string {
	if r.Status == rooms.FreeUntil {
		return fmt.Sprintf("%s free until %s", r.Name, r.FreeTo.In(loc).Format("15:04"))
	}
	return r.Name + " free"
}
