package rooms

import (
	"sort"
	"time"

	"github.com/cpuguy83/roombar/internal/calendar"
)

// Agenda is the result of one aggregation pass.
type Agenda struct {
	// Now is the instant the agenda was computed for.
	Now time.Time

	// Rooms holds every room in first-seen order.
	Rooms []*Room

	// CurrentlyFree lists free rooms, soonest-busy first; rooms free
	// indefinitely come last.
	CurrentlyFree []*Room

	// Future holds every room's holes after day splitting, sorted by
	// start, end, name and room ID.
	Future []Hole

	Badge Badge

	// Rejected lists malformed events that were skipped.
	Rejected []Rejection
}

// Skipped returns the number of malformed events.
func (a *Agenda) Skipped() int {
	return len(a.Rejected)
}

// Build runs the whole pipeline over events. Every instant in the result is
// expressed in opts.Location.
func Build(events []calendar.Event, opts Options) Agenda {
	opts = opts.withDefaults()
	loc := opts.Location
	now := opts.Now().In(loc)

	g := Group(events, opts.Rooms...)
	a := Agenda{
		Now:      now,
		Rejected: g.Rejected,
	}

	var holes []Hole
	for _, id := range g.Order {
		room := g.Rooms[id]
		if opts.DropEnded {
			room.Events = pending(room.Events, now)
		}
		room.Aggregated = Merge(room.Events, opts.MinDelay)
		room.Holes = FindHoles(room.Aggregated, opts.MinDelay, opts.Location)
		room.Status, room.FreeTo = FreeStatus(room.Aggregated, now, opts.MinDelay, opts.Location)
		if !room.FreeTo.IsZero() {
			room.FreeTo = room.FreeTo.In(loc)
		}
		inLocation(room.Holes, loc)

		a.Rooms = append(a.Rooms, room)
		if room.IsFree() {
			a.CurrentlyFree = append(a.CurrentlyFree, room)
		}
		holes = append(holes, room.Holes...)
	}

	sortFree(a.CurrentlyFree)
	a.Badge = badgeFor(a.CurrentlyFree, now)

	a.Future = SplitDays(holes, opts.DayStart, opts.DayEnd, opts.Location)
	inLocation(a.Future, loc)
	SortHoles(a.Future)

	return a
}

// pending returns the events that have not ended by now. Holes then all
// start after now because every usage ends after it.
func pending(events []calendar.Event, now time.Time) []calendar.Event {
	out := events[:0:0]
	for _, e := range events {
		if e.End.After(now) {
			out = append(out, e)
		}
	}
	return out
}

func inLocation(holes []Hole, loc *time.Location) {
	for i := range holes {
		holes[i].Start = holes[i].Start.In(loc)
		holes[i].End = holes[i].End.In(loc)
	}
}

func sortFree(free []*Room) {
	sort.SliceStable(free, func(i, j int) bool {
		a, b := free[i], free[j]
		if a.Status != b.Status {
			return a.Status == FreeUntil
		}
		if !a.FreeTo.Equal(b.FreeTo) {
			return a.FreeTo.Before(b.FreeTo)
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
}

// badgeFor returns the whole minutes until the earliest finite FreeTo.
func badgeFor(free []*Room, now time.Time) Badge {
	var earliest time.Time
	for _, r := range free {
		if r.Status != FreeUntil {
			continue
		}
		if earliest.IsZero() || r.FreeTo.Before(earliest) {
			earliest = r.FreeTo
		}
	}
	if earliest.IsZero() {
		return Badge{}
	}
	return Badge{Minutes: int(earliest.Sub(now) / time.Minute), Valid: true}
}

// SplitDays replaces every hole spanning a day boundary with an evening
// segment ending at dayEnd on the start day and a morning segment starting
// at dayStart on the following day. Other holes pass through.
func SplitDays(holes []Hole, dayStart, dayEnd Clock, loc *time.Location) []Hole {
	out := make([]Hole, 0, len(holes))
	for _, h := range holes {
		if !h.MoreDays {
			out = append(out, h)
			continue
		}

		start := h.Start.In(loc)
		nextDay := time.Date(start.Year(), start.Month(), start.Day()+1, 0, 0, 0, 0, loc)

		evening := h.segment(h.Start, dayEnd.On(start, loc))
		evening.TillDayEnd = true

		morning := h.segment(dayStart.On(nextDay, loc), h.End)
		morning.FromMorning = true

		out = append(out, evening, morning)
	}
	return out
}

func (h Hole) segment(start, end time.Time) Hole {
	return Hole{
		Start:           start,
		End:             end,
		MoreDays:        h.MoreDays,
		Name:            h.Name,
		RoomID:          h.RoomID,
		BackgroundColor: h.BackgroundColor,
		ForegroundColor: h.ForegroundColor,
		TillDayEnd:      h.TillDayEnd,
		FromMorning:     h.FromMorning,
	}
}

// SortHoles orders holes by start, end, name and room ID.
func SortHoles(holes []Hole) {
	sort.SliceStable(holes, func(i, j int) bool {
		a, b := &holes[i], &holes[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if !a.End.Equal(b.End) {
			return a.End.Before(b.End)
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.RoomID != b.RoomID {
			return a.RoomID < b.RoomID
		}
		return a.TillDayEnd && !b.TillDayEnd
	})
}
