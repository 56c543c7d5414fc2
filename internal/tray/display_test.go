package tray

import (
	"testing"
	"time"

	"github.com/cpuguy83/roombar/internal/calendar"
	"github.com/cpuguy83/roombar/internal/rooms"
)

func TestDisplayFor(t *testing.T) {
	now := time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC)
	a := &rooms.Room{ID: "a", Name: "Alpha", Status: rooms.FreeUntil, FreeTo: now.Add(25 * time.Minute)}
	b := &rooms.Room{ID: "b", Name: "Beta", Status: rooms.FreeIndefinitely}
	busy := &rooms.Room{ID: "c", Name: "Gamma"}
	extra := func(id string) *rooms.Room {
		return &rooms.Room{ID: id, Name: id, Status: rooms.FreeIndefinitely}
	}

	tests := []struct {
		name   string
		agenda rooms.Agenda
		stale  bool
		want   Display
	}{
		{
			name:   "no rooms",
			agenda: rooms.Agenda{Now: now},
			want:   Display{State: StateBusy, Tooltip: "No rooms"},
		},
		{
			name:   "all busy",
			agenda: rooms.Agenda{Now: now, Rooms: []*rooms.Room{busy}},
			want:   Display{State: StateBusy, Tooltip: "All rooms busy"},
		},
		{
			name: "free rooms with badge",
			agenda: rooms.Agenda{
				Now:           now,
				Rooms:         []*rooms.Room{a, b, busy},
				CurrentlyFree: []*rooms.Room{a, b},
				Badge:         rooms.Badge{Minutes: 25, Valid: true},
			},
			want: Display{State: StateFree, Title: "25m", Tooltip: "Alpha free until 14:25\nBeta free"},
		},
		{
			name: "stale wins",
			agenda: rooms.Agenda{
				Now:           now,
				Rooms:         []*rooms.Room{b},
				CurrentlyFree: []*rooms.Room{b},
			},
			stale: true,
			want:  Display{State: StateStale, Tooltip: "Room data may be out of date\nBeta free"},
		},
		{
			name: "long list is capped",
			agenda: rooms.Agenda{
				Now:           now,
				Rooms:         []*rooms.Room{b, extra("d"), extra("e"), extra("f"), extra("g")},
				CurrentlyFree: []*rooms.Room{b, extra("d"), extra("e"), extra("f"), extra("g")},
			},
			want: Display{State: StateFree, Tooltip: "Beta free\nd free\ne free\nand 2 more"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DisplayFor(tt.agenda, tt.stale); got != tt.want {
				t.Errorf("DisplayFor() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDisplayForLocalTime(t *testing.T) {
	paris := time.FixedZone("CET", 3600)
	now := time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)
	board := calendar.RoomFeed{ID: "board", Title: "Board"}
	events := []calendar.Event{{
		UID:   "1",
		Start: time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC),
		Feed:  board,
	}}

	a := rooms.Build(events, rooms.Options{Location: paris, Now: func() time.Time { return now }})
	if got := DisplayFor(a, false).Tooltip; got != "Board free until 14:00" {
		t.Errorf("tooltip = %q, want local time", got)
	}

	// FreeTo left in UTC is still rendered in the agenda's zone.
	a.CurrentlyFree[0].FreeTo = a.CurrentlyFree[0].FreeTo.UTC()
	if got := DisplayFor(a, false).Tooltip; got != "Board free until 14:00" {
		t.Errorf("tooltip = %q, want local time", got)
	}
}

func TestStateColors(t *testing.T) {
	seen := make(map[uint32]State)
	for _, s := range []State{StateFree, StateBusy, StateStale} {
		c := s.color()
		if prev, ok := seen[c]; ok {
			t.Errorf("%v and %v share color %#x", prev, s, c)
		}
		seen[c] = s

		px := iconPixmap(s)
		if len(px) != 1 || len(px[0].Data) != iconSize*iconSize*4 {
			t.Fatalf("%v: unexpected pixmap shape", s)
		}
	}
}
