package menu

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cpuguy83/roombar/internal/rooms"
	"github.com/cpuguy83/roombar/internal/ui"
)

var now = time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC)

func at(day, hour, minute int) time.Time {
	return time.Date(2024, 1, day, hour, minute, 0, 0, time.UTC)
}

func testAgenda() rooms.Agenda {
	alpha := &rooms.Room{ID: "a", Name: "Alpha", Status: rooms.FreeUntil, FreeTo: at(1, 14, 25)}
	beta := &rooms.Room{ID: "b", Name: "Beta", Status: rooms.FreeIndefinitely}
	gamma := &rooms.Room{ID: "g", Name: "Gamma"}

	return rooms.Agenda{
		Now:           now,
		Rooms:         []*rooms.Room{alpha, beta, gamma},
		CurrentlyFree: []*rooms.Room{alpha, beta},
		Future: []rooms.Hole{
			{Start: at(1, 9, 0), End: at(1, 10, 0), Name: "Alpha", RoomID: "a"},
			{Start: at(1, 15, 0), End: at(1, 16, 0), Name: "Alpha", RoomID: "a"},
			{Start: at(1, 16, 30), End: at(1, 18, 0), Name: "Gamma", RoomID: "g", TillDayEnd: true},
			{Start: at(2, 8, 0), End: at(2, 9, 0), Name: "Gamma", RoomID: "g", FromMorning: true},
			{Start: at(3, 10, 0), End: at(3, 11, 0), Name: "Beta", RoomID: "b"},
		},
	}
}

func TestFormatAgenda(t *testing.T) {
	tests := []struct {
		name     string
		agenda   rooms.Agenda
		stale    bool
		maxItems int
		want     []string
	}{
		{
			name:   "full agenda",
			agenda: testAgenda(),
			want: []string{
				"━━━━ Free rooms ━━━━",
				"  until 14:25  Alpha",
				"  free     Beta",
				"━━━━ Today ━━━━",
				"  15:00 - 16:00  Alpha",
				"  16:30 - 18:00+  Gamma",
				"━━━━ Tuesday, January 2 ━━━━",
				"  +08:00 - 09:00  Gamma",
				"━━━━ Wednesday, January 3 ━━━━",
				"  10:00 - 11:00  Beta",
				"",
				"↻ Refresh",
			},
		},
		{
			name:     "capped",
			agenda:   testAgenda(),
			maxItems: 2,
			want: []string{
				"━━━━ Free rooms ━━━━",
				"  until 14:25  Alpha",
				"  free     Beta",
				"━━━━ Today ━━━━",
				"  15:00 - 16:00  Alpha",
				"  16:30 - 18:00+  Gamma",
				"  … 2 more",
				"",
				"↻ Refresh",
			},
		},
		{
			name:   "empty and stale",
			agenda: rooms.Agenda{Now: now},
			stale:  true,
			want: []string{
				"⚠ Room data may be out of date",
				"━━━━ Free rooms ━━━━",
				"  No room is free at the moment",
				"━━━━ Today ━━━━",
				"  No free windows left today",
				"",
				"↻ Refresh",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := formatAgenda(tt.agenda, tt.stale, tt.maxItems, time.UTC)
			if strings.Join(got, "\n") != strings.Join(tt.want, "\n") {
				t.Errorf("formatAgenda() =\n%s\nwant\n%s", strings.Join(got, "\n"), strings.Join(tt.want, "\n"))
			}
		})
	}
}

func TestFormatAgendaEntries(t *testing.T) {
	_, entries := formatAgenda(testAgenda(), false, 0, time.UTC)

	tests := []struct {
		line     string
		wantRoom string
		wantCopy string
	}{
		{"until 14:25  Alpha", "a", "until 14:25  Alpha"},
		{"15:00 - 16:00  Alpha", "a", "15:00 - 16:00  Alpha"},
		{"+08:00 - 09:00  Gamma", "g", "Tue Jan 2  +08:00 - 09:00  Gamma"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			e, ok := entries[tt.line]
			if !ok {
				t.Fatalf("no entry for %q", tt.line)
			}
			if e.roomID != tt.wantRoom || e.copy != tt.wantCopy {
				t.Errorf("entry = %+v", e)
			}
		})
	}

	for line := range entries {
		if isSeparator(line) {
			t.Errorf("selectable line %q is treated as a separator", line)
		}
	}
}

func TestFormatRoom(t *testing.T) {
	a := testAgenda()
	tests := []struct {
		name string
		room *rooms.Room
		want []string
	}{
		{
			name: "busy",
			room: a.Rooms[2],
			want: []string{
				"━━━━ Gamma ━━━━",
				"  Busy",
				"  0 bookings",
				"━━━━ Free windows ━━━━",
				"  16:30 - 18:00+",
				"  📅 Book 16:30 - 17:00",
				"  Tue Jan 2  +08:00 - 09:00",
				"  📅 Book Tue Jan 2  08:00 - 08:30",
				"",
				"← Back",
			},
		},
		{
			name: "free until",
			room: a.Rooms[0],
			want: []string{
				"━━━━ Alpha ━━━━",
				"  Free until 14:25",
				"  📅 Book 14:00 - 14:25",
				"  0 bookings",
				"━━━━ Free windows ━━━━",
				"  15:00 - 16:00",
				"  📅 Book 15:00 - 15:30",
				"",
				"← Back",
			},
		},
		{
			name: "free without bookings",
			room: a.Rooms[1],
			want: []string{
				"━━━━ Beta ━━━━",
				"  Free, no bookings",
				"  📅 Book 14:00 - 14:30",
				"  0 bookings",
				"━━━━ Free windows ━━━━",
				"  Wed Jan 3  10:00 - 11:00",
				"  📅 Book Wed Jan 3  10:00 - 10:30",
				"",
				"← Back",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := formatRoom(tt.room, a, time.UTC)
			if strings.Join(got, "\n") != strings.Join(tt.want, "\n") {
				t.Errorf("formatRoom() =\n%s", strings.Join(got, "\n"))
			}
		})
	}
}

func TestBookWindow(t *testing.T) {
	tests := []struct {
		name       string
		start, end time.Time
		wantStart  time.Time
		wantEnd    time.Time
		wantOK     bool
	}{
		{name: "capped", start: at(1, 15, 0), end: at(1, 16, 0), wantStart: at(1, 15, 0), wantEnd: at(1, 15, 30), wantOK: true},
		{name: "short window", start: at(1, 15, 0), end: at(1, 15, 10), wantStart: at(1, 15, 0), wantEnd: at(1, 15, 10), wantOK: true},
		{name: "started window begins now", start: at(1, 13, 0), end: at(1, 16, 0), wantStart: now, wantEnd: now.Add(30 * time.Minute), wantOK: true},
		{name: "nearly over", start: at(1, 13, 0), end: now.Add(30 * time.Second), wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, ok := bookWindow(tt.start, tt.end, now)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && (!start.Equal(tt.wantStart) || !end.Equal(tt.wantEnd)) {
				t.Errorf("window = %v - %v, want %v - %v", start, end, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestIsSeparator(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"", true},
		{"━━━━ Today ━━━━", true},
		{"  " + noneFree, true},
		{staleWarning, true},
		{"… 3 more", true},
		{"15:00 - 16:00  Alpha", false},
		{refreshLine, false},
	}
	for _, tt := range tests {
		if got := isSeparator(tt.line); got != tt.want {
			t.Errorf("isSeparator(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

// scripted answers launcher calls in order.
type scripted struct {
	answers []string
	inputs  []string
}

func (s *scripted) run(prog string, args []string, input string) (string, error) {
	s.inputs = append(s.inputs, input)
	if len(s.answers) == 0 {
		return "", errCancelled
	}
	out := s.answers[0]
	s.answers = s.answers[1:]
	return out + "\n", nil
}

func TestMenuNavigation(t *testing.T) {
	tests := []struct {
		name    string
		answers []string
		want    []ui.Action
		calls   int
	}{
		{
			name:    "refresh",
			answers: []string{refreshLine},
			want:    []ui.Action{{Type: ui.ActionRefresh}},
			calls:   1,
		},
		{
			name:    "room then back then refresh",
			answers: []string{"until 14:25  Alpha", backLine, refreshLine},
			want:    []ui.Action{{Type: ui.ActionRefresh}},
			calls:   3,
		},
		{
			name:    "copy a window from the room view",
			answers: []string{"16:30 - 18:00+  Gamma", "16:30 - 18:00+"},
			want:    []ui.Action{{Type: ui.ActionCopy, RoomID: "g", Text: "Gamma 16:30 - 18:00+"}},
			calls:   2,
		},
		{
			name:    "book a window from the room view",
			answers: []string{"16:30 - 18:00+  Gamma", "📅 Book 16:30 - 17:00"},
			want:    []ui.Action{{Type: ui.ActionBook, RoomID: "g", Text: "Gamma", Start: at(1, 16, 30), End: at(1, 17, 0)}},
			calls:   2,
		},
		{
			name:    "book a free room now",
			answers: []string{"free     Beta", "📅 Book 14:00 - 14:30"},
			want:    []ui.Action{{Type: ui.ActionBook, RoomID: "b", Text: "Beta", Start: now, End: now.Add(30 * time.Minute)}},
			calls:   2,
		},
		{
			name:    "header does nothing",
			answers: []string{"━━━━ Today ━━━━"},
			calls:   1,
		},
		{
			name:  "cancel",
			calls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &scripted{answers: tt.answers}
			m := &Menu{cfg: Config{Config: ui.Config{Location: time.UTC}}, program: "dmenu", run: s.run}

			var got []ui.Action
			m.OnAction(func(a ui.Action) { got = append(got, a) })
			m.showAgenda(testAgenda(), false)

			if len(s.inputs) != tt.calls {
				t.Errorf("launcher ran %d times, want %d", len(s.inputs), tt.calls)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("actions = %+v, want %+v", got, tt.want)
			}
			for i := range got {
				g, w := got[i], tt.want[i]
				if g.Type != w.Type || g.RoomID != w.RoomID || g.Text != w.Text || !g.Start.Equal(w.Start) || !g.End.Equal(w.End) {
					t.Errorf("action %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestDetect(t *testing.T) {
	installed := map[string]bool{"fuzzel": true, "dmenu": true}
	lookPath := func(name string) (string, error) {
		if installed[name] {
			return "/usr/bin/" + name, nil
		}
		return "", errors.New("not found")
	}

	got, err := detect(lookPath)
	if err != nil || got != "fuzzel" {
		t.Errorf("detect() = %q, %v; want fuzzel", got, err)
	}

	if _, err := detect(func(string) (string, error) { return "", errors.New("not found") }); err == nil {
		t.Error("expected an error when nothing is installed")
	}
}

func TestLauncherArgs(t *testing.T) {
	got := launcherArgs("rofi", "Rooms", 10, []string{"-theme", "x"})
	want := []string{"-dmenu", "-p", "Rooms", "-i", "-theme", "x"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("launcherArgs() = %v", got)
	}

	got = launcherArgs("dmenu", "Rooms", 7, nil)
	if got[len(got)-1] != "7" {
		t.Errorf("dmenu line count missing: %v", got)
	}
}
