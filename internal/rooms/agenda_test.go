package rooms

import (
	"bytes"
	"encoding/json"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/cpuguy83/roombar/internal/calendar"
)

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestBuildScenario(t *testing.T) {
	events := []calendar.Event{
		booking(roomA, at(9, 0), at(10, 0)),
		booking(roomA, at(10, 2), at(11, 0)),
		booking(roomB, at(9, 0), at(10, 0)),
		booking(roomB, at(10, 10), at(11, 0)),
	}

	a := Build(events, Options{Location: time.UTC, Now: fixedNow(at(8, 0))})

	if len(a.Rooms) != 2 {
		t.Fatalf("expected 2 rooms, got %d", len(a.Rooms))
	}
	if a.Rooms[0].ID != roomA.ID || a.Rooms[1].ID != roomB.ID {
		t.Errorf("rooms not in first-seen order: %s, %s", a.Rooms[0].ID, a.Rooms[1].ID)
	}

	if got := len(a.Rooms[0].Aggregated); got != 1 {
		t.Errorf("room A: expected 1 usage, got %d", got)
	}
	if got := len(a.Rooms[0].Holes); got != 0 {
		t.Errorf("room A: expected no holes, got %d", got)
	}

	if got := len(a.Rooms[1].Aggregated); got != 2 {
		t.Errorf("room B: expected 2 usages, got %d", got)
	}
	if len(a.Future) != 1 {
		t.Fatalf("expected 1 future hole, got %d", len(a.Future))
	}
	h := a.Future[0]
	if !h.Start.Equal(at(10, 0)) || !h.End.Equal(at(10, 10)) || h.RoomID != roomB.ID {
		t.Errorf("unexpected hole %+v", h)
	}
}

func TestBuildBadge(t *testing.T) {
	now := at(14, 0)
	events := []calendar.Event{
		booking(roomA, now.Add(30*time.Minute), now.Add(time.Hour)),
		booking(roomB, now.Add(10*time.Minute), now.Add(time.Hour)),
	}

	a := Build(events, Options{Location: time.UTC, Now: fixedNow(now)})

	if !a.Badge.Valid || a.Badge.Minutes != 10 {
		t.Errorf("badge = %+v, want 10", a.Badge)
	}
	if a.Badge.String() != "10" {
		t.Errorf("badge string = %q", a.Badge.String())
	}
	if len(a.CurrentlyFree) != 2 {
		t.Fatalf("expected 2 free rooms, got %d", len(a.CurrentlyFree))
	}
	if a.CurrentlyFree[0].ID != roomB.ID {
		t.Errorf("expected room B first, got %s", a.CurrentlyFree[0].ID)
	}
}

func TestBuildDropEnded(t *testing.T) {
	events := []calendar.Event{
		booking(roomA, at(9, 0), at(10, 0)),
		booking(roomA, at(14, 0), at(15, 0)),
	}
	now := at(10, 2)

	tests := []struct {
		name       string
		dropEnded  bool
		wantStatus Status
		wantHoles  int
	}{
		// Without dropping, the 09:00 booking still counts as the first usage.
		{name: "keep", dropEnded: false, wantStatus: Busy, wantHoles: 1},
		{name: "drop", dropEnded: true, wantStatus: FreeUntil, wantHoles: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Build(events, Options{Location: time.UTC, Now: fixedNow(now), DropEnded: tt.dropEnded})
			if len(a.Rooms) != 1 {
				t.Fatalf("expected 1 room, got %d", len(a.Rooms))
			}
			r := a.Rooms[0]
			if r.Status != tt.wantStatus {
				t.Errorf("status = %v, want %v", r.Status, tt.wantStatus)
			}
			if tt.wantStatus == FreeUntil && !r.FreeTo.Equal(at(14, 0)) {
				t.Errorf("free until %v, want 14:00", r.FreeTo)
			}
			if len(a.Future) != tt.wantHoles {
				t.Errorf("future holes = %+v", a.Future)
			}
			for _, h := range a.Future {
				if tt.dropEnded && h.Start.Before(now) {
					t.Errorf("hole started before now: %+v", h)
				}
			}
		})
	}

	// A room whose bookings all ended stays known and is free.
	a := Build(events[:1], Options{Location: time.UTC, Now: fixedNow(now), DropEnded: true})
	if len(a.Rooms) != 1 || a.Rooms[0].Status != FreeIndefinitely {
		t.Errorf("rooms = %+v", a.Rooms)
	}
}

func TestBuildTimesInLocation(t *testing.T) {
	paris := time.FixedZone("CET", 3600)
	now := time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)
	events := []calendar.Event{
		booking(roomA, time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC), time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC)),
		booking(roomA, time.Date(2024, 1, 1, 15, 0, 0, 0, time.UTC), time.Date(2024, 1, 1, 16, 0, 0, 0, time.UTC)),
	}

	a := Build(events, Options{Location: paris, Now: fixedNow(now)})

	if got := a.Now.Format("15:04"); got != "12:00" {
		t.Errorf("now = %s, want 12:00", got)
	}
	if len(a.CurrentlyFree) != 1 {
		t.Fatalf("expected 1 free room, got %d", len(a.CurrentlyFree))
	}
	if got := a.CurrentlyFree[0].FreeTo.Format("15:04"); got != "14:00" {
		t.Errorf("free until %s, want 14:00", got)
	}
	if len(a.Future) != 1 {
		t.Fatalf("future holes = %+v", a.Future)
	}
	if got := a.Future[0].Start.Format("15:04") + "-" + a.Future[0].End.Format("15:04"); got != "15:00-16:00" {
		t.Errorf("hole = %s, want 15:00-16:00", got)
	}
}

func TestBuildBadgeCleared(t *testing.T) {
	now := at(14, 0)

	tests := []struct {
		name   string
		events []calendar.Event
		known  []calendar.RoomFeed
		free   int
	}{
		{
			name: "every room busy",
			events: []calendar.Event{
				booking(roomA, now.Add(-time.Hour), now.Add(time.Hour)),
			},
		},
		{
			name:  "only indefinitely free rooms",
			known: []calendar.RoomFeed{roomA},
			free:  1,
		},
		{
			name: "empty input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Build(tt.events, Options{Location: time.UTC, Now: fixedNow(now), Rooms: tt.known})
			if a.Badge.Valid {
				t.Errorf("expected cleared badge, got %+v", a.Badge)
			}
			if a.Badge.String() != "" {
				t.Errorf("cleared badge string = %q", a.Badge.String())
			}
			if len(a.CurrentlyFree) != tt.free {
				t.Errorf("expected %d free rooms, got %d", tt.free, len(a.CurrentlyFree))
			}
		})
	}
}

func TestBuildIndefinitelyFreeSortsLast(t *testing.T) {
	now := at(14, 0)
	idle := calendar.RoomFeed{ID: "idle@rooms", Title: "Attic"}
	events := []calendar.Event{
		booking(roomA, now.Add(2*time.Hour), now.Add(3*time.Hour)),
	}

	a := Build(events, Options{Location: time.UTC, Now: fixedNow(now), Rooms: []calendar.RoomFeed{idle, roomA}})

	if len(a.CurrentlyFree) != 2 {
		t.Fatalf("expected 2 free rooms, got %d", len(a.CurrentlyFree))
	}
	if a.CurrentlyFree[0].ID != roomA.ID || a.CurrentlyFree[1].ID != idle.ID {
		t.Errorf("order = %s, %s", a.CurrentlyFree[0].ID, a.CurrentlyFree[1].ID)
	}
	if got := a.CurrentlyFree[1].IsFreeTo(); got != -1 {
		t.Errorf("IsFreeTo() = %d, want -1", got)
	}
	if got := a.CurrentlyFree[0].IsFreeTo(); got != now.Add(2*time.Hour).UnixMilli() {
		t.Errorf("IsFreeTo() = %d", got)
	}
	if !a.Badge.Valid || a.Badge.Minutes != 120 {
		t.Errorf("badge = %+v, want 120", a.Badge)
	}
}

func TestBuildSkipsMalformed(t *testing.T) {
	now := at(8, 0)
	good := booking(roomA, at(9, 0), at(10, 0))
	noFeed := booking(calendar.RoomFeed{Title: "Nameless"}, at(9, 0), at(10, 0))
	backwards := booking(roomB, at(11, 0), at(10, 0))
	noTime := calendar.Event{UID: "x", Feed: roomB}

	a := Build([]calendar.Event{noFeed, good, backwards, noTime}, Options{Location: time.UTC, Now: fixedNow(now)})

	if a.Skipped() != 3 {
		t.Fatalf("Skipped() = %d, want 3", a.Skipped())
	}
	wantErrs := []error{ErrMissingFeed, ErrEndBeforeStart, ErrMissingTime}
	for i, r := range a.Rejected {
		if !errors.Is(r.Err, wantErrs[i]) {
			t.Errorf("rejection %d = %v, want %v", i, r.Err, wantErrs[i])
		}
	}
	if len(a.Rooms) != 1 || a.Rooms[0].ID != roomA.ID {
		t.Fatalf("expected only room A, got %d rooms", len(a.Rooms))
	}
	if len(a.Rooms[0].Events) != 1 {
		t.Errorf("room A has %d events, want 1", len(a.Rooms[0].Events))
	}
}

func TestSplitDays(t *testing.T) {
	hole := Hole{
		Start:           time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC),
		End:             time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC),
		MoreDays:        true,
		Name:            roomA.Title,
		RoomID:          roomA.ID,
		BackgroundColor: roomA.BackgroundColor,
	}
	same := Hole{Start: at(10, 0), End: at(11, 0), Name: roomB.Title, RoomID: roomB.ID}

	got := SplitDays([]Hole{hole, same}, Clock{Hour: 8}, Clock{Hour: 18}, time.UTC)
	if len(got) != 3 {
		t.Fatalf("expected 3 holes, got %d", len(got))
	}

	evening, morning := got[0], got[1]
	if !evening.TillDayEnd || evening.FromMorning {
		t.Errorf("evening flags = %+v", evening)
	}
	if !evening.Start.Equal(hole.Start) || !evening.End.Equal(time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC)) {
		t.Errorf("evening = [%v, %v]", evening.Start, evening.End)
	}
	if !morning.FromMorning || morning.TillDayEnd {
		t.Errorf("morning flags = %+v", morning)
	}
	if !morning.Start.Equal(time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC)) || !morning.End.Equal(hole.End) {
		t.Errorf("morning = [%v, %v]", morning.Start, morning.End)
	}
	for _, h := range []Hole{evening, morning} {
		if h.Name != hole.Name || h.RoomID != hole.RoomID || h.BackgroundColor != hole.BackgroundColor {
			t.Errorf("segment lost metadata: %+v", h)
		}
	}

	// The halves are independent values.
	got[0].Name = "changed"
	if got[1].Name != hole.Name {
		t.Error("mutating the evening half leaked into the morning half")
	}

	if got[2] != same {
		t.Errorf("single-day hole changed: %+v", got[2])
	}
}

func TestSplitDaysLocalBoundaries(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	hole := Hole{
		Start:    time.Date(2024, 3, 1, 16, 30, 0, 0, ny),
		End:      time.Date(2024, 3, 2, 10, 0, 0, 0, ny),
		MoreDays: true,
	}
	got := SplitDays([]Hole{hole}, Clock{Hour: 7, Minute: 30}, Clock{Hour: 19}, ny)
	if len(got) != 2 {
		t.Fatalf("expected 2 holes, got %d", len(got))
	}
	if want := time.Date(2024, 3, 1, 19, 0, 0, 0, ny); !got[0].End.Equal(want) {
		t.Errorf("evening end = %v, want %v", got[0].End, want)
	}
	if want := time.Date(2024, 3, 2, 7, 30, 0, 0, ny); !got[1].Start.Equal(want) {
		t.Errorf("morning start = %v, want %v", got[1].Start, want)
	}
}

func TestBuildSplitsOvernightHoles(t *testing.T) {
	now := at(8, 0)
	events := []calendar.Event{
		booking(roomA, at(15, 0), at(17, 0)),
		booking(roomA, at(9, 30).AddDate(0, 0, 1), at(11, 0).AddDate(0, 0, 1)),
	}

	a := Build(events, Options{Location: time.UTC, Now: fixedNow(now)})
	if len(a.Future) != 2 {
		t.Fatalf("expected 2 future holes, got %d", len(a.Future))
	}
	if !a.Future[0].TillDayEnd || !a.Future[0].End.Equal(at(18, 0)) {
		t.Errorf("first hole = %+v", a.Future[0])
	}
	if !a.Future[1].FromMorning || !a.Future[1].Start.Equal(at(8, 0).AddDate(0, 0, 1)) {
		t.Errorf("second hole = %+v", a.Future[1])
	}
}

func TestBuildFutureSortTieBreak(t *testing.T) {
	now := at(8, 0)
	zeta := calendar.RoomFeed{ID: "z@rooms", Title: "Zeta"}
	alpha := calendar.RoomFeed{ID: "y@rooms", Title: "Alpha"}
	events := []calendar.Event{
		booking(zeta, at(9, 0), at(10, 0)),
		booking(zeta, at(11, 0), at(12, 0)),
		booking(alpha, at(9, 0), at(10, 0)),
		booking(alpha, at(11, 0), at(12, 0)),
	}

	a := Build(events, Options{Location: time.UTC, Now: fixedNow(now)})
	if len(a.Future) != 2 {
		t.Fatalf("expected 2 holes, got %d", len(a.Future))
	}
	if a.Future[0].Name != "Alpha" || a.Future[1].Name != "Zeta" {
		t.Errorf("tie not broken by name: %s, %s", a.Future[0].Name, a.Future[1].Name)
	}
}

func TestBuildDeterministic(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	events := append(randomBookings(r, roomA, 15), randomBookings(r, roomB, 15)...)
	opts := Options{Location: time.UTC, Now: fixedNow(at(7, 30))}

	want, err := json.Marshal(Build(events, opts))
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 10; i++ {
		shuffled := append([]calendar.Event(nil), events...)
		r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		got, err := json.Marshal(Build(shuffled, opts))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("agenda differs after shuffle %d:\n got %s\nwant %s", i, got, want)
		}
	}
}

func TestBuildDoesNotShareState(t *testing.T) {
	now := at(8, 0)
	events := []calendar.Event{
		booking(roomA, at(9, 0), at(10, 0)),
		booking(roomA, at(11, 0), at(12, 0)),
	}
	opts := Options{Location: time.UTC, Now: fixedNow(now)}

	first := Build(events, opts)
	first.Future[0].Name = "mutated"
	first.Rooms[0].Holes = nil

	second := Build(events, opts)
	if second.Future[0].Name != roomA.Title {
		t.Errorf("second build saw mutation: %q", second.Future[0].Name)
	}
	if len(second.Rooms[0].Holes) != 1 {
		t.Errorf("second build has %d holes", len(second.Rooms[0].Holes))
	}
}

func TestAgendaJSON(t *testing.T) {
	now := at(14, 0)
	events := []calendar.Event{
		booking(roomA, now.Add(10*time.Minute), now.Add(time.Hour)),
		booking(roomA, now.Add(2*time.Hour), now.Add(3*time.Hour)),
	}

	data, err := json.Marshal(Build(events, Options{Location: time.UTC, Now: fixedNow(now)}))
	if err != nil {
		t.Fatal(err)
	}

	var out struct {
		CurrentlyFree []struct {
			ID       string `json:"id"`
			IsFreeTo int64  `json:"isFreeTo"`
		} `json:"currentlyFree"`
		Future []struct {
			Start  int64  `json:"start"`
			End    int64  `json:"end"`
			RoomID string `json:"room_id"`
		} `json:"future"`
		Badge *int `json:"badge"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}

	if out.Badge == nil || *out.Badge != 10 {
		t.Errorf("badge = %v, want 10", out.Badge)
	}
	if len(out.CurrentlyFree) != 1 || out.CurrentlyFree[0].IsFreeTo != now.Add(10*time.Minute).UnixMilli() {
		t.Errorf("currentlyFree = %+v", out.CurrentlyFree)
	}
	if len(out.Future) != 1 || out.Future[0].Start != now.Add(time.Hour).UnixMilli() || out.Future[0].RoomID != roomA.ID {
		t.Errorf("future = %+v", out.Future)
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		input   string
		want    Clock
		wantErr bool
	}{
		{"08:00", Clock{Hour: 8}, false},
		{"18:30", Clock{Hour: 18, Minute: 30}, false},
		{"7:05", Clock{Hour: 7, Minute: 5}, false},
		{"25:00", Clock{}, true},
		{"", Clock{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseClock(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseClock(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseClock(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
