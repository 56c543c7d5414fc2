package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cpuguy83/roombar/internal/calendar"
	"github.com/cpuguy83/roombar/internal/config"
	"github.com/cpuguy83/roombar/internal/rooms"
)

func mustParse(t *testing.T, doc string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("config.Parse() error: %v", err)
	}
	return cfg
}

func TestRoomOptions(t *testing.T) {
	cfg := mustParse(t, `
rooms:
  min_delay: 10m
  day_start: "07:30"
  day_end: "19:00"
  timezone: UTC
sources:
  - {name: board, type: file, path: /tmp/board.ics}
`)
	known := []calendar.RoomFeed{{ID: "board"}}

	opts, err := roomOptions(cfg, known)
	if err != nil {
		t.Fatalf("roomOptions() error: %v", err)
	}
	if opts.MinDelay != 10*time.Minute {
		t.Errorf("MinDelay = %v", opts.MinDelay)
	}
	if opts.DayStart != (rooms.Clock{Hour: 7, Minute: 30}) || opts.DayEnd != (rooms.Clock{Hour: 19}) {
		t.Errorf("day bounds = %v - %v", opts.DayStart, opts.DayEnd)
	}
	if opts.Location != time.UTC {
		t.Errorf("Location = %v", opts.Location)
	}
	if len(opts.Rooms) != 1 {
		t.Errorf("Rooms = %+v", opts.Rooms)
	}
}

func normalize(s string) []string {
	var lines []string
	for _, l := range strings.Split(strings.TrimSpace(s), "\n") {
		lines = append(lines, strings.Join(strings.Fields(l), " "))
	}
	return lines
}

func TestPrintAgenda(t *testing.T) {
	now := time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC)
	at := func(day, h, m int) time.Time { return time.Date(2024, 1, day, h, m, 0, 0, time.UTC) }

	alpha := &rooms.Room{ID: "a", Name: "Alpha", Status: rooms.FreeUntil, FreeTo: at(1, 14, 25)}
	beta := &rooms.Room{ID: "b", Name: "Beta", Status: rooms.FreeIndefinitely}
	a := rooms.Agenda{
		Now:           now,
		CurrentlyFree: []*rooms.Room{alpha, beta},
		Badge:         rooms.Badge{Minutes: 25, Valid: true},
		Future: []rooms.Hole{
			{Start: at(1, 9, 0), End: at(1, 10, 0), Name: "Alpha", RoomID: "a"},
			{Start: at(1, 15, 0), End: at(1, 16, 0), Name: "Alpha", RoomID: "a"},
			{Start: at(1, 16, 30), End: at(1, 18, 0), Name: "Gamma", RoomID: "g", TillDayEnd: true},
			{Start: at(2, 8, 0), End: at(2, 9, 0), Name: "Gamma", RoomID: "g", FromMorning: true},
		},
	}

	var buf bytes.Buffer
	if err := printAgenda(&buf, a, time.UTC, false); err != nil {
		t.Fatal(err)
	}

	want := []string{
		"Free rooms",
		"until 14:25 Alpha",
		"free Beta",
		"next room taken in 25 min",
		"Today",
		"15:00 - 16:00 Alpha",
		"16:30 - 18:00+ Gamma",
		"Tuesday, January 2",
		"+08:00 - 09:00 Gamma",
	}
	got := normalize(buf.String())
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("printAgenda() =\n%s", buf.String())
	}
	if strings.Contains(buf.String(), "\x1b[") {
		t.Error("colors written with color disabled")
	}
}

func TestPaint(t *testing.T) {
	tests := []struct {
		name    string
		bg, fg  string
		enabled bool
		want    string
	}{
		{"disabled", "#ff0000", "#ffffff", false, "x"},
		{"both", "#ff0000", "#fff", true, "\x1b[38;2;255;255;255;48;2;255;0;0mx\x1b[0m"},
		{"background only", "#9fe1e7", "", true, "\x1b[48;2;159;225;231mx\x1b[0m"},
		{"invalid", "blue", "#12", true, "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := paint("x", tt.bg, tt.fg, tt.enabled); got != tt.want {
				t.Errorf("paint() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLookupSource(t *testing.T) {
	cfg := mustParse(t, `
sources:
  - {name: board, type: file, path: /tmp/board.ics}
  - {name: hq, type: ms365, calendars: [room@example.com]}
`)

	if s, err := lookupSource(cfg, "hq", config.SourceMS365); err != nil || s.Name != "hq" {
		t.Errorf("lookupSource(hq) = %v, %v", s, err)
	}
	if _, err := lookupSource(cfg, "board", config.SourceGoogle); err == nil {
		t.Error("expected a type mismatch error")
	}
	if _, err := lookupSource(cfg, "missing", config.SourceGoogle); err == nil {
		t.Error("expected an error for an unknown source")
	}
}

func TestAgendaCommandFromFile(t *testing.T) {
	dir := t.TempDir()
	board := calendar.RoomFeed{ID: "board", Title: "Board"}
	ics := filepath.Join(dir, "rooms.ics")
	events := []calendar.Event{
		{UID: "1", Summary: "Review", Start: time.Date(2020, 1, 1, 9, 0, 0, 0, time.UTC), End: time.Date(2020, 1, 1, 10, 0, 0, 0, time.UTC), Feed: board},
		{UID: "2", Summary: "Retro", Start: time.Date(2020, 1, 1, 11, 0, 0, 0, time.UTC), End: time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC), Feed: board},
	}
	if err := calendar.WriteICS(ics, events); err != nil {
		t.Fatal(err)
	}

	cfgFile := filepath.Join(dir, "config.yaml")
	doc := "rooms: {timezone: UTC}\nsources:\n  - {name: board, type: file, path: " + ics + "}\n"
	if err := os.WriteFile(cfgFile, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--config", cfgFile, "agenda", "--json", "--file", ics})
	if err := root.Execute(); err != nil {
		t.Fatalf("agenda failed: %v", err)
	}
	t.Cleanup(func() { configPath = "" })

	var got struct {
		CurrentlyFree []json.RawMessage `json:"currentlyFree"`
		Future        []struct {
			Name   string `json:"name"`
			RoomID string `json:"room_id"`
		} `json:"future"`
	}
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out.String())
	}

	// Both bookings are in the past, so the room is not free now and the
	// single hole between them is reported.
	if len(got.CurrentlyFree) != 0 {
		t.Errorf("currentlyFree = %d rooms", len(got.CurrentlyFree))
	}
	if len(got.Future) != 1 || got.Future[0].Name != "Board" || got.Future[0].RoomID != "board" {
		t.Errorf("future = %+v", got.Future)
	}
}
