package calendar

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	ics "github.com/emersion/go-ical"
)

// Custom properties carrying the room feed through an ICS round trip.
const (
	propRoomID    = "X-ROOMBAR-ROOM-ID"
	propRoomTitle = "X-ROOMBAR-ROOM-TITLE"
	propRoomBG    = "X-ROOMBAR-ROOM-BACKGROUND"
	propRoomFG    = "X-ROOMBAR-ROOM-FOREGROUND"
)

// Merge combines events from multiple sources into one slice sorted by
// start time.
func Merge(eventSets ...[]Event) []Event {
	var all []Event
	for _, events := range eventSets {
		all = append(all, events...)
	}
	slices.SortStableFunc(all, func(a, b Event) int {
		return a.Start.Compare(b.Start)
	})
	return all
}

// EncodeICS writes events as a single VCALENDAR.
func EncodeICS(w io.Writer, events []Event) error {
	cal := ics.NewCalendar()
	cal.Props.SetText(ics.PropVersion, "2.0")
	cal.Props.SetText(ics.PropProductID, "-//roombar//roombar//EN")

	stamp := time.Now()
	for _, e := range events {
		comp := ics.NewComponent(ics.CompEvent)
		comp.Props.SetText(ics.PropUID, e.UID)
		comp.Props.SetText(ics.PropSummary, e.Summary)
		comp.Props.SetDateTime(ics.PropDateTimeStamp, stamp)

		if e.Location != "" {
			comp.Props.SetText(ics.PropLocation, e.Location)
		}
		if e.Organizer != "" {
			comp.Props.SetText(ics.PropOrganizer, "mailto:"+e.Organizer)
		}

		if e.AllDay {
			comp.Props.SetDate(ics.PropDateTimeStart, e.Start)
			comp.Props.SetDate(ics.PropDateTimeEnd, e.End)
		} else {
			comp.Props.SetDateTime(ics.PropDateTimeStart, e.Start)
			comp.Props.SetDateTime(ics.PropDateTimeEnd, e.End)
		}

		setIfNotEmpty(comp, propRoomID, e.Feed.ID)
		setIfNotEmpty(comp, propRoomTitle, e.Feed.Title)
		setIfNotEmpty(comp, propRoomBG, e.Feed.BackgroundColor)
		setIfNotEmpty(comp, propRoomFG, e.Feed.ForegroundColor)

		cal.Children = append(cal.Children, comp)
	}

	if err := ics.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encode ICS: %w", err)
	}
	return nil
}

func setIfNotEmpty(comp *ics.Component, name, value string) {
	if value != "" {
		comp.Props.SetText(name, value)
	}
}

// WriteICS writes events to path atomically through a temp file.
func WriteICS(path string, events []Event) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	var buf bytes.Buffer
	if err := EncodeICS(&buf, events); err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// ReadICS reads events from an ICS file.
func ReadICS(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ICS file: %w", err)
	}
	defer f.Close()

	return ParseICS(f)
}

// ParseICS reads every VEVENT in r, restoring the room feed from the
// X-ROOMBAR-ROOM-* properties. Events without them keep an empty feed.
// Recurrences are not expanded. The result is sorted by start time.
func ParseICS(r io.Reader) ([]Event, error) {
	dec := ics.NewDecoder(r)

	var events []Event
	for {
		cal, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode ICS: %w", err)
		}

		for _, comp := range cal.Children {
			if comp.Name != ics.CompEvent {
				continue
			}
			e, _, err := parseVEvent(comp)
			if err != nil {
				slog.Debug("skip unparsable event", "error", err)
				continue
			}
			e.Feed = RoomFeed{
				ID:              propText(comp, propRoomID),
				Title:           propText(comp, propRoomTitle),
				BackgroundColor: propText(comp, propRoomBG),
				ForegroundColor: propText(comp, propRoomFG),
			}
			events = append(events, e)
		}
	}

	slices.SortStableFunc(events, func(a, b Event) int {
		return a.Start.Compare(b.Start)
	})
	return events, nil
}
