package calendar

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	ics "github.com/emersion/go-ical"
)

// ICSSource fetches the bookings of a single room from an ICS URL.
type ICSSource struct {
	name     string
	url      string
	username string
	password string
	feed     RoomFeed
	client   *http.Client
	now      func() time.Time
}

// NewICSSource creates a source for one room published as an ICS feed.
// Missing feed fields default to the URL and source name.
func NewICSSource(name, url, username, password string, feed RoomFeed) *ICSSource {
	if feed.ID == "" {
		feed.ID = url
	}
	if feed.Title == "" {
		feed.Title = name
	}
	return &ICSSource{
		name:     name,
		url:      url,
		username: username,
		password: password,
		feed:     feed,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		now: time.Now,
	}
}

// Name returns the display name of this source.
func (s *ICSSource) Name() string {
	return s.name
}

// Feeds returns the room served by this source.
func (s *ICSSource) Feeds() []RoomFeed {
	return []RoomFeed{s.feed}
}

// Fetch retrieves the room's bookings between now and end.
func (s *ICSSource) Fetch(ctx context.Context, end time.Time) ([]Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if s.username != "" && s.password != "" {
		req.SetBasicAuth(s.username, s.password)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch ICS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch ICS: status %d", resp.StatusCode)
	}

	return decodeFeed(resp.Body, s.feed, window{start: s.now(), end: end})
}

// window is the time range a source reports bookings for.
type window struct {
	start time.Time
	end   time.Time
}

func (w window) overlaps(e Event) bool {
	return e.End.After(w.start) && e.Start.Before(w.end)
}

// decodeFeed reads every VEVENT in r, expands recurrences inside w and
// attributes the result to feed.
func decodeFeed(r io.Reader, feed RoomFeed, w window) ([]Event, error) {
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
			occurrences, err := expandEvent(comp, w)
			if err != nil {
				slog.Debug("skip unparsable event", "room", feed.ID, "error", err)
				continue
			}
			for _, e := range occurrences {
				if !w.overlaps(e) {
					continue
				}
				e.Feed = feed
				events = append(events, e)
			}
		}
	}
	return events, nil
}

// expandEvent returns the occurrences of a VEVENT that may fall inside w.
// Non-recurring events come back as a single occurrence.
func expandEvent(comp *ics.Component, w window) ([]Event, error) {
	base, duration, err := parseVEvent(comp)
	if err != nil {
		return nil, err
	}

	rset, err := comp.RecurrenceSet(time.Local)
	if err != nil {
		return nil, fmt.Errorf("parse recurrence: %w", err)
	}
	if rset == nil {
		return []Event{base}, nil
	}

	// Look back by one duration so an occurrence already in progress is kept.
	starts := rset.Between(w.start.Add(-duration), w.end, true)
	events := make([]Event, 0, len(starts))
	for _, start := range starts {
		e := base
		e.Start = start
		e.End = start.Add(duration)
		e.AllDay = base.AllDay || isEffectivelyAllDay(e.Start, e.End)
		e.UID = fmt.Sprintf("%s_%d", base.UID, start.Unix())
		events = append(events, e)
	}
	return events, nil
}

// parseVEvent converts the fields of a VEVENT. It returns the booking
// length separately so recurrences can reuse it.
func parseVEvent(comp *ics.Component) (Event, time.Duration, error) {
	var e Event
	e.UID = propText(comp, ics.PropUID)
	e.Summary = propText(comp, ics.PropSummary)
	e.Location = propText(comp, ics.PropLocation)
	e.Organizer = strings.TrimPrefix(propText(comp, ics.PropOrganizer), "mailto:")

	prop := comp.Props.Get(ics.PropDateTimeStart)
	if prop == nil {
		return e, 0, fmt.Errorf("event %q has no DTSTART", e.UID)
	}
	start, dateOnly, err := parseTimeProp(prop)
	if err != nil {
		return e, 0, fmt.Errorf("parse start time: %w", err)
	}
	e.Start = start

	duration := time.Hour
	if prop := comp.Props.Get(ics.PropDateTimeEnd); prop != nil {
		end, _, err := parseTimeProp(prop)
		if err != nil {
			return e, 0, fmt.Errorf("parse end time: %w", err)
		}
		duration = end.Sub(start)
	} else if prop := comp.Props.Get(ics.PropDuration); prop != nil {
		d, err := prop.Duration()
		if err != nil {
			return e, 0, fmt.Errorf("parse duration: %w", err)
		}
		duration = d
	} else if dateOnly {
		duration = 24 * time.Hour
	}

	e.End = start.Add(duration)
	e.AllDay = dateOnly || isEffectivelyAllDay(e.Start, e.End)
	return e, duration, nil
}

func propText(comp *ics.Component, name string) string {
	if prop := comp.Props.Get(name); prop != nil {
		return prop.Value
	}
	return ""
}

// parseTimeProp parses DTSTART/DTEND values. It accepts zoned and UTC
// date-times, floating date-times and date-only values; the latter two are
// read in local time. dateOnly is set for date-only values.
func parseTimeProp(prop *ics.Prop) (t time.Time, dateOnly bool, err error) {
	if t, err := prop.DateTime(time.Local); err == nil {
		return t, prop.ValueType() == ics.ValueDate, nil
	}
	if t, err := time.ParseInLocation("20060102T150405", prop.Value, time.Local); err == nil {
		return t, false, nil
	}
	t, err = time.ParseInLocation("20060102", prop.Value, time.Local)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

var (
	_ Source     = (*ICSSource)(nil)
	_ FeedSource = (*ICSSource)(nil)
)
