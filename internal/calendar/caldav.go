package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	ics "github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
)

// iCloudCalDAVURL is the base URL for iCloud CalDAV.
const iCloudCalDAVURL = "https://caldav.icloud.com"

// CalDAVSource treats every calendar collection on a CalDAV server as a room.
type CalDAVSource struct {
	name      string
	url       string
	username  string
	password  string
	calendars []string // optional allow-list of collection names
	style     RoomFeed // colors applied to every discovered room
	now       func() time.Time

	mu    sync.Mutex
	feeds []RoomFeed
}

// NewCalDAVSource creates a CalDAV source. Only the colors of style are used.
func NewCalDAVSource(name, url, username, password string, calendars []string, style RoomFeed) *CalDAVSource {
	return &CalDAVSource{
		name:      name,
		url:       url,
		username:  username,
		password:  password,
		calendars: calendars,
		style:     style,
		now:       time.Now,
	}
}

// NewICloudSource creates a CalDAV source pointed at iCloud.
func NewICloudSource(name, username, password string, calendars []string, style RoomFeed) *CalDAVSource {
	return NewCalDAVSource(name, iCloudCalDAVURL, username, password, calendars, style)
}

// Name returns the display name of this source.
func (s *CalDAVSource) Name() string {
	return s.name
}

// Feeds returns the rooms found by the last successful Fetch.
func (s *CalDAVSource) Feeds() []RoomFeed {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.feeds)
}

// Fetch retrieves bookings of every selected collection between now and end.
func (s *CalDAVSource) Fetch(ctx context.Context, end time.Time) ([]Event, error) {
	httpClient := &http.Client{
		Timeout: 60 * time.Second,
		Transport: &basicAuthTransport{
			username: s.username,
			password: s.password,
			base:     http.DefaultTransport,
		},
	}

	client, err := caldav.NewClient(httpClient, s.url)
	if err != nil {
		return nil, fmt.Errorf("create caldav client: %w", err)
	}

	principal, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, fmt.Errorf("find principal: %w", err)
	}

	homeSet, err := client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("find calendar home: %w", err)
	}

	cals, err := client.FindCalendars(ctx, homeSet)
	if err != nil {
		return nil, fmt.Errorf("find calendars: %w", err)
	}

	w := window{start: s.now(), end: end}

	var (
		events []Event
		feeds  []RoomFeed
	)
	for _, cal := range cals {
		if !s.selected(cal.Name) {
			continue
		}

		feed := s.feedFor(cal)
		roomEvents, err := s.queryRoom(ctx, client, cal.Path, feed, w)
		if err != nil {
			slog.Warn("skip calendar", "source", s.name, "room", feed.ID, "error", err)
			continue
		}
		feeds = append(feeds, feed)
		events = append(events, roomEvents...)
	}

	s.mu.Lock()
	s.feeds = feeds
	s.mu.Unlock()

	return events, nil
}

func (s *CalDAVSource) selected(name string) bool {
	if len(s.calendars) == 0 {
		return true
	}
	return slices.ContainsFunc(s.calendars, func(c string) bool {
		return strings.EqualFold(c, name)
	})
}

func (s *CalDAVSource) feedFor(cal caldav.Calendar) RoomFeed {
	title := cal.Name
	if title == "" {
		title = cal.Path
	}
	return RoomFeed{
		ID:              cal.Path,
		Title:           title,
		BackgroundColor: s.style.BackgroundColor,
		ForegroundColor: s.style.ForegroundColor,
	}
}

// queryRoom runs a time-range REPORT against one collection.
func (s *CalDAVSource) queryRoom(ctx context.Context, client *caldav.Client, path string, feed RoomFeed, w window) ([]Event, error) {
	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name: ics.CompCalendar,
			Comps: []caldav.CalendarCompRequest{{
				Name: ics.CompEvent,
				Props: []string{
					ics.PropUID,
					ics.PropSummary,
					ics.PropLocation,
					ics.PropOrganizer,
					ics.PropDateTimeStart,
					ics.PropDateTimeEnd,
					ics.PropDuration,
					ics.PropRecurrenceRule,
					ics.PropRecurrenceDates,
					ics.PropExceptionDates,
				},
			}},
		},
		CompFilter: caldav.CompFilter{
			Name: ics.CompCalendar,
			Comps: []caldav.CompFilter{{
				Name:  ics.CompEvent,
				Start: w.start,
				End:   w.end,
			}},
		},
	}

	objects, err := client.QueryCalendar(ctx, path, query)
	if err != nil {
		return nil, fmt.Errorf("query calendar %s: %w", path, err)
	}

	var events []Event
	for _, obj := range objects {
		if obj.Data == nil {
			continue
		}
		for _, comp := range obj.Data.Children {
			if comp.Name != ics.CompEvent {
				continue
			}
			occurrences, err := expandEvent(comp, w)
			if err != nil {
				slog.Debug("skip unparsable event", "room", feed.ID, "error", err)
				continue
			}
			for _, e := range occurrences {
				if w.overlaps(e) {
					e.Feed = feed
					events = append(events, e)
				}
			}
		}
	}
	return events, nil
}

// basicAuthTransport adds basic auth to HTTP requests.
type basicAuthTransport struct {
	username string
	password string
	base     http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.SetBasicAuth(t.username, t.password)
	return t.base.RoundTrip(req)
}

var (
	_ Source     = (*CalDAVSource)(nil)
	_ FeedSource = (*CalDAVSource)(nil)
)
