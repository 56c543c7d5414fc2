package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// GoogleSource reads Google Workspace resource calendars. Each calendar ID
// is one room; its title and colors come from the user's calendar list.
type GoogleSource struct {
	name        string
	calendarIDs []string
	style       RoomFeed
	opts        []option.ClientOption
	now         func() time.Time

	mu    sync.Mutex
	srv   *gcal.Service
	feeds map[string]RoomFeed
	// live holds the calendars read by the last Fetch.
	live map[string]bool
}

// NewGoogleSource creates a source for calendarIDs. opts configure the API
// client, typically option.WithTokenSource. Colors in style override the
// ones Google reports.
func NewGoogleSource(name string, calendarIDs []string, style RoomFeed, opts ...option.ClientOption) *GoogleSource {
	return &GoogleSource{
		name:        name,
		calendarIDs: calendarIDs,
		style:       style,
		opts:        opts,
		now:         time.Now,
		feeds:       make(map[string]RoomFeed),
	}
}

// Name returns the display name of this source.
func (s *GoogleSource) Name() string {
	return s.name
}

// Feeds returns one room per calendar read by the last Fetch.
func (s *GoogleSource) Feeds() []RoomFeed {
	s.mu.Lock()
	defer s.mu.Unlock()

	feeds := make([]RoomFeed, 0, len(s.calendarIDs))
	for _, id := range s.calendarIDs {
		if s.live[id] {
			feeds = append(feeds, s.feedLocked(id))
		}
	}
	return feeds
}

func (s *GoogleSource) feedLocked(id string) RoomFeed {
	if f, ok := s.feeds[id]; ok {
		return f
	}
	return s.applyStyle(RoomFeed{ID: id, Title: id})
}

func (s *GoogleSource) applyStyle(f RoomFeed) RoomFeed {
	if s.style.BackgroundColor != "" {
		f.BackgroundColor = s.style.BackgroundColor
	}
	if s.style.ForegroundColor != "" {
		f.ForegroundColor = s.style.ForegroundColor
	}
	return f
}

func (s *GoogleSource) service(ctx context.Context) (*gcal.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return s.srv, nil
	}
	srv, err := gcal.NewService(ctx, s.opts...)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	s.srv = srv
	return srv, nil
}

// Fetch retrieves bookings of every calendar between now and end.
func (s *GoogleSource) Fetch(ctx context.Context, end time.Time) ([]Event, error) {
	srv, err := s.service(ctx)
	if err != nil {
		return nil, err
	}

	start := s.now()

	var (
		events []Event
		failed int
	)
	live := make(map[string]bool, len(s.calendarIDs))
	defer func() {
		s.mu.Lock()
		s.live = live
		s.mu.Unlock()
	}()

	for _, id := range s.calendarIDs {
		feed := s.resolveFeed(ctx, srv, id)
		var roomEvents []Event

		call := srv.Events.List(id).
			Context(ctx).
			ShowDeleted(false).
			SingleEvents(true).
			TimeMin(start.Format(time.RFC3339)).
			TimeMax(end.Format(time.RFC3339)).
			OrderBy("startTime")

		err := call.Pages(ctx, func(page *gcal.Events) error {
			for _, item := range page.Items {
				e, ok, err := convertGoogleEvent(item, feed)
				if err != nil {
					slog.Warn("skip event conversion error", "room", id, "id", item.Id, "error", err)
					continue
				}
				if ok {
					roomEvents = append(roomEvents, e)
				}
			}
			return nil
		})
		if err != nil {
			slog.Warn("skip calendar", "source", s.name, "room", id, "error", err)
			failed++
			continue
		}
		live[id] = true
		events = append(events, roomEvents...)
	}

	if failed > 0 && failed == len(s.calendarIDs) {
		return nil, fmt.Errorf("list events: all %d calendars failed", failed)
	}
	return events, nil
}

// Book inserts an event on the user's primary calendar with the room
// invited as a resource attendee. Google accepts or declines it on the
// room's behalf.
func (s *GoogleSource) Book(ctx context.Context, roomID string, start, end time.Time, summary string) error {
	if !end.After(start) {
		return fmt.Errorf("book %s: end %s is not after start %s", roomID, end, start)
	}
	srv, err := s.service(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	feed := s.feedLocked(roomID)
	s.mu.Unlock()

	ev := &gcal.Event{
		Summary:  summary,
		Location: feed.Title,
		Start:    &gcal.EventDateTime{DateTime: start.Format(time.RFC3339)},
		End:      &gcal.EventDateTime{DateTime: end.Format(time.RFC3339)},
		Attendees: []*gcal.EventAttendee{
			{Email: roomID, Resource: true},
		},
	}
	if _, err := srv.Events.Insert("primary", ev).Context(ctx).Do(); err != nil {
		return fmt.Errorf("book %s: %w", roomID, err)
	}

	slog.Info("booked room", "source", s.name, "room", roomID, "start", start, "end", end)
	return nil
}

// resolveFeed reads title and colors from the calendar list once per room.
func (s *GoogleSource) resolveFeed(ctx context.Context, srv *gcal.Service, id string) RoomFeed {
	s.mu.Lock()
	f, ok := s.feeds[id]
	s.mu.Unlock()
	if ok {
		return f
	}

	f = RoomFeed{ID: id, Title: id}
	entry, err := srv.CalendarList.Get(id).Context(ctx).Do()
	if err != nil {
		slog.Debug("calendar not in calendar list, using id as title", "room", id, "error", err)
	} else {
		f.Title = entry.Summary
		if entry.SummaryOverride != "" {
			f.Title = entry.SummaryOverride
		}
		f.BackgroundColor = entry.BackgroundColor
		f.ForegroundColor = entry.ForegroundColor
	}
	f = s.applyStyle(f)

	s.mu.Lock()
	s.feeds[id] = f
	s.mu.Unlock()
	return f
}

// convertGoogleEvent maps an API event to a booking. ok is false for
// events that do not occupy the room.
func convertGoogleEvent(item *gcal.Event, feed RoomFeed) (e Event, ok bool, err error) {
	if item.Status == "cancelled" || item.Transparency == "transparent" {
		return Event{}, false, nil
	}
	if item.Start == nil || item.End == nil {
		return Event{}, false, fmt.Errorf("event %s has no start or end", item.Id)
	}

	e = Event{
		UID:      item.Id,
		Summary:  item.Summary,
		Location: item.Location,
		Feed:     feed,
	}
	if item.Organizer != nil {
		e.Organizer = item.Organizer.Email
	}

	var startAllDay bool
	e.Start, startAllDay, err = parseGoogleTime(item.Start)
	if err != nil {
		return Event{}, false, fmt.Errorf("parse start: %w", err)
	}
	e.End, _, err = parseGoogleTime(item.End)
	if err != nil {
		return Event{}, false, fmt.Errorf("parse end: %w", err)
	}
	e.AllDay = startAllDay || isEffectivelyAllDay(e.Start, e.End)
	return e, true, nil
}

func parseGoogleTime(dt *gcal.EventDateTime) (time.Time, bool, error) {
	if dt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, dt.DateTime)
		return t, false, err
	}
	t, err := time.ParseInLocation("2006-01-02", dt.Date, time.Local)
	return t, true, err
}

var (
	_ Source     = (*GoogleSource)(nil)
	_ FeedSource = (*GoogleSource)(nil)
)
