package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cpuguy83/roombar/internal/auth"
)

const (
	graphBaseURL = "https://graph.microsoft.com/v1.0"

	graphDateTimeLayout = "2006-01-02T15:04:05"

	// Scopes needed to read room mailboxes shared with the signed-in user
	// and to book them from the user's own calendar.
	calendarSharedScope = "Calendars.Read.Shared"
	calendarWriteScope  = "Calendars.ReadWrite"
	userReadScope       = "User.ReadBasic.All"
)

// MS365Scopes are the Graph scopes MS365Source tokens must carry.
var MS365Scopes = []string{calendarSharedScope, calendarWriteScope, userReadScope}

// MS365Source reads room mailbox calendars through Microsoft Graph.
type MS365Source struct {
	name      string
	mailboxes []string
	style     RoomFeed
	auth      auth.TokenProvider
	client    *http.Client
	baseURL   string
	now       func() time.Time

	mu     sync.Mutex
	titles map[string]string
	// live holds the mailboxes read by the last Fetch.
	live map[string]bool
}

// NewMS365Source creates a source for the given room mailboxes. Only the
// colors of style are used.
func NewMS365Source(name string, mailboxes []string, style RoomFeed, tokens auth.TokenProvider) *MS365Source {
	return &MS365Source{
		name:      name,
		mailboxes: mailboxes,
		style:     style,
		auth:      tokens,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: graphBaseURL,
		now:     time.Now,
		titles:  make(map[string]string),
	}
}

// Name returns the display name of this source.
func (s *MS365Source) Name() string {
	return s.name
}

// Feeds returns one room per mailbox read by the last Fetch.
func (s *MS365Source) Feeds() []RoomFeed {
	s.mu.Lock()
	defer s.mu.Unlock()

	feeds := make([]RoomFeed, 0, len(s.mailboxes))
	for _, mb := range s.mailboxes {
		if s.live[mb] {
			feeds = append(feeds, s.feedLocked(mb))
		}
	}
	return feeds
}

func (s *MS365Source) feedLocked(mailbox string) RoomFeed {
	title := s.titles[mailbox]
	if title == "" {
		title = mailbox
	}
	return RoomFeed{
		ID:              mailbox,
		Title:           title,
		BackgroundColor: s.style.BackgroundColor,
		ForegroundColor: s.style.ForegroundColor,
	}
}

// Fetch retrieves bookings of every mailbox between now and end. A mailbox
// that fails is logged and skipped.
func (s *MS365Source) Fetch(ctx context.Context, end time.Time) ([]Event, error) {
	token, err := s.auth.GetToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}

	start := s.now()

	var (
		events []Event
		failed int
	)
	live := make(map[string]bool, len(s.mailboxes))
	defer func() {
		s.mu.Lock()
		s.live = live
		s.mu.Unlock()
	}()

	for _, mb := range s.mailboxes {
		s.resolveTitle(ctx, token.AccessToken, mb)

		s.mu.Lock()
		feed := s.feedLocked(mb)
		s.mu.Unlock()

		roomEvents, err := s.fetchCalendarView(ctx, token.AccessToken, feed, start, end)
		if err != nil {
			slog.Warn("skip room mailbox", "source", s.name, "room", mb, "error", err)
			failed++
			continue
		}
		live[mb] = true
		events = append(events, roomEvents...)
	}

	if failed > 0 && failed == len(s.mailboxes) {
		return nil, fmt.Errorf("fetch calendar view: all %d mailboxes failed", failed)
	}
	return events, nil
}

// Close releases the token provider.
func (s *MS365Source) Close() error {
	if s.auth != nil {
		return s.auth.Close()
	}
	return nil
}

// resolveTitle looks up the mailbox display name once.
func (s *MS365Source) resolveTitle(ctx context.Context, accessToken, mailbox string) {
	s.mu.Lock()
	_, done := s.titles[mailbox]
	s.mu.Unlock()
	if done {
		return
	}

	reqURL := s.baseURL + "/users/" + url.PathEscape(mailbox) + "?$select=displayName"
	var user struct {
		DisplayName string `json:"displayName"`
	}
	if err := s.getJSON(ctx, accessToken, reqURL, &user); err != nil {
		slog.Debug("could not resolve room name", "room", mailbox, "error", err)
		return
	}

	s.mu.Lock()
	s.titles[mailbox] = user.DisplayName
	s.mu.Unlock()
}

// graphCalendarResponse is one page of a calendarView response.
type graphCalendarResponse struct {
	Value    []graphEvent `json:"value"`
	NextLink string       `json:"@odata.nextLink,omitempty"`
}

type graphEvent struct {
	ID          string          `json:"id"`
	Subject     string          `json:"subject"`
	Start       graphDateTime   `json:"start"`
	End         graphDateTime   `json:"end"`
	Location    *graphLocation  `json:"location,omitempty"`
	IsAllDay    bool            `json:"isAllDay"`
	IsCancelled bool            `json:"isCancelled"`
	Organizer   *graphOrganizer `json:"organizer,omitempty"`
	ShowAs      string          `json:"showAs"`
}

type graphDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type graphLocation struct {
	DisplayName string `json:"displayName"`
}

type graphOrganizer struct {
	EmailAddress struct {
		Name    string `json:"name"`
		Address string `json:"address"`
	} `json:"emailAddress"`
}

// fetchCalendarView pages through /users/{mailbox}/calendarView, which
// returns recurring bookings already expanded.
func (s *MS365Source) fetchCalendarView(ctx context.Context, accessToken string, feed RoomFeed, start, end time.Time) ([]Event, error) {
	params := url.Values{}
	params.Set("startDateTime", start.UTC().Format(time.RFC3339))
	params.Set("endDateTime", end.UTC().Format(time.RFC3339))
	params.Set("$orderby", "start/dateTime")
	params.Set("$top", "500")
	params.Set("$select", "id,subject,start,end,location,isAllDay,isCancelled,organizer,showAs")

	reqURL := s.baseURL + "/users/" + url.PathEscape(feed.ID) + "/calendarView?" + params.Encode()

	var events []Event
	for reqURL != "" {
		var page graphCalendarResponse
		if err := s.getJSON(ctx, accessToken, reqURL, &page); err != nil {
			return nil, err
		}
		for _, ge := range page.Value {
			if ge.IsCancelled || ge.ShowAs == "free" {
				continue
			}
			e, err := convertGraphEvent(ge, feed)
			if err != nil {
				slog.Warn("skip event conversion error", "room", feed.ID, "id", ge.ID, "error", err)
				continue
			}
			events = append(events, e)
		}
		reqURL = page.NextLink
	}

	slog.Debug("fetched room bookings", "room", feed.ID, "count", len(events))
	return events, nil
}

func (s *MS365Source) getJSON(ctx context.Context, accessToken, reqURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Prefer", `outlook.timezone="UTC"`)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("graph API error: status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func convertGraphEvent(ge graphEvent, feed RoomFeed) (Event, error) {
	e := Event{
		UID:     ge.ID,
		Summary: ge.Subject,
		AllDay:  ge.IsAllDay,
		Feed:    feed,
	}

	start, err := parseGraphDateTime(ge.Start)
	if err != nil {
		return e, fmt.Errorf("parse start: %w", err)
	}
	end, err := parseGraphDateTime(ge.End)
	if err != nil {
		return e, fmt.Errorf("parse end: %w", err)
	}
	e.Start, e.End = start, end

	if ge.Location != nil {
		e.Location = ge.Location.DisplayName
	}
	if ge.Organizer != nil {
		e.Organizer = ge.Organizer.EmailAddress.Address
	}
	return e, nil
}

// parseGraphDateTime parses a Graph datetime. Values are UTC because every
// request sends the outlook.timezone preference.
func parseGraphDateTime(gdt graphDateTime) (time.Time, error) {
	formats := []string{
		"2006-01-02T15:04:05.0000000",
		"2006-01-02T15:04:05",
		"2006-01-02",
	}
	for _, format := range formats {
		if t, err := time.ParseInLocation(format, gdt.DateTime, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse datetime: %s", gdt.DateTime)
}

var (
	_ Source     = (*MS365Source)(nil)
	_ FeedSource = (*MS365Source)(nil)
)

type graphAttendee struct {
	EmailAddress struct {
		Address string `json:"address"`
	} `json:"emailAddress"`
	Type string `json:"type"`
}

type graphNewEvent struct {
	Subject   string          `json:"subject"`
	Start     graphDateTime   `json:"start"`
	End       graphDateTime   `json:"end"`
	Location  graphLocation   `json:"location"`
	Attendees []graphAttendee `json:"attendees"`
}

// Book creates an event on the signed-in user's calendar with the room
// mailbox invited as a resource. Exchange accepts or declines it on the
// room's behalf.
func (s *MS365Source) Book(ctx context.Context, roomID string, start, end time.Time, summary string) error {
	if !end.After(start) {
		return fmt.Errorf("book %s: end %s is not after start %s", roomID, end, start)
	}
	token, err := s.auth.GetToken(ctx)
	if err != nil {
		return fmt.Errorf("get token: %w", err)
	}

	s.mu.Lock()
	feed := s.feedLocked(roomID)
	s.mu.Unlock()

	ev := graphNewEvent{
		Subject:  summary,
		Start:    graphDateTime{DateTime: start.UTC().Format(graphDateTimeLayout), TimeZone: "UTC"},
		End:      graphDateTime{DateTime: end.UTC().Format(graphDateTimeLayout), TimeZone: "UTC"},
		Location: graphLocation{DisplayName: feed.Title},
	}
	var room graphAttendee
	room.EmailAddress.Address = roomID
	room.Type = "resource"
	ev.Attendees = []graphAttendee{room}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/me/events", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("book %s: %w", roomID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("book %s: graph API error: status %d: %s", roomID, resp.StatusCode, string(msg))
	}

	slog.Info("booked room", "source", s.name, "room", roomID, "start", start, "end", end)
	return nil
}
