package calendar

import (
	"context"
	"time"
)

// FileSource reads bookings from a local ICS file, such as an offline
// dump or a previous export. Events carrying X-ROOMBAR-ROOM-* properties
// keep their room; the rest are attributed to the configured feed.
type FileSource struct {
	name string
	path string
	feed RoomFeed
	now  func() time.Time
}

// NewFileSource creates a file source. Missing feed fields default to the
// path and source name.
func NewFileSource(name, path string, feed RoomFeed) *FileSource {
	if feed.ID == "" {
		feed.ID = path
	}
	if feed.Title == "" {
		feed.Title = name
	}
	return &FileSource{name: name, path: path, feed: feed, now: time.Now}
}

// Name returns the display name of this source.
func (s *FileSource) Name() string {
	return s.name
}

// Feeds returns the fallback room of this source.
func (s *FileSource) Feeds() []RoomFeed {
	return []RoomFeed{s.feed}
}

// Fetch reads the file and keeps bookings that overlap now..end.
func (s *FileSource) Fetch(ctx context.Context, end time.Time) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	all, err := ReadICS(s.path)
	if err != nil {
		return nil, err
	}

	w := window{start: s.now(), end: end}
	var events []Event
	for _, e := range all {
		if !w.overlaps(e) {
			continue
		}
		if e.Feed.ID == "" {
			e.Feed = s.feed
		}
		events = append(events, e)
	}
	return events, nil
}

var (
	_ Source     = (*FileSource)(nil)
	_ FeedSource = (*FileSource)(nil)
)
