// Package sync fetches room bookings from every configured source.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/cpuguy83/roombar/internal/calendar"
	"github.com/cpuguy83/roombar/internal/config"
	"github.com/cpuguy83/roombar/internal/filter"
)

// sourceWithFilter pairs a source with its include/exclude filter.
type sourceWithFilter struct {
	source calendar.Source
	filter *filter.Filter
}

// Result is the outcome of one sync pass.
type Result struct {
	// Events are the filtered bookings of all sources, sorted by start.
	Events []calendar.Event
	// Feeds lists the rooms of the sources that were read, in source order.
	// Rooms of failed sources are absent, never free.
	Feeds []calendar.RoomFeed
	// Failed names the sources that could not be fetched.
	Failed []string
	// At is when the pass started.
	At time.Time
}

// Syncer fetches all sources on a schedule.
type Syncer struct {
	sources   []sourceWithFilter
	global    *filter.Filter
	interval  time.Duration
	schedule  string
	timeRange time.Duration
	now       func() time.Time
}

// NewSyncer creates a Syncer and its sources from configuration.
func NewSyncer(ctx context.Context, cfg *config.Config) (*Syncer, error) {
	sources, err := createSources(ctx, cfg.Sources)
	if err != nil {
		return nil, err
	}
	global, err := filter.New(cfg.Filters)
	if err != nil {
		return nil, fmt.Errorf("global filters: %w", err)
	}

	return &Syncer{
		sources:   sources,
		global:    global,
		interval:  cfg.Sync.Interval.Std(),
		schedule:  cfg.Sync.Schedule,
		timeRange: cfg.Sync.TimeRange.Std(),
		now:       time.Now,
	}, nil
}

// Interval returns the polling interval used when no schedule is set.
func (s *Syncer) Interval() time.Duration {
	return s.interval
}

// SourceCount returns the number of configured sources.
func (s *Syncer) SourceCount() int {
	return len(s.sources)
}

// Book reserves roomID through the source that lists it. Only rooms read by
// the last sync can be booked.
func (s *Syncer) Book(ctx context.Context, roomID string, start, end time.Time, summary string) error {
	for _, sw := range s.sources {
		fs, ok := sw.source.(calendar.FeedSource)
		if !ok || !slices.ContainsFunc(fs.Feeds(), func(f calendar.RoomFeed) bool { return f.ID == roomID }) {
			continue
		}
		b, ok := sw.source.(calendar.Booker)
		if !ok {
			return fmt.Errorf("book %s: source %s cannot make bookings", roomID, sw.source.Name())
		}
		return b.Book(ctx, roomID, start, end, summary)
	}
	return fmt.Errorf("book %s: no source lists this room", roomID)
}

// Sync fetches every source concurrently. A failing source is logged and
// listed in Result.Failed; an error is returned only when all of them fail.
func (s *Syncer) Sync(ctx context.Context) (Result, error) {
	start := s.now()
	end := start.Add(s.timeRange)
	slog.Info("starting sync", "sources", len(s.sources), "until", end.Format(time.RFC3339))

	type fetched struct {
		events []calendar.Event
		total  int
		err    error
	}
	results := make([]fetched, len(s.sources))

	var wg sync.WaitGroup
	for i, swf := range s.sources {
		i, swf := i, swf
		wg.Add(1)
		go func() {
			defer wg.Done()
			slog.Debug("fetching source", "name", swf.source.Name())
			events, err := swf.source.Fetch(ctx, end)
			if err != nil {
				results[i] = fetched{err: err}
				return
			}
			results[i] = fetched{events: swf.filter.Apply(events), total: len(events)}
		}()
	}
	wg.Wait()

	res := Result{At: start}
	var (
		sets [][]calendar.Event
		errs []error
	)
	for i, r := range results {
		src := s.sources[i].source
		if r.err != nil {
			slog.Warn("failed to fetch source", "name", src.Name(), "error", r.err)
			res.Failed = append(res.Failed, src.Name())
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), r.err))
			continue
		}
		slog.Info("fetched source", "name", src.Name(), "fetched", r.total, "after_filter", len(r.events))
		sets = append(sets, r.events)
		if fs, ok := src.(calendar.FeedSource); ok {
			res.Feeds = append(res.Feeds, fs.Feeds()...)
		}
	}

	res.Events = s.global.Apply(calendar.Merge(sets...))
	slog.Info("sync complete", "events", len(res.Events), "rooms", len(res.Feeds), "failed", len(res.Failed))

	if len(s.sources) > 0 && len(errs) == len(s.sources) {
		return res, errors.Join(errs...)
	}
	return res, nil
}

// Run syncs once, then on the cron schedule if one is configured or every
// interval otherwise. onSync is called after each pass. Passes never
// overlap. Run blocks until ctx is cancelled.
func (s *Syncer) Run(ctx context.Context, onSync func(Result, error)) error {
	var mu sync.Mutex
	pass := func() {
		if !mu.TryLock() {
			slog.Debug("previous sync still running, skipping")
			return
		}
		defer mu.Unlock()
		onSync(s.Sync(ctx))
	}

	pass()

	if s.schedule != "" {
		c := cron.New(cron.WithLogger(cronLogger{}))
		if _, err := c.AddFunc(s.schedule, pass); err != nil {
			return fmt.Errorf("invalid sync schedule %q: %w", s.schedule, err)
		}
		c.Start()
		slog.Info("sync scheduled", "schedule", s.schedule)

		<-ctx.Done()
		<-c.Stop().Done()
		return nil
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			pass()
		case <-ctx.Done():
			return nil
		}
	}
}

// cronLogger routes cron's own logging to slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
