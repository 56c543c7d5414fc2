package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/cpuguy83/roombar/internal/calendar"
	"github.com/cpuguy83/roombar/internal/config"
	"github.com/cpuguy83/roombar/internal/notify"
	"github.com/cpuguy83/roombar/internal/rooms"
	"github.com/cpuguy83/roombar/internal/sync"
	"github.com/cpuguy83/roombar/internal/tray"
	"github.com/cpuguy83/roombar/internal/ui"
	"github.com/cpuguy83/roombar/internal/ui/menu"
)

// tickInterval is how often the agenda is rebuilt between syncs so the
// badge keeps counting down.
const tickInterval = 30 * time.Second

// bookSummary is the title of bookings made from the menu.
const bookSummary = "Quick meeting"

// App is the tray daemon.
type App struct {
	cfg     *config.Config
	syncer  *sync.Syncer
	tray    *tray.Tray
	ui      ui.UI
	desktop *notify.Desktop
	watcher *notify.Watcher
	now     func() time.Time

	// publish orders agenda updates to the tray, the menu and the watcher.
	publish gosync.Mutex

	mu       gosync.Mutex
	result   sync.Result
	lastErr  error
	lastSync time.Time
	agenda   rooms.Agenda
}

func runDaemon(ctx context.Context, cfg *config.Config) error {
	syncer, err := sync.NewSyncer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create syncer: %w", err)
	}

	a := &App{cfg: cfg, syncer: syncer, ui: ui.Nop{}, now: time.Now}
	if err := a.start(); err != nil {
		a.stop()
		return err
	}
	defer a.stop()

	slog.Info("roombar running",
		"sources", syncer.SourceCount(),
		"sync_interval", syncer.Interval(),
		"schedule", cfg.Sync.Schedule,
	)

	go a.tick(ctx)
	if err := syncer.Run(ctx, a.onSync); err != nil {
		return err
	}
	slog.Info("shutting down")
	return nil
}

// start wires the tray, the menu and notifications.
func (a *App) start() error {
	opts, err := roomOptions(a.cfg, nil)
	if err != nil {
		return err
	}

	if a.cfg.UI.Backend == "menu" {
		m, err := menu.New(menu.Config{
			Config:  ui.Config{MaxItems: a.cfg.UI.MaxItems, Location: opts.Location},
			Program: a.cfg.UI.Program,
			Args:    a.cfg.UI.Args,
		})
		if err != nil {
			slog.Warn("menu disabled", "error", err)
		} else {
			a.ui = m
		}
	}
	a.ui.OnAction(a.onAction)

	a.tray, err = tray.New()
	if err != nil {
		return fmt.Errorf("create tray: %w", err)
	}
	a.tray.OnActivate(a.ui.Show)
	if err := a.tray.Start(); err != nil {
		return fmt.Errorf("start tray: %w", err)
	}

	if a.cfg.Notifications.Enabled {
		d, err := notify.NewDesktop("roombar")
		if err != nil {
			slog.Warn("notifications disabled", "error", err)
		} else {
			a.desktop = d
			a.watcher = notify.NewWatcher(d)
			if err := d.WatchActions(func(id uint32, key string) {
				slog.Debug("notification action", "id", id, "action", key)
				if key == notify.ActionShow {
					a.ui.Show()
				}
			}); err != nil {
				slog.Warn("failed to watch notification actions", "error", err)
			}
		}
	}
	return nil
}

func (a *App) stop() {
	if a.tray != nil {
		if err := a.tray.Stop(); err != nil {
			slog.Debug("failed to stop tray", "error", err)
		}
	}
	if a.desktop != nil {
		a.desktop.Close()
	}
}

// onSync stores a sync result. Results older than the stored one are
// dropped; on error the previous bookings are kept and marked stale.
func (a *App) onSync(res sync.Result, err error) {
	a.mu.Lock()
	if err != nil {
		slog.Warn("sync failed", "error", err)
		a.lastErr = err
	} else if !res.At.Before(a.result.At) {
		a.result = res
		a.lastErr = nil
		a.lastSync = res.At
	}
	a.mu.Unlock()

	a.refresh()

	if err == nil && a.cfg.Sync.Output != "" {
		a.export()
	}
}

// refresh rebuilds the agenda from the latest result and pushes it to the
// tray, the menu and the notification watcher.
func (a *App) refresh() {
	a.publish.Lock()
	defer a.publish.Unlock()

	agenda, stale, err := a.build()
	if err != nil {
		slog.Error("invalid room options", "error", err)
		return
	}
	if !a.store(agenda) {
		slog.Debug("dropping outdated agenda", "at", agenda.Now)
		return
	}

	a.tray.Show(tray.DisplayFor(agenda, stale))
	a.ui.SetAgenda(agenda, stale)
	if a.watcher != nil && !stale {
		a.watcher.Update(agenda)
	}
}

// build computes the agenda for now from the stored result. Bookings that
// ended since the sync are dropped.
func (a *App) build() (rooms.Agenda, bool, error) {
	a.mu.Lock()
	res := a.result
	stale := a.isStale()
	a.mu.Unlock()

	opts, err := roomOptions(a.cfg, res.Feeds)
	if err != nil {
		return rooms.Agenda{}, false, err
	}
	opts.Now = a.now
	opts.DropEnded = true

	agenda := rooms.Build(res.Events, opts)
	if n := agenda.Skipped(); n > 0 {
		slog.Debug("skipped malformed events", "count", n)
	}
	return agenda, stale, nil
}

// store keeps agenda unless a newer one is already stored, and reports
// whether it did.
func (a *App) store(agenda rooms.Agenda) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if agenda.Now.Before(a.agenda.Now) {
		return false
	}
	a.agenda = agenda
	return true
}

// isStale reports whether the bookings cannot be trusted. Callers hold mu.
func (a *App) isStale() bool {
	if a.lastErr != nil || a.lastSync.IsZero() {
		return true
	}
	return a.now().Sub(a.lastSync) > 2*a.syncer.Interval()
}

func (a *App) tick(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.refresh()
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) onAction(act ui.Action) {
	switch act.Type {
	case ui.ActionRefresh:
		slog.Info("refresh requested")
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			a.onSync(a.syncer.Sync(ctx))
		}()
	case ui.ActionCopy:
		menu.CopyToClipboard(act.Text)
	case ui.ActionBook:
		slog.Info("booking requested", "room", act.RoomID, "start", act.Start, "end", act.End)
		go a.book(act)
	}
}

// book reserves a room through the source that owns it, then syncs so the
// booking shows up.
func (a *App) book(act ui.Action) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := a.syncer.Book(ctx, act.RoomID, act.Start, act.End, bookSummary); err != nil {
		slog.Error("failed to book room", "room", act.RoomID, "error", err)
		if a.desktop != nil {
			if _, err := a.desktop.Send(notify.Notification{
				Summary: "Could not book " + act.Text,
				Body:    err.Error(),
				Urgency: notify.UrgencyNormal,
			}); err != nil {
				slog.Debug("failed to send notification", "error", err)
			}
		}
		return
	}
	a.onSync(a.syncer.Sync(ctx))
}

// export writes the current free windows to the configured ICS file.
func (a *App) export() {
	a.mu.Lock()
	events := a.agenda.FreeEvents()
	a.mu.Unlock()

	if err := writeFree(a.cfg.Sync.Output, events); err != nil {
		slog.Warn("failed to export free windows", "path", a.cfg.Sync.Output, "error", err)
		return
	}
	slog.Debug("exported free windows", "path", a.cfg.Sync.Output, "count", len(events))
}

func writeFree(path string, events []calendar.Event) error {
	if path == "" {
		return errors.New("no output path")
	}
	return calendar.WriteICS(path, events)
}
