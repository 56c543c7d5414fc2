// roombar is a tray application that shows which meeting rooms are free.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cpuguy83/roombar/internal/calendar"
	"github.com/cpuguy83/roombar/internal/config"
	"github.com/cpuguy83/roombar/internal/rooms"
	"github.com/cpuguy83/roombar/internal/sync"
)

var (
	configPath string
	verbose    bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "roombar",
		Short: "Show free meeting rooms in the system tray",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runDaemon(cmd.Context(), cfg)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default: ~/.config/roombar/config.yaml)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")

	root.AddCommand(agendaCmd())
	root.AddCommand(exportCmd())
	root.AddCommand(loginCmd())
	return root
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFrom(configPath)
	}
	return config.Load()
}

// roomOptions builds the availability options from configuration. known
// lists the rooms the sources announced, so empty rooms show up as free.
func roomOptions(cfg *config.Config, known []calendar.RoomFeed) (rooms.Options, error) {
	dayStart, err := rooms.ParseClock(cfg.Rooms.DayStart)
	if err != nil {
		return rooms.Options{}, err
	}
	dayEnd, err := rooms.ParseClock(cfg.Rooms.DayEnd)
	if err != nil {
		return rooms.Options{}, err
	}

	loc := time.Local
	if cfg.Rooms.Timezone != "" {
		loc, err = time.LoadLocation(cfg.Rooms.Timezone)
		if err != nil {
			return rooms.Options{}, fmt.Errorf("load timezone: %w", err)
		}
	}

	return rooms.Options{
		MinDelay: cfg.Rooms.MinDelay.Std(),
		DayStart: dayStart,
		DayEnd:   dayEnd,
		Location: loc,
		Rooms:    known,
	}, nil
}

// syncOnce runs a single sync pass and builds the agenda.
func syncOnce(ctx context.Context, cfg *config.Config) (rooms.Agenda, *time.Location, error) {
	s, err := sync.NewSyncer(ctx, cfg)
	if err != nil {
		return rooms.Agenda{}, nil, fmt.Errorf("create syncer: %w", err)
	}
	res, err := s.Sync(ctx)
	if err != nil {
		return rooms.Agenda{}, nil, err
	}
	for _, name := range res.Failed {
		slog.Warn("source failed, its rooms are shown without bookings", "source", name)
	}

	opts, err := roomOptions(cfg, res.Feeds)
	if err != nil {
		return rooms.Agenda{}, nil, err
	}
	return rooms.Build(res.Events, opts), opts.Location, nil
}
