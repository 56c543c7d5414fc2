package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/cpuguy83/roombar/internal/calendar"
	"github.com/cpuguy83/roombar/internal/rooms"
)

func agendaCmd() *cobra.Command {
	var (
		asJSON bool
		file   string
	)

	cmd := &cobra.Command{
		Use:   "agenda",
		Short: "Print free rooms and upcoming free windows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				a   rooms.Agenda
				loc *time.Location
				err error
			)
			if file != "" {
				a, loc, err = agendaFromFile(file)
			} else {
				cfg, lerr := loadConfig()
				if lerr != nil {
					return lerr
				}
				a, loc, err = syncOnce(cmd.Context(), cfg)
			}
			if err != nil {
				return err
			}
			if n := a.Skipped(); n > 0 {
				slog.Warn("skipped malformed events", "count", n)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(a)
			}
			return printAgenda(out, a, loc, isTerminal(out))
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	cmd.Flags().StringVar(&file, "file", "", "read bookings from an ICS file instead of syncing")
	return cmd
}

func exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [path]",
		Short: "Write upcoming free windows to an ICS file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			path := cfg.Sync.Output
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return fmt.Errorf("no output path: pass one or set sync.output")
			}

			a, _, err := syncOnce(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			events := a.FreeEvents()
			if err := writeFree(path, events); err != nil {
				return fmt.Errorf("export free windows: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d free windows to %s\n", len(events), path)
			return nil
		},
	}
}

// agendaFromFile builds an agenda from an ICS dump. Room options come from
// the config file when there is one.
func agendaFromFile(path string) (rooms.Agenda, *time.Location, error) {
	events, err := calendar.ReadICS(path)
	if err != nil {
		return rooms.Agenda{}, nil, err
	}

	opts := rooms.Options{Location: time.Local}
	if cfg, err := loadConfig(); err == nil {
		if opts, err = roomOptions(cfg, nil); err != nil {
			return rooms.Agenda{}, nil, err
		}
	} else {
		slog.Debug("using default room options", "error", err)
	}
	return rooms.Build(events, opts), opts.Location, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// printAgenda writes the agenda as aligned text, one section per day.
// With color set, room names are drawn in their feed colors.
func printAgenda(w io.Writer, a rooms.Agenda, loc *time.Location, color bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "Free rooms")
	if len(a.CurrentlyFree) == 0 {
		fmt.Fprintln(tw, "  none")
	}
	for _, r := range a.CurrentlyFree {
		until := "free"
		if r.Status == rooms.FreeUntil {
			until = "until " + r.FreeTo.In(loc).Format("15:04")
		}
		fmt.Fprintf(tw, "  %s\t%s\n", until, paint(r.Name, r.BackgroundColor, r.ForegroundColor, color))
	}
	if a.Badge.Valid {
		fmt.Fprintf(tw, "  next room taken in %d min\n", a.Badge.Minutes)
	}

	var upcoming []rooms.Hole
	for _, h := range a.Future {
		if h.End.After(a.Now) {
			upcoming = append(upcoming, h)
		}
	}
	for _, day := range rooms.Days(upcoming, a.Now, loc) {
		label := "Today"
		if !day.Today {
			label = day.Date.Format("Monday, January 2")
		}
		fmt.Fprintln(tw, label)
		if len(day.Holes) == 0 {
			fmt.Fprintln(tw, "  no free windows")
		}
		for _, h := range day.Holes {
			times := h.Start.In(loc).Format("15:04") + " - " + h.End.In(loc).Format("15:04")
			switch {
			case h.TillDayEnd:
				times += "+"
			case h.FromMorning:
				times = "+" + times
			}
			fmt.Fprintf(tw, "  %s\t%s\n", times, paint(h.Name, h.BackgroundColor, h.ForegroundColor, color))
		}
	}
	return tw.Flush()
}

// paint wraps s in 24-bit ANSI colors taken from "#rrggbb" values.
func paint(s, bg, fg string, enabled bool) string {
	if !enabled {
		return s
	}
	var codes []string
	if r, g, b, ok := parseHexColor(fg); ok {
		codes = append(codes, fmt.Sprintf("38;2;%d;%d;%d", r, g, b))
	}
	if r, g, b, ok := parseHexColor(bg); ok {
		codes = append(codes, fmt.Sprintf("48;2;%d;%d;%d", r, g, b))
	}
	if len(codes) == 0 {
		return s
	}
	return "\x1b[" + strings.Join(codes, ";") + "m" + s + "\x1b[0m"
}

func parseHexColor(s string) (r, g, b uint8, ok bool) {
	s = strings.TrimPrefix(s, "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return 0, 0, 0, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, 0, 0, false
	}
	return uint8(v >> 16), uint8(v >> 8), uint8(v), true
}
