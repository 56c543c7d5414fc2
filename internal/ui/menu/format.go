package menu

import (
	"fmt"
	"strings"
	"time"

	"github.com/cpuguy83/roombar/internal/rooms"
)

const (
	headerFree   = "Free rooms"
	headerToday  = "Today"
	noneFree     = "No room is free at the moment"
	noneToday    = "No free windows left today"
	staleWarning = "⚠ Room data may be out of date"
	refreshLine  = "↻ Refresh"
	backLine     = "← Back"
	bookPrefix   = "📅 Book "

	// bookLength is the longest booking made from the menu.
	bookLength = 30 * time.Minute
)

// entry is what a selectable line refers to.
type entry struct {
	roomID string
	// copy is the text put on the clipboard.
	copy string

	// book is set on booking lines, which reserve start to end.
	book       bool
	start, end time.Time
}

// formatAgenda renders the agenda as launcher lines. Free windows that
// already ended are skipped and at most maxItems are listed (0 = all).
func formatAgenda(a rooms.Agenda, stale bool, maxItems int, loc *time.Location) ([]string, map[string]entry) {
	if loc == nil {
		loc = time.Local
	}

	var lines []string
	entries := make(map[string]entry)
	add := func(line string, e entry) {
		lines = append(lines, line)
		entries[strings.TrimSpace(line)] = e
	}

	if stale {
		lines = append(lines, staleWarning)
	}

	lines = append(lines, header(headerFree))
	if len(a.CurrentlyFree) == 0 {
		lines = append(lines, "  "+noneFree)
	}
	for _, r := range a.CurrentlyFree {
		line := "  " + freeRoomLine(r, loc)
		add(line, entry{roomID: r.ID, copy: strings.TrimSpace(line)})
	}

	var upcoming []rooms.Hole
	for _, h := range a.Future {
		if h.End.After(a.Now) {
			upcoming = append(upcoming, h)
		}
	}

	listed := 0
	for _, day := range rooms.Days(upcoming, a.Now, loc) {
		if maxItems > 0 && listed >= maxItems {
			break
		}
		lines = append(lines, header(dayLabel(day)))
		if day.Today && len(day.Holes) == 0 {
			lines = append(lines, "  "+noneToday)
		}
		for _, h := range day.Holes {
			if maxItems > 0 && listed >= maxItems {
				break
			}
			line := "  " + holeLine(h, loc)
			add(line, entry{roomID: h.RoomID, copy: dayPrefix(h.Start, a.Now, loc) + holeLine(h, loc)})
			listed++
		}
	}
	if rest := len(upcoming) - listed; rest > 0 {
		lines = append(lines, fmt.Sprintf("  … %d more", rest))
	}

	lines = append(lines, "", refreshLine)
	return lines, entries
}

// formatRoom renders one room: its status and every upcoming free window.
func formatRoom(r *rooms.Room, a rooms.Agenda, loc *time.Location) ([]string, map[string]entry) {
	if loc == nil {
		loc = time.Local
	}

	var lines []string
	entries := make(map[string]entry)

	addBook := func(start, end time.Time) {
		start, end, ok := bookWindow(start, end, a.Now)
		if !ok {
			return
		}
		line := "  " + bookPrefix + dayPrefix(start, a.Now, loc) + start.In(loc).Format("15:04") + " - " + end.In(loc).Format("15:04")
		lines = append(lines, line)
		entries[strings.TrimSpace(line)] = entry{roomID: r.ID, book: true, start: start, end: end}
	}

	lines = append(lines, header(r.Name))
	switch r.Status {
	case rooms.FreeUntil:
		lines = append(lines, "  Free until "+r.FreeTo.In(loc).Format("15:04"))
		addBook(a.Now, r.FreeTo)
	case rooms.FreeIndefinitely:
		lines = append(lines, "  Free, no bookings")
		addBook(a.Now, a.Now.Add(bookLength))
	default:
		lines = append(lines, "  Busy")
	}
	lines = append(lines, fmt.Sprintf("  %d bookings", len(r.Events)))

	found := false
	for _, h := range a.Future {
		if h.RoomID != r.ID || !h.End.After(a.Now) {
			continue
		}
		if !found {
			lines = append(lines, header("Free windows"))
			found = true
		}
		line := "  " + dayPrefix(h.Start, a.Now, loc) + holeTimes(h, loc)
		lines = append(lines, line)
		entries[strings.TrimSpace(line)] = entry{roomID: r.ID, copy: r.Name + " " + strings.TrimSpace(line)}
		addBook(h.Start, h.End)
	}

	lines = append(lines, "", backLine)
	return lines, entries
}

// bookWindow clips a free window to a booking of at most bookLength that
// does not start in the past. ok is false when less than a minute is left.
func bookWindow(start, end, now time.Time) (time.Time, time.Time, bool) {
	if start.Before(now) {
		start = now
	}
	if limit := start.Add(bookLength); end.After(limit) {
		end = limit
	}
	if end.Sub(start) < time.Minute {
		return start, end, false
	}
	return start, end, true
}

func header(s string) string {
	return "━━━━ " + s + " ━━━━"
}

func dayLabel(d rooms.Day) string {
	if d.Today {
		return headerToday
	}
	return d.Date.Format("Monday, January 2")
}

func dayPrefix(t, now time.Time, loc *time.Location) string {
	t, now = t.In(loc), now.In(loc)
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return ""
	}
	return t.Format("Mon Jan 2") + "  "
}

func freeRoomLine(r *rooms.Room, loc *time.Location) string {
	if r.Status == rooms.FreeUntil {
		return fmt.Sprintf("until %s  %s", r.FreeTo.In(loc).Format("15:04"), r.Name)
	}
	return "free     " + r.Name
}

func holeTimes(h rooms.Hole, loc *time.Location) string {
	s := h.Start.In(loc).Format("15:04") + " - " + h.End.In(loc).Format("15:04")
	switch {
	case h.TillDayEnd:
		s += "+"
	case h.FromMorning:
		s = "+" + s
	}
	return s
}

func holeLine(h rooms.Hole, loc *time.Location) string {
	return holeTimes(h, loc) + "  " + h.Name
}

// isSeparator reports whether line cannot be acted on.
func isSeparator(line string) bool {
	line = strings.TrimSpace(line)
	return line == "" ||
		strings.HasPrefix(line, "━━━━") ||
		line == noneFree ||
		line == noneToday ||
		line == staleWarning ||
		strings.HasPrefix(line, "… ")
}
