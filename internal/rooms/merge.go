package rooms

import (
	"sort"
	"time"

	"github.com/cpuguy83/roombar/internal/calendar"
)

// Merge sorts a room's events by start and folds every pair whose gap is
// at most minDelay (overlaps included) into a single usage.
func Merge(events []calendar.Event, minDelay time.Duration) []Usage {
	usages := make([]Usage, 0, len(events))
	for _, e := range events {
		usages = append(usages, Usage{
			Start:  e.Start,
			End:    e.End,
			Events: []calendar.Event{e},
			RoomID: e.Feed.ID,
		})
	}
	return MergeUsages(usages, minDelay)
}

// MergeUsages merges already aggregated usages. Applying it to its own
// output returns the same intervals.
func MergeUsages(usages []Usage, minDelay time.Duration) []Usage {
	if len(usages) == 0 {
		return nil
	}

	sorted := make([]Usage, len(usages))
	copy(sorted, usages)
	sort.SliceStable(sorted, func(i, j int) bool {
		return usageLess(&sorted[i], &sorted[j])
	})

	var out []Usage
	cur := cloneUsage(sorted[0])
	for _, next := range sorted[1:] {
		if next.Start.Sub(cur.End) <= minDelay {
			if next.End.After(cur.End) {
				cur.End = next.End
			}
			cur.Events = append(cur.Events, next.Events...)
			continue
		}
		out = append(out, cur)
		cur = cloneUsage(next)
	}
	return append(out, cur)
}

func cloneUsage(u Usage) Usage {
	u.Events = append([]calendar.Event(nil), u.Events...)
	return u
}

// usageLess orders by start, then end, then the first event's UID so the
// result does not depend on input order.
func usageLess(a, b *Usage) bool {
	if !a.Start.Equal(b.Start) {
		return a.Start.Before(b.Start)
	}
	if !a.End.Equal(b.End) {
		return a.End.Before(b.End)
	}
	return firstUID(a) < firstUID(b)
}

func firstUID(u *Usage) string {
	if len(u.Events) == 0 {
		return ""
	}
	return u.Events[0].UID
}
