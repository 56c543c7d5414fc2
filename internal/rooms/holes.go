package rooms

import (
	"time"
)

// FindHoles returns the free windows between consecutive usages that are
// at least minDelay long. Room metadata comes from the earlier usage.
func FindHoles(usages []Usage, minDelay time.Duration, loc *time.Location) []Hole {
	var holes []Hole
	for i := 1; i < len(usages); i++ {
		prev, next := &usages[i-1], &usages[i]
		if next.Start.Sub(prev.End) < minDelay {
			continue
		}

		feed := prev.Feed()
		holes = append(holes, Hole{
			Start:           prev.End,
			End:             next.Start,
			MoreDays:        !sameDay(prev.End, next.Start, loc),
			Name:            feed.Title,
			RoomID:          feed.ID,
			BackgroundColor: feed.BackgroundColor,
			ForegroundColor: feed.ForegroundColor,
		})
	}
	return holes
}

// FreeStatus decides whether a room is free at now. A room is free until
// its first usage when that usage starts more than minDelay from now and
// before the next local midnight. A room without usages is free
// indefinitely.
func FreeStatus(usages []Usage, now time.Time, minDelay time.Duration, loc *time.Location) (Status, time.Time) {
	if len(usages) == 0 {
		return FreeIndefinitely, time.Time{}
	}

	midnight := startOfDay(now, loc).AddDate(0, 0, 1)
	first := usages[0].Start
	if first.After(now.Add(minDelay)) && first.Before(midnight) {
		return FreeUntil, first
	}
	return Busy, time.Time{}
}
