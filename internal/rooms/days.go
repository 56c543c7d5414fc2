package rooms

import "time"

// Day is one section of a rendered agenda.
type Day struct {
	// Date is local midnight of the section.
	Date time.Time
	// Today is set on the first section, which always exists.
	Today bool
	Holes []Hole
}

// Days groups sorted holes into day sections. The first section is today;
// holes that started earlier stay under today. A new section begins when a
// hole starts on a later local calendar day than the current section.
//
// Sections compare calendar dates in loc, not hours elapsed since the last
// header. A 23 or 25 hour day at a DST switch is still exactly one section,
// which a "more than 23 hours later" threshold would get wrong.
func Days(holes []Hole, now time.Time, loc *time.Location) []Day {
	if loc == nil {
		loc = time.Local
	}

	days := []Day{{Date: startOfDay(now, loc), Today: true}}
	for _, h := range holes {
		cur := &days[len(days)-1]
		date := startOfDay(h.Start, loc)
		if date.After(cur.Date) && !sameDay(date, cur.Date, loc) {
			days = append(days, Day{Date: date})
			cur = &days[len(days)-1]
		}
		cur.Holes = append(cur.Holes, h)
	}
	return days
}
