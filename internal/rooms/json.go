package rooms

import (
	"encoding/json"
	"time"
)

type holeJSON struct {
	Start           int64     `json:"start"`
	End             int64     `json:"end"`
	StartDate       time.Time `json:"startDate"`
	EndDate         time.Time `json:"endDate"`
	MoreDays        bool      `json:"moreDays"`
	Name            string    `json:"name"`
	RoomID          string    `json:"room_id"`
	BackgroundColor string    `json:"backgroundColor,omitempty"`
	ForegroundColor string    `json:"foregroundColor,omitempty"`
	TillDayEnd      bool      `json:"tillDayEnd"`
	FromMorning     bool      `json:"fromMorning"`
}

// MarshalJSON encodes start/end as epoch milliseconds alongside RFC 3339 dates.
func (h Hole) MarshalJSON() ([]byte, error) {
	return json.Marshal(holeJSON{
		Start:           h.Start.UnixMilli(),
		End:             h.End.UnixMilli(),
		StartDate:       h.Start,
		EndDate:         h.End,
		MoreDays:        h.MoreDays,
		Name:            h.Name,
		RoomID:          h.RoomID,
		BackgroundColor: h.BackgroundColor,
		ForegroundColor: h.ForegroundColor,
		TillDayEnd:      h.TillDayEnd,
		FromMorning:     h.FromMorning,
	})
}

type roomJSON struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	BackgroundColor string `json:"backgroundColor,omitempty"`
	ForegroundColor string `json:"foregroundColor,omitempty"`
	Status          string `json:"status"`
	IsFreeTo        int64  `json:"isFreeTo"`
	Usages          int    `json:"usages"`
	Holes           []Hole `json:"holes"`
}

// IsFreeTo returns the legacy encoding of the free status: 0 when busy,
// -1 when free indefinitely, otherwise FreeTo in epoch milliseconds.
func (r *Room) IsFreeTo() int64 {
	switch r.Status {
	case FreeUntil:
		return r.FreeTo.UnixMilli()
	case FreeIndefinitely:
		return -1
	default:
		return 0
	}
}

func (r *Room) MarshalJSON() ([]byte, error) {
	holes := r.Holes
	if holes == nil {
		holes = []Hole{}
	}
	return json.Marshal(roomJSON{
		ID:              r.ID,
		Name:            r.Name,
		BackgroundColor: r.BackgroundColor,
		ForegroundColor: r.ForegroundColor,
		Status:          r.Status.String(),
		IsFreeTo:        r.IsFreeTo(),
		Usages:          len(r.Aggregated),
		Holes:           holes,
	})
}

type agendaJSON struct {
	Now           time.Time `json:"now"`
	CurrentlyFree []*Room   `json:"currentlyFree"`
	Future        []Hole    `json:"future"`
	Badge         *int      `json:"badge"`
	Skipped       int       `json:"skipped"`
}

func (a Agenda) MarshalJSON() ([]byte, error) {
	out := agendaJSON{
		Now:           a.Now,
		CurrentlyFree: a.CurrentlyFree,
		Future:        a.Future,
		Skipped:       a.Skipped(),
	}
	if out.CurrentlyFree == nil {
		out.CurrentlyFree = []*Room{}
	}
	if out.Future == nil {
		out.Future = []Hole{}
	}
	if a.Badge.Valid {
		m := a.Badge.Minutes
		out.Badge = &m
	}
	return json.Marshal(out)
}
