package notify

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cpuguy83/roombar/internal/rooms"
)

// ActionShow is the key of the button that opens the room menu.
const ActionShow = "show"

// dedupWindow is how long a room is not announced again.
const dedupWindow = time.Minute

// Watcher compares successive agendas and announces rooms that were not
// free on the previous one.
type Watcher struct {
	sender Sender
	now    func() time.Time

	mu        sync.Mutex
	primed    bool
	free      map[string]bool
	announced map[string]time.Time
}

// NewWatcher creates a watcher that sends through s.
func NewWatcher(s Sender) *Watcher {
	return &Watcher{
		sender:    s,
		now:       time.Now,
		free:      make(map[string]bool),
		announced: make(map[string]time.Time),
	}
}

// Update records a and notifies for every newly free room. The first
// agenda only primes the watcher. It returns the notifications sent.
func (w *Watcher) Update(a rooms.Agenda) []Notification {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	free := make(map[string]bool, len(a.CurrentlyFree))
	var sent []Notification

	for _, r := range a.CurrentlyFree {
		free[r.ID] = true
		if !w.primed || w.free[r.ID] {
			continue
		}
		if last, ok := w.announced[r.ID]; ok && now.Sub(last) < dedupWindow {
			continue
		}

		n := freeNotification(r, a.Now.Location())
		if _, err := w.sender.Send(n); err != nil {
			slog.Warn("failed to send notification", "room", r.ID, "error", err)
			continue
		}
		w.announced[r.ID] = now
		sent = append(sent, n)
	}

	for id, t := range w.announced {
		if now.Sub(t) >= dedupWindow {
			delete(w.announced, id)
		}
	}

	w.free = free
	w.primed = true
	return sent
}

func freeNotification(r *rooms.Room, loc *time.Location) Notification {
	n := Notification{
		Summary: fmt.Sprintf("%s is free", r.Name),
		Urgency: UrgencyLow,
		Actions: []Action{{Key: ActionShow, Label: "Show rooms"}},
	}
	if r.Status == rooms.FreeUntil {
		n.Summary = fmt.Sprintf("%s is free until %s", r.Name, r.FreeTo.In(loc).Format("15:04"))
	}
	return n
}
