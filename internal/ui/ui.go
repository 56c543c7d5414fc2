// Package ui defines how the agenda is presented when the tray is clicked.
package ui

import (
	"time"

	"github.com/cpuguy83/roombar/internal/rooms"
)

// UI displays the latest agenda on demand.
type UI interface {
	// SetAgenda replaces the agenda shown by the next Show.
	SetAgenda(a rooms.Agenda, stale bool)

	// Show displays the agenda. It does not block.
	Show()

	// OnAction sets the callback for actions the user picks.
	OnAction(fn func(Action))
}

// Action is a user action from the UI.
type Action struct {
	Type ActionType
	// RoomID is set for ActionCopy and ActionBook.
	RoomID string
	Text   string

	// Start and End bound the booking of an ActionBook.
	Start time.Time
	End   time.Time
}

// ActionType identifies the type of action.
type ActionType int

const (
	// ActionRefresh asks for an immediate sync.
	ActionRefresh ActionType = iota
	// ActionCopy means the user picked a line; Text holds it.
	ActionCopy
	// ActionBook asks to book RoomID from Start to End. A refresh follows.
	ActionBook
)

// Config holds options shared by UI backends.
type Config struct {
	// MaxItems caps the number of free windows listed. Zero means no cap.
	MaxItems int
	// Location defines day sections. Nil means time.Local.
	Location *time.Location
}

// Nop is a UI that shows nothing.
type Nop struct{}

func (Nop) SetAgenda(rooms.Agenda, bool) {}
func (Nop) Show()                        {}
func (Nop) OnAction(func(Action))        {}

var _ UI = Nop{}
