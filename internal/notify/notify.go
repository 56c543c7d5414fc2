// Package notify announces rooms that become free through desktop
// notifications.
package notify

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	notifyInterface = "org.freedesktop.Notifications"
	notifyPath      = "/org/freedesktop/Notifications"
)

// Urgency levels for notifications.
type Urgency byte

const (
	UrgencyLow      Urgency = 0
	UrgencyNormal   Urgency = 1
	UrgencyCritical Urgency = 2
)

// Action is a notification button.
type Action struct {
	Key   string
	Label string
}

// Notification is a desktop notification.
type Notification struct {
	Summary string
	Body    string
	Icon    string
	Timeout time.Duration // 0 = server default, <0 = persistent
	Actions []Action
	Urgency Urgency
}

// Sender delivers notifications.
type Sender interface {
	Send(Notification) (uint32, error)
}

// Desktop sends notifications over the session bus.
type Desktop struct {
	conn    *dbus.Conn
	obj     dbus.BusObject
	appName string
}

// NewDesktop connects to the session bus.
func NewDesktop(appName string) (*Desktop, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect to session bus: %w", err)
	}
	return &Desktop{
		conn:    conn,
		obj:     conn.Object(notifyInterface, notifyPath),
		appName: appName,
	}, nil
}

// Close closes the D-Bus connection.
func (d *Desktop) Close() error {
	return d.conn.Close()
}

// Send shows n and returns the server-assigned notification ID.
func (d *Desktop) Send(n Notification) (uint32, error) {
	var actions []string
	for _, a := range n.Actions {
		actions = append(actions, a.Key, a.Label)
	}

	hints := map[string]dbus.Variant{
		"urgency": dbus.MakeVariant(byte(n.Urgency)),
	}

	icon := n.Icon
	if icon == "" {
		icon = "x-office-calendar"
	}

	call := d.obj.Call(
		notifyInterface+".Notify",
		0,
		d.appName,
		uint32(0), // replaces_id
		icon,
		n.Summary,
		n.Body,
		actions,
		hints,
		expireTimeout(n.Timeout),
	)
	if call.Err != nil {
		return 0, fmt.Errorf("send notification: %w", call.Err)
	}

	var id uint32
	if err := call.Store(&id); err != nil {
		return 0, fmt.Errorf("get notification id: %w", err)
	}

	slog.Debug("sent notification", "id", id, "summary", n.Summary)
	return id, nil
}

// expireTimeout maps a Go duration to the Notify expire_timeout argument:
// -1 lets the server decide, 0 never expires.
func expireTimeout(d time.Duration) int32 {
	switch {
	case d > 0:
		return int32(d.Milliseconds())
	case d < 0:
		return 0
	}
	return -1
}

// WatchActions calls fn whenever the user clicks a notification button.
func (d *Desktop) WatchActions(fn func(id uint32, actionKey string)) error {
	if err := d.conn.AddMatchSignal(
		dbus.WithMatchInterface(notifyInterface),
		dbus.WithMatchMember("ActionInvoked"),
	); err != nil {
		return fmt.Errorf("add match signal: %w", err)
	}

	ch := make(chan *dbus.Signal, 10)
	d.conn.Signal(ch)

	go func() {
		for sig := range ch {
			if sig.Name != notifyInterface+".ActionInvoked" || len(sig.Body) < 2 {
				continue
			}
			id, ok1 := sig.Body[0].(uint32)
			key, ok2 := sig.Body[1].(string)
			if ok1 && ok2 {
				fn(id, key)
			}
		}
	}()
	return nil
}

var _ Sender = (*Desktop)(nil)
