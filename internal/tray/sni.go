// Package tray shows room availability as a StatusNotifierItem icon.
package tray

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"
)

const (
	sniInterface     = "org.kde.StatusNotifierItem"
	sniPath          = "/StatusNotifierItem"
	watcherInterface = "org.kde.StatusNotifierWatcher"
	watcherPath      = "/StatusNotifierWatcher"
	watcherBusName   = "org.kde.StatusNotifierWatcher"

	appTitle = "roombar"
)

// State selects the icon color.
type State int

const (
	// StateFree means at least one room is free now.
	StateFree State = iota
	// StateBusy means every known room is in use.
	StateBusy
	// StateStale means the last sync failed or is too old.
	StateStale
)

func (s State) String() string {
	switch s {
	case StateFree:
		return "free"
	case StateBusy:
		return "busy"
	case StateStale:
		return "stale"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

func (s State) color() uint32 {
	switch s {
	case StateFree:
		return 0xFF3DAE5B
	case StateBusy:
		return 0xFFD64541
	}
	return 0xFF8C8C8C
}

// Tray is the StatusNotifierItem exported on the session bus.
type Tray struct {
	conn  *dbus.Conn
	props *prop.Properties

	mu         sync.Mutex
	display    Display
	onActivate func()

	stopCh chan struct{}
}

// New connects to the session bus. Call Start to show the icon.
func New() (*Tray, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect to session bus: %w", err)
	}
	return &Tray{
		conn:    conn,
		display: Display{State: StateStale, Tooltip: "Waiting for the first sync"},
		stopCh:  make(chan struct{}),
	}, nil
}

// Start exports the item and registers it with the watcher.
func (t *Tray) Start() error {
	busName := fmt.Sprintf("org.kde.StatusNotifierItem-%d-1", os.Getpid())
	reply, err := t.conn.RequestName(busName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return errors.New("bus name already taken")
	}

	if err := t.conn.Export(t, sniPath, sniInterface); err != nil {
		return fmt.Errorf("export SNI interface: %w", err)
	}

	t.mu.Lock()
	d := t.display
	t.mu.Unlock()

	props, err := prop.Export(t.conn, sniPath, prop.Map{
		sniInterface: {
			"Category":      {Value: "ApplicationStatus", Emit: prop.EmitFalse},
			"Id":            {Value: appTitle, Emit: prop.EmitFalse},
			"Title":         {Value: titleFor(d), Emit: prop.EmitTrue},
			"Status":        {Value: "Active", Emit: prop.EmitTrue},
			"IconName":      {Value: "", Emit: prop.EmitTrue},
			"IconPixmap":    {Value: iconPixmap(d.State), Emit: prop.EmitTrue},
			"IconThemePath": {Value: "", Emit: prop.EmitFalse},
			"Menu":          {Value: dbus.ObjectPath("/NO_DBUSMENU"), Emit: prop.EmitFalse},
			"ItemIsMenu":    {Value: false, Emit: prop.EmitFalse},
			"ToolTip":       {Value: tooltipFor(d), Emit: prop.EmitTrue},
		},
	})
	if err != nil {
		return fmt.Errorf("export properties: %w", err)
	}
	t.props = props

	node := &introspect.Node{
		Name: sniPath,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			prop.IntrospectData,
			{Name: sniInterface, Methods: sniMethods, Signals: sniSignals},
		},
	}
	if err := t.conn.Export(introspect.NewIntrospectable(node), sniPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("export introspection: %w", err)
	}

	t.register()
	go t.watchWatcher()

	slog.Info("tray icon registered", "bus_name", busName)
	return nil
}

// register announces the item to the StatusNotifierWatcher. A missing
// watcher is not fatal; the item is registered when one appears.
func (t *Tray) register() {
	name := t.conn.Names()[0]
	call := t.conn.Object(watcherBusName, watcherPath).Call(watcherInterface+".RegisterStatusNotifierItem", 0, name)
	if call.Err != nil {
		slog.Warn("failed to register with StatusNotifierWatcher", "error", call.Err)
		return
	}
	slog.Debug("registered with StatusNotifierWatcher", "connection", name)
}

// watchWatcher re-registers whenever the watcher service gets a new owner,
// for example after the panel restarts.
func (t *Tray) watchWatcher() {
	if err := t.conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
		dbus.WithMatchArg(0, watcherBusName),
	); err != nil {
		slog.Warn("failed to watch StatusNotifierWatcher", "error", err)
		return
	}

	sigCh := make(chan *dbus.Signal, 1)
	t.conn.Signal(sigCh)
	defer t.conn.RemoveSignal(sigCh)

	for {
		select {
		case <-t.stopCh:
			return
		case sig, ok := <-sigCh:
			if !ok {
				return
			}
			if sig.Name != "org.freedesktop.DBus.NameOwnerChanged" || len(sig.Body) < 3 {
				continue
			}
			name, _ := sig.Body[0].(string)
			owner, _ := sig.Body[2].(string)
			if name == watcherBusName && owner != "" {
				slog.Info("StatusNotifierWatcher restarted, re-registering tray icon")
				t.register()
			}
		}
	}
}

// Stop removes the icon and closes the bus connection.
func (t *Tray) Stop() error {
	close(t.stopCh)
	return t.conn.Close()
}

// Show updates icon, title and tooltip. Unchanged parts emit nothing.
func (t *Tray) Show(d Display) {
	t.mu.Lock()
	prev := t.display
	t.display = d
	t.mu.Unlock()

	if t.props == nil {
		return
	}
	if d.State != prev.State {
		t.props.SetMust(sniInterface, "IconPixmap", iconPixmap(d.State))
		t.emit("NewIcon")
	}
	if d.Title != prev.Title {
		t.props.SetMust(sniInterface, "Title", titleFor(d))
		t.emit("NewTitle")
	}
	if d.Tooltip != prev.Tooltip || d.Title != prev.Title {
		t.props.SetMust(sniInterface, "ToolTip", tooltipFor(d))
		t.emit("NewToolTip")
	}
}

func (t *Tray) emit(signal string) {
	if err := t.conn.Emit(sniPath, sniInterface+"."+signal); err != nil {
		slog.Debug("failed to emit tray signal", "signal", signal, "error", err)
	}
}

// OnActivate sets the callback run when the icon is clicked.
func (t *Tray) OnActivate(fn func()) {
	t.mu.Lock()
	t.onActivate = fn
	t.mu.Unlock()
}

func titleFor(d Display) string {
	if d.Title == "" {
		return appTitle
	}
	return appTitle + " " + d.Title
}

// toolTip is the SNI tooltip struct (sa(iiay)ss).
type toolTip struct {
	IconName   string
	IconPixmap []iconData
	Title      string
	Body       string
}

func tooltipFor(d Display) toolTip {
	return toolTip{Title: titleFor(d), Body: d.Tooltip}
}

// Activate handles a primary click.
func (t *Tray) Activate(x, y int32) *dbus.Error {
	slog.Debug("tray activated", "x", x, "y", y)
	t.mu.Lock()
	fn := t.onActivate
	t.mu.Unlock()
	if fn != nil {
		go fn()
	}
	return nil
}

// SecondaryActivate handles a middle click.
func (t *Tray) SecondaryActivate(x, y int32) *dbus.Error {
	return t.Activate(x, y)
}

// Scroll is ignored.
func (t *Tray) Scroll(delta int32, orientation string) *dbus.Error {
	return nil
}

// ContextMenu is ignored; there is no dbusmenu.
func (t *Tray) ContextMenu(x, y int32) *dbus.Error {
	return nil
}

var sniMethods = []introspect.Method{
	{Name: "Activate", Args: []introspect.Arg{{Name: "x", Type: "i", Direction: "in"}, {Name: "y", Type: "i", Direction: "in"}}},
	{Name: "SecondaryActivate", Args: []introspect.Arg{{Name: "x", Type: "i", Direction: "in"}, {Name: "y", Type: "i", Direction: "in"}}},
	{Name: "Scroll", Args: []introspect.Arg{{Name: "delta", Type: "i", Direction: "in"}, {Name: "orientation", Type: "s", Direction: "in"}}},
	{Name: "ContextMenu", Args: []introspect.Arg{{Name: "x", Type: "i", Direction: "in"}, {Name: "y", Type: "i", Direction: "in"}}},
}

var sniSignals = []introspect.Signal{
	{Name: "NewTitle"},
	{Name: "NewIcon"},
	{Name: "NewToolTip"},
	{Name: "NewStatus", Args: []introspect.Arg{{Name: "status", Type: "s"}}},
}
