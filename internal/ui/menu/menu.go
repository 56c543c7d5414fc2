// Package menu renders the room agenda in a dmenu-style launcher.
package menu

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"github.com/cpuguy83/roombar/internal/rooms"
	"github.com/cpuguy83/roombar/internal/ui"
)

const prompt = "Rooms"

// errCancelled is returned when the launcher exits without a selection.
var errCancelled = errors.New("cancelled")

// Config holds menu UI configuration.
type Config struct {
	ui.Config
	// Program is the launcher to run. Empty means auto-detect.
	Program string
	// Args are appended to the launcher arguments.
	Args []string
}

// Menu implements ui.UI with a dmenu-compatible launcher.
type Menu struct {
	cfg     Config
	program string
	run     func(prog string, args []string, input string) (string, error)

	mu       sync.Mutex
	agenda   rooms.Agenda
	stale    bool
	showing  bool
	onAction func(ui.Action)
}

// New creates a menu backend, detecting the launcher when none is set.
func New(cfg Config) (*Menu, error) {
	program := cfg.Program
	if program == "" {
		var err error
		program, err = Detect()
		if err != nil {
			return nil, err
		}
		slog.Debug("auto-detected menu program", "program", program)
	} else if _, err := exec.LookPath(program); err != nil {
		return nil, fmt.Errorf("menu program %q not found: %w", program, err)
	}

	return &Menu{cfg: cfg, program: program, run: runLauncher}, nil
}

// SetAgenda replaces the agenda shown by the next Show.
func (m *Menu) SetAgenda(a rooms.Agenda, stale bool) {
	m.mu.Lock()
	m.agenda = a
	m.stale = stale
	m.mu.Unlock()
}

// OnAction sets the callback for user actions.
func (m *Menu) OnAction(fn func(ui.Action)) {
	m.mu.Lock()
	m.onAction = fn
	m.mu.Unlock()
}

// Show opens the launcher unless it is already open.
func (m *Menu) Show() {
	m.mu.Lock()
	if m.showing {
		m.mu.Unlock()
		return
	}
	m.showing = true
	a, stale := m.agenda, m.stale
	m.mu.Unlock()

	go func() {
		defer func() {
			m.mu.Lock()
			m.showing = false
			m.mu.Unlock()
		}()
		m.showAgenda(a, stale)
	}()
}

// showAgenda runs the main list and the room view until the user leaves.
func (m *Menu) showAgenda(a rooms.Agenda, stale bool) {
	for {
		lines, entries := formatAgenda(a, stale, m.cfg.MaxItems, m.cfg.Location)
		selected, err := m.pick(lines)
		if err != nil {
			slog.Debug("menu closed without selection", "error", err)
			return
		}
		if isSeparator(selected) {
			return
		}
		if selected == refreshLine {
			m.emit(ui.Action{Type: ui.ActionRefresh})
			return
		}

		e, ok := entries[selected]
		if !ok {
			slog.Debug("selected line not found", "selected", selected)
			return
		}
		room := findRoom(a, e.roomID)
		if room == nil {
			m.emit(ui.Action{Type: ui.ActionCopy, RoomID: e.roomID, Text: e.copy})
			return
		}
		if !m.showRoom(room, a) {
			return
		}
	}
}

// showRoom shows one room and reports whether to go back to the list.
func (m *Menu) showRoom(r *rooms.Room, a rooms.Agenda) bool {
	lines, entries := formatRoom(r, a, m.cfg.Location)
	selected, err := m.pick(lines)
	if err != nil {
		return false
	}
	if selected == backLine {
		return true
	}
	e, ok := entries[selected]
	switch {
	case !ok:
	case e.book:
		m.emit(ui.Action{Type: ui.ActionBook, RoomID: r.ID, Text: r.Name, Start: e.start, End: e.end})
	default:
		m.emit(ui.Action{Type: ui.ActionCopy, RoomID: r.ID, Text: e.copy})
	}
	return false
}

func (m *Menu) pick(lines []string) (string, error) {
	args := launcherArgs(m.program, prompt, min(len(lines), 20), m.cfg.Args)
	out, err := m.run(m.program, args, strings.Join(lines, "\n"))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (m *Menu) emit(a ui.Action) {
	m.mu.Lock()
	fn := m.onAction
	m.mu.Unlock()

	if fn != nil {
		fn(a)
		return
	}
	if a.Type == ui.ActionCopy {
		CopyToClipboard(a.Text)
	}
}

func findRoom(a rooms.Agenda, id string) *rooms.Room {
	for _, r := range a.Rooms {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// runLauncher feeds input to prog and returns the selected line.
func runLauncher(prog string, args []string, input string) (string, error) {
	cmd := exec.Command(prog, args...)
	cmd.Stdin = strings.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	slog.Debug("running menu program", "program", prog, "args", args)
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return "", errCancelled
		}
		return "", fmt.Errorf("run %s: %w (stderr: %s)", prog, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// CopyToClipboard copies text with wl-copy, xclip or xsel, whichever
// is installed first.
func CopyToClipboard(text string) {
	tools := [][]string{
		{"wl-copy"},
		{"xclip", "-selection", "clipboard"},
		{"xsel", "--clipboard", "--input"},
	}
	for _, tool := range tools {
		if _, err := exec.LookPath(tool[0]); err != nil {
			continue
		}
		cmd := exec.Command(tool[0], tool[1:]...)
		cmd.Stdin = strings.NewReader(text)
		if err := cmd.Run(); err == nil {
			slog.Debug("copied to clipboard", "tool", tool[0], "text", text)
			return
		}
	}
	slog.Debug("no clipboard tool available", "text", text)
}

var _ ui.UI = (*Menu)(nil)
