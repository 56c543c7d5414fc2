// Package config loads the roombar YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Source types.
const (
	SourceICS    = "ics"
	SourceCalDAV = "caldav"
	SourceICloud = "icloud"
	SourceMS365  = "ms365"
	SourceGoogle = "google"
	SourceFile   = "file"
)

// Config is the root configuration structure.
type Config struct {
	Sync          SyncConfig         `yaml:"sync"`
	Rooms         RoomsConfig        `yaml:"rooms"`
	Sources       []SourceConfig     `yaml:"sources"`
	Filters       FilterConfig       `yaml:"filters"`
	Notifications NotificationConfig `yaml:"notifications"`
	UI            UIConfig           `yaml:"ui"`
}

// Duration is a time.Duration that also accepts d and w suffixes in YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := parseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// SyncConfig configures the sync loop.
type SyncConfig struct {
	Interval Duration `yaml:"interval"`
	// Schedule is a cron expression. When set it replaces Interval.
	Schedule string `yaml:"schedule"`
	// TimeRange is how far ahead sources are queried.
	TimeRange Duration `yaml:"time_range"`
	// Output is an optional ICS file the free windows are exported to.
	Output string `yaml:"output"`
}

// RoomsConfig tunes availability computation.
type RoomsConfig struct {
	MinDelay Duration `yaml:"min_delay"`
	DayStart string   `yaml:"day_start"`
	DayEnd   string   `yaml:"day_end"`
	// Timezone is an IANA name. Empty means the local zone.
	Timezone string `yaml:"timezone"`
}

// SourceConfig configures a room feed source.
type SourceConfig struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	URL         string `yaml:"url,omitempty"`
	Path        string `yaml:"path,omitempty"`
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	PasswordCmd string `yaml:"password_cmd,omitempty"`

	// Calendars selects CalDAV collections by name, MS365 room mailboxes
	// or Google calendar IDs.
	Calendars []string `yaml:"calendars,omitempty"`

	// ID, BackgroundColor and ForegroundColor describe the room of a
	// single-room source. Multi-room sources only use the colors.
	ID              string `yaml:"id,omitempty"`
	BackgroundColor string `yaml:"background_color,omitempty"`
	ForegroundColor string `yaml:"foreground_color,omitempty"`

	// MS365 sign-in.
	ClientID string `yaml:"client_id,omitempty"`
	Tenant   string `yaml:"tenant,omitempty"`

	// Google OAuth files.
	Credentials string `yaml:"credentials,omitempty"`
	TokenFile   string `yaml:"token_file,omitempty"`

	Filters FilterConfig `yaml:"filters,omitempty"`
}

// FilterConfig configures event filtering.
type FilterConfig struct {
	Mode string `yaml:"mode"` // "or" or "and"
	// Exclude drops matching events instead of keeping only them.
	Exclude bool         `yaml:"exclude,omitempty"`
	Rules   []FilterRule `yaml:"rules"`
}

// FilterRule defines a single filter rule.
// Use exactly one of: Contains, Exact, Prefix, Suffix, or Regex.
type FilterRule struct {
	Field           string `yaml:"field"` // "summary", "room", "room_id", "organizer", "location"
	Contains        string `yaml:"contains,omitempty"`
	Exact           string `yaml:"exact,omitempty"`
	Prefix          string `yaml:"prefix,omitempty"`
	Suffix          string `yaml:"suffix,omitempty"`
	Regex           string `yaml:"regex,omitempty"`
	CaseInsensitive bool   `yaml:"case_insensitive"`
}

// NotificationConfig configures desktop notifications.
type NotificationConfig struct {
	Enabled bool `yaml:"enabled"`
}

// UIConfig configures the menu shown on tray activation.
type UIConfig struct {
	Backend  string   `yaml:"backend"` // "menu" or "none"
	Program  string   `yaml:"program"`
	Args     []string `yaml:"args"`
	MaxItems int      `yaml:"max_items"`
}

// DefaultPath returns $XDG_CONFIG_HOME/roombar/config.yaml.
func DefaultPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get config dir: %w", err)
	}
	return filepath.Join(configDir, "roombar", "config.yaml"), nil
}

// Load reads configuration from DefaultPath.
func Load() (*Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads configuration from a specific path.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(expandPath(path))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes, defaults and validates a YAML document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.Sync.Output = expandPath(cfg.Sync.Output)
	for i := range cfg.Sources {
		s := &cfg.Sources[i]
		s.Path = expandPath(s.Path)
		s.Credentials = expandPath(s.Credentials)
		s.TokenFile = expandPath(s.TokenFile)
	}
	return &cfg, nil
}

// applyDefaults sets default values for unspecified config options.
func (c *Config) applyDefaults() {
	if c.Sync.Interval == 0 {
		c.Sync.Interval = Duration(5 * time.Minute)
	}
	if c.Sync.TimeRange == 0 {
		c.Sync.TimeRange = Duration(2 * 24 * time.Hour)
	}
	if c.Rooms.MinDelay == 0 {
		c.Rooms.MinDelay = Duration(5 * time.Minute)
	}
	if c.Rooms.DayStart == "" {
		c.Rooms.DayStart = "08:00"
	}
	if c.Rooms.DayEnd == "" {
		c.Rooms.DayEnd = "18:00"
	}
	if c.Filters.Mode == "" {
		c.Filters.Mode = "or"
	}
	if c.UI.Backend == "" {
		c.UI.Backend = "menu"
	}
	if c.UI.MaxItems == 0 {
		c.UI.MaxItems = 40
	}
	for i := range c.Sources {
		s := &c.Sources[i]
		if s.Filters.Mode == "" {
			s.Filters.Mode = "or"
		}
		if s.Type == SourceGoogle && s.TokenFile == "" {
			s.TokenFile = filepath.Join("~", ".config", "roombar", "google-"+slug(s.Name)+".json")
		}
	}
}

// Validate reports every structural problem in c at once.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Sources) == 0 {
		errs = append(errs, errors.New("no sources configured"))
	}
	for i, s := range c.Sources {
		if err := s.validate(); err != nil {
			errs = append(errs, fmt.Errorf("source %d (%s): %w", i, s.Name, err))
		}
	}
	if c.Sync.Schedule != "" {
		if _, err := cron.ParseStandard(c.Sync.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("sync.schedule: %w", err))
		}
	}
	if c.Rooms.Timezone != "" {
		if _, err := time.LoadLocation(c.Rooms.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("rooms.timezone: %w", err))
		}
	}
	for _, v := range []struct{ name, value string }{
		{"rooms.day_start", c.Rooms.DayStart},
		{"rooms.day_end", c.Rooms.DayEnd},
	} {
		if _, err := time.Parse("15:04", v.value); err != nil {
			errs = append(errs, fmt.Errorf("%s: invalid clock %q", v.name, v.value))
		}
	}
	switch c.UI.Backend {
	case "menu", "none":
	default:
		errs = append(errs, fmt.Errorf("ui.backend: unknown backend %q", c.UI.Backend))
	}

	return errors.Join(errs...)
}

func (s *SourceConfig) validate() error {
	if s.Name == "" {
		return errors.New("missing name")
	}
	switch s.Type {
	case SourceICS, SourceCalDAV:
		if s.URL == "" {
			return errors.New("missing url")
		}
	case SourceICloud:
		if s.Username == "" {
			return errors.New("missing username")
		}
	case SourceMS365, SourceGoogle:
		if len(s.Calendars) == 0 {
			return errors.New("calendars must list at least one room")
		}
		if s.Type == SourceGoogle && s.Credentials == "" {
			return errors.New("missing credentials")
		}
	case SourceFile:
		if s.Path == "" {
			return errors.New("missing path")
		}
	case "":
		return errors.New("missing type")
	default:
		return fmt.Errorf("unknown type %q", s.Type)
	}
	return nil
}

// GetPassword returns the password for a source, executing password_cmd if needed.
func (s *SourceConfig) GetPassword() (string, error) {
	if s.Password != "" {
		return s.Password, nil
	}
	if s.PasswordCmd == "" {
		return "", nil
	}

	out, err := exec.Command("sh", "-c", s.PasswordCmd).Output()
	if err != nil {
		return "", fmt.Errorf("execute password_cmd: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
}

func slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return '-'
	}, s)
}

// parseDuration extends time.ParseDuration with whole-number d and w
// suffixes. Empty input is zero; negative values are rejected.
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	unit := time.Duration(0)
	switch {
	case strings.HasSuffix(s, "d"):
		unit = 24 * time.Hour
	case strings.HasSuffix(s, "w"):
		unit = 7 * 24 * time.Hour
	}

	if unit != 0 {
		n, err := strconv.Atoi(s[:len(s)-1])
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		if n < 0 {
			return 0, fmt.Errorf("negative duration %q", s)
		}
		return time.Duration(n) * unit, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}
