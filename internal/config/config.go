package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"strcal/internal/model"
)

const (
	DefaultListen       = "127.0.0.1:8080"
	DefaultTimezone     = "UTC"
	DefaultRefreshCron  = "*/15 * * * *"
	DefaultCheckInTime  = "15:00"
	DefaultCheckOutTime = "11:00"
)

// BackendConfig points at the property-management REST API.
type BackendConfig struct {
	BaseURL        string `yaml:"base_url" json:"base_url" validate:"omitempty,url"`
	Token          string `yaml:"token,omitempty" json:"-"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds" validate:"gte=0"`
}

func (b BackendConfig) Timeout() time.Duration {
	if b.TimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(b.TimeoutSeconds) * time.Second
}

// FeedConfig describes one channel iCal export link for a property.
type FeedConfig struct {
	ID           string `yaml:"id" json:"id" validate:"required"`
	PropertyID   string `yaml:"property_id" json:"property_id" validate:"required"`
	PropertyName string `yaml:"property_name" json:"property_name"`
	Channel      string `yaml:"channel" json:"channel" validate:"omitempty,oneof=airbnb vrbo direct booking"`
	URL          string `yaml:"url" json:"url" validate:"required,url"`
	// CheckInTime and CheckOutTime ("HH:MM") are applied to all-day events.
	CheckInTime  string `yaml:"check_in_time" json:"check_in_time" validate:"omitempty,datetime=15:04"`
	CheckOutTime string `yaml:"check_out_time" json:"check_out_time" validate:"omitempty,datetime=15:04"`
}

// RecurringTaskConfig is a vendor task that repeats on an RRULE.
type RecurringTaskConfig struct {
	ID              string `yaml:"id" json:"id" validate:"required"`
	PropertyID      string `yaml:"property_id" json:"property_id" validate:"required"`
	Type            string `yaml:"type" json:"type" validate:"required,oneof=cleaning chef bartender massage handyman concierge"`
	VendorName      string `yaml:"vendor_name" json:"vendor_name"`
	Start           string `yaml:"start" json:"start" validate:"required"`
	RRule           string `yaml:"rrule" json:"rrule" validate:"required"`
	DurationMinutes int    `yaml:"duration_minutes" json:"duration_minutes" validate:"gt=0"`
	Notes           string `yaml:"notes,omitempty" json:"notes,omitempty"`

	// Except lists skipped occurrence start times (local, same format as Start).
	Except []string `yaml:"except,omitempty" json:"except,omitempty"`
}

// GoogleCalendarConfig maps an owner block calendar onto one property.
type GoogleCalendarConfig struct {
	Enabled      bool   `yaml:"enabled" json:"enabled"`
	CalendarID   string `yaml:"calendar_id" json:"calendar_id" validate:"required_if=Enabled true"`
	PropertyID   string `yaml:"property_id" json:"property_id" validate:"required_if=Enabled true"`
	PropertyName string `yaml:"property_name" json:"property_name"`
	TokenFile    string `yaml:"token_file" json:"token_file"`
	RedirectURL  string `yaml:"redirect_url" json:"redirect_url" validate:"omitempty,url"`
	ClientID     string `yaml:"-" json:"-"`
	ClientSecret string `yaml:"-" json:"-"`
}

type DatabaseConfig struct {
	URL string `yaml:"url,omitempty" json:"-"`
}

// ViewConfig tunes grid layout parameters.
type ViewConfig struct {
	PixelsPerHour     float64 `yaml:"pixels_per_hour" json:"pixels_per_hour" validate:"gte=0"`
	MinSlotHeight     float64 `yaml:"min_slot_height" json:"min_slot_height" validate:"gte=0"`
	MaxVisiblePerCell int     `yaml:"max_visible_per_cell" json:"max_visible_per_cell" validate:"gte=0"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username" validate:"required"`
	Password string `yaml:"password" json:"password" validate:"required"`
}

type SnapshotConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	OutputPath string `yaml:"output_path" json:"output_path"`
	Width      int    `yaml:"width" json:"width" validate:"gte=0"`
	Height     int    `yaml:"height" json:"height" validate:"gte=0"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone in which booking and task times are displayed.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is "sunday" (default) or "monday".
	WeekStart string `yaml:"week_start" json:"week_start" validate:"oneof=sunday monday"`

	// RefreshCron is a cron-style schedule for cache warm-up and snapshots.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	LogLevel string `yaml:"log_level" json:"log_level" validate:"omitempty,oneof=debug info warn error"`

	Backend        BackendConfig         `yaml:"backend" json:"backend"`
	Feeds          []FeedConfig          `yaml:"feeds" json:"feeds" validate:"dive"`
	RecurringTasks []RecurringTaskConfig `yaml:"recurring_tasks" json:"recurring_tasks" validate:"dive"`
	GoogleCalendar GoogleCalendarConfig  `yaml:"google_calendar" json:"google_calendar"`
	Database       DatabaseConfig        `yaml:"database" json:"database"`
	View           ViewConfig            `yaml:"view" json:"view"`

	// Colors seeds the session color assignments.
	Colors []model.ColorAssignment `yaml:"colors" json:"colors" validate:"dive"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`

	// JWTSecret, if set, accepts HS256 bearer tokens as an alternative to Basic.
	JWTSecret string `yaml:"jwt_secret,omitempty" json:"-"`

	Snapshot SnapshotConfig `yaml:"snapshot" json:"snapshot"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:         DefaultListen,
		Timezone:       DefaultTimezone,
		WeekStart:      "sunday",
		RefreshCron:    DefaultRefreshCron,
		LogLevel:       "info",
		Backend:        BackendConfig{TimeoutSeconds: 15},
		Feeds:          []FeedConfig{},
		RecurringTasks: []RecurringTaskConfig{},
		View: ViewConfig{
			PixelsPerHour:     60,
			MinSlotHeight:     20,
			MaxVisiblePerCell: 3,
		},
		Colors: []model.ColorAssignment{},
		Snapshot: SnapshotConfig{
			OutputPath: "/var/lib/strcal/calendar.png",
			Width:      1280,
			Height:     960,
		},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
	c.WeekStart = strings.ToLower(strings.TrimSpace(c.WeekStart))
	if c.WeekStart != "monday" {
		c.WeekStart = "sunday"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = DefaultRefreshCron
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	c.Backend.BaseURL = strings.TrimRight(c.Backend.BaseURL, "/")
	if c.Backend.TimeoutSeconds <= 0 {
		c.Backend.TimeoutSeconds = 15
	}
	if c.Feeds == nil {
		c.Feeds = []FeedConfig{}
	}
	for i := range c.Feeds {
		f := &c.Feeds[i]
		f.Channel = strings.ToLower(f.Channel)
		if f.Channel == "" {
			f.Channel = string(model.ChannelDirect)
		}
		if f.CheckInTime == "" {
			f.CheckInTime = DefaultCheckInTime
		}
		if f.CheckOutTime == "" {
			f.CheckOutTime = DefaultCheckOutTime
		}
		if f.PropertyName == "" {
			f.PropertyName = f.PropertyID
		}
	}
	if c.RecurringTasks == nil {
		c.RecurringTasks = []RecurringTaskConfig{}
	}
	if c.GoogleCalendar.PropertyName == "" {
		c.GoogleCalendar.PropertyName = c.GoogleCalendar.PropertyID
	}
	if c.View.PixelsPerHour <= 0 {
		c.View.PixelsPerHour = 60
	}
	if c.View.MinSlotHeight < 0 {
		c.View.MinSlotHeight = 0
	}
	if c.View.MaxVisiblePerCell <= 0 {
		c.View.MaxVisiblePerCell = 3
	}
	if c.Colors == nil {
		c.Colors = []model.ColorAssignment{}
	}
	if c.Snapshot.Width <= 0 {
		c.Snapshot.Width = 1280
	}
	if c.Snapshot.Height <= 0 {
		c.Snapshot.Height = 960
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validator exposes the shared validator so HTTP handlers check colors the
// same way the config file is checked.
func Validator() *validator.Validate {
	return validate
}

// Validate checks struct tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	seen := map[string]bool{}
	for _, f := range c.Feeds {
		if seen[f.ID] {
			return fmt.Errorf("config: duplicate feed id %q", f.ID)
		}
		seen[f.ID] = true
	}
	return nil
}

// Location returns the display zone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	if loc, err := time.LoadLocation(c.Timezone); err == nil {
		return loc
	}
	return time.Local
}

func (c *Config) Weekday() time.Weekday {
	if c.WeekStart == "monday" {
		return time.Monday
	}
	return time.Sunday
}

// ApplyEnv loads a .env file next to the config (if present) and lets
// environment variables override secrets that should not live in YAML.
func (c *Config) ApplyEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config: load %s: %w", envFile, err)
		}
	}
	if v := os.Getenv("STRCAL_BACKEND_TOKEN"); v != "" {
		c.Backend.Token = v
	}
	if v := os.Getenv("STRCAL_JWT_SECRET"); v != "" {
		c.JWTSecret = v
	}
	if v := os.Getenv("STRCAL_DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("GOOGLE_CLIENT_ID"); v != "" {
		c.GoogleCalendar.ClientID = v
	}
	if v := os.Getenv("GOOGLE_CLIENT_SECRET"); v != "" {
		c.GoogleCalendar.ClientSecret = v
	}
	return nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
//
// Secrets from .env / the environment are applied after reading but are
// never written back to disk.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, cfg.ApplyEnv(envPath(path))
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.ApplyEnv(envPath(path)); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func envPath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), ".env")
}

// Save writes the given configuration to the specified path atomically
// (temp file in the same directory, then rename) with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".strcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}
