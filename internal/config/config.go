package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// NOTE: This file provides the configuration model and full YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions. Environment variables override file values after loading.

const (
	defaultListen          = "0.0.0.0:5001"
	defaultTimezone        = "Europe/Paris"
	defaultPublicDir       = "public"
	defaultUploadDir       = "uploads"
	defaultMaxUploadBytes  = 32 << 20
	defaultHorizonDays     = 180
	defaultMaxOccurrences  = 500
	defaultReadTimeout     = 15 * time.Second
	defaultWriteTimeout    = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
)

// UploadConfig controls how uploaded schedule files are spooled.
type UploadConfig struct {
	// Dir receives temporary copies of uploads while they are parsed.
	Dir string `yaml:"dir" json:"dir"`
	// MaxBytes caps the size of a single upload.
	MaxBytes int64 `yaml:"max_bytes" json:"max_bytes"`
}

// CalendarConfig tunes the iCalendar path.
type CalendarConfig struct {
	// ExpandRecurrences emits one record per RRULE instance instead of one
	// per VEVENT.
	ExpandRecurrences bool `yaml:"expand_recurrences" json:"expand_recurrences"`
	// HorizonDays bounds recurrence expansion after each event's DTSTART.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`
	// MaxOccurrences caps the instances produced per recurring event.
	MaxOccurrences int `yaml:"max_occurrences" json:"max_occurrences"`
}

// TabularConfig tunes the CSV/spreadsheet path.
type TabularConfig struct {
	// Sheet selects a workbook sheet by name. Empty means the first sheet.
	Sheet string `yaml:"sheet" json:"sheet"`
}

// ServerConfig holds HTTP server timeouts.
type ServerConfig struct {
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// LogConfig selects the log level ("debug", "info", "warn", "error") and
// format ("text", "json").
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone calendar times are displayed in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// PublicDir is served under /public/.
	PublicDir string `yaml:"public_dir" json:"public_dir"`

	// DefaultCalendar, if set, is loaded lazily when the dataset is empty
	// and refreshed on the Refresh schedule.
	DefaultCalendar string `yaml:"default_calendar" json:"default_calendar"`

	// RefreshCron is a cron-style schedule (e.g. "0 * * * *") for reloading
	// DefaultCalendar. Empty disables the refresh job.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	Upload   UploadConfig   `yaml:"upload" json:"upload"`
	Calendar CalendarConfig `yaml:"calendar" json:"calendar"`
	Tabular  TabularConfig  `yaml:"tabular" json:"tabular"`
	Server   ServerConfig   `yaml:"server" json:"server"`
	Log      LogConfig      `yaml:"log" json:"log"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:          defaultListen,
		Timezone:        defaultTimezone,
		PublicDir:       defaultPublicDir,
		DefaultCalendar: "Edt_DELAVIGNE.ics",
		Upload: UploadConfig{
			Dir:      defaultUploadDir,
			MaxBytes: defaultMaxUploadBytes,
		},
		Calendar: CalendarConfig{
			HorizonDays:    defaultHorizonDays,
			MaxOccurrences: defaultMaxOccurrences,
		},
		Server: ServerConfig{
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.PublicDir == "" {
		c.PublicDir = defaultPublicDir
	}
	if c.Upload.Dir == "" {
		c.Upload.Dir = defaultUploadDir
	}
	if c.Upload.MaxBytes <= 0 {
		c.Upload.MaxBytes = defaultMaxUploadBytes
	}
	if c.Calendar.HorizonDays <= 0 {
		c.Calendar.HorizonDays = defaultHorizonDays
	}
	if c.Calendar.MaxOccurrences <= 0 {
		c.Calendar.MaxOccurrences = defaultMaxOccurrences
	}
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = defaultReadTimeout
	}
	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = defaultWriteTimeout
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = defaultShutdownTimeout
	}
	switch c.Log.Format {
	case "text", "json":
		// ok
	default:
		c.Log.Format = "text"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Location resolves Timezone, falling back to time.Local when it is unknown.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
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
//   - In both cases, PLANYNOV_* environment variables are applied last.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				cfg.ApplyEnv()
				return cfg, err
			}
			cfg.ApplyEnv()
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	cfg.ApplyEnv()

	return &cfg, nil
}

// ApplyEnv overrides fields from PLANYNOV_* environment variables. Values
// that fail to parse are ignored.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("PLANYNOV_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("PLANYNOV_TIMEZONE"); v != "" {
		c.Timezone = v
	}
	if v := os.Getenv("PLANYNOV_PUBLIC_DIR"); v != "" {
		c.PublicDir = v
	}
	if v := os.Getenv("PLANYNOV_DEFAULT_CALENDAR"); v != "" {
		c.DefaultCalendar = v
	}
	if v := os.Getenv("PLANYNOV_UPLOAD_DIR"); v != "" {
		c.Upload.Dir = v
	}
	if v := os.Getenv("PLANYNOV_UPLOAD_MAX_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			c.Upload.MaxBytes = n
		}
	}
	if v := os.Getenv("PLANYNOV_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("PLANYNOV_LOG_FORMAT"); v == "text" || v == "json" {
		c.Log.Format = v
	}
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
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

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".planynov-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
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
