package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_FirstRunWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "planynov.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Listen != defaultListen || cfg.Upload.MaxBytes != defaultMaxUploadBytes {
		t.Errorf("cfg = %+v, want defaults", cfg)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file not created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("config perms = %o, want 600", perm)
	}

	again, err := Load(path)
	if err != nil {
		t.Fatalf("second Load() error = %v", err)
	}
	if again.DefaultCalendar != cfg.DefaultCalendar || again.Server != cfg.Server {
		t.Errorf("reloaded cfg = %+v, want %+v", again, cfg)
	}
}

func TestLoad_PartialFileIsNormalized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "planynov.yaml")
	body := `
listen: "127.0.0.1:8080"
refresh: "*/15 * * * *"
calendar:
  expand_recurrences: true
server:
  read_timeout: 5s
log:
  format: xml
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Listen != "127.0.0.1:8080" || cfg.RefreshCron != "*/15 * * * *" {
		t.Errorf("Listen = %q RefreshCron = %q", cfg.Listen, cfg.RefreshCron)
	}
	if !cfg.Calendar.ExpandRecurrences || cfg.Calendar.HorizonDays != defaultHorizonDays {
		t.Errorf("Calendar = %+v", cfg.Calendar)
	}
	if cfg.Server.ReadTimeout != 5*time.Second || cfg.Server.WriteTimeout != defaultWriteTimeout {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Log.Format != "text" || cfg.Log.Level != "info" {
		t.Errorf("Log = %+v, want text/info", cfg.Log)
	}
	if cfg.Upload.Dir != defaultUploadDir || cfg.PublicDir != defaultPublicDir {
		t.Errorf("Upload.Dir = %q PublicDir = %q", cfg.Upload.Dir, cfg.PublicDir)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "planynov.yaml")
	if err := os.WriteFile(path, []byte("listen: [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() error = nil, want YAML error")
	}
	if _, err := Load(""); err == nil {
		t.Error("Load(\"\") error = nil, want error")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("PLANYNOV_LISTEN", ":9000")
	t.Setenv("PLANYNOV_UPLOAD_MAX_BYTES", "1024")
	t.Setenv("PLANYNOV_LOG_FORMAT", "json")
	t.Setenv("PLANYNOV_DEFAULT_CALENDAR", "edt.ics")

	cfg, err := Load(filepath.Join(t.TempDir(), "planynov.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Listen != ":9000" || cfg.Upload.MaxBytes != 1024 || cfg.Log.Format != "json" || cfg.DefaultCalendar != "edt.ics" {
		t.Errorf("cfg = %+v, want env overrides", cfg)
	}

	t.Setenv("PLANYNOV_UPLOAD_MAX_BYTES", "lots")
	t.Setenv("PLANYNOV_LOG_FORMAT", "xml")
	cfg = DefaultConfig()
	cfg.ApplyEnv()
	if cfg.Upload.MaxBytes != defaultMaxUploadBytes || cfg.Log.Format != "text" {
		t.Errorf("invalid env values applied: %+v", cfg)
	}
}

func TestLocation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timezone = "Not/AZone"
	if cfg.Location() != time.Local {
		t.Errorf("Location() for unknown zone = %v, want Local", cfg.Location())
	}

	cfg.Timezone = "UTC"
	if cfg.Location() != time.UTC {
		t.Errorf("Location() = %v, want UTC", cfg.Location())
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "planynov.yaml")
	cfg := DefaultConfig()
	cfg.RefreshCron = "0 * * * *"
	cfg.Tabular.Sheet = "Planning"

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.RefreshCron != "0 * * * *" || got.Tabular.Sheet != "Planning" {
		t.Errorf("reloaded cfg = %+v", got)
	}

	if err := Save(path, nil); err == nil {
		t.Error("Save(nil) error = nil, want error")
	}
	if err := Save("", cfg); err == nil {
		t.Error("Save(\"\") error = nil, want error")
	}
}
