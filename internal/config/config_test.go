package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mindwtr/mindwtr/internal/model"
)

func TestLoadMissingFilesYieldsZeroConfig(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if *cfg != (Config{}) {
		t.Errorf("config = %+v, want zero value", cfg)
	}
}

func TestSaveSplitsSecrets(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{
		SyncPath:       "/home/u/Sync/mindwtr",
		SyncBackend:    "webdav",
		WebDAVURL:      "https://dav.example.com",
		WebDAVUsername: "u",
		WebDAVPassword: "hunter2",
		CloudToken:     "tok-123",
	}
	if err := Save(dir, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	public, err := os.ReadFile(filepath.Join(dir, "config.toml"))
	if err != nil {
		t.Fatalf("read config.toml: %v", err)
	}
	if strings.Contains(string(public), "hunter2") || strings.Contains(string(public), "tok-123") {
		t.Error("secrets leaked into config.toml")
	}
	if !strings.Contains(string(public), "dav.example.com") {
		t.Error("public settings missing from config.toml")
	}

	secret, err := os.ReadFile(filepath.Join(dir, "secrets.toml"))
	if err != nil {
		t.Fatalf("read secrets.toml: %v", err)
	}
	if !strings.Contains(string(secret), "hunter2") {
		t.Error("password missing from secrets.toml")
	}

	// The merged view must round-trip.
	got, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if *got != *cfg {
		t.Errorf("round trip = %+v, want %+v", got, cfg)
	}
}

func TestSaveRemovesEmptySecretsFile(t *testing.T) {
	dir := t.TempDir()
	withSecret := &Config{WebDAVPassword: "hunter2"}
	if err := Save(dir, withSecret); err != nil {
		t.Fatalf("Save: %v", err)
	}

	withoutSecret := &Config{SyncBackend: "file"}
	if err := Save(dir, withoutSecret); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "secrets.toml")); !os.IsNotExist(err) {
		t.Error("empty secrets.toml left behind")
	}
}

func TestNormalizeBackend(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", "file", false},
		{"file", "file", false},
		{" webdav ", "webdav", false},
		{"cloud", "cloud", false},
		{"ftp", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeBackend(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("NormalizeBackend(%q) succeeded, want error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizeBackend(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeBackend(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCalendars(t *testing.T) {
	cfg := &Config{}
	err := cfg.SetCalendars([]model.ExternalCalendar{
		{ID: "c1", Name: "  Team  ", URL: " https://example.com/cal.ics ", Enabled: true},
		{ID: "c2", Name: "Empty", URL: "   "},
		{ID: "c3", URL: "https://example.com/other.ics"},
	})
	if err != nil {
		t.Fatalf("SetCalendars: %v", err)
	}

	got := cfg.Calendars()
	if len(got) != 2 {
		t.Fatalf("calendars = %d, want URL-less entries dropped", len(got))
	}
	if got[0].Name != "Team" || got[0].URL != "https://example.com/cal.ics" {
		t.Errorf("calendar 0 = %+v, want trimmed fields", got[0])
	}
	if got[1].Name != "Calendar" {
		t.Errorf("calendar 1 name = %q, want the default name", got[1].Name)
	}
}
