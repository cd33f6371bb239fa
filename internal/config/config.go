// Package config reads and writes the application's TOML
// configuration. Secret material (passwords, tokens, calendar
// subscriptions) lives in a separate secrets.toml next to config.toml
// so the public file can be checked into dotfiles or synced without
// leaking credentials.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/mindwtr/mindwtr/internal/model"
)

const (
	appName     = "mindwtr"
	configFile  = "config.toml"
	secretsFile = "secrets.toml"

	// DataFileName is the JSON data file the file adapter reads.
	DataFileName = "data.json"
	// DBFileName is the SQLite database file.
	DBFileName = "mindwtr.db"
)

// ErrInvalidBackend is returned when a backend name is not one of
// file, webdav or cloud.
var ErrInvalidBackend = errors.New("config: invalid sync backend")

// Config is the merged view of config.toml and secrets.toml. Empty
// strings mean unset.
type Config struct {
	SyncPath          string `toml:"sync_path,omitempty"`
	SyncBackend       string `toml:"sync_backend,omitempty"`
	WebDAVURL         string `toml:"webdav_url,omitempty"`
	WebDAVUsername    string `toml:"webdav_username,omitempty"`
	WebDAVPassword    string `toml:"webdav_password,omitempty"`
	CloudURL          string `toml:"cloud_url,omitempty"`
	CloudToken        string `toml:"cloud_token,omitempty"`
	ExternalCalendars string `toml:"external_calendars,omitempty"`
}

// Dir returns the configuration directory, creating nothing.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: locate config dir: %w", err)
	}
	return filepath.Join(base, appName), nil
}

// DataDir returns the directory holding the data file and database.
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: locate home dir: %w", err)
	}
	return filepath.Join(home, ".local", "share", appName), nil
}

// DefaultSyncPath is where the data file is mirrored when no explicit
// sync path is configured: ~/Sync/mindwtr.
func DefaultSyncPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: locate home dir: %w", err)
	}
	return filepath.Join(home, "Sync", appName), nil
}

// Load reads config.toml and secrets.toml from dir and merges them,
// secrets winning. Missing files yield a zero config, not an error.
func Load(dir string) (*Config, error) {
	cfg := &Config{}
	if err := readTOML(filepath.Join(dir, configFile), cfg); err != nil {
		return nil, err
	}

	secrets := &Config{}
	if err := readTOML(filepath.Join(dir, secretsFile), secrets); err != nil {
		return nil, err
	}
	if secrets.WebDAVPassword != "" {
		cfg.WebDAVPassword = secrets.WebDAVPassword
	}
	if secrets.CloudToken != "" {
		cfg.CloudToken = secrets.CloudToken
	}
	if secrets.ExternalCalendars != "" {
		cfg.ExternalCalendars = secrets.ExternalCalendars
	}
	return cfg, nil
}

// Save splits cfg into its public and secret halves and writes both
// files. A secrets file with nothing left in it is removed rather than
// written empty.
func Save(dir string, cfg *Config) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("config: create config dir: %w", err)
	}

	public := *cfg
	secrets := Config{
		WebDAVPassword:    cfg.WebDAVPassword,
		CloudToken:        cfg.CloudToken,
		ExternalCalendars: cfg.ExternalCalendars,
	}
	public.WebDAVPassword = ""
	public.CloudToken = ""
	public.ExternalCalendars = ""

	if err := writeTOML(filepath.Join(dir, configFile), &public, "# Mindwtr configuration"); err != nil {
		return err
	}

	secretsPath := filepath.Join(dir, secretsFile)
	if secrets == (Config{}) {
		if err := os.Remove(secretsPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("config: remove empty secrets file: %w", err)
		}
		return nil
	}
	return writeTOML(secretsPath, &secrets, "# Mindwtr secrets")
}

// Backend returns the normalized sync backend, defaulting to file.
func (c *Config) Backend() string {
	b, err := NormalizeBackend(c.SyncBackend)
	if err != nil {
		return "file"
	}
	return b
}

// NormalizeBackend validates a backend name.
func NormalizeBackend(value string) (string, error) {
	switch v := strings.TrimSpace(value); v {
	case "", "file":
		return "file", nil
	case "webdav", "cloud":
		return v, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidBackend, value)
	}
}

// Calendars decodes the external calendar subscriptions, dropping
// entries without a URL and defaulting blank names.
func (c *Config) Calendars() []model.ExternalCalendar {
	if c.ExternalCalendars == "" {
		return nil
	}
	var parsed []model.ExternalCalendar
	if err := json.Unmarshal([]byte(c.ExternalCalendars), &parsed); err != nil {
		return nil
	}
	return SanitizeCalendars(parsed)
}

// SetCalendars sanitizes and stores the subscriptions back into the
// config's JSON blob.
func (c *Config) SetCalendars(calendars []model.ExternalCalendar) error {
	sanitized := SanitizeCalendars(calendars)
	raw, err := json.Marshal(sanitized)
	if err != nil {
		return fmt.Errorf("config: encode calendars: %w", err)
	}
	c.ExternalCalendars = string(raw)
	return nil
}

// SanitizeCalendars trims names and URLs, drops URL-less entries and
// names nameless ones "Calendar".
func SanitizeCalendars(in []model.ExternalCalendar) []model.ExternalCalendar {
	out := make([]model.ExternalCalendar, 0, len(in))
	for _, c := range in {
		c.URL = strings.TrimSpace(c.URL)
		if c.URL == "" {
			continue
		}
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			c.Name = "Calendar"
		}
		out = append(out, c)
	}
	return out
}

func readTOML(path string, into *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", filepath.Base(path), err)
	}
	if err := toml.Unmarshal(raw, into); err != nil {
		return fmt.Errorf("config: parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

func writeTOML(path string, cfg *Config, header string) error {
	var sb strings.Builder
	sb.WriteString(header + "\n")
	if err := toml.NewEncoder(&sb).Encode(cfg); err != nil {
		return fmt.Errorf("config: encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", filepath.Base(path), err)
	}
	return nil
}
