package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// SettingsFile is the optional daemon settings file inside the config directory.
const SettingsFile = "logmonitor.yaml"

// Settings tunes the daemon. Every field has a usable default.
type Settings struct {
	PollInterval       time.Duration `yaml:"poll_interval"`
	StatusReadInterval time.Duration `yaml:"status_read_interval"`

	// ExecTimeout bounds filter and field executables. Zero means no limit:
	// a hung executable stalls the daemon.
	ExecTimeout time.Duration `yaml:"exec_timeout"`

	// OutputLimit caps captured stdout of field executables, in bytes.
	OutputLimit int `yaml:"output_limit"`

	// Watch wakes the poll loop on filesystem events between ticks.
	Watch bool `yaml:"watch"`

	Log LogSettings `yaml:"log"`
}

// LogSettings controls rotation of the --log-file output.
type LogSettings struct {
	MaxSizeMB  int `yaml:"max_size_mb"`
	MaxBackups int `yaml:"max_backups"`
	MaxAgeDays int `yaml:"max_age_days"`
}

// DefaultSettings returns the settings used when no file is present.
func DefaultSettings() Settings {
	return Settings{
		PollInterval:       time.Second,
		StatusReadInterval: 5 * time.Second,
		ExecTimeout:        0,
		OutputLimit:        512,
		Watch:              false,
		Log: LogSettings{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// LoadSettings reads <dir>/logmonitor.yaml over the defaults.
// A missing file is not an error.
func LoadSettings(dir string) (Settings, error) {
	s := DefaultSettings()

	path := filepath.Join(dir, SettingsFile)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("read settings: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return s, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := s.Validate(); err != nil {
		return s, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Validate rejects settings the daemon cannot run with.
func (s Settings) Validate() error {
	if s.PollInterval <= 0 {
		return errors.New("poll_interval must be positive")
	}
	if s.StatusReadInterval < 0 {
		return errors.New("status_read_interval must not be negative")
	}
	if s.ExecTimeout < 0 {
		return errors.New("exec_timeout must not be negative")
	}
	if s.OutputLimit <= 0 {
		return errors.New("output_limit must be positive")
	}
	return nil
}
