// Package config holds the settings consumed by the completion client and
// the daemon, loaded from the TABCOMPLETE_CONFIG environment variable and an
// optional TOML settings file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/BurntSushi/toml"
)

// EnvVar is the environment variable carrying the JSON config blob
const EnvVar = "TABCOMPLETE_CONFIG"

const (
	DefaultLogLevel       = "info"
	DefaultRequestTimeout = 5000 // milliseconds
	DefaultSyntaxCacheTTL = 10   // minutes
)

// Settings is the configuration surface. Fields without a value in either
// source keep their zero value; MaxNumResults stays nil so the engine sees null.
type Settings struct {
	// Completion client settings
	CustomBinaryPath string   `json:"custom_binary_path" toml:"custom_binary_path"`
	LogFilePath      string   `json:"log_file_path" toml:"log_file_path"`
	ExtraArgs        []string `json:"extra_args" toml:"extra_args"`
	MaxNumResults    *int     `json:"max_num_results" toml:"max_num_results"`
	Documentation    bool     `json:"documentation" toml:"documentation"`
	Detail           bool     `json:"detail" toml:"detail"`

	// Daemon settings
	LogLevel               string `json:"log_level" toml:"log_level"`
	InstallDir             string `json:"install_dir" toml:"install_dir"`
	RequestTimeoutMs       int    `json:"request_timeout_ms" toml:"request_timeout_ms"`
	SyntaxMapPath          string `json:"syntax_map_path" toml:"syntax_map_path"`
	SyntaxCacheTTLMinutes  int    `json:"syntax_cache_ttl_minutes" toml:"syntax_cache_ttl_minutes"`
	SettingsFile           string `json:"settings_file" toml:"-"`
	MetricsAddr            string `json:"metrics_addr" toml:"metrics_addr"`
	DebugImmediateShutdown bool   `json:"debug_immediate_shutdown" toml:"debug_immediate_shutdown"`
}

// RequestTimeout returns the per-request engine timeout
func (s *Settings) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutMs) * time.Millisecond
}

// SyntaxCacheTTL returns how long resolved syntax extensions are cached
func (s *Settings) SyntaxCacheTTL() time.Duration {
	return time.Duration(s.SyntaxCacheTTLMinutes) * time.Minute
}

// Clone returns a deep copy
func (s *Settings) Clone() *Settings {
	c := *s
	c.ExtraArgs = slices.Clone(s.ExtraArgs)
	if s.MaxNumResults != nil {
		n := *s.MaxNumResults
		c.MaxNumResults = &n
	}
	return &c
}

func (s *Settings) applyDefaults() {
	if s.LogLevel == "" {
		s.LogLevel = DefaultLogLevel
	}
	if s.RequestTimeoutMs <= 0 {
		s.RequestTimeoutMs = DefaultRequestTimeout
	}
	if s.SyntaxCacheTTLMinutes <= 0 {
		s.SyntaxCacheTTLMinutes = DefaultSyntaxCacheTTL
	}
	if s.InstallDir == "" {
		s.InstallDir = defaultInstallDir()
	}
}

// defaultInstallDir is the directory holding the executable; engine binaries
// live under its binaries/ subdirectory.
func defaultInstallDir() string {
	execPath, err := os.Executable()
	if err != nil {
		return "."
	}
	if resolved, err := filepath.EvalSymlinks(execPath); err == nil {
		execPath = resolved
	}
	return filepath.Dir(execPath)
}

// Parse decodes a JSON config blob and applies the settings file overlay.
// An empty blob yields defaults.
func Parse(raw string) (*Settings, error) {
	var s Settings
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
	}
	if s.SettingsFile != "" {
		if err := s.overlayFile(s.SettingsFile); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}
	s.applyDefaults()
	return &s, nil
}

// Load reads the config from the environment
func Load() (*Settings, error) {
	return Parse(os.Getenv(EnvVar))
}

// overlayFile decodes the TOML file at path over s. Keys absent from the
// file leave the existing values untouched.
func (s *Settings) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if _, err := toml.Decode(string(data), s); err != nil {
		return fmt.Errorf("invalid settings file %s: %w", path, err)
	}
	return nil
}
