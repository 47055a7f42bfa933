// Package config provides configuration file parsing for piptrack.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// FileName is the config file name inside Dir().
const FileName = "config.toml"

// Dir returns the piptrack config directory, respecting XDG_CONFIG_HOME.
// Defaults to ~/.config/piptrack if XDG_CONFIG_HOME is not set.
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "piptrack"), nil
}

// DefaultPath returns the config file location under Dir().
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Config represents the piptrack configuration file. An empty PipBinary
// means auto-detect.
type Config struct {
	PipBinary      string            `toml:"pip_binary"`
	HistoryFile    string            `toml:"history_file"`
	Database       string            `toml:"database"`
	LogFile        string            `toml:"log_file"`
	CommandTimeout string            `toml:"command_timeout"`
	CheckUpdates   bool              `toml:"check_updates"`
	Aliases        map[string]string `toml:"aliases,omitempty"`
}

// Default returns the built-in configuration. Paths keep their "~" prefix
// and are expanded by the accessors.
func Default() *Config {
	return &Config{
		HistoryFile:    "~/.piptrack/package_history.json",
		Database:       "~/.piptrack/piptrack.db",
		LogFile:        "~/.piptrack/piptrack.log",
		CommandTimeout: "10m",
		CheckUpdates:   true,
	}
}

// Timeout parses CommandTimeout. An empty value yields fallback.
func (c *Config) Timeout(fallback time.Duration) (time.Duration, error) {
	if strings.TrimSpace(c.CommandTimeout) == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(c.CommandTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid command_timeout %q: %w", c.CommandTimeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("command_timeout must be positive, got %s", c.CommandTimeout)
	}
	return d, nil
}

// HistoryPath returns HistoryFile with "~" expanded.
func (c *Config) HistoryPath() (string, error) {
	return ExpandPath(c.HistoryFile)
}

// DatabasePath returns Database with "~" expanded.
func (c *Config) DatabasePath() (string, error) {
	return ExpandPath(c.Database)
}

// LogPath returns LogFile with "~" expanded.
func (c *Config) LogPath() (string, error) {
	return ExpandPath(c.LogFile)
}

// ExpandPath replaces a leading "~" with the user's home directory.
func ExpandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from r on top of the defaults, so keys missing from
// the file keep their default values.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	cfg := Default()
	md, err := toml.NewDecoder(r).Decode(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	return cfg, nil
}

// Write encodes a Config to w.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// Load reads the config at path. A missing file yields Default().
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// Init writes cfg to path. It refuses to overwrite an existing file.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}
