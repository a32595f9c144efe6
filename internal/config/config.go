// Package config handles configuration file loading and merging of file
// values, command-line overrides and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Default configuration values.
const (
	DefaultGamescopeBinary    = "gamescope"
	DefaultStartupTimeoutSecs = 10
	// RenderScaleAuto in render_scale asks for a scale tuned to the
	// hardware; without tuning it renders at native size.
	RenderScaleAuto       = 0.0
	DefaultPollInterval   = 100 * time.Millisecond
	DefaultGracePeriod    = 3 * time.Second
	DefaultReflowInterval = 2 * time.Second
	DefaultMatchClass     = "gamescope"
	DefaultExitHotkey     = "SUPER SHIFT, F12"
	DefaultOverlayBackend = "process"
	DefaultOverlayProcess = "waybar"
	DefaultOverlayUnit    = "waybar.service"
)

// Workspace values with special meaning.
const (
	WorkspaceNone   = ""
	WorkspaceActive = "active"
)

// Overlay backends.
const (
	OverlayBackendProcess = "process"
	OverlayBackendSystemd = "systemd"
)

// Duration is a time.Duration that can be unmarshaled from human-readable strings.
// Supports formats like "100ms", "3s", "1m", or integer milliseconds as a string.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML parsing.
func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)

	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: must be like '100ms', '3s', '1m' or milliseconds: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalText implements encoding.TextMarshaler for TOML output.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Config represents the hyprfinity configuration file.
// Loaded from ~/.config/hyprfinity/config.toml
type Config struct {
	GamescopeBinary    string   `toml:"gamescope_binary" json:"gamescope_binary" yaml:"gamescope_binary"`
	GamescopeArgs      []string `toml:"gamescope_args" json:"gamescope_args" yaml:"gamescope_args"`
	DefaultCommand     []string `toml:"default_command" json:"default_command" yaml:"default_command"`
	NoPin              bool     `toml:"no_pin" json:"no_pin" yaml:"no_pin"`
	Pick               bool     `toml:"pick" json:"pick" yaml:"pick"`
	HideWaybar         bool     `toml:"hide_waybar" json:"hide_waybar" yaml:"hide_waybar"`
	PickSize           bool     `toml:"pick_size" json:"pick_size" yaml:"pick_size"`
	RenderScale        float64  `toml:"render_scale" json:"render_scale" yaml:"render_scale"`       // 0 = auto-tune
	VirtualWidth       int      `toml:"virtual_width" json:"virtual_width" yaml:"virtual_width"`    // 0 = derive
	VirtualHeight      int      `toml:"virtual_height" json:"virtual_height" yaml:"virtual_height"` // 0 = derive
	OutputWidth        int      `toml:"output_width" json:"output_width" yaml:"output_width"`       // 0 = span width
	OutputHeight       int      `toml:"output_height" json:"output_height" yaml:"output_height"`    // 0 = span height
	StartupTimeoutSecs int      `toml:"startup_timeout_secs" json:"startup_timeout_secs" yaml:"startup_timeout_secs"`
	PollInterval       Duration `toml:"poll_interval" json:"poll_interval" yaml:"poll_interval"`
	GracePeriod        Duration `toml:"grace_period" json:"grace_period" yaml:"grace_period"`
	ReflowInterval     Duration `toml:"reflow_interval" json:"reflow_interval" yaml:"reflow_interval"` // 0 = never
	Workspace          string   `toml:"workspace" json:"workspace" yaml:"workspace"`                   // "", "active" or a workspace name/id
	MatchClass         string   `toml:"match_class" json:"match_class" yaml:"match_class"`
	ExitHotkey         string   `toml:"exit_hotkey" json:"exit_hotkey" yaml:"exit_hotkey"` // "" = no hotkey

	Overlay OverlayConfig `toml:"overlay" json:"overlay" yaml:"overlay"`
}

// OverlayConfig selects how the status bar is hidden.
type OverlayConfig struct {
	Backend string `toml:"backend" json:"backend" yaml:"backend"` // "process" or "systemd"
	Process string `toml:"process" json:"process" yaml:"process"` // process name for the process backend
	Unit    string `toml:"unit" json:"unit" yaml:"unit"`          // user unit for the systemd backend
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		GamescopeBinary:    DefaultGamescopeBinary,
		GamescopeArgs:      []string{"-r", "60"},
		HideWaybar:         true,
		RenderScale:        RenderScaleAuto,
		StartupTimeoutSecs: DefaultStartupTimeoutSecs,
		PollInterval:       Duration(DefaultPollInterval),
		GracePeriod:        Duration(DefaultGracePeriod),
		ReflowInterval:     Duration(DefaultReflowInterval),
		MatchClass:         DefaultMatchClass,
		ExitHotkey:         DefaultExitHotkey,
		Overlay: OverlayConfig{
			Backend: DefaultOverlayBackend,
			Process: DefaultOverlayProcess,
			Unit:    DefaultOverlayUnit,
		},
	}
}

// ConfigPath returns the path to the config file.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config.
func ConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "hyprfinity", "config.toml")
}

// LoadConfig loads configuration from the specified path.
// If path is empty, uses the default config path.
// Returns default config if file doesn't exist.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, &ConfigError{Path: path, Err: err}
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	return cfg, nil
}

// Save writes the configuration to the specified path.
// Creates parent directories if needed and writes atomically via a temp file.
func (c *Config) Save(path string) error {
	return c.SaveWithComment(path, "")
}

// SaveWithComment is Save with comment written as a "#" block above the
// values.
func (c *Config) SaveWithComment(path, comment string) error {
	if path == "" {
		path = ConfigPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if comment != "" {
		var header strings.Builder
		for _, line := range strings.Split(strings.TrimRight(comment, "\n"), "\n") {
			header.WriteString(strings.TrimRight("# "+line, " ") + "\n")
		}
		header.WriteString("\n")
		data = append([]byte(header.String()), data...)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// ConfigError reports bad or contradictory settings.
type ConfigError struct {
	Path  string // config file, empty for command-line values
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	switch {
	case e.Field != "" && e.Path != "":
		return fmt.Sprintf("config %s: %s: %v", e.Path, e.Field, e.Err)
	case e.Field != "":
		return fmt.Sprintf("config: %s: %v", e.Field, e.Err)
	case e.Path != "":
		return fmt.Sprintf("config %s: %v", e.Path, e.Err)
	default:
		return fmt.Sprintf("config: %v", e.Err)
	}
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
