package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "gamescope", cfg.GamescopeBinary)
	assert.Equal(t, []string{"-r", "60"}, cfg.GamescopeArgs)
	assert.Empty(t, cfg.DefaultCommand)
	assert.True(t, cfg.HideWaybar)
	assert.False(t, cfg.NoPin)
	assert.Equal(t, RenderScaleAuto, cfg.RenderScale)
	assert.Equal(t, 10, cfg.StartupTimeoutSecs)
	assert.Equal(t, 100*time.Millisecond, cfg.PollInterval.Duration())
	assert.Equal(t, 3*time.Second, cfg.GracePeriod.Duration())
	assert.Equal(t, 2*time.Second, cfg.ReflowInterval.Duration())
	assert.Equal(t, WorkspaceNone, cfg.Workspace)
	assert.Equal(t, "gamescope", cfg.MatchClass)
	assert.Equal(t, "SUPER SHIFT, F12", cfg.ExitHotkey)
	assert.Equal(t, OverlayBackendProcess, cfg.Overlay.Backend)
	assert.Equal(t, "waybar", cfg.Overlay.Process)
	assert.Equal(t, "waybar.service", cfg.Overlay.Unit)
}

func TestLoadConfig_DefaultsWhenNoFile(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.toml")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_ParsesTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	content := `
gamescope_binary = "/usr/bin/gamescope"
gamescope_args = ["-r", "144", "--adaptive-sync"]
default_command = ["steam", "-bigpicture"]
no_pin = true
pick = true
hide_waybar = false
pick_size = true
render_scale = 0.75
virtual_width = 2560
startup_timeout_secs = 20
poll_interval = "250ms"
grace_period = "5s"
reflow_interval = "0s"
workspace = "active"
match_class = "gamescope-0"
exit_hotkey = "SUPER ALT, Escape"

[overlay]
backend = "systemd"
unit = "bar.service"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/usr/bin/gamescope", cfg.GamescopeBinary)
	assert.Equal(t, []string{"-r", "144", "--adaptive-sync"}, cfg.GamescopeArgs)
	assert.Equal(t, []string{"steam", "-bigpicture"}, cfg.DefaultCommand)
	assert.True(t, cfg.NoPin)
	assert.True(t, cfg.Pick)
	assert.False(t, cfg.HideWaybar)
	assert.True(t, cfg.PickSize)
	assert.Equal(t, 0.75, cfg.RenderScale)
	assert.Equal(t, 2560, cfg.VirtualWidth)
	assert.Equal(t, 0, cfg.VirtualHeight)
	assert.Equal(t, 20, cfg.StartupTimeoutSecs)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval.Duration())
	assert.Equal(t, 5*time.Second, cfg.GracePeriod.Duration())
	assert.Equal(t, time.Duration(0), cfg.ReflowInterval.Duration())
	assert.Equal(t, WorkspaceActive, cfg.Workspace)
	assert.Equal(t, "gamescope-0", cfg.MatchClass)
	assert.Equal(t, "SUPER ALT, Escape", cfg.ExitHotkey)
	assert.Equal(t, OverlayBackendSystemd, cfg.Overlay.Backend)
	assert.Equal(t, "bar.service", cfg.Overlay.Unit)
	// Unset keys in a table keep their defaults.
	assert.Equal(t, "waybar", cfg.Overlay.Process)
}

func TestLoadConfig_PartialConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	require.NoError(t, os.WriteFile(path, []byte(`render_scale = 0.5`), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 0.5, cfg.RenderScale)

	// Unchanged fields should have defaults
	assert.True(t, cfg.HideWaybar)
	assert.Equal(t, []string{"-r", "60"}, cfg.GamescopeArgs)
	assert.Equal(t, DefaultExitHotkey, cfg.ExitHotkey)
}

func TestLoadConfig_InvalidTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	require.NoError(t, os.WriteFile(path, []byte(`this is not valid toml [`), 0644))

	_, err := LoadConfig(path)
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, path, ce.Path)
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	require.NoError(t, os.WriteFile(path, []byte(`grace_period = "soon"`), 0644))

	_, err := LoadConfig(path)
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
}

func TestConfig_Save(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "subdir", "config.toml")

	cfg := DefaultConfig()
	cfg.RenderScale = 0.5
	cfg.Workspace = "3"
	cfg.GracePeriod = Duration(1500 * time.Millisecond)

	require.NoError(t, cfg.Save(path))

	_, err := os.Stat(path)
	require.NoError(t, err)
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 0.5, loaded.RenderScale)
	assert.Equal(t, "3", loaded.Workspace)
	assert.Equal(t, 1500*time.Millisecond, loaded.GracePeriod.Duration())
	assert.Equal(t, cfg.GamescopeArgs, loaded.GamescopeArgs)
	assert.Equal(t, cfg.ExitHotkey, loaded.ExitHotkey)
	assert.Equal(t, cfg.Overlay, loaded.Overlay)
}

func TestConfig_SaveWithComment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := DefaultConfig()
	cfg.RenderScale = 0.67
	require.NoError(t, cfg.SaveWithComment(path, "render_scale auto-tuned\nGPU='AMD Radeon RX 6700 XT'\n"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# render_scale auto-tuned\n# GPU='AMD Radeon RX 6700 XT'\n\n"))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 0.67, loaded.RenderScale)
}

func TestDuration_UnmarshalText(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "100ms", want: 100 * time.Millisecond},
		{in: "3s", want: 3 * time.Second},
		{in: "1m", want: time.Minute},
		{in: "250", want: 250 * time.Millisecond},
		{in: "later", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var d Duration
			err := d.UnmarshalText([]byte(tt.in))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Duration())
		})
	}
}

func TestConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	assert.Equal(t, "/custom/config/hyprfinity/config.toml", ConfigPath())
}

func TestConfigPathDefault(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	assert.Contains(t, ConfigPath(), "hyprfinity/config.toml")
}

func TestConfigError_Error(t *testing.T) {
	err := &ConfigError{Path: "/x/config.toml", Field: "render_scale", Err: assert.AnError}
	assert.Contains(t, err.Error(), "/x/config.toml")
	assert.Contains(t, err.Error(), "render_scale")
	assert.ErrorIs(t, err, assert.AnError)

	err = &ConfigError{Field: "workspace", Err: assert.AnError}
	assert.Equal(t, "config: workspace: "+assert.AnError.Error(), err.Error())
}
