package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/hyprfinity/internal/geometry"
	"github.com/jmylchreest/hyprfinity/internal/hyprland"
)

func ptr[T any](v T) *T { return &v }

func TestResolve_Defaults(t *testing.T) {
	eff, err := Resolve(DefaultConfig(), "", Overrides{})
	require.NoError(t, err)

	assert.Equal(t, "gamescope", eff.GamescopeBinary)
	assert.Equal(t, []string{"-r", "60"}, eff.Args)
	assert.Nil(t, eff.Command())
	assert.True(t, eff.HideWaybar)
	assert.Equal(t, geometry.Sizing{}, eff.Sizing)
	assert.True(t, eff.AutoRenderScale())
	assert.Equal(t, 10*time.Second, eff.StartupTimeout)
	assert.Equal(t, 100*time.Millisecond, eff.PollInterval)
	assert.Equal(t, 3*time.Second, eff.GracePeriod)
	assert.Equal(t, 2*time.Second, eff.ReflowInterval)
	assert.Equal(t, hyprland.Hotkey{Mods: "SUPER SHIFT", Key: "F12"}, eff.ExitHotkey)
	assert.Equal(t, "gamescope", eff.MatchClass)
	assert.Equal(t, OverlayBackendProcess, eff.Overlay.Backend)
}

func TestResolve_NilFileUsesDefaults(t *testing.T) {
	eff, err := Resolve(nil, "", Overrides{})
	require.NoError(t, err)
	assert.Equal(t, []string{"-r", "60"}, eff.Args)
}

func TestResolve_Precedence(t *testing.T) {
	file := DefaultConfig()
	file.RenderScale = 0.75
	file.HideWaybar = false
	file.VirtualWidth = 1920
	file.Workspace = "2"
	file.StartupTimeoutSecs = 15

	t.Run("file over defaults", func(t *testing.T) {
		eff, err := Resolve(file, "", Overrides{})
		require.NoError(t, err)
		assert.Equal(t, 0.75, eff.Sizing.RenderScale)
		assert.False(t, eff.HideWaybar)
		assert.Equal(t, 1920, eff.Sizing.VirtualWidth)
		assert.Equal(t, "2", eff.Workspace)
		assert.Equal(t, 15*time.Second, eff.StartupTimeout)
	})

	t.Run("overrides over file", func(t *testing.T) {
		eff, err := Resolve(file, "", Overrides{
			RenderScale:        ptr(0.5),
			HideWaybar:         ptr(true),
			VirtualWidth:       ptr(2560),
			VirtualHeight:      ptr(720),
			Workspace:          ptr("active"),
			StartupTimeoutSecs: ptr(3),
			NoPin:              ptr(true),
			Pick:               ptr(true),
			PickSize:           ptr(true),
			Verbose:            true,
		})
		require.NoError(t, err)
		assert.Equal(t, 0.5, eff.Sizing.RenderScale)
		assert.True(t, eff.HideWaybar)
		assert.Equal(t, 2560, eff.Sizing.VirtualWidth)
		assert.Equal(t, 720, eff.Sizing.VirtualHeight)
		assert.Equal(t, WorkspaceActive, eff.Workspace)
		assert.Equal(t, 3*time.Second, eff.StartupTimeout)
		assert.True(t, eff.NoPin)
		assert.True(t, eff.Pick)
		assert.True(t, eff.PickSize)
		assert.True(t, eff.Verbose)
	})

	t.Run("explicit false override", func(t *testing.T) {
		f := DefaultConfig()
		f.NoPin = true
		eff, err := Resolve(f, "", Overrides{NoPin: ptr(false)})
		require.NoError(t, err)
		assert.False(t, eff.NoPin)
	})
}

func TestResolve_Args(t *testing.T) {
	tests := []struct {
		name    string
		fileArg []string
		command []string
		cli     []string
		want    []string
	}{
		{
			name:    "file args with default command",
			fileArg: []string{"-r", "60"},
			command: []string{"steam", "-bigpicture"},
			want:    []string{"-r", "60", "--", "steam", "-bigpicture"},
		},
		{
			name:    "cli args replace file args",
			fileArg: []string{"-r", "60"},
			cli:     []string{"-r", "144"},
			want:    []string{"-r", "144"},
		},
		{
			name:    "cli args get default command",
			fileArg: []string{"-r", "60"},
			command: []string{"vkcube"},
			cli:     []string{"-f"},
			want:    []string{"-f", "--", "vkcube"},
		},
		{
			name:    "explicit separator keeps cli command",
			command: []string{"vkcube"},
			cli:     []string{"-f", "--", "glxgears"},
			want:    []string{"-f", "--", "glxgears"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file := DefaultConfig()
			file.GamescopeArgs = tt.fileArg
			file.DefaultCommand = tt.command

			eff, err := Resolve(file, "", Overrides{Args: tt.cli})
			require.NoError(t, err)
			assert.Equal(t, tt.want, eff.Args)
		})
	}
}

func TestResolve_DoesNotAliasInputs(t *testing.T) {
	file := DefaultConfig()
	cli := []string{"-r", "144"}
	eff, err := Resolve(file, "", Overrides{Args: cli})
	require.NoError(t, err)

	eff.Args[1] = "30"
	assert.Equal(t, "144", cli[1])
	assert.Equal(t, []string{"-r", "60"}, file.GamescopeArgs)
}

func TestResolve_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		o      Overrides
		field  string
	}{
		{name: "scale above one", o: Overrides{RenderScale: ptr(1.5)}, field: "render_scale"},
		{name: "negative scale", o: Overrides{RenderScale: ptr(-0.1)}, field: "render_scale"},
		{name: "zero scale flag", o: Overrides{RenderScale: ptr(0.0)}, field: "render_scale"},
		{name: "scale in file", mutate: func(c *Config) { c.RenderScale = 2 }, field: "render_scale"},
		{name: "negative virtual width", o: Overrides{VirtualWidth: ptr(-1)}, field: "virtual_width"},
		{name: "zero timeout", o: Overrides{StartupTimeoutSecs: ptr(0)}, field: "startup_timeout_secs"},
		{name: "bad hotkey", mutate: func(c *Config) { c.ExitHotkey = "HYPER, F12" }, field: "exit_hotkey"},
		{name: "hotkey without key", mutate: func(c *Config) { c.ExitHotkey = "SUPER" }, field: "exit_hotkey"},
		{name: "unknown overlay backend", mutate: func(c *Config) { c.Overlay.Backend = "eww" }, field: "overlay.backend"},
		{name: "negative reflow", mutate: func(c *Config) { c.ReflowInterval = Duration(-time.Second) }, field: "reflow_interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file := DefaultConfig()
			if tt.mutate != nil {
				tt.mutate(file)
			}
			_, err := Resolve(file, "/etc/cfg.toml", tt.o)
			var ce *ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
			assert.Equal(t, "/etc/cfg.toml", ce.Path)
		})
	}
}

func TestResolve_EmptyHotkeyDisablesIt(t *testing.T) {
	file := DefaultConfig()
	file.ExitHotkey = ""
	eff, err := Resolve(file, "", Overrides{})
	require.NoError(t, err)
	assert.True(t, eff.ExitHotkey.IsZero())
}

func TestEffective_WithCommand(t *testing.T) {
	eff := &Effective{Args: []string{"-r", "60", "--", "old"}}

	got := eff.WithCommand([]string{"steam", "-gamepadui"})
	assert.Equal(t, []string{"-r", "60", "--", "steam", "-gamepadui"}, got.Args)
	assert.Equal(t, []string{"steam", "-gamepadui"}, got.Command())
	assert.Equal(t, []string{"-r", "60", "--", "old"}, eff.Args)

	got = (&Effective{Args: []string{"-f"}}).WithCommand([]string{"vkcube"})
	assert.Equal(t, []string{"-f", "--", "vkcube"}, got.Args)
}

func TestEffective_WithInternalSize(t *testing.T) {
	eff := &Effective{Sizing: geometry.Sizing{RenderScale: 0.5}}
	got := eff.WithInternalSize(geometry.Size{Width: 1280, Height: 720})
	assert.Equal(t, 1280, got.Sizing.VirtualWidth)
	assert.Equal(t, 720, got.Sizing.VirtualHeight)
	assert.Zero(t, eff.Sizing.VirtualWidth)
}

func TestEffective_WithRenderScale(t *testing.T) {
	eff, err := Resolve(DefaultConfig(), "", Overrides{})
	require.NoError(t, err)
	require.True(t, eff.AutoRenderScale())

	got := eff.WithRenderScale(0.67)
	assert.Equal(t, 0.67, got.Sizing.RenderScale)
	assert.False(t, got.AutoRenderScale())
	assert.True(t, eff.AutoRenderScale())

	fromFlag, err := Resolve(DefaultConfig(), "", Overrides{RenderScale: ptr(0.8)})
	require.NoError(t, err)
	assert.False(t, fromFlag.AutoRenderScale())
}
