package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jmylchreest/hyprfinity/internal/geometry"
	"github.com/jmylchreest/hyprfinity/internal/hyprland"
)

// ArgSeparator separates Gamescope's own arguments from the command it runs.
const ArgSeparator = "--"

// Overrides holds values given on the command line. A nil pointer means the
// flag was not set and the file value (or default) applies.
type Overrides struct {
	Args               []string
	NoPin              *bool
	Pick               *bool
	PickSize           *bool
	HideWaybar         *bool
	RenderScale        *float64
	VirtualWidth       *int
	VirtualHeight      *int
	StartupTimeoutSecs *int
	Workspace          *string
	Verbose            bool
}

// Effective is the merged configuration for one invocation.
type Effective struct {
	Source          string // config file the values were loaded from
	GamescopeBinary string
	// Args are the Gamescope arguments. Anything after the first "--" is
	// the command Gamescope launches.
	Args           []string
	NoPin          bool
	Pick           bool
	PickSize       bool
	HideWaybar     bool
	Sizing         geometry.Sizing
	StartupTimeout time.Duration
	PollInterval   time.Duration
	GracePeriod    time.Duration
	ReflowInterval time.Duration
	Workspace      string
	MatchClass     string
	ExitHotkey     hyprland.Hotkey
	Overlay        OverlayConfig
	Verbose        bool
}

// Command returns the command after the "--" separator, or nil.
func (e *Effective) Command() []string {
	i := slices.Index(e.Args, ArgSeparator)
	if i < 0 {
		return nil
	}
	return e.Args[i+1:]
}

// WithCommand returns a copy of e whose command is replaced by command.
func (e *Effective) WithCommand(command []string) *Effective {
	out := *e
	args := e.Args
	if i := slices.Index(args, ArgSeparator); i >= 0 {
		args = args[:i]
	}
	out.Args = append(append(slices.Clone(args), ArgSeparator), command...)
	return &out
}

// WithInternalSize returns a copy of e with an explicit internal render size.
func (e *Effective) WithInternalSize(size geometry.Size) *Effective {
	out := *e
	out.Sizing.VirtualWidth = size.Width
	out.Sizing.VirtualHeight = size.Height
	return &out
}

// AutoRenderScale reports whether neither the file nor the command line
// chose a render scale.
func (e *Effective) AutoRenderScale() bool {
	return e.Sizing.RenderScale == RenderScaleAuto
}

// WithRenderScale returns a copy of e using scale.
func (e *Effective) WithRenderScale(scale float64) *Effective {
	out := *e
	out.Sizing.RenderScale = scale
	return &out
}

// Resolve merges file values with command-line overrides. Command-line
// values win over the file, which wins over built-in defaults (already
// applied by LoadConfig). path is only used for error messages.
func Resolve(file *Config, path string, o Overrides) (*Effective, error) {
	if file == nil {
		file = DefaultConfig()
	}

	eff := &Effective{
		Source:          path,
		GamescopeBinary: file.GamescopeBinary,
		NoPin:           pick(o.NoPin, file.NoPin),
		Pick:            pick(o.Pick, file.Pick),
		PickSize:        pick(o.PickSize, file.PickSize),
		HideWaybar:      pick(o.HideWaybar, file.HideWaybar),
		Sizing: geometry.Sizing{
			RenderScale:   pick(o.RenderScale, file.RenderScale),
			VirtualWidth:  pick(o.VirtualWidth, file.VirtualWidth),
			VirtualHeight: pick(o.VirtualHeight, file.VirtualHeight),
			OutputWidth:   file.OutputWidth,
			OutputHeight:  file.OutputHeight,
		},
		PollInterval:   file.PollInterval.Duration(),
		GracePeriod:    file.GracePeriod.Duration(),
		ReflowInterval: file.ReflowInterval.Duration(),
		Workspace:      strings.TrimSpace(pick(o.Workspace, file.Workspace)),
		MatchClass:     file.MatchClass,
		Overlay:        file.Overlay,
		Verbose:        o.Verbose,
	}

	if eff.GamescopeBinary == "" {
		eff.GamescopeBinary = DefaultGamescopeBinary
	}
	if eff.MatchClass == "" {
		eff.MatchClass = DefaultMatchClass
	}

	if len(o.Args) > 0 {
		eff.Args = slices.Clone(o.Args)
	} else {
		eff.Args = slices.Clone(file.GamescopeArgs)
	}
	if !slices.Contains(eff.Args, ArgSeparator) && len(file.DefaultCommand) > 0 {
		eff.Args = append(append(eff.Args, ArgSeparator), file.DefaultCommand...)
	}

	fail := func(field string, err error) (*Effective, error) {
		return nil, &ConfigError{Path: path, Field: field, Err: err}
	}

	if o.RenderScale != nil && *o.RenderScale <= 0 {
		return fail("render_scale", fmt.Errorf("%v must be in (0, 1]", *o.RenderScale))
	}
	if err := eff.Sizing.Validate(); err != nil {
		var se *geometry.SizingError
		if errors.As(err, &se) {
			return fail(se.Field, err)
		}
		return fail("", err)
	}

	timeout := pick(o.StartupTimeoutSecs, file.StartupTimeoutSecs)
	if timeout <= 0 {
		return fail("startup_timeout_secs", fmt.Errorf("%d must be positive", timeout))
	}
	eff.StartupTimeout = time.Duration(timeout) * time.Second

	if eff.PollInterval <= 0 {
		eff.PollInterval = DefaultPollInterval
	}
	if eff.GracePeriod <= 0 {
		eff.GracePeriod = DefaultGracePeriod
	}
	if eff.ReflowInterval < 0 {
		return fail("reflow_interval", fmt.Errorf("%s must not be negative", eff.ReflowInterval))
	}

	hk, err := hyprland.ParseHotkey(file.ExitHotkey)
	if err != nil {
		return fail("exit_hotkey", err)
	}
	eff.ExitHotkey = hk

	switch eff.Overlay.Backend {
	case "":
		eff.Overlay.Backend = DefaultOverlayBackend
	case OverlayBackendProcess, OverlayBackendSystemd:
	default:
		return fail("overlay.backend", fmt.Errorf("unknown backend %q (want %q or %q)",
			eff.Overlay.Backend, OverlayBackendProcess, OverlayBackendSystemd))
	}
	if eff.Overlay.Process == "" {
		eff.Overlay.Process = DefaultOverlayProcess
	}
	if eff.Overlay.Unit == "" {
		eff.Overlay.Unit = DefaultOverlayUnit
	}

	return eff, nil
}

func pick[T any](override *T, value T) T {
	if override != nil {
		return *override
	}
	return value
}
