package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/hyprfinity/internal/autotune"
	"github.com/jmylchreest/hyprfinity/internal/config"
	"github.com/jmylchreest/hyprfinity/internal/geometry"
	"github.com/jmylchreest/hyprfinity/internal/hyprland"
)

var configShowOpts struct {
	format string
}

var configInitOpts struct {
	force bool
}

var configShowCmd = &cobra.Command{
	Use:   "config-show [flags] [-- <gamescope args> [-- <command...>]]",
	Short: "Print the configuration in effect",
	Long: `Print the settings gamescope-up would use: the config file merged with
built-in defaults and any gamescope-up flags or arguments given here,
followed by the raw config file values.

Formats: table (default), toml, yaml, json. The toml format prints only
the config file values.

Examples:
  # What would "hyprfinity gamescope-up --render-scale 0.6 -- -r 120" run?
  hyprfinity config-show --render-scale 0.6 -- -r 120`,
	Args: dashArgs,
	RunE: runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "config-init",
	Short: "Write a config file with default values",
	Long: `Write the default configuration to the config file path
(~/.config/hyprfinity/config.toml unless --config is given).

When Hyprland is running, render_scale is tuned to the monitor span and
the detected hardware, and the reasoning is written as a comment at the
top of the file.

An existing file is left alone unless --force is set.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

func init() {
	rootCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configInitCmd)

	configShowCmd.Flags().StringVarP(&configShowOpts.format, "format", "f", "table",
		"Output format (table, toml, yaml, json)")
	addUpFlags(configShowCmd)
	configInitCmd.Flags().BoolVar(&configInitOpts.force, "force", false,
		"Overwrite an existing config file")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	return showConfig(os.Stdout, cmd, args, configShowOpts.format)
}

// showConfig resolves the config file against the gamescope-up flags set
// on cmd and writes both in format.
func showConfig(w io.Writer, cmd *cobra.Command, args []string, format string) error {
	file, err := loadConfig()
	if err != nil {
		return err
	}
	eff, err := config.Resolve(file, configPath(), upOverrides(cmd, args))
	if err != nil {
		return err
	}
	return writeConfig(w, file, eff, format, configPath())
}

// effectiveView is the serialized form of config.Effective.
type effectiveView struct {
	GamescopeBinary    string               `json:"gamescope_binary" yaml:"gamescope_binary"`
	Args               []string             `json:"args" yaml:"args"`
	NoPin              bool                 `json:"no_pin" yaml:"no_pin"`
	Pick               bool                 `json:"pick" yaml:"pick"`
	PickSize           bool                 `json:"pick_size" yaml:"pick_size"`
	HideWaybar         bool                 `json:"hide_waybar" yaml:"hide_waybar"`
	RenderScale        float64              `json:"render_scale" yaml:"render_scale"` // 0 = auto-tune
	VirtualWidth       int                  `json:"virtual_width" yaml:"virtual_width"`
	VirtualHeight      int                  `json:"virtual_height" yaml:"virtual_height"`
	OutputWidth        int                  `json:"output_width" yaml:"output_width"`
	OutputHeight       int                  `json:"output_height" yaml:"output_height"`
	StartupTimeoutSecs int                  `json:"startup_timeout_secs" yaml:"startup_timeout_secs"`
	PollInterval       string               `json:"poll_interval" yaml:"poll_interval"`
	GracePeriod        string               `json:"grace_period" yaml:"grace_period"`
	ReflowInterval     string               `json:"reflow_interval" yaml:"reflow_interval"`
	Workspace          string               `json:"workspace" yaml:"workspace"`
	MatchClass         string               `json:"match_class" yaml:"match_class"`
	ExitHotkey         string               `json:"exit_hotkey" yaml:"exit_hotkey"`
	Overlay            config.OverlayConfig `json:"overlay" yaml:"overlay"`
}

func newEffectiveView(eff *config.Effective) effectiveView {
	v := effectiveView{
		GamescopeBinary:    eff.GamescopeBinary,
		Args:               eff.Args,
		NoPin:              eff.NoPin,
		Pick:               eff.Pick,
		PickSize:           eff.PickSize,
		HideWaybar:         eff.HideWaybar,
		RenderScale:        eff.Sizing.RenderScale,
		VirtualWidth:       eff.Sizing.VirtualWidth,
		VirtualHeight:      eff.Sizing.VirtualHeight,
		OutputWidth:        eff.Sizing.OutputWidth,
		OutputHeight:       eff.Sizing.OutputHeight,
		StartupTimeoutSecs: int(eff.StartupTimeout / time.Second),
		PollInterval:       eff.PollInterval.String(),
		GracePeriod:        eff.GracePeriod.String(),
		ReflowInterval:     eff.ReflowInterval.String(),
		Workspace:          eff.Workspace,
		MatchClass:         eff.MatchClass,
		Overlay:            eff.Overlay,
	}
	if !eff.ExitHotkey.IsZero() {
		v.ExitHotkey = eff.ExitHotkey.String()
	}
	return v
}

type configView struct {
	Path      string         `json:"path" yaml:"path"`
	Effective effectiveView  `json:"effective" yaml:"effective"`
	Config    *config.Config `json:"config" yaml:"config"`
}

func writeConfig(w io.Writer, cfg *config.Config, eff *config.Effective, format, path string) error {
	view := configView{Path: path, Effective: newEffectiveView(eff), Config: cfg}

	switch strings.ToLower(format) {
	case "table", "":
		fmt.Fprintf(w, "Config path: %s\n\n", path)
		fmt.Fprintln(w, headerStyle.Render("Effective settings"))
		fmt.Fprintln(w, kvTable(effectiveRows(view.Effective)))
		fmt.Fprintln(w)
		fmt.Fprintln(w, headerStyle.Render("Config file"))
		fmt.Fprintln(w, kvTable(configRows(cfg)))
		return nil
	case "toml":
		data, err := toml.Marshal(cfg)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(view); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	default:
		return &usageError{err: fmt.Errorf("unknown format %q (use table, toml, yaml or json)", format)}
	}
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

func kvTable(rows [][]string) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("KEY", "VALUE").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Rows(rows...).
		Render()
}

// quotedList renders v as a bracketed list of quoted strings.
func quotedList(v []string) string {
	quoted := make([]string, len(v))
	for i, s := range v {
		quoted[i] = strconv.Quote(s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func renderScale(v float64) string {
	if v == config.RenderScaleAuto {
		return "auto"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func dimension(v int) string {
	if v == 0 {
		return "auto"
	}
	return strconv.Itoa(v)
}

func text(v string) string {
	if v == "" {
		return "-"
	}
	return v
}

func effectiveRows(v effectiveView) [][]string {
	return [][]string{
		{"gamescope_binary", v.GamescopeBinary},
		{"args", quotedList(v.Args)},
		{"no_pin", strconv.FormatBool(v.NoPin)},
		{"pick", strconv.FormatBool(v.Pick)},
		{"pick_size", strconv.FormatBool(v.PickSize)},
		{"hide_waybar", strconv.FormatBool(v.HideWaybar)},
		{"render_scale", renderScale(v.RenderScale)},
		{"virtual_width", dimension(v.VirtualWidth)},
		{"virtual_height", dimension(v.VirtualHeight)},
		{"output_width", dimension(v.OutputWidth)},
		{"output_height", dimension(v.OutputHeight)},
		{"startup_timeout_secs", strconv.Itoa(v.StartupTimeoutSecs)},
		{"poll_interval", v.PollInterval},
		{"grace_period", v.GracePeriod},
		{"reflow_interval", v.ReflowInterval},
		{"workspace", text(v.Workspace)},
		{"match_class", v.MatchClass},
		{"exit_hotkey", text(v.ExitHotkey)},
		{"overlay.backend", v.Overlay.Backend},
		{"overlay.process", v.Overlay.Process},
		{"overlay.unit", v.Overlay.Unit},
	}
}

func configRows(cfg *config.Config) [][]string {
	list := func(v []string) string {
		if len(v) == 0 {
			return "-"
		}
		return quotedList(v)
	}

	return [][]string{
		{"gamescope_binary", cfg.GamescopeBinary},
		{"gamescope_args", list(cfg.GamescopeArgs)},
		{"default_command", list(cfg.DefaultCommand)},
		{"no_pin", strconv.FormatBool(cfg.NoPin)},
		{"pick", strconv.FormatBool(cfg.Pick)},
		{"pick_size", strconv.FormatBool(cfg.PickSize)},
		{"hide_waybar", strconv.FormatBool(cfg.HideWaybar)},
		{"render_scale", renderScale(cfg.RenderScale)},
		{"virtual_width", dimension(cfg.VirtualWidth)},
		{"virtual_height", dimension(cfg.VirtualHeight)},
		{"output_width", dimension(cfg.OutputWidth)},
		{"output_height", dimension(cfg.OutputHeight)},
		{"startup_timeout_secs", strconv.Itoa(cfg.StartupTimeoutSecs)},
		{"poll_interval", cfg.PollInterval.Duration().String()},
		{"grace_period", cfg.GracePeriod.Duration().String()},
		{"reflow_interval", cfg.ReflowInterval.Duration().String()},
		{"workspace", text(cfg.Workspace)},
		{"match_class", cfg.MatchClass},
		{"exit_hotkey", text(cfg.ExitHotkey)},
		{"overlay.backend", cfg.Overlay.Backend},
		{"overlay.process", cfg.Overlay.Process},
		{"overlay.unit", cfg.Overlay.Unit},
	}
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configPath()
	if _, err := os.Stat(path); err == nil && !configInitOpts.force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	cfg := config.DefaultConfig()
	var comment string
	if profile, ok := tuneRenderScale(cmd.Context()); ok {
		cfg.RenderScale = profile.RenderScale
		comment = "render_scale " + profile.Reason
	}

	if err := cfg.SaveWithComment(path, comment); err != nil {
		return err
	}
	fmt.Printf("Wrote default config to %s\n", path)
	if comment != "" {
		fmt.Printf("render_scale = %.2f (%s)\n", cfg.RenderScale, comment)
	}
	return nil
}

// tuneRenderScale computes a render scale for the current monitor span. It
// reports false when Hyprland cannot be asked for the layout, leaving
// render_scale on auto.
func tuneRenderScale(ctx context.Context) (autotune.Profile, bool) {
	if !hyprland.Available() {
		logger.Debug("hyprland not running; render_scale left on auto")
		return autotune.Profile{}, false
	}
	resolver := geometry.NewResolver(hyprland.NewClient(nil, logger), logger)
	span, _, err := resolver.ResolveSpan(ctx)
	if err != nil {
		logger.Warn("failed to read monitor layout; render_scale left on auto", "error", err)
		return autotune.Profile{}, false
	}
	return autotune.Detector{Logger: logger}.Tune(ctx, span), true
}
