package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/hyprfinity/internal/autotune"
	"github.com/jmylchreest/hyprfinity/internal/binder"
	"github.com/jmylchreest/hyprfinity/internal/clock"
	"github.com/jmylchreest/hyprfinity/internal/config"
	"github.com/jmylchreest/hyprfinity/internal/geometry"
	"github.com/jmylchreest/hyprfinity/internal/hyprland"
	"github.com/jmylchreest/hyprfinity/internal/launcher"
	"github.com/jmylchreest/hyprfinity/internal/overlay"
	"github.com/jmylchreest/hyprfinity/internal/picker"
	"github.com/jmylchreest/hyprfinity/internal/session"
)

var upOpts struct {
	pick               bool
	pickSize           bool
	noPin              bool
	hideWaybar         bool
	renderScale        float64
	virtualWidth       int
	virtualHeight      int
	startupTimeoutSecs int
	workspace          string
}

var upCmd = &cobra.Command{
	Use:   "gamescope-up [flags] [-- <gamescope args> [-- <command...>]]",
	Short: "Start a spanned Gamescope session",
	Long: `Start Gamescope sized to the bounding box of all monitors and place its
window over the whole span.

Arguments after the first "--" replace gamescope_args from the config file.
A second "--" separates the command Gamescope runs; without one,
default_command is used, and without that the application picker opens.

The session runs until Gamescope exits, Ctrl+C is pressed, the exit hotkey
is used or gamescope-down is run.

Examples:
  # Use the config file for everything
  hyprfinity gamescope-up

  # Render at 75% and pick the game from installed applications
  hyprfinity gamescope-up --render-scale 0.75 --pick

  # Explicit Gamescope arguments and command
  hyprfinity gamescope-up -- -r 144 --adaptive-sync -- steam -gamepadui`,
	Args: dashArgs,
	RunE: runUp,
}

func init() {
	rootCmd.AddCommand(upCmd)
	addUpFlags(upCmd)
}

// addUpFlags registers the session flags on cmd. The root command carries
// them too so that a bare invocation behaves like gamescope-up.
func addUpFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&upOpts.pick, "pick", false,
		"Choose the command from installed desktop applications")
	cmd.Flags().BoolVar(&upOpts.pickSize, "pick-size", false,
		"Choose the internal render size from presets")
	cmd.Flags().BoolVar(&upOpts.noPin, "no-pin", false,
		"Do not pin the window to all workspaces")
	cmd.Flags().BoolVar(&upOpts.hideWaybar, "hide-waybar", false,
		"Hide the status bar for the session")
	cmd.Flags().Float64Var(&upOpts.renderScale, "render-scale", config.RenderScaleAuto,
		"Internal render scale in (0, 1] (default auto-tuned to the hardware)")
	cmd.Flags().IntVar(&upOpts.virtualWidth, "virtual-width", 0,
		"Internal render width (0 = derive)")
	cmd.Flags().IntVar(&upOpts.virtualHeight, "virtual-height", 0,
		"Internal render height (0 = derive)")
	cmd.Flags().IntVar(&upOpts.startupTimeoutSecs, "startup-timeout-secs", config.DefaultStartupTimeoutSecs,
		"Seconds to wait for the Gamescope window")
	cmd.Flags().StringVar(&upOpts.workspace, "workspace", "",
		`Move the window to this workspace ("active" for the focused one)`)
}

// upOverrides collects the flags the user actually set.
func upOverrides(cmd *cobra.Command, args []string) config.Overrides {
	o := config.Overrides{Verbose: globalOpts.verbose}
	if len(args) > 0 {
		o.Args = args
	}

	fs := cmd.Flags()
	if fs.Changed("pick") {
		o.Pick = &upOpts.pick
	}
	if fs.Changed("pick-size") {
		o.PickSize = &upOpts.pickSize
	}
	if fs.Changed("no-pin") {
		o.NoPin = &upOpts.noPin
	}
	if fs.Changed("hide-waybar") {
		o.HideWaybar = &upOpts.hideWaybar
	}
	if fs.Changed("render-scale") {
		o.RenderScale = &upOpts.renderScale
	}
	if fs.Changed("virtual-width") {
		o.VirtualWidth = &upOpts.virtualWidth
	}
	if fs.Changed("virtual-height") {
		o.VirtualHeight = &upOpts.virtualHeight
	}
	if fs.Changed("startup-timeout-secs") {
		o.StartupTimeoutSecs = &upOpts.startupTimeoutSecs
	}
	if fs.Changed("workspace") {
		o.Workspace = &upOpts.workspace
	}
	return o
}

func runUp(cmd *cobra.Command, args []string) error {
	file, err := loadConfig()
	if err != nil {
		return err
	}
	eff, err := config.Resolve(file, configPath(), upOverrides(cmd, args))
	if err != nil {
		return err
	}

	if !hyprland.Available() {
		return errors.New("HYPRLAND_INSTANCE_SIGNATURE is not set; is Hyprland running?")
	}

	// Held for the whole run so a second Ctrl+C during teardown is absorbed.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hypr := hyprland.NewClient(nil, logger)
	clk := clock.Real()

	ctrl := session.New(eff, session.Deps{
		Geometry: geometry.NewResolver(hypr, logger),
		Launch: session.FromLauncher(launcher.New(launcher.Options{
			Binary:  eff.GamescopeBinary,
			Verbose: eff.Verbose,
			Logger:  logger,
		})),
		Binder: binder.New(hypr, binder.Options{
			PollInterval:   eff.PollInterval,
			StartupTimeout: eff.StartupTimeout,
			MatchClass:     eff.MatchClass,
			NoPin:          eff.NoPin,
			Workspace:      eff.Workspace,
			Clock:          clk,
			Logger:         logger,
		}),
		Overlay: overlay.New(overlay.Options{
			Enabled: eff.HideWaybar,
			Backend: eff.Overlay.Backend,
			Process: eff.Overlay.Process,
			Unit:    eff.Overlay.Unit,
			Logger:  logger,
		}),
		Hotkeys:     hypr,
		Records:     session.NewRecordStore(""),
		AutoTune:    autotune.Detector{Logger: logger}.Tune,
		Clock:       clk,
		PickCommand: pickCommand,
		PickSize:    pickSize,
		DownCommand: downCommand(),
		Logger:      logger,
	})

	runErr := ctrl.Run(ctx)

	teardownErrs := ctrl.TeardownErrors()
	if len(teardownErrs) > 0 {
		if globalOpts.verbose {
			for _, err := range teardownErrs {
				fmt.Fprintf(os.Stderr, "hyprfinity: %v\n", err)
			}
		} else {
			fmt.Fprintf(os.Stderr, "hyprfinity: %d cleanup step(s) failed; rerun with --verbose for details\n", len(teardownErrs))
		}
	}
	return runErr
}

func pickCommand(ctx context.Context) ([]string, error) {
	command, err := picker.PickApp(ctx, picker.Chooser{}, nil)
	if errors.Is(err, picker.ErrCanceled) {
		return nil, session.ErrPickCanceled
	}
	return command, err
}

func pickSize(ctx context.Context, presets []geometry.Preset) (geometry.Size, bool, error) {
	return picker.PickSize(ctx, picker.Chooser{}, presets)
}

// downCommand is the shell command bound to the exit hotkey.
func downCommand() string {
	exe, err := os.Executable()
	if err != nil {
		exe = "hyprfinity"
	}
	return shellQuote(exe) + " " + downCmd.Name()
}

// shellQuote quotes s for sh if it contains anything but safe characters.
func shellQuote(s string) string {
	if s != "" && strings.IndexFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("/._-+=:,@", r))
	}) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
