// Package main provides the CLI entrypoint for hyprfinity.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/hyprfinity/internal/config"
	"github.com/jmylchreest/hyprfinity/internal/geometry"
	"github.com/jmylchreest/hyprfinity/internal/session"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// Exit codes.
const (
	exitOK          = 0
	exitFailure     = 1
	exitConfig      = 2
	exitNoSession   = 3
	exitInterrupted = 130
)

var (
	globalOpts struct {
		verbose    bool
		configPath string
		debugLog   string
	}
	logger  *slog.Logger
	logFile *os.File
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "hyprfinity",
	Short: "Span a Gamescope session across every Hyprland monitor",
	Long: `hyprfinity runs Gamescope on Hyprland as one window covering the bounding
box of all connected monitors.

It reads the monitor layout from hyprctl, sizes Gamescope's output and
internal resolution to match, places the window over the whole span and
restores everything (status bar, keybinds, window state) when the session
ends.

Running hyprfinity without a subcommand is the same as gamescope-up.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogger()
	},
	Args: dashArgs,
	RunE: runUp,
}

// Execute runs the root command and exits with the code for its error.
func Execute() {
	err := rootCmd.Execute()
	if logFile != nil {
		_ = logFile.Close()
	}
	if err != nil {
		printError(err)
	}
	os.Exit(exitCode(err))
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.verbose, "verbose", "v", false,
		"Enable verbose logging and show Gamescope output")
	rootCmd.PersistentFlags().StringVar(&globalOpts.configPath, "config", "",
		"Path to config file (default: ~/.config/hyprfinity/config.toml)")
	rootCmd.PersistentFlags().StringVar(&globalOpts.debugLog, "debug-log", "",
		"Write debug logs to this file instead of stderr")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	addUpFlags(rootCmd)
}

// setupLogger configures the global slog logger.
func setupLogger() error {
	level := slog.LevelWarn
	if globalOpts.verbose {
		level = slog.LevelDebug
	}

	var out io.Writer = os.Stderr
	if globalOpts.debugLog != "" {
		f, err := os.OpenFile(globalOpts.debugLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return &usageError{err: fmt.Errorf("failed to open debug log: %w", err)}
		}
		logFile = f
		out = f
		level = slog.LevelDebug
	}

	// Log to stderr so stdout is clean for progress output
	logger = slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

// configPath returns the config file in use.
func configPath() string {
	if globalOpts.configPath != "" {
		return globalOpts.configPath
	}
	return config.ConfigPath()
}

// loadConfig loads the config file, falling back to defaults if it does
// not exist.
func loadConfig() (*config.Config, error) {
	return config.LoadConfig(configPath())
}

// dashArgs accepts positional arguments only after "--", so a mistyped
// subcommand is not passed to Gamescope.
func dashArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 && cmd.ArgsLenAtDash() != 0 {
		return &usageError{err: fmt.Errorf("unknown command %q for %q", args[0], cmd.CommandPath())}
	}
	return nil
}

// usageError marks bad command-line input.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }

func (e *usageError) Unwrap() error { return e.err }

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	var (
		cfgErr    *config.ConfigError
		sizingErr *geometry.SizingError
		usageErr  *usageError
	)
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, session.ErrInterrupted):
		return exitInterrupted
	case errors.Is(err, session.ErrNoActiveSession):
		return exitNoSession
	case errors.As(err, &cfgErr), errors.As(err, &sizingErr), errors.As(err, &usageErr):
		return exitConfig
	default:
		return exitFailure
	}
}

func printError(err error) {
	if errors.Is(err, session.ErrNoActiveSession) {
		fmt.Fprintln(os.Stderr, "hyprfinity: no active session")
		return
	}
	fmt.Fprintf(os.Stderr, "hyprfinity: error: %v\n", err)
}
