package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/hyprfinity/internal/config"
	"github.com/jmylchreest/hyprfinity/internal/hyprland"
	"github.com/jmylchreest/hyprfinity/internal/session"
)

var downCmd = &cobra.Command{
	Use:   "gamescope-down",
	Short: "Stop the running Gamescope session",
	Long: `Stop the session started by gamescope-up.

If the hyprfinity process that started the session is still running it is
asked to tear the session down. Otherwise Gamescope is terminated and the
status bar and exit hotkey recorded for the session are restored directly.

Exits with status 3 if there is no active session.`,
	Args: cobra.NoArgs,
	RunE: runDown,
}

func init() {
	rootCmd.AddCommand(downCmd)
}

func runDown(cmd *cobra.Command, args []string) error {
	grace := config.DefaultGracePeriod
	if file, err := loadConfig(); err != nil {
		logger.Warn("failed to load config, using default grace period", "error", err)
	} else {
		grace = file.GracePeriod.Duration()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := session.DownOptions{
		Records: session.NewRecordStore(""),
		Grace:   grace,
		Logger:  logger,
	}
	if hyprland.Available() {
		opts.Hotkeys = hyprland.NewClient(nil, logger)
	}
	return session.Down(ctx, opts)
}
