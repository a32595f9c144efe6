package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/hyprfinity/internal/session"
)

var statusOpts struct {
	json bool
}

var statusCmd = &cobra.Command{
	Use:   "gamescope-status",
	Short: "Show the running Gamescope session",
	Long: `Show the session recorded by gamescope-up: process IDs, window, span,
render sizes and uptime.

Exits with status 3 if there is no active session.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVar(&statusOpts.json, "json", false,
		"Output as JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	st, err := session.GetStatus(session.NewRecordStore(""), nil, time.Now())
	if err != nil {
		return err
	}

	if statusOpts.json {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}
	printStatus(os.Stdout, st)
	return nil
}

var labelStyle = lipgloss.NewStyle().Bold(true).Width(12)

func printStatus(w io.Writer, st *session.Status) {
	rec := st.Record
	row := func(label, value string) {
		fmt.Fprintln(w, labelStyle.Render(label)+value)
	}

	row("Session", rec.ID)
	row("Gamescope", fmt.Sprintf("PID %d (%s)", rec.ChildPID, aliveText(st.ChildAlive)))
	row("Controller", fmt.Sprintf("PID %d (%s)", rec.ControllerPID, aliveText(st.ControllerAlive)))
	if rec.Window != "" {
		row("Window", rec.Window)
	}
	row("Span", rec.Span.String())
	row("Render", rec.Target.String())
	if !rec.Overlay.IsZero() {
		row("Status bar", fmt.Sprintf("%s hidden via %s", rec.Overlay.Target, rec.Overlay.Backend))
	}
	if !rec.ExitHotkey.IsZero() {
		row("Exit hotkey", rec.ExitHotkey.String())
	}
	if !rec.StartedAt.IsZero() {
		row("Started", humanize.Time(rec.StartedAt))
	}
}

func aliveText(alive bool) string {
	if alive {
		return "running"
	}
	return "gone"
}
