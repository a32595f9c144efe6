// Package hyprland wraps the hyprctl control tool: JSON queries for monitors,
// clients and workspaces, window dispatchers, and keybind keywords.
package hyprland

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeout bounds a single hyprctl invocation.
const DefaultTimeout = 5 * time.Second

// Runner executes hyprctl with the given arguments and returns its stdout.
type Runner interface {
	Run(ctx context.Context, args ...string) ([]byte, error)
}

// ExecRunner runs the hyprctl binary.
type ExecRunner struct {
	Binary  string        // defaults to "hyprctl"
	Timeout time.Duration // defaults to DefaultTimeout
}

// Run executes hyprctl. Failures are returned as *CommandError.
func (r ExecRunner) Run(ctx context.Context, args ...string) ([]byte, error) {
	binary := r.Binary
	if binary == "" {
		binary = "hyprctl"
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		cmdErr := &CommandError{
			Args:     args,
			ExitCode: -1,
			Output:   strings.TrimSpace(stderr.String() + stdout.String()),
			Err:      err,
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			cmdErr.ExitCode = exitErr.ExitCode()
		}
		return nil, cmdErr
	}
	return stdout.Bytes(), nil
}

// Available reports whether a Hyprland instance is reachable from this
// environment.
func Available() bool {
	return os.Getenv("HYPRLAND_INSTANCE_SIGNATURE") != ""
}

// Client issues typed requests against hyprctl.
type Client struct {
	runner Runner
	logger *slog.Logger
}

// NewClient creates a Client. A nil runner uses ExecRunner{}.
func NewClient(runner Runner, logger *slog.Logger) *Client {
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{runner: runner, logger: logger}
}

func (c *Client) run(ctx context.Context, args ...string) ([]byte, error) {
	out, err := c.runner.Run(ctx, args...)
	c.logger.Debug("hyprctl", "args", args, "output", strings.TrimSpace(string(out)), "error", err)
	return out, err
}

func (c *Client) query(ctx context.Context, what string, v any) error {
	out, err := c.run(ctx, what, "-j")
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(out)) == 0 {
		return &CommandError{Args: []string{what, "-j"}, Err: ErrUnexpectedOutput}
	}
	if err := json.Unmarshal(out, v); err != nil {
		return &ParseError{Query: what, Err: err}
	}
	return nil
}

// Monitors returns the current monitor layout.
func (c *Client) Monitors(ctx context.Context) ([]Monitor, error) {
	var monitors []Monitor
	if err := c.query(ctx, "monitors", &monitors); err != nil {
		return nil, err
	}
	return monitors, nil
}

// Clients returns all mapped and unmapped client windows.
func (c *Client) Clients(ctx context.Context) ([]Window, error) {
	var windows []Window
	if err := c.query(ctx, "clients", &windows); err != nil {
		return nil, err
	}
	return windows, nil
}

// ActiveWorkspace returns the currently focused workspace.
func (c *Client) ActiveWorkspace(ctx context.Context) (Workspace, error) {
	var ws Workspace
	if err := c.query(ctx, "activeworkspace", &ws); err != nil {
		return Workspace{}, err
	}
	return ws, nil
}

// Dispatch runs `hyprctl dispatch <dispatcher> <arg>`. hyprctl reports
// dispatcher failures on stdout with a zero exit status, so anything other
// than "ok" is treated as a failure.
func (c *Client) Dispatch(ctx context.Context, dispatcher, arg string) error {
	args := []string{"dispatch", dispatcher}
	if arg != "" {
		args = append(args, arg)
	}
	return c.expectOK(ctx, args)
}

// Keyword runs `hyprctl keyword <key> <value>`.
func (c *Client) Keyword(ctx context.Context, key, value string) error {
	return c.expectOK(ctx, []string{"keyword", key, value})
}

func (c *Client) expectOK(ctx context.Context, args []string) error {
	out, err := c.run(ctx, args...)
	if err != nil {
		return err
	}
	if text := strings.TrimSpace(string(out)); text != "ok" {
		return &CommandError{Args: args, Output: text, Err: ErrUnexpectedOutput}
	}
	return nil
}

// PIDSelector returns the dispatcher selector matching a process ID.
func PIDSelector(pid int) string {
	return "pid:" + strconv.Itoa(pid)
}

// MoveExact moves the window to absolute layout coordinates.
func (c *Client) MoveExact(ctx context.Context, selector string, x, y int) error {
	return c.Dispatch(ctx, "movewindowpixel", "exact "+strconv.Itoa(x)+" "+strconv.Itoa(y)+","+selector)
}

// ResizeExact resizes the window to an absolute size.
func (c *Client) ResizeExact(ctx context.Context, selector string, w, h int) error {
	return c.Dispatch(ctx, "resizewindowpixel", "exact "+strconv.Itoa(w)+" "+strconv.Itoa(h)+","+selector)
}
