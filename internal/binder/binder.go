// Package binder finds the Gamescope window after launch and places it over
// the monitor span.
package binder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/jmylchreest/hyprfinity/internal/clock"
	"github.com/jmylchreest/hyprfinity/internal/geometry"
	"github.com/jmylchreest/hyprfinity/internal/hyprland"
)

// Defaults for Options fields left at zero.
const (
	DefaultPollInterval   = 100 * time.Millisecond
	DefaultStartupTimeout = 10 * time.Second
	DefaultRetryDelay     = 100 * time.Millisecond
	DefaultMatchClass     = "gamescope"

	// MaxAttempts is the number of tries for each placement command.
	MaxAttempts = 3
	// FitAttempts bounds the verify-and-correct loop after resizing.
	FitAttempts = 4
	// tolerance is the pixel slack accepted when verifying geometry.
	tolerance = 1
	// settleDelay is the pause before re-reading window geometry.
	settleDelay = 50 * time.Millisecond
)

// WorkspaceActive assigns the window to the workspace focused at bind time.
const WorkspaceActive = "active"

// State is the binder's lifecycle state.
type State int

const (
	StateIdle State = iota
	StatePolling
	StateBound
	StateFailed
	StateReleased
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateBound:
		return "bound"
	case StateFailed:
		return "failed"
	case StateReleased:
		return "released"
	default:
		return "unknown"
	}
}

// BindTimeoutError reports that no matching window appeared in time.
type BindTimeoutError struct {
	PID     int
	Class   string
	Timeout time.Duration
}

func (e *BindTimeoutError) Error() string {
	return fmt.Sprintf("no window for pid %d or class %q appeared within %s", e.PID, e.Class, e.Timeout)
}

// BindCommandError reports a placement command that kept failing.
type BindCommandError struct {
	Command  string
	Attempts int
	Err      error
}

func (e *BindCommandError) Error() string {
	return fmt.Sprintf("%s failed after %d attempt(s): %v", e.Command, e.Attempts, e.Err)
}

func (e *BindCommandError) Unwrap() error {
	return e.Err
}

// Compositor is the subset of the Hyprland client used for binding.
type Compositor interface {
	Clients(ctx context.Context) ([]hyprland.Window, error)
	ActiveWorkspace(ctx context.Context) (hyprland.Workspace, error)
	Dispatch(ctx context.Context, dispatcher, arg string) error
	MoveExact(ctx context.Context, selector string, x, y int) error
	ResizeExact(ctx context.Context, selector string, w, h int) error
}

// Options configures a Binder.
type Options struct {
	PollInterval   time.Duration
	StartupTimeout time.Duration
	RetryDelay     time.Duration
	MatchClass     string
	NoPin          bool
	// Workspace is "", "active" or a fixed workspace name or ID.
	Workspace string
	Clock     clock.Clock
	Logger    *slog.Logger
}

// Binder locates and places one session window.
type Binder struct {
	comp Compositor
	opts Options

	mu     sync.Mutex
	state  State
	window hyprland.Window
	span   geometry.Span
	size   geometry.Size
}

// New creates a Binder in StateIdle.
func New(comp Compositor, opts Options) *Binder {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.StartupTimeout <= 0 {
		opts.StartupTimeout = DefaultStartupTimeout
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.MatchClass == "" {
		opts.MatchClass = DefaultMatchClass
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Binder{comp: comp, opts: opts}
}

// State returns the current state.
func (b *Binder) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Window returns the bound window, valid in StateBound.
func (b *Binder) Window() hyprland.Window {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.window
}

func (b *Binder) setState(s State) {
	b.mu.Lock()
	prev := b.state
	b.state = s
	b.mu.Unlock()
	if prev != s {
		b.opts.Logger.Debug("binder state", "from", prev, "to", s)
	}
}

// Bind polls for the window of pid and places it to cover span at output
// size. It returns the bound window. Cancelling ctx stops polling.
func (b *Binder) Bind(ctx context.Context, pid int, span geometry.Span, output geometry.Size) (hyprland.Window, error) {
	b.setState(StatePolling)

	win, err := b.poll(ctx, pid)
	if err != nil {
		b.setState(StateFailed)
		return hyprland.Window{}, err
	}
	b.opts.Logger.Debug("found window", "address", win.Address, "pid", win.PID, "class", win.Class)

	win, err = b.place(ctx, win, span, output)
	if err != nil {
		b.setState(StateFailed)
		return hyprland.Window{}, err
	}

	b.mu.Lock()
	b.window = win
	b.span = span
	b.size = output
	b.mu.Unlock()
	b.setState(StateBound)
	return win, nil
}

func (b *Binder) poll(ctx context.Context, pid int) (hyprland.Window, error) {
	clk := b.opts.Clock
	deadline := clk.Now().Add(b.opts.StartupTimeout)

	for {
		windows, err := b.comp.Clients(ctx)
		switch {
		case err == nil:
			if win, ok := match(windows, pid, b.opts.MatchClass); ok {
				return win, nil
			}
		case ctx.Err() != nil:
			return hyprland.Window{}, ctx.Err()
		case hyprland.IsTransient(err):
			b.opts.Logger.Debug("window query failed, retrying", "error", err)
		default:
			return hyprland.Window{}, fmt.Errorf("window query: %w", err)
		}

		if !clk.Now().Before(deadline) {
			return hyprland.Window{}, &BindTimeoutError{PID: pid, Class: b.opts.MatchClass, Timeout: b.opts.StartupTimeout}
		}

		select {
		case <-ctx.Done():
			return hyprland.Window{}, ctx.Err()
		case <-clk.After(b.opts.PollInterval):
		}
	}
}

// match picks the largest window owned by pid, or failing that the largest
// window whose class matches.
func match(windows []hyprland.Window, pid int, class string) (hyprland.Window, bool) {
	var best hyprland.Window
	found := false
	for _, w := range windows {
		if w.PID == pid && (!found || w.Area() > best.Area()) {
			best, found = w, true
		}
	}
	if found || class == "" {
		return best, found
	}
	for _, w := range windows {
		if (strings.EqualFold(w.Class, class) || strings.EqualFold(w.InitialClass, class)) && (!found || w.Area() > best.Area()) {
			best, found = w, true
		}
	}
	return best, found
}

func (b *Binder) place(ctx context.Context, win hyprland.Window, span geometry.Span, output geometry.Size) (hyprland.Window, error) {
	sel := win.Selector()

	if !win.Floating {
		if err := b.retry(ctx, "setfloating", func() error {
			return b.comp.Dispatch(ctx, "setfloating", sel)
		}); err != nil {
			return win, err
		}
	}

	// Moving to another workspace can shift a floating window, so the
	// workspace is assigned before the window is positioned.
	if ws, err := b.workspaceTarget(ctx); err != nil {
		return win, err
	} else if ws != "" && ws != win.Workspace.Name && ws != strconv.Itoa(win.Workspace.ID) {
		if err := b.retry(ctx, "movetoworkspacesilent", func() error {
			return b.comp.Dispatch(ctx, "movetoworkspacesilent", ws+","+sel)
		}); err != nil {
			return win, err
		}
	}

	if err := b.retry(ctx, "movewindowpixel", func() error {
		return b.comp.MoveExact(ctx, sel, span.X, span.Y)
	}); err != nil {
		return win, err
	}
	if err := b.retry(ctx, "resizewindowpixel", func() error {
		return b.comp.ResizeExact(ctx, sel, output.Width, output.Height)
	}); err != nil {
		return win, err
	}

	win = b.fit(ctx, win, span, output)

	if !b.opts.NoPin && !win.Pinned {
		// pin toggles, so it is only sent when the window is not pinned.
		if err := b.retry(ctx, "pin", func() error {
			return b.comp.Dispatch(ctx, "pin", sel)
		}); err != nil {
			return win, err
		}
		win.Pinned = true
	}

	return win, nil
}

// fit re-reads the window geometry and corrects the requested size until it
// matches. Some clients add decorations or round sizes, so the request is
// adjusted by the observed error. A residual mismatch is only logged.
func (b *Binder) fit(ctx context.Context, win hyprland.Window, span geometry.Span, output geometry.Size) hyprland.Window {
	sel := win.Selector()
	reqW, reqH := output.Width, output.Height

	for attempt := 1; attempt <= FitAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return win
		case <-b.opts.Clock.After(settleDelay):
		}

		cur, ok := b.lookup(ctx, win.Address)
		if !ok {
			return win
		}
		win = cur

		posOK := within(cur.At[0], span.X) && within(cur.At[1], span.Y)
		sizeOK := within(cur.Size[0], output.Width) && within(cur.Size[1], output.Height)
		if posOK && sizeOK {
			return win
		}

		if !sizeOK {
			reqW = max(reqW+output.Width-cur.Size[0], geometry.MinDimension)
			reqH = max(reqH+output.Height-cur.Size[1], geometry.MinDimension)
			if err := b.comp.ResizeExact(ctx, sel, reqW, reqH); err != nil {
				b.opts.Logger.Debug("resize correction failed", "attempt", attempt, "error", err)
			}
		}
		if !posOK {
			if err := b.comp.MoveExact(ctx, sel, span.X, span.Y); err != nil {
				b.opts.Logger.Debug("move correction failed", "attempt", attempt, "error", err)
			}
		}
	}

	if cur, ok := b.lookup(ctx, win.Address); ok {
		win = cur
	}
	if !within(win.Size[0], output.Width) || !within(win.Size[1], output.Height) ||
		!within(win.At[0], span.X) || !within(win.At[1], span.Y) {
		b.opts.Logger.Warn("window geometry does not match span",
			"want_pos", fmt.Sprintf("%d,%d", span.X, span.Y),
			"got_pos", fmt.Sprintf("%d,%d", win.At[0], win.At[1]),
			"want_size", output.String(),
			"got_size", fmt.Sprintf("%dx%d", win.Size[0], win.Size[1]))
	}
	return win
}

func (b *Binder) lookup(ctx context.Context, address string) (hyprland.Window, bool) {
	if address == "" {
		return hyprland.Window{}, false
	}
	windows, err := b.comp.Clients(ctx)
	if err != nil {
		b.opts.Logger.Debug("window query failed", "error", err)
		return hyprland.Window{}, false
	}
	for _, w := range windows {
		if w.Address == address {
			return w, true
		}
	}
	return hyprland.Window{}, false
}

func (b *Binder) workspaceTarget(ctx context.Context) (string, error) {
	ws := strings.TrimSpace(b.opts.Workspace)
	if ws != WorkspaceActive {
		return ws, nil
	}

	var active hyprland.Workspace
	err := b.retry(ctx, "activeworkspace", func() error {
		var err error
		active, err = b.comp.ActiveWorkspace(ctx)
		return err
	})
	if err != nil {
		return "", err
	}
	if active.ID > 0 {
		return strconv.Itoa(active.ID), nil
	}
	return "name:" + active.Name, nil
}

// retry runs op up to MaxAttempts times, waiting RetryDelay on the
// binder's clock between tries. Errors that are not transient stop the loop
// at once.
func (b *Binder) retry(ctx context.Context, command string, op func() error) error {
	attempts := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		if attempts > 0 {
			select {
			case <-ctx.Done():
				return struct{}{}, backoff.Permanent(ctx.Err())
			case <-b.opts.Clock.After(b.opts.RetryDelay):
			}
		}
		attempts++
		err := op()
		if err != nil && !hyprland.IsTransient(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		// The delay is taken on the clock above so tests control it.
		backoff.WithBackOff(&backoff.ZeroBackOff{}),
		backoff.WithMaxTries(MaxAttempts),
		backoff.WithNotify(func(err error, _ time.Duration) {
			b.opts.Logger.Debug("placement command failed, retrying", "command", command, "error", err, "next", b.opts.RetryDelay)
		}),
	)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &BindCommandError{Command: command, Attempts: attempts, Err: err}
}

// Reapply moves and resizes a bound window back over the span. Games can
// resize their window after start; this is called periodically while the
// session runs. It is a no-op unless the binder is bound.
func (b *Binder) Reapply(ctx context.Context) error {
	b.mu.Lock()
	state, win, span, size := b.state, b.window, b.span, b.size
	b.mu.Unlock()
	if state != StateBound {
		return nil
	}

	cur, ok := b.lookup(ctx, win.Address)
	if !ok {
		return fmt.Errorf("window %s is gone", win.Address)
	}
	sel := cur.Selector()

	if !within(cur.At[0], span.X) || !within(cur.At[1], span.Y) {
		b.opts.Logger.Debug("reflow: moving window", "x", cur.At[0], "y", cur.At[1])
		if err := b.comp.MoveExact(ctx, sel, span.X, span.Y); err != nil {
			return err
		}
	}
	if !within(cur.Size[0], size.Width) || !within(cur.Size[1], size.Height) {
		b.opts.Logger.Debug("reflow: resizing window", "width", cur.Size[0], "height", cur.Size[1])
		if err := b.comp.ResizeExact(ctx, sel, size.Width, size.Height); err != nil {
			return err
		}
	}
	return nil
}

// Release marks the binding as finished.
func (b *Binder) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateBound || b.state == StatePolling || b.state == StateIdle {
		b.opts.Logger.Debug("binder state", "from", b.state, "to", StateReleased)
		b.state = StateReleased
	}
}

func within(got, want int) bool {
	d := got - want
	return d >= -tolerance && d <= tolerance
}
