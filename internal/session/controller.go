// Package session runs a Gamescope span session from launch to teardown and
// handles requests to stop a session started by another process.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/jmylchreest/hyprfinity/internal/autotune"
	"github.com/jmylchreest/hyprfinity/internal/clock"
	"github.com/jmylchreest/hyprfinity/internal/config"
	"github.com/jmylchreest/hyprfinity/internal/geometry"
	"github.com/jmylchreest/hyprfinity/internal/hyprland"
	"github.com/jmylchreest/hyprfinity/internal/launcher"
	"github.com/jmylchreest/hyprfinity/internal/overlay"
)

// teardownTimeout bounds the compositor and bus calls made during teardown,
// on top of the grace period given to Gamescope.
const teardownTimeout = 10 * time.Second

// State is the controller's lifecycle state.
type State int

const (
	StateNotStarted State = iota
	StateResolving
	StateLaunching
	StateBinding
	StateRunning
	StateTearingDown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateResolving:
		return "resolving"
	case StateLaunching:
		return "launching"
	case StateBinding:
		return "binding"
	case StateRunning:
		return "running"
	case StateTearingDown:
		return "tearing-down"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// SpanResolver discovers the monitor span.
type SpanResolver interface {
	ResolveSpan(ctx context.Context) (geometry.Span, []geometry.MonitorInfo, error)
}

// Child is a launched Gamescope process.
type Child interface {
	PID() int
	Name() string
	Args() []string
	Done() <-chan struct{}
	Err() error
	BindWindow(address string) bool
	Terminate(grace time.Duration) error
}

// LaunchFunc starts Gamescope.
type LaunchFunc func(command, args []string, target geometry.RenderTarget) (Child, error)

// FromLauncher adapts a launcher.Launcher to a LaunchFunc.
func FromLauncher(l *launcher.Launcher) LaunchFunc {
	return func(command, args []string, target geometry.RenderTarget) (Child, error) {
		s, err := l.Launch(command, args, target)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// WindowBinder places the Gamescope window.
type WindowBinder interface {
	Bind(ctx context.Context, pid int, span geometry.Span, output geometry.Size) (hyprland.Window, error)
	Reapply(ctx context.Context) error
	Release()
}

// Hotkeys registers and removes compositor keybindings.
type Hotkeys interface {
	BindExists(ctx context.Context, hk hyprland.Hotkey) (bool, error)
	BindExec(ctx context.Context, hk hyprland.Hotkey, command string) error
	Unbind(ctx context.Context, hk hyprland.Hotkey) error
}

// CommandPicker asks the user for the command Gamescope should run. It
// returns ErrPickCanceled if nothing was chosen.
type CommandPicker func(ctx context.Context) ([]string, error)

// SizePicker asks the user for an internal render size. ok is false when
// the picker was dismissed.
type SizePicker func(ctx context.Context, presets []geometry.Preset) (size geometry.Size, ok bool, err error)

// AutoTuner picks a render scale for span when the configuration leaves it
// unset.
type AutoTuner func(ctx context.Context, span geometry.Span) autotune.Profile

// Deps are the collaborators of a Controller.
type Deps struct {
	Geometry SpanResolver
	Launch   LaunchFunc
	Binder   WindowBinder
	Overlay  overlay.Suppressor
	Hotkeys  Hotkeys // nil disables the exit hotkey
	Records  *RecordStore
	Clock    clock.Clock
	// Alive checks the processes of an existing record. Defaults to
	// ProcessAlive.
	Alive Liveness
	// AutoTune picks the render scale when none is configured. Nil renders
	// at output size.
	AutoTune AutoTuner

	PickCommand CommandPicker
	PickSize    SizePicker

	// DownCommand is run by the exit hotkey.
	DownCommand string

	// Out receives progress messages. Defaults to os.Stdout.
	Out    io.Writer
	Logger *slog.Logger
}

// Controller drives one session through its states.
type Controller struct {
	cfg  *config.Effective
	deps Deps

	mu    sync.Mutex
	state State

	stop     chan struct{}
	stopOnce sync.Once

	teardownErrs []error
}

// New creates a Controller for cfg.
func New(cfg *config.Effective, deps Deps) *Controller {
	if deps.Overlay == nil {
		deps.Overlay = overlay.Noop{}
	}
	if deps.Records == nil {
		deps.Records = NewRecordStore("")
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Alive == nil {
		deps.Alive = ProcessAlive
	}
	if deps.Out == nil {
		deps.Out = os.Stdout
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Controller{cfg: cfg, deps: deps, stop: make(chan struct{})}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	prev := c.state
	c.state = s
	c.mu.Unlock()
	c.deps.Logger.Debug("session state", "from", prev, "to", s)
}

// Stop requests teardown. It is safe to call from any goroutine and more
// than once.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// TeardownErrors returns the cleanup failures of the last Run.
func (c *Controller) TeardownErrors() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]error(nil), c.teardownErrs...)
}

func (c *Controller) printf(format string, args ...any) {
	fmt.Fprintf(c.deps.Out, "hyprfinity: "+format+"\n", args...)
}

// active tracks the side effects that teardown must undo.
type active struct {
	overlay    overlay.State
	child      Child
	hotkey     hyprland.Hotkey
	recordSave bool
}

// Run executes the session until it is stopped, interrupted or Gamescope
// exits. A stop or interrupt while running returns nil.
func (c *Controller) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateNotStarted {
		c.mu.Unlock()
		return errors.New("session controller already used")
	}
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	select {
	case <-c.stop:
		cancel()
	default:
	}
	go func() {
		select {
		case <-c.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	var act active
	err := c.run(ctx, &act)

	c.setState(StateTearingDown)
	c.teardown(ctx, &act)
	c.setState(StateStopped)
	return err
}

func (c *Controller) run(ctx context.Context, act *active) error {
	c.setState(StateResolving)
	cfg, span, target, err := c.resolve(ctx)
	if err != nil {
		return c.interrupted(ctx, err)
	}
	command, args := c.commandLine(cfg)

	c.setState(StateLaunching)
	st, err := c.deps.Overlay.Suppress(ctx)
	act.overlay = st
	if err != nil {
		c.deps.Logger.Warn("failed to hide status bar", "error", err)
	} else if st.Changed() {
		c.printf("Hid %s for the session.", st.Target)
	}
	if ctx.Err() != nil {
		return ErrInterrupted
	}

	child, err := c.deps.Launch(command, args, target)
	if err != nil {
		return err
	}
	act.child = child
	c.printf("%s started with PID %d.", child.Name(), child.PID())

	c.setState(StateBinding)
	bindCtx, cancelBind := context.WithCancel(ctx)
	go func() {
		select {
		case <-child.Done():
			cancelBind()
		case <-bindCtx.Done():
		}
	}()
	win, err := c.deps.Binder.Bind(bindCtx, child.PID(), span, target.Output)
	cancelBind()
	if err != nil {
		select {
		case <-child.Done():
			return c.exited(child)
		default:
		}
		return c.interrupted(ctx, err)
	}
	child.BindWindow(win.Address)
	c.printf("Placed window %s over %s.", win.Address, span)

	c.setState(StateRunning)
	act.hotkey = c.registerHotkey(ctx)
	c.saveRecord(act, child, win, span, target)
	c.printf("Gamescope is running. Press Ctrl+C or run `hyprfinity gamescope-down` to stop.")

	return c.wait(ctx, child)
}

// wait is the single point where the running session ends: a stop
// request, a signal, or Gamescope exiting. The reflow tick re-places the
// window in between.
func (c *Controller) wait(ctx context.Context, child Child) error {
	for {
		var tick <-chan time.Time
		if c.cfg.ReflowInterval > 0 {
			tick = c.deps.Clock.After(c.cfg.ReflowInterval)
		}

		select {
		case <-c.stop:
			c.printf("Stop requested, tearing down.")
			return nil
		case <-ctx.Done():
			c.printf("Interrupted, tearing down.")
			return nil
		case <-child.Done():
			return c.exited(child)
		case <-tick:
			if err := c.deps.Binder.Reapply(ctx); err != nil {
				c.deps.Logger.Debug("reflow failed", "error", err)
			}
		}
	}
}

func (c *Controller) exited(child Child) error {
	if err := child.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrSessionExited, err)
	}
	return ErrSessionExited
}

// interrupted replaces err with ErrInterrupted when ctx was cancelled.
func (c *Controller) interrupted(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ErrInterrupted
	}
	return err
}

func (c *Controller) resolve(ctx context.Context) (*config.Effective, geometry.Span, geometry.RenderTarget, error) {
	cfg := c.cfg

	if err := c.checkExisting(ctx); err != nil {
		return nil, geometry.Span{}, geometry.RenderTarget{}, err
	}

	if cfg.Pick || len(cfg.Command()) == 0 {
		if c.deps.PickCommand == nil {
			return nil, geometry.Span{}, geometry.RenderTarget{}, ErrNoCommand
		}
		command, err := c.deps.PickCommand(ctx)
		if err != nil {
			return nil, geometry.Span{}, geometry.RenderTarget{}, err
		}
		if len(command) == 0 {
			return nil, geometry.Span{}, geometry.RenderTarget{}, ErrNoCommand
		}
		cfg = cfg.WithCommand(command)
	}

	span, monitors, err := c.deps.Geometry.ResolveSpan(ctx)
	if err != nil {
		return nil, geometry.Span{}, geometry.RenderTarget{}, err
	}
	c.deps.Logger.Debug("monitors", "count", len(monitors))
	c.printf("Computed monitor span: %s", span)

	if cfg.AutoRenderScale() && c.deps.AutoTune != nil {
		profile := c.deps.AutoTune(ctx, span)
		cfg = cfg.WithRenderScale(profile.RenderScale)
		c.printf("Render scale %.2f (%s).", profile.RenderScale, profile.Reason)
	}

	if cfg.PickSize && c.deps.PickSize != nil {
		size, ok, err := c.deps.PickSize(ctx, geometry.SizePresets(span))
		switch {
		case err != nil:
			return nil, geometry.Span{}, geometry.RenderTarget{}, err
		case ok:
			cfg = cfg.WithInternalSize(size)
		default:
			c.printf("Size picker closed, using the configured size.")
		}
	}

	target, err := geometry.ComputeRenderTarget(span, cfg.Sizing)
	if err != nil {
		return nil, geometry.Span{}, geometry.RenderTarget{}, &config.ConfigError{Path: cfg.Source, Field: "sizing", Err: err}
	}
	c.printf("Internal render size %s, output %s.", target.Internal, target.Output)

	c.cfg = cfg
	return cfg, span, target, nil
}

// checkExisting refuses to start while a recorded session is still alive,
// since its record would be overwritten and gamescope-down could no longer
// reach it. A stale record is cleaned up the way gamescope-down does.
func (c *Controller) checkExisting(ctx context.Context) error {
	rec, err := c.deps.Records.Load()
	if errors.Is(err, ErrNoActiveSession) {
		return nil
	}
	if err != nil {
		c.deps.Logger.Warn("discarding unreadable session record", "path", c.deps.Records.Path(), "error", err)
		return c.deps.Records.Remove()
	}

	if c.deps.Alive(rec.ControllerPID, rec.ControllerName) || c.deps.Alive(rec.ChildPID, rec.ChildName) {
		return fmt.Errorf("%w: session %s (gamescope PID %d); run `hyprfinity gamescope-down` first",
			ErrSessionActive, rec.ID, rec.ChildPID)
	}

	c.printf("Cleaning up stale session %s.", rec.ID)
	opts := DownOptions{
		Records: c.deps.Records,
		Hotkeys: c.deps.Hotkeys,
		Alive:   c.deps.Alive,
		Out:     c.deps.Out,
		Logger:  c.deps.Logger,
	}
	opts.defaults()
	if errs := undo(ctx, rec, opts, false); len(errs) > 0 {
		c.deps.Logger.Warn("cleanup of stale session incomplete", "error", errors.Join(errs...))
	}
	return nil
}

// commandLine splits the effective arguments into the Gamescope options and
// the command it runs.
func (c *Controller) commandLine(cfg *config.Effective) (command, args []string) {
	args, command = launcher.SplitArgs(cfg.Args)
	return command, args
}

func (c *Controller) registerHotkey(ctx context.Context) hyprland.Hotkey {
	hk := c.cfg.ExitHotkey
	if c.deps.Hotkeys == nil || hk.IsZero() || c.deps.DownCommand == "" {
		return hyprland.Hotkey{}
	}

	exists, err := c.deps.Hotkeys.BindExists(ctx, hk)
	if err != nil {
		c.deps.Logger.Warn("failed to list keybindings", "error", err)
		return hyprland.Hotkey{}
	}
	if exists {
		c.printf("Exit hotkey %s is already bound; skipping.", hk)
		return hyprland.Hotkey{}
	}
	if err := c.deps.Hotkeys.BindExec(ctx, hk, c.deps.DownCommand); err != nil {
		c.deps.Logger.Warn("failed to bind exit hotkey", "hotkey", hk.String(), "error", err)
		return hyprland.Hotkey{}
	}
	c.printf("Exit hotkey bound: %s.", hk)
	return hk
}

func (c *Controller) saveRecord(act *active, child Child, win hyprland.Window, span geometry.Span, target geometry.RenderTarget) {
	rec := &Record{
		ID:             NewRecordID(),
		ControllerPID:  os.Getpid(),
		ControllerName: selfName(),
		ChildPID:       child.PID(),
		ChildName:      child.Name(),
		Window:         win.Address,
		Span:           span,
		Target:         target,
		Args:           child.Args(),
		Overlay:        act.overlay,
		ExitHotkey:     act.hotkey,
		StartedAt:      c.deps.Clock.Now(),
	}
	if err := c.deps.Records.Save(rec); err != nil {
		c.deps.Logger.Warn("failed to save session record; gamescope-down will not find this session", "error", err)
		return
	}
	act.recordSave = true
	c.deps.Logger.Debug("saved session record", "path", c.deps.Records.Path(), "id", rec.ID)
}

// teardown undoes every side effect in act. It runs exactly once per Run,
// on every exit path, with a context that outlives the interrupt.
func (c *Controller) teardown(parent context.Context, act *active) {
	grace := c.cfg.GracePeriod
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), grace+teardownTimeout)
	defer cancel()

	var errs []error
	fail := func(step string, err error) {
		te := &TeardownError{Step: step, Err: err}
		c.deps.Logger.Warn("teardown step failed", "step", step, "error", err)
		errs = append(errs, te)
	}

	if err := c.deps.Overlay.Restore(ctx, act.overlay); err != nil {
		fail("restore status bar", err)
	} else if act.overlay.Changed() {
		c.printf("Restored %s.", act.overlay.Target)
	}

	if !act.hotkey.IsZero() {
		if err := c.deps.Hotkeys.Unbind(ctx, act.hotkey); err != nil {
			fail("unbind exit hotkey", err)
		}
	}

	if act.child != nil {
		if err := act.child.Terminate(grace); err != nil {
			fail("terminate gamescope", err)
		}
	}

	if c.deps.Binder != nil {
		c.deps.Binder.Release()
	}

	if act.recordSave {
		if err := c.deps.Records.Remove(); err != nil {
			fail("remove session record", err)
		}
	}

	c.mu.Lock()
	c.teardownErrs = errs
	c.mu.Unlock()
}
