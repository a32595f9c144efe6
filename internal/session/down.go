package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/jmylchreest/hyprfinity/internal/overlay"
)

// controllerSlack is extra time given to a live controller to finish its
// own teardown after the child's grace period.
const controllerSlack = 5 * time.Second

// DownOptions configures Down.
type DownOptions struct {
	Records *RecordStore
	Hotkeys Hotkeys
	Grace   time.Duration

	// Alive defaults to ProcessAlive.
	Alive Liveness
	// SignalController defaults to sending SIGTERM to pid.
	SignalController func(pid int) error
	// KillChild defaults to terminating the child's process group.
	KillChild func(pid int, name string, grace time.Duration) error
	// Restorer defaults to overlay.ForState.
	Restorer func(st overlay.State) overlay.Suppressor

	Out    io.Writer
	Logger *slog.Logger
}

func (o *DownOptions) defaults() {
	if o.Records == nil {
		o.Records = NewRecordStore("")
	}
	if o.Grace <= 0 {
		o.Grace = 3 * time.Second
	}
	if o.Alive == nil {
		o.Alive = ProcessAlive
	}
	if o.SignalController == nil {
		o.SignalController = func(pid int) error { return unix.Kill(pid, unix.SIGTERM) }
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.KillChild == nil {
		alive := o.Alive
		o.KillChild = func(pid int, name string, grace time.Duration) error {
			return killGroup(pid, name, grace, alive)
		}
	}
	if o.Restorer == nil {
		logger := o.Logger
		o.Restorer = func(st overlay.State) overlay.Suppressor { return overlay.ForState(st, logger) }
	}
	if o.Out == nil {
		o.Out = os.Stdout
	}
}

// Down stops the session described by the persisted record. If the
// controller that started it is alive it is asked to tear down itself;
// otherwise the record's side effects are undone here. It returns
// ErrNoActiveSession when there is nothing running. Teardown failures are
// returned joined; the record is removed regardless.
func Down(ctx context.Context, opts DownOptions) error {
	opts.defaults()
	printf := func(format string, args ...any) {
		fmt.Fprintf(opts.Out, "hyprfinity: "+format+"\n", args...)
	}

	rec, err := opts.Records.Load()
	if errors.Is(err, ErrNoActiveSession) {
		return ErrNoActiveSession
	}
	if err != nil {
		opts.Logger.Warn("discarding unreadable session record", "path", opts.Records.Path(), "error", err)
		if rmErr := opts.Records.Remove(); rmErr != nil {
			return errors.Join(err, rmErr)
		}
		return ErrNoActiveSession
	}

	controllerAlive := rec.ControllerPID != os.Getpid() && opts.Alive(rec.ControllerPID, rec.ControllerName)
	childAlive := opts.Alive(rec.ChildPID, rec.ChildName)

	if !controllerAlive && !childAlive {
		opts.Logger.Debug("stale session record", "id", rec.ID, "controller_pid", rec.ControllerPID, "child_pid", rec.ChildPID)
		if errs := undo(ctx, rec, opts, false); len(errs) > 0 {
			opts.Logger.Warn("cleanup of stale session incomplete", "error", errors.Join(errs...))
		}
		return ErrNoActiveSession
	}

	if controllerAlive {
		printf("Stopping session %s (controller PID %d).", rec.ID, rec.ControllerPID)
		if err := opts.SignalController(rec.ControllerPID); err != nil {
			opts.Logger.Warn("failed to signal controller", "pid", rec.ControllerPID, "error", err)
		} else {
			gone, err := opts.Records.WaitRemoved(ctx, opts.Grace+controllerSlack)
			if err != nil {
				opts.Logger.Debug("waiting for controller failed", "error", err)
			}
			if gone {
				printf("Session stopped.")
				return nil
			}
			opts.Logger.Warn("controller did not finish teardown in time, cleaning up directly", "pid", rec.ControllerPID)
		}
	}

	printf("Tearing down session %s (gamescope PID %d).", rec.ID, rec.ChildPID)
	errs := undo(ctx, rec, opts, childAlive)
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	printf("Session stopped.")
	return nil
}

// undo reverses the side effects recorded in rec and removes the record.
func undo(ctx context.Context, rec *Record, opts DownOptions, killChild bool) []error {
	var errs []error

	if killChild {
		if err := opts.KillChild(rec.ChildPID, rec.ChildName, opts.Grace); err != nil {
			errs = append(errs, &TeardownError{Step: "terminate gamescope", Err: err})
		}
	}

	if err := opts.Restorer(rec.Overlay).Restore(ctx, rec.Overlay); err != nil {
		errs = append(errs, &TeardownError{Step: "restore status bar", Err: err})
	}

	if !rec.ExitHotkey.IsZero() && opts.Hotkeys != nil {
		if err := opts.Hotkeys.Unbind(ctx, rec.ExitHotkey); err != nil {
			errs = append(errs, &TeardownError{Step: "unbind exit hotkey", Err: err})
		}
	}

	if err := opts.Records.Remove(); err != nil {
		errs = append(errs, &TeardownError{Step: "remove session record", Err: err})
	}
	return errs
}
