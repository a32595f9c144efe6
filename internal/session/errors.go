package session

import (
	"errors"
	"fmt"
)

var (
	// ErrNoActiveSession is returned when no live session record exists.
	ErrNoActiveSession = errors.New("no active gamescope session")

	// ErrSessionActive is returned when another session is still running.
	ErrSessionActive = errors.New("a gamescope session is already running")

	// ErrSessionExited is returned when Gamescope exits on its own while
	// the session is running.
	ErrSessionExited = errors.New("gamescope exited")

	// ErrInterrupted is returned when a stop request or signal arrives
	// before the session is running.
	ErrInterrupted = errors.New("interrupted before the session was running")

	// ErrNoCommand is returned when there is nothing for Gamescope to run.
	ErrNoCommand = errors.New("no command to run: pass one after a second \"--\", set default_command, or use --pick")

	// ErrPickCanceled is returned when the application picker was closed
	// without a selection.
	ErrPickCanceled = errors.New("application selection canceled")
)

// TeardownError reports a failed cleanup step. Teardown errors never
// replace the error that ended the session.
type TeardownError struct {
	Step string
	Err  error
}

func (e *TeardownError) Error() string {
	return fmt.Sprintf("teardown %s: %v", e.Step, e.Err)
}

func (e *TeardownError) Unwrap() error {
	return e.Err
}
