package hyprland

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ErrUnexpectedOutput is the cause of a CommandError for a dispatcher that
// exited successfully without printing "ok".
var ErrUnexpectedOutput = errors.New("unexpected hyprctl output")

// CommandError describes a failed hyprctl invocation.
type CommandError struct {
	Args     []string
	ExitCode int
	Output   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("hyprctl %s", strings.Join(e.Args, " "))
	if e.ExitCode != 0 {
		msg += fmt.Sprintf(" exited %d", e.ExitCode)
	}
	if e.Output != "" {
		msg += fmt.Sprintf(": %q", e.Output)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Transient reports whether retrying the same command may succeed. A missing
// binary or a permission failure never recovers.
func (e *CommandError) Transient() bool {
	if errors.Is(e.Err, exec.ErrNotFound) || errors.Is(e.Err, os.ErrPermission) {
		return false
	}
	return true
}

// ParseError is returned when hyprctl output cannot be decoded.
type ParseError struct {
	Query string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse hyprctl %s output: %v", e.Query, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a hyprctl failure worth retrying.
func IsTransient(err error) bool {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Transient()
	}
	return false
}
