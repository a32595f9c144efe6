// Package overlay hides the status bar for the duration of a session and
// puts it back afterwards.
package overlay

import (
	"context"
	"log/slog"
)

// Backend names.
const (
	BackendProcess = "process"
	BackendSystemd = "systemd"
)

// State records what Suppress changed. The zero value means nothing was
// changed and restoring it is a no-op.
type State struct {
	Backend    string `json:"backend,omitempty"`
	Target     string `json:"target,omitempty"`
	WasVisible bool   `json:"was_visible"`
	Hidden     bool   `json:"hidden"`
}

// IsZero reports whether s is the unchanged sentinel.
func (s State) IsZero() bool {
	return s == State{}
}

// Changed reports whether Suppress hid the bar.
func (s State) Changed() bool {
	return s.WasVisible && s.Hidden
}

// Suppressor hides and restores the status bar.
type Suppressor interface {
	// Suppress hides the bar if it is visible.
	Suppress(ctx context.Context) (State, error)
	// Restore undoes a previous Suppress. It is safe to call more than
	// once and with the zero State.
	Restore(ctx context.Context, st State) error
}

// Options selects and configures a backend.
type Options struct {
	Enabled bool
	Backend string // BackendProcess (default) or BackendSystemd
	Process string // process name for BackendProcess
	Unit    string // user unit for BackendSystemd
	Logger  *slog.Logger
}

// New returns the Suppressor for opts. When suppression is disabled the
// returned Suppressor does nothing.
func New(opts Options) Suppressor {
	if !opts.Enabled {
		return Noop{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	switch opts.Backend {
	case BackendSystemd:
		return NewSystemd(opts.Unit, NewBusUnits(), opts.Logger)
	default:
		return NewProcess(opts.Process, ExecProcesses{}, opts.Logger)
	}
}

// ForState returns a Suppressor able to restore st, regardless of the
// current configuration. Used when tearing down a session started by
// another process.
func ForState(st State, logger *slog.Logger) Suppressor {
	if st.IsZero() {
		return Noop{}
	}
	return New(Options{
		Enabled: true,
		Backend: st.Backend,
		Process: st.Target,
		Unit:    st.Target,
		Logger:  logger,
	})
}

// Noop leaves the bar alone.
type Noop struct{}

func (Noop) Suppress(context.Context) (State, error) { return State{}, nil }

func (Noop) Restore(context.Context, State) error { return nil }
