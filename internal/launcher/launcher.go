// Package launcher starts Gamescope in its own process group and tracks it
// until it exits or is terminated.
package launcher

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/jmylchreest/hyprfinity/internal/geometry"
)

// waitDelay bounds how long Wait keeps reading output after the process
// exits, in case grandchildren hold the pipes open.
const waitDelay = 2 * time.Second

// LaunchError reports that the subprocess could not be started.
type LaunchError struct {
	Binary string
	Err    error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch %s: %v", e.Binary, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// ExitError reports a non-zero exit of the subprocess together with its
// last lines of output.
type ExitError struct {
	Name string
	Code int // -1 when killed by a signal
	Tail []string
	Err  error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited: %v", e.Name, e.Err)
	if len(e.Tail) > 0 {
		msg += "\nlast output:\n  " + strings.Join(e.Tail, "\n  ")
	}
	return msg
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Options configures a Launcher.
type Options struct {
	Binary  string
	Verbose bool
	// Output receives subprocess lines in verbose mode. Defaults to
	// os.Stderr.
	Output io.Writer
	Logger *slog.Logger
}

// Launcher starts Gamescope sessions.
type Launcher struct {
	opts Options
}

// New creates a Launcher.
func New(opts Options) *Launcher {
	if opts.Binary == "" {
		opts.Binary = "gamescope"
	}
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Launcher{opts: opts}
}

// Launch starts the binary with args plus injected size flags, followed by
// "--" and command. If command is empty, anything after "--" in args is
// used instead. Launch does not wait for the process.
func (l *Launcher) Launch(command []string, args []string, target geometry.RenderTarget) (*Session, error) {
	path, err := exec.LookPath(l.opts.Binary)
	if err != nil {
		return nil, &LaunchError{Binary: l.opts.Binary, Err: err}
	}

	pre, post := SplitArgs(args)
	if len(command) == 0 {
		command = post
	}
	argv := InjectSizeFlags(pre, target)
	if len(command) > 0 {
		argv = append(append(argv, Separator), command...)
	}

	name := filepath.Base(l.opts.Binary)
	var mu sync.Mutex
	tail := newRing(TailLines)
	var echo io.Writer
	if l.opts.Verbose {
		echo = l.opts.Output
	}
	stdout := &lineWriter{mu: &mu, tail: tail, out: echo, prefix: "[" + name + "] "}
	stderr := &lineWriter{mu: &mu, tail: tail, out: echo, prefix: "[" + name + "] "}

	cmd := exec.Command(path, argv...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.WaitDelay = waitDelay

	l.opts.Logger.Debug("launching", "binary", path, "args", argv)
	if err := cmd.Start(); err != nil {
		return nil, &LaunchError{Binary: l.opts.Binary, Err: err}
	}

	s := &Session{
		name:   name,
		argv:   argv,
		pid:    cmd.Process.Pid,
		done:   make(chan struct{}),
		logger: l.opts.Logger.With("pid", cmd.Process.Pid),
	}

	go func() {
		err := cmd.Wait()
		stdout.flush()
		stderr.flush()
		if err != nil {
			mu.Lock()
			lines := tail.snapshot()
			mu.Unlock()
			exitErr := &ExitError{Name: name, Code: -1, Tail: lines, Err: err}
			var ee *exec.ExitError
			if errors.As(err, &ee) {
				exitErr.Code = ee.ExitCode()
			}
			s.err = exitErr
		}
		s.logger.Debug("subprocess exited", "error", s.err)
		close(s.done)
	}()

	return s, nil
}

// Session is a running Gamescope subprocess.
type Session struct {
	name   string
	argv   []string
	pid    int
	done   chan struct{}
	err    error // written before done is closed
	logger *slog.Logger

	mu       sync.Mutex
	window   string
	bindOnce sync.Once

	terminating atomic.Bool
	termOnce    sync.Once
	termErr     error
}

// PID returns the subprocess PID, which is also its process group ID.
func (s *Session) PID() int { return s.pid }

// Name returns the base name of the launched binary.
func (s *Session) Name() string { return s.name }

// Args returns the final argument list, without the binary.
func (s *Session) Args() []string { return s.argv }

// Done is closed when the subprocess has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns the exit error after Done is closed. It is nil for a clean
// exit.
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Exited reports whether the subprocess has exited.
func (s *Session) Exited() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Terminated reports whether Terminate has been called.
func (s *Session) Terminated() bool {
	return s.terminating.Load()
}

// BindWindow records the compositor address of the session's window. Only
// the first call has an effect; it reports whether the address was stored.
func (s *Session) BindWindow(address string) bool {
	bound := false
	s.bindOnce.Do(func() {
		s.mu.Lock()
		s.window = address
		s.mu.Unlock()
		bound = true
	})
	return bound
}

// Window returns the bound window address, or "".
func (s *Session) Window() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window
}

// Terminate sends SIGTERM to the process group, waits up to grace for the
// subprocess to exit, then sends SIGKILL. Only the first call signals;
// later calls return the first result.
func (s *Session) Terminate(grace time.Duration) error {
	s.termOnce.Do(func() {
		s.terminating.Store(true)
		s.termErr = s.terminate(grace)
	})
	return s.termErr
}

func (s *Session) terminate(grace time.Duration) error {
	if s.Exited() {
		return nil
	}

	if err := signalGroup(s.pid, unix.SIGTERM); err != nil {
		return fmt.Errorf("failed to signal %s: %w", s.name, err)
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-s.done:
		return nil
	case <-timer.C:
	}

	s.logger.Warn("subprocess ignored SIGTERM, killing", "grace", grace)
	if err := signalGroup(s.pid, unix.SIGKILL); err != nil {
		return fmt.Errorf("failed to kill %s: %w", s.name, err)
	}

	select {
	case <-s.done:
		return nil
	case <-time.After(waitDelay + time.Second):
		return fmt.Errorf("%s (pid %d) did not exit after SIGKILL", s.name, s.pid)
	}
}

// signalGroup signals the process group led by pid. A group that is
// already gone is not an error.
func signalGroup(pid int, sig unix.Signal) error {
	err := unix.Kill(-pid, sig)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}
