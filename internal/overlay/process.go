package overlay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// Processes finds, signals and starts processes by name.
type Processes interface {
	Find(ctx context.Context, name string) ([]int, error)
	Terminate(pid int) error
	Spawn(name string) error
}

// ExecProcesses implements Processes with pgrep and signals.
type ExecProcesses struct{}

// Find returns the PIDs of processes named exactly name.
func (ExecProcesses) Find(ctx context.Context, name string) ([]int, error) {
	out, err := exec.CommandContext(ctx, "pgrep", "-x", name).Output()
	if err != nil {
		var exitErr *exec.ExitError
		// pgrep exits 1 when nothing matched.
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return nil, nil
		}
		return nil, fmt.Errorf("pgrep %s: %w", name, err)
	}

	var pids []int
	for _, field := range strings.Fields(string(out)) {
		pid, err := strconv.Atoi(field)
		if err != nil {
			continue
		}
		pids = append(pids, pid)
	}
	return pids, nil
}

// Terminate sends SIGTERM to pid.
func (ExecProcesses) Terminate(pid int) error {
	err := unix.Kill(pid, unix.SIGTERM)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}

// Spawn starts name detached in a new session with its output discarded.
func (ExecProcesses) Spawn(name string) error {
	cmd := exec.Command(name)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

// Process hides a bar by terminating its process and restores it by
// starting it again.
type Process struct {
	name   string
	procs  Processes
	logger *slog.Logger

	mu       sync.Mutex
	restored bool
}

// NewProcess creates a process backend for the bar named name.
func NewProcess(name string, procs Processes, logger *slog.Logger) *Process {
	if name == "" {
		name = "waybar"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Process{name: name, procs: procs, logger: logger}
}

// Suppress terminates every running instance of the bar.
func (p *Process) Suppress(ctx context.Context) (State, error) {
	pids, err := p.procs.Find(ctx, p.name)
	if err != nil {
		return State{}, err
	}
	st := State{Backend: BackendProcess, Target: p.name, WasVisible: len(pids) > 0}
	if !st.WasVisible {
		p.logger.Debug("bar not running", "name", p.name)
		return st, nil
	}

	var errs []error
	for _, pid := range pids {
		if err := p.procs.Terminate(pid); err != nil {
			errs = append(errs, fmt.Errorf("terminate %s (pid %d): %w", p.name, pid, err))
		}
	}
	if len(errs) == len(pids) {
		return st, errors.Join(errs...)
	}
	st.Hidden = true
	p.logger.Debug("bar hidden", "name", p.name, "pids", pids)
	return st, errors.Join(errs...)
}

// Restore starts the bar again if it was hidden by Suppress and is not
// running now.
func (p *Process) Restore(ctx context.Context, st State) error {
	if !st.Changed() {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.restored {
		return nil
	}

	name := st.Target
	if name == "" {
		name = p.name
	}
	pids, err := p.procs.Find(ctx, name)
	if err != nil {
		return err
	}
	if len(pids) == 0 {
		if err := p.procs.Spawn(name); err != nil {
			return fmt.Errorf("restart %s: %w", name, err)
		}
		p.logger.Debug("bar restarted", "name", name)
	}
	p.restored = true
	return nil
}
