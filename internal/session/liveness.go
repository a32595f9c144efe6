package session

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// commLen is the kernel's limit on /proc/<pid>/comm, without the newline.
const commLen = 15

// Liveness reports whether pid is a live process named name. An empty
// name skips the name check.
type Liveness func(pid int, name string) bool

// ProcessAlive checks pid with signal 0 and, where /proc is readable,
// compares the process name to guard against PID reuse.
func ProcessAlive(pid int, name string) bool {
	if pid <= 0 {
		return false
	}
	if err := unix.Kill(pid, 0); err != nil && !errors.Is(err, unix.EPERM) {
		return false
	}
	if name == "" {
		return true
	}

	data, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "comm"))
	if err != nil {
		return true
	}
	comm := strings.TrimSpace(string(data))
	if len(name) > commLen {
		name = name[:commLen]
	}
	return comm == name
}

// selfName returns the name this process shows in /proc.
func selfName() string {
	data, err := os.ReadFile("/proc/self/comm")
	if err == nil {
		return strings.TrimSpace(string(data))
	}
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	return filepath.Base(exe)
}

// killGroup terminates the process group led by pid, which is not our
// child: SIGTERM, poll until it is gone or grace elapses, then SIGKILL.
func killGroup(pid int, name string, grace time.Duration, alive Liveness) error {
	if err := unix.Kill(-pid, unix.SIGTERM); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return nil
		}
		// Not a group leader; fall back to the process itself.
		if err := unix.Kill(pid, unix.SIGTERM); err != nil && !errors.Is(err, unix.ESRCH) {
			return err
		}
	}

	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if !alive(pid, name) {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	if !alive(pid, name) {
		return nil
	}

	err := unix.Kill(-pid, unix.SIGKILL)
	if errors.Is(err, unix.ESRCH) {
		err = unix.Kill(pid, unix.SIGKILL)
	}
	if err != nil && !errors.Is(err, unix.ESRCH) {
		return err
	}
	return nil
}
