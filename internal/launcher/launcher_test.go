package launcher

import (
	"bytes"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func waitDone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("subprocess did not exit")
	}
}

func TestLaunch_MissingBinary(t *testing.T) {
	l := New(Options{Binary: "hyprfinity-definitely-missing"})
	_, err := l.Launch(nil, nil, target)

	var le *LaunchError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "hyprfinity-definitely-missing", le.Binary)
	assert.ErrorIs(t, err, exec.ErrNotFound)
}

func TestLaunch_CleanExit(t *testing.T) {
	requireShell(t)

	l := New(Options{Binary: "sh"})
	s, err := l.Launch(nil, []string{"-c", "exit 0"}, target)
	require.NoError(t, err)
	assert.Positive(t, s.PID())
	assert.Equal(t, "sh", s.Name())

	waitDone(t, s)
	assert.NoError(t, s.Err())
	assert.True(t, s.Exited())
	assert.False(t, s.Terminated())
}

func TestLaunch_ArgsIncludeSizeFlagsAndCommand(t *testing.T) {
	requireShell(t)

	l := New(Options{Binary: "sh"})
	s, err := l.Launch([]string{"app", "--flag"}, []string{"-c", "exit 0", "--", "ignored"}, target)
	require.NoError(t, err)
	waitDone(t, s)

	assert.Equal(t, []string{
		"-c", "exit 0",
		"-W", "3840", "-H", "1080", "-w", "1920", "-h", "540",
		"--", "app", "--flag",
	}, s.Args())
}

func TestLaunch_CommandFromArgs(t *testing.T) {
	requireShell(t)

	l := New(Options{Binary: "sh"})
	s, err := l.Launch(nil, []string{"-c", "exit 0", "--", "steam"}, target)
	require.NoError(t, err)
	waitDone(t, s)

	assert.Equal(t, []string{"--", "steam"}, s.Args()[len(s.Args())-2:])
}

func TestLaunch_FailureKeepsTail(t *testing.T) {
	requireShell(t)

	l := New(Options{Binary: "sh"})
	script := `exec 2>&1; i=1; while [ $i -le 30 ]; do echo "line$i"; i=$((i+1)); done; echo oops >&2; exit 3`
	s, err := l.Launch(nil, []string{"-c", script}, target)
	require.NoError(t, err)
	waitDone(t, s)

	var ee *ExitError
	require.ErrorAs(t, s.Err(), &ee)
	assert.Equal(t, 3, ee.Code)
	require.Len(t, ee.Tail, TailLines)
	assert.Equal(t, "line12", ee.Tail[0])
	assert.Equal(t, "oops", ee.Tail[TailLines-1])
	assert.Contains(t, ee.Error(), "oops")
}

func TestLaunch_VerboseStreamsOutput(t *testing.T) {
	requireShell(t)

	var out bytes.Buffer
	l := New(Options{Binary: "sh", Verbose: true, Output: &out})
	s, err := l.Launch(nil, []string{"-c", "echo hello; printf partial"}, target)
	require.NoError(t, err)
	waitDone(t, s)

	assert.Contains(t, out.String(), "[sh] hello\n")
	assert.Contains(t, out.String(), "[sh] partial\n")
}

func TestSession_BindWindowOnce(t *testing.T) {
	requireShell(t)

	l := New(Options{Binary: "sh"})
	s, err := l.Launch(nil, []string{"-c", "exit 0"}, target)
	require.NoError(t, err)
	waitDone(t, s)

	assert.Empty(t, s.Window())
	assert.True(t, s.BindWindow("0xabc"))
	assert.False(t, s.BindWindow("0xdef"))
	assert.Equal(t, "0xabc", s.Window())
}

func TestSession_TerminateGraceful(t *testing.T) {
	requireShell(t)

	l := New(Options{Binary: "sh"})
	s, err := l.Launch(nil, []string{"-c", "sleep 30"}, target)
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, s.Terminate(5*time.Second))
	assert.True(t, s.Exited())
	assert.True(t, s.Terminated())
	assert.Less(t, time.Since(start), 5*time.Second)

	// Second call is a no-op.
	assert.NoError(t, s.Terminate(time.Second))
}

func TestSession_TerminateEscalatesToKill(t *testing.T) {
	requireShell(t)

	l := New(Options{Binary: "sh"})
	s, err := l.Launch(nil, []string{"-c", `trap "" TERM; while :; do sleep 1; done`}, target)
	require.NoError(t, err)

	// Give the shell time to install its trap.
	time.Sleep(200 * time.Millisecond)

	require.NoError(t, s.Terminate(300*time.Millisecond))
	assert.True(t, s.Exited())

	var ee *ExitError
	require.ErrorAs(t, s.Err(), &ee)
	assert.Equal(t, -1, ee.Code)
}

func TestSession_TerminateAfterExit(t *testing.T) {
	requireShell(t)

	l := New(Options{Binary: "sh"})
	s, err := l.Launch(nil, []string{"-c", "exit 0"}, target)
	require.NoError(t, err)
	waitDone(t, s)

	assert.NoError(t, s.Terminate(time.Second))
}
