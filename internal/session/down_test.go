package session

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/hyprfinity/internal/hyprland"
	"github.com/jmylchreest/hyprfinity/internal/overlay"
)

type downHarness struct {
	records  *RecordStore
	hotkeys  *fakeHotkeys
	overlay  *fakeOverlay
	out      *bytes.Buffer
	alive    map[int]bool
	mu       sync.Mutex
	signaled []int
	killed   []int
	onSignal func(pid int)
}

func newDownHarness(t *testing.T) *downHarness {
	return &downHarness{
		records: NewRecordStore(filepath.Join(t.TempDir(), "session.json")),
		hotkeys: &fakeHotkeys{},
		overlay: &fakeOverlay{},
		out:     &bytes.Buffer{},
		alive:   map[int]bool{},
	}
}

func (h *downHarness) options() DownOptions {
	return DownOptions{
		Records: h.records,
		Hotkeys: h.hotkeys,
		Grace:   100 * time.Millisecond,
		Alive: func(pid int, _ string) bool {
			h.mu.Lock()
			defer h.mu.Unlock()
			return h.alive[pid]
		},
		SignalController: func(pid int) error {
			h.mu.Lock()
			h.signaled = append(h.signaled, pid)
			fn := h.onSignal
			h.mu.Unlock()
			if fn != nil {
				fn(pid)
			}
			return nil
		},
		KillChild: func(pid int, _ string, _ time.Duration) error {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.killed = append(h.killed, pid)
			h.alive[pid] = false
			return nil
		},
		Restorer: func(overlay.State) overlay.Suppressor { return h.overlay },
		Out:      h.out,
	}
}

func TestDown_NoRecord(t *testing.T) {
	h := newDownHarness(t)

	err := Down(context.Background(), h.options())
	require.ErrorIs(t, err, ErrNoActiveSession)

	// No side effects at all.
	assert.Empty(t, h.signaled)
	assert.Empty(t, h.killed)
	assert.Empty(t, h.overlay.restored)
	assert.Empty(t, h.hotkeys.unbound)
	assert.Empty(t, h.out.String())
}

func TestDown_StaleRecord(t *testing.T) {
	h := newDownHarness(t)
	rec := testRecord()
	require.NoError(t, h.records.Save(rec))

	err := Down(context.Background(), h.options())
	require.ErrorIs(t, err, ErrNoActiveSession)

	assert.False(t, h.records.Exists(), "stale record removed")
	assert.Equal(t, []overlay.State{rec.Overlay}, h.overlay.restored)
	assert.Equal(t, []hyprland.Hotkey{{Mods: "SUPER SHIFT", Key: "F12"}}, h.hotkeys.unbound)
	assert.Empty(t, h.signaled)
	assert.Empty(t, h.killed)
}

func TestDown_CorruptRecord(t *testing.T) {
	h := newDownHarness(t)
	require.NoError(t, h.records.Save(testRecord()))
	require.NoError(t, os.WriteFile(h.records.Path(), []byte("garbage"), 0600))

	err := Down(context.Background(), h.options())
	require.ErrorIs(t, err, ErrNoActiveSession)
	assert.False(t, h.records.Exists())
}

func TestDown_LiveController(t *testing.T) {
	h := newDownHarness(t)
	rec := testRecord()
	require.NoError(t, h.records.Save(rec))
	h.alive[rec.ControllerPID] = true
	h.alive[rec.ChildPID] = true

	// The controller tears down and removes its record when signaled.
	h.onSignal = func(int) {
		go func() {
			time.Sleep(20 * time.Millisecond)
			_ = h.records.Remove()
		}()
	}

	require.NoError(t, Down(context.Background(), h.options()))
	assert.Equal(t, []int{rec.ControllerPID}, h.signaled)
	assert.Empty(t, h.killed, "controller handles the child itself")
	assert.Empty(t, h.overlay.restored)
	assert.Contains(t, h.out.String(), "Session stopped.")
}

func TestDown_UnresponsiveController(t *testing.T) {
	h := newDownHarness(t)
	rec := testRecord()
	require.NoError(t, h.records.Save(rec))
	h.alive[rec.ControllerPID] = true
	h.alive[rec.ChildPID] = true

	opts := h.options()
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	require.NoError(t, Down(ctx, opts))
	assert.Equal(t, []int{rec.ControllerPID}, h.signaled)
	assert.Equal(t, []int{rec.ChildPID}, h.killed)
	assert.Equal(t, []overlay.State{rec.Overlay}, h.overlay.restored)
	assert.Len(t, h.hotkeys.unbound, 1)
	assert.False(t, h.records.Exists())
}

func TestDown_OrphanedChild(t *testing.T) {
	h := newDownHarness(t)
	rec := testRecord()
	require.NoError(t, h.records.Save(rec))
	h.alive[rec.ChildPID] = true

	require.NoError(t, Down(context.Background(), h.options()))
	assert.Empty(t, h.signaled)
	assert.Equal(t, []int{rec.ChildPID}, h.killed)
	assert.Equal(t, []overlay.State{rec.Overlay}, h.overlay.restored)
	assert.False(t, h.records.Exists())
}

func TestDown_TeardownFailuresAreReported(t *testing.T) {
	h := newDownHarness(t)
	rec := testRecord()
	require.NoError(t, h.records.Save(rec))
	h.alive[rec.ChildPID] = true
	h.overlay.restoreErr = errors.New("exec failed")

	err := Down(context.Background(), h.options())
	var te *TeardownError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "restore status bar", te.Step)
	assert.False(t, h.records.Exists(), "record removed even when a step fails")
}

func TestGetStatus(t *testing.T) {
	h := newDownHarness(t)
	alive := h.options().Alive

	_, err := GetStatus(h.records, alive, time.Now())
	require.ErrorIs(t, err, ErrNoActiveSession)

	rec := testRecord()
	require.NoError(t, h.records.Save(rec))

	_, err = GetStatus(h.records, alive, time.Now())
	require.ErrorIs(t, err, ErrNoActiveSession, "stale record")

	h.alive[rec.ControllerPID] = true
	h.alive[rec.ChildPID] = true
	st, err := GetStatus(h.records, alive, rec.StartedAt.Add(90*time.Second))
	require.NoError(t, err)
	assert.True(t, st.ControllerAlive)
	assert.True(t, st.ChildAlive)
	assert.Equal(t, 90*time.Second, st.Uptime)
	assert.Equal(t, rec.ID, st.Record.ID)
}
