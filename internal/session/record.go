package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/hyprfinity/internal/geometry"
	"github.com/jmylchreest/hyprfinity/internal/hyprland"
	"github.com/jmylchreest/hyprfinity/internal/overlay"
)

// CurrentSchemaVersion is the version of the record format.
const CurrentSchemaVersion = 1

// Record is the persisted description of the running session. It is
// written when the session starts running and removed when it stops.
type Record struct {
	SchemaVersion  int                   `json:"schema_version"`
	ID             string                `json:"id"`
	ControllerPID  int                   `json:"controller_pid"`
	ControllerName string                `json:"controller_name,omitempty"`
	ChildPID       int                   `json:"child_pid"`
	ChildName      string                `json:"child_name"`
	Window         string                `json:"window,omitempty"`
	Span           geometry.Span         `json:"span"`
	Target         geometry.RenderTarget `json:"target"`
	Args           []string              `json:"args"`
	Overlay        overlay.State         `json:"overlay"`
	ExitHotkey     hyprland.Hotkey       `json:"exit_hotkey"` // zero if none was registered
	StartedAt      time.Time             `json:"started_at"`
}

// NewRecordID returns a new sortable session ID.
func NewRecordID() string {
	return ulid.Make().String()
}

// RecordDir returns the directory holding the session record.
// Uses XDG_RUNTIME_DIR or falls back to the system temp directory.
func RecordDir() string {
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "hyprfinity")
}

// RecordPath returns the default session record path.
func RecordPath() string {
	return filepath.Join(RecordDir(), "session.json")
}

// RecordStore reads and writes the session record file.
type RecordStore struct {
	path string
}

// NewRecordStore creates a store for path. An empty path uses RecordPath.
func NewRecordStore(path string) *RecordStore {
	if path == "" {
		path = RecordPath()
	}
	return &RecordStore{path: path}
}

// Path returns the record file path.
func (s *RecordStore) Path() string {
	return s.path
}

// Load reads the record. It returns ErrNoActiveSession if there is none.
func (s *RecordStore) Load() (*Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoActiveSession
		}
		return nil, fmt.Errorf("failed to read session record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("corrupt session record %s: %w", s.path, err)
	}
	if rec.SchemaVersion == 0 {
		rec.SchemaVersion = CurrentSchemaVersion
	}
	if rec.SchemaVersion > CurrentSchemaVersion {
		return nil, fmt.Errorf("session record %s has unsupported schema version %d", s.path, rec.SchemaVersion)
	}
	return &rec, nil
}

// Save writes the record atomically with owner-only permissions.
func (s *RecordStore) Save(rec *Record) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create record directory: %w", err)
	}

	if rec.SchemaVersion == 0 {
		rec.SchemaVersion = CurrentSchemaVersion
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session record: %w", err)
	}

	// Write atomically via temp file
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write session record: %w", err)
	}
	return os.Rename(tmpPath, s.path)
}

// Remove deletes the record. A missing record is not an error.
func (s *RecordStore) Remove() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Exists reports whether a record file is present.
func (s *RecordStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// WaitRemoved blocks until the record file is removed, ctx is done, or
// timeout elapses. It reports whether the file is gone.
func (s *RecordStore) WaitRemoved(ctx context.Context, timeout time.Duration) (bool, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return false, err
	}
	defer watcher.Close()

	// Watch the directory; the file itself disappears.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return true, nil
		}
		return false, err
	}

	// The file may have gone before the watch was set up.
	if !s.Exists() {
		return true, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	filename := filepath.Base(s.path)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return !s.Exists(), nil
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if (event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)) && !s.Exists() {
				return true, nil
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return !s.Exists(), nil
			}
			return !s.Exists(), err
		case <-timer.C:
			return !s.Exists(), nil
		case <-ctx.Done():
			return !s.Exists(), ctx.Err()
		}
	}
}
