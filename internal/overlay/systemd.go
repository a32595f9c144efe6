package overlay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	systemdDest      = "org.freedesktop.systemd1"
	systemdPath      = dbus.ObjectPath("/org/freedesktop/systemd1")
	systemdManager   = "org.freedesktop.systemd1.Manager"
	systemdUnitIface = "org.freedesktop.systemd1.Unit"
)

// Units starts, stops and inspects systemd user units.
type Units interface {
	ActiveState(ctx context.Context, unit string) (string, error)
	Stop(ctx context.Context, unit string) error
	Start(ctx context.Context, unit string) error
}

// BusUnits talks to the user's systemd instance over the session bus.
type BusUnits struct {
	connect func() (*dbus.Conn, error)
}

// NewBusUnits creates a BusUnits using the shared session bus connection.
func NewBusUnits() *BusUnits {
	return &BusUnits{connect: dbus.SessionBus}
}

func (u *BusUnits) manager() (dbus.BusObject, *dbus.Conn, error) {
	conn, err := u.connect()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return conn.Object(systemdDest, systemdPath), conn, nil
}

// ActiveState returns the unit's ActiveState property ("active",
// "inactive", ...).
func (u *BusUnits) ActiveState(ctx context.Context, unit string) (string, error) {
	mgr, conn, err := u.manager()
	if err != nil {
		return "", err
	}

	var path dbus.ObjectPath
	if err := mgr.CallWithContext(ctx, systemdManager+".LoadUnit", 0, unit).Store(&path); err != nil {
		return "", fmt.Errorf("load unit %s: %w", unit, err)
	}

	v, err := conn.Object(systemdDest, path).GetProperty(systemdUnitIface + ".ActiveState")
	if err != nil {
		return "", fmt.Errorf("read ActiveState of %s: %w", unit, err)
	}
	state, ok := v.Value().(string)
	if !ok {
		return "", fmt.Errorf("unexpected ActiveState type %T for %s", v.Value(), unit)
	}
	return state, nil
}

// Stop queues a stop job for unit.
func (u *BusUnits) Stop(ctx context.Context, unit string) error {
	return u.job(ctx, "StopUnit", unit)
}

// Start queues a start job for unit.
func (u *BusUnits) Start(ctx context.Context, unit string) error {
	return u.job(ctx, "StartUnit", unit)
}

func (u *BusUnits) job(ctx context.Context, method, unit string) error {
	mgr, _, err := u.manager()
	if err != nil {
		return err
	}
	var job dbus.ObjectPath
	if err := mgr.CallWithContext(ctx, systemdManager+"."+method, 0, unit, "replace").Store(&job); err != nil {
		return fmt.Errorf("%s %s: %w", method, unit, err)
	}
	return nil
}

// Systemd hides a bar that runs as a systemd user unit.
type Systemd struct {
	unit   string
	units  Units
	logger *slog.Logger

	mu       sync.Mutex
	restored bool
}

// NewSystemd creates a systemd backend for unit.
func NewSystemd(unit string, units Units, logger *slog.Logger) *Systemd {
	if unit == "" {
		unit = "waybar.service"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Systemd{unit: unit, units: units, logger: logger}
}

// Suppress stops the unit if it is active.
func (s *Systemd) Suppress(ctx context.Context) (State, error) {
	active, err := s.units.ActiveState(ctx, s.unit)
	if err != nil {
		return State{}, err
	}
	st := State{Backend: BackendSystemd, Target: s.unit, WasVisible: active == "active"}
	if !st.WasVisible {
		s.logger.Debug("unit not active", "unit", s.unit, "state", active)
		return st, nil
	}

	if err := s.units.Stop(ctx, s.unit); err != nil {
		return st, err
	}
	st.Hidden = true
	s.logger.Debug("unit stopped", "unit", s.unit)
	return st, nil
}

// Restore starts the unit again if Suppress stopped it and it is not active.
func (s *Systemd) Restore(ctx context.Context, st State) error {
	if !st.Changed() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.restored {
		return nil
	}

	unit := st.Target
	if unit == "" {
		unit = s.unit
	}
	active, err := s.units.ActiveState(ctx, unit)
	if err != nil {
		return err
	}
	if active != "active" {
		if err := s.units.Start(ctx, unit); err != nil {
			return err
		}
		s.logger.Debug("unit started", "unit", unit)
	}
	s.restored = true
	return nil
}
