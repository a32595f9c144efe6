package picker

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmylchreest/hyprfinity/internal/geometry"
)

// PickApp lets the user choose a desktop application and returns its
// command line.
func PickApp(ctx context.Context, c Chooser, dirs []string) ([]string, error) {
	if dirs == nil {
		dirs = DesktopDirs()
	}
	apps, err := LoadApps(dirs)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	if len(apps) == 0 {
		return nil, errors.New("no desktop applications found")
	}

	options := make([]Option[App], len(apps))
	for i, app := range apps {
		options[i] = Option[App]{Title: app.Name, Description: SanitizeExec(app.Exec), Value: app}
	}

	app, err := Choose(ctx, c, "Select application", options, true)
	if err != nil {
		return nil, err
	}
	return app.Command()
}

// PickSize lets the user choose one of presets. ok is false if the picker
// was dismissed.
func PickSize(ctx context.Context, c Chooser, presets []geometry.Preset) (geometry.Size, bool, error) {
	options := make([]Option[geometry.Size], len(presets))
	for i, p := range presets {
		options[i] = Option[geometry.Size]{Title: p.Label, Value: p.Size}
	}

	size, err := Choose(ctx, c, "Internal render size", options, false)
	if errors.Is(err, ErrCanceled) {
		return geometry.Size{}, false, nil
	}
	if err != nil {
		return geometry.Size{}, false, err
	}
	return size, true, nil
}
