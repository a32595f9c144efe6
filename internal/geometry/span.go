package geometry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/jmylchreest/hyprfinity/internal/hyprland"
)

// ErrNoMonitors is returned when the compositor reports no enabled monitors.
var ErrNoMonitors = errors.New("no monitors detected; is Hyprland running?")

// QueryError wraps a failed or unparsable monitor query.
type QueryError struct {
	Err error
}

func (e *QueryError) Error() string {
	return "monitor query failed: " + e.Err.Error()
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// MonitorInfo is an immutable snapshot of one monitor.
type MonitorInfo struct {
	Name      string
	X, Y      int
	Width     int // mode width in pixels
	Height    int // mode height in pixels
	Scale     float64
	Transform int
}

// Rect is an axis-aligned rectangle in layout coordinates.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rect returns the monitor's rectangle in layout coordinates.
func (m MonitorInfo) Rect() Rect {
	w, h := m.Width, m.Height
	if m.Scale > 0 && m.Scale != 1 {
		w = int(math.Round(float64(w) / m.Scale))
		h = int(math.Round(float64(h) / m.Scale))
	}
	// Odd transforms rotate by 90 or 270 degrees.
	if m.Transform%2 == 1 {
		w, h = h, w
	}
	return Rect{X: m.X, Y: m.Y, Width: w, Height: h}
}

func (m MonitorInfo) String() string {
	r := m.Rect()
	name := m.Name
	if name == "" {
		name = "unknown"
	}
	return fmt.Sprintf("%s:%dx%d@%d,%d", name, r.Width, r.Height, r.X, r.Y)
}

// Span is the bounding rectangle of all monitors.
type Span Rect

func (s Span) String() string {
	return fmt.Sprintf("origin=(%d, %d), size=%dx%d", s.X, s.Y, s.Width, s.Height)
}

// ComputeSpan returns the bounding box of the monitors' rectangles.
func ComputeSpan(monitors []MonitorInfo) (Span, error) {
	if len(monitors) == 0 {
		return Span{}, ErrNoMonitors
	}

	first := monitors[0].Rect()
	minX, minY := first.X, first.Y
	maxX, maxY := first.X+first.Width, first.Y+first.Height
	for _, m := range monitors[1:] {
		r := m.Rect()
		minX = min(minX, r.X)
		minY = min(minY, r.Y)
		maxX = max(maxX, r.X+r.Width)
		maxY = max(maxY, r.Y+r.Height)
	}

	return Span{
		X:      minX,
		Y:      minY,
		Width:  max(maxX-minX, 0),
		Height: max(maxY-minY, 0),
	}, nil
}

// MonitorLister returns the compositor's monitor list.
type MonitorLister interface {
	Monitors(ctx context.Context) ([]hyprland.Monitor, error)
}

// Resolver discovers the current monitor span.
type Resolver struct {
	lister MonitorLister
	logger *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(lister MonitorLister, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{lister: lister, logger: logger}
}

// ResolveSpan queries the monitor layout and computes its span. Disabled
// monitors are ignored.
func (r *Resolver) ResolveSpan(ctx context.Context) (Span, []MonitorInfo, error) {
	raw, err := r.lister.Monitors(ctx)
	if err != nil {
		return Span{}, nil, &QueryError{Err: err}
	}

	monitors := make([]MonitorInfo, 0, len(raw))
	for _, m := range raw {
		if m.Disabled {
			continue
		}
		monitors = append(monitors, MonitorInfo{
			Name:      m.Name,
			X:         m.X,
			Y:         m.Y,
			Width:     m.Width,
			Height:    m.Height,
			Scale:     m.Scale,
			Transform: m.Transform,
		})
	}

	span, err := ComputeSpan(monitors)
	if err != nil {
		return Span{}, nil, err
	}

	r.logger.Debug("computed span", "monitors", summarize(monitors), "span", span.String())
	return span, monitors, nil
}

func summarize(monitors []MonitorInfo) string {
	parts := make([]string, len(monitors))
	for i, m := range monitors {
		parts[i] = m.String()
	}
	return strings.Join(parts, ", ")
}
