package geometry

import (
	"fmt"
	"math"
)

// MinDimension is the smallest derived dimension. Derived dimensions are
// even so that encoders downstream of Gamescope accept them.
const MinDimension = 2

// Sizing holds the size-related settings that feed ComputeRenderTarget.
// Zero means "not set" for every field except RenderScale, where zero
// means the default of 1.
type Sizing struct {
	RenderScale   float64
	VirtualWidth  int
	VirtualHeight int
	OutputWidth   int
	OutputHeight  int
}

// SizingError reports an invalid size setting.
type SizingError struct {
	Field  string
	Value  any
	Reason string
}

func (e *SizingError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

// Validate checks that the settings can produce a render target.
func (s Sizing) Validate() error {
	if math.IsNaN(s.RenderScale) || s.RenderScale < 0 || s.RenderScale > 1 {
		return &SizingError{Field: "render_scale", Value: s.RenderScale, Reason: "must be in (0, 1]"}
	}
	for _, f := range []struct {
		name  string
		value int
	}{
		{"virtual_width", s.VirtualWidth},
		{"virtual_height", s.VirtualHeight},
		{"output_width", s.OutputWidth},
		{"output_height", s.OutputHeight},
	} {
		if f.value < 0 {
			return &SizingError{Field: f.name, Value: f.value, Reason: "must be positive"}
		}
	}
	return nil
}

func (s Sizing) scale() float64 {
	if s.RenderScale == 0 {
		return 1
	}
	return s.RenderScale
}

// Size is a width and height in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// RenderTarget is the pair of sizes passed to Gamescope: Output maps to
// -W/-H and Internal to -w/-h.
type RenderTarget struct {
	Output   Size `json:"output"`
	Internal Size `json:"internal"`
}

func (t RenderTarget) String() string {
	return fmt.Sprintf("output=%s internal=%s", t.Output, t.Internal)
}

// ComputeRenderTarget derives the output and internal sizes for span.
//
// Output is the explicit output size if set, else the full span. Internal is
// the explicit virtual size if set, else the output scaled by RenderScale.
// When only one axis of a pair is explicit the other follows the aspect
// ratio of the size it derives from.
func ComputeRenderTarget(span Span, cfg Sizing) (RenderTarget, error) {
	if err := cfg.Validate(); err != nil {
		return RenderTarget{}, err
	}

	output := deriveSize(
		Size{Width: evenFloor(span.Width), Height: evenFloor(span.Height)},
		span.Width, span.Height,
		cfg.OutputWidth, cfg.OutputHeight,
	)

	var internal Size
	if cfg.VirtualWidth > 0 || cfg.VirtualHeight > 0 {
		internal = deriveSize(output, output.Width, output.Height, cfg.VirtualWidth, cfg.VirtualHeight)
	} else {
		scale := cfg.scale()
		internal = Size{
			Width:  evenFloor(int(math.Floor(float64(output.Width) * scale))),
			Height: evenFloor(int(math.Floor(float64(output.Height) * scale))),
		}
	}

	return RenderTarget{Output: output, Internal: internal}, nil
}

// deriveSize resolves an optional explicit width/height pair. With neither
// set it returns fallback; with one set the other is derived from the
// refW:refH aspect ratio.
func deriveSize(fallback Size, refW, refH, width, height int) Size {
	switch {
	case width > 0 && height > 0:
		return Size{Width: width, Height: height}
	case width > 0:
		return Size{Width: width, Height: scaleAxis(width, refH, refW)}
	case height > 0:
		return Size{Width: scaleAxis(height, refW, refH), Height: height}
	default:
		return fallback
	}
}

// scaleAxis returns v*num/den rounded down to even.
func scaleAxis(v, num, den int) int {
	if den <= 0 {
		return evenFloor(v)
	}
	return evenFloor(int(math.Round(float64(v) * float64(num) / float64(den))))
}

func evenFloor(v int) int {
	v &^= 1
	if v < MinDimension {
		return MinDimension
	}
	return v
}
