package geometry

import "fmt"

// Preset is a named internal render size offered by the size picker.
type Preset struct {
	Label string
	Size  Size
}

var (
	presetScales  = []float64{0.9, 0.85, 0.8, 0.75, 0.67, 0.6, 0.5}
	presetHeights = []int{1440, 1200, 1080, 900, 720}
)

// SizePresets lists internal sizes for span: native, scaled fractions and
// common heights below the span height. Duplicates are dropped.
func SizePresets(span Span) []Preset {
	native := Size{Width: evenFloor(span.Width), Height: evenFloor(span.Height)}
	presets := []Preset{{Label: fmt.Sprintf("Native (%s)", native), Size: native}}
	seen := map[Size]bool{native: true}

	add := func(label string, s Size) {
		if seen[s] || s.Width > native.Width || s.Height > native.Height {
			return
		}
		seen[s] = true
		presets = append(presets, Preset{Label: label, Size: s})
	}

	for _, scale := range presetScales {
		s := Size{
			Width:  evenFloor(int(float64(native.Width) * scale)),
			Height: evenFloor(int(float64(native.Height) * scale)),
		}
		add(fmt.Sprintf("%d%% (%s)", int(scale*100+0.5), s), s)
	}

	for _, h := range presetHeights {
		if h >= native.Height {
			continue
		}
		s := Size{Width: scaleAxis(h, native.Width, native.Height), Height: h}
		add(fmt.Sprintf("%dp (%s)", h, s), s)
	}

	return presets
}
