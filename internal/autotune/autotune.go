// Package autotune picks a default internal render scale from the monitor
// span and the machine's CPU, memory and GPU.
package autotune

import (
	"fmt"
	"math"
	"strings"
)

// Scale bounds for a tuned profile.
const (
	MinScale = 0.5
	MaxScale = 1.0
)

// Hardware is what the tuner knows about the machine. Zero values mean
// unknown.
type Hardware struct {
	CPUThreads int
	MemGiB     float64
	SpanPixels int64
	GPUModel   string
	VRAMGiB    float64
}

// Profile is a tuned render scale and how it was reached.
type Profile struct {
	RenderScale float64 `json:"render_scale"`
	Reason      string  `json:"reason"`
}

// Compute derives a render scale from hw. The span size sets the base
// scale, CPU and memory nudge it, the GPU adjusts it further, and the
// result is rounded to two decimals within [MinScale, MaxScale].
func Compute(hw Hardware) Profile {
	threads := hw.CPUThreads
	if threads <= 0 {
		threads = 4
	}

	var scale float64
	switch p := hw.SpanPixels; {
	case p > 16_000_000:
		scale = 0.60
	case p > 12_000_000:
		scale = 0.67
	case p > 8_500_000:
		scale = 0.75
	case p > 5_500_000:
		scale = 0.85
	default:
		scale = 1.0
	}

	mem := hw.MemGiB
	if mem <= 0 {
		mem = 16
	}
	switch {
	case threads >= 16 && mem >= 32:
		scale += 0.10
	case threads >= 12 && mem >= 24:
		scale += 0.05
	case threads <= 4 || mem < 8:
		scale -= 0.15
	case threads <= 6 || mem < 12:
		scale -= 0.10
	}

	gpuDelta, gpuReason := gpuAdjustment(hw.GPUModel, hw.VRAMGiB, hw.SpanPixels)
	scale += gpuDelta

	scale = math.Round(scale*100) / 100
	scale = min(max(scale, MinScale), MaxScale)

	reason := fmt.Sprintf("auto-tuned using CPU threads=%d, RAM=%s GiB, span_pixels=%s, GPU='%s', GPU_VRAM=%s GiB, gpu_adjustment=%+.2f (%s)",
		threads,
		orUnknown(hw.MemGiB > 0, fmt.Sprintf("%.1f", hw.MemGiB)),
		orUnknown(hw.SpanPixels > 0, fmt.Sprint(hw.SpanPixels)),
		orUnknown(hw.GPUModel != "", hw.GPUModel),
		orUnknown(hw.VRAMGiB > 0, fmt.Sprintf("%.1f", hw.VRAMGiB)),
		gpuDelta,
		gpuReason,
	)
	return Profile{RenderScale: scale, Reason: reason}
}

func orUnknown(known bool, v string) string {
	if !known {
		return "unknown"
	}
	return v
}

var polaris = []string{"rx 580", "rx580", "rx 570", "rx570", "rx 560", "rx560", "rx 480", "rx480", "rx 470", "rx470", "rx 460", "rx460"}

// gpuAdjustment returns the scale delta for the GPU and a short
// explanation.
func gpuAdjustment(model string, vramGiB float64, spanPixels int64) (float64, string) {
	var delta float64
	var reasons []string

	if vramGiB > 0 {
		switch {
		case vramGiB <= 4:
			delta -= 0.20
			reasons = append(reasons, fmt.Sprintf("VRAM %.1fGiB (very low)", vramGiB))
		case vramGiB <= 6:
			delta -= 0.15
			reasons = append(reasons, fmt.Sprintf("VRAM %.1fGiB (low)", vramGiB))
		case vramGiB <= 8:
			delta -= 0.10
			reasons = append(reasons, fmt.Sprintf("VRAM %.1fGiB (mid)", vramGiB))
		case vramGiB >= 16:
			delta += 0.08
			reasons = append(reasons, fmt.Sprintf("VRAM %.1fGiB (high)", vramGiB))
		case vramGiB >= 12:
			delta += 0.05
			reasons = append(reasons, fmt.Sprintf("VRAM %.1fGiB (good)", vramGiB))
		}
	}

	if model != "" {
		lc := strings.ToLower(model)
		switch {
		case containsAny(lc, polaris...):
			delta -= 0.15
			reasons = append(reasons, "older AMD Polaris class")
		case strings.Contains(lc, "intel") && !strings.Contains(lc, "arc"):
			delta -= 0.12
			reasons = append(reasons, "integrated Intel graphics")
		case containsAny(lc, "vega 8", "vega 11"):
			delta -= 0.10
			reasons = append(reasons, "integrated Vega graphics")
		case containsAny(lc, "rtx 40", "rx 7"):
			delta += 0.08
			reasons = append(reasons, "newer high-end GPU tier")
		}
	}

	if spanPixels > 10_000_000 && delta < 0 {
		delta -= 0.05
		reasons = append(reasons, "large multi-monitor span")
	}

	delta = min(max(delta, -0.35), 0.12)
	if len(reasons) == 0 {
		return delta, "no strong GPU adjustment"
	}
	return delta, strings.Join(reasons, ", ")
}

// gpuScore ranks GPU descriptions so a discrete card wins over an
// integrated one.
func gpuScore(model string) int {
	lc := strings.ToLower(model)
	score := 0

	if containsAny(lc, "nvidia", "geforce", "rtx", "gtx") {
		score += 50
	}
	if containsAny(lc, "amd", "ati", "radeon", "rx ", "rx5", "rx 5", "rx6", "rx 6", "rx7", "rx 7") {
		score += 45
	}
	if strings.Contains(lc, "intel") {
		score += 10
		if strings.Contains(lc, "arc") {
			score += 20
		} else {
			score -= 8
		}
	}
	if containsAny(lc, "uhd", "hd graphics", "iris", "vega 8", "vega 11") {
		score -= 6
	}
	if containsAny(lc, "rx 580", "rx580") {
		score += 5
	}
	return score
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
