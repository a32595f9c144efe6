package autotune

import (
	"bufio"
	"bytes"
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/jmylchreest/hyprfinity/internal/geometry"
)

const lspciTimeout = 2 * time.Second

// Detector collects Hardware from the running system.
type Detector struct {
	// SysRoot is the sysfs mount, "/sys" by default.
	SysRoot string
	// ListPCI returns `lspci -nn` output. Defaults to running lspci.
	ListPCI func(ctx context.Context) ([]byte, error)
	// MemTotal returns total memory in bytes. Defaults to sysinfo(2).
	MemTotal func() (uint64, error)
	// NumCPU defaults to runtime.NumCPU.
	NumCPU func() int
	Logger *slog.Logger
}

func (d *Detector) defaults() {
	if d.SysRoot == "" {
		d.SysRoot = "/sys"
	}
	if d.ListPCI == nil {
		d.ListPCI = runLspci
	}
	if d.MemTotal == nil {
		d.MemTotal = sysinfoMemTotal
	}
	if d.NumCPU == nil {
		d.NumCPU = runtime.NumCPU
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
}

// Detect gathers Hardware for span. Lookups that fail leave their field
// unknown.
func (d Detector) Detect(ctx context.Context, span geometry.Span) Hardware {
	d.defaults()

	hw := Hardware{
		CPUThreads: d.NumCPU(),
		SpanPixels: int64(span.Width) * int64(span.Height),
	}

	if total, err := d.MemTotal(); err != nil {
		d.Logger.Debug("memory lookup failed", "error", err)
	} else {
		hw.MemGiB = float64(total) / (1 << 30)
	}

	if out, err := d.ListPCI(ctx); err != nil {
		d.Logger.Debug("lspci failed", "error", err)
	} else {
		hw.GPUModel = BestGPU(ParseGPUs(out))
	}

	if vram, ok := maxVRAM(d.SysRoot); ok {
		hw.VRAMGiB = float64(vram) / (1 << 30)
	}

	d.Logger.Debug("hardware", "cpu_threads", hw.CPUThreads, "mem_gib", hw.MemGiB,
		"span_pixels", hw.SpanPixels, "gpu", hw.GPUModel, "vram_gib", hw.VRAMGiB)
	return hw
}

// Tune detects the hardware and computes a Profile for span.
func (d Detector) Tune(ctx context.Context, span geometry.Span) Profile {
	return Compute(d.Detect(ctx, span))
}

func runLspci(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, lspciTimeout)
	defer cancel()
	return exec.CommandContext(ctx, "lspci", "-nn").Output()
}

func sysinfoMemTotal() (uint64, error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0, err
	}
	return uint64(info.Totalram) * uint64(info.Unit), nil
}

var gpuClasses = []string{"VGA compatible controller", "3D controller", "Display controller"}

// ParseGPUs returns the display controller descriptions in lspci output.
func ParseGPUs(lspci []byte) []string {
	var models []string
	scanner := bufio.NewScanner(bytes.NewReader(lspci))
	for scanner.Scan() {
		line := scanner.Text()
		if !containsAny(line, gpuClasses...) {
			continue
		}
		// "01:00.0 VGA compatible controller [0300]: AMD ..." keeps the part
		// after the first colon that follows the class.
		_, rest, ok := strings.Cut(line, "]: ")
		if !ok {
			_, rest, _ = strings.Cut(line, ": ")
		}
		if rest = strings.TrimSpace(rest); rest != "" {
			models = append(models, rest)
		}
	}
	return models
}

// BestGPU returns the highest ranked model, or "" if there is none.
func BestGPU(models []string) string {
	best, bestScore := "", 0
	for _, m := range models {
		if s := gpuScore(m); best == "" || s > bestScore {
			best, bestScore = m, s
		}
	}
	return best
}

// maxVRAM returns the largest mem_info_vram_total of the DRM cards under
// sysRoot. Only amdgpu exposes it.
func maxVRAM(sysRoot string) (uint64, bool) {
	entries, err := os.ReadDir(filepath.Join(sysRoot, "class", "drm"))
	if err != nil {
		return 0, false
	}
	var best uint64
	found := false
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "card") || strings.Contains(name, "-") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(sysRoot, "class", "drm", name, "device", "mem_info_vram_total"))
		if err != nil {
			continue
		}
		v, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
		if err != nil {
			continue
		}
		if !found || v > best {
			best, found = v, true
		}
	}
	return best, found
}
