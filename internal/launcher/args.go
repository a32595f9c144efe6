package launcher

import (
	"slices"
	"strconv"
	"strings"

	"github.com/jmylchreest/hyprfinity/internal/geometry"
)

// Separator ends Gamescope's own options; the rest is the command it runs.
const Separator = "--"

// Gamescope size flags with their long spellings.
var (
	outputWidthFlags   = []string{"-W", "--output-width"}
	outputHeightFlags  = []string{"-H", "--output-height"}
	internalWidthFlags = []string{"-w", "--nested-width"}
	internalHeightFlag = []string{"-h", "--nested-height"}
)

// SplitArgs splits args at the first "--". post is nil when there is no
// separator.
func SplitArgs(args []string) (pre, post []string) {
	i := slices.Index(args, Separator)
	if i < 0 {
		return args, nil
	}
	return args[:i], args[i+1:]
}

// HasFlag reports whether any of names appears before the first "--".
// Matching is case-sensitive; "-W=3840", "--output-width=3840" and the
// attached short form "-W3840" all count.
func HasFlag(args []string, names ...string) bool {
	pre, _ := SplitArgs(args)
	for _, arg := range pre {
		for _, name := range names {
			if arg == name || strings.HasPrefix(arg, name+"=") {
				return true
			}
			if len(name) == 2 && !strings.HasPrefix(name, "--") && strings.HasPrefix(arg, name) && !strings.HasPrefix(arg, "--") {
				return true
			}
		}
	}
	return false
}

// InjectSizeFlags adds -W/-H/-w/-h for target unless the caller already
// set them. Injected flags go before the "--" separator. args is not
// modified.
func InjectSizeFlags(args []string, target geometry.RenderTarget) []string {
	pre, post := SplitArgs(args)
	out := slices.Clone(pre)

	add := func(names []string, v int) {
		if !HasFlag(pre, names...) {
			out = append(out, names[0], strconv.Itoa(v))
		}
	}
	add(outputWidthFlags, target.Output.Width)
	add(outputHeightFlags, target.Output.Height)
	add(internalWidthFlags, target.Internal.Width)
	add(internalHeightFlag, target.Internal.Height)

	if post != nil {
		out = append(append(out, Separator), post...)
	}
	return out
}
