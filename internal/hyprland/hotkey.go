package hyprland

import (
	"context"
	"fmt"
	"strings"
)

// Hotkey is a keybinding given as "MODS, KEY", e.g. "SUPER SHIFT, F12".
type Hotkey struct {
	Mods string `json:"mods"`
	Key  string `json:"key"`
}

func (h Hotkey) String() string {
	return h.Mods + ", " + h.Key
}

// ParseHotkey parses "MODS, KEY". An empty string yields the zero Hotkey.
func ParseHotkey(s string) (Hotkey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Hotkey{}, nil
	}
	mods, key, ok := strings.Cut(s, ",")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return Hotkey{}, fmt.Errorf("invalid hotkey %q: expected \"MODS, KEY\"", s)
	}
	if _, err := ModMask(mods); err != nil {
		return Hotkey{}, err
	}
	return Hotkey{Mods: strings.TrimSpace(mods), Key: key}, nil
}

// IsZero reports whether no hotkey is configured.
func (h Hotkey) IsZero() bool {
	return h.Key == ""
}

var modBits = map[string]uint32{
	"SHIFT":   1,
	"CAPS":    2,
	"CTRL":    4,
	"CONTROL": 4,
	"ALT":     8,
	"MOD2":    16,
	"MOD3":    32,
	"SUPER":   64,
	"WIN":     64,
	"LOGO":    64,
	"MOD4":    64,
	"MOD5":    128,
}

// ModMask converts a modifier list such as "SUPER SHIFT" into Hyprland's
// modmask bit set.
func ModMask(mods string) (uint32, error) {
	var mask uint32
	for _, field := range strings.FieldsFunc(strings.ToUpper(mods), func(r rune) bool {
		return r == ' ' || r == '_' || r == '+' || r == '\t'
	}) {
		bit, ok := modBits[field]
		if !ok {
			return 0, fmt.Errorf("unknown modifier %q", field)
		}
		mask |= bit
	}
	return mask, nil
}

type bind struct {
	Modmask uint32 `json:"modmask"`
	Key     string `json:"key"`
}

// BindExists reports whether a keybinding for hk is already registered.
func (c *Client) BindExists(ctx context.Context, hk Hotkey) (bool, error) {
	mask, err := ModMask(hk.Mods)
	if err != nil {
		return false, err
	}
	var binds []bind
	if err := c.query(ctx, "binds", &binds); err != nil {
		return false, err
	}
	for _, b := range binds {
		if b.Modmask == mask && strings.EqualFold(b.Key, hk.Key) {
			return true, nil
		}
	}
	return false, nil
}

// BindExec registers hk to run command.
func (c *Client) BindExec(ctx context.Context, hk Hotkey, command string) error {
	return c.Keyword(ctx, "bind", hk.String()+", exec, "+command)
}

// Unbind removes the keybinding for hk.
func (c *Client) Unbind(ctx context.Context, hk Hotkey) error {
	return c.Keyword(ctx, "unbind", hk.String())
}
