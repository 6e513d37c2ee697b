// Package hotkey registers a global keyboard shortcut that triggers an
// immediate capture.
package hotkey

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnsupported reports that this platform has no global hotkey registrar.
var ErrUnsupported = errors.New("global hotkeys are not supported on this platform")

// Modifier is a bit set of modifier keys.
type Modifier uint8

const (
	ModCtrl Modifier = 1 << iota
	ModShift
	ModAlt
	ModSuper
)

var modifierNames = []struct {
	mod     Modifier
	name    string
	aliases []string
}{
	{ModCtrl, "ctrl", []string{"ctrl", "control"}},
	{ModShift, "shift", []string{"shift"}},
	{ModAlt, "alt", []string{"alt", "option"}},
	{ModSuper, "super", []string{"super", "win", "cmd", "meta"}},
}

var namedKeys = map[string]bool{
	"space": true, "enter": true, "tab": true, "esc": true, "printscreen": true,
	"insert": true, "delete": true, "home": true, "end": true, "pageup": true, "pagedown": true,
}

// Combo is a parsed key combination such as ctrl+shift+alt+s.
type Combo struct {
	Modifiers Modifier
	Key       string
}

// Parse reads a combination written as modifiers and one key joined by "+".
// Keys are a single letter or digit, f1-f24, or one of the named keys.
func Parse(value string) (Combo, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(value)), "+")
	var combo Combo
	for _, raw := range parts {
		part := strings.TrimSpace(raw)
		if part == "" {
			return Combo{}, fmt.Errorf("hotkey %q: empty key", value)
		}
		if mod, ok := lookupModifier(part); ok {
			if combo.Modifiers&mod != 0 {
				return Combo{}, fmt.Errorf("hotkey %q: %s repeated", value, part)
			}
			combo.Modifiers |= mod
			continue
		}
		if combo.Key != "" {
			return Combo{}, fmt.Errorf("hotkey %q: more than one non-modifier key", value)
		}
		key, ok := normalizeKey(part)
		if !ok {
			return Combo{}, fmt.Errorf("hotkey %q: unknown key %q", value, part)
		}
		combo.Key = key
	}
	if combo.Key == "" {
		return Combo{}, fmt.Errorf("hotkey %q: missing key", value)
	}
	if combo.Modifiers == 0 {
		return Combo{}, fmt.Errorf("hotkey %q: at least one modifier is required", value)
	}
	return combo, nil
}

func lookupModifier(part string) (Modifier, bool) {
	for _, m := range modifierNames {
		for _, alias := range m.aliases {
			if part == alias {
				return m.mod, true
			}
		}
	}
	return 0, false
}

func normalizeKey(part string) (string, bool) {
	switch part {
	case "escape":
		part = "esc"
	case "return":
		part = "enter"
	case "prtsc", "print":
		part = "printscreen"
	}
	if len(part) == 1 && (part[0] >= 'a' && part[0] <= 'z' || part[0] >= '0' && part[0] <= '9') {
		return part, true
	}
	if n, ok := functionKey(part); ok && n >= 1 && n <= 24 {
		return part, true
	}
	return part, namedKeys[part]
}

func functionKey(key string) (int, bool) {
	if len(key) < 2 || key[0] != 'f' {
		return 0, false
	}
	n := 0
	for _, r := range key[1:] {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

// String renders the combination in canonical modifier order.
func (c Combo) String() string {
	var parts []string
	for _, m := range modifierNames {
		if c.Modifiers&m.mod != 0 {
			parts = append(parts, m.name)
		}
	}
	return strings.Join(append(parts, c.Key), "+")
}

// Event is one press of the registered combination.
type Event struct {
	Combo Combo
	At    time.Time
}

// Registrar delivers presses of one registered combination.
type Registrar interface {
	// Wait blocks until the combination is pressed or ctx is done.
	Wait(ctx context.Context) (Event, error)
	// Close unregisters the combination.
	Close() error
}

// Register claims combo system-wide. It returns an error wrapping
// ErrUnsupported on platforms without a native implementation.
func Register(combo Combo) (Registrar, error) {
	return register(combo)
}
