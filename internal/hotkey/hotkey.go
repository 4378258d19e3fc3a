package hotkey

import (
	"errors"
	"fmt"
	"strings"
)

// Manager defines the interface for global hotkey management
type Manager interface {
	Register(accel string, callback func(pressed bool)) error
	Unregister(accel string) error
	Close() error
}

// ErrUnsupported is returned by New on platforms without a hotkey backend.
var ErrUnsupported = errors.New("global hotkeys are not supported on this platform")

// Modifier is a bit set of modifier keys.
type Modifier uint8

const (
	ModCtrl Modifier = 1 << iota
	ModAlt
	ModShift
	ModSuper
)

// Accelerator is a parsed key combination such as "Ctrl+Shift+R".
type Accelerator struct {
	Mods Modifier
	// Key is the canonical key name: "A".."Z", "0".."9", "F1".."F12",
	// "Space", "Enter", "Tab" or "Escape".
	Key string
}

func (a Accelerator) String() string {
	var parts []string
	for _, m := range []struct {
		mod  Modifier
		name string
	}{{ModCtrl, "Ctrl"}, {ModAlt, "Alt"}, {ModShift, "Shift"}, {ModSuper, "Super"}} {
		if a.Mods&m.mod != 0 {
			parts = append(parts, m.name)
		}
	}
	return strings.Join(append(parts, a.Key), "+")
}

var modifierNames = map[string]Modifier{
	"ctrl":    ModCtrl,
	"control": ModCtrl,
	"alt":     ModAlt,
	"option":  ModAlt,
	"shift":   ModShift,
	"super":   ModSuper,
	"cmd":     ModSuper,
	"command": ModSuper,
	"meta":    ModSuper,
}

var namedKeys = map[string]string{
	"space":  "Space",
	"enter":  "Enter",
	"return": "Enter",
	"tab":    "Tab",
	"esc":    "Escape",
	"escape": "Escape",
}

// ParseAccelerator parses "Mod+Mod+Key". Names are case-insensitive and at
// least one modifier is required so the grab does not swallow plain typing.
func ParseAccelerator(accel string) (Accelerator, error) {
	parts := strings.Split(accel, "+")
	if len(parts) < 2 {
		return Accelerator{}, fmt.Errorf("hotkey %q: need at least one modifier and a key", accel)
	}

	var a Accelerator
	for _, p := range parts[:len(parts)-1] {
		mod, ok := modifierNames[strings.ToLower(strings.TrimSpace(p))]
		if !ok {
			return Accelerator{}, fmt.Errorf("hotkey %q: unknown modifier %q", accel, p)
		}
		a.Mods |= mod
	}

	key, err := canonicalKey(strings.TrimSpace(parts[len(parts)-1]))
	if err != nil {
		return Accelerator{}, fmt.Errorf("hotkey %q: %w", accel, err)
	}
	a.Key = key
	return a, nil
}

func canonicalKey(name string) (string, error) {
	lower := strings.ToLower(name)
	if k, ok := namedKeys[lower]; ok {
		return k, nil
	}
	if len(name) == 1 {
		c := strings.ToUpper(name)[0]
		if (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			return string(c), nil
		}
	}
	var n int
	if _, err := fmt.Sscanf(lower, "f%d", &n); err == nil && n >= 1 && n <= 12 && lower == fmt.Sprintf("f%d", n) {
		return fmt.Sprintf("F%d", n), nil
	}
	return "", fmt.Errorf("unsupported key %q", name)
}

// binding is one registered combination in a backend's own key codes.
type binding struct {
	code     int
	mods     uint
	callback func(pressed bool)
	held     bool
}

// bindings routes raw key events to callbacks, keyed by Accelerator.String.
// A press must match code and modifiers exactly. A release only needs the
// code of a held binding, since modifiers are often let go first. Presses
// repeated while the key is held are swallowed.
type bindings map[string]*binding

func (b bindings) dispatch(code int, mods uint, pressed bool) func(bool) {
	for _, bd := range b {
		if bd.code != code || bd.held == pressed {
			continue
		}
		if pressed && bd.mods != mods {
			continue
		}
		bd.held = pressed
		return bd.callback
	}
	return nil
}
