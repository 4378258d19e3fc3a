package hotkey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAccelerator(t *testing.T) {
	tests := []struct {
		name    string
		accel   string
		want    Accelerator
		wantErr bool
	}{
		{name: "alt space", accel: "Alt+Space", want: Accelerator{Mods: ModAlt, Key: "Space"}},
		{name: "case insensitive", accel: "ctrl+shift+r", want: Accelerator{Mods: ModCtrl | ModShift, Key: "R"}},
		{name: "mac names", accel: "Cmd+Option+5", want: Accelerator{Mods: ModSuper | ModAlt, Key: "5"}},
		{name: "function key", accel: "Control+F12", want: Accelerator{Mods: ModCtrl, Key: "F12"}},
		{name: "spaces around parts", accel: " Ctrl + Return ", want: Accelerator{Mods: ModCtrl, Key: "Enter"}},
		{name: "no modifier", accel: "Space", wantErr: true},
		{name: "unknown modifier", accel: "Hyper+A", wantErr: true},
		{name: "unknown key", accel: "Ctrl+PageUp", wantErr: true},
		{name: "function key out of range", accel: "Ctrl+F13", wantErr: true},
		{name: "trailing junk on function key", accel: "Ctrl+F1x", wantErr: true},
		{name: "empty", accel: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAccelerator(tt.accel)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAcceleratorString(t *testing.T) {
	a := Accelerator{Mods: ModShift | ModCtrl | ModSuper, Key: "K"}
	assert.Equal(t, "Ctrl+Shift+Super+K", a.String())

	parsed, err := ParseAccelerator(a.String())
	require.NoError(t, err)
	assert.Equal(t, a, parsed)
}

type recorder struct {
	events []bool
}

func (r *recorder) fire(cb func(bool), pressed bool) {
	if cb != nil {
		r.events = append(r.events, pressed)
		cb(pressed)
	}
}

func TestDispatchMatchesModifiers(t *testing.T) {
	var plain, shifted []bool
	b := bindings{
		"Ctrl+R":       {code: 27, mods: 4, callback: func(p bool) { plain = append(plain, p) }},
		"Ctrl+Shift+R": {code: 27, mods: 5, callback: func(p bool) { shifted = append(shifted, p) }},
	}

	var r recorder
	r.fire(b.dispatch(27, 5, true), true)
	r.fire(b.dispatch(27, 5, false), false)
	r.fire(b.dispatch(27, 4, true), true)
	r.fire(b.dispatch(27, 4, false), false)

	assert.Equal(t, []bool{true, false}, shifted)
	assert.Equal(t, []bool{true, false}, plain)
	assert.Nil(t, b.dispatch(27, 1, true), "unregistered modifier set")
	assert.Nil(t, b.dispatch(28, 4, true), "unregistered key")
}

func TestDispatchSwallowsAutoRepeat(t *testing.T) {
	b := bindings{"Ctrl+R": {code: 27, mods: 4, callback: func(bool) {}}}

	var r recorder
	r.fire(b.dispatch(27, 4, true), true)
	// Held key keeps sending presses.
	r.fire(b.dispatch(27, 4, true), true)
	r.fire(b.dispatch(27, 4, true), true)
	r.fire(b.dispatch(27, 4, false), false)

	assert.Equal(t, []bool{true, false}, r.events)
}

func TestDispatchReleaseAfterModifier(t *testing.T) {
	b := bindings{"Ctrl+R": {code: 27, mods: 4, callback: func(bool) {}}}

	var r recorder
	r.fire(b.dispatch(27, 4, true), true)
	// Ctrl let go before R, so the release carries no modifiers.
	r.fire(b.dispatch(27, 0, false), false)
	// A stray release with nothing held is ignored.
	r.fire(b.dispatch(27, 0, false), false)

	assert.Equal(t, []bool{true, false}, r.events)
}
