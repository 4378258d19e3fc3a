//go:build linux && cgo

package hotkey

/*
#cgo pkg-config: x11
#include <X11/Xlib.h>
#include <X11/XKBlib.h>
#include <X11/keysym.h>
#include <stdlib.h>

static Display* displayPtr = NULL;

static int openDisplay(void) {
    if (displayPtr == NULL) {
        displayPtr = XOpenDisplay(NULL);
        if (displayPtr != NULL) {
            // Held keys repeat as presses only, without synthetic releases.
            Bool supported;
            XkbSetDetectableAutoRepeat(displayPtr, True, &supported);
        }
    }
    return displayPtr != NULL;
}

static int keycodeFor(const char* name) {
    KeySym sym = XStringToKeysym(name);
    if (sym == NoSymbol) return 0;
    return XKeysymToKeycode(displayPtr, sym);
}

static void grabKey(int keycode, unsigned int modifiers) {
    Window root = DefaultRootWindow(displayPtr);
    // Grab with and without NumLock/CapsLock so the combo works either way.
    unsigned int extras[] = {0, Mod2Mask, LockMask, Mod2Mask | LockMask};
    for (int i = 0; i < 4; i++) {
        XGrabKey(displayPtr, keycode, modifiers | extras[i], root, False, GrabModeAsync, GrabModeAsync);
    }
    XSelectInput(displayPtr, root, KeyPressMask | KeyReleaseMask);
    XSync(displayPtr, False);
}

static void ungrabKey(int keycode, unsigned int modifiers) {
    Window root = DefaultRootWindow(displayPtr);
    unsigned int extras[] = {0, Mod2Mask, LockMask, Mod2Mask | LockMask};
    for (int i = 0; i < 4; i++) {
        XUngrabKey(displayPtr, keycode, modifiers | extras[i], root);
    }
    XSync(displayPtr, False);
}

static int checkEvent(int* keycode, unsigned int* state, int* pressed) {
    XEvent event;
    if (XPending(displayPtr) > 0) {
        XNextEvent(displayPtr, &event);
        if (event.type == KeyPress || event.type == KeyRelease) {
            *keycode = event.xkey.keycode;
            // NumLock and CapsLock are grabbed both ways, so ignore them here.
            *state = event.xkey.state & (ShiftMask | ControlMask | Mod1Mask | Mod4Mask);
            *pressed = (event.type == KeyPress) ? 1 : 0;
            return 1;
        }
    }
    return 0;
}
*/
import "C"

import (
	"fmt"
	"sync"
	"time"
	"unsafe"
)

type linuxManager struct {
	mu    sync.Mutex
	grabs bindings
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once
}

// New creates a new Linux hotkey manager using X11
func New() (Manager, error) {
	if C.openDisplay() == 0 {
		return nil, fmt.Errorf("%w: cannot open X display", ErrUnsupported)
	}

	mgr := &linuxManager{
		grabs: make(bindings),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}

	go mgr.eventLoop()

	return mgr, nil
}

// x11Keysym maps a canonical key name to its X keysym name.
func x11Keysym(key string) string {
	switch key {
	case "Space":
		return "space"
	case "Enter":
		return "Return"
	}
	if len(key) == 1 && key[0] >= 'A' && key[0] <= 'Z' {
		return string(key[0] + ('a' - 'A'))
	}
	return key
}

func x11Modifiers(mods Modifier) uint {
	var m uint
	if mods&ModCtrl != 0 {
		m |= uint(C.ControlMask)
	}
	if mods&ModAlt != 0 {
		m |= uint(C.Mod1Mask)
	}
	if mods&ModShift != 0 {
		m |= uint(C.ShiftMask)
	}
	if mods&ModSuper != 0 {
		m |= uint(C.Mod4Mask)
	}
	return m
}

func (m *linuxManager) Register(accel string, callback func(pressed bool)) error {
	a, err := ParseAccelerator(accel)
	if err != nil {
		return err
	}

	name := C.CString(x11Keysym(a.Key))
	defer C.free(unsafe.Pointer(name))

	m.mu.Lock()
	defer m.mu.Unlock()

	keycode := int(C.keycodeFor(name))
	if keycode == 0 {
		return fmt.Errorf("hotkey %q: no keycode for %s", accel, a.Key)
	}

	g := &binding{code: keycode, mods: x11Modifiers(a.Mods), callback: callback}
	C.grabKey(C.int(g.code), C.uint(g.mods))
	m.grabs[a.String()] = g
	return nil
}

func (m *linuxManager) eventLoop() {
	defer close(m.done)

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			var keycode, pressed C.int
			var state C.uint
			m.mu.Lock()
			var cb func(bool)
			if C.checkEvent(&keycode, &state, &pressed) != 0 {
				cb = m.grabs.dispatch(int(keycode), uint(state), pressed == 1)
			}
			m.mu.Unlock()

			if cb != nil {
				cb(pressed == 1)
			}
		}
	}
}

func (m *linuxManager) Unregister(accel string) error {
	a, err := ParseAccelerator(accel)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.grabs[a.String()]
	if !ok {
		return nil
	}
	C.ungrabKey(C.int(g.code), C.uint(g.mods))
	delete(m.grabs, a.String())
	return nil
}

func (m *linuxManager) Close() error {
	m.once.Do(func() {
		close(m.stop)
		<-m.done

		m.mu.Lock()
		for key, g := range m.grabs {
			C.ungrabKey(C.int(g.code), C.uint(g.mods))
			delete(m.grabs, key)
		}
		m.mu.Unlock()
	})
	return nil
}
