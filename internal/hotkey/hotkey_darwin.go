//go:build darwin

package hotkey

/*
#cgo LDFLAGS: -framework Carbon
#include <Carbon/Carbon.h>

// Forward declaration for Go callback
extern void goHotkeyCallback(int id, int pressed);

static int handlerInstalled = 0;

// Event handler for hotkeys
static OSStatus hotkeyHandler(EventHandlerCallRef nextHandler, EventRef theEvent, void* userData) {
    EventHotKeyID hkRef;
    GetEventParameter(theEvent, kEventParamDirectObject, typeEventHotKeyID, NULL, sizeof(hkRef), NULL, &hkRef);

    UInt32 eventKind = GetEventKind(theEvent);
    int pressed = (eventKind == kEventHotKeyPressed) ? 1 : 0;

    goHotkeyCallback((int)hkRef.id, pressed);

    return noErr;
}

// Register hotkey with Carbon; returns the ref or NULL.
static EventHotKeyRef registerHotkey(UInt32 keyCode, UInt32 modifiers, UInt32 id) {
    if (!handlerInstalled) {
        EventTypeSpec eventTypes[2];
        eventTypes[0].eventClass = kEventClassKeyboard;
        eventTypes[0].eventKind = kEventHotKeyPressed;
        eventTypes[1].eventClass = kEventClassKeyboard;
        eventTypes[1].eventKind = kEventHotKeyReleased;

        EventHandlerUPP handlerUPP = NewEventHandlerUPP(hotkeyHandler);
        InstallApplicationEventHandler(handlerUPP, 2, eventTypes, NULL, NULL);
        handlerInstalled = 1;
    }

    EventHotKeyRef hotKeyRef = NULL;
    EventHotKeyID hotKeyID;
    hotKeyID.signature = 'atap';
    hotKeyID.id = id;

    OSStatus status = RegisterEventHotKey(keyCode, modifiers, hotKeyID, GetApplicationEventTarget(), 0, &hotKeyRef);
    return (status == noErr) ? hotKeyRef : NULL;
}

static void unregisterHotkey(EventHotKeyRef ref) {
    UnregisterEventHotKey(ref);
}

static void pumpEvents(void) {
    RunCurrentEventLoop(0.05);
}
*/
import "C"

import (
	"fmt"
	"runtime"
	"sync"
)

// Carbon virtual key codes (kVK_*).
var carbonKeys = map[string]C.UInt32{
	"A": 0x00, "S": 0x01, "D": 0x02, "F": 0x03, "H": 0x04, "G": 0x05, "Z": 0x06,
	"X": 0x07, "C": 0x08, "V": 0x09, "B": 0x0B, "Q": 0x0C, "W": 0x0D, "E": 0x0E,
	"R": 0x0F, "Y": 0x10, "T": 0x11, "O": 0x1F, "U": 0x20, "I": 0x22, "P": 0x23,
	"L": 0x25, "J": 0x26, "K": 0x28, "N": 0x2D, "M": 0x2E,
	"1": 0x12, "2": 0x13, "3": 0x14, "4": 0x15, "6": 0x16, "5": 0x17, "9": 0x19,
	"7": 0x1A, "8": 0x1C, "0": 0x1D,
	"Enter": 0x24, "Tab": 0x30, "Space": 0x31, "Escape": 0x35,
	"F1": 0x7A, "F2": 0x78, "F3": 0x63, "F4": 0x76, "F5": 0x60, "F6": 0x61,
	"F7": 0x62, "F8": 0x64, "F9": 0x65, "F10": 0x6D, "F11": 0x67, "F12": 0x6F,
}

func carbonModifiers(mods Modifier) C.UInt32 {
	var m C.UInt32
	if mods&ModSuper != 0 {
		m |= 0x100 // cmdKey
	}
	if mods&ModShift != 0 {
		m |= 0x200 // shiftKey
	}
	if mods&ModAlt != 0 {
		m |= 0x800 // optionKey
	}
	if mods&ModCtrl != 0 {
		m |= 0x1000 // controlKey
	}
	return m
}

type darwinHotkey struct {
	id       int
	ref      C.EventHotKeyRef
	callback func(bool)
}

type darwinManager struct {
	mu     sync.Mutex
	nextID int
	keys   map[string]*darwinHotkey
	stop   chan struct{}
	once   sync.Once
}

var (
	globalMu      sync.Mutex
	globalManager *darwinManager
)

// New creates a new macOS hotkey manager using Carbon
func New() (Manager, error) {
	mgr := &darwinManager{
		keys: make(map[string]*darwinHotkey),
		stop: make(chan struct{}),
	}

	globalMu.Lock()
	globalManager = mgr
	globalMu.Unlock()

	go mgr.eventLoop()

	return mgr, nil
}

//export goHotkeyCallback
func goHotkeyCallback(id C.int, pressed C.int) {
	globalMu.Lock()
	mgr := globalManager
	globalMu.Unlock()
	if mgr == nil {
		return
	}

	mgr.mu.Lock()
	var cb func(bool)
	for _, k := range mgr.keys {
		if k.id == int(id) {
			cb = k.callback
			break
		}
	}
	mgr.mu.Unlock()

	if cb != nil {
		cb(pressed == 1)
	}
}

func (m *darwinManager) eventLoop() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		select {
		case <-m.stop:
			return
		default:
			C.pumpEvents()
		}
	}
}

func (m *darwinManager) Register(accel string, callback func(pressed bool)) error {
	a, err := ParseAccelerator(accel)
	if err != nil {
		return err
	}
	keyCode, ok := carbonKeys[a.Key]
	if !ok {
		return fmt.Errorf("hotkey %q: no key code for %s", accel, a.Key)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	ref := C.registerHotkey(keyCode, carbonModifiers(a.Mods), C.UInt32(m.nextID))
	if ref == nil {
		return fmt.Errorf("failed to register hotkey %q", accel)
	}

	m.keys[a.String()] = &darwinHotkey{id: m.nextID, ref: ref, callback: callback}
	return nil
}

func (m *darwinManager) Unregister(accel string) error {
	a, err := ParseAccelerator(accel)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if k, ok := m.keys[a.String()]; ok {
		C.unregisterHotkey(k.ref)
		delete(m.keys, a.String())
	}
	return nil
}

func (m *darwinManager) Close() error {
	m.once.Do(func() {
		close(m.stop)

		m.mu.Lock()
		for key, k := range m.keys {
			C.unregisterHotkey(k.ref)
			delete(m.keys, key)
		}
		m.mu.Unlock()

		globalMu.Lock()
		if globalManager == m {
			globalManager = nil
		}
		globalMu.Unlock()
	})
	return nil
}
