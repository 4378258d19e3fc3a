//go:build windows

package main

import "os"

// Windows has no user signals, so capture runs until Ctrl+C.
var triggerSignals []os.Signal

func triggerState(os.Signal) (pressed, ok bool) {
	return false, false
}
