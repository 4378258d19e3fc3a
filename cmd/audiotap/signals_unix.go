//go:build !windows

package main

import (
	"os"
	"syscall"
)

var triggerSignals = []os.Signal{syscall.SIGUSR1, syscall.SIGUSR2}

// triggerState maps a trigger signal to a press (true) or release (false).
func triggerState(sig os.Signal) (pressed, ok bool) {
	switch sig {
	case syscall.SIGUSR1:
		return true, true
	case syscall.SIGUSR2:
		return false, true
	}
	return false, false
}
