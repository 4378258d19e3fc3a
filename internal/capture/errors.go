package capture

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyCapturing is returned by Start while a session is active.
	ErrAlreadyCapturing = errors.New("already capturing")
	// ErrBackendStartFailed matches every *BackendStartError.
	ErrBackendStartFailed = errors.New("capture backend failed to start")
	// ErrUnsupportedPlatform is returned when the platform reports capture
	// as unavailable.
	ErrUnsupportedPlatform = errors.New("audio capture is not supported on this platform")
	// ErrLockUnavailable means a previous Start or Stop panicked half way
	// and the manager's state can no longer be trusted.
	ErrLockUnavailable = errors.New("capture state lock unavailable")
	ErrNilSink         = errors.New("nil sink")
)

// BackendStartError carries the audio source's diagnostic code.
type BackendStartError struct {
	Code int
	Err  error
}

func (e *BackendStartError) Error() string {
	return fmt.Sprintf("capture backend failed to start (code %d): %v", e.Code, e.Err)
}

func (e *BackendStartError) Unwrap() error { return e.Err }

func (e *BackendStartError) Is(target error) bool { return target == ErrBackendStartFailed }
