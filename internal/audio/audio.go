package audio

import (
	"fmt"

	"github.com/google/uuid"
)

// Buffer is one delivery from a capture backend. Samples are interleaved and
// only valid for the duration of the callback.
type Buffer struct {
	Samples    []float32
	Frames     int
	Channels   int
	SampleRate int
}

// FrameCallback is invoked by a Source for every captured buffer, passing
// back the handle given to Start. Calls for one Source never overlap.
type FrameCallback func(handle uuid.UUID, buf Buffer)

// Source defines the interface for audio capture backends
type Source interface {
	// Start registers cb and begins delivering buffers tagged with handle.
	Start(handle uuid.UUID, cb FrameCallback) error
	// Stop halts delivery and returns only once no callback is running.
	Stop() error
	ListDevices() ([]AudioDevice, error)
	Close() error
}

// AudioDevice represents an audio input device
type AudioDevice struct {
	ID         string
	Name       string
	Channels   int
	SampleRate int
	Default    bool
}

// StartError is returned by Source.Start with the backend's diagnostic code.
type StartError struct {
	Code int
	Err  error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("capture start failed (code %d): %v", e.Code, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }
