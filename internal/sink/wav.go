// Package sink holds consumers for delivered PCM chunks.
package sink

import (
	"errors"
	"fmt"
	"os"
	"sync"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/petems/audiotap/internal/delivery"
	"github.com/petems/audiotap/internal/resample"
)

const (
	wavBitDepth = 16
	wavChannels = 1
	wavPCM      = 1
)

// WAVWriter appends delivered chunks to a 16 kHz mono 16-bit WAV file.
type WAVWriter struct {
	mu     sync.Mutex
	file   *os.File
	enc    *wav.Encoder
	buf    *goaudio.IntBuffer
	frames int
	closed bool
}

// NewWAVWriter creates (or truncates) path.
func NewWAVWriter(path string) (*WAVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create wav: %w", err)
	}

	return &WAVWriter{
		file: f,
		enc:  wav.NewEncoder(f, resample.OutputRate, wavBitDepth, wavChannels, wavPCM),
		buf: &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: wavChannels, SampleRate: resample.OutputRate},
			SourceBitDepth: wavBitDepth,
		},
	}, nil
}

// Consume decodes a little-endian PCM chunk and appends it.
func (w *WAVWriter) Consume(chunk []byte) error {
	samples := delivery.DecodePCM16LE(chunk)
	if len(samples) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return os.ErrClosed
	}

	data := w.buf.Data[:0]
	for _, s := range samples {
		data = append(data, int(s))
	}
	w.buf.Data = data

	if err := w.enc.Write(w.buf); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	w.frames += len(samples)
	return nil
}

// Frames returns how many samples have been written so far.
func (w *WAVWriter) Frames() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.frames
}

// Close finalizes the header and closes the file.
func (w *WAVWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	return errors.Join(w.enc.Close(), w.file.Close())
}
