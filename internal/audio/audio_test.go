package audio

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestWAV(t *testing.T, rate, channels int, data []int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "in.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	require.NoError(t, enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())
	return path
}

func TestFileSourceReplaysWholeFile(t *testing.T) {
	data := make([]int, 2*1000)
	for i := range data {
		data[i] = 16384
	}
	path := writeTestWAV(t, 48000, 2, data)

	src := NewFileSource(path, FileOptions{FramesPerBuffer: 128}, zerolog.Nop())
	handle := uuid.New()

	var mu sync.Mutex
	frames := 0
	calls := 0
	err := src.Start(handle, func(h uuid.UUID, buf Buffer) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, handle, h)
		assert.Equal(t, 2, buf.Channels)
		assert.Equal(t, 48000, buf.SampleRate)
		assert.Len(t, buf.Samples, buf.Frames*2)
		assert.InDelta(t, 0.5, buf.Samples[0], 1e-6)
		frames += buf.Frames
		calls++
	})
	require.NoError(t, err)

	select {
	case <-src.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("replay did not finish")
	}
	require.NoError(t, src.Stop())
	require.NoError(t, src.Err())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1000, frames)
	assert.Equal(t, 8, calls) // 7 full buffers of 128 plus 104 frames
}

func TestFileSourceStopWaitsForCallback(t *testing.T) {
	path := writeTestWAV(t, 16000, 1, make([]int, 16000))
	src := NewFileSource(path, FileOptions{FramesPerBuffer: 160, Realtime: true}, zerolog.Nop())

	var mu sync.Mutex
	inCallback := false
	afterStop := false
	stopped := false

	require.NoError(t, src.Start(uuid.New(), func(uuid.UUID, Buffer) {
		mu.Lock()
		inCallback = true
		if stopped {
			afterStop = true
		}
		mu.Unlock()

		time.Sleep(time.Millisecond)

		mu.Lock()
		inCallback = false
		mu.Unlock()
	}))

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, src.Stop())

	mu.Lock()
	stopped = true
	assert.False(t, inCallback, "Stop returned while a callback was running")
	mu.Unlock()

	time.Sleep(30 * time.Millisecond)
	mu.Lock()
	assert.False(t, afterStop, "callback ran after Stop returned")
	mu.Unlock()

	require.NoError(t, src.Stop(), "second Stop is a no-op")
}

func TestFileSourceRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.wav")
	require.NoError(t, os.WriteFile(path, []byte("not a wav file at all"), 0644))

	err := NewFileSource(path, FileOptions{}, zerolog.Nop()).Start(uuid.New(), func(uuid.UUID, Buffer) {})

	var se *StartError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, CodeInvalidFile, se.Code)
}

func TestFileSourceMissingFile(t *testing.T) {
	err := NewFileSource(filepath.Join(t.TempDir(), "nope.wav"), FileOptions{}, zerolog.Nop()).
		Start(uuid.New(), func(uuid.UUID, Buffer) {})

	var se *StartError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, CodeInvalidFile, se.Code)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNeedsNormalizing(t *testing.T) {
	assert.False(t, needsNormalizing(48000))
	assert.False(t, needsNormalizing(16000))
	assert.False(t, needsNormalizing(96000))
	assert.True(t, needsNormalizing(44100))
	assert.True(t, needsNormalizing(22050))
	assert.True(t, needsNormalizing(8000))
	assert.False(t, needsNormalizing(0))
}

func TestCheckFormat(t *testing.T) {
	require.NoError(t, checkFormat(2, 44100))

	for _, tt := range []struct {
		name           string
		channels, rate int
	}{
		{name: "no channels", channels: 0, rate: 48000},
		{name: "zero rate", channels: 1, rate: 0},
		{name: "negative rate", channels: 2, rate: -48000},
	} {
		t.Run(tt.name, func(t *testing.T) {
			var se *StartError
			require.ErrorAs(t, checkFormat(tt.channels, tt.rate), &se)
			assert.Equal(t, CodeInvalidFormat, se.Code)
		})
	}
}

func TestFileSourceNormalizes44k(t *testing.T) {
	data := make([]int, 2*44100)
	for i := range data {
		data[i] = 8192
	}
	path := writeTestWAV(t, 44100, 2, data)

	src := NewFileSource(path, FileOptions{FramesPerBuffer: 441}, zerolog.Nop())

	var mu sync.Mutex
	frames := 0
	require.NoError(t, src.Start(uuid.New(), func(_ uuid.UUID, buf Buffer) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, NormalizedRate, buf.SampleRate)
		assert.Equal(t, 2, buf.Channels)
		assert.Len(t, buf.Samples, buf.Frames*2)
		frames += buf.Frames
	}))

	select {
	case <-src.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("replay did not finish")
	}
	require.NoError(t, src.Stop())
	require.NoError(t, src.Err())

	mu.Lock()
	defer mu.Unlock()
	// One second at 44.1 kHz comes out as roughly 48000 frames.
	assert.InDelta(t, 48000, frames, 500)
}

func TestRateNormalizerConvertsTo48k(t *testing.T) {
	n := newRateNormalizer(2, 44100, 441)

	total := 0
	for i := 0; i < 100; i++ {
		in := make([]float32, 441*2)
		for j := range in {
			in[j] = 0.25
		}
		out := n.Process(Buffer{Samples: in, Frames: 441, Channels: 2, SampleRate: 44100})
		assert.Equal(t, NormalizedRate, out.SampleRate)
		assert.Equal(t, 2, out.Channels)
		assert.Len(t, out.Samples, out.Frames*2)
		total += out.Frames
	}

	// One second of input should come out close to 48000 frames; the
	// resampler holds back a few frames of latency.
	assert.InDelta(t, 48000, total, 500)
}
