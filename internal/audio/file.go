package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CodeInvalidFile is the StartError code for unreadable WAV input.
const CodeInvalidFile = -3

// FileOptions controls WAV replay.
type FileOptions struct {
	// FramesPerBuffer is the number of frames per callback. Defaults to 480.
	FramesPerBuffer int
	// Realtime paces callbacks at the file's sample rate instead of as fast
	// as possible.
	Realtime bool
}

// FileSource replays a WAV file through the capture pipeline, e.g. for
// offline conversion.
type FileSource struct {
	path string
	opts FileOptions
	log  zerolog.Logger

	mu      sync.Mutex
	quit    chan struct{}
	stopped bool
	wg      sync.WaitGroup
	done    chan struct{}
	err     error
}

// NewFileSource prepares a replay of the WAV file at path. The file is
// opened on Start.
func NewFileSource(path string, opts FileOptions, log zerolog.Logger) *FileSource {
	if opts.FramesPerBuffer <= 0 {
		opts.FramesPerBuffer = 480
	}
	return &FileSource{
		path: path,
		opts: opts,
		log:  log.With().Str("file", path).Logger(),
		done: make(chan struct{}),
	}
}

func (s *FileSource) Start(handle uuid.UUID, cb FrameCallback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.quit != nil {
		return &StartError{Code: CodeAlreadyStarted, Err: errors.New("file source already started")}
	}

	f, err := os.Open(s.path)
	if err != nil {
		return &StartError{Code: CodeInvalidFile, Err: err}
	}

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		f.Close()
		return &StartError{Code: CodeInvalidFile, Err: fmt.Errorf("not a valid WAV file: %s", s.path)}
	}

	if err := checkFormat(int(decoder.NumChans), int(decoder.SampleRate)); err != nil {
		f.Close()
		return err
	}
	if decoder.BitDepth == 0 || decoder.BitDepth > 32 {
		f.Close()
		return &StartError{Code: CodeInvalidFormat, Err: fmt.Errorf("unsupported bit depth %d", decoder.BitDepth)}
	}

	s.log.Debug().
		Uint32("rate", decoder.SampleRate).
		Uint16("channels", decoder.NumChans).
		Uint16("bit_depth", decoder.BitDepth).
		Msg("Replaying WAV file")

	s.quit = make(chan struct{})
	s.wg.Add(1)
	go s.run(f, decoder, handle, cb, s.quit)
	return nil
}

func (s *FileSource) run(f *os.File, decoder *wav.Decoder, handle uuid.UUID, cb FrameCallback, quit <-chan struct{}) {
	defer s.wg.Done()
	defer f.Close()

	channels := int(decoder.NumChans)
	rate := int(decoder.SampleRate)
	scale := float32(int64(1) << (decoder.BitDepth - 1))

	intBuf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: rate},
		Data:           make([]int, s.opts.FramesPerBuffer*channels),
		SourceBitDepth: int(decoder.BitDepth),
	}
	samples := make([]float32, len(intBuf.Data))

	var normalizer *rateNormalizer
	if needsNormalizing(rate) {
		s.log.Info().Int("file_rate", rate).Int("rate", NormalizedRate).Msg("Normalizing file rate")
		normalizer = newRateNormalizer(channels, rate, s.opts.FramesPerBuffer)
	}

	var ticker *time.Ticker
	if s.opts.Realtime && rate > 0 {
		ticker = time.NewTicker(time.Duration(s.opts.FramesPerBuffer) * time.Second / time.Duration(rate))
		defer ticker.Stop()
	}

	defer close(s.done)
	for {
		select {
		case <-quit:
			return
		default:
		}

		n, err := decoder.PCMBuffer(intBuf)
		eof := errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
		if err != nil && !eof {
			s.err = err
			s.log.Error().Err(err).Msg("Failed to decode WAV data")
			return
		}
		if n == 0 {
			return
		}

		for i := 0; i < n; i++ {
			samples[i] = float32(intBuf.Data[i]) / scale
		}

		if ticker != nil {
			select {
			case <-ticker.C:
			case <-quit:
				return
			}
		}

		buf := Buffer{
			Samples:    samples[:n],
			Frames:     n / channels,
			Channels:   channels,
			SampleRate: rate,
		}
		if normalizer != nil {
			buf = normalizer.Process(buf)
		}
		cb(handle, buf)
		if eof {
			return
		}
	}
}

// Done is closed once the whole file has been replayed (or decoding failed).
func (s *FileSource) Done() <-chan struct{} {
	return s.done
}

// Err returns the decode error that ended the replay early, if any. Only
// meaningful after Done is closed.
func (s *FileSource) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

func (s *FileSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.quit == nil || s.stopped {
		return nil
	}
	s.stopped = true
	close(s.quit)
	s.wg.Wait()
	return nil
}

func (s *FileSource) ListDevices() ([]AudioDevice, error) {
	return []AudioDevice{{ID: s.path, Name: s.path, Default: true}}, nil
}

func (s *FileSource) Close() error {
	return s.Stop()
}
