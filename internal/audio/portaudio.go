package audio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/gordonklaus/portaudio"
	"github.com/petems/audiotap/internal/config"
	"github.com/rs/zerolog"
)

// Diagnostic codes for failures that do not come from PortAudio itself.
const (
	CodeDeviceNotFound = -1
	CodeAlreadyStarted = -2
	CodeInvalidFormat  = -4
)

type portAudioSource struct {
	cfg config.AudioConfig
	log zerolog.Logger

	mu     sync.Mutex
	stream *portaudio.Stream
}

// NewPortAudio creates a new PortAudio-based capture source
func NewPortAudio(cfg config.AudioConfig, log zerolog.Logger) (Source, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return &portAudioSource{cfg: cfg, log: log}, nil
}

func (p *portAudioSource) findDevice() (*portaudio.DeviceInfo, error) {
	if p.cfg.DeviceID == "" {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("failed to get default input device: %w", err)
		}
		return device, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	for _, d := range devices {
		if d.Name == p.cfg.DeviceID && d.MaxInputChannels > 0 {
			return d, nil
		}
	}
	return nil, fmt.Errorf("device not found: %s", p.cfg.DeviceID)
}

func (p *portAudioSource) Start(handle uuid.UUID, cb FrameCallback) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream != nil {
		return &StartError{Code: CodeAlreadyStarted, Err: errors.New("stream already running")}
	}

	device, err := p.findDevice()
	if err != nil {
		return &StartError{Code: CodeDeviceNotFound, Err: err}
	}

	channels := p.cfg.Channels
	if channels <= 0 || channels > 2 {
		channels = 2
	}
	if device.MaxInputChannels < channels {
		channels = device.MaxInputChannels
	}

	rate := int(device.DefaultSampleRate)
	if p.cfg.SampleRate > 0 {
		rate = p.cfg.SampleRate
	}

	if err := checkFormat(channels, rate); err != nil {
		return err
	}

	frames := p.cfg.FramesPerBuffer
	if frames <= 0 {
		frames = 480
	}

	var normalizer *rateNormalizer
	if needsNormalizing(rate) {
		p.log.Info().Int("device_rate", rate).Int("rate", NormalizedRate).Msg("Normalizing device rate")
		normalizer = newRateNormalizer(channels, rate, frames)
	}

	// Runs on the PortAudio thread. PortAudio never overlaps invocations.
	process := func(in []float32) {
		buf := Buffer{
			Samples:    in,
			Frames:     len(in) / channels,
			Channels:   channels,
			SampleRate: rate,
		}
		if normalizer != nil {
			buf = normalizer.Process(buf)
		}
		cb(handle, buf)
	}

	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: channels,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      float64(rate),
		FramesPerBuffer: frames,
	}, process)
	if err != nil {
		return &StartError{Code: paErrorCode(err), Err: fmt.Errorf("failed to open audio stream: %w", err)}
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return &StartError{Code: paErrorCode(err), Err: fmt.Errorf("failed to start audio stream: %w", err)}
	}

	p.stream = stream
	p.log.Info().
		Str("device", device.Name).
		Int("channels", channels).
		Int("rate", rate).
		Int("frames_per_buffer", frames).
		Msg("Capture stream started")
	return nil
}

// Stop blocks until the stream callback has returned for the last time.
func (p *portAudioSource) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return nil
	}
	stream := p.stream
	p.stream = nil

	stopErr := stream.Stop()
	closeErr := stream.Close()
	return errors.Join(stopErr, closeErr)
}

func (p *portAudioSource) ListDevices() ([]AudioDevice, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	result := make([]AudioDevice, 0, len(devices))
	defaultDevice, _ := portaudio.DefaultInputDevice()

	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			result = append(result, AudioDevice{
				ID:         d.Name,
				Name:       d.Name,
				Channels:   d.MaxInputChannels,
				SampleRate: int(d.DefaultSampleRate),
				Default:    d == defaultDevice,
			})
		}
	}

	return result, nil
}

func (p *portAudioSource) Close() error {
	err := p.Stop()
	portaudio.Terminate()
	return err
}

func paErrorCode(err error) int {
	var pe portaudio.Error
	if errors.As(err, &pe) {
		return int(pe)
	}
	return 0
}
