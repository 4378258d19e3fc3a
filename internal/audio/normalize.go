package audio

import (
	"fmt"

	"github.com/oov/audio/resampler"
)

// NormalizedRate is what the sources convert to when a device or file runs
// at a rate that does not divide into 16 kHz (44.1 kHz, 22.05 kHz...).
const NormalizedRate = 48000

const normalizeQuality = 10

// rateNormalizer converts interleaved audio from an arbitrary device rate to
// NormalizedRate, one resampler channel per input channel.
type rateNormalizer struct {
	r        *resampler.Resampler
	channels int
	inRate   int

	planarIn  [][]float32
	planarOut [][]float32
	out       []float32
}

func needsNormalizing(rate int) bool {
	return rate > 0 && rate%16000 != 0
}

// checkFormat rejects stream shapes the downstream pipeline cannot divide by.
func checkFormat(channels, rate int) error {
	if channels <= 0 {
		return &StartError{Code: CodeInvalidFormat, Err: fmt.Errorf("no input channels (got %d)", channels)}
	}
	if rate <= 0 {
		return &StartError{Code: CodeInvalidFormat, Err: fmt.Errorf("invalid sample rate %d", rate)}
	}
	return nil
}

func newRateNormalizer(channels, inRate, framesPerBuffer int) *rateNormalizer {
	n := &rateNormalizer{
		r:        resampler.New(channels, inRate, NormalizedRate, normalizeQuality),
		channels: channels,
		inRate:   inRate,
	}
	n.grow(framesPerBuffer)
	return n
}

func (n *rateNormalizer) grow(frames int) {
	outFrames := frames*NormalizedRate/n.inRate + 16
	if len(n.planarIn) == n.channels && len(n.planarIn[0]) >= frames && len(n.planarOut[0]) >= outFrames {
		return
	}
	n.planarIn = make([][]float32, n.channels)
	n.planarOut = make([][]float32, n.channels)
	for ch := 0; ch < n.channels; ch++ {
		n.planarIn[ch] = make([]float32, frames)
		n.planarOut[ch] = make([]float32, outFrames)
	}
	n.out = make([]float32, outFrames*n.channels)
}

// Process returns the converted buffer. The returned samples alias internal
// storage and are overwritten by the next call.
func (n *rateNormalizer) Process(buf Buffer) Buffer {
	n.grow(buf.Frames)

	for i := 0; i < buf.Frames; i++ {
		for ch := 0; ch < n.channels; ch++ {
			n.planarIn[ch][i] = buf.Samples[i*n.channels+ch]
		}
	}

	written := 0
	for ch := 0; ch < n.channels; ch++ {
		_, w := n.r.ProcessFloat32(ch, n.planarIn[ch][:buf.Frames], n.planarOut[ch])
		written = w
	}

	for i := 0; i < written; i++ {
		for ch := 0; ch < n.channels; ch++ {
			n.out[i*n.channels+ch] = n.planarOut[ch][i]
		}
	}

	return Buffer{
		Samples:    n.out[:written*n.channels],
		Frames:     written,
		Channels:   n.channels,
		SampleRate: NormalizedRate,
	}
}
