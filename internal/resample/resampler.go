// Package resample converts interleaved float audio into mono 16 kHz int16 PCM.
//
// The Resampler is a streaming filter: its delay line and decimation phase
// carry over between Process calls, so splitting the input into chunks of any
// size produces the same output as processing it in one piece.
package resample

import (
	"errors"
	"fmt"
	"math"
)

// OutputRate is the sample rate of everything Process returns.
const OutputRate = 16000

// ErrUnsupportedRate is returned by ValidateRate for input rates that are not
// a positive multiple of OutputRate.
var ErrUnsupportedRate = errors.New("input rate is not a multiple of 16000")

// 15-tap windowed-sinc low-pass (Hamming), cutoff ~7.5 kHz at 48 kHz input.
// Tuned for 3:1 decimation.
var lowPassTaps = [...]float32{
	0.0024, 0.0060, 0.0177, 0.0393, 0.0694,
	0.1013, 0.1268, 0.1372, 0.1268, 0.1013,
	0.0694, 0.0393, 0.0177, 0.0060, 0.0024,
}

// TapCount is the length of the FIR delay line.
const TapCount = len(lowPassTaps)

// Resampler holds the filter state for one capture session. It is not safe
// for concurrent use.
type Resampler struct {
	delay [TapCount]float32
	// next is the ring slot the next sample is written to; after a write it
	// also points at the oldest retained sample.
	next  int
	phase int
}

// New returns a Resampler with an all-zero delay line.
func New() *Resampler {
	return &Resampler{}
}

// DecimationFactor returns inputRate / OutputRate using integer division.
// Zero means the rate is too low to produce any output.
func DecimationFactor(inputRate int) int {
	if inputRate <= 0 {
		return 0
	}
	return inputRate / OutputRate
}

// ValidateRate reports whether inputRate divides exactly into OutputRate.
// Process does not call it; callers use it for diagnostics.
func ValidateRate(inputRate int) error {
	if inputRate <= 0 || inputRate%OutputRate != 0 {
		return fmt.Errorf("%w: %d Hz", ErrUnsupportedRate, inputRate)
	}
	return nil
}

// Process downmixes, filters and decimates one buffer of interleaved frames.
// Only the first two channels of each frame are used. A trailing partial
// frame is ignored. The returned slice is empty when no decimation boundary
// was crossed or the rate is below OutputRate.
func (r *Resampler) Process(frames []float32, channels, inputRate int) []int16 {
	factor := DecimationFactor(inputRate)
	if factor == 0 || channels <= 0 {
		return nil
	}

	frameCount := len(frames) / channels
	out := make([]int16, 0, frameCount/factor+1)

	for i := 0; i < frameCount; i++ {
		base := i * channels
		mono := frames[base]
		if channels >= 2 {
			mono = (frames[base] + frames[base+1]) * 0.5
		}

		r.delay[r.next] = mono
		r.next++
		if r.next == TapCount {
			r.next = 0
		}

		r.phase++
		if r.phase < factor {
			continue
		}
		r.phase = 0
		out = append(out, quantize(r.filter()))
	}

	return out
}

// filter convolves the delay line, oldest sample first.
func (r *Resampler) filter() float32 {
	var acc float32
	idx := r.next
	for _, tap := range lowPassTaps {
		acc += r.delay[idx] * tap
		idx++
		if idx == TapCount {
			idx = 0
		}
	}
	return acc
}

func quantize(v float32) int16 {
	s := math.Round(float64(v * 32767))
	if math.IsNaN(s) {
		return 0
	}
	if s > math.MaxInt16 {
		return math.MaxInt16
	}
	if s < math.MinInt16 {
		return math.MinInt16
	}
	return int16(s)
}

// Reset clears the delay line and the decimation phase.
func (r *Resampler) Reset() {
	r.delay = [TapCount]float32{}
	r.next = 0
	r.phase = 0
}
