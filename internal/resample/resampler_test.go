package resample

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecimationRatio(t *testing.T) {
	r := New()
	input := make([]float32, 4800)

	assert.Len(t, r.Process(input, 1, 48000), 1600)
}

func TestDecimationFactor(t *testing.T) {
	tests := []struct {
		rate int
		want int
	}{
		{48000, 3},
		{32000, 2},
		{16000, 1},
		{96000, 6},
		{44100, 2},
		{8000, 0},
		{0, 0},
		{-48000, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, DecimationFactor(tt.rate), "DecimationFactor(%d)", tt.rate)
	}
}

func TestStereoDownmixConverges(t *testing.T) {
	r := New()
	input := make([]float32, 0, 9600)
	for i := 0; i < 4800; i++ {
		input = append(input, 0.5, -0.5)
	}

	got := r.Process(input, 2, 48000)
	require.Len(t, got, 1600)
	for i, s := range got[10:] {
		require.InDelta(t, 0, s, 100, "sample %d should be near zero", i+10)
	}
}

func TestDownmixUsesFirstTwoChannels(t *testing.T) {
	// Third channel is loud and must be ignored.
	multi := make([]float32, 0, 300*3)
	stereo := make([]float32, 0, 300*2)
	for i := 0; i < 300; i++ {
		multi = append(multi, 0.25, 0.75, 1.0)
		stereo = append(stereo, 0.25, 0.75)
	}

	assert.Equal(t, New().Process(stereo, 2, 48000), New().Process(multi, 3, 48000))
}

func TestOverRangeInputIsClamped(t *testing.T) {
	for _, level := range []float32{2.0, -2.0, 100, -100} {
		r := New()
		input := make([]float32, 4800)
		for i := range input {
			input[i] = level
		}

		got := r.Process(input, 1, 48000)
		want := int16(math.MaxInt16)
		if level < 0 {
			want = math.MinInt16
		}
		// DC gain is 0.863, so anything past ~1.16 saturates.
		assert.Equal(t, want, got[len(got)-1], "level %v", level)
	}
}

func TestConstantInputSteadyState(t *testing.T) {
	r := New()
	input := make([]float32, 480)
	for i := range input {
		input[i] = 0.5
	}

	got := r.Process(input, 1, 48000)
	// Taps sum to 0.863, so a constant 0.5 settles near 0.4315*32767.
	assert.InDelta(t, 14139, got[len(got)-1], 10)
}

func TestChunkingDoesNotChangeOutput(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	input := make([]float32, 2*4801)
	for i := range input {
		input[i] = rng.Float32()*2 - 1
	}

	whole := New().Process(input, 2, 48000)

	for _, split := range []int{1, 2, 3, 14, 15, 16, 1001, 4800} {
		r := New()
		first := r.Process(input[:split*2], 2, 48000)
		second := r.Process(input[split*2:], 2, 48000)

		require.Equal(t, whole, append(first, second...), "split %d", split)
	}
}

func TestManySmallChunksMatchOneCall(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	input := make([]float32, 3000)
	for i := range input {
		input[i] = rng.Float32()*2 - 1
	}

	whole := New().Process(input, 1, 48000)

	r := New()
	var chunked []int16
	for off := 0; off < len(input); {
		n := 1 + rng.Intn(7)
		if off+n > len(input) {
			n = len(input) - off
		}
		chunked = append(chunked, r.Process(input[off:off+n], 1, 48000)...)
		off += n
	}

	assert.Equal(t, whole, chunked)
}

func TestShortChunkProducesNothing(t *testing.T) {
	r := New()
	assert.Empty(t, r.Process([]float32{0.1, 0.2}, 1, 48000), "no output before the decimation boundary")
	assert.Len(t, r.Process([]float32{0.3}, 1, 48000), 1, "one sample once the boundary is crossed")
}

func TestResetMatchesFreshResampler(t *testing.T) {
	r := New()
	noisy := make([]float32, 1000)
	for i := range noisy {
		noisy[i] = float32(i%7) / 7
	}
	r.Process(noisy, 1, 48000)
	r.Process(noisy[:1], 1, 48000)

	r.Reset()

	zeros := make([]float32, 480)
	got := r.Process(zeros, 1, 48000)

	assert.Equal(t, New().Process(zeros, 1, 48000), got)
	assert.Equal(t, make([]int16, 160), got)
}

func TestLowRateProducesNothing(t *testing.T) {
	r := New()
	input := make([]float32, 800)
	for i := range input {
		input[i] = 0.5
	}
	assert.Empty(t, r.Process(input, 1, 8000), "8 kHz input has no decimation factor")
}

func TestInvalidChannelCount(t *testing.T) {
	r := New()
	assert.Nil(t, r.Process([]float32{1, 2, 3}, 0, 48000))
}

func TestTrailingPartialFrameIgnored(t *testing.T) {
	r := New()
	// Three full stereo frames plus one dangling sample.
	assert.Len(t, r.Process([]float32{0.1, 0.1, 0.2, 0.2, 0.3, 0.3, 0.9}, 2, 48000), 1)
}

func TestTwoToOneDecimation(t *testing.T) {
	r := New()
	assert.Len(t, r.Process(make([]float32, 3200), 1, 32000), 1600)
}

func TestValidateRate(t *testing.T) {
	for _, rate := range []int{16000, 32000, 48000, 96000} {
		assert.NoError(t, ValidateRate(rate), "rate %d", rate)
	}
	for _, rate := range []int{0, 8000, 22050, 44100} {
		assert.ErrorIs(t, ValidateRate(rate), ErrUnsupportedRate, "rate %d", rate)
	}
}
