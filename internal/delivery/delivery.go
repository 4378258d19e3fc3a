// Package delivery hands resampled PCM from the audio producer to consumers
// without ever blocking the producer.
package delivery

import (
	"encoding/binary"

	"github.com/petems/audiotap/internal/metrics"
	"github.com/rs/zerolog"
)

// Sink receives encoded PCM chunks on the producer goroutine.
// Deliver must return promptly: buffer or drop, never wait. It reports
// whether the chunk was accepted.
type Sink interface {
	Deliver(chunk []byte) bool
}

// SinkFunc adapts a plain function to Sink.
type SinkFunc func(chunk []byte) bool

func (f SinkFunc) Deliver(chunk []byte) bool { return f(chunk) }

// EncodePCM16LE encodes samples as little-endian signed 16-bit PCM.
func EncodePCM16LE(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// DecodePCM16LE is the inverse of EncodePCM16LE. An odd trailing byte is
// ignored.
func DecodePCM16LE(chunk []byte) []int16 {
	out := make([]int16, len(chunk)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(chunk[i*2:]))
	}
	return out
}

// Channel routes one session's resampler output into its sink.
type Channel struct {
	sink    Sink
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewChannel wraps sink. m may be nil.
func NewChannel(sink Sink, m *metrics.Metrics, log zerolog.Logger) *Channel {
	return &Channel{sink: sink, metrics: m, log: log}
}

// Send encodes samples and offers them to the sink once. Empty input is not
// delivered at all.
func (c *Channel) Send(samples []int16) {
	if len(samples) == 0 {
		return
	}

	chunk := EncodePCM16LE(samples)
	if c.sink.Deliver(chunk) {
		if c.metrics != nil {
			c.metrics.ChunksDelivered.Inc()
			c.metrics.BytesDelivered.Add(float64(len(chunk)))
		}
		return
	}

	if c.metrics != nil {
		c.metrics.ChunksDropped.Inc()
	}
	c.log.Debug().Int("bytes", len(chunk)).Msg("Sink dropped chunk")
}
