package delivery

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/petems/audiotap/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodePCM16LE(t *testing.T) {
	got := EncodePCM16LE([]int16{0, 1, -1, 32767, -32768, 0x1234})
	want := []byte{
		0x00, 0x00,
		0x01, 0x00,
		0xFF, 0xFF,
		0xFF, 0x7F,
		0x00, 0x80,
		0x34, 0x12,
	}
	assert.Equal(t, want, got)
	assert.Equal(t, []int16{0, 1, -1, 32767, -32768, 0x1234}, DecodePCM16LE(got))
}

func TestDecodeIgnoresOddTrailingByte(t *testing.T) {
	assert.Equal(t, []int16{1}, DecodePCM16LE([]byte{0x01, 0x00, 0xAA}))
}

func TestChannelSuppressesEmptyOutput(t *testing.T) {
	calls := 0
	ch := NewChannel(SinkFunc(func([]byte) bool {
		calls++
		return true
	}), nil, zerolog.Nop())

	ch.Send(nil)
	ch.Send([]int16{})

	assert.Zero(t, calls, "empty resampler output must not reach the sink")
}

func TestChannelDeliversOnceAndCounts(t *testing.T) {
	m := metrics.New()
	var got [][]byte
	accept := true
	ch := NewChannel(SinkFunc(func(chunk []byte) bool {
		got = append(got, chunk)
		return accept
	}), m, zerolog.Nop())

	ch.Send([]int16{1, 2})
	accept = false
	ch.Send([]int16{3})

	require.Len(t, got, 2)
	assert.Equal(t, []byte{1, 0, 2, 0}, got[0])
	assert.Equal(t, []byte{3, 0}, got[1])
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChunksDelivered))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChunksDropped))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.BytesDelivered))
}

func TestQueuePreservesOrder(t *testing.T) {
	var mu sync.Mutex
	var got []byte
	q := NewQueue(64, ConsumerFunc(func(chunk []byte) error {
		mu.Lock()
		got = append(got, chunk...)
		mu.Unlock()
		return nil
	}), zerolog.Nop())

	for i := 0; i < 50; i++ {
		require.True(t, q.Deliver([]byte{byte(i)}))
	}
	require.NoError(t, q.Close())

	require.Len(t, got, 50)
	for i, b := range got {
		assert.Equal(t, byte(i), b)
	}
	assert.Zero(t, q.Dropped())
}

func TestQueueDropsInsteadOfBlocking(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	q := NewQueue(2, ConsumerFunc(func([]byte) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil
	}), zerolog.Nop())

	require.True(t, q.Deliver([]byte{0}))
	<-started // consumer is now stuck on the first chunk

	require.True(t, q.Deliver([]byte{1}))
	require.True(t, q.Deliver([]byte{2}))

	done := make(chan bool)
	go func() { done <- q.Deliver([]byte{3}) }()

	select {
	case ok := <-done:
		assert.False(t, ok, "full queue must refuse the chunk")
	case <-time.After(time.Second):
		t.Fatal("Deliver blocked on a full queue")
	}
	assert.Equal(t, uint64(1), q.Dropped())

	close(release)
	require.NoError(t, q.Close())
}

type closingConsumer struct {
	chunks int
	closed int
	err    error
}

func (c *closingConsumer) Consume([]byte) error {
	c.chunks++
	return c.err
}

func (c *closingConsumer) Close() error {
	c.closed++
	return nil
}

func TestQueueCloseDrainsAndClosesConsumer(t *testing.T) {
	c := &closingConsumer{err: errors.New("disk full")}
	q := NewQueue(8, c, zerolog.Nop())

	for i := 0; i < 5; i++ {
		q.Deliver([]byte{1})
	}
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	assert.Equal(t, 5, c.chunks, "consumer errors must not stop the drain")
	assert.Equal(t, 1, c.closed)
	assert.False(t, q.Deliver([]byte{1}), "closed queue accepts nothing")
}

func TestTeeFansOutAndJoinsErrors(t *testing.T) {
	a := &closingConsumer{}
	b := &closingConsumer{err: errors.New("b failed")}
	var plain int
	tc := Tee(a, b, ConsumerFunc(func([]byte) error { plain++; return nil }))

	err := tc.Consume([]byte{1, 2})
	assert.EqualError(t, err, "b failed")
	assert.Equal(t, 1, a.chunks)
	assert.Equal(t, 1, b.chunks)
	assert.Equal(t, 1, plain)

	closer, ok := tc.(interface{ Close() error })
	require.True(t, ok)
	require.NoError(t, closer.Close())
	assert.Equal(t, 1, a.closed)
	assert.Equal(t, 1, b.closed)
}
