package delivery

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Consumer processes chunks off the producer goroutine. It may block.
type Consumer interface {
	Consume(chunk []byte) error
}

// ConsumerFunc adapts a plain function to Consumer.
type ConsumerFunc func(chunk []byte) error

func (f ConsumerFunc) Consume(chunk []byte) error { return f(chunk) }

// Queue is a bounded FIFO Sink drained by a single consumer goroutine.
// When the buffer is full new chunks are dropped.
type Queue struct {
	ch       chan []byte
	consumer Consumer
	log      zerolog.Logger

	closed  atomic.Bool
	dropped atomic.Uint64
	quit    chan struct{}
	done    chan struct{}
	once    sync.Once
}

// NewQueue starts the consumer goroutine. size is the number of chunks
// buffered between producer and consumer.
func NewQueue(size int, consumer Consumer, log zerolog.Logger) *Queue {
	if size <= 0 {
		size = 1
	}
	q := &Queue{
		ch:       make(chan []byte, size),
		consumer: consumer,
		log:      log,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go q.run()
	return q
}

// Deliver enqueues chunk without blocking. Chunks offered after Close are
// dropped.
func (q *Queue) Deliver(chunk []byte) bool {
	if q.closed.Load() {
		q.dropped.Add(1)
		return false
	}

	select {
	case q.ch <- chunk:
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// Dropped returns the number of chunks refused so far.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

func (q *Queue) run() {
	defer close(q.done)
	for {
		select {
		case chunk := <-q.ch:
			q.consume(chunk)
		case <-q.quit:
			// Drain what was accepted before Close.
			for {
				select {
				case chunk := <-q.ch:
					q.consume(chunk)
				default:
					return
				}
			}
		}
	}
}

func (q *Queue) consume(chunk []byte) {
	if err := q.consumer.Consume(chunk); err != nil {
		q.log.Error().Err(err).Msg("Consumer error")
	}
}

// Close stops intake, waits for buffered chunks to be consumed and closes
// the consumer if it implements io.Closer. Safe to call more than once.
// Producers must have stopped calling Deliver before Close, otherwise a
// chunk racing with it may be left unconsumed.
func (q *Queue) Close() error {
	var err error
	q.once.Do(func() {
		q.closed.Store(true)
		close(q.quit)
		<-q.done

		if c, ok := q.consumer.(io.Closer); ok {
			err = c.Close()
		}
		if n := q.dropped.Load(); n > 0 {
			q.log.Warn().Uint64("dropped", n).Msg("Queue dropped chunks")
		}
	})
	return err
}

type tee []Consumer

// Tee returns a Consumer that passes every chunk to each consumer in turn.
// Closing it closes every consumer that is an io.Closer.
func Tee(consumers ...Consumer) Consumer {
	return tee(consumers)
}

func (t tee) Consume(chunk []byte) error {
	var errs []error
	for _, c := range t {
		if err := c.Consume(chunk); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t tee) Close() error {
	var errs []error
	for _, c := range t {
		if cl, ok := c.(io.Closer); ok {
			if err := cl.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
