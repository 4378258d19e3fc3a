package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/petems/audiotap/internal/capture"
	"github.com/petems/audiotap/internal/config"
	"github.com/petems/audiotap/internal/delivery"
	"github.com/rs/zerolog"
)

type Mode int

func (m Mode) String() string {
	if m == PushToTalk {
		return config.ModePushToTalk
	}
	return config.ModeToggle
}

const (
	PushToTalk Mode = iota
	Toggle
)

// ParseMode maps a config mode name to a Mode. Unknown names mean Toggle.
func ParseMode(name string) Mode {
	if name == config.ModePushToTalk {
		return PushToTalk
	}
	return Toggle
}

// StatusUpdater is an interface for updating status (e.g., a status line)
type StatusUpdater interface {
	SetIdle()
	SetCapturing()
	SetError()
}

// ConsumerFactory opens the downstream consumer for one capture session.
// The consumer is closed when the session's queue drains.
type ConsumerFactory func() (delivery.Consumer, error)

type Config struct {
	Manager       *capture.Manager
	NewConsumer   ConsumerFactory
	QueueSize     int
	Mode          Mode
	Logger        zerolog.Logger
	StatusUpdater StatusUpdater // Optional - can be nil
}

// App ties a capture Manager to a per-session delivery queue.
type App struct {
	manager     *capture.Manager
	newConsumer ConsumerFactory
	queueSize   int
	mode        Mode
	log         zerolog.Logger
	status      StatusUpdater

	mu        sync.Mutex
	capturing bool
	queue     *delivery.Queue
	started   time.Time
}

func New(cfg Config) *App {
	return &App{
		manager:     cfg.Manager,
		newConsumer: cfg.NewConsumer,
		queueSize:   cfg.QueueSize,
		mode:        cfg.Mode,
		log:         cfg.Logger,
		status:      cfg.StatusUpdater,
	}
}

// OnTrigger handles a press or release of the capture trigger.
func (a *App) OnTrigger(pressed bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var err error
	switch a.mode {
	case PushToTalk:
		if pressed {
			err = a.startCaptureLocked()
		} else {
			err = a.stopCaptureLocked()
		}
	case Toggle:
		if !pressed {
			return
		}
		if !a.capturing {
			err = a.startCaptureLocked()
		} else {
			err = a.stopCaptureLocked()
		}
	}
	if err != nil {
		a.log.Error().Err(err).Msg("Capture trigger failed")
	}
}

func (a *App) StartCapture() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.startCaptureLocked()
}

func (a *App) StopCapture() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopCaptureLocked()
}

func (a *App) startCaptureLocked() error {
	if a.capturing {
		return nil
	}

	consumer, err := a.newConsumer()
	if err != nil {
		a.setError()
		return fmt.Errorf("open consumer: %w", err)
	}

	queue := delivery.NewQueue(a.queueSize, consumer, a.log)
	if err := a.manager.Start(queue); err != nil {
		if cerr := queue.Close(); cerr != nil {
			a.log.Warn().Err(cerr).Msg("Failed to close consumer")
		}
		a.setError()
		return err
	}

	a.log.Info().Msg("Starting capture")
	a.capturing = true
	a.queue = queue
	a.started = time.Now()

	if a.status != nil {
		a.status.SetCapturing()
	}
	return nil
}

func (a *App) stopCaptureLocked() error {
	if !a.capturing {
		return nil
	}

	a.log.Info().Msg("Stopping capture")

	// The producer is gone once Stop returns, so the queue can drain. A
	// failed Stop still closes the queue so the consumer is finalised.
	stopErr := a.manager.Stop()

	queue := a.queue
	a.capturing = false
	a.queue = nil
	if err := queue.Close(); err != nil {
		stopErr = errors.Join(stopErr, fmt.Errorf("close consumer: %w", err))
	}
	if stopErr != nil {
		a.setError()
		return stopErr
	}

	a.log.Info().
		Dur("duration", time.Since(a.started)).
		Uint64("queue_dropped", queue.Dropped()).
		Msg("Capture finished")

	if a.status != nil {
		a.status.SetIdle()
	}
	return nil
}

func (a *App) setError() {
	if a.status != nil {
		a.status.SetError()
	}
}

// Shutdown stops any running capture, giving up when ctx is done.
func (a *App) Shutdown(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		done <- a.StopCapture()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetMode switches the trigger behaviour. It applies from the next trigger
// event; a running capture is left alone.
func (a *App) SetMode(mode Mode) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.mode = mode
}

func (a *App) Mode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

func (a *App) IsCapturing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.capturing
}
