// Package capture owns the capture session lifecycle: at most one active
// session per Manager, started and stopped from a control goroutine while an
// audio source delivers buffers on its own thread.
package capture

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/petems/audiotap/internal/audio"
	"github.com/petems/audiotap/internal/delivery"
	"github.com/petems/audiotap/internal/metrics"
	"github.com/petems/audiotap/internal/permissions"
	"github.com/petems/audiotap/internal/resample"
	"github.com/rs/zerolog"
)

type State int

const (
	StateIdle State = iota
	StateActive
)

func (s State) String() string {
	if s == StateActive {
		return "active"
	}
	return "idle"
}

type Config struct {
	Source   audio.Source
	Platform permissions.Platform // optional, nil means always supported
	Metrics  *metrics.Metrics     // optional
	Logger   zerolog.Logger
}

// Manager starts and stops capture sessions. All methods are safe for
// concurrent use.
type Manager struct {
	source   audio.Source
	platform permissions.Platform
	metrics  *metrics.Metrics
	log      zerolog.Logger
	registry *registry

	mu       sync.Mutex
	state    State
	session  *session
	poisoned bool
}

type session struct {
	token   uuid.UUID
	ctx     *sharedContext
	started time.Time
}

// sharedContext is everything the producer needs for one session.
type sharedContext struct {
	channel *delivery.Channel
	log     zerolog.Logger

	mu        sync.Mutex
	resampler *resample.Resampler
	poisoned  bool

	rateWarned atomic.Bool
}

func New(cfg Config) *Manager {
	m := cfg.Metrics
	if m == nil {
		m = metrics.New()
	}
	return &Manager{
		source:   cfg.Source,
		platform: cfg.Platform,
		metrics:  m,
		log:      cfg.Logger,
		registry: newRegistry(),
	}
}

// Start begins a new session delivering PCM to sink. On any error the
// manager is left exactly as it was.
func (m *Manager) Start(sink delivery.Sink) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.poisoned {
		return ErrLockUnavailable
	}
	defer m.poisonOnPanic()

	if m.state == StateActive {
		m.metrics.StartFailures.WithLabelValues("already_capturing").Inc()
		return ErrAlreadyCapturing
	}
	if sink == nil {
		return ErrNilSink
	}
	if !m.IsSupported() {
		m.metrics.StartFailures.WithLabelValues("unsupported_platform").Inc()
		return ErrUnsupportedPlatform
	}

	token := uuid.New()
	log := m.log.With().Str("session", token.String()).Logger()

	resampler := resample.New()
	resampler.Reset()
	ctx := &sharedContext{
		channel:   delivery.NewChannel(sink, m.metrics, log),
		log:       log,
		resampler: resampler,
	}

	// Registered before the source starts so the very first callback
	// already finds it.
	m.registry.add(token, ctx)

	if err := m.source.Start(token, m.handleBuffer); err != nil {
		m.registry.remove(token)
		m.metrics.StartFailures.WithLabelValues("backend").Inc()

		startErr := &BackendStartError{Code: -1, Err: err}
		var se *audio.StartError
		if errors.As(err, &se) {
			startErr.Code = se.Code
		}
		log.Error().Err(err).Int("code", startErr.Code).Msg("Capture backend failed to start")
		return startErr
	}

	m.session = &session{token: token, ctx: ctx, started: time.Now()}
	m.state = StateActive
	m.metrics.SessionsStarted.Inc()
	m.metrics.ActiveSessions.Set(1)

	log.Info().Msg("Capture started")
	return nil
}

// Stop ends the active session. It is a no-op when idle. Errors from the
// audio source's own teardown are logged and counted, never returned.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.poisoned {
		return ErrLockUnavailable
	}
	defer m.poisonOnPanic()

	if m.state == StateIdle {
		return nil
	}

	s := m.session
	log := s.ctx.log

	// The source must stop calling back before the context goes away.
	if err := m.source.Stop(); err != nil {
		m.metrics.StopErrors.Inc()
		log.Warn().Err(err).Msg("Capture backend reported an error while stopping")
	}
	m.registry.remove(s.token)

	m.session = nil
	m.state = StateIdle
	m.metrics.SessionsStopped.Inc()
	m.metrics.ActiveSessions.Set(0)

	log.Info().Dur("duration", time.Since(s.started)).Msg("Capture stopped")
	return nil
}

// poisonOnPanic marks the manager unusable if a transition panics, then
// lets the panic continue. Must be deferred while m.mu is held.
func (m *Manager) poisonOnPanic() {
	if r := recover(); r != nil {
		m.poisoned = true
		m.log.Error().Interface("panic", r).Msg("Capture state transition panicked")
		panic(r)
	}
}

// handleBuffer is the producer path, called on the audio source's thread.
func (m *Manager) handleBuffer(token uuid.UUID, buf audio.Buffer) {
	ctx, ok := m.registry.lookup(token)
	if !ok {
		m.metrics.CallbacksOrphaned.Inc()
		return
	}
	m.metrics.CallbacksHandled.Inc()

	if buf.SampleRate%resample.OutputRate != 0 && ctx.rateWarned.CompareAndSwap(false, true) {
		m.metrics.RateMismatches.Inc()
		ctx.log.Warn().
			Int("rate", buf.SampleRate).
			Err(resample.ValidateRate(buf.SampleRate)).
			Msg("Input rate does not divide into 16 kHz; output will be wrong or empty")
	}

	begin := time.Now()
	samples, ok := ctx.process(buf)
	if !ok {
		return
	}
	m.metrics.ProcessDuration.Observe(time.Since(begin).Seconds())
	m.metrics.FramesIn.Add(float64(buf.Frames))
	m.metrics.SamplesOut.Add(float64(len(samples)))

	// Outside the resampler lock.
	ctx.channel.Send(samples)
}

// process runs the resampler under the context lock. A panic poisons the
// context; later buffers for the session are dropped.
func (c *sharedContext) process(buf audio.Buffer) (out []int16, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.poisoned {
		return nil, false
	}
	defer func() {
		if r := recover(); r != nil {
			c.poisoned = true
			c.log.Error().Interface("panic", r).Msg("Resampler panicked; dropping the rest of the session")
			out, ok = nil, false
		}
	}()

	samples := buf.Samples
	if n := buf.Frames * buf.Channels; buf.Frames >= 0 && n < len(samples) {
		samples = samples[:n]
	}
	return c.resampler.Process(samples, buf.Channels, buf.SampleRate), true
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Token returns the active session's handle.
func (m *Manager) Token() (uuid.UUID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return uuid.Nil, false
	}
	return m.session.token, true
}

// Metrics returns the manager's metrics.
func (m *Manager) Metrics() *metrics.Metrics {
	return m.metrics
}

func (m *Manager) IsSupported() bool {
	if m.platform == nil {
		return true
	}
	return m.platform.Query().Supported
}

func (m *Manager) HasPermission() bool {
	if m.platform == nil {
		return true
	}
	return m.platform.Query().Permission == permissions.PermissionAuthorized
}

// RequestPermission asks the platform for capture permission and reports
// whether it was granted.
func (m *Manager) RequestPermission() (bool, error) {
	if m.platform == nil {
		return true, nil
	}
	status, err := m.platform.RequestPermission()
	if err != nil {
		return false, err
	}
	return status == permissions.PermissionAuthorized, nil
}
