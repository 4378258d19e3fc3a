package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/petems/audiotap/internal/app"
	"github.com/petems/audiotap/internal/audio"
	"github.com/petems/audiotap/internal/capture"
	"github.com/petems/audiotap/internal/config"
	"github.com/petems/audiotap/internal/delivery"
	"github.com/petems/audiotap/internal/hotkey"
	"github.com/petems/audiotap/internal/metrics"
	"github.com/petems/audiotap/internal/permissions"
	"github.com/petems/audiotap/internal/sink"
	"github.com/petems/audiotap/internal/tray"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	runDevice string
	runWAV    string
	runListen string
	runHotkey string
	runPaused bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Capture from an input device until interrupted",
	Long: `Capture from an input device until SIGINT/SIGTERM.

SIGUSR1 presses the capture trigger and SIGUSR2 releases it. In Toggle mode
each SIGUSR1 starts or stops capture; in PushToTalk mode capture runs between
SIGUSR1 and SIGUSR2. A global --hotkey drives the same trigger.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := runSetup(cmd)
		if err != nil {
			return err
		}
		return runCapture(cfg, log)
	},
}

var trayCmd = &cobra.Command{
	Use:   "tray",
	Short: "Run with a status bar icon for starting and stopping capture",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := runSetup(cmd)
		if err != nil {
			return err
		}
		return runTray(cfg, log)
	},
}

func init() {
	for _, c := range []*cobra.Command{runCmd, trayCmd} {
		c.Flags().StringVar(&runDevice, "device", "", "input device name (default device if empty)")
		c.Flags().StringVar(&runWAV, "wav", "", "write each session to this WAV file")
		c.Flags().StringVar(&runListen, "listen", "", "serve /stream and /metrics on this address")
		c.Flags().StringVar(&runHotkey, "hotkey", "", `global capture trigger, e.g. "Ctrl+Alt+R"`)
	}
	runCmd.Flags().BoolVar(&runPaused, "paused", false, "wait for a trigger before capturing")
}

// runSetup applies the capture flags on top of the loaded config.
func runSetup(cmd *cobra.Command) (*config.Config, zerolog.Logger, error) {
	cfg, log, err := setup()
	if err != nil {
		return nil, log, err
	}
	if cmd.Flags().Changed("device") {
		cfg.Audio.DeviceID = runDevice
	}
	if cmd.Flags().Changed("wav") {
		cfg.Output.WAVPath = runWAV
	}
	if cmd.Flags().Changed("listen") {
		cfg.Server.Listen = runListen
	}
	if cmd.Flags().Changed("hotkey") {
		cfg.Hotkey = runHotkey
	}
	if cfg.Output.WAVPath == "" && cfg.Server.Listen == "" {
		return nil, log, errors.New("nothing to deliver to: set --wav and/or --listen")
	}
	return cfg, log, nil
}

// pipeline is everything a live capture needs, built once per process.
type pipeline struct {
	app     *app.App
	source  audio.Source
	hub     *sink.Hub
	srv     *http.Server
	hotkeys hotkey.Manager
}

func newPipeline(cfg *config.Config, log zerolog.Logger, status app.StatusUpdater) (_ *pipeline, err error) {
	// macOS requires explicit microphone approval before capture works
	platform := permissions.New()
	if err := permissions.EnsurePermissions(platform); err != nil {
		return nil, fmt.Errorf("required permissions not granted: %w", err)
	}

	source, err := audio.NewPortAudio(cfg.Audio, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio: %w", err)
	}

	p := &pipeline{source: source}
	defer func() {
		if err != nil {
			p.close(context.Background())
		}
	}()

	m := metrics.New()
	manager := capture.New(capture.Config{
		Source:   source,
		Platform: platform,
		Metrics:  m,
		Logger:   log,
	})

	if cfg.Server.Listen != "" {
		p.hub = sink.NewHub(log)

		mux := http.NewServeMux()
		mux.Handle("/stream", p.hub)
		if cfg.Server.Metrics {
			mux.Handle("/metrics", m.Handler())
		}
		p.srv = &http.Server{Addr: cfg.Server.Listen, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

		go func(srv *http.Server) {
			log.Info().Str("addr", cfg.Server.Listen).Msg("HTTP server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("HTTP server failed")
			}
		}(p.srv)
	}

	p.app = app.New(app.Config{
		Manager:       manager,
		NewConsumer:   consumerFactory(cfg.Output.WAVPath, p.hub),
		QueueSize:     cfg.Delivery.QueueSize,
		Mode:          app.ParseMode(cfg.Mode),
		Logger:        log,
		StatusUpdater: status,
	})

	if cfg.Hotkey != "" {
		hk, err := hotkey.New()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize hotkeys: %w", err)
		}
		p.hotkeys = hk
		if err := hk.Register(cfg.Hotkey, p.app.OnTrigger); err != nil {
			return nil, fmt.Errorf("failed to register hotkey: %w", err)
		}
	}

	return p, nil
}

// close stops capture and tears everything down in reverse order.
func (p *pipeline) close(ctx context.Context) error {
	var errs []error
	if p.hotkeys != nil {
		errs = append(errs, p.hotkeys.Close())
	}
	if p.app != nil {
		errs = append(errs, p.app.Shutdown(ctx))
	}
	if p.srv != nil {
		errs = append(errs, p.srv.Shutdown(ctx))
	}
	if p.hub != nil {
		errs = append(errs, p.hub.Close())
	}
	errs = append(errs, p.source.Close())
	return errors.Join(errs...)
}

func shutdownContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}

func runCapture(cfg *config.Config, log zerolog.Logger) error {
	p, err := newPipeline(cfg, log, logStatus{log: log})
	if err != nil {
		return err
	}

	log.Info().Str("version", Version).Str("mode", cfg.Mode).Msg("audiotap starting...")

	if !runPaused {
		if err := p.app.StartCapture(); err != nil {
			ctx, cancel := shutdownContext()
			defer cancel()
			return errors.Join(err, p.close(ctx))
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	if len(triggerSignals) > 0 {
		signal.Notify(sigChan, triggerSignals...)
	}

	for sig := range sigChan {
		if pressed, ok := triggerState(sig); ok {
			p.app.OnTrigger(pressed)
			continue
		}
		break
	}

	log.Info().Msg("Shutting down...")
	ctx, cancel := shutdownContext()
	defer cancel()
	return p.close(ctx)
}

func runTray(cfg *config.Config, log zerolog.Logger) error {
	// Create tray UI first (we'll pass it to app)
	trayUI := tray.New(nil, cfg, Version, Commit, log)

	p, err := newPipeline(cfg, log, trayUI)
	if err != nil {
		return err
	}
	trayUI.SetApp(p.app)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info().Msg("Shutting down...")
		cancel()
	}()

	// Start tray UI - MUST run on main thread
	if err := trayUI.Run(ctx); err != nil {
		log.Error().Err(err).Msg("Tray error")
	}

	shutdownCtx, shutdownCancel := shutdownContext()
	defer shutdownCancel()
	return p.close(shutdownCtx)
}

// consumerFactory opens a fresh WAV file per session and forwards every
// chunk to the hub. The hub outlives sessions so it is never closed here.
func consumerFactory(wavPath string, hub *sink.Hub) app.ConsumerFactory {
	var mu sync.Mutex
	session := 0

	return func() (delivery.Consumer, error) {
		var consumers []delivery.Consumer

		if wavPath != "" {
			mu.Lock()
			session++
			path := sessionPath(wavPath, session)
			mu.Unlock()

			w, err := sink.NewWAVWriter(path)
			if err != nil {
				return nil, err
			}
			consumers = append(consumers, w)
		}
		if hub != nil {
			consumers = append(consumers, delivery.ConsumerFunc(hub.Consume))
		}
		return delivery.Tee(consumers...), nil
	}
}

// sessionPath keeps the configured name for the first session and numbers
// the rest: out.wav, out-2.wav, out-3.wav.
func sessionPath(path string, n int) string {
	if n <= 1 {
		return path
	}
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(path, ext), n, ext)
}

type logStatus struct {
	log zerolog.Logger
}

func (s logStatus) SetIdle()      { s.log.Info().Msg("Status: idle") }
func (s logStatus) SetCapturing() { s.log.Info().Msg("Status: capturing") }
func (s logStatus) SetError()     { s.log.Warn().Msg("Status: error") }
