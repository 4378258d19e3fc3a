package tray

import (
	"context"
	"fmt"

	"github.com/getlantern/systray"
	"github.com/petems/audiotap/internal/app"
	"github.com/petems/audiotap/internal/config"
	"github.com/petems/audiotap/internal/logging"
	"github.com/rs/zerolog"
)

type UI struct {
	app     *app.App
	cfg     *config.Config
	version string
	commit  string
	log     zerolog.Logger

	// Menu items
	mStartStop *systray.MenuItem
	mMode      *systray.MenuItem
}

// Status update methods for the app to call
func (u *UI) SetIdle() {
	u.updateStatus("idle")
}

func (u *UI) SetCapturing() {
	u.updateStatus("capturing")
}

func (u *UI) SetError() {
	u.updateStatus("error")
}

func New(application *app.App, cfg *config.Config, version, commit string, log zerolog.Logger) *UI {
	return &UI{
		app:     application,
		cfg:     cfg,
		version: version,
		commit:  commit,
		log:     log,
	}
}

// SetApp sets the app reference (for circular dependency resolution)
func (u *UI) SetApp(application *app.App) {
	u.app = application
}

// Run blocks on the tray event loop until Quit is chosen or ctx is done.
// It must be called from the main goroutine.
func (u *UI) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		systray.Quit()
	}()
	systray.Run(u.onReady, u.onExit)
	return nil
}

func (u *UI) onReady() {
	u.updateStatus("idle")
	systray.SetTooltip("audiotap: 16 kHz capture")

	// Build menu
	u.mStartStop = systray.AddMenuItem(startStopTitle(false), "Start or stop capturing")
	systray.AddSeparator()

	u.mMode = systray.AddMenuItem(modeTitle(u.app.Mode()), "Toggle between modes")

	systray.AddSeparator()
	mLogs := systray.AddMenuItem("Show Log Path", "Print where logs are written")
	mAbout := systray.AddMenuItem("About", "About audiotap")
	mQuit := systray.AddMenuItem("Quit", "Exit application")

	// Event loop
	go u.handleEvents(mLogs, mAbout, mQuit)
}

func (u *UI) handleEvents(mLogs, mAbout, mQuit *systray.MenuItem) {
	for {
		select {
		case <-u.mStartStop.ClickedCh:
			u.toggleCapture()
		case <-u.mMode.ClickedCh:
			u.toggleMode()
		case <-mLogs.ClickedCh:
			fmt.Println(logging.Path())
		case <-mAbout.ClickedCh:
			fmt.Printf("audiotap %s (%s)\n", u.version, u.commit)
		case <-mQuit.ClickedCh:
			systray.Quit()
			return
		}
	}
}

func (u *UI) toggleCapture() {
	var err error
	if u.app.IsCapturing() {
		err = u.app.StopCapture()
	} else {
		err = u.app.StartCapture()
	}
	if err != nil {
		u.log.Error().Err(err).Msg("Capture toggle failed")
	}
	u.mStartStop.SetTitle(startStopTitle(u.app.IsCapturing()))
}

func (u *UI) toggleMode() {
	next := nextMode(u.app.Mode())
	u.app.SetMode(next)
	u.mMode.SetTitle(modeTitle(next))

	oldMode := u.cfg.Mode
	u.cfg.Mode = next.String()
	if err := u.cfg.Save(); err != nil {
		u.log.Warn().Err(err).Msg("Failed to save config")
	}
	u.log.Info().Str("from", oldMode).Str("to", u.cfg.Mode).Msg("Changed mode")
}

func (u *UI) onExit() {
	if err := u.app.StopCapture(); err != nil {
		u.log.Error().Err(err).Msg("Stop on exit failed")
	}
}

// updateStatus sets the tray title with microphone emoji and status indicator
func (u *UI) updateStatus(status string) {
	systray.SetTitle(fmt.Sprintf("🎤 %s", emojiForStatus(status)))
}

func nextMode(m app.Mode) app.Mode {
	if m == app.PushToTalk {
		return app.Toggle
	}
	return app.PushToTalk
}

func modeTitle(m app.Mode) string {
	if m == app.PushToTalk {
		return "Mode: Push-to-Talk"
	}
	return "Mode: Toggle"
}

func startStopTitle(capturing bool) string {
	if capturing {
		return "Stop Capture"
	}
	return "Start Capture"
}

// emojiForStatus returns the appropriate status emoji
func emojiForStatus(status string) string {
	switch status {
	case "capturing":
		return "🔴" // Red - capturing
	case "idle":
		return "🟢" // Green - ready/idle
	case "error":
		return "⚪️" // White - error
	default:
		return "🟢" // Green - default to ready
	}
}
