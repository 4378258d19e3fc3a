package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/petems/audiotap/internal/app"
	"github.com/petems/audiotap/internal/audio"
	"github.com/petems/audiotap/internal/capture"
	"github.com/petems/audiotap/internal/delivery"
	"github.com/petems/audiotap/internal/metrics"
	"github.com/petems/audiotap/internal/permissions"
	"github.com/petems/audiotap/internal/sink"
	"github.com/spf13/cobra"
)

var (
	convertFrames   int
	convertRealtime bool
	checkRequest    bool
)

var convertCmd = &cobra.Command{
	Use:   "convert <input.wav> <output.wav>",
	Short: "Run a WAV file through the capture pipeline",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}

		source := audio.NewFileSource(args[0], audio.FileOptions{
			FramesPerBuffer: convertFrames,
			Realtime:        convertRealtime,
		}, log)
		defer source.Close()

		m := metrics.New()
		application := app.New(app.Config{
			Manager: capture.New(capture.Config{Source: source, Metrics: m, Logger: log}),
			NewConsumer: func() (delivery.Consumer, error) {
				return sink.NewWAVWriter(args[1])
			},
			QueueSize: cfg.Delivery.QueueSize,
			Mode:      app.Toggle,
			Logger:    log,
		})

		if err := application.StartCapture(); err != nil {
			return err
		}
		<-source.Done()
		if err := application.StopCapture(); err != nil {
			return err
		}
		if err := source.Err(); err != nil {
			return err
		}

		fmt.Printf("%s: %.0f frames in, %.0f samples out, %.0f chunks dropped\n",
			args[1],
			m.Total("audiotap_frames_in_total"),
			m.Total("audiotap_samples_out_total"),
			m.Total("audiotap_chunks_dropped_total"))
		return nil
	},
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List input devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}

		source, err := audio.NewPortAudio(cfg.Audio, log)
		if err != nil {
			return fmt.Errorf("failed to initialize audio: %w", err)
		}
		defer source.Close()

		devices, err := source.ListDevices()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DEFAULT\tNAME\tCHANNELS\tRATE")
		for _, d := range devices {
			mark := ""
			if d.Default {
				mark = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", mark, d.Name, d.Channels, d.SampleRate)
		}
		return w.Flush()
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report whether audio capture is supported and permitted",
	RunE: func(cmd *cobra.Command, args []string) error {
		platform := permissions.New()
		c := platform.Query()

		fmt.Printf("supported:  %v\n", c.Supported)
		if c.Reason != "" {
			fmt.Printf("reason:     %s\n", c.Reason)
		}
		fmt.Printf("permission: %s\n", c.Permission)

		if checkRequest && c.Supported && !c.Granted() {
			status, err := platform.RequestPermission()
			if err != nil {
				return err
			}
			fmt.Printf("requested:  %s\n", status)
			if status != permissions.PermissionAuthorized {
				return fmt.Errorf("microphone permission not granted (%s)", status)
			}
		}
		return nil
	},
}

func init() {
	convertCmd.Flags().IntVar(&convertFrames, "frames", 480, "frames per callback")
	convertCmd.Flags().BoolVar(&convertRealtime, "realtime", false, "pace replay at the file's sample rate")
	checkCmd.Flags().BoolVar(&checkRequest, "request", false, "prompt for permission if not yet granted")
}
