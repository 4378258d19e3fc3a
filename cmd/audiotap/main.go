package main

import (
	"fmt"
	"os"

	"github.com/petems/audiotap/internal/config"
	"github.com/petems/audiotap/internal/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// Version is set via ldflags at build time
	Version = "dev"
	// Commit is set via ldflags at build time
	Commit = "unknown"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "audiotap",
	Short: "Capture audio as 16 kHz mono PCM",
	Long: `audiotap captures an input device, downmixes and resamples it to
16 kHz mono 16-bit PCM and streams the result to a WAV file and/or
websocket clients.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("audiotap %s (%s)\n", Version, Commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is the platform config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(trayCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads the config and builds the logger every command shares.
func setup() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.LoadFile(cfgFile)
	if err != nil {
		return nil, logging.New(), fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, logging.NewWithLevel(cfg.LogLevel), nil
}
