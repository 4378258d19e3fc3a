package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

const (
	ModePushToTalk = "PushToTalk"
	ModeToggle     = "Toggle"
)

type Config struct {
	LogLevel string         `mapstructure:"log_level" json:"log_level"`
	Mode     string         `mapstructure:"mode" json:"mode"`     // how the capture trigger behaves
	Hotkey   string         `mapstructure:"hotkey" json:"hotkey"` // e.g. "Ctrl+Alt+R"; empty disables
	Audio    AudioConfig    `mapstructure:"audio" json:"audio"`
	Delivery DeliveryConfig `mapstructure:"delivery" json:"delivery"`
	Output   OutputConfig   `mapstructure:"output" json:"output"`
	Server   ServerConfig   `mapstructure:"server" json:"server"`

	path string
}

type AudioConfig struct {
	DeviceID        string `mapstructure:"device_id" json:"device_id"`
	Channels        int    `mapstructure:"channels" json:"channels"`                   // 1 or 2
	SampleRate      int    `mapstructure:"sample_rate" json:"sample_rate"`             // 0 = device default
	FramesPerBuffer int    `mapstructure:"frames_per_buffer" json:"frames_per_buffer"` // per callback
}

type DeliveryConfig struct {
	QueueSize int `mapstructure:"queue_size" json:"queue_size"` // chunks buffered for the consumer
}

type OutputConfig struct {
	WAVPath string `mapstructure:"wav_path" json:"wav_path"`
}

type ServerConfig struct {
	Listen  string `mapstructure:"listen" json:"listen"` // "" disables the HTTP server
	Metrics bool   `mapstructure:"metrics" json:"metrics"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("mode", ModeToggle)
	v.SetDefault("hotkey", "")
	v.SetDefault("audio.device_id", "")
	v.SetDefault("audio.channels", 2)
	v.SetDefault("audio.sample_rate", 0)
	v.SetDefault("audio.frames_per_buffer", 480) // 10ms at 48kHz
	v.SetDefault("delivery.queue_size", 256)
	v.SetDefault("output.wav_path", "")
	v.SetDefault("server.listen", "")
	v.SetDefault("server.metrics", true)
}

// Load reads the config from the platform config path or returns defaults
func Load() (*Config, error) {
	return LoadFile(configPath())
}

// LoadFile reads the JSON config at path. A missing file yields defaults.
// AUDIOTAP_* environment variables override file values, e.g.
// AUDIOTAP_AUDIO_DEVICE_ID.
func LoadFile(path string) (*Config, error) {
	if path == "" {
		path = configPath()
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix("audiotap")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{path: path}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Path returns the file the config was loaded from and saves to.
func (c *Config) Path() string {
	if c.path == "" {
		return configPath()
	}
	return c.path
}

// Save writes the config to disk
func (c *Config) Save() error {
	path := c.Path()

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// configPath returns the platform-specific config file path
func configPath() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("APPDATA")
	default: // linux
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.config"
		}
	}

	return filepath.Join(base, "audiotap", "config.json")
}
