// Package config loads hometour settings from flags, the environment, an
// optional .env file and an optional hometour.yaml, in that order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/teslashibe/go-hometour/pkg/audioio"
	"github.com/teslashibe/go-hometour/pkg/camera"
	"github.com/teslashibe/go-hometour/pkg/live"
	"github.com/teslashibe/go-hometour/pkg/loop"
)

// EnvAPIKey is the environment variable holding the Gemini API key.
const EnvAPIKey = "GOOGLE_API_KEY"

// Error describes a configuration validation error.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// Config is the full hometour configuration.
type Config struct {
	APIKey   string `mapstructure:"api_key"`
	Layout   string `mapstructure:"layout"`
	WebPort  int    `mapstructure:"web_port"`
	LogLevel string `mapstructure:"log_level"`

	// Live and Loop carry the API key once loaded.
	Live    live.Config    `mapstructure:"live"`
	Loop    loop.Config    `mapstructure:"loop"`
	Camera  camera.Config  `mapstructure:"camera"`
	Mic     audioio.Config `mapstructure:"mic"`
	Speaker audioio.Config `mapstructure:"speaker"`
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"mode":         "camera.mode",
	"camera-name":  "camera.name",
	"camera-index": "camera.index",
	"layout":       "layout",
	"web-port":     "web_port",
	"log-level":    "log_level",
}

// New returns a viper instance with every default, environment binding and
// config file search path in place.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("api_key", "")
	v.SetDefault("layout", "")
	v.SetDefault("web_port", 0)
	v.SetDefault("log_level", "info")

	lc := live.DefaultConfig()
	v.SetDefault("live.endpoint", lc.Endpoint)
	v.SetDefault("live.model", lc.Model)
	v.SetDefault("live.voice", lc.Voice)
	v.SetDefault("live.proactive_audio", lc.ProactiveAudio)
	v.SetDefault("live.output_transcription", lc.OutputTranscription)

	rc := loop.DefaultConfig()
	v.SetDefault("loop.quit_token", rc.QuitToken)
	v.SetDefault("loop.empty_line_text", rc.EmptyLineText)
	v.SetDefault("loop.outbound_capacity", rc.OutboundCapacity)
	v.SetDefault("loop.inbound_capacity", rc.InboundCapacity)

	cc := camera.DefaultConfig()
	v.SetDefault("camera.mode", string(cc.Mode))
	v.SetDefault("camera.index", cc.Index)
	v.SetDefault("camera.name", cc.Name)
	v.SetDefault("camera.max_dimension", cc.MaxDimension)
	v.SetDefault("camera.quality", cc.Quality)
	v.SetDefault("camera.interval", cc.Interval)

	setAudioDefaults(v, "mic", audioio.DefaultCaptureConfig())
	setAudioDefaults(v, "speaker", audioio.DefaultPlaybackConfig())

	v.SetEnvPrefix("HOMETOUR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("api_key", EnvAPIKey)
	_ = v.BindEnv("log_level", "HOMETOUR_LOG_LEVEL", "LOG_LEVEL")

	v.SetConfigName("hometour")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if dir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(dir, "hometour"))
	}

	return v
}

func setAudioDefaults(v *viper.Viper, prefix string, c audioio.Config) {
	v.SetDefault(prefix+".backend", string(c.Backend))
	v.SetDefault(prefix+".sample_rate", c.SampleRate)
	v.SetDefault(prefix+".device_sample_rate", c.DeviceSampleRate)
	v.SetDefault(prefix+".channels", c.Channels)
	v.SetDefault(prefix+".frames_per_buffer", c.FramesPerBuffer)
}

// BindFlags binds the known command-line flags to their keys. Flags absent
// from the set are skipped.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("config: bind --%s: %w", name, err)
		}
	}
	return nil
}

// LoadDotEnv loads environment variables from the given files, or .env when
// none are named. Missing files are ignored and variables already set in
// the environment win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config: load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads the config file, if any, and decodes the merged settings.
// A file set explicitly with SetConfigFile must exist.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.Live.APIKey = cfg.APIKey
	cfg.Loop.APIKey = cfg.APIKey
	cfg.Loop.FrameInterval = cfg.Camera.Interval
	return &cfg, nil
}

// Validate checks every section. The first problem is returned as an *Error.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return &Error{Field: "api_key", Message: EnvAPIKey + " environment variable is required"}
	}
	if _, err := camera.ParseMode(string(c.Camera.Mode)); err != nil {
		return &Error{Field: "camera.mode", Message: err.Error()}
	}
	if c.Camera.Mode != camera.ModeNone {
		if errs := c.Camera.Validate(); len(errs) > 0 {
			return &Error{Field: "camera", Message: strings.Join(errs, "; ")}
		}
	}
	if err := c.Mic.Validate(); err != nil {
		return &Error{Field: "mic", Message: err.Error()}
	}
	if err := c.Speaker.Validate(); err != nil {
		return &Error{Field: "speaker", Message: err.Error()}
	}
	if c.WebPort < 0 || c.WebPort > 65535 {
		return &Error{Field: "web_port", Message: fmt.Sprintf("must be between 0 and 65535, got %d", c.WebPort)}
	}
	if c.Loop.QuitToken == "" {
		return &Error{Field: "loop.quit_token", Message: "must not be empty"}
	}
	return nil
}
