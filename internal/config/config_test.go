package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/go-hometour/pkg/camera"
	"github.com/teslashibe/go-hometour/pkg/live"
)

// withFile points v at a temporary hometour.yaml holding body.
func withFile(t *testing.T, v *viper.Viper, body string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hometour.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	v.SetConfigFile(path)
}

func load(t *testing.T, body string) *Config {
	t.Helper()
	v := New()
	withFile(t, v, body)
	cfg, err := Load(v)
	require.NoError(t, err)
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(EnvAPIKey, "")
	cfg := load(t, "")

	assert.Empty(t, cfg.APIKey)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 0, cfg.WebPort)

	assert.Equal(t, live.DefaultModel, cfg.Live.Model)
	assert.Equal(t, live.DefaultEndpoint, cfg.Live.Endpoint)
	assert.True(t, cfg.Live.ProactiveAudio)

	assert.Equal(t, "q", cfg.Loop.QuitToken)
	assert.Equal(t, 5, cfg.Loop.OutboundCapacity)
	assert.Equal(t, time.Second, cfg.Loop.FrameInterval)

	assert.Equal(t, camera.ModeCamera, cfg.Camera.Mode)
	assert.Equal(t, -1, cfg.Camera.Index)
	assert.Equal(t, 85, cfg.Camera.Quality)
	assert.Equal(t, 1024, cfg.Camera.MaxDimension)

	assert.Equal(t, 16000, cfg.Mic.SampleRate)
	assert.Equal(t, 24000, cfg.Speaker.SampleRate)
	assert.Equal(t, 1, cfg.Speaker.Channels)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv(EnvAPIKey, "  secret  ")
	t.Setenv("HOMETOUR_CAMERA_QUALITY", "50")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := load(t, "")
	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, "secret", cfg.Live.APIKey)
	assert.Equal(t, "secret", cfg.Loop.APIKey)
	assert.Equal(t, 50, cfg.Camera.Quality)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_File(t *testing.T) {
	t.Setenv(EnvAPIKey, "k")
	cfg := load(t, `
layout: ./house.yaml
live:
  voice: Puck
camera:
  mode: screen
  interval: 2s
mic:
  sample_rate: 8000
  device_sample_rate: 48000
`)
	assert.Equal(t, "./house.yaml", cfg.Layout)
	assert.Equal(t, "Puck", cfg.Live.Voice)
	assert.Equal(t, camera.ModeScreen, cfg.Camera.Mode)
	assert.Equal(t, 2*time.Second, cfg.Camera.Interval)
	assert.Equal(t, 2*time.Second, cfg.Loop.FrameInterval)
	assert.Equal(t, 8000, cfg.Mic.SampleRate)
	assert.Equal(t, 48000, cfg.Mic.DeviceSampleRate)
	assert.Equal(t, 85, cfg.Camera.Quality)
}

func TestLoad_Flags(t *testing.T) {
	t.Setenv(EnvAPIKey, "k")
	t.Setenv("HOMETOUR_CAMERA_MODE", "screen")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("mode", "camera", "")
	flags.String("camera-name", "", "")
	flags.Int("web-port", 0, "")
	flags.Bool("unrelated", false, "")
	require.NoError(t, flags.Parse([]string{"--mode", "none", "--camera-name", "FaceTime", "--web-port", "8080"}))

	v := New()
	withFile(t, v, "camera:\n  mode: camera\n")
	require.NoError(t, BindFlags(v, flags))
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, camera.ModeNone, cfg.Camera.Mode)
	assert.Equal(t, "FaceTime", cfg.Camera.Name)
	assert.Equal(t, 8080, cfg.WebPort)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	v := New()
	v.SetConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load(v)
	assert.Error(t, err)
}

func TestLoad_BadFile(t *testing.T) {
	v := New()
	withFile(t, v, "camera: [not, a, map")
	_, err := Load(v)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Setenv(EnvAPIKey, "k")

	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{name: "valid", modify: func(*Config) {}},
		{name: "missing key", modify: func(c *Config) { c.APIKey = "" }, field: "api_key"},
		{name: "bad mode", modify: func(c *Config) { c.Camera.Mode = "webcam" }, field: "camera.mode"},
		{name: "bad quality", modify: func(c *Config) { c.Camera.Quality = 0 }, field: "camera"},
		{name: "camera ignored when off", modify: func(c *Config) {
			c.Camera.Mode = camera.ModeNone
			c.Camera.Quality = 0
		}},
		{name: "bad mic", modify: func(c *Config) { c.Mic.SampleRate = 0 }, field: "mic"},
		{name: "bad speaker", modify: func(c *Config) { c.Speaker.Channels = 0 }, field: "speaker"},
		{name: "bad port", modify: func(c *Config) { c.WebPort = 70000 }, field: "web_port"},
		{name: "empty quit token", modify: func(c *Config) { c.Loop.QuitToken = "" }, field: "loop.quit_token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := load(t, "")
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var cerr *Error
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.field, cerr.Field)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("HOMETOUR_DOTENV_NEW=from-file\nHOMETOUR_DOTENV_SET=from-file\n"), 0o600))

	t.Setenv("HOMETOUR_DOTENV_SET", "from-env")
	t.Cleanup(func() { os.Unsetenv("HOMETOUR_DOTENV_NEW") })

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "from-file", os.Getenv("HOMETOUR_DOTENV_NEW"))
	assert.Equal(t, "from-env", os.Getenv("HOMETOUR_DOTENV_SET"))
}
