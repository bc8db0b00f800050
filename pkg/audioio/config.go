// Package audioio provides microphone capture and speaker playback of
// 16-bit PCM audio.
//
// Backends register themselves by name:
//   - PortAudio (pkg/audioio/portaudio) - real devices, requires cgo
//   - Mock - tests and CI without hardware
//
// The backend is picked from configuration, or automatically when the
// configured backend is "auto".
package audioio

import (
	"fmt"
	"time"
)

// Backend represents the audio backend type.
type Backend string

const (
	// BackendAuto selects the first registered hardware backend.
	BackendAuto Backend = "auto"
	// BackendPortAudio uses PortAudio for cross-platform audio I/O.
	BackendPortAudio Backend = "portaudio"
	// BackendMock uses a mock implementation for testing.
	BackendMock Backend = "mock"
)

// Config holds audio configuration for one direction (capture or playback).
type Config struct {
	// Backend specifies which audio backend to use.
	// Default: "auto"
	Backend Backend `yaml:"backend" json:"backend" mapstructure:"backend"`

	// SampleRate is the rate of the PCM exchanged with callers, in Hz.
	// Default: 16000 for capture, 24000 for playback.
	SampleRate int `yaml:"sample_rate" json:"sample_rate" mapstructure:"sample_rate"`

	// DeviceSampleRate is the rate the hardware is opened at. When it
	// differs from SampleRate the backend resamples. 0 means SampleRate.
	DeviceSampleRate int `yaml:"device_sample_rate" json:"device_sample_rate" mapstructure:"device_sample_rate"`

	// Channels is the number of audio channels.
	// Default: 1 (mono)
	Channels int `yaml:"channels" json:"channels" mapstructure:"channels"`

	// FramesPerBuffer is the number of frames per captured chunk.
	// Default: 1024
	FramesPerBuffer int `yaml:"frames_per_buffer" json:"frames_per_buffer" mapstructure:"frames_per_buffer"`
}

// DefaultCaptureConfig returns the microphone settings the Live API expects.
func DefaultCaptureConfig() Config {
	return Config{
		Backend:         BackendAuto,
		SampleRate:      16000,
		Channels:        1,
		FramesPerBuffer: 1024,
	}
}

// DefaultPlaybackConfig returns the speaker settings matching Live API output.
func DefaultPlaybackConfig() Config {
	return Config{
		Backend:         BackendAuto,
		SampleRate:      24000,
		Channels:        1,
		FramesPerBuffer: 1024,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.DeviceSampleRate < 0 {
		return fmt.Errorf("device_sample_rate must not be negative, got %d", c.DeviceSampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", c.Channels)
	}
	if c.FramesPerBuffer <= 0 {
		return fmt.Errorf("frames_per_buffer must be positive, got %d", c.FramesPerBuffer)
	}
	return nil
}

// DeviceRate returns the rate the hardware should be opened at.
func (c *Config) DeviceRate() int {
	if c.DeviceSampleRate > 0 {
		return c.DeviceSampleRate
	}
	return c.SampleRate
}

// BufferSize returns the number of samples per buffer across all channels.
func (c *Config) BufferSize() int {
	return c.FramesPerBuffer * c.Channels
}

// BufferBytes returns the size of a buffer in bytes (int16 samples).
func (c *Config) BufferBytes() int {
	return c.BufferSize() * 2
}

// BufferDuration returns how much audio one buffer holds.
func (c *Config) BufferDuration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(c.FramesPerBuffer) * time.Second / time.Duration(c.SampleRate)
}

// MIMEType returns the Live API media type for PCM at this rate.
func (c *Config) MIMEType() string {
	return fmt.Sprintf("audio/pcm;rate=%d", c.SampleRate)
}
