// Package camera provides the still-frame sources streamed alongside audio:
// a webcam, the primary screen, or nothing.
package camera

import (
	"fmt"
	"time"
)

// Mode selects where video frames come from.
type Mode string

const (
	ModeCamera Mode = "camera"
	ModeScreen Mode = "screen"
	ModeNone   Mode = "none"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeCamera, ModeScreen, ModeNone:
		return m, nil
	default:
		return "", fmt.Errorf("camera: unknown mode %q (want camera, screen or none)", s)
	}
}

// Config holds frame capture parameters.
type Config struct {
	Mode Mode `json:"mode" mapstructure:"mode"`

	// Index is the OpenCV device index. Negative means "resolve from Name,
	// else use device 0".
	Index int `json:"index" mapstructure:"index"`

	// Name is a case-insensitive substring of the device name (macOS only).
	Name string `json:"name" mapstructure:"name"`

	// MaxDimension bounds the longer side of each frame in pixels.
	// Frames are only ever shrunk.
	MaxDimension int `json:"max_dimension" mapstructure:"max_dimension"`

	// Quality is the JPEG quality, 1-100.
	Quality int `json:"quality" mapstructure:"quality"`

	// Interval is the pause between frames.
	Interval time.Duration `json:"interval" mapstructure:"interval"`
}

// DefaultConfig returns one 1024px JPEG per second from the default camera.
func DefaultConfig() Config {
	return Config{
		Mode:         ModeCamera,
		Index:        -1,
		MaxDimension: 1024,
		Quality:      85,
		Interval:     time.Second,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if _, err := ParseMode(string(c.Mode)); err != nil {
		errors = append(errors, err.Error())
	}
	if c.MaxDimension < 16 || c.MaxDimension > 8192 {
		errors = append(errors, "max_dimension must be between 16 and 8192")
	}
	if c.Quality < 1 || c.Quality > 100 {
		errors = append(errors, "quality must be between 1 and 100")
	}
	if c.Interval < 100*time.Millisecond {
		errors = append(errors, "interval must be at least 100ms")
	}

	return errors
}

// FitWithin scales w x h down so neither side exceeds limit, keeping the
// aspect ratio. Sizes already inside the bound are returned unchanged.
func FitWithin(w, h, limit int) (int, int) {
	if w <= 0 || h <= 0 || (w <= limit && h <= limit) {
		return w, h
	}
	if w >= h {
		return limit, max(1, h*limit/w)
	}
	return max(1, w*limit/h), limit
}
