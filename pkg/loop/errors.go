package loop

import (
	"errors"
	"fmt"
)

// Sentinel errors for the loop package.
var (
	// ErrUserQuit ends a run gracefully. Run maps it to a nil return.
	ErrUserQuit = errors.New("loop: user quit")

	// ErrMissingAPIKey indicates GOOGLE_API_KEY was not provided.
	ErrMissingAPIKey = errors.New("loop: GOOGLE_API_KEY is not set")

	// ErrAlreadyRun indicates Run was called twice on the same Loop.
	ErrAlreadyRun = errors.New("loop: run already started")

	// ErrNoToolHandler is reported back to the model when a tool call
	// arrives and no handler is configured.
	ErrNoToolHandler = errors.New("loop: no tool handler configured")
)

// StartupError is returned when a run fails before streaming begins.
type StartupError struct {
	// Stage is "credentials" or "connect".
	Stage string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *StartupError) Error() string {
	return fmt.Sprintf("loop: startup failed at %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying cause.
func (e *StartupError) Unwrap() error {
	return e.Err
}

// DeviceError reports a failure of a local capture or playback device.
type DeviceError struct {
	// Device is "microphone", "speaker", "camera" or "terminal".
	Device string

	Err error
}

// Error implements the error interface.
func (e *DeviceError) Error() string {
	return fmt.Sprintf("loop: %s: %v", e.Device, e.Err)
}

// Unwrap returns the underlying cause.
func (e *DeviceError) Unwrap() error {
	return e.Err
}

// TransportError reports a failure talking to the remote session.
type TransportError struct {
	// Op is "send" or "receive".
	Op string

	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("loop: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Error checking helpers.

// IsUserQuit returns true if the error is a graceful quit.
func IsUserQuit(err error) bool {
	return errors.Is(err, ErrUserQuit)
}

// IsStartupError returns true if the run never reached streaming.
func IsStartupError(err error) bool {
	var se *StartupError
	return errors.As(err, &se)
}

// IsDeviceError returns true if a local device failed.
func IsDeviceError(err error) bool {
	var de *DeviceError
	return errors.As(err, &de)
}

// IsTransportError returns true if the remote session failed.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
