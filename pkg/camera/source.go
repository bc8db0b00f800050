package camera

import (
	"context"
	"errors"
	"io"
	"sync"
)

// MIMEType is the media type of every frame a Source returns.
const MIMEType = "image/jpeg"

var (
	// ErrUnavailable is returned when a capture backend was not compiled in.
	ErrUnavailable = errors.New("camera: capture backend unavailable (built without cgo)")

	// ErrClosed is returned by Capture after Close.
	ErrClosed = errors.New("camera: source closed")
)

// Source produces JPEG frames on demand.
type Source interface {
	// Capture grabs one frame and returns it JPEG encoded.
	Capture(ctx context.Context) ([]byte, error)

	// Name describes the device (e.g. "camera 0", "screen").
	Name() string

	io.Closer
}

// MockSource returns scripted frames, then repeats the last one.
type MockSource struct {
	mu     sync.Mutex
	frames [][]byte
	err    error
	next   int
	closed bool
}

// NewMockSource creates a source that returns frames in order.
func NewMockSource(frames ...[]byte) *MockSource {
	return &MockSource{frames: frames}
}

// FailWith makes every later Capture return err.
func (m *MockSource) FailWith(err error) *MockSource {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// Capture returns the next scripted frame.
func (m *MockSource) Capture(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if m.err != nil {
		return nil, m.err
	}
	if len(m.frames) == 0 {
		return nil, errors.New("camera: mock has no frames")
	}
	f := m.frames[m.next]
	if m.next < len(m.frames)-1 {
		m.next++
	}
	return f, nil
}

// Name returns "mock".
func (m *MockSource) Name() string { return "mock" }

// Close marks the source closed.
func (m *MockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockSource) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

var _ Source = (*MockSource)(nil)
