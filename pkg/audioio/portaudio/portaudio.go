//go:build cgo

package portaudio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	pa "github.com/gordonklaus/portaudio"

	"github.com/teslashibe/go-hometour/pkg/audioio"
)

func init() {
	audioio.Register(audioio.BackendPortAudio,
		func(cfg audioio.Config, logger *slog.Logger) (audioio.Source, error) {
			return NewSource(cfg, logger), nil
		},
		func(cfg audioio.Config, logger *slog.Logger) (audioio.Sink, error) {
			return NewSink(cfg, logger), nil
		},
	)
}

// Source captures from the default input device using blocking reads.
// Each Read blocks for at most one buffer, so callers observe cancellation
// between buffers.
type Source struct {
	cfg    audioio.Config
	logger *slog.Logger

	mu      sync.Mutex
	stream  *pa.Stream
	buf     []int16
	running bool
	closed  bool

	chunksRead  atomic.Int64
	samplesRead atomic.Int64
	overruns    atomic.Int64
}

// NewSource creates a capture device. The device is opened by Start.
func NewSource(cfg audioio.Config, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{cfg: cfg, logger: logger}
}

// Start opens the default input stream.
func (s *Source) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	if err := pa.Initialize(); err != nil {
		return fmt.Errorf("portaudio: initialize: %w", err)
	}

	frames := s.cfg.FramesPerBuffer * s.cfg.DeviceRate() / s.cfg.SampleRate
	s.buf = make([]int16, frames*s.cfg.Channels)
	stream, err := pa.OpenDefaultStream(s.cfg.Channels, 0, float64(s.cfg.DeviceRate()), frames, s.buf)
	if err != nil {
		pa.Terminate()
		return fmt.Errorf("portaudio: open input: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		pa.Terminate()
		return fmt.Errorf("portaudio: start input: %w", err)
	}

	s.stream = stream
	s.running = true
	s.logger.Info("microphone opened",
		"device_rate", s.cfg.DeviceRate(),
		"sample_rate", s.cfg.SampleRate,
		"frames", frames,
	)
	return nil
}

// Read captures one buffer. Input overflows are counted and the data is
// still returned.
func (s *Source) Read(ctx context.Context) (audioio.AudioChunk, error) {
	if err := ctx.Err(); err != nil {
		return audioio.AudioChunk{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return audioio.AudioChunk{}, io.EOF
	}

	if err := s.stream.Read(); err != nil {
		if !errors.Is(err, pa.InputOverflowed) {
			return audioio.AudioChunk{}, fmt.Errorf("portaudio: read: %w", err)
		}
		s.overruns.Add(1)
		s.logger.Debug("microphone overflow")
	}

	samples := make([]int16, len(s.buf))
	copy(samples, s.buf)
	samples = audioio.Resample(samples, s.cfg.DeviceRate(), s.cfg.SampleRate)

	s.chunksRead.Add(1)
	s.samplesRead.Add(int64(len(samples)))
	return audioio.AudioChunk{
		Samples:    samples,
		SampleRate: s.cfg.SampleRate,
		Channels:   s.cfg.Channels,
	}, nil
}

// Stop halts capture and closes the stream.
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

func (s *Source) stopLocked() error {
	if !s.running {
		return nil
	}
	s.running = false

	err := errors.Join(s.stream.Stop(), s.stream.Close(), pa.Terminate())
	s.stream = nil
	if err != nil {
		return fmt.Errorf("portaudio: stop input: %w", err)
	}
	return nil
}

// Config returns the audio configuration.
func (s *Source) Config() audioio.Config { return s.cfg }

// Name returns "portaudio".
func (s *Source) Name() string { return string(audioio.BackendPortAudio) }

// Close releases the device.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.stopLocked()
}

// Stats returns capture statistics.
func (s *Source) Stats() audioio.SourceStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	return audioio.SourceStats{
		ChunksRead:  s.chunksRead.Load(),
		SamplesRead: s.samplesRead.Load(),
		Overruns:    s.overruns.Load(),
		Running:     running,
		Backend:     s.Name(),
	}
}

// Sink plays to the default output device using blocking writes.
type Sink struct {
	cfg    audioio.Config
	logger *slog.Logger

	mu      sync.Mutex
	stream  *pa.Stream
	buf     []int16
	running bool
	closed  bool

	chunksWritten  atomic.Int64
	samplesWritten atomic.Int64
	underruns      atomic.Int64
}

// NewSink creates a playback device. The device is opened by Start.
func NewSink(cfg audioio.Config, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{cfg: cfg, logger: logger}
}

// Start opens the default output stream. Writes may be any length.
func (s *Sink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	if err := pa.Initialize(); err != nil {
		return fmt.Errorf("portaudio: initialize: %w", err)
	}

	stream, err := pa.OpenDefaultStream(0, s.cfg.Channels, float64(s.cfg.DeviceRate()), pa.FramesPerBufferUnspecified, &s.buf)
	if err != nil {
		pa.Terminate()
		return fmt.Errorf("portaudio: open output: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		pa.Terminate()
		return fmt.Errorf("portaudio: start output: %w", err)
	}

	s.stream = stream
	s.running = true
	s.logger.Info("speaker opened", "device_rate", s.cfg.DeviceRate(), "sample_rate", s.cfg.SampleRate)
	return nil
}

// Write plays one chunk, blocking until the device has taken it.
func (s *Sink) Write(ctx context.Context, chunk audioio.AudioChunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return io.ErrClosedPipe
	}
	if len(chunk.Samples) == 0 {
		return nil
	}

	rate := chunk.SampleRate
	if rate == 0 {
		rate = s.cfg.SampleRate
	}
	s.buf = audioio.Resample(chunk.Samples, rate, s.cfg.DeviceRate())

	if err := s.stream.Write(); err != nil {
		if !errors.Is(err, pa.OutputUnderflowed) {
			return fmt.Errorf("portaudio: write: %w", err)
		}
		s.underruns.Add(1)
	}

	s.chunksWritten.Add(1)
	s.samplesWritten.Add(int64(len(chunk.Samples)))
	return nil
}

// Clear drops audio buffered in the device by restarting the stream.
func (s *Sink) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	if err := s.stream.Abort(); err != nil {
		return fmt.Errorf("portaudio: abort output: %w", err)
	}
	if err := s.stream.Start(); err != nil {
		return fmt.Errorf("portaudio: restart output: %w", err)
	}
	return nil
}

// Stop halts playback and closes the stream.
func (s *Sink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

func (s *Sink) stopLocked() error {
	if !s.running {
		return nil
	}
	s.running = false

	err := errors.Join(s.stream.Stop(), s.stream.Close(), pa.Terminate())
	s.stream = nil
	if err != nil {
		return fmt.Errorf("portaudio: stop output: %w", err)
	}
	return nil
}

// Config returns the audio configuration.
func (s *Sink) Config() audioio.Config { return s.cfg }

// Name returns "portaudio".
func (s *Sink) Name() string { return string(audioio.BackendPortAudio) }

// Close releases the device.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.stopLocked()
}

// Stats returns playback statistics.
func (s *Sink) Stats() audioio.SinkStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	return audioio.SinkStats{
		ChunksWritten:  s.chunksWritten.Load(),
		SamplesWritten: s.samplesWritten.Load(),
		Underruns:      s.underruns.Load(),
		Running:        running,
		Backend:        s.Name(),
	}
}

var (
	_ audioio.SourceWithStats = (*Source)(nil)
	_ audioio.SinkWithStats   = (*Sink)(nil)
)
