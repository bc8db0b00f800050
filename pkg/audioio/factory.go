package audioio

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// SourceFactory constructs a capture device for a backend.
type SourceFactory func(cfg Config, logger *slog.Logger) (Source, error)

// SinkFactory constructs a playback device for a backend.
type SinkFactory func(cfg Config, logger *slog.Logger) (Sink, error)

type backendEntry struct {
	source SourceFactory
	sink   SinkFactory
}

var (
	registryMu sync.RWMutex
	registry   = map[Backend]backendEntry{
		BackendMock: {
			source: func(cfg Config, logger *slog.Logger) (Source, error) { return NewMockSource(cfg, logger), nil },
			sink:   func(cfg Config, logger *slog.Logger) (Sink, error) { return NewMockSink(cfg, logger), nil },
		},
	}
)

// Register makes a backend available to NewSource and NewSink.
// Backends call it from init.
func Register(backend Backend, source SourceFactory, sink SinkFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[backend] = backendEntry{source: source, sink: sink}
}

func lookup(backend Backend) (backendEntry, Backend, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if backend == BackendAuto || backend == "" {
		backend = detectBestBackend()
		if backend == "" {
			return backendEntry{}, "", fmt.Errorf("no hardware audio backend registered (built without cgo?)")
		}
	}
	entry, ok := registry[backend]
	if !ok {
		return backendEntry{}, "", fmt.Errorf("unsupported backend: %s", backend)
	}
	return entry, backend, nil
}

// NewSource creates a new audio source with the given configuration.
// If cfg.Backend is BackendAuto, the best available backend is selected.
func NewSource(cfg Config, logger *slog.Logger) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	entry, backend, err := lookup(cfg.Backend)
	if err != nil {
		return nil, err
	}
	cfg.Backend = backend

	logger.Info("creating audio source",
		"backend", backend,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
		"frames_per_buffer", cfg.FramesPerBuffer,
	)

	return entry.source(cfg, logger)
}

// NewSink creates a new audio sink with the given configuration.
// If cfg.Backend is BackendAuto, the best available backend is selected.
func NewSink(cfg Config, logger *slog.Logger) (Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	entry, backend, err := lookup(cfg.Backend)
	if err != nil {
		return nil, err
	}
	cfg.Backend = backend

	logger.Info("creating audio sink",
		"backend", backend,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
	)

	return entry.sink(cfg, logger)
}

// detectBestBackend returns the first registered hardware backend.
// Callers hold registryMu.
func detectBestBackend() Backend {
	if _, ok := registry[BackendPortAudio]; ok {
		return BackendPortAudio
	}
	for b := range registry {
		if b != BackendMock {
			return b
		}
	}
	return ""
}

// AvailableBackends returns the registered backends in sorted order.
func AvailableBackends() []Backend {
	registryMu.RLock()
	defer registryMu.RUnlock()

	backends := make([]Backend, 0, len(registry))
	for b := range registry {
		backends = append(backends, b)
	}
	slices.Sort(backends)
	return backends
}
