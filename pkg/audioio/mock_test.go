package audioio

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallConfig() Config {
	cfg := DefaultCaptureConfig()
	cfg.FramesPerBuffer = 160 // 10ms at 16kHz
	return cfg
}

func TestMockSource_StartStop(t *testing.T) {
	src := NewMockSource(smallConfig(), nil)
	defer src.Close()

	ctx := context.Background()
	require.NoError(t, src.Start(ctx))
	require.NoError(t, src.Start(ctx), "second Start is a no-op")
	require.NoError(t, src.Stop())
	require.NoError(t, src.Stop(), "second Stop is a no-op")

	_, err := src.Read(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestMockSource_SyntheticRead(t *testing.T) {
	cfg := smallConfig()
	src := NewMockSource(cfg, nil)
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, src.Start(ctx))

	chunk, err := src.Read(ctx)
	require.NoError(t, err)
	assert.Len(t, chunk.Samples, cfg.BufferSize())
	assert.Equal(t, cfg.SampleRate, chunk.SampleRate)
	for _, s := range chunk.Samples {
		require.Zero(t, s, "default mock produces silence")
	}
}

func TestMockSource_SineWave(t *testing.T) {
	src := NewMockSource(smallConfig(), nil, WithSineWave(440, 0.5))
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, src.Start(ctx))

	chunk, err := src.Read(ctx)
	require.NoError(t, err)
	assert.Greater(t, Level(chunk.Samples), 0.1)
}

func TestMockSource_ScriptedThenBlocks(t *testing.T) {
	a := AudioChunk{Samples: []int16{1, 2}, SampleRate: 16000, Channels: 1}
	b := AudioChunk{Samples: []int16{3, 4}, SampleRate: 16000, Channels: 1}
	src := NewMockSource(smallConfig(), nil, WithChunks(a, b))
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, src.Start(ctx))

	got, err := src.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, a, got)
	got, err = src.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, b, got)

	_, err = src.Read(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int64(2), src.Stats().ChunksRead)
}

func TestMockSource_ReadError(t *testing.T) {
	boom := errors.New("unplugged")
	src := NewMockSource(smallConfig(), nil, WithReadError(boom))
	defer src.Close()

	require.NoError(t, src.Start(context.Background()))
	_, err := src.Read(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestMockSource_Close(t *testing.T) {
	src := NewMockSource(smallConfig(), nil)
	require.NoError(t, src.Start(context.Background()))
	require.NoError(t, src.Close())
	require.NoError(t, src.Close())

	assert.True(t, src.Closed())
	assert.ErrorIs(t, src.Start(context.Background()), io.ErrClosedPipe)
}

func TestMockSink_WriteAndRecord(t *testing.T) {
	sink := NewMockSink(DefaultPlaybackConfig(), nil)
	defer sink.Close()

	ctx := context.Background()
	require.NoError(t, sink.Start(ctx))

	for i := int16(0); i < 3; i++ {
		require.NoError(t, sink.Write(ctx, AudioChunk{Samples: []int16{i}, SampleRate: 24000, Channels: 1}))
	}

	written := sink.Written()
	require.Len(t, written, 3)
	for i, c := range written {
		assert.Equal(t, []int16{int16(i)}, c.Samples)
	}

	require.NoError(t, sink.Clear())
	assert.Equal(t, int64(1), sink.Clears())

	stats := sink.Stats()
	assert.Equal(t, int64(3), stats.ChunksWritten)
	assert.True(t, stats.Running)
}

func TestMockSink_NotRunning(t *testing.T) {
	sink := NewMockSink(DefaultPlaybackConfig(), nil)
	err := sink.Write(context.Background(), AudioChunk{Samples: []int16{1}})
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}

func TestMockSink_WriteHookError(t *testing.T) {
	boom := errors.New("speaker gone")
	sink := NewMockSink(DefaultPlaybackConfig(), nil, WithWriteHook(func(context.Context, AudioChunk) error {
		return boom
	}))
	require.NoError(t, sink.Start(context.Background()))

	err := sink.Write(context.Background(), AudioChunk{Samples: []int16{1}})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, sink.Written())
}

func TestAudioChunk_BytesRoundTrip(t *testing.T) {
	chunk := AudioChunk{Samples: []int16{0, 1, -1, 32767, -32768}, SampleRate: 16000, Channels: 1}
	data := chunk.Bytes()
	assert.Equal(t, []byte{0x00, 0x00, 0x01, 0x00, 0xff, 0xff, 0xff, 0x7f, 0x00, 0x80}, data)

	back := ChunkFromBytes(data, 16000, 1)
	assert.Equal(t, chunk, back)
}

func TestAudioChunk_Duration(t *testing.T) {
	chunk := AudioChunk{Samples: make([]int16, 24000), SampleRate: 24000, Channels: 1}
	assert.InDelta(t, 1.0, chunk.Duration(), 1e-9)
	assert.Zero(t, (&AudioChunk{}).Duration())
}

func TestConfig(t *testing.T) {
	cfg := DefaultCaptureConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 2048, cfg.BufferBytes())
	assert.Equal(t, 64*time.Millisecond, cfg.BufferDuration())
	assert.Equal(t, "audio/pcm;rate=16000", cfg.MIMEType())
	assert.Equal(t, 16000, cfg.DeviceRate())

	cfg.DeviceSampleRate = 48000
	assert.Equal(t, 48000, cfg.DeviceRate())

	bad := []func(*Config){
		func(c *Config) { c.SampleRate = 0 },
		func(c *Config) { c.Channels = 0 },
		func(c *Config) { c.FramesPerBuffer = -1 },
		func(c *Config) { c.DeviceSampleRate = -1 },
	}
	for i, mutate := range bad {
		c := DefaultCaptureConfig()
		mutate(&c)
		assert.Error(t, c.Validate(), "case %d", i)
	}
}

func TestFactory_Mock(t *testing.T) {
	cfg := smallConfig()
	cfg.Backend = BackendMock

	src, err := NewSource(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "mock", src.Name())

	sink, err := NewSink(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "mock", sink.Name())

	cfg.Backend = "carrier-pigeon"
	_, err = NewSource(cfg, nil)
	assert.Error(t, err)

	assert.Contains(t, AvailableBackends(), BackendMock)
}
