package camera

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	for _, s := range []string{"camera", "screen", "none"} {
		m, err := ParseMode(s)
		require.NoError(t, err)
		assert.Equal(t, Mode(s), m)
	}
	_, err := ParseMode("webcam")
	assert.Error(t, err)
}

func TestFitWithin(t *testing.T) {
	tests := []struct {
		w, h, limit  int
		wantW, wantH int
	}{
		{1920, 1080, 1024, 1024, 576},
		{1080, 1920, 1024, 576, 1024},
		{640, 480, 1024, 640, 480},
		{2048, 2048, 1024, 1024, 1024},
		{4000, 1, 1024, 1024, 1},
		{0, 0, 1024, 0, 0},
	}
	for _, tt := range tests {
		w, h := FitWithin(tt.w, tt.h, tt.limit)
		assert.Equal(t, tt.wantW, w, "%dx%d", tt.w, tt.h)
		assert.Equal(t, tt.wantH, h, "%dx%d", tt.w, tt.h)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	assert.Empty(t, cfg.Validate())

	cfg.Quality = 0
	cfg.Interval = time.Millisecond
	cfg.Mode = "hologram"
	assert.Len(t, cfg.Validate(), 3)
}

func TestMatchCamera(t *testing.T) {
	report := []byte(`{"SPCameraDataType":[
		{"_name":"Studio Display Camera","spcamera_unique-id":"B"},
		{"_name":"FaceTime HD Camera","spcamera_unique-id":"A"},
		{"_name":"iPhone Camera","spcamera_unique-id":"C"}
	]}`)

	idx, err := matchCamera(report, "facetime")
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	idx, err = matchCamera(report, "iphone")
	require.NoError(t, err)
	assert.Equal(t, 2, idx)

	_, err = matchCamera(report, "logitech")
	assert.Error(t, err)

	_, err = matchCamera([]byte("not json"), "x")
	assert.Error(t, err)
}

func TestResolveIndex_ExplicitWins(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Index = 3
	cfg.Name = "FaceTime"
	assert.Equal(t, 3, ResolveIndex(context.Background(), cfg, nil))

	cfg.Index = -1
	cfg.Name = ""
	assert.Equal(t, 0, ResolveIndex(context.Background(), cfg, nil))
}

func TestManager_UpdateConfig(t *testing.T) {
	m := NewManager(DefaultConfig())
	var seen Config
	m.OnConfigChange = func(cfg Config) { seen = cfg }

	require.NoError(t, m.UpdateConfig(map[string]any{"quality": 60.0, "max_dimension": 512}))
	assert.Equal(t, 60, m.GetConfig().Quality)
	assert.Equal(t, 512, seen.MaxDimension)

	assert.Error(t, m.UpdateConfig(map[string]any{"quality": 500}))
	assert.Equal(t, 60, m.GetConfig().Quality, "invalid update is not applied")

	assert.Error(t, m.UpdateConfig(map[string]any{"mode": "screen"}))
	assert.Error(t, m.UpdateConfig(map[string]any{"quality": "high"}))
}

func TestMockSource(t *testing.T) {
	src := NewMockSource([]byte("a"), []byte("b"))
	ctx := context.Background()

	for _, want := range []string{"a", "b", "b"} {
		f, err := src.Capture(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, string(f))
	}

	boom := errors.New("lens cap")
	src.FailWith(boom)
	_, err := src.Capture(ctx)
	assert.ErrorIs(t, err, boom)

	require.NoError(t, src.Close())
	assert.True(t, src.Closed())
	_, err = src.Capture(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}
