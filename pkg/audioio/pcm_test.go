package audioio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResample(t *testing.T) {
	tests := []struct {
		name     string
		in       []int16
		from, to int
		wantLen  int
	}{
		{"same rate", []int16{1, 2, 3, 4}, 16000, 16000, 4},
		{"downsample 3x", make([]int16, 480), 48000, 16000, 160},
		{"upsample 1.5x", make([]int16, 160), 16000, 24000, 240},
		{"empty", nil, 16000, 24000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, Resample(tt.in, tt.from, tt.to), tt.wantLen)
		})
	}
}

func TestResample_Interpolates(t *testing.T) {
	out := Resample([]int16{0, 100}, 1, 2)
	assert.Equal(t, []int16{0, 50, 100, 100}, out)
}

func TestBytesToSamples_OddLength(t *testing.T) {
	assert.Equal(t, []int16{0x0201}, BytesToSamples([]byte{0x01, 0x02, 0x03}))
}

func TestLevel(t *testing.T) {
	assert.Zero(t, Level(nil))
	assert.Zero(t, Level([]int16{0, 0, 0}))
	assert.InDelta(t, 1.0, Level([]int16{32767, -32767}), 1e-9)
}
