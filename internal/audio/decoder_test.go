package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFloat32LE(t *testing.T) {
	samples := []float32{0, 1.5, -0.25, 3.0e-5}
	payload := EncodeFloat32LE(samples)
	require.Len(t, payload, 16)

	assert.Equal(t, samples, DecodeFloat32LE(payload))
}

func TestDecodeFloat32LE_LittleEndian(t *testing.T) {
	// 1.0 = 0x3f800000
	got := DecodeFloat32LE([]byte{0x00, 0x00, 0x80, 0x3f})
	assert.Equal(t, []float32{1.0}, got)
}

func TestDecodeFloat32LE_TruncatesPartialSample(t *testing.T) {
	full := EncodeFloat32LE([]float32{1, 2, 3})

	tests := []struct {
		name string
		size int
		want int
	}{
		{"empty", 0, 0},
		{"short", 3, 0},
		{"exact one", 4, 1},
		{"one plus one byte", 5, 1},
		{"two plus three bytes", 11, 2},
		{"exact three", 12, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeFloat32LE(full[:tt.size])
			assert.Len(t, got, tt.want)
			for i := range got {
				assert.Equal(t, float32(i+1), got[i])
			}
		})
	}
}

func TestDecodeFloat32LE_NoClamping(t *testing.T) {
	samples := []float32{42, -1000, float32(math.Inf(1))}
	assert.Equal(t, samples, DecodeFloat32LE(EncodeFloat32LE(samples)))
}
