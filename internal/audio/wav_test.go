package audio

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeWAV(t *testing.T, sampleRate, channels int, data []int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	require.NoError(t, enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())
	return path
}

func TestReadWAV_Mono(t *testing.T) {
	path := writeWAV(t, 16000, 1, []int{0, 16384, -16384, -32768})

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	clip, err := ReadWAV(f)
	require.NoError(t, err)
	assert.Equal(t, 16000, clip.SampleRate)
	assert.Equal(t, []float32{0, 0.5, -0.5, -1}, clip.Samples)
	assert.InDelta(t, 4.0/16000, clip.Duration(), 1e-9)
}

func TestReadWAV_StereoDownmix(t *testing.T) {
	path := writeWAV(t, 8000, 2, []int{16384, 0, -16384, -16384})

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	clip, err := ReadWAV(f)
	require.NoError(t, err)
	assert.Equal(t, 8000, clip.SampleRate)
	assert.Equal(t, []float32{0.25, -0.5}, clip.Samples)
}

func TestReadWAV_Invalid(t *testing.T) {
	_, err := ReadWAV(bytes.NewReader([]byte("definitely not a wav file")))
	assert.ErrorIs(t, err, ErrInvalidWAV)
}
