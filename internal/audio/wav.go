package audio

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/wav"
)

// ErrInvalidWAV 文件不是有效的PCM WAV
var ErrInvalidWAV = errors.New("audio: invalid wav file")

// Clip 解码后的单声道音频
type Clip struct {
	Samples    []float32 // 归一化到[-1, 1]的单声道采样
	SampleRate int
}

// Duration 音频时长(秒)
func (c Clip) Duration() float64 {
	if c.SampleRate == 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

// ReadWAV 读取整数PCM WAV并转换为单声道float32，多声道取平均
func ReadWAV(r io.ReadSeeker) (Clip, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return Clip{}, ErrInvalidWAV
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Clip{}, fmt.Errorf("decode wav: %w", err)
	}
	if buf.Format == nil || buf.Format.NumChannels < 1 {
		return Clip{}, ErrInvalidWAV
	}

	bitDepth := int(dec.BitDepth)
	if bitDepth < 8 || bitDepth > 32 {
		return Clip{}, fmt.Errorf("%w: unsupported bit depth %d", ErrInvalidWAV, bitDepth)
	}
	scale := float32(int64(1) << (bitDepth - 1))
	channels := buf.Format.NumChannels

	frames := len(buf.Data) / channels
	samples := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			v := buf.Data[i*channels+ch]
			if bitDepth == 8 {
				v -= 128 // 8位WAV是无符号的
			}
			sum += float32(v) / scale
		}
		samples[i] = sum / float32(channels)
	}

	return Clip{Samples: samples, SampleRate: buf.Format.SampleRate}, nil
}
