// Package audio 提供音频数据解码和滑动窗口缓冲
package audio

import (
	"encoding/binary"
	"math"
)

// BytesPerSample float32 PCM 每个采样点的字节数
const BytesPerSample = 4

// DecodeFloat32LE 将二进制负载解析为小端 float32 PCM 采样
//
// 长度不是 4 的整数倍时只解析最长的有效前缀，末尾不完整的采样被丢弃。
// 这是约定行为而不是错误，客户端可能依赖它。采样值不做范围裁剪。
func DecodeFloat32LE(payload []byte) []float32 {
	n := len(payload) / BytesPerSample
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(payload[i*BytesPerSample:])
		samples[i] = math.Float32frombits(bits)
	}
	return samples
}

// EncodeFloat32LE 将 float32 采样编码为小端二进制负载
func EncodeFloat32LE(samples []float32) []byte {
	payload := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(payload[i*BytesPerSample:], math.Float32bits(s))
	}
	return payload
}
