package audio

import (
	"encoding/binary"
	"math"
)

func decodePCM(data []byte) []float32 {
	return BytesToSamples(data)
}

// BytesToSamples converts little-endian int16 PCM bytes to float32 samples
// normalized to [-1, 1].
func BytesToSamples(data []byte) []float32 {
	n := len(data) / 2
	samples := make([]float32, n)
	for i := range n {
		s := int16(binary.LittleEndian.Uint16(data[i*2:]))
		samples[i] = float32(s) / math.MaxInt16
	}
	return samples
}

// SamplesToBytes converts float32 samples in [-1, 1] to little-endian int16
// PCM bytes, the inverse of BytesToSamples.
func SamplesToBytes(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		clamped := max(float32(-1.0), min(float32(1.0), s))
		val := int16(clamped * math.MaxInt16)
		binary.LittleEndian.PutUint16(out[i*2:], uint16(val))
	}
	return out
}
