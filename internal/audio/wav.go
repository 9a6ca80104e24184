package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	goaudio "github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"
)

// SamplesToWAV encodes float32 PCM samples as a WAV byte slice.
func SamplesToWAV(samples []float32, sampleRate int) []byte {
	dataLen := len(samples) * 2
	totalLen := 44 + dataLen

	buf := make([]byte, totalLen)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(totalLen-8))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2)) // byte rate
	binary.LittleEndian.PutUint16(buf[32:34], 2)                    // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16)                   // bits per sample
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))

	for i, s := range samples {
		clamped := max(-1.0, min(1.0, s))
		val := int16(clamped * math.MaxInt16)
		binary.LittleEndian.PutUint16(buf[44+i*2:], uint16(val))
	}

	return buf
}

// PCMBytesToWAV wraps raw little-endian int16 PCM bytes in a RIFF/WAVE
// container without touching the sample data, matching the ASR adapter's
// pcm_to_wav step (the samples are already in wire format; there is no
// float32 round trip to pay for on this path).
func PCMBytesToWAV(pcmBytes []byte, sampleRate int) []byte {
	dataLen := len(pcmBytes)
	totalLen := 44 + dataLen

	buf := make([]byte, totalLen)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(totalLen-8))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2)) // byte rate
	binary.LittleEndian.PutUint16(buf[32:34], 2)                    // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16)                   // bits per sample
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))
	copy(buf[44:], pcmBytes)

	return buf
}

// ValidateWAV decodes a container built by PCMBytesToWAV and confirms its
// format chunk matches what the ASR provider expects, catching a malformed
// header before it reaches the wire.
func ValidateWAV(wavBytes []byte, expectedSampleRate int) error {
	dec := gowav.NewDecoder(bytes.NewReader(wavBytes))
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return fmt.Errorf("decode wav container: %w", err)
	}
	return checkFormat(buf.Format, expectedSampleRate)
}

func checkFormat(f *goaudio.Format, expectedSampleRate int) error {
	if f == nil {
		return fmt.Errorf("wav container missing format chunk")
	}
	if f.SampleRate != expectedSampleRate {
		return fmt.Errorf("wav sample rate = %d, want %d", f.SampleRate, expectedSampleRate)
	}
	if f.NumChannels != 1 {
		return fmt.Errorf("wav channel count = %d, want 1", f.NumChannels)
	}
	return nil
}

// PeakNormalize applies the ASR preprocessing rule: near-silent input (peak
// < 100) and already-loud input (> -6 dBFS) pass through unchanged; anything
// in between is gained up so its peak reaches -3 dBFS, clipped to int16.
func PeakNormalize(pcmBytes []byte) []byte {
	n := len(pcmBytes) / 2
	if n == 0 {
		return pcmBytes
	}

	peak := 0.0
	samples := make([]float64, n)
	for i := range n {
		s := float64(int16(binary.LittleEndian.Uint16(pcmBytes[i*2:])))
		samples[i] = s
		if abs := math.Abs(s); abs > peak {
			peak = abs
		}
	}

	if peak < 100 {
		return pcmBytes
	}

	currentPeakDB := 20 * math.Log10(peak/32768)
	if currentPeakDB > -6 {
		return pcmBytes
	}

	targetPeak := 32768 * math.Pow(10, -3.0/20)
	gain := targetPeak / peak

	out := make([]byte, len(pcmBytes))
	for i, s := range samples {
		v := s * gain
		v = max(-32768, min(32767, v))
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out
}
