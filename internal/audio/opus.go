package audio

import (
	"fmt"

	"gopkg.in/hraban/opus.v2"
)

// FrameSamples is the fixed frame size the device protocol uses: 960 samples
// = 60ms at 16kHz mono, one opus packet per wire frame.
const FrameSamples = 960

// OpusSampleRate and OpusChannels are the device's negotiated audio params.
const (
	OpusSampleRate  = 16000
	OpusChannels    = 1
	OpusBitrate     = 24000
	FrameDurationMs = FrameSamples * 1000 / OpusSampleRate
)

// DecodeOpusFrames decodes a sequence of opus packets into one contiguous
// little-endian int16 PCM byte slice. Each packet must decode to exactly
// FrameSamples samples, matching the device's fixed 60ms framing.
func DecodeOpusFrames(packets [][]byte) ([]byte, error) {
	dec, err := opus.NewDecoder(OpusSampleRate, OpusChannels)
	if err != nil {
		return nil, fmt.Errorf("opus decoder: %w", err)
	}

	pcm := make([]byte, 0, len(packets)*FrameSamples*2)
	frame := make([]int16, FrameSamples)
	for _, packet := range packets {
		n, decErr := dec.Decode(packet, frame)
		if decErr != nil {
			return nil, fmt.Errorf("opus decode: %w", decErr)
		}
		pcm = append(pcm, int16SliceToLEBytes(frame[:n])...)
	}
	return pcm, nil
}

// EncodeOpusFrames encodes little-endian int16 PCM bytes (already at
// OpusSampleRate) into a sequence of 60ms opus packets, zero-padding the
// trailing partial frame.
func EncodeOpusFrames(pcm []byte) ([][]byte, error) {
	enc, err := opus.NewEncoder(OpusSampleRate, OpusChannels, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("opus encoder: %w", err)
	}
	if err := enc.SetBitrate(OpusBitrate); err != nil {
		return nil, fmt.Errorf("opus set bitrate: %w", err)
	}

	samples := leBytesToInt16Slice(pcm)
	frameBytes := make([]byte, 4000) // opus max packet size guidance

	var packets [][]byte
	for i := 0; i < len(samples); i += FrameSamples {
		end := i + FrameSamples
		var frame []int16
		if end <= len(samples) {
			frame = samples[i:end]
		} else {
			frame = make([]int16, FrameSamples)
			copy(frame, samples[i:])
		}
		n, encErr := enc.Encode(frame, frameBytes)
		if encErr != nil {
			return nil, fmt.Errorf("opus encode: %w", encErr)
		}
		packet := make([]byte, n)
		copy(packet, frameBytes[:n])
		packets = append(packets, packet)
	}
	return packets, nil
}

func int16SliceToLEBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

func leBytesToInt16Slice(data []byte) []int16 {
	n := len(data) / 2
	out := make([]int16, n)
	for i := range n {
		out[i] = int16(uint16(data[i*2]) | uint16(data[i*2+1])<<8)
	}
	return out
}
