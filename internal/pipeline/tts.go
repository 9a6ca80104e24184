package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/echoear/gateway/internal/audio"
	"github.com/echoear/gateway/internal/metrics"
)

// piperSampleRate is the rate Piper-compatible backends render at. The
// adapter resamples down to the device's negotiated 16 kHz before encoding.
const piperSampleRate = 24000

// TTSResult holds synthesized audio, as ordered opus frames ready for the
// rate controller, with timing.
type TTSResult struct {
	Frames    [][]byte
	LatencyMs float64
}

// TTSClient synthesizes speech from text via a Piper-compatible HTTP API,
// then resamples and opus-encodes the result on the calling goroutine once a
// slot in a bounded worker pool is free.
type TTSClient struct {
	piperURL string
	voice    string
	client   *http.Client
	pool     *WorkerPool
}

// NewTTSClient creates a TTS client pointing at the Piper service for the
// given voice model.
func NewTTSClient(piperURL, voice string, poolSize int) *TTSClient {
	return &TTSClient{
		piperURL: piperURL,
		voice:    voice,
		client:   NewPooledHTTPClient(poolSize, 30*time.Second),
		pool:     NewWorkerPool(4),
	}
}

// Synthesize converts text to speech and returns it as opus frames at the
// device's 16 kHz frame rate.
func (c *TTSClient) Synthesize(ctx context.Context, text string) (*TTSResult, error) {
	start := time.Now()

	raw, err := c.fetchPCM(ctx, text)
	if err != nil {
		return nil, err
	}

	var frames [][]byte
	var encErr error
	poolErr := c.pool.Run(ctx, func() {
		frames, encErr = encodeForDevice(raw)
	})
	if poolErr != nil {
		return nil, fmt.Errorf("tts encode: %w", poolErr)
	}
	if encErr != nil {
		return nil, fmt.Errorf("tts encode: %w", encErr)
	}

	latency := time.Since(start)
	metrics.StageDuration.WithLabelValues("tts").Observe(latency.Seconds())

	return &TTSResult{Frames: frames, LatencyMs: float64(latency.Milliseconds())}, nil
}

// encodeForDevice resamples provider-rate PCM down to the device sample
// rate and opus-encodes it. Run inside the worker pool — CPU-bound.
func encodeForDevice(raw []byte) ([][]byte, error) {
	samples := audio.BytesToSamples(raw)
	resampled := audio.Resample(samples, piperSampleRate, audio.OpusSampleRate)
	pcmBytes := audio.SamplesToBytes(resampled)
	return audio.EncodeOpusFrames(pcmBytes)
}

func (c *TTSClient) fetchPCM(ctx context.Context, text string) ([]byte, error) {
	reqBody, err := json.Marshal(ttsRequest{Text: text, Voice: c.voice})
	if err != nil {
		return nil, fmt.Errorf("marshal tts request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.piperURL+"/synthesize", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create tts request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.Errors.WithLabelValues("tts", "http").Inc()
		return nil, fmt.Errorf("tts request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.Errors.WithLabelValues("tts", "status").Inc()
		return nil, fmt.Errorf("tts status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

type ttsRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}
