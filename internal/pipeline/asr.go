package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/echoear/gateway/internal/audio"
	"github.com/echoear/gateway/internal/metrics"
)

// minTranscribeDuration filters very short recordings (noise/accidental
// triggers) without invoking the provider at all.
const minTranscribeDuration = 500 * time.Millisecond

// asrPrompt is the Whisper vocabulary hint. It must stay under ~170
// characters — longer prompts measurably degrade recognition.
const asrPrompt = "EchoEar voice assistant. play music, next track, pause, resume, stop, " +
	"volume up, volume down, remind me, set an alarm, what's the weather, search, hello, thanks, goodbye."

// ASRClient transcribes PCM audio against a whisper.cpp-compatible HTTP endpoint.
type ASRClient struct {
	url    string
	client *http.Client
}

// NewASRClient creates a client pointing at the whisper.cpp server URL.
func NewASRClient(url string, poolSize int) *ASRClient {
	return &ASRClient{
		url:    url,
		client: NewPooledHTTPClient(poolSize, 30*time.Second),
	}
}

// ASRResult holds the transcription output.
type ASRResult struct {
	Text      string  `json:"text"`
	LatencyMs float64 `json:"latency_ms"`
}

// Transcribe sends 16kHz mono 16-bit PCM bytes to the ASR endpoint and
// returns the transcript, filtered for hallucinations. Returns "" without
// invoking the provider when the clip is shorter than minTranscribeDuration.
func (c *ASRClient) Transcribe(ctx context.Context, pcmBytes []byte) (*ASRResult, error) {
	duration := pcmDuration(pcmBytes)
	if duration < minTranscribeDuration {
		slog.Info("asr: skipping short audio", "duration_ms", duration.Milliseconds())
		return &ASRResult{}, nil
	}

	start := time.Now()
	normalized := audio.PeakNormalize(pcmBytes)

	body, contentType, err := buildMultipartWAV(normalized)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.url+"/inference", body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.Errors.WithLabelValues("asr", "http").Inc()
		return nil, fmt.Errorf("asr request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		metrics.Errors.WithLabelValues("asr", "status").Inc()
		return nil, fmt.Errorf("asr status %d: %s", resp.StatusCode, string(respBody))
	}

	var whisperResp whisperResponse
	if err = json.NewDecoder(resp.Body).Decode(&whisperResp); err != nil {
		return nil, fmt.Errorf("decode asr response: %w", err)
	}

	latency := time.Since(start)
	metrics.StageDuration.WithLabelValues("asr").Observe(latency.Seconds())

	text := FilterHallucination(whisperResp.Text)
	if text != whisperResp.Text {
		metrics.ASRNoiseFiltered.Inc()
	}

	return &ASRResult{
		Text:      text,
		LatencyMs: float64(latency.Milliseconds()),
	}, nil
}

func pcmDuration(pcmBytes []byte) time.Duration {
	samples := len(pcmBytes) / 2
	seconds := float64(samples) / float64(audio.OpusSampleRate)
	return time.Duration(seconds * float64(time.Second))
}

type whisperResponse struct {
	Text string `json:"text"`
}

func buildMultipartWAV(pcmBytes []byte) (*bytes.Buffer, string, error) {
	wavData := audio.PCMBytesToWAV(pcmBytes, audio.OpusSampleRate)
	if err := audio.ValidateWAV(wavData, audio.OpusSampleRate); err != nil {
		return nil, "", fmt.Errorf("built wav container failed validation: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err = part.Write(wavData); err != nil {
		return nil, "", fmt.Errorf("write wav data: %w", err)
	}
	if err = writer.WriteField("prompt", asrPrompt); err != nil {
		return nil, "", fmt.Errorf("write prompt field: %w", err)
	}
	if err = writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close writer: %w", err)
	}

	return &body, writer.FormDataContentType(), nil
}
