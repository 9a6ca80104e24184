package pipeline

import (
	"context"
	"testing"
)

func TestASRClient_ShortAudioSkipsProvider(t *testing.T) {
	t.Parallel()

	// 16kHz mono 16-bit PCM, 100ms worth of samples: well under
	// minTranscribeDuration. The client URL is left empty; if Transcribe
	// reached the HTTP request it would fail to dial and return an error
	// instead of a result.
	samples := 1600 // 100ms at 16kHz
	pcm := make([]byte, samples*2)

	c := NewASRClient("", 1)
	result, err := c.Transcribe(context.Background(), pcm)
	if err != nil {
		t.Fatalf("Transcribe error: %v", err)
	}
	if result.Text != "" {
		t.Fatalf("Text = %q, want empty for short audio", result.Text)
	}
}

func TestASRClient_EmptyAudioSkipsProvider(t *testing.T) {
	t.Parallel()

	c := NewASRClient("", 1)
	result, err := c.Transcribe(context.Background(), nil)
	if err != nil {
		t.Fatalf("Transcribe error: %v", err)
	}
	if result.Text != "" {
		t.Fatalf("Text = %q, want empty for empty audio", result.Text)
	}
}
