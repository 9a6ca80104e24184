package pipeline

import (
	"context"

	"github.com/echoear/gateway/internal/session"
)

// ASRTranscriber transcribes raw PCM audio into text. Implementations are
// registered with an ASRRouter under an engine name (§3b DOMAIN STACK).
type ASRTranscriber interface {
	Transcribe(ctx context.Context, pcmBytes []byte) (*ASRResult, error)
}

// ASRRouter dispatches transcription requests to the configured engine via
// the generic Router, retrying once against the fallback engine when a
// per-user override engine fails.
type ASRRouter struct {
	*Router[ASRTranscriber]
}

// NewASRRouter creates an ASRRouter over the given engine backends.
func NewASRRouter(backends map[string]ASRTranscriber, fallback string) *ASRRouter {
	return &ASRRouter{Router: NewRouter(backends, fallback)}
}

// Transcribe routes to engine and transcribes pcmBytes. On failure of a
// non-fallback engine, retries once against the fallback engine's backend.
func (r *ASRRouter) Transcribe(ctx context.Context, engine string, pcmBytes []byte) (*ASRResult, error) {
	backend, err := r.Route(engine)
	if err != nil {
		return nil, err
	}
	result, err := backend.Transcribe(ctx, pcmBytes)
	if err == nil || engine == r.fallback || !r.Has(engine) {
		return result, err
	}
	fallbackBackend, fbErr := r.Route(r.fallback)
	if fbErr != nil {
		return nil, err
	}
	return fallbackBackend.Transcribe(ctx, pcmBytes)
}

// TTSSynthesizer synthesizes speech audio from text, returning ordered opus
// frames at the device sample rate.
type TTSSynthesizer interface {
	Synthesize(ctx context.Context, text string) (*TTSResult, error)
}

// TTSRouter dispatches synthesis requests to the configured engine via the
// generic Router.
type TTSRouter struct {
	*Router[TTSSynthesizer]
}

// NewTTSRouter creates a TTSRouter over the given engine backends.
func NewTTSRouter(backends map[string]TTSSynthesizer, fallback string) *TTSRouter {
	return &TTSRouter{Router: NewRouter(backends, fallback)}
}

// Synthesize routes to engine and synthesizes text.
func (r *TTSRouter) Synthesize(ctx context.Context, text, engine string) (*TTSResult, error) {
	backend, err := r.Route(engine)
	if err != nil {
		return nil, err
	}
	return backend.Synthesize(ctx, text)
}

// LLMTurner resolves one conversational turn, including any per-device
// provider override carried on cfg (§4.J session.Config). *AgentLLM is the
// production implementation; tests substitute a fake.
type LLMTurner interface {
	ChatForSession(ctx context.Context, cfg session.ProviderConfig, userMessage, systemPrompt, model string, onToken TokenCallback) (*LLMResult, error)
}
