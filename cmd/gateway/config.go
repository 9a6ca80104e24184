package main

import (
	"github.com/echoear/gateway/internal/env"
	"github.com/echoear/gateway/internal/prompts"
)

// config holds every environment-configurable knob for one gateway process.
type config struct {
	port string

	ollamaURL   string
	ollamaModel string

	openaiAPIKey string
	openaiURL    string
	openaiModel  string

	anthropicAPIKey string
	anthropicURL    string
	anthropicModel  string

	llmMaxTokens    int
	asrPoolSize     int
	llmPoolSize     int
	ttsPoolSize     int
	llmSystemPrompt string

	whisperServerURL string
	piperURL         string
	piperVoice       string

	defaultASREngine string
	defaultLLMEngine string
	defaultTTSEngine string

	postgresURL string
	secretKey   string

	// deviceCredentials seeds the in-memory device directory when no
	// Postgres database is configured, as "device_id:token" pairs.
	deviceCredentials string
}

func loadConfig() config {
	return config{
		port: env.Str("GATEWAY_PORT", "8000"),

		ollamaURL:   env.Str("OLLAMA_URL", "http://localhost:11434"),
		ollamaModel: env.Str("OLLAMA_MODEL", "llama3.2:3b"),

		openaiAPIKey: env.Str("OPENAI_API_KEY", ""),
		openaiURL:    env.Str("OPENAI_URL", "https://api.openai.com"),
		openaiModel:  env.Str("OPENAI_MODEL", "gpt-4.1-nano"),

		anthropicAPIKey: env.Str("ANTHROPIC_API_KEY", ""),
		anthropicURL:    env.Str("ANTHROPIC_URL", "https://api.anthropic.com"),
		anthropicModel:  env.Str("ANTHROPIC_MODEL", "claude-sonnet-4-5"),

		llmMaxTokens:    env.Int("LLM_MAX_TOKENS", 512),
		asrPoolSize:     env.Int("ASR_POOL_SIZE", 50),
		llmPoolSize:     env.Int("LLM_POOL_SIZE", 50),
		ttsPoolSize:     env.Int("TTS_POOL_SIZE", 50),
		llmSystemPrompt: env.Str("LLM_SYSTEM_PROMPT", prompts.DefaultSystem),

		whisperServerURL: env.Str("WHISPER_SERVER_URL", ""),
		piperURL:         env.Str("PIPER_URL", "http://localhost:5100"),
		piperVoice:       env.Str("PIPER_VOICE", "en_US-lessac-medium"),

		defaultASREngine: env.Str("DEFAULT_ASR_ENGINE", "whisper-server"),
		defaultLLMEngine: env.Str("DEFAULT_LLM_ENGINE", "ollama"),
		defaultTTSEngine: env.Str("DEFAULT_TTS_ENGINE", "piper"),

		postgresURL: env.Str("POSTGRES_URL", ""),
		secretKey:   env.Str("SECRET_KEY", ""),

		deviceCredentials: env.Str("DEVICE_CREDENTIALS", ""),
	}
}
