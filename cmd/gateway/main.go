package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nlpodyssey/openai-agents-go/agents"
	"github.com/openai/openai-go/v2/packages/param"

	"github.com/echoear/gateway/internal/device"
	"github.com/echoear/gateway/internal/pipeline"
	"github.com/echoear/gateway/internal/reminder"
	"github.com/echoear/gateway/internal/scheduler"
	"github.com/echoear/gateway/internal/tools"
	"github.com/echoear/gateway/internal/tools/builtin"
	"github.com/echoear/gateway/internal/trace"
	"github.com/echoear/gateway/internal/ws"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg := loadConfig()

	asrRouter := initASR(cfg)
	llmRouter := initLLM(cfg)
	ttsRouter := initTTS(cfg)

	var store *reminder.Store
	var directory device.Directory
	if cfg.postgresURL != "" {
		var err error
		store, err = reminder.Open(cfg.postgresURL)
		if err != nil {
			slog.Error("reminder store open failed", "error", err)
			os.Exit(1)
		}
		directory = device.NewPostgresDirectory(store.DB)
	} else {
		mem := device.NewMemoryDirectory()
		seedDeviceCredentials(mem, cfg.deviceCredentials)
		directory = mem
	}

	var traceStore *trace.Store
	if cfg.postgresURL != "" {
		var traceErr error
		traceStore, traceErr = trace.Open(cfg.postgresURL)
		if traceErr != nil {
			slog.Error("trace store open failed", "error", traceErr)
		} else {
			slog.Info("tracing enabled", "postgres", cfg.postgresURL)
		}
	}

	history := pipeline.NewHistory()
	toolRegistry := tools.NewRegistry()
	builtin.RegisterAll(toolRegistry, store, history)

	pl := pipeline.New(asrRouter, ttsRouter, llmRouter, history, toolRegistry)
	pl.SystemPrompt = cfg.llmSystemPrompt
	pl.Trace = traceStore
	connRegistry := ws.NewRegistry()

	handler := ws.NewHandler(ws.HandlerConfig{
		Pipeline:  pl,
		Directory: directory,
		Registry:  connRegistry,
		SecretKey: cfg.secretKey,
		Trace:     traceStore,
	})

	ctx, cancelScheduler := context.WithCancel(context.Background())
	if store != nil {
		sched := scheduler.New(store, connRegistry, ttsRouter, cfg.defaultTTSEngine)
		sched.Trace = traceStore
		go sched.Run(ctx)
	}

	mux := http.NewServeMux()
	registerRoutes(mux, deps{
		asrRouter:  asrRouter,
		llmRouter:  llmRouter,
		ttsRouter:  ttsRouter,
		wsHandler:  handler,
		traceStore: traceStore,
	})

	addr := ":" + cfg.port
	srv := &http.Server{Addr: addr, Handler: mux}

	go awaitShutdown(srv, cancelScheduler, store)

	slog.Info("gateway starting", "addr", addr)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}

	slog.Info("gateway stopped")
}

// awaitShutdown blocks until SIGINT/SIGTERM, then stops the reminder
// scheduler, drains connections, and closes the database.
func awaitShutdown(srv *http.Server, cancelScheduler context.CancelFunc, store *reminder.Store) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutting down", "signal", sig)

	cancelScheduler()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	srv.Shutdown(ctx)

	if store != nil {
		store.DB.Close()
	}
}

// seedDeviceCredentials registers "device_id:token" pairs from a
// comma-separated DEVICE_CREDENTIALS value against an in-memory directory,
// for local development without Postgres.
func seedDeviceCredentials(dir *device.MemoryDirectory, raw string) {
	if raw == "" {
		return
	}
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			continue
		}
		if err := dir.Register(context.Background(), parts[0], parts[1]); err != nil {
			slog.Warn("seed device credential failed", "device_id", parts[0], "error", err)
		}
	}
}

func initASR(cfg config) *pipeline.ASRRouter {
	backends := map[string]pipeline.ASRTranscriber{}
	if cfg.whisperServerURL != "" {
		backends["whisper-server"] = pipeline.NewASRClient(cfg.whisperServerURL, cfg.asrPoolSize)
	}
	return pipeline.NewASRRouter(backends, cfg.defaultASREngine)
}

func initLLM(cfg config) *pipeline.AgentLLM {
	router := pipeline.NewAgentLLM(cfg.defaultLLMEngine, cfg.llmMaxTokens)
	router.Register("ollama", agents.NewOpenAIProvider(agents.OpenAIProviderParams{
		BaseURL:      param.NewOpt(cfg.ollamaURL + "/v1/"),
		APIKey:       param.NewOpt("ollama"),
		UseResponses: param.NewOpt(false),
	}), cfg.ollamaModel)
	if cfg.openaiAPIKey != "" {
		router.Register("openai", agents.NewOpenAIProvider(agents.OpenAIProviderParams{
			BaseURL:      param.NewOpt(cfg.openaiURL + "/v1/"),
			APIKey:       param.NewOpt(cfg.openaiAPIKey),
			UseResponses: param.NewOpt(true),
		}), cfg.openaiModel)
	}
	if cfg.anthropicAPIKey != "" {
		router.Register("anthropic", agents.NewOpenAIProvider(agents.OpenAIProviderParams{
			BaseURL:      param.NewOpt(cfg.anthropicURL + "/v1/"),
			APIKey:       param.NewOpt(cfg.anthropicAPIKey),
			UseResponses: param.NewOpt(false),
		}), cfg.anthropicModel)
	}
	return router
}

func initTTS(cfg config) *pipeline.TTSRouter {
	backends := map[string]pipeline.TTSSynthesizer{
		cfg.defaultTTSEngine: pipeline.NewTTSClient(cfg.piperURL, cfg.piperVoice, cfg.ttsPoolSize),
	}
	return pipeline.NewTTSRouter(backends, cfg.defaultTTSEngine)
}
