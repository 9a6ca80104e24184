package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/echoear/gateway/internal/audio"
	"github.com/echoear/gateway/internal/metrics"
	"github.com/echoear/gateway/internal/prompts"
	"github.com/echoear/gateway/internal/session"
	"github.com/echoear/gateway/internal/tools"
	"github.com/echoear/gateway/internal/trace"
	"github.com/echoear/gateway/internal/transport"
)

// keepaliveInterval is how often the pipeline pings the socket while a
// request is in flight, so a slow LLM/TTS turn doesn't let the connection's
// TCP congestion window collapse or a dead peer go undetected.
const keepaliveInterval = 1 * time.Second

// Pipeline wires the provider adapters, conversation history, and tool
// registry needed to run one request end-to-end for any session.
type Pipeline struct {
	ASR     *ASRRouter
	TTS     *TTSRouter
	LLM     LLMTurner
	History *History
	Tools   *tools.Registry

	// SystemPrompt overrides the default assistant system prompt (§9 config).
	// Empty means prompts.DefaultSystem.
	SystemPrompt string

	// Trace, when non-nil, records a run with one span per stage for every
	// call to Run. Nil disables tracing entirely.
	Trace *trace.Store
}

// New creates a Pipeline bound to the given backends.
func New(asr *ASRRouter, tts *TTSRouter, llm LLMTurner, history *History, toolRegistry *tools.Registry) *Pipeline {
	return &Pipeline{ASR: asr, TTS: tts, LLM: llm, History: history, Tools: toolRegistry}
}

// Run drives one request end-to-end: decode, ASR, LLM (with tagged-intent
// dispatch), TTS, and paced playback. It never returns an error — every
// failure path emits an {type:"error"} message and returns, matching the
// connection handler's expectation that Run is safe to launch bare in a
// goroutine.
func (p *Pipeline) Run(parentCtx context.Context, sess *session.Session, sender *transport.Sender) {
	packets := sess.OpusPackets()
	if len(packets) == 0 {
		sendError(sender, "empty audio")
		return
	}

	sess.SetProcessing(true)
	metrics.CallsActive.Inc()
	metrics.CallsTotal.Inc()
	defer func() {
		sess.SetProcessing(false)
		metrics.CallsActive.Dec()
	}()

	ctx, cancelKeepalive := context.WithCancel(parentCtx)
	var wg sync.WaitGroup
	wg.Add(1)
	go p.runKeepalive(ctx, sess, sender, &wg)
	defer func() {
		cancelKeepalive()
		wg.Wait()
	}()

	var tr *trace.Tracer
	if p.Trace != nil {
		tr = trace.NewTracer(p.Trace, sess.SessionID)
		defer tr.Close()
	}
	runID := tr.StartRun()
	start := time.Now()
	runStatus, transcript, response := "ok", "", ""
	defer func() {
		tr.EndRun(runID, msSince(start), transcript, response, runStatus)
	}()

	decodeStart := time.Now()
	pcm, err := audio.DecodeOpusFrames(packets)
	tr.RecordSpan(runID, "decode", decodeStart, msSince(decodeStart), "", "", spanStatus(err), errText(err))
	if err != nil {
		metrics.Errors.WithLabelValues("decode", "opus").Inc()
		sendError(sender, "could not decode audio")
		runStatus = "error"
		return
	}

	if aborted(sess) {
		runStatus = "aborted"
		return
	}

	asrStart := time.Now()
	asrResult, err := p.ASR.Transcribe(ctx, sess.Config.ASREngine, pcm)
	tr.RecordSpan(runID, "asr", asrStart, msSince(asrStart), "", asrResultText(asrResult), spanStatus(err), errText(err))
	if err != nil {
		metrics.Errors.WithLabelValues("asr", "provider").Inc()
		sendError(sender, "transcription failed")
		runStatus = "error"
		return
	}
	transcript = asrResult.Text
	if !sendJSON(sender, asrTextOut{Type: "asr_text", Text: asrResult.Text}, "asr_text") {
		return
	}
	if asrResult.Text == "" {
		return
	}

	if aborted(sess) {
		runStatus = "aborted"
		return
	}

	llmStart := time.Now()
	reply, err := p.runLLMTurn(ctx, sess, asrResult.Text)
	tr.RecordSpan(runID, "llm", llmStart, msSince(llmStart), asrResult.Text, reply, spanStatus(err), errText(err))
	if err != nil {
		metrics.Errors.WithLabelValues("llm", "provider").Inc()
		sendError(sender, "thinking failed")
		runStatus = "error"
		return
	}
	response = reply
	if reply == "" {
		return
	}

	if aborted(sess) {
		runStatus = "aborted"
		return
	}

	ttsStart := time.Now()
	ttsResult, err := p.TTS.Synthesize(ctx, reply, sess.Config.TTSEngine)
	tr.RecordSpan(runID, "tts", ttsStart, msSince(ttsStart), reply, "", spanStatus(err), errText(err))
	if err != nil {
		metrics.Errors.WithLabelValues("tts", "provider").Inc()
		sendError(sender, "speech synthesis failed")
		runStatus = "error"
		return
	}

	if aborted(sess) {
		runStatus = "aborted"
		return
	}

	metrics.E2EDuration.Observe(time.Since(start).Seconds())

	if !sendJSON(sender, ttsStartOut{Type: "tts_start", Text: reply}, "tts_start") {
		return
	}

	sendStart := time.Now()
	rc := audio.NewRateController(audio.FrameDurationMs)
	rc.EnqueueAll(ttsResult.Frames)
	rc.Drain(
		func(frame []byte) bool { return sender.SendBinary(frame, "tts_frame") },
		func() bool { return aborted(sess) },
	)

	if aborted(sess) {
		runStatus = "aborted"
		tr.RecordSpan(runID, "send", sendStart, msSince(sendStart), "", "", "aborted", "")
		return
	}
	tr.RecordSpan(runID, "send", sendStart, msSince(sendStart), "", "", "ok", "")
	sendJSON(sender, ttsEndOut{Type: "tts_end"}, "tts_end")
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}

func spanStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func asrResultText(r *ASRResult) string {
	if r == nil {
		return ""
	}
	return r.Text
}

func aborted(sess *session.Session) bool {
	return sess.TTSAbort.Load()
}

func (p *Pipeline) runKeepalive(ctx context.Context, sess *session.Session, sender *transport.Sender, wg *sync.WaitGroup) {
	defer wg.Done()
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if aborted(sess) {
				continue
			}
			if err := sender.Ping(); err != nil {
				slog.Warn("pipeline keepalive ping failed", "session_id", sess.SessionID, "error", err)
			}
		}
	}
}

// runLLMTurn asks the LLM for a response, parses its tagged intent, dispatches
// any side effect, and returns the text that should be spoken back.
func (p *Pipeline) runLLMTurn(ctx context.Context, sess *session.Session, userText string) (string, error) {
	systemPrompt := fmt.Sprintf(
		prompts.ForSession(p.SystemPrompt)+intentInstructions,
		p.Tools.DescriptionsForLLM(),
	)
	systemPrompt = withHistory(systemPrompt, p.History.Get(sess.DeviceID))

	result, err := p.LLM.ChatForSession(ctx, sess.Config, userText, systemPrompt, "", nil)
	if err != nil {
		return "", err
	}

	intent := ParseIntent(result.Text)
	reply := p.dispatchIntent(ctx, sess, intent)

	p.History.Append(sess.DeviceID, Turn{User: userText, Assistant: reply})
	return reply, nil
}

func (p *Pipeline) dispatchIntent(ctx context.Context, sess *session.Session, intent Intent) string {
	switch intent.Action {
	case ActionExecute:
		result := p.Tools.Execute(ctx, intent.Tool, intent.Args, sess)
		metrics.ToolExecutions.WithLabelValues(intent.Tool, result.Type).Inc()
		return orReply(result.Text, intent.Reply)

	case ActionMusic:
		sess.SetMusicPlaying(true)
		result := p.Tools.Execute(ctx, "youtube.play", map[string]any{"query": intent.Query}, sess)
		metrics.ToolExecutions.WithLabelValues("youtube.play", result.Type).Inc()
		return orReply(result.Text, intent.Reply)

	case ActionMusicStop:
		sess.SetMusicPlaying(false)
		sess.SetMusicPaused(false)
		return orReply(intent.Reply, "Stopped.")

	case ActionMusicPause:
		sess.SetMusicPaused(true)
		return orReply(intent.Reply, "Paused.")

	case ActionRemind:
		result := p.Tools.Execute(ctx, "reminder.set", map[string]any{
			"message": intent.Message,
			"when":    intent.When,
		}, sess)
		metrics.ToolExecutions.WithLabelValues("reminder.set", result.Type).Inc()
		return orReply(result.Text, intent.Reply)

	default:
		return intent.Reply
	}
}

func orReply(primary, fallback string) string {
	if primary != "" {
		return primary
	}
	return fallback
}

func withHistory(systemPrompt string, turns []Turn) string {
	if len(turns) == 0 {
		return systemPrompt
	}
	out := systemPrompt + "\n\nRecent conversation:\n"
	for _, t := range turns {
		out += "User: " + t.User + "\nAssistant: " + t.Assistant + "\n"
	}
	return out
}
