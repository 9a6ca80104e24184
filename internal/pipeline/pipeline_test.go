package pipeline

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/echoear/gateway/internal/audio"
	"github.com/echoear/gateway/internal/session"
	"github.com/echoear/gateway/internal/tools"
	"github.com/echoear/gateway/internal/transport"
)

// fakeConn records every frame written to it in place of a real socket.
// abortAfterBins, when non-zero, sets sess's abort flag once that many
// binary frames have gone out, simulating an "abort" message arriving
// concurrently while the rate controller is mid-drain.
type fakeConn struct {
	mu             sync.Mutex
	texts          [][]byte
	bins           int
	abortAfterBins int
	sess           *session.Session
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if messageType == websocket.TextMessage {
		f.texts = append(f.texts, append([]byte(nil), data...))
		return nil
	}
	f.bins++
	if f.abortAfterBins > 0 && f.bins >= f.abortAfterBins {
		f.sess.TTSAbort.Store(true)
	}
	return nil
}

func (f *fakeConn) WriteControl(messageType int, data []byte, deadline time.Time) error { return nil }
func (f *fakeConn) SetWriteDeadline(t time.Time) error                                  { return nil }
func (f *fakeConn) Close() error                                                        { return nil }

func (f *fakeConn) lastText() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.texts) == 0 {
		return nil
	}
	var out map[string]any
	_ = json.Unmarshal(f.texts[len(f.texts)-1], &out)
	return out
}

func (f *fakeConn) textTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.texts))
	for _, raw := range f.texts {
		var msg map[string]any
		_ = json.Unmarshal(raw, &msg)
		if t, ok := msg["type"].(string); ok {
			out = append(out, t)
		}
	}
	return out
}

func (f *fakeConn) binCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bins
}

// fakeASR returns a fixed transcript regardless of the audio given to it.
type fakeASR struct{ text string }

func (f *fakeASR) Transcribe(ctx context.Context, pcmBytes []byte) (*ASRResult, error) {
	return &ASRResult{Text: f.text}, nil
}

// fakeLLM returns a fixed reply regardless of the turn it is given.
type fakeLLM struct{ reply string }

func (f *fakeLLM) ChatForSession(ctx context.Context, cfg session.ProviderConfig, userMessage, systemPrompt, model string, onToken TokenCallback) (*LLMResult, error) {
	return &LLMResult{Text: f.reply}, nil
}

// fakeTTS returns a fixed number of fixed-size opus frames regardless of text.
type fakeTTS struct{ frames [][]byte }

func (f *fakeTTS) Synthesize(ctx context.Context, text string) (*TTSResult, error) {
	return &TTSResult{Frames: f.frames}, nil
}

// silencePackets returns n real opus packets encoding silence, so
// audio.DecodeOpusFrames succeeds the way it would on a live connection.
func silencePackets(t *testing.T, n int) [][]byte {
	t.Helper()
	pcm := make([]byte, n*audio.FrameSamples*2)
	packets, err := audio.EncodeOpusFrames(pcm)
	if err != nil {
		t.Fatalf("EncodeOpusFrames: %v", err)
	}
	return packets
}

func newTestPipeline(asrText, llmReply string, ttsFrames [][]byte) *Pipeline {
	asr := NewASRRouter(map[string]ASRTranscriber{"fake": &fakeASR{text: asrText}}, "fake")
	tts := NewTTSRouter(map[string]TTSSynthesizer{"fake": &fakeTTS{frames: ttsFrames}}, "fake")
	return New(asr, tts, &fakeLLM{reply: llmReply}, NewHistory(), tools.NewRegistry())
}

func TestPipeline_EmptyAudioBufferProducesError(t *testing.T) {
	t.Parallel()

	conn := &fakeConn{}
	sender := transport.NewSender(conn, "sess-1")
	sess := session.New("device-1")
	sess.StartListening()
	sess.StopListening() // leaves an empty opus packet buffer

	p := New(nil, nil, nil, NewHistory(), nil)
	p.Run(context.Background(), sess, sender)

	msg := conn.lastText()
	if msg == nil {
		t.Fatal("expected an outbound message, got none")
	}
	if msg["type"] != "error" {
		t.Fatalf("type = %v, want error", msg["type"])
	}
	if msg["message"] != "empty audio" {
		t.Fatalf("message = %v, want \"empty audio\"", msg["message"])
	}
	if sess.IsProcessing() {
		t.Fatal("session should not be left in the processing state")
	}
}

func TestPipeline_HappyPathSendsAsrTextTTSStartFramesAndEnd(t *testing.T) {
	t.Parallel()

	frames := [][]byte{[]byte("f1"), []byte("f2"), []byte("f3")}
	p := newTestPipeline("what time is it", "It's three o'clock.", frames)

	conn := &fakeConn{}
	sender := transport.NewSender(conn, "sess-1")
	sess := session.New("device-1")
	sess.StartListening()
	for _, pkt := range silencePackets(t, 2) {
		sess.AppendOpusPacket(pkt)
	}
	sess.StopListening()

	p.Run(context.Background(), sess, sender)

	types := conn.textTypes()
	if len(types) != 3 || types[0] != "asr_text" || types[1] != "tts_start" || types[2] != "tts_end" {
		t.Fatalf("text frame types = %v, want [asr_text tts_start tts_end]", types)
	}
	if conn.binCount() != len(frames) {
		t.Fatalf("binary frames sent = %d, want %d", conn.binCount(), len(frames))
	}
	if sess.IsProcessing() {
		t.Fatal("session should not be left in the processing state")
	}
}

func TestPipeline_AbortMidDrainStopsFramesAndSkipsTTSEnd(t *testing.T) {
	t.Parallel()

	frames := make([][]byte, 20)
	for i := range frames {
		frames[i] = []byte("frame")
	}
	p := newTestPipeline("play some music", "Sure thing.", frames)

	sess := session.New("device-1")
	conn := &fakeConn{abortAfterBins: 2, sess: sess}
	sender := transport.NewSender(conn, "sess-1")
	sess.StartListening()
	for _, pkt := range silencePackets(t, 2) {
		sess.AppendOpusPacket(pkt)
	}
	sess.StopListening()

	p.Run(context.Background(), sess, sender)

	if conn.binCount() >= len(frames) {
		t.Fatalf("expected abort to stop playback before all %d frames were sent, got %d", len(frames), conn.binCount())
	}

	types := conn.textTypes()
	for _, typ := range types {
		if typ == "tts_end" {
			t.Fatal("Run should not send tts_end itself on an aborted drain; the abort handler already did")
		}
	}
	if sess.IsProcessing() {
		t.Fatal("session should not be left in the processing state once Run returns")
	}
}
