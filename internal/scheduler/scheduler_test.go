package scheduler

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/echoear/gateway/internal/pipeline"
	"github.com/echoear/gateway/internal/session"
	"github.com/echoear/gateway/internal/transport"
)

// fakeConn records every frame written to it in place of a real socket.
type fakeConn struct {
	mu    sync.Mutex
	texts [][]byte
	bins  int
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if messageType == websocket.TextMessage {
		f.texts = append(f.texts, append([]byte(nil), data...))
	} else {
		f.bins++
	}
	return nil
}

func (f *fakeConn) WriteControl(messageType int, data []byte, deadline time.Time) error { return nil }
func (f *fakeConn) SetWriteDeadline(t time.Time) error                                  { return nil }
func (f *fakeConn) Close() error                                                        { return nil }

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

// fakeTTS returns a fixed number of fixed-size opus frames regardless of text.
type fakeTTS struct {
	frames [][]byte
}

func (f *fakeTTS) Synthesize(ctx context.Context, text string) (*pipeline.TTSResult, error) {
	return &pipeline.TTSResult{Frames: f.frames}, nil
}

func newTestScheduler(frames [][]byte) (*Scheduler, *fakeConn, *session.Session) {
	tts := pipeline.NewTTSRouter(map[string]pipeline.TTSSynthesizer{
		"piper": &fakeTTS{frames: frames},
	}, "piper")
	s := &Scheduler{tts: tts, engine: "piper"}

	conn := &fakeConn{}
	sess := session.New("device-1")
	return s, conn, sess
}

func TestScheduler_SpeakSendsStartFramesAndEnd(t *testing.T) {
	t.Parallel()

	frames := [][]byte{[]byte("frame1"), []byte("frame2"), []byte("frame3")}
	s, conn, sess := newTestScheduler(frames)
	sender := transport.NewSender(conn, "sess-1")

	if err := s.speak(context.Background(), sender, sess, "reminder text"); err != nil {
		t.Fatalf("speak error: %v", err)
	}

	types := conn.textTypes()
	if len(types) != 2 || types[0] != "tts_start" || types[1] != "tts_end" {
		t.Fatalf("text frame types = %v, want [tts_start tts_end]", types)
	}
	if conn.bins != len(frames) {
		t.Fatalf("binary frames sent = %d, want %d", conn.bins, len(frames))
	}
}

func TestScheduler_SpeakStopsOnAbort(t *testing.T) {
	t.Parallel()

	frames := make([][]byte, 20)
	for i := range frames {
		frames[i] = []byte("frame")
	}
	s, conn, sess := newTestScheduler(frames)
	sender := transport.NewSender(conn, "sess-1")
	sess.TTSAbort.Store(true)

	if err := s.speak(context.Background(), sender, sess, "reminder text"); err != nil {
		t.Fatalf("speak error: %v", err)
	}

	if conn.bins == len(frames) {
		t.Fatalf("expected abort to stop playback before all %d frames were sent, got %d", len(frames), conn.bins)
	}
}

func TestScheduler_ProcessingSessionReportsBusy(t *testing.T) {
	t.Parallel()

	_, _, sess := newTestScheduler(nil)
	sess.SetProcessing(true)
	if !sess.Busy() {
		t.Fatal("expected session to report busy while processing")
	}
}
