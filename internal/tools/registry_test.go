package tools

import (
	"context"
	"testing"

	"github.com/echoear/gateway/internal/session"
)

func TestRegistry_UnknownToolReturnsError(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	sess := session.New("device-1")

	result := reg.Execute(context.Background(), "does.not.exist", nil, sess)
	if result.Type != "error" {
		t.Fatalf("Type = %q, want error", result.Type)
	}
	if result.Text == "" {
		t.Fatal("expected a non-empty error message")
	}
}

func TestRegistry_MissingRequiredParam(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(ToolDef{
		Name:   "needs.arg",
		Params: []ToolParam{{Name: "thing", Required: true}},
		Handler: func(ctx context.Context, args map[string]any, sess *session.Session) ToolResult {
			return ToolResult{Type: "tts", Text: "ok"}
		},
	})

	sess := session.New("device-1")
	result := reg.Execute(context.Background(), "needs.arg", map[string]any{}, sess)
	if result.Type != "ask_user" {
		t.Fatalf("Type = %q, want ask_user", result.Type)
	}
	if result.Data["missing_param"] != "thing" {
		t.Fatalf("missing_param = %v, want thing", result.Data["missing_param"])
	}
}

func TestRegistry_HandlerPanicRecovers(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(ToolDef{
		Name: "panics",
		Handler: func(ctx context.Context, args map[string]any, sess *session.Session) ToolResult {
			panic("boom")
		},
	})

	sess := session.New("device-1")
	result := reg.Execute(context.Background(), "panics", nil, sess)
	if result.Type != "error" {
		t.Fatalf("Type = %q, want error (panic should be recovered, not propagate)", result.Type)
	}
}

func TestRegistry_ExecuteWithKeepaliveAbortsOnTTSAbort(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	started := make(chan struct{})
	blocked := make(chan struct{})
	reg.Register(ToolDef{
		Name:        "slow",
		LongRunning: true,
		Handler: func(ctx context.Context, args map[string]any, sess *session.Session) ToolResult {
			close(started)
			<-ctx.Done()
			close(blocked)
			return ToolResult{Type: "tts", Text: "finished"}
		},
	})

	sess := session.New("device-1")
	done := make(chan ToolResult, 1)
	go func() {
		done <- reg.ExecuteWithKeepalive(context.Background(), "slow", nil, sess)
	}()

	<-started
	sess.TTSAbort.Store(true)

	result := <-done
	if result.Type != "silent" {
		t.Fatalf("Type = %q, want silent after abort", result.Type)
	}
}
