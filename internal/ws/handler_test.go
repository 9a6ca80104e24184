package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/echoear/gateway/internal/device"
	"github.com/echoear/gateway/internal/pipeline"
	"github.com/echoear/gateway/internal/tools"
)

func newTestHandler() (*Handler, *device.MemoryDirectory) {
	dir := device.NewMemoryDirectory()
	_ = dir.Register(context.Background(), "device-1", "correct-token")

	p := pipeline.New(nil, nil, nil, pipeline.NewHistory(), tools.NewRegistry())
	h := NewHandler(HandlerConfig{
		Pipeline:  p,
		Directory: dir,
		Registry:  NewRegistry(),
	})
	return h, dir
}

func dialWS(t *testing.T, serverURL, deviceID, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(serverURL, "http") + "/ws/gateway"
	header := http.Header{}
	if deviceID != "" {
		header.Set("x-device-id", deviceID)
	}
	if token != "" {
		header.Set("x-device-token", token)
	}
	return websocket.DefaultDialer.Dial(wsURL, header)
}

func TestHandler_MissingAuthGetsRejectedWith4401(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler()
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn, resp, err := dialWS(t, srv.URL, "", "")
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	if resp != nil {
		defer resp.Body.Close()
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var first map[string]any
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("expected an error message before the close, got %v", err)
	}
	if first["type"] != "error" {
		t.Fatalf("first message type = %v, want error", first["type"])
	}
	_, _, err = conn.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	if !ok {
		t.Fatalf("expected a close error, got %v", err)
	}
	if closeErr.Code != 4401 {
		t.Fatalf("close code = %d, want 4401", closeErr.Code)
	}
}

func TestHandler_InvalidTokenGetsRejectedWith4401(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler()
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn, resp, err := dialWS(t, srv.URL, "device-1", "wrong-token")
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	if resp != nil {
		defer resp.Body.Close()
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	if !ok {
		t.Fatalf("expected a close error, got %v", err)
	}
	if closeErr.Code != 4401 {
		t.Fatalf("close code = %d, want 4401", closeErr.Code)
	}
}

func TestHandler_ValidAuthReceivesHello(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler()
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn, resp, err := dialWS(t, srv.URL, "device-1", "correct-token")
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	if resp != nil {
		defer resp.Body.Close()
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]string{"type": "hello"}); err != nil {
		t.Fatalf("write hello: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var out map[string]any
	if err := conn.ReadJSON(&out); err != nil {
		t.Fatalf("read hello response: %v", err)
	}
	if out["type"] != "hello" {
		t.Fatalf("type = %v, want hello", out["type"])
	}
	if out["session_id"] == "" || out["session_id"] == nil {
		t.Fatal("expected a non-empty session_id")
	}
}

func TestHandler_PingReceivesPong(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler()
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn, resp, err := dialWS(t, srv.URL, "device-1", "correct-token")
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	if resp != nil {
		defer resp.Body.Close()
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]string{"type": "ping"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var out map[string]any
	if err := conn.ReadJSON(&out); err != nil {
		t.Fatalf("read pong response: %v", err)
	}
	if out["type"] != "pong" {
		t.Fatalf("type = %v, want pong", out["type"])
	}
}

func TestHandler_AbortMessageSendsTTSEnd(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler()
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn, resp, err := dialWS(t, srv.URL, "device-1", "correct-token")
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	if resp != nil {
		defer resp.Body.Close()
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]string{"type": "abort"}); err != nil {
		t.Fatalf("write abort: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var out map[string]any
	if err := conn.ReadJSON(&out); err != nil {
		t.Fatalf("read tts_end response: %v", err)
	}
	if out["type"] != "tts_end" {
		t.Fatalf("type = %v, want tts_end", out["type"])
	}
	if out["reason"] != "abort" {
		t.Fatalf("reason = %v, want abort", out["reason"])
	}
}
