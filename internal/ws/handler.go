package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gorilla/websocket"

	"github.com/echoear/gateway/internal/audio"
	"github.com/echoear/gateway/internal/device"
	"github.com/echoear/gateway/internal/pipeline"
	"github.com/echoear/gateway/internal/session"
	"github.com/echoear/gateway/internal/trace"
	"github.com/echoear/gateway/internal/transport"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  16384,
	WriteBufferSize: 16384,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// teardownGrace bounds how long the connection handler waits for an
// in-flight pipeline to finish on its own before force-cancelling it.
const teardownGrace = 2 * time.Second

// HandlerConfig holds the shared backend clients for every device connection.
type HandlerConfig struct {
	Pipeline  *pipeline.Pipeline
	Directory device.Directory
	Registry  *Registry
	// SecretKey decrypts per-device provider overrides loaded from Directory.
	SecretKey string
	// Trace, when non-nil, records one session row per connection so a
	// pipeline run's trace spans have a parent to attach to. Nil disables it.
	Trace *trace.Store
}

// Handler upgrades and manages device WebSocket connections.
type Handler struct {
	cfg HandlerConfig
}

// NewHandler creates a device connection handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{cfg: cfg}
}

// ServeHTTP is the accept-loop entry point: one call per incoming device
// connection, run to completion before returning.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	deviceID := r.Header.Get("x-device-id")
	token := r.Header.Get("x-device-token")
	if deviceID == "" || token == "" {
		h.rejectBeforeUpgrade(w, r, "missing credentials")
		return
	}

	ok, err := h.cfg.Directory.Lookup(r.Context(), deviceID, token)
	if err != nil {
		slog.Error("device lookup failed", "device_id", deviceID, "error", err)
		h.rejectBeforeUpgrade(w, r, "invalid token")
		return
	}
	if !ok {
		h.rejectBeforeUpgrade(w, r, "invalid token")
		return
	}

	cfg, err := h.cfg.Directory.ProviderConfig(r.Context(), deviceID, h.cfg.SecretKey)
	if err != nil {
		slog.Error("provider config lookup failed", "device_id", deviceID, "error", err)
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "device_id", deviceID, "error", err)
		return
	}
	defer conn.Close()

	h.runConnection(deviceID, conn, cfg)
}

// rejectBeforeUpgrade closes out a bad-auth connection with close code 4401,
// matching §4.F: the upgrade handshake itself still has to succeed for a
// close frame with a custom code to be deliverable, so we upgrade first and
// immediately close rather than failing the HTTP handshake. For missing
// credentials an {type:"error"} message goes out before the close frame.
func (h *Handler) rejectBeforeUpgrade(w http.ResponseWriter, r *http.Request, reason string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	if reason == "missing credentials" {
		sendError(transport.NewSender(conn, ""), reason)
	}
	closeMsg := websocket.FormatCloseMessage(4401, reason)
	_ = conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(transport.SendTimeout))
}

func (h *Handler) runConnection(deviceID string, wsConn *websocket.Conn, cfg session.ProviderConfig) {
	sess := session.New(deviceID)
	sess.Config = cfg
	sender := transport.NewSender(wsConn, sess.SessionID)
	c := &Conn{Sender: sender, Session: sess}

	if previous, hadPrevious := h.cfg.Registry.Register(deviceID, c); hadPrevious {
		previous.Session.TTSAbort.Store(true)
		if previous.Session.ProcessCancel != nil {
			previous.Session.ProcessCancel()
		}
	}

	if h.cfg.Trace != nil {
		if err := h.cfg.Trace.CreateSession(sess.SessionID, "device:"+deviceID); err != nil {
			slog.Warn("trace session create failed", "session_id", sess.SessionID, "error", err)
		}
	}

	slog.Info("device connected", "device_id", deviceID, "session_id", sess.SessionID)
	defer func() {
		h.teardown(c)
		slog.Info("device disconnected", "device_id", deviceID, "session_id", sess.SessionID)
	}()

	for {
		msgType, data, err := wsConn.ReadMessage()
		if err != nil {
			return
		}
		sess.Touch()

		switch msgType {
		case websocket.TextMessage:
			h.handleText(c, data)
		case websocket.BinaryMessage:
			sess.AppendOpusPacket(data)
		}
	}
}

func (h *Handler) teardown(c *Conn) {
	c.Session.TTSAbort.Store(true)

	if c.Session.ProcessDone != nil {
		select {
		case <-c.Session.ProcessDone:
		case <-time.After(teardownGrace):
			if c.Session.ProcessCancel != nil {
				c.Session.ProcessCancel()
			}
		}
	}

	h.cfg.Pipeline.History.Reset(c.Session.DeviceID)
	h.cfg.Registry.Remove(c.Session.DeviceID, c)

	if h.cfg.Trace != nil {
		if err := h.cfg.Trace.EndSession(c.Session.SessionID); err != nil {
			slog.Warn("trace session end failed", "session_id", c.Session.SessionID, "error", err)
		}
	}
}

// inMessage is the decoded shape of every inbound text frame; only the
// fields relevant to its type are populated.
type inMessage struct {
	Type       string `json:"type"`
	ListenMode string `json:"listen_mode,omitempty"`
	State      string `json:"state,omitempty"`
	Text       string `json:"text,omitempty"`
}

type helloOut struct {
	Type            string          `json:"type"`
	SessionID       string          `json:"session_id"`
	SampleRate      int             `json:"sample_rate"`
	Channels        int             `json:"channels"`
	Codec           string          `json:"codec"`
	FrameDurationMs int             `json:"frame_duration_ms"`
	Features        map[string]bool `json:"features"`
	ProtocolVersion int             `json:"protocol_version"`
}

type pongOut struct {
	Type string `json:"type"`
}

func (h *Handler) handleText(c *Conn, data []byte) {
	var msg inMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		sendProtocolError(c.Sender, "malformed json")
		return
	}

	switch msg.Type {
	case "hello":
		h.handleHello(c, msg)
	case "audio_start":
		if c.Session.IsProcessing() {
			slog.Info("audio_start ignored: pipeline running", "device_id", c.Session.DeviceID)
			return
		}
		c.Session.StartListening()
	case "audio_end":
		c.Session.StopListening()
		h.launchPipeline(c)
	case "listen":
		h.handleListen(c, msg)
	case "abort":
		c.Session.TTSAbort.Store(true)
		sendJSON(c.Sender, ttsEndOut{Type: "tts_end", Reason: "abort"}, "tts_end")
	case "ping":
		sendJSON(c.Sender, pongOut{Type: "pong"}, "pong")
	default:
		sendProtocolError(c.Sender, "unknown message type: "+msg.Type)
	}
}

func (h *Handler) handleHello(c *Conn, msg inMessage) {
	if msg.ListenMode != "" {
		c.Session.ListenMode = msg.ListenMode
		c.Session.ProtocolVersion = 2
	}
	sendJSON(c.Sender, helloOut{
		Type:            "hello",
		SessionID:       c.Session.SessionID,
		SampleRate:      audio.OpusSampleRate,
		Channels:        audio.OpusChannels,
		Codec:           "opus",
		FrameDurationMs: audio.FrameDurationMs,
		Features:        map[string]bool{"asr": true, "tts": true, "llm": true, "abort": true},
		ProtocolVersion: c.Session.ProtocolVersion,
	}, "hello")
}

func (h *Handler) handleListen(c *Conn, msg inMessage) {
	switch msg.State {
	case "start":
		if c.Session.IsProcessing() {
			slog.Info("listen start ignored: pipeline running", "device_id", c.Session.DeviceID)
			return
		}
		if msg.ListenMode != "" {
			c.Session.ListenMode = msg.ListenMode
		}
		c.Session.StartListening()
	case "stop":
		c.Session.StopListening()
		h.launchPipeline(c)
	case "detect":
		slog.Info("wake word detected", "device_id", c.Session.DeviceID, "text", msg.Text)
	default:
		sendProtocolError(c.Sender, "unknown listen state: "+msg.State)
	}
}

func sendProtocolError(sender *transport.Sender, message string) {
	sendJSON(sender, errorOut{Type: "error", Message: message}, "protocol_error")
}

// launchPipeline starts Pipeline.Run in a recover()-guarded goroutine,
// cancelling any still-running prior task for this session first (matching
// original_source's _pipeline_wrapper catch-all).
func (h *Handler) launchPipeline(c *Conn) {
	sess := c.Session
	if sess.IsProcessing() {
		slog.Warn("pipeline launch ignored: already processing", "device_id", sess.DeviceID)
		return
	}
	if sess.ProcessCancel != nil {
		sess.ProcessCancel()
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	sess.ProcessCancel = cancel
	sess.ProcessDone = done

	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				slog.Error("pipeline panic", "device_id", sess.DeviceID, "panic", r, "stack", string(debug.Stack()))
				sess.SetProcessing(false)
				sendError(c.Sender, "internal error")
			}
		}()
		h.cfg.Pipeline.Run(ctx, sess, c.Sender)
	}()
}
