// Package session holds the per-connection state for one device socket.
package session

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ProviderConfig carries per-device overrides for provider calls (API keys,
// base URLs, model names). A zero value means "use the global default".
type ProviderConfig struct {
	ASREngine    string
	LLMEngine    string
	TTSEngine    string
	OpenAIKey    string
	OpenAIURL    string
	AnthropicKey string
}

// Session is the live state associated with one open device connection.
// All fields except TTSAbort are owned by the connection handler's goroutine;
// TTSAbort may be written by the message router and read by the pipeline and
// rate controller concurrently, hence the atomic.
type Session struct {
	DeviceID        string
	SessionID       string
	ProtocolVersion int
	ListenMode      string

	mu          sync.Mutex
	opusPackets [][]byte
	Listening   bool

	Processing bool

	TTSAbort atomic.Bool

	MusicPlaying  bool
	MusicPaused   bool
	MeetingActive bool

	Config ProviderConfig

	firstActivity time.Time
	lastActivity  time.Time

	// ProcessCancel cancels the currently running pipeline task, if any.
	ProcessCancel context.CancelFunc
	// ProcessDone is closed when the current pipeline task returns.
	ProcessDone chan struct{}
}

// New creates a Session for a newly authenticated device connection.
func New(deviceID string) *Session {
	now := time.Now()
	return &Session{
		DeviceID:        deviceID,
		SessionID:       newSessionID(),
		ProtocolVersion: 1,
		firstActivity:   now,
		lastActivity:    now,
	}
}

func newSessionID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
}

// Touch updates the last-activity timestamp. Called on every inbound message.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// IdleSeconds returns elapsed time since the last Touch call.
func (s *Session) IdleSeconds() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastActivity).Seconds()
}

// AppendOpusPacket appends a binary frame to the buffer iff listening is true.
// Returns false (frame dropped) when not listening.
func (s *Session) AppendOpusPacket(frame []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.Listening {
		return false
	}
	s.opusPackets = append(s.opusPackets, frame)
	return true
}

// OpusPackets returns a snapshot of the buffered frames.
func (s *Session) OpusPackets() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.opusPackets))
	copy(out, s.opusPackets)
	return out
}

// ClearOpusPackets empties the buffer, e.g. at audio_start.
func (s *Session) ClearOpusPackets() {
	s.mu.Lock()
	s.opusPackets = nil
	s.mu.Unlock()
}

// StartListening clears the buffer, sets Listening true, clears TTSAbort.
func (s *Session) StartListening() {
	s.mu.Lock()
	s.opusPackets = nil
	s.Listening = true
	s.mu.Unlock()
	s.TTSAbort.Store(false)
}

// StopListening sets Listening false. Buffered frames are left for the pipeline to consume.
func (s *Session) StopListening() {
	s.mu.Lock()
	s.Listening = false
	s.mu.Unlock()
}

// Busy reports whether a scheduled push should defer delivery to this session.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Processing || s.Listening || s.MusicPlaying
}

// SetProcessing records whether a pipeline run is currently in flight.
func (s *Session) SetProcessing(v bool) {
	s.mu.Lock()
	s.Processing = v
	s.mu.Unlock()
}

// IsProcessing reports whether a pipeline run is currently in flight.
func (s *Session) IsProcessing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Processing
}

// SetMusicPlaying records the music-playback flag.
func (s *Session) SetMusicPlaying(v bool) {
	s.mu.Lock()
	s.MusicPlaying = v
	s.mu.Unlock()
}

// SetMusicPaused records the music-pause flag.
func (s *Session) SetMusicPaused(v bool) {
	s.mu.Lock()
	s.MusicPaused = v
	s.mu.Unlock()
}
