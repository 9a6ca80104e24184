package session

import (
	"sync"
	"testing"
)

func TestSession_ProcessingIsExclusive(t *testing.T) {
	t.Parallel()

	s := New("device-1")
	if s.IsProcessing() {
		t.Fatal("new session should not be processing")
	}

	var wg sync.WaitGroup
	results := make(chan bool, 50)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.SetProcessing(true)
			results <- s.IsProcessing()
			s.SetProcessing(false)
		}()
	}
	wg.Wait()
	close(results)

	for got := range results {
		if !got {
			t.Fatal("IsProcessing was false immediately after SetProcessing(true)")
		}
	}
}

func TestSession_ListeningFalseDropsFrames(t *testing.T) {
	t.Parallel()

	s := New("device-1")
	s.StartListening()
	if ok := s.AppendOpusPacket([]byte{1, 2, 3}); !ok {
		t.Fatal("frame should be accepted while listening")
	}

	s.StopListening()
	if ok := s.AppendOpusPacket([]byte{4, 5, 6}); ok {
		t.Fatal("frame should be dropped once listening is false")
	}

	packets := s.OpusPackets()
	if len(packets) != 1 {
		t.Fatalf("got %d buffered packets, want 1 (post-stop frame must not mutate buffer)", len(packets))
	}
}

func TestSession_StartListeningClearsAbortAndBuffer(t *testing.T) {
	t.Parallel()

	s := New("device-1")
	s.TTSAbort.Store(true)
	s.StartListening()
	s.AppendOpusPacket([]byte{1})
	s.ClearOpusPackets()

	if len(s.OpusPackets()) != 0 {
		t.Fatal("ClearOpusPackets should empty the buffer")
	}

	s.AppendOpusPacket([]byte{2})
	s.StartListening()
	if len(s.OpusPackets()) != 0 {
		t.Fatal("StartListening should empty the buffer")
	}
	if s.TTSAbort.Load() {
		t.Fatal("StartListening should clear tts_abort")
	}
}

func TestSession_Busy(t *testing.T) {
	t.Parallel()

	s := New("device-1")
	if s.Busy() {
		t.Fatal("idle session should not be busy")
	}

	s.SetProcessing(true)
	if !s.Busy() {
		t.Fatal("processing session should be busy")
	}
	s.SetProcessing(false)

	s.SetMusicPlaying(true)
	if !s.Busy() {
		t.Fatal("music-playing session should be busy")
	}
}
