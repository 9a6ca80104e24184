package audio

import (
	"testing"
	"time"
)

func TestRateController_DrainTiming(t *testing.T) {
	t.Parallel()

	const frameDurMs = 20
	const n = 5

	rc := NewRateController(frameDurMs)
	for i := range n {
		rc.Enqueue([]byte{byte(i)})
	}

	start := time.Now()
	sent := rc.Drain(
		func(frame []byte) bool { return true },
		func() bool { return false },
	)
	elapsed := time.Since(start)

	if sent != n {
		t.Fatalf("sent = %d, want %d", sent, n)
	}

	minElapsed := time.Duration(n-1) * frameDurMs * time.Millisecond
	maxElapsed := minElapsed + frameDurMs*time.Millisecond + 200*time.Millisecond
	if elapsed < minElapsed {
		t.Fatalf("elapsed %v below minimum %v", elapsed, minElapsed)
	}
	if elapsed > maxElapsed {
		t.Fatalf("elapsed %v above slack-bounded maximum %v", elapsed, maxElapsed)
	}
}

func TestRateController_DrainStopsOnAbort(t *testing.T) {
	t.Parallel()

	rc := NewRateController(1)
	for i := range 10 {
		rc.Enqueue([]byte{byte(i)})
	}

	calls := 0
	sent := rc.Drain(
		func(frame []byte) bool { calls++; return true },
		func() bool { return calls >= 3 },
	)

	if sent > 10 {
		t.Fatalf("sentCount %d exceeds enqueued frame count", sent)
	}
	if sent >= 10 {
		t.Fatal("abort should have stopped the drain before all frames sent")
	}
}

func TestRateController_DrainStopsAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	rc := NewRateController(1)
	for i := range 10 {
		rc.Enqueue([]byte{byte(i)})
	}

	attempts := 0
	sent := rc.Drain(
		func(frame []byte) bool { attempts++; return false },
		func() bool { return false },
	)

	if sent != 0 {
		t.Fatalf("sent = %d, want 0 (every send failed)", sent)
	}
	if attempts != maxConsecutiveSendFailures {
		t.Fatalf("attempts = %d, want %d (3-strike abort)", attempts, maxConsecutiveSendFailures)
	}
}
