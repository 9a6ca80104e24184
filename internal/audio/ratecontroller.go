package audio

import (
	"time"
)

// maxConsecutiveSendFailures aborts a drain after this many sends in a row
// fail, matching the original source's 3-strike rule.
const maxConsecutiveSendFailures = 3

// RateController paces a finite sequence of opaque audio frames at a fixed
// wall-clock cadence so a slow last-mile link isn't hit with a burst.
type RateController struct {
	frames     [][]byte
	frameDurMs int
}

// NewRateController creates a controller for the given nominal per-frame
// duration (milliseconds, typically 60).
func NewRateController(frameDurationMs int) *RateController {
	return &RateController{frameDurMs: frameDurationMs}
}

// Enqueue appends one frame to the send queue.
func (c *RateController) Enqueue(frame []byte) {
	c.frames = append(c.frames, frame)
}

// EnqueueAll appends a batch of frames.
func (c *RateController) EnqueueAll(frames [][]byte) {
	c.frames = append(c.frames, frames...)
}

// SendFunc delivers one frame and reports whether the send succeeded.
type SendFunc func(frame []byte) bool

// AbortFunc is polled before every send; a true result stops the drain.
type AbortFunc func() bool

// Drain sends every enqueued frame at frameDurMs intervals, indexed from a
// single start timestamp so a delayed send doesn't push later deadlines back
// (catch-up pacing, not compounding pacing). Returns the number of frames
// successfully sent.
func (c *RateController) Drain(send SendFunc, abort AbortFunc) int {
	if len(c.frames) == 0 {
		return 0
	}

	frameDur := time.Duration(c.frameDurMs) * time.Millisecond
	t0 := time.Now()
	sent := 0
	consecutiveFailures := 0

	for i, frame := range c.frames {
		target := t0.Add(time.Duration(i) * frameDur)
		if d := time.Until(target); d > 0 {
			time.Sleep(d)
		}

		if abort() {
			return sent
		}

		if send(frame) {
			sent++
			consecutiveFailures = 0
			continue
		}

		consecutiveFailures++
		if consecutiveFailures >= maxConsecutiveSendFailures {
			return sent
		}
	}

	return sent
}

// DrainBatched is Drain with a coarser abort check, for the reminder delivery
// path where no live client feedback loop is watched as closely as during an
// interactive pipeline. Frames are still sent one at a time on the same
// index-based schedule as Drain; abort is polled only once before each batch
// of batchSize frames rather than before every frame.
func (c *RateController) DrainBatched(send SendFunc, abort AbortFunc, batchSize int) int {
	if batchSize <= 0 {
		batchSize = 1
	}
	if len(c.frames) == 0 {
		return 0
	}

	frameDur := time.Duration(c.frameDurMs) * time.Millisecond
	t0 := time.Now()
	sent := 0
	consecutiveFailures := 0

	for i := 0; i < len(c.frames); i += batchSize {
		if abort() {
			return sent
		}
		end := min(i+batchSize, len(c.frames))
		for j := i; j < end; j++ {
			target := t0.Add(time.Duration(j) * frameDur)
			if d := time.Until(target); d > 0 {
				time.Sleep(d)
			}
			if send(c.frames[j]) {
				sent++
				consecutiveFailures = 0
				continue
			}
			consecutiveFailures++
			if consecutiveFailures >= maxConsecutiveSendFailures {
				return sent
			}
		}
	}

	return sent
}
