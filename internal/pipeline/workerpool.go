package pipeline

import "context"

// WorkerPool bounds the number of concurrent CPU-bound jobs (resample +
// opus encode) so a burst of TTS requests can't starve the connection
// goroutines' keepalive pings. It is a plain counting semaphore rather than
// a queue: callers block in Run until a slot frees up or ctx is cancelled.
type WorkerPool struct {
	sem chan struct{}
}

// NewWorkerPool creates a pool allowing up to n concurrent jobs.
func NewWorkerPool(n int) *WorkerPool {
	if n <= 0 {
		n = 1
	}
	return &WorkerPool{sem: make(chan struct{}, n)}
}

// Run executes fn on the calling goroutine once a slot is available,
// releasing the slot when fn returns. Returns ctx.Err() without running fn
// if ctx is cancelled before a slot frees up.
func (p *WorkerPool) Run(ctx context.Context, fn func()) error {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-p.sem }()
	fn()
	return nil
}
