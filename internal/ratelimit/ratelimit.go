// Package ratelimit enforces the courtesy delay toward the remote
// source. The delay is a hard floor measured from the completion of the
// previous request, not a best-effort spacing of request starts.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter is what the fetch orchestrator blocks on. Wait is called
// before each request, Done right after the request completes.
type Limiter interface {
	Wait(ctx context.Context) error
	Done()
	Reset()
}

// FixedDelay enforces a fixed minimum delay between the completion of
// one request and the start of the next. The first Wait never blocks.
type FixedDelay struct {
	delay time.Duration

	mu   sync.Mutex
	last time.Time // completion time of the previous request
}

// NewFixedDelay creates a fixed-delay limiter.
func NewFixedDelay(delay time.Duration) *FixedDelay {
	return &FixedDelay{delay: delay}
}

// Wait blocks until at least the configured delay has elapsed since the
// previous Done, or the context is cancelled.
func (l *FixedDelay) Wait(ctx context.Context) error {
	l.mu.Lock()
	var wait time.Duration
	if !l.last.IsZero() {
		if elapsed := time.Since(l.last); elapsed < l.delay {
			wait = l.delay - elapsed
		}
	}
	l.mu.Unlock()

	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Done marks the completion of a request.
func (l *FixedDelay) Done() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.last = time.Now()
}

// Reset clears the completion time so the next Wait returns immediately.
func (l *FixedDelay) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.last = time.Time{}
}
