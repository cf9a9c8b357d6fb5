package core

import (
	"context"
	"errors"

	"golang.org/x/time/rate"
)

// CompletionLimiter is the shared token bucket gating concurrent
// analysis-tool calls against the external completion service. One
// limiter is shared by every plan in a process so provider throughput
// limits are respected regardless of query concurrency; it is distinct
// from the per-plan worker pool.
type CompletionLimiter struct {
	limiter *rate.Limiter
}

// NewCompletionLimiter creates a limiter allowing callsPerSecond
// sustained completion calls with the given burst. callsPerSecond <= 0
// disables throttling.
func NewCompletionLimiter(callsPerSecond float64, burst int) *CompletionLimiter {
	if callsPerSecond <= 0 {
		return &CompletionLimiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	if burst < 1 {
		burst = 1
	}
	return &CompletionLimiter{limiter: rate.NewLimiter(rate.Limit(callsPerSecond), burst)}
}

// Wait blocks until a completion call may proceed or the context ends.
func (l *CompletionLimiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if err := l.limiter.Wait(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return WrapError(KindTimeout, err, "waiting for completion rate limiter")
		}
		return WrapError(KindCancelled, err, "waiting for completion rate limiter")
	}
	return nil
}

// Allow reports whether a call could proceed right now without waiting.
func (l *CompletionLimiter) Allow() bool {
	if l == nil {
		return true
	}
	return l.limiter.Allow()
}
