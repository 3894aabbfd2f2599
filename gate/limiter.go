/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package gate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter enforces a minimum delay between the starts of consecutive tasks.
// The first task starts without delay. Concurrent callers reserve their start times one by one,
// so no two of them can start closer than the delay even if they begin waiting simultaneously.
type RateLimiter struct {
	minDelay time.Duration
	limiter  *rate.Limiter // nil for zero delay

	mu        sync.Mutex
	lastStart time.Time
}

// NewRateLimiter creates a new RateLimiter. Zero delay makes it a pass-through.
func NewRateLimiter(minDelay time.Duration) (*RateLimiter, error) {
	if minDelay < 0 {
		return nil, fmt.Errorf("min delay should not be negative, got %s", minDelay)
	}
	l := &RateLimiter{minDelay: minDelay}
	if minDelay > 0 {
		l.limiter = rate.NewLimiter(rate.Every(minDelay), 1)
	}
	return l, nil
}

// MinDelay returns the minimum delay between starts.
func (l *RateLimiter) MinDelay() time.Duration {
	return l.minDelay
}

// LastStart returns the time of the most recently granted start (zero if none yet).
func (l *RateLimiter) LastStart() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastStart
}

// Wait blocks until the caller is allowed to start and records the start.
// If ctx is done first, *WaitError wrapping ctx.Err() is returned and no start is recorded.
func (l *RateLimiter) Wait(ctx context.Context) error {
	if l.limiter == nil {
		l.mu.Lock()
		l.lastStart = time.Now()
		l.mu.Unlock()
		return nil
	}
	// The reservation orders concurrent callers; the loop below makes the spacing hold
	// for the recorded starts even if a timer fires late.
	r := l.limiter.Reserve()
	if err := sleepContext(ctx, r.Delay()); err != nil {
		// Gives the reserved start back to the callers queued behind this one.
		r.Cancel()
		return &WaitError{Stage: WaitStageRateLimit, Inner: err}
	}
	for {
		l.mu.Lock()
		now := time.Now()
		elapsed := now.Sub(l.lastStart)
		if l.lastStart.IsZero() || elapsed >= l.minDelay {
			l.lastStart = now
			l.mu.Unlock()
			return nil
		}
		l.mu.Unlock()
		// The reservation is already spent here, so giving up in this loop may delay
		// the next caller by up to minDelay. Spacing still holds.
		if err := sleepContext(ctx, l.minDelay-elapsed); err != nil {
			return &WaitError{Stage: WaitStageRateLimit, Inner: err}
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do waits for the start slot and runs the task.
func (l *RateLimiter) Do(ctx context.Context, task Task) error {
	if err := l.Wait(ctx); err != nil {
		return err
	}
	return task(ctx)
}
