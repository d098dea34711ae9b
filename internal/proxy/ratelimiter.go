package proxy

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// RateLimiter implements a token bucket with exponential backoff after
// consecutive proxy errors. There is no automatic retry of user requests;
// the limiter only shields the proxy from resubmission storms.
type RateLimiter struct {
	requestsPerMinute int
	tokens            chan struct{}
	stop              chan struct{}
	mu                sync.Mutex

	consecutiveErrors int
	lastErrorTime     time.Time
	backoffDuration   time.Duration
}

const maxBackoff = 300 * time.Second

// NewRateLimiter creates a rate limiter allowing rpm requests per minute.
func NewRateLimiter(rpm int) *RateLimiter {
	if rpm <= 0 {
		rpm = 60
	}

	rl := &RateLimiter{
		requestsPerMinute: rpm,
		tokens:            make(chan struct{}, rpm),
		stop:              make(chan struct{}),
	}

	for i := 0; i < rpm; i++ {
		rl.tokens <- struct{}{}
	}

	go rl.refillLoop()

	return rl
}

// Wait blocks until a token is available or ctx is cancelled. An active
// backoff window is reported as an error instead of blocking the caller for
// minutes.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if remaining := rl.backoffRemaining(); remaining > 0 {
		return fmt.Errorf("rate limited: backoff active for %s", remaining)
	}

	select {
	case <-rl.tokens:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RecordSuccess resets the backoff state after a successful round trip.
func (rl *RateLimiter) RecordSuccess() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.consecutiveErrors = 0
	rl.backoffDuration = 0
}

// RecordError extends the exponential backoff window. 2^n seconds, capped.
func (rl *RateLimiter) RecordError() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.consecutiveErrors++
	rl.lastErrorTime = time.Now()

	backoff := time.Duration(1<<uint(rl.consecutiveErrors)) * time.Second
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	rl.backoffDuration = backoff
}

// backoffRemaining returns how long the current backoff window still lasts.
func (rl *RateLimiter) backoffRemaining() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.backoffDuration == 0 {
		return 0
	}

	remaining := rl.backoffDuration - time.Since(rl.lastErrorTime)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// refillLoop tops the bucket up once a minute until Close is called.
func (rl *RateLimiter) refillLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.refill()
		case <-rl.stop:
			return
		}
	}
}

func (rl *RateLimiter) refill() {
	for i := 0; i < rl.requestsPerMinute; i++ {
		select {
		case rl.tokens <- struct{}{}:
		default:
			return
		}
	}
}

// Close stops the refill goroutine.
func (rl *RateLimiter) Close() {
	close(rl.stop)
}
