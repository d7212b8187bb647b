package common

import (
	"math/rand/v2"
	"sync"
	"time"
)

// RateLimiter spaces out calls to one external endpoint class. Each
// Acquire picks a fresh delay uniformly from [minDelay, maxDelay] and
// blocks until that much time has passed since the previous Acquire,
// across every goroutine sharing the instance. The mutex is held
// through the sleep, so under contention callers are released one per
// window, each waiting its full window from the moment it got the lock.
//
// Instances are constructed explicitly and passed to every call site
// that talks to the same endpoint; there is no package-level limiter.
type RateLimiter struct {
	mu       sync.Mutex
	minDelay time.Duration
	maxDelay time.Duration
	last     time.Time

	nowFunc   func() time.Time
	sleepFunc func(time.Duration)
}

// NewRateLimiter builds a limiter with the given delay bounds. Bounds
// are swapped if given in the wrong order; non-positive bounds fall
// back to the 1s..3s default window.
func NewRateLimiter(minDelay, maxDelay time.Duration) *RateLimiter {
	if minDelay <= 0 || maxDelay <= 0 {
		minDelay, maxDelay = time.Second, 3*time.Second
	}
	if maxDelay < minDelay {
		minDelay, maxDelay = maxDelay, minDelay
	}
	return &RateLimiter{
		minDelay:  minDelay,
		maxDelay:  maxDelay,
		nowFunc:   time.Now,
		sleepFunc: time.Sleep,
	}
}

// Acquire blocks until the randomized window has elapsed since the
// previous acquisition and returns how long this caller actually
// slept (zero when enough time had already passed). The first call on
// a fresh limiter never sleeps.
func (l *RateLimiter) Acquire() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	window := l.minDelay
	if span := l.maxDelay - l.minDelay; span > 0 {
		window += time.Duration(rand.Float64() * float64(span))
	}

	var waited time.Duration
	if !l.last.IsZero() {
		if elapsed := l.nowFunc().Sub(l.last); elapsed < window {
			waited = window - elapsed
			l.sleepFunc(waited)
		}
	}
	l.last = l.nowFunc()
	return waited
}

// tokenWaitFloor is the minimum sleep between token polls, so a tiny
// deficit does not turn WaitForToken into a busy loop.
const tokenWaitFloor = 100 * time.Millisecond

// TokenBucket is the burst-tolerant limiter variant: a floating token
// balance refills at a fixed per-second rate up to a capacity, and
// callers spend tokens per call. Bursts up to the capacity pass
// without waiting, which suits cheap repeated fetches better than the
// strict serialization of RateLimiter.
type TokenBucket struct {
	mu       sync.Mutex
	rate     float64 // tokens added per second
	capacity float64
	tokens   float64
	last     time.Time

	nowFunc   func() time.Time
	sleepFunc func(time.Duration)
}

// NewTokenBucket builds a bucket that starts full. Rate and capacity
// must be positive; anything else falls back to 1 token/s, capacity 1.
func NewTokenBucket(rate, capacity float64) *TokenBucket {
	if rate <= 0 || capacity <= 0 {
		rate, capacity = 1, 1
	}
	b := &TokenBucket{
		rate:      rate,
		capacity:  capacity,
		tokens:    capacity,
		nowFunc:   time.Now,
		sleepFunc: time.Sleep,
	}
	b.last = b.nowFunc()
	return b
}

// refill credits tokens for the time since the last update. Caller
// must hold mu.
func (b *TokenBucket) refill() {
	now := b.nowFunc()
	b.tokens += now.Sub(b.last).Seconds() * b.rate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.last = now
}

// Consume tries to spend n tokens and reports whether it succeeded.
// It never blocks.
func (b *TokenBucket) Consume(n float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	if b.tokens >= n {
		b.tokens -= n
		return true
	}
	return false
}

// WaitForToken blocks until n tokens could be spent, sleeping between
// attempts for the estimated refill time of the deficit, never less
// than tokenWaitFloor.
func (b *TokenBucket) WaitForToken(n float64) {
	for !b.Consume(n) {
		b.mu.Lock()
		deficit := n - b.tokens
		b.mu.Unlock()

		wait := time.Duration(deficit / b.rate * float64(time.Second))
		if wait < tokenWaitFloor {
			wait = tokenWaitFloor
		}
		b.sleepFunc(wait)
	}
}
