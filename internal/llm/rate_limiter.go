package llm

import (
	"context"
	"sync"
	"time"
)

// RateLimiter interface for rate limiting
type RateLimiter interface {
	Allow(key string) bool
	Wait(ctx context.Context, key string) error
	Reset(key string)
}

// TokenBucketLimiter implements token bucket rate limiting with continuous
// refill.
type TokenBucketLimiter struct {
	buckets  map[string]*TokenBucket
	rate     float64 // tokens per second
	capacity float64
	mu       sync.RWMutex
}

// TokenBucket represents a single token bucket
type TokenBucket struct {
	tokens     float64
	lastRefill time.Time
	mu         sync.Mutex
}

// NewTokenBucketLimiter creates a limiter that refills perMinute tokens a
// minute and holds at most capacity.
func NewTokenBucketLimiter(perMinute, capacity int) *TokenBucketLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	if capacity <= 0 {
		capacity = perMinute
	}
	return &TokenBucketLimiter{
		buckets:  make(map[string]*TokenBucket),
		rate:     float64(perMinute) / 60,
		capacity: float64(capacity),
	}
}

// Allow takes a token if one is available.
func (l *TokenBucketLimiter) Allow(key string) bool {
	return l.reserve(key) == 0
}

// Wait blocks until a token is available or ctx is done.
func (l *TokenBucketLimiter) Wait(ctx context.Context, key string) error {
	for {
		delay := l.reserve(key)
		if delay == 0 {
			return nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// reserve takes a token and returns 0, or returns how long until one is due.
func (l *TokenBucketLimiter) reserve(key string) time.Duration {
	bucket := l.getOrCreateBucket(key)

	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	now := time.Now()
	bucket.tokens += now.Sub(bucket.lastRefill).Seconds() * l.rate
	if bucket.tokens > l.capacity {
		bucket.tokens = l.capacity
	}
	bucket.lastRefill = now

	if bucket.tokens >= 1 {
		bucket.tokens--
		return 0
	}

	missing := 1 - bucket.tokens
	delay := time.Duration(missing / l.rate * float64(time.Second))
	if delay <= 0 {
		delay = time.Millisecond
	}
	return delay
}

// Reset resets the rate limit for a key
func (l *TokenBucketLimiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.buckets, key)
}

// getOrCreateBucket gets or creates a bucket for a key
func (l *TokenBucketLimiter) getOrCreateBucket(key string) *TokenBucket {
	l.mu.RLock()
	bucket, exists := l.buckets[key]
	l.mu.RUnlock()

	if exists {
		return bucket
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if bucket, exists := l.buckets[key]; exists {
		return bucket
	}

	bucket = &TokenBucket{
		tokens:     l.capacity,
		lastRefill: time.Now(),
	}

	l.buckets[key] = bucket
	return bucket
}
