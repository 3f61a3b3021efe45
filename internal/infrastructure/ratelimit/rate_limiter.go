package ratelimit

import (
	"sync"
	"time"
)

// bucketSpec describes one action's budget: maxTokens burst, refilled at
// refillRate tokens every refillEvery.
type bucketSpec struct {
	maxTokens   int
	refillRate  int
	refillEvery time.Duration
}

// Budgets per chat action. send_message is 20/min, uploads 10/hr, typing
// relays 30/min; anything unrecognized gets the message budget.
var actionSpecs = map[string]bucketSpec{
	"send_message": {maxTokens: 20, refillRate: 1, refillEvery: 3 * time.Second},
	"upload_file":  {maxTokens: 10, refillRate: 1, refillEvery: 6 * time.Minute},
	"typing":       {maxTokens: 30, refillRate: 1, refillEvery: 2 * time.Second},
}

var defaultSpec = bucketSpec{maxTokens: 20, refillRate: 1, refillEvery: 3 * time.Second}

// TokenBucket is one user+action budget.
type TokenBucket struct {
	mutex       sync.Mutex
	tokens      int
	maxTokens   int
	refillRate  int
	refillEvery time.Duration
	lastRefill  time.Time
}

func NewTokenBucket(maxTokens, refillRate int, refillEvery time.Duration) *TokenBucket {
	return &TokenBucket{
		tokens:      maxTokens,
		maxTokens:   maxTokens,
		refillRate:  refillRate,
		refillEvery: refillEvery,
		lastRefill:  time.Now(),
	}
}

// Allow consumes a token if one is available. When the bucket is empty it
// returns how long until the next token.
func (tb *TokenBucket) Allow() (bool, time.Duration) {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	now := time.Now()
	intervals := int(now.Sub(tb.lastRefill) / tb.refillEvery)
	if intervals > 0 {
		tb.tokens += intervals * tb.refillRate
		if tb.tokens > tb.maxTokens {
			tb.tokens = tb.maxTokens
		}
		tb.lastRefill = now
	}

	if tb.tokens > 0 {
		tb.tokens--
		return true, 0
	}

	return false, tb.lastRefill.Add(tb.refillEvery).Sub(now)
}

func (tb *TokenBucket) GetTokens() int {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()
	return tb.tokens
}

// RateLimiter tracks a bucket per user+action pair.
type RateLimiter struct {
	buckets map[string]*TokenBucket
	mutex   sync.RWMutex
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*TokenBucket),
	}
}

// Allow reports whether userID may perform action now, creating the bucket
// on first use.
func (rl *RateLimiter) Allow(userID, action string) (bool, time.Duration) {
	key := userID + ":" + action

	rl.mutex.RLock()
	bucket, exists := rl.buckets[key]
	rl.mutex.RUnlock()

	if !exists {
		rl.mutex.Lock()
		if bucket, exists = rl.buckets[key]; !exists {
			spec, ok := actionSpecs[action]
			if !ok {
				spec = defaultSpec
			}
			bucket = NewTokenBucket(spec.maxTokens, spec.refillRate, spec.refillEvery)
			rl.buckets[key] = bucket
		}
		rl.mutex.Unlock()
	}

	return bucket.Allow()
}

// GetStatus returns the remaining and maximum tokens for a user action.
func (rl *RateLimiter) GetStatus(userID, action string) (tokens int, maxTokens int) {
	rl.mutex.RLock()
	bucket, exists := rl.buckets[userID+":"+action]
	rl.mutex.RUnlock()

	if !exists {
		return 0, 0
	}
	return bucket.GetTokens(), bucket.maxTokens
}

// Cleanup drops buckets idle for over an hour.
func (rl *RateLimiter) Cleanup() {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := time.Now()
	for key, bucket := range rl.buckets {
		if now.Sub(bucket.lastRefill) > time.Hour {
			delete(rl.buckets, key)
		}
	}
}

// StartCleanupRoutine runs Cleanup every 30 minutes for the process
// lifetime.
func (rl *RateLimiter) StartCleanupRoutine() {
	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()

		for range ticker.C {
			rl.Cleanup()
		}
	}()
}
