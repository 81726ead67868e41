package http

import (
	"math"
	"sync"
	"time"
)

// bucket tracks the remaining request budget for one client.
type bucket struct {
	tokens   float64
	refilled time.Time
	seen     time.Time
}

// RateLimiter is a token bucket limiter keyed by client IP. Buckets refill
// continuously at a fixed rate and clients idle for longer than ttl are
// dropped.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	burst   float64
	rate    float64
	ttl     time.Duration
	now     func() time.Time
}

// NewRateLimiter constructs a limiter allowing burst requests at once,
// refilling at perSecond. With a positive ttl a background loop prunes
// idle clients.
func NewRateLimiter(burst int, perSecond float64, ttl time.Duration) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*bucket),
		burst:   float64(burst),
		rate:    perSecond,
		ttl:     ttl,
		now:     time.Now,
	}

	if ttl > 0 {
		go rl.pruneLoop()
	}

	return rl
}

// Allow reports whether the client identified by key may proceed, consuming
// one token when it does.
func (rl *RateLimiter) Allow(key string) bool {
	if key == "" {
		key = "unknown"
	}

	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: rl.burst, refilled: now}
		rl.buckets[key] = b
	}

	if elapsed := now.Sub(b.refilled).Seconds(); elapsed > 0 {
		b.tokens = math.Min(rl.burst, b.tokens+elapsed*rl.rate)
		b.refilled = now
	}
	b.seen = now

	if b.tokens < 1 {
		return false
	}

	b.tokens--
	return true
}

func (rl *RateLimiter) pruneLoop() {
	ticker := time.NewTicker(rl.ttl)
	defer ticker.Stop()

	for range ticker.C {
		rl.pruneStale()
	}
}

func (rl *RateLimiter) pruneStale() {
	if rl.ttl <= 0 {
		return
	}

	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, b := range rl.buckets {
		if now.Sub(b.seen) > rl.ttl {
			delete(rl.buckets, key)
		}
	}
}
