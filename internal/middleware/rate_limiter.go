package middleware

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per village
type RateLimiter struct {
	mu        sync.Mutex
	buckets   map[uint]*bucket
	limit     rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows perMinute events per village with the given burst.
// Buckets unused for longer than idle are dropped.
func NewRateLimiter(perMinute, burst int, idle time.Duration) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		buckets: make(map[uint]*bucket),
		limit:   rate.Limit(float64(perMinute) / 60),
		burst:   burst,
		idle:    idle,
	}
}

// Allow checks if the village still has budget
func (rl *RateLimiter) Allow(villageID uint) bool {
	return rl.AllowAt(villageID, time.Now())
}

func (rl *RateLimiter) AllowAt(villageID uint, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.sweep(now)

	b, exists := rl.buckets[villageID]
	if !exists {
		b = &bucket{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[villageID] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// sweep removes idle buckets, at most once per idle period
func (rl *RateLimiter) sweep(now time.Time) {
	if rl.idle <= 0 || now.Sub(rl.lastSweep) < rl.idle {
		return
	}
	rl.lastSweep = now
	for id, b := range rl.buckets {
		if now.Sub(b.lastSeen) > rl.idle {
			delete(rl.buckets, id)
		}
	}
}

// Len returns the number of tracked villages
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// Reset clears all buckets (useful for testing)
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.buckets = make(map[uint]*bucket)
}
