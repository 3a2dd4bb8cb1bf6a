package resilience

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter provides global and per-key rate limiting.
// Keys are expected to come from a small fixed set (API method names),
// so per-key limiters are never evicted.
type RateLimiter struct {
	global   *rate.Limiter
	perKey   map[string]*rate.Limiter
	mu       sync.RWMutex
	keyRPS   float64
	keyBurst int
}

// RateLimiterConfig holds rate limiter configuration.
type RateLimiterConfig struct {
	GlobalRPS   float64 // Global requests per second
	GlobalBurst int     // Global burst size
	KeyRPS      float64 // Per-key requests per second
	KeyBurst    int     // Per-key burst size
}

// DefaultRateLimiterConfig returns defaults for one API session.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GlobalRPS:   20,
		GlobalBurst: 10,
		KeyRPS:      5,
		KeyBurst:    5,
	}
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	return &RateLimiter{
		global:   rate.NewLimiter(rate.Limit(cfg.GlobalRPS), cfg.GlobalBurst),
		perKey:   make(map[string]*rate.Limiter),
		keyRPS:   cfg.KeyRPS,
		keyBurst: cfg.KeyBurst,
	}
}

// Wait blocks until both the per-key and the global limits allow.
func (r *RateLimiter) Wait(ctx context.Context, key string) error {
	if err := r.limiter(key).Wait(ctx); err != nil {
		return err
	}
	return r.global.Wait(ctx)
}

// Allow returns true if the request is allowed without blocking.
func (r *RateLimiter) Allow(key string) bool {
	if !r.global.Allow() {
		return false
	}
	return r.limiter(key).Allow()
}

// SetGlobalLimit updates the global rate limit.
func (r *RateLimiter) SetGlobalLimit(rps float64, burst int) {
	r.global.SetLimit(rate.Limit(rps))
	r.global.SetBurst(burst)
}

// SetKeyLimit updates the per-key limit for existing and future keys.
func (r *RateLimiter) SetKeyLimit(rps float64, burst int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keyRPS = rps
	r.keyBurst = burst
	for _, l := range r.perKey {
		l.SetLimit(rate.Limit(rps))
		l.SetBurst(burst)
	}
}

// Keys returns the number of per-key limiters created so far.
func (r *RateLimiter) Keys() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.perKey)
}

func (r *RateLimiter) limiter(key string) *rate.Limiter {
	r.mu.RLock()
	l, ok := r.perKey[key]
	r.mu.RUnlock()
	if ok {
		return l
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if l, ok = r.perKey[key]; ok {
		return l
	}
	l = rate.NewLimiter(rate.Limit(r.keyRPS), r.keyBurst)
	r.perKey[key] = l
	return l
}
