// Package ratelimit implements the per-key token bucket limiter of
// spec.md §4.7: buckets live in a bounded, TTL-evicting LRU keyed by
// key_id, refill linearly over a configured window, and acquisition is
// non-blocking (either a token is available or the caller gets a
// Retry-After hint). Grounded on the teacher's in-memory caching idiom
// (the teacher's ratio/channel caches use a similar bounded-map-plus-TTL
// shape) but the bucket mechanics themselves come from
// golang.org/x/time/rate, the canonical Go token-bucket implementation.
package ratelimit

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/laiskytech/converse-gateway/internal/config"
)

// Decision is the outcome of an Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
	ResetAfter time.Duration
}

// Limiter is a concurrency-safe, bounded collection of per-key token
// buckets.
type Limiter struct {
	buckets *lru.LRU[string, *rate.Limiter]
	enabled bool
}

// New builds a Limiter whose buckets evict after ttl of inactivity and are
// bounded to size entries, per spec.md §4.7's "bounded size and a TTL
// (default: idle-eviction after 1 hour)".
func New(size int, ttl time.Duration) *Limiter {
	return &Limiter{
		buckets: lru.NewLRU[string, *rate.Limiter](size, nil, ttl),
		enabled: config.RateLimitEnabled,
	}
}

// Allow consumes one token from key's bucket, creating the bucket on first
// use with capacity requestsPerWindow refilling linearly over window.
// Master and ephemeral credentials bypass the limiter entirely at the
// call site (internal/httpapi), not here.
func (l *Limiter) Allow(key string, requestsPerWindow, windowSeconds int) Decision {
	if !l.enabled {
		return Decision{Allowed: true, Limit: requestsPerWindow, Remaining: requestsPerWindow}
	}

	limiter, ok := l.buckets.Get(key)
	if !ok {
		refillRate := rate.Limit(float64(requestsPerWindow) / float64(windowSeconds))
		limiter = rate.NewLimiter(refillRate, requestsPerWindow)
		l.buckets.Add(key, limiter)
	}

	now := time.Now()
	reservation := limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return Decision{Allowed: false, Limit: requestsPerWindow}
	}

	delay := reservation.DelayFrom(now)
	if delay > 0 {
		// The token wasn't actually available; undo the reservation so it
		// doesn't consume a future token, and report when one will be.
		reservation.CancelAt(now)
		return Decision{
			Allowed:    false,
			Limit:      requestsPerWindow,
			Remaining:  0,
			RetryAfter: delay,
			ResetAfter: delay,
		}
	}

	remaining := int(limiter.TokensAt(now))
	return Decision{
		Allowed:   true,
		Limit:     requestsPerWindow,
		Remaining: remaining,
	}
}
