package service

import (
	"sync"
	"time"

	"pdf-tools-bot/internal/domain"

	"github.com/patrickmn/go-cache"
)

// RateLimiter allows a fixed number of operations per conversation within a
// sliding one-minute window.
type RateLimiter struct {
	mu     sync.Mutex
	hits   *cache.Cache
	limit  int
	window time.Duration
}

// NewRateLimiter creates a limiter; limit <= 0 disables it.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		hits:   cache.New(window, 2*window),
		limit:  limit,
		window: window,
	}
}

// Allow records an attempt and reports whether it is within the limit.
func (r *RateLimiter) Allow(conv domain.ConversationID) bool {
	if r == nil || r.limit <= 0 {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := string(conv)
	now := time.Now()
	cutoff := now.Add(-r.window)

	var recent []time.Time
	if v, ok := r.hits.Get(key); ok {
		for _, ts := range v.([]time.Time) {
			if ts.After(cutoff) {
				recent = append(recent, ts)
			}
		}
	}
	if len(recent) >= r.limit {
		r.hits.Set(key, recent, r.window)
		return false
	}
	r.hits.Set(key, append(recent, now), r.window)
	return true
}
