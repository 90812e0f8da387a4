package api

import (
	"sync"

	"campusrun/internal/config"

	"golang.org/x/time/rate"
)

const defaultBurst = 5

// rateLimiter keeps one token bucket per authenticated caller of the gRPC API.
type rateLimiter struct {
	buckets sync.Map // user id -> *rate.Limiter
	limit   rate.Limit
	burst   int
}

func newRateLimiter(cfg *config.APIConfig) *rateLimiter {
	l := &rateLimiter{limit: rate.Limit(cfg.RateLimit.RPS), burst: cfg.RateLimit.Burst}
	if l.burst <= 0 {
		l.burst = defaultBurst
	}
	return l
}

func (l *rateLimiter) allow(key string) bool {
	bucket, ok := l.buckets.Load(key)
	if !ok {
		bucket, _ = l.buckets.LoadOrStore(key, rate.NewLimiter(l.limit, l.burst))
	}
	return bucket.(*rate.Limiter).Allow()
}
